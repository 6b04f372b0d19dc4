package orchestrator

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/worlddriven/worlddriven/internal/logfields"
)

const manualTriggerActivity = "evaluation triggered manually"

// HTTPService provides http endpoints to trigger and inspect evaluations.
type HTTPService struct {
	orchestrator *Orchestrator
	// sweepCtx is the context for sweeps that are started by requests,
	// they outlive the request.
	sweepCtx context.Context
	apiToken []byte
	logger   *zap.Logger
}

type HTTPServiceOption func(*HTTPService)

// WithAPIToken sets the bearer token that is required for the endpoints that
// trigger evaluations. Without a token these endpoints reject all requests.
func WithAPIToken(token string) HTTPServiceOption {
	return func(h *HTTPService) {
		h.apiToken = []byte(token)
	}
}

func NewHTTPService(ctx context.Context, o *Orchestrator, opts ...HTTPServiceOption) *HTTPService {
	h := HTTPService{
		orchestrator: o,
		sweepCtx:     ctx,
		logger:       o.logger.Named("http_service"),
	}

	for _, opt := range opts {
		opt(&h)
	}

	return &h
}

func (h *HTTPService) RegisterHandlers(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sweep", h.HandlerLastSweep)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAPIToken)
			r.Post("/sweep", h.HandlerTriggerSweep)
			r.Post("/{owner}/{repo}/pulls/{number}", h.HandlerRunPullRequest)
		})
	})
}

// requireAPIToken is a middleware that only passes requests carrying the
// configured token in an "Authorization: Bearer" header.
func (h *HTTPService) requireAPIToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if len(h.apiToken) == 0 || !found || subtle.ConstantTimeCompare([]byte(token), h.apiToken) != 1 {
			h.logger.Info(
				"rejected unauthenticated api request",
				logfields.Event("http_request_unauthorized"),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)

			w.Header().Set("WWW-Authenticate", "Bearer")
			h.writeJSON(w, http.StatusUnauthorized, &statusResponse{Status: "unauthorized"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusResponse struct {
	Status string `json:"status"`
}

func (h *HTTPService) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Info(
			"sending http response failed",
			logfields.Event("http_response_write_failed"),
			zap.Error(err),
		)
	}
}

func (h *HTTPService) HandlerTriggerSweep(w http.ResponseWriter, _ *http.Request) {
	if !h.orchestrator.TriggerSweep(h.sweepCtx) {
		h.writeJSON(w, http.StatusConflict, &statusResponse{Status: "sweep already running"})
		return
	}

	h.writeJSON(w, http.StatusAccepted, &statusResponse{Status: "sweep started"})
}

func (h *HTTPService) HandlerLastSweep(w http.ResponseWriter, _ *http.Request) {
	result := h.orchestrator.LastSweep()
	if result == nil {
		h.writeJSON(w, http.StatusNotFound, &statusResponse{Status: "no sweep finished yet"})
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *HTTPService) HandlerRunPullRequest(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	repo := chi.URLParam(r, "repo")

	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number <= 0 {
		h.writeJSON(w, http.StatusBadRequest, &statusResponse{Status: "invalid pull request number"})
		return
	}

	outcome := h.orchestrator.RunForPullRequest(r.Context(), owner, repo, number, manualTriggerActivity)

	statusCode := http.StatusOK
	if outcome.Result == ResultFailed {
		statusCode = http.StatusBadGateway
	}

	h.writeJSON(w, statusCode, outcome)
}

package github

import (
	"net/http"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/worlddriven/worlddriven/internal/logfields"
	"github.com/worlddriven/worlddriven/internal/provider"
)

const loggerName = "github-event-provider"

const providerName = "github"

// Provider listens for github-webhook http-requests at a http-server handler,
// validates and converts the requests to an Events and forwards it to an event
// channel.
type Provider struct {
	logging       *zap.Logger
	webhookSecret []byte
	c             chan<- *provider.Event
}

type option func(*Provider)

func WithPayloadSecret(secret string) option {
	return func(p *Provider) {
		p.webhookSecret = []byte(secret)
	}
}

func New(eventChan chan<- *provider.Event, opts ...option) *Provider {
	p := Provider{
		c: eventChan,
	}

	for _, o := range opts {
		o(&p)
	}

	if p.logging == nil {
		p.logging = zap.L().Named(loggerName)
	}

	return &p
}

func (p *Provider) HTTPHandler(resp http.ResponseWriter, req *http.Request) {
	deliveryID := github.DeliveryID(req)
	hookType := github.WebHookType(req)

	logger := p.logging.With(
		logfields.EventProvider(providerName),
		zap.String("github.delivery_id", deliveryID),
		zap.String("github.webhook_type", hookType),
	)

	payload, err := github.ValidatePayload(req, p.webhookSecret)
	if err != nil {
		logger.Info(
			"received invalid http request, payload validation failed",
			logfields.Event("github_http_request_validation_failed"),
			zap.Error(err),
		)
		http.Error(resp, err.Error(), http.StatusBadRequest)
		return
	}

	logger.Debug(
		"received http request",
		logfields.Event("github_event_received"),
		zap.ByteString("http_body", payload),
	)

	event, err := github.ParseWebHook(hookType, payload)
	if err != nil {
		logger.Info(
			"received invalid http request, parsing failed",
			logfields.Event("github_event_parsing_failed"),
			zap.Error(err),
		)
		http.Error(resp, err.Error(), http.StatusBadRequest)
		return
	}

	ev := provider.Event{
		JSON:       payload,
		Provider:   providerName,
		DeliveryID: deliveryID,
		EventType:  hookType,
		Payload:    event,
	}

	switch event := event.(type) {
	case *github.PullRequestEvent:
		ev.Action = event.GetAction()
		setRepository(&ev, event.GetRepo())
		setPullRequest(&ev, event.GetPullRequest())

	case *github.PullRequestReviewEvent:
		ev.Action = event.GetAction()
		setRepository(&ev, event.GetRepo())
		setPullRequest(&ev, event.GetPullRequest())

	case *github.PingEvent:
		logger.Info("received ping event", logfields.Event("github_ping_event_received"))
		return

	default:
		logger.Info("ignoring event, event type is unsupported",
			logfields.Event("github_unsupported_event_received"),
		)
		return
	}

	logger = logger.With(ev.LogFields()...)

	select {
	case p.c <- &ev:
		logger.Debug("event forwarded to channel",
			logfields.Event("github_event_forwarded"),
		)

	default:
		logger.Warn(
			"event lost, forwarding event to channel failed",
			zap.String("error", "could not forward event to channel, send would have blocked"),
			logfields.Event("github_forwarding_event_failed"),
		)

		http.Error(resp, "queue full", http.StatusServiceUnavailable)
		return
	}
}

func setRepository(ev *provider.Event, repo *github.Repository) {
	if repo == nil {
		return
	}

	ev.RepositoryOwner = repo.GetOwner().GetLogin()
	ev.Repository = repo.GetName()
}

func setPullRequest(ev *provider.Event, pr *github.PullRequest) {
	if pr == nil {
		return
	}

	ev.PullRequestNr = pr.GetNumber()

	if hb := pr.GetHead(); hb != nil {
		ev.CommitID = hb.GetSHA()
		ev.Branch = hb.GetRef()
	}
}

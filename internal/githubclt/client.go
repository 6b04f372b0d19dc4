// Package githubclt provides a github API client that dispatches every
// request over a chain of credentials.
package githubclt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v59/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/worlddriven/worlddriven/internal/credential"
	"github.com/worlddriven/worlddriven/internal/logfields"
	"github.com/worlddriven/worlddriven/internal/wderr"
)

const DefaultHTTPClientTimeout = time.Minute

const loggerName = "github_client"

// AppCredentials identify the GitHub App that is used for
// credential.RepositoryAppInstallation candidates.
type AppCredentials struct {
	AppID      int64
	PrivateKey []byte
}

type settings struct {
	app        *AppCredentials
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

type Option func(*settings)

// WithAppCredentials configures the GitHub App, without it app installation
// candidates can not be used.
func WithAppCredentials(app *AppCredentials) Option {
	return func(s *settings) {
		s.app = app
	}
}

// WithBaseURL sets the URL of the GitHub API, e.g. for GitHub Enterprise.
// The GraphQL endpoint is expected at <baseURL>/graphql.
func WithBaseURL(baseURL string) Option {
	return func(s *settings) {
		s.baseURL = baseURL
	}
}

// WithHTTPClient sets the http client whose transport is wrapped by the
// authenticating transports.
func WithHTTPClient(clt *http.Client) Option {
	return func(s *settings) {
		s.httpClient = clt
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// endpoint are the API clients for a single credential candidate.
type endpoint struct {
	cred       credential.Candidate
	credType   string
	restClt    *github.Client
	graphQLClt *githubv4.Client
	// initErr is set when no clients could be created for the
	// candidate, the candidate is skipped.
	initErr error
}

// Client is a github API client.
// It dispatches each operation over the credentials of its chain, ordered by
// priority, until one succeeds.
// Errors that are specific to the used credential (authentication, rate
// limits, permissions, server errors) cause the next candidate to be tried.
// Business errors (HTTP 405, 409, 422) are returned immediately as
// wderr.BusinessRejectionError.
// If all candidates failed wderr.AuthenticationExhaustedError is returned, if
// the chain is empty wderr.ErrCredentialUnavailable is returned without
// sending a request.
type Client struct {
	chain     *credential.Chain
	endpoints []*endpoint
	logger    *zap.Logger
}

// New returns a Client for the credential chain.
// The chain and the created API clients are used for all requests of the
// client, it must not be shared between independent processing units.
func New(chain *credential.Chain, opts ...Option) *Client {
	s := settings{timeout: DefaultHTTPClientTimeout}
	for _, o := range opts {
		o(&s)
	}

	if s.logger == nil {
		s.logger = zap.L().Named(loggerName)
	}

	clt := Client{
		chain:     chain,
		endpoints: make([]*endpoint, 0, chain.Len()),
		logger:    s.logger,
	}

	for _, cand := range chain.Candidates() {
		clt.endpoints = append(clt.endpoints, newEndpoint(&s, cand))
	}

	return &clt
}

// Chain returns the credential chain used by the client.
func (clt *Client) Chain() *credential.Chain {
	return clt.chain
}

func newEndpoint(s *settings, cand credential.Candidate) *endpoint {
	ep := endpoint{cred: cand, credType: credentialType(cand)}

	httpClient, err := newHTTPClient(s, cand)
	if err != nil {
		ep.initErr = fmt.Errorf("creating http client for %s failed: %w", cand.Description(), err)
		return &ep
	}

	ep.restClt = github.NewClient(httpClient)
	ep.graphQLClt = githubv4.NewClient(httpClient)

	if s.baseURL != "" {
		u, err := url.Parse(s.baseURL + "/")
		if err != nil {
			ep.initErr = fmt.Errorf("parsing base url failed: %w", err)
			return &ep
		}

		ep.restClt.BaseURL = u
		ep.graphQLClt = githubv4.NewEnterpriseClient(s.baseURL+"/graphql", httpClient)
	}

	return &ep
}

func baseTransport(s *settings) http.RoundTripper {
	if s.httpClient != nil && s.httpClient.Transport != nil {
		return s.httpClient.Transport
	}

	return http.DefaultTransport
}

func newTokenHTTPClient(s *settings, token string) *http.Client {
	ctx := context.Background()
	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)

	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = s.timeout

	return tc
}

func newHTTPClient(s *settings, cand credential.Candidate) (*http.Client, error) {
	switch c := cand.(type) {
	case credential.SessionUserToken:
		return newTokenHTTPClient(s, c.Token), nil

	case credential.RepositoryOwnerToken:
		return newTokenHTTPClient(s, c.Token), nil

	case credential.EnvironmentFallbackToken:
		return newTokenHTTPClient(s, c.Token), nil

	case credential.RepositoryAppInstallation:
		if s.app == nil {
			return nil, errors.New("github app credentials are not configured")
		}

		itr, err := ghinstallation.New(baseTransport(s), s.app.AppID, c.InstallationID, s.app.PrivateKey)
		if err != nil {
			return nil, err
		}

		if s.baseURL != "" {
			itr.BaseURL = s.baseURL
		}

		return &http.Client{Transport: itr, Timeout: s.timeout}, nil

	default:
		return nil, fmt.Errorf("unsupported credential type %T", cand)
	}
}

func credentialType(cand credential.Candidate) string {
	switch cand.(type) {
	case credential.SessionUserToken:
		return "session_user_token"
	case credential.RepositoryAppInstallation:
		return "app_installation"
	case credential.RepositoryOwnerToken:
		return "repository_owner_token"
	case credential.EnvironmentFallbackToken:
		return "environment_token"
	default:
		return "unknown"
	}
}

// do runs fn with the endpoints of the client in priority order until fn
// succeeded or returned an error that must not be retried with another
// credential.
func (clt *Client) do(ctx context.Context, op string, fn func(context.Context, *endpoint) error) error {
	if len(clt.endpoints) == 0 {
		clt.logger.Debug(
			"no credentials available, operation not executed",
			logfields.Event("github_no_credentials"),
			logfields.Operation(op),
		)
		return fmt.Errorf("%s: %w", op, wderr.ErrCredentialUnavailable)
	}

	var lastErr error
	for _, ep := range clt.endpoints {
		logger := clt.logger.With(
			logfields.Operation(op),
			logfields.Credential(ep.cred.Description()),
		)

		if ep.initErr != nil {
			logger.Warn(
				"credential unusable, trying next one",
				logfields.Event("github_credential_unusable"),
				zap.Error(ep.initErr),
			)

			metrics.RequestInc(op, ep.credType, resultCredentialFailure)
			lastErr = ep.initErr
			continue
		}

		err := fn(ctx, ep)
		if err == nil {
			metrics.RequestInc(op, ep.credType, resultSuccess)
			return nil
		}

		statusCode, class := classify(err)
		logger = logger.With(logfields.HTTPStatus(statusCode), zap.Error(err))

		switch class {
		case failureAbort:
			metrics.RequestInc(op, ep.credType, resultAborted)
			return err

		case failureBusiness:
			logger.Debug(
				"github rejected operation",
				logfields.Event("github_operation_rejected"),
			)

			metrics.RequestInc(op, ep.credType, resultRejected)
			return wderr.NewBusinessRejectionError(op, statusCode, err)

		case failureCredential:
			logger.Info(
				"github operation failed, trying next credential",
				logfields.Event("github_credential_failed"),
			)

			metrics.RequestInc(op, ep.credType, resultCredentialFailure)
			lastErr = err

		default:
			logger.DPanic("classify returned unexpected value", zap.Int("value", int(class)))
			lastErr = err
		}
	}

	return &wderr.AuthenticationExhaustedError{
		Op:       op,
		Attempts: len(clt.endpoints),
		Last:     lastErr,
	}
}

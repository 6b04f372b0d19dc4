// Package orchestrator evaluates the open pull requests of the governed
// repositories and merges or closes them when their time has come.
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/worlddriven/worlddriven/internal/comment"
	"github.com/worlddriven/worlddriven/internal/eventfilter"
	"github.com/worlddriven/worlddriven/internal/provider"
	"github.com/worlddriven/worlddriven/internal/repoconfig"
	"github.com/worlddriven/worlddriven/internal/scoring"
	"github.com/worlddriven/worlddriven/internal/store"
)

const loggerName = "orchestrator"

const (
	DefaultSweepInterval = 10 * time.Minute
	DefaultStatusContext = "worlddriven"
)

//go:generate mockgen -destination mocks/githubclient.go -package mocks . GithubClient

// GithubClient defines the github operations that are required to process
// pull requests.
type GithubClient interface {
	scoring.GithubClient
	repoconfig.GithubClient
	comment.GithubClient

	ListPullRequests(ctx context.Context, owner, repo string) ([]*github.PullRequest, error)
	CreateStatus(ctx context.Context, owner, repo, sha string, status *github.RepoStatus) error
	Merge(ctx context.Context, owner, repo string, number int, method, commitTitle string) (bool, error)
	ClosePullRequest(ctx context.Context, owner, repo string, number int) error
}

// ClientFactory returns the GithubClient for processing a repository.
// If no credentials are available for the repository an error wrapping
// wderr.ErrCredentialUnavailable is returned.
type ClientFactory interface {
	ForRepository(ctx context.Context, owner, repo string) (GithubClient, error)
}

// ClientFactoryFunc is an adapter to use ordinary functions as ClientFactory.
type ClientFactoryFunc func(ctx context.Context, owner, repo string) (GithubClient, error)

func (f ClientFactoryFunc) ForRepository(ctx context.Context, owner, repo string) (GithubClient, error) {
	return f(ctx, owner, repo)
}

// RepositoryStore provides the repository records.
type RepositoryStore interface {
	ListRepositories(ctx context.Context) ([]*store.Repository, error)
	FindRepositoryByOwnerRepo(ctx context.Context, owner, repo string) (*store.Repository, error)
}

type ConfigLoader interface {
	Load(ctx context.Context, clt repoconfig.GithubClient, owner, repo string) repoconfig.Config
}

type Scorer interface {
	Score(ctx context.Context, clt scoring.GithubClient, owner, repo string, number int, cfg repoconfig.Config) (*scoring.Snapshot, error)
}

type CommentUpdater interface {
	Update(ctx context.Context, clt comment.GithubClient, ref comment.Ref, snapshot *scoring.Snapshot, activity string) error
}

// Orchestrator runs the evaluation of pull requests.
// Evaluations are triggered periodically for all pull requests of all
// repositories (sweep), by webhook events and by explicit calls.
type Orchestrator struct {
	repos   RepositoryStore
	clients ClientFactory

	cfgLoader ConfigLoader
	scorer    Scorer
	comments  CommentUpdater

	statusContext string
	dashboardURL  string

	sweepInterval time.Duration
	events        <-chan *provider.Event
	filter        *eventfilter.Filter

	logger *zap.Logger

	sweepRunning atomic.Bool
	lastSweep    *SweepResult
	lastSweepMu  sync.Mutex

	wg sync.WaitGroup
}

type Option func(*Orchestrator)

// WithEventChan sets the channel from that webhook events are received.
func WithEventChan(ch <-chan *provider.Event) Option {
	return func(o *Orchestrator) {
		o.events = ch
	}
}

// WithEventFilter sets a filter that webhook events must match to trigger an
// evaluation.
func WithEventFilter(f *eventfilter.Filter) Option {
	return func(o *Orchestrator) {
		o.filter = f
	}
}

func WithSweepInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.sweepInterval = d
	}
}

// WithStatusContext sets the context name of the created commit statuses.
func WithStatusContext(statusContext string) Option {
	return func(o *Orchestrator) {
		o.statusContext = statusContext
	}
}

// WithDashboardURL sets the base URL that commit statuses link to.
func WithDashboardURL(url string) Option {
	return func(o *Orchestrator) {
		o.dashboardURL = url
	}
}

func WithConfigLoader(l ConfigLoader) Option {
	return func(o *Orchestrator) {
		o.cfgLoader = l
	}
}

func WithScorer(s Scorer) Option {
	return func(o *Orchestrator) {
		o.scorer = s
	}
}

func WithCommentUpdater(c CommentUpdater) Option {
	return func(o *Orchestrator) {
		o.comments = c
	}
}

func New(repos RepositoryStore, clients ClientFactory, opts ...Option) *Orchestrator {
	o := Orchestrator{
		repos:         repos,
		clients:       clients,
		statusContext: DefaultStatusContext,
		sweepInterval: DefaultSweepInterval,
		logger:        zap.L().Named(loggerName),
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.cfgLoader == nil {
		o.cfgLoader = repoconfig.NewLoader()
	}

	if o.scorer == nil {
		o.scorer = scoring.NewScorer()
	}

	if o.comments == nil {
		o.comments = comment.NewManager()
	}

	return &o
}

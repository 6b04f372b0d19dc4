package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/go-github/v59/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/worlddriven/worlddriven/internal/eventfilter"
	"github.com/worlddriven/worlddriven/internal/provider"
	"github.com/worlddriven/worlddriven/internal/store"
	"github.com/worlddriven/worlddriven/internal/wderr"
)

func newPullRequestEvent(t *testing.T, action string, number int, draft bool) *provider.Event {
	t.Helper()

	payload := github.PullRequestEvent{
		Action: github.String(action),
		Number: github.Int(number),
		PullRequest: &github.PullRequest{
			Number: github.Int(number),
			State:  github.String("open"),
			Draft:  github.Bool(draft),
			Base:   &github.PullRequestBranch{Ref: github.String("main")},
		},
		Repo: &github.Repository{
			Name:  github.String("hello"),
			Owner: &github.User{Login: github.String("octo")},
		},
	}

	js, err := json.Marshal(&payload)
	require.NoError(t, err)

	return &provider.Event{
		JSON:            js,
		Provider:        "github",
		EventType:       "pull_request",
		Action:          action,
		RepositoryOwner: "octo",
		Repository:      "hello",
		PullRequestNr:   number,
		Payload:         &payload,
	}
}

func newReviewEvent(action, state string) *provider.Event {
	payload := github.PullRequestReviewEvent{
		Action: github.String(action),
		Review: &github.PullRequestReview{
			State: github.String(state),
			User:  &github.User{Login: github.String("bob")},
		},
		PullRequest: &github.PullRequest{Number: github.Int(3), State: github.String("open")},
	}

	return &provider.Event{
		EventType:       "pull_request_review",
		RepositoryOwner: "octo",
		Repository:      "hello",
		PullRequestNr:   3,
		Payload:         &payload,
	}
}

func TestEventActivity(t *testing.T) {
	closedEv := newPullRequestEvent(t, "synchronize", 1, false)
	closedEv.Payload.(*github.PullRequestEvent).PullRequest.State = github.String("closed")

	baseChangedEv := newPullRequestEvent(t, "edited", 1, false)
	baseChangedEv.Payload.(*github.PullRequestEvent).Changes = &github.EditChange{
		Base: &github.EditBase{Ref: &github.EditRef{From: github.String("develop")}},
	}

	tcs := []struct {
		name     string
		ev       *provider.Event
		activity string
		ok       bool
	}{
		{name: "opened", ev: newPullRequestEvent(t, "opened", 1, false), activity: "pull request opened", ok: true},
		{name: "synchronize", ev: newPullRequestEvent(t, "synchronize", 1, false), activity: "new commits pushed", ok: true},
		{name: "ready for review", ev: newPullRequestEvent(t, "ready_for_review", 1, false), activity: "marked as ready for review", ok: true},
		{name: "title edited", ev: newPullRequestEvent(t, "edited", 1, false)},
		{name: "base changed", ev: baseChangedEv, activity: "base branch changed to main", ok: true},
		{name: "labeled", ev: newPullRequestEvent(t, "labeled", 1, false)},
		{name: "closed pull request", ev: closedEv},
		{name: "review approved", ev: newReviewEvent("submitted", "APPROVED"), activity: "review by bob: approved", ok: true},
		{name: "changes requested", ev: newReviewEvent("submitted", "CHANGES_REQUESTED"), activity: "review by bob: changes requested", ok: true},
		{name: "review dismissed", ev: newReviewEvent("dismissed", "DISMISSED"), activity: "review by bob dismissed", ok: true},
		{name: "review edited", ev: newReviewEvent("edited", "COMMENTED")},
		{name: "unsupported payload", ev: &provider.Event{RepositoryOwner: "octo", Repository: "hello", PullRequestNr: 1, Payload: &github.PushEvent{}}},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			activity, ok := eventActivity(tc.ev)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.activity, activity)
		})
	}
}

func TestRunProcessesEvents(t *testing.T) {
	filter, err := eventfilter.New(eventfilter.DefaultQuery)
	require.NoError(t, err)

	evChan := make(chan *provider.Event, 2)
	env := newTestEnv(t,
		WithEventChan(evChan),
		WithEventFilter(filter),
		WithSweepInterval(time.Hour),
	)
	env.scorer.snapshots[5] = waitingSnapshot(5)

	// initial sweep
	env.clt.EXPECT().ListPullRequests(gomock.Any(), "octo", "hello").Return(nil, nil)
	// only the non-draft event is processed
	env.clt.EXPECT().CreateStatus(gomock.Any(), "octo", "hello", "sha5", gomock.Any()).Return(nil)

	evChan <- newPullRequestEvent(t, "synchronize", 4, true)
	evChan <- newPullRequestEvent(t, "synchronize", 5, false)
	close(evChan)

	env.o.Run(context.Background())

	calls := env.comments.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 5, calls[0].Ref.Number)
	assert.Equal(t, "new commits pushed", calls[0].Activity)

	require.NotNil(t, env.o.LastSweep())
	assert.Equal(t, 0, env.o.LastSweep().ProcessedCount)
}

func TestRunTerminatesOnContextCancel(t *testing.T) {
	env := newTestEnv(t, WithSweepInterval(time.Hour))

	env.clt.EXPECT().ListPullRequests(gomock.Any(), "octo", "hello").Return(nil, nil).MaxTimes(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	env.o.Run(ctx)
}

func TestSweepsDoNotOverlap(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	s := store.NewMemStore()
	s.AddRepository(&store.Repository{Owner: "octo", Name: "hello"})

	started := make(chan struct{}, 2)
	release := make(chan struct{})

	o := New(s, ClientFactoryFunc(func(context.Context, string, string) (GithubClient, error) {
		started <- struct{}{}
		<-release
		return nil, wderr.ErrCredentialUnavailable
	}))

	require.True(t, o.TriggerSweep(context.Background()))
	<-started

	assert.False(t, o.TriggerSweep(context.Background()))

	close(release)
	o.Wait()

	require.NotNil(t, o.LastSweep())
	require.Len(t, o.LastSweep().Repositories, 1)
	assert.True(t, o.LastSweep().Repositories[0].Skipped)

	assert.True(t, o.TriggerSweep(context.Background()))
	o.Wait()
}

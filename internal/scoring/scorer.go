package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/worlddriven/worlddriven/internal/logfields"
	"github.com/worlddriven/worlddriven/internal/repoconfig"
)

const loggerName = "scoring"

const pushEventType = "PushEvent"

// GithubClient defines the github operations required to score a pull
// request.
type GithubClient interface {
	PullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
	ListContributors(ctx context.Context, owner, repo string) ([]*github.Contributor, error)
	ListCommits(ctx context.Context, owner, repo string, number int) ([]*github.RepositoryCommit, error)
	ListReviews(ctx context.Context, owner, repo string, number int) ([]*github.PullRequestReview, error)
	ListRepositoryEvents(ctx context.Context, owner, repo string) ([]*github.Event, error)
	LatestReadyForReview(ctx context.Context, owner, repo string, number int) (time.Time, error)
}

// Scorer retrieves the data of pull requests and computes their snapshots.
type Scorer struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewScorer() *Scorer {
	return &Scorer{
		logger: zap.L().Named(loggerName),
		now:    time.Now,
	}
}

// Score computes the snapshot of the pull request.
// owner and repo identify the base repository of the pull request.
func (s *Scorer) Score(ctx context.Context, clt GithubClient, owner, repo string, number int, cfg repoconfig.Config) (*Snapshot, error) {
	in, err := s.collect(ctx, clt, owner, repo, number)
	if err != nil {
		return nil, err
	}

	snapshot := Compute(in, cfg, s.now())

	s.logger.Debug(
		"pull request scored",
		logfields.Event("pull_request_scored"),
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(number),
		zap.Stringer("snapshot", snapshot),
	)

	return snapshot, nil
}

func (s *Scorer) collect(ctx context.Context, clt GithubClient, owner, repo string, number int) (*Input, error) {
	pr, err := clt.PullRequest(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("retrieving pull request failed: %w", err)
	}

	in := Input{
		Number:    number,
		Title:     pr.GetTitle(),
		Author:    pr.GetUser().GetLogin(),
		HeadSHA:   pr.GetHead().GetSHA(),
		CreatedAt: pr.GetCreatedAt().Time,
	}

	// contributors must always be retrieved from the base repository,
	// contributors of a fork are not eligible to vote
	contributors, err := clt.ListContributors(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("retrieving contributors failed: %w", err)
	}

	for _, c := range contributors {
		if c.GetLogin() == "" {
			continue
		}

		in.Contributors = append(in.Contributors, ContributorCommits{
			Login:   c.GetLogin(),
			Commits: c.GetContributions(),
		})
	}

	commits, err := clt.ListCommits(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("retrieving commits failed: %w", err)
	}

	for _, c := range commits {
		in.Commits = append(in.Commits, Commit{
			AuthoredAt:  c.GetCommit().GetAuthor().GetDate().Time,
			CommittedAt: c.GetCommit().GetCommitter().GetDate().Time,
		})
	}

	reviews, err := clt.ListReviews(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("retrieving reviews failed: %w", err)
	}

	for _, r := range reviews {
		in.Reviews = append(in.Reviews, Review{
			User:        r.GetUser().GetLogin(),
			State:       r.GetState(),
			SubmittedAt: r.GetSubmittedAt().Time,
		})
	}

	in.PushedAt, err = s.pushTimes(ctx, clt, pr)
	if err != nil {
		return nil, err
	}

	in.ReadyForReviewAt, err = clt.LatestReadyForReview(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("retrieving ready for review events failed: %w", err)
	}

	return &in, nil
}

// pushTimes returns the times of the push events to the head branch of the pull
// request, from the event history of the head repository.
func (s *Scorer) pushTimes(ctx context.Context, clt GithubClient, pr *github.PullRequest) ([]time.Time, error) {
	headRepo := pr.GetHead().GetRepo()
	if headRepo == nil {
		// the head repository was deleted
		return nil, nil
	}

	headOwner := headRepo.GetOwner().GetLogin()
	headRepoName := headRepo.GetName()
	ref := "refs/heads/" + pr.GetHead().GetRef()

	events, err := clt.ListRepositoryEvents(ctx, headOwner, headRepoName)
	if err != nil {
		return nil, fmt.Errorf("retrieving events of %s/%s failed: %w", headOwner, headRepoName, err)
	}

	var result []time.Time
	for _, ev := range events {
		if ev.GetType() != pushEventType {
			continue
		}

		payload, err := ev.ParsePayload()
		if err != nil {
			s.logger.Debug(
				"ignoring push event with unparsable payload",
				logfields.Event("push_event_payload_invalid"),
				zap.String("event_id", ev.GetID()),
				zap.Error(err),
			)
			continue
		}

		push, ok := payload.(*github.PushEvent)
		if !ok || push.GetRef() != ref {
			continue
		}

		result = append(result, ev.GetCreatedAt().Time)
	}

	return result, nil
}

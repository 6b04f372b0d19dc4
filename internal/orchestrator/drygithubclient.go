package orchestrator

import (
	"context"
	"time"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/worlddriven/worlddriven/internal/logfields"
)

// DryGithubClient is a github-client that does not do any changes on github.
// All operations that could cause a change are simulated and always succeed.
// All other operations are forwarded to the wrapped GithubClient.
type DryGithubClient struct {
	clt    GithubClient
	logger *zap.Logger
}

func NewDryGithubClient(clt GithubClient, logger *zap.Logger) *DryGithubClient {
	return &DryGithubClient{
		clt:    clt,
		logger: logger.Named("dry_github_client"),
	}
}

func (c *DryGithubClient) PullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	return c.clt.PullRequest(ctx, owner, repo, number)
}

func (c *DryGithubClient) ListPullRequests(ctx context.Context, owner, repo string) ([]*github.PullRequest, error) {
	return c.clt.ListPullRequests(ctx, owner, repo)
}

func (c *DryGithubClient) ListContributors(ctx context.Context, owner, repo string) ([]*github.Contributor, error) {
	return c.clt.ListContributors(ctx, owner, repo)
}

func (c *DryGithubClient) ListCommits(ctx context.Context, owner, repo string, number int) ([]*github.RepositoryCommit, error) {
	return c.clt.ListCommits(ctx, owner, repo, number)
}

func (c *DryGithubClient) ListReviews(ctx context.Context, owner, repo string, number int) ([]*github.PullRequestReview, error) {
	return c.clt.ListReviews(ctx, owner, repo, number)
}

func (c *DryGithubClient) ListRepositoryEvents(ctx context.Context, owner, repo string) ([]*github.Event, error) {
	return c.clt.ListRepositoryEvents(ctx, owner, repo)
}

func (c *DryGithubClient) LatestReadyForReview(ctx context.Context, owner, repo string, number int) (time.Time, error) {
	return c.clt.LatestReadyForReview(ctx, owner, repo, number)
}

func (c *DryGithubClient) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	return c.clt.DefaultBranch(ctx, owner, repo)
}

func (c *DryGithubClient) FileContent(ctx context.Context, owner, repo, ref, path string) ([]byte, error) {
	return c.clt.FileContent(ctx, owner, repo, ref, path)
}

func (c *DryGithubClient) ListIssueComments(ctx context.Context, owner, repo string, number int) ([]*github.IssueComment, error) {
	return c.clt.ListIssueComments(ctx, owner, repo, number)
}

func (c *DryGithubClient) CreateIssueComment(_ context.Context, owner, repo string, number int, body string) (*github.IssueComment, error) {
	c.logger.Info(
		"simulated creating of github issue comment, no comment created on github",
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(number),
		zap.String("body", body),
	)

	return &github.IssueComment{Body: &body}, nil
}

func (c *DryGithubClient) UpdateIssueComment(_ context.Context, owner, repo string, commentID int64, body string) error {
	c.logger.Info(
		"simulated updating of github issue comment, comment unchanged on github",
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		zap.Int64("github.comment_id", commentID),
		zap.String("body", body),
	)

	return nil
}

func (c *DryGithubClient) CreateStatus(_ context.Context, owner, repo, sha string, status *github.RepoStatus) error {
	c.logger.Info(
		"simulated creating of commit status, no status created on github",
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.Commit(sha),
		zap.String("state", status.GetState()),
		zap.String("description", status.GetDescription()),
	)

	return nil
}

func (c *DryGithubClient) Merge(_ context.Context, owner, repo string, number int, method, _ string) (bool, error) {
	c.logger.Info(
		"simulated merging of pull request, returning merged",
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(number),
		zap.String("merge_method", method),
	)

	return true, nil
}

func (c *DryGithubClient) ClosePullRequest(_ context.Context, owner, repo string, number int) error {
	c.logger.Info(
		"simulated closing of pull request",
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(number),
	)

	return nil
}

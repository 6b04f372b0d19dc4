package githubclt

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/shurcooL/githubv4"

	"github.com/worlddriven/worlddriven/internal/wderr"
)

const perPage = 100

// PullRequest returns the pull request with the given number.
func (clt *Client) PullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	var result *github.PullRequest

	err := clt.do(ctx, "get_pull_request", func(ctx context.Context, ep *endpoint) error {
		pr, _, err := ep.restClt.PullRequests.Get(ctx, owner, repo, number)
		if err != nil {
			return err
		}

		result = pr
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ListPullRequests returns all open pull requests of the repository.
func (clt *Client) ListPullRequests(ctx context.Context, owner, repo string) ([]*github.PullRequest, error) {
	var result []*github.PullRequest

	err := clt.do(ctx, "list_pull_requests", func(ctx context.Context, ep *endpoint) error {
		result = nil
		opts := github.PullRequestListOptions{
			State:       "open",
			ListOptions: github.ListOptions{PerPage: perPage},
		}

		for {
			prs, resp, err := ep.restClt.PullRequests.List(ctx, owner, repo, &opts)
			if err != nil {
				return err
			}

			result = append(result, prs...)

			if resp.NextPage == 0 {
				return nil
			}

			opts.Page = resp.NextPage
		}
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ListCommits returns the commits of a pull request.
func (clt *Client) ListCommits(ctx context.Context, owner, repo string, number int) ([]*github.RepositoryCommit, error) {
	var result []*github.RepositoryCommit

	err := clt.do(ctx, "list_pull_request_commits", func(ctx context.Context, ep *endpoint) error {
		result = nil
		opts := github.ListOptions{PerPage: perPage}

		for {
			commits, resp, err := ep.restClt.PullRequests.ListCommits(ctx, owner, repo, number, &opts)
			if err != nil {
				return err
			}

			result = append(result, commits...)

			if resp.NextPage == 0 {
				return nil
			}

			opts.Page = resp.NextPage
		}
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ListReviews returns all reviews of a pull request in chronological order.
func (clt *Client) ListReviews(ctx context.Context, owner, repo string, number int) ([]*github.PullRequestReview, error) {
	var result []*github.PullRequestReview

	err := clt.do(ctx, "list_pull_request_reviews", func(ctx context.Context, ep *endpoint) error {
		result = nil
		opts := github.ListOptions{PerPage: perPage}

		for {
			reviews, resp, err := ep.restClt.PullRequests.ListReviews(ctx, owner, repo, number, &opts)
			if err != nil {
				return err
			}

			result = append(result, reviews...)

			if resp.NextPage == 0 {
				return nil
			}

			opts.Page = resp.NextPage
		}
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// LatestReadyForReview returns when the pull request was marked as ready for
// review the last time. If it never was, the zero time is returned.
func (clt *Client) LatestReadyForReview(ctx context.Context, owner, repo string, number int) (time.Time, error) {
	type readyForReviewQuery struct {
		Repository struct {
			PullRequest struct {
				TimelineItems struct {
					Nodes []struct {
						ReadyForReviewEvent struct {
							CreatedAt githubv4.DateTime
						} `graphql:"... on ReadyForReviewEvent"`
					}
				} `graphql:"timelineItems(itemTypes: [READY_FOR_REVIEW_EVENT], last: 1)"`
			} `graphql:"pullRequest(number: $prNumber)"`
		} `graphql:"repository(owner: $repositoryOwner, name: $repositoryName)"`
	}

	vars := map[string]any{
		"repositoryOwner": githubv4.String(owner),
		"repositoryName":  githubv4.String(repo),
		"prNumber":        githubv4.Int(number),
	}

	var result time.Time
	err := clt.do(ctx, "latest_ready_for_review", func(ctx context.Context, ep *endpoint) error {
		var q readyForReviewQuery
		if err := ep.graphQLClt.Query(ctx, &q, vars); err != nil {
			return err
		}

		result = time.Time{}
		if nodes := q.Repository.PullRequest.TimelineItems.Nodes; len(nodes) > 0 {
			result = nodes[len(nodes)-1].ReadyForReviewEvent.CreatedAt.Time
		}

		return nil
	})
	if err != nil {
		return time.Time{}, err
	}

	return result, nil
}

// Merge merges the pull request with the given merge method.
// If GitHub refuses the merge because the pull request is not mergeable
// (HTTP 405), false and no error is returned.
func (clt *Client) Merge(ctx context.Context, owner, repo string, number int, method, commitTitle string) (bool, error) {
	var merged bool

	err := clt.do(ctx, "merge_pull_request", func(ctx context.Context, ep *endpoint) error {
		res, _, err := ep.restClt.PullRequests.Merge(ctx, owner, repo, number, "", &github.PullRequestOptions{
			MergeMethod: method,
			CommitTitle: commitTitle,
		})
		if err != nil {
			return err
		}

		merged = res.GetMerged()
		return nil
	})
	if err != nil {
		var rejectErr *wderr.BusinessRejectionError
		if errors.As(err, &rejectErr) && rejectErr.StatusCode == http.StatusMethodNotAllowed {
			return false, nil
		}

		return false, err
	}

	return merged, nil
}

// ClosePullRequest closes the pull request without merging it.
func (clt *Client) ClosePullRequest(ctx context.Context, owner, repo string, number int) error {
	return clt.do(ctx, "close_pull_request", func(ctx context.Context, ep *endpoint) error {
		_, _, err := ep.restClt.PullRequests.Edit(ctx, owner, repo, number, &github.PullRequest{
			State: github.String("closed"),
		})
		return err
	})
}

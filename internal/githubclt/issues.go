package githubclt

import (
	"context"

	"github.com/google/go-github/v59/github"
)

// ListIssueComments returns all comments of an issue or pull request.
func (clt *Client) ListIssueComments(ctx context.Context, owner, repo string, number int) ([]*github.IssueComment, error) {
	var result []*github.IssueComment

	err := clt.do(ctx, "list_issue_comments", func(ctx context.Context, ep *endpoint) error {
		result = nil
		opts := github.IssueListCommentsOptions{
			ListOptions: github.ListOptions{PerPage: perPage},
		}

		for {
			comments, resp, err := ep.restClt.Issues.ListComments(ctx, owner, repo, number, &opts)
			if err != nil {
				return err
			}

			result = append(result, comments...)

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

func (clt *Client) CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) (*github.IssueComment, error) {
	var result *github.IssueComment

	err := clt.do(ctx, "create_issue_comment", func(ctx context.Context, ep *endpoint) error {
		c, _, err := ep.restClt.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{
			Body: &body,
		})
		if err != nil {
			return err
		}

		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (clt *Client) UpdateIssueComment(ctx context.Context, owner, repo string, commentID int64, body string) error {
	return clt.do(ctx, "update_issue_comment", func(ctx context.Context, ep *endpoint) error {
		_, _, err := ep.restClt.Issues.EditComment(ctx, owner, repo, commentID, &github.IssueComment{
			Body: &body,
		})
		return err
	})
}

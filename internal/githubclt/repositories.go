package githubclt

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/go-github/v59/github"

	"github.com/worlddriven/worlddriven/internal/wderr"
)

// ListContributors returns the contributors of the repository with their
// commit counts.
func (clt *Client) ListContributors(ctx context.Context, owner, repo string) ([]*github.Contributor, error) {
	var result []*github.Contributor

	err := clt.do(ctx, "list_contributors", func(ctx context.Context, ep *endpoint) error {
		result = nil
		opts := github.ListContributorsOptions{
			ListOptions: github.ListOptions{PerPage: perPage},
		}

		for {
			contributors, resp, err := ep.restClt.Repositories.ListContributors(ctx, owner, repo, &opts)
			if err != nil {
				return err
			}

			result = append(result, contributors...)

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

// ListRepositoryEvents returns the recent public events of a repository,
// newest first.
func (clt *Client) ListRepositoryEvents(ctx context.Context, owner, repo string) ([]*github.Event, error) {
	var result []*github.Event

	err := clt.do(ctx, "list_repository_events", func(ctx context.Context, ep *endpoint) error {
		result = nil
		opts := github.ListOptions{PerPage: perPage}

		for {
			events, resp, err := ep.restClt.Activity.ListRepositoryEvents(ctx, owner, repo, &opts)
			if err != nil {
				return err
			}

			result = append(result, events...)

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

// DefaultBranch returns the name of the default branch of the repository.
func (clt *Client) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	var result string

	err := clt.do(ctx, "get_repository", func(ctx context.Context, ep *endpoint) error {
		r, _, err := ep.restClt.Repositories.Get(ctx, owner, repo)
		if err != nil {
			return err
		}

		result = r.GetDefaultBranch()
		return nil
	})
	if err != nil {
		return "", err
	}

	return result, nil
}

// FileContent returns the content of the file at path on ref.
// If the file does not exist an error wrapping wderr.ErrNotFound is
// returned.
func (clt *Client) FileContent(ctx context.Context, owner, repo, ref, path string) ([]byte, error) {
	var result []byte

	err := clt.do(ctx, "get_file_content", func(ctx context.Context, ep *endpoint) error {
		file, _, _, err := ep.restClt.Repositories.GetContents(
			ctx, owner, repo, path,
			&github.RepositoryContentGetOptions{Ref: ref},
		)
		if err != nil {
			return err
		}

		if file == nil {
			return fmt.Errorf("%s is a directory: %w", path, wderr.ErrNotFound)
		}

		content, err := file.GetContent()
		if err != nil {
			return fmt.Errorf("decoding content of %s failed: %w", path, err)
		}

		result = []byte(content)
		return nil
	})
	if err != nil {
		if IsNotFound(err) || errors.Is(err, wderr.ErrNotFound) {
			return nil, fmt.Errorf("%s/%s: %s: %w", owner, repo, path, wderr.ErrNotFound)
		}

		return nil, err
	}

	return result, nil
}

// CreateStatus creates a commit status for sha.
func (clt *Client) CreateStatus(ctx context.Context, owner, repo, sha string, status *github.RepoStatus) error {
	return clt.do(ctx, "create_status", func(ctx context.Context, ep *endpoint) error {
		_, _, err := ep.restClt.Repositories.CreateStatus(ctx, owner, repo, sha, status)
		return err
	})
}

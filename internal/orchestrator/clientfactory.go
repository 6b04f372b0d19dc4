package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/worlddriven/worlddriven/internal/githubclt"
	"github.com/worlddriven/worlddriven/internal/wderr"
)

// NewGithubClientFactory returns a ClientFactory that creates a new
// githubclt.Client, with its own credential chain, per call.
// If dryRun is true, the clients are wrapped in a DryGithubClient.
func NewGithubClientFactory(f *githubclt.Factory, dryRun bool) ClientFactory {
	logger := zap.L().Named(loggerName)

	return ClientFactoryFunc(func(ctx context.Context, owner, repo string) (GithubClient, error) {
		clt := f.ForRepository(ctx, owner, repo)
		if clt.Chain().Empty() {
			return nil, fmt.Errorf("%s/%s: %w", owner, repo, wderr.ErrCredentialUnavailable)
		}

		if dryRun {
			return NewDryGithubClient(clt, logger), nil
		}

		return clt, nil
	})
}

package githubclt

import (
	"context"

	"github.com/worlddriven/worlddriven/internal/credential"
)

// Factory creates Clients for repositories.
// Every created Client resolves its credential chain exactly once.
type Factory struct {
	resolver *credential.Resolver
	opts     []Option
}

func NewFactory(resolver *credential.Resolver, opts ...Option) *Factory {
	return &Factory{
		resolver: resolver,
		opts:     opts,
	}
}

// ForRepository returns a client for background processing of a repository,
// no session user is involved.
func (f *Factory) ForRepository(ctx context.Context, owner, repo string) *Client {
	return f.ForRequest(ctx, credential.Request{
		Owner:      owner,
		Repository: repo,
	})
}

// ForRequest returns a client using the credentials resolved for req.
func (f *Factory) ForRequest(ctx context.Context, req credential.Request) *Client {
	return New(f.resolver.Resolve(ctx, req), f.opts...)
}

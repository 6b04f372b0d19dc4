package credential

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/worlddriven/worlddriven/internal/store"
)

type countingStore struct {
	*store.MemStore
	repoLookups int
	userLookups int
	failUsers   bool
}

func (s *countingStore) FindRepositoryByOwnerRepo(ctx context.Context, owner, repo string) (*store.Repository, error) {
	s.repoLookups++
	return s.MemStore.FindRepositoryByOwnerRepo(ctx, owner, repo)
}

func (s *countingStore) FindUserByID(ctx context.Context, id string) (*store.User, error) {
	s.userLookups++
	if s.failUsers {
		return nil, errors.New("database unavailable")
	}
	return s.MemStore.FindUserByID(ctx, id)
}

func newTestStore() *countingStore {
	s := store.NewMemStore()
	s.AddUser(&store.User{ID: "u1", Login: "alice", Token: "alice-token"})
	s.AddUser(&store.User{ID: "u2", Login: "bob", Token: "bob-token"})
	s.AddUser(&store.User{ID: "u3", Login: "notoken"})
	s.AddRepository(&store.Repository{Owner: "o", Name: "app", InstallationID: 42})
	s.AddRepository(&store.Repository{Owner: "o", Name: "legacy", OwnerUserID: "u2"})
	s.AddRepository(&store.Repository{Owner: "o", Name: "both", InstallationID: 7, OwnerUserID: "u2"})
	s.AddRepository(&store.Repository{Owner: "o", Name: "unbound"})

	return &countingStore{MemStore: s}
}

func priorities(c *Chain) []int {
	var result []int
	for _, cand := range c.Candidates() {
		result = append(result, cand.Priority())
	}
	return result
}

func TestResolveOrder(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	type testcase struct {
		name     string
		req      Request
		envToken string
		expected []int
	}

	testcases := []testcase{
		{
			name:     "all variants",
			req:      Request{SessionUserID: "u1", Owner: "o", Repository: "both"},
			envToken: "env",
			expected: []int{1, 2, 3, 4},
		},
		{
			name:     "strict session user only",
			req:      Request{SessionUserID: "u1", Owner: "o", Repository: "both", Strict: true},
			envToken: "env",
			expected: []int{1},
		},
		{
			name:     "strict without session token resolves normally",
			req:      Request{SessionUserID: "u3", Owner: "o", Repository: "app", Strict: true},
			envToken: "env",
			expected: []int{2, 4},
		},
		{
			name:     "owner token skipped when owner is session user",
			req:      Request{SessionUserID: "u2", Owner: "o", Repository: "legacy"},
			expected: []int{1},
		},
		{
			name:     "legacy binding",
			req:      Request{Owner: "o", Repository: "legacy"},
			expected: []int{3},
		},
		{
			name:     "unbound repository without env token",
			req:      Request{Owner: "o", Repository: "unbound"},
			expected: nil,
		},
		{
			name:     "unknown repository with env token",
			req:      Request{Owner: "o", Repository: "unknown"},
			envToken: "env",
			expected: []int{4},
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewResolver(newTestStore(), WithEnvironmentToken(tc.envToken))
			chain := r.Resolve(context.Background(), tc.req)
			assert.Equal(t, tc.expected, priorities(chain))
		})
	}
}

func TestResolveCandidateValues(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	r := NewResolver(newTestStore(), WithEnvironmentToken("env"))
	chain := r.Resolve(context.Background(), Request{SessionUserID: "u1", Owner: "o", Repository: "both"})
	require.Equal(t, 4, chain.Len())

	assert.Equal(t, SessionUserToken{UserID: "u1", Login: "alice", Token: "alice-token"}, chain.Candidates()[0])
	assert.Equal(t, RepositoryAppInstallation{InstallationID: 7}, chain.Candidates()[1])
	assert.Equal(t, RepositoryOwnerToken{UserID: "u2", Login: "bob", Token: "bob-token"}, chain.Candidates()[2])
	assert.Equal(t, EnvironmentFallbackToken{Token: "env"}, chain.Candidates()[3])

	assert.NotContains(t, chain.String(), "token-")
}

func TestResolveSkipsFailedLookups(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	s := newTestStore()
	s.failUsers = true

	r := NewResolver(s, WithEnvironmentToken("env"))
	chain := r.Resolve(context.Background(), Request{SessionUserID: "u1", Owner: "o", Repository: "both"})

	assert.Equal(t, []int{2, 4}, priorities(chain))
}

func TestChainIsResolvedOnce(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	s := newTestStore()
	r := NewResolver(s)
	chain := r.Resolve(context.Background(), Request{Owner: "o", Repository: "both"})

	first := chain.Candidates()
	second := chain.Candidates()
	require.Len(t, first, 2)

	assert.Same(t, &first[0], &second[0])
	assert.Equal(t, 1, s.repoLookups)
	assert.Equal(t, 1, s.userLookups)
}

func TestNewChainSortsByPriority(t *testing.T) {
	chain := NewChain(
		EnvironmentFallbackToken{Token: "e"},
		RepositoryAppInstallation{InstallationID: 1},
		SessionUserToken{Token: "s"},
	)

	assert.Equal(t, []int{1, 2, 4}, priorities(chain))
	assert.True(t, NewChain().Empty())
}

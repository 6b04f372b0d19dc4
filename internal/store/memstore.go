package store

import (
	"context"
	"sort"
	"sync"
)

type repoKey struct {
	owner string
	name  string
}

// MemStore is a Store that keeps records in memory.
// It is used when repositories are defined in the configuration file instead
// of a database.
type MemStore struct {
	lock  sync.Mutex
	repos map[repoKey]*Repository
	users map[string]*User
}

func NewMemStore() *MemStore {
	return &MemStore{
		repos: map[repoKey]*Repository{},
		users: map[string]*User{},
	}
}

// AddRepository adds or replaces a repository record.
func (s *MemStore) AddRepository(r *Repository) {
	s.lock.Lock()
	defer s.lock.Unlock()

	cpy := *r
	s.repos[repoKey{owner: r.Owner, name: r.Name}] = &cpy
}

// AddUser adds or replaces a user record.
func (s *MemStore) AddUser(u *User) {
	s.lock.Lock()
	defer s.lock.Unlock()

	cpy := *u
	s.users[u.ID] = &cpy
}

func (s *MemStore) FindRepositoryByOwnerRepo(_ context.Context, owner, repo string) (*Repository, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	r, exist := s.repos[repoKey{owner: owner, name: repo}]
	if !exist {
		return nil, ErrNotFound
	}

	cpy := *r
	return &cpy, nil
}

func (s *MemStore) FindUserByID(_ context.Context, id string) (*User, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	u, exist := s.users[id]
	if !exist {
		return nil, ErrNotFound
	}

	cpy := *u
	return &cpy, nil
}

// ListRepositories returns all repositories ordered by owner and name.
func (s *MemStore) ListRepositories(context.Context) ([]*Repository, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	result := make([]*Repository, 0, len(s.repos))
	for _, r := range s.repos {
		cpy := *r
		result = append(result, &cpy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Owner != result[j].Owner {
			return result[i].Owner < result[j].Owner
		}
		return result[i].Name < result[j].Name
	})

	return result, nil
}

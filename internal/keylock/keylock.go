// Package keylock provides mutual exclusion per key.
package keylock

import (
	"context"
	"sync"
)

type entry struct {
	// sem has a capacity of 1, holding the lock means having sent to it.
	sem  chan struct{}
	refs int
}

// Map is a set of mutexes identified by comparable keys.
// Entries exist only while the key is locked or waited for.
// The zero value is ready to use.
type Map[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry
}

func (m *Map[K]) acquireEntry(key K) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entries == nil {
		m.entries = map[K]*entry{}
	}

	e, exists := m.entries[key]
	if !exists {
		e = &entry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}

	e.refs++

	return e
}

func (m *Map[K]) releaseEntry(key K, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

// Lock blocks until the lock for key is acquired or ctx is done.
// On success the returned function must be called to release the lock.
func (m *Map[K]) Lock(ctx context.Context, key K) (unlock func(), err error) {
	e := m.acquireEntry(key)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.releaseEntry(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			m.releaseEntry(key, e)
		})
	}, nil
}

// Len returns the number of keys that are locked or waited for.
func (m *Map[K]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}

// Package keylock serializes work per string key. Waiters on one key are
// served in arrival order; distinct keys never block each other.
package keylock

import (
	"context"
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by Lock after Close.
var ErrClosed = errors.New("keylock: registry closed")

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// Registry maps keys to FIFO-fair mutexes. Entries are reference counted and
// dropped once no holder or waiter remains.
type Registry struct {
	mu     sync.Mutex
	locks  map[string]*entry
	closed bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{locks: make(map[string]*entry)}
}

// Key joins a tenant and a subject into a lock key.
func Key(tenant, subject string) string {
	return tenant + ":" + subject
}

// Lock blocks until key is held or ctx is done. The returned release func is
// safe to call more than once.
func (r *Registry) Lock(ctx context.Context, key string) (func(), error) {
	e, err := r.acquireEntry(key)
	if err != nil {
		return nil, err
	}
	if err := e.sem.Acquire(ctx, 1); err != nil {
		r.dropEntry(key, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			r.dropEntry(key, e)
		})
	}, nil
}

// LockMany acquires every distinct key in sorted order, so two callers
// locking the same set in different argument orders cannot deadlock.
func (r *Registry) LockMany(ctx context.Context, keys ...string) (func(), error) {
	ordered := uniqueSorted(keys)
	releases := make([]func(), 0, len(ordered))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, key := range ordered {
		release, err := r.Lock(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}

	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}

// Len reports how many keys currently have holders or waiters.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

// Close rejects further Lock calls. Current holders keep their locks until
// they release them.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *Registry) acquireEntry(key string) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	e, ok := r.locks[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		r.locks[key] = e
	}
	e.refs++
	return e, nil
}

func (r *Registry) dropEntry(key string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.refs--
	if e.refs == 0 && r.locks[key] == e {
		delete(r.locks, key)
	}
}

func uniqueSorted(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

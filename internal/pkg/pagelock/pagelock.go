// Package pagelock serializes competing writers on a single page.
//
// Revision numbering and the approve-time conflict check are
// read-then-write sequences; holding the page's lock for the duration of
// the mutation turns them into critical sections within this process.
package pagelock

import "sync"

// Registry hands out one mutex per key.
type Registry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it on first use.
// The returned function releases it.
func (r *Registry) Lock(key string) func() {
	r.mu.Lock()
	m, ok := r.locks[key]
	if !ok {
		m = &sync.Mutex{}
		r.locks[key] = m
	}
	r.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Package rowlock emulates SELECT ... FOR UPDATE for in-memory test stores.
//
// A Registry owns one mutex per row key. Each fake transaction takes a Holder,
// locks the keys it touches and releases them all on commit or rollback.
package rowlock

import "sync"

// Registry hands out per-key locks shared by every transaction of a store.
type Registry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{locks: make(map[string]*sync.Mutex)}
}

func (r *Registry) lockFor(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.locks[key]
	if !ok {
		m = &sync.Mutex{}
		r.locks[key] = m
	}
	return m
}

// Holder returns a lock set for one transaction.
func (r *Registry) Holder() *Holder {
	return &Holder{reg: r, held: make(map[string]*sync.Mutex)}
}

// Holder tracks the keys locked by a single transaction. It is not safe for
// concurrent use; a transaction runs on one goroutine.
type Holder struct {
	reg  *Registry
	held map[string]*sync.Mutex
}

// Lock blocks until key is free. Locking a key already held is a no-op.
func (h *Holder) Lock(key string) {
	if _, ok := h.held[key]; ok {
		return
	}
	m := h.reg.lockFor(key)
	m.Lock()
	h.held[key] = m
}

// Holds reports whether key is locked by this holder.
func (h *Holder) Holds(key string) bool {
	_, ok := h.held[key]
	return ok
}

// ReleaseAll unlocks every key held.
func (h *Holder) ReleaseAll() {
	for key, m := range h.held {
		m.Unlock()
		delete(h.held, key)
	}
}

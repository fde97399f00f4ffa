package core

import (
	"fmt"
	"sync"
)

// Handle is a non-owning reference to a registry entry. A handle stays
// comparable after its entry is released but no longer resolves.
type Handle struct {
	id         uint32
	generation uint32
}

func (h Handle) ID() uint32 {
	return h.id
}

func (h Handle) String() string {
	return fmt.Sprintf("%d#%d", h.id, h.generation)
}

type registryEntry[T any] struct {
	owner      T
	generation uint32
	live       bool
}

// Registry hands out handles for owners and reuses free slots.
type Registry[T any] struct {
	mu      sync.RWMutex
	entries []registryEntry[T]
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{}
}

func (r *Registry[T]) Acquire(owner T) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		// Existing free spot. Take it.
		if !r.entries[i].live {
			r.entries[i].owner = owner
			r.entries[i].live = true
			r.entries[i].generation++
			return Handle{id: uint32(i), generation: r.entries[i].generation}
		}
	}

	// No existing free slots, push one.
	r.entries = append(r.entries, registryEntry[T]{owner: owner, generation: 1, live: true})
	return Handle{id: uint32(len(r.entries) - 1), generation: 1}
}

func (r *Registry[T]) Release(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if int(h.id) >= len(r.entries) {
		return fmt.Errorf("registry release: id '%d' out of range (max=%d)", h.id, len(r.entries))
	}
	e := &r.entries[h.id]
	if !e.live || e.generation != h.generation {
		return fmt.Errorf("registry release %s: %w", h, ErrStaleHandle)
	}
	var zero T
	e.owner = zero
	e.live = false
	return nil
}

// Lookup resolves a handle. It reports false once the entry was released,
// even when the slot has been taken by a newer owner.
func (r *Registry[T]) Lookup(h Handle) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero T
	if int(h.id) >= len(r.entries) {
		return zero, false
	}
	e := r.entries[h.id]
	if !e.live || e.generation != h.generation {
		return zero, false
	}
	return e.owner, true
}

func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.entries {
		if e.live {
			n++
		}
	}
	return n
}

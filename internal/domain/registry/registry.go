package registry

import (
	"slices"
	"sync"
)

// ID identifies a session for the lifetime of the process.
type ID int64

// Observer is notified with the number of live entries after every change.
type Observer func(active int)

// Registry is a concurrent map from ID to entry.
type Registry[T any] struct {
	mu       sync.Mutex
	last     ID
	entries  map[ID]T
	observer Observer
}

// New creates an empty registry. observer may be nil.
func New[T any](observer Observer) *Registry[T] {
	return &Registry[T]{
		entries:  make(map[ID]T),
		observer: observer,
	}
}

// Register allocates the next id, builds the entry and stores it atomically.
// build runs under the registry lock and must not call back into the registry.
func (r *Registry[T]) Register(build func(id ID) T) (ID, T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last++
	id := r.last
	entry := build(id)
	r.entries[id] = entry
	r.notify()

	return id, entry
}

// Unregister removes an entry. It reports true only for the call that removed it.
func (r *Registry[T]) Unregister(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	r.notify()
	return true
}

// Lookup returns the entry for id.
func (r *Registry[T]) Lookup(id ID) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	return entry, ok
}

// Len returns the number of live entries.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot returns the live entries ordered by id.
func (r *Registry[T]) Snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]ID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.entries[id])
	}
	return out
}

func (r *Registry[T]) notify() {
	if r.observer != nil {
		r.observer(len(r.entries))
	}
}

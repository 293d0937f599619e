// Package registry keeps a set of independent stores addressable by id.
package registry

import (
	"cmp"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/dreamware/shardkv/internal/storage"
)

var (
	// ErrNotFound is returned when no store is registered under an id.
	ErrNotFound = errors.New("store not registered")
	// ErrDuplicate is returned when an id is already taken.
	ErrDuplicate = errors.New("store id already registered")
)

// Registry tracks store instances by id, serving as the collection that
// batch fan-out and metrics iterate over.
//
// Stores in a registry share nothing: each keeps its own shards, routing
// seed and operation counter. The registry only owns the id -> store map.
//
// Concurrency Model:
//   - Lookups and listings take a read lock
//   - Register/Unregister take the write lock
//   - No lock is held while a store method runs
//
// Example:
//
//	reg := registry.New[string, int]()
//	s, err := reg.Create(1, 8)
//	if err != nil {
//	    return err
//	}
//	s.Insert("key-0", 0)
type Registry[K comparable, V any] struct {
	// stores maps store IDs to their instances.
	// Protected by mu.
	stores map[int]*storage.Store[K, V]

	mu sync.RWMutex
}

// New creates an empty registry.
func New[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		stores: make(map[int]*storage.Store[K, V]),
	}
}

// Register adds s under s.ID().
//
// Returns:
//   - nil on success
//   - ErrDuplicate if the id is already taken
//   - an error if s is nil
func (r *Registry[K, V]) Register(s *storage.Store[K, V]) error {
	if s == nil {
		return errors.New("store cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[s.ID()]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicate, s.ID())
	}
	r.stores[s.ID()] = s
	return nil
}

// Create builds a store with storage.New and registers it.
func (r *Registry[K, V]) Create(id, numShards int, opts ...storage.Option[K, V]) (*storage.Store[K, V], error) {
	s, err := storage.New[K, V](id, numShards, opts...)
	if err != nil {
		return nil, err
	}
	if err := r.Register(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Unregister removes the store registered under id. The store itself is
// left untouched and remains usable by anyone still holding it.
func (r *Registry[K, V]) Unregister(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[id]; !exists {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	delete(r.stores, id)
	return nil
}

// Get returns the store registered under id.
func (r *Registry[K, V]) Get(id int) (*storage.Store[K, V], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[id]
	return s, ok
}

// List returns every registered store ordered by id.
func (r *Registry[K, V]) List() []*storage.Store[K, V] {
	r.mu.RLock()
	out := make([]*storage.Store[K, V], 0, len(r.stores))
	for _, s := range r.stores {
		out = append(out, s)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *storage.Store[K, V]) int {
		return cmp.Compare(a.ID(), b.ID())
	})
	return out
}

// Len returns the number of registered stores.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stores)
}

package storage

import "sync"

// entry holds a single value. mu gives one key exclusive access without
// serializing the rest of the shard. removed is set, under mu, once the
// entry has been unlinked from its shard map; anyone holding a stale pointer
// must look the key up again.
type entry[V any] struct {
	mu      sync.Mutex
	value   V
	removed bool
}

// slot pairs a key with its entry for lock-free iteration over a snapshot.
type slot[K comparable, V any] struct {
	key K
	e   *entry[V]
}

// Shard is one independently lockable partition of a Store's key space.
//
// Locking is two-level:
//   - mu guards the key -> entry map and is held only for lookups and for
//     linking or unlinking entries, never while user code runs
//   - each entry has its own mutex, held for reads, writes and for the whole
//     duration of Transaction/Update/ForEach callbacks on that key
//
// An entry lock is never acquired while mu is held, so a callback running
// under an entry lock may safely touch other keys of the same shard.
//
// Shards handed out by Store.Shard and the parallel segment helpers are
// borrowed: only the read methods are exported, and routing stays owned by
// the store.
type Shard[K comparable, V any] struct {
	items map[K]*entry[V]
	index int
	mu    sync.RWMutex
}

// ShardInfo describes one shard at a point in time.
type ShardInfo struct {
	Index int // Position of the shard in its store
	Keys  int // Number of entries when sampled
}

func newShard[K comparable, V any](index int) *Shard[K, V] {
	return &Shard[K, V]{
		index: index,
		items: make(map[K]*entry[V]),
	}
}

// Index returns the shard's position in its store, in [0, NumShards).
func (s *Shard[K, V]) Index() int {
	return s.index
}

// Len returns the number of entries currently linked into the shard.
func (s *Shard[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Info returns a snapshot of the shard's metadata.
func (s *Shard[K, V]) Info() ShardInfo {
	return ShardInfo{Index: s.index, Keys: s.Len()}
}

// Get returns a copy of the value stored under key.
func (s *Shard[K, V]) Get(key K) (V, bool) {
	for {
		e := s.lookup(key)
		if e == nil {
			var zero V
			return zero, false
		}
		e.mu.Lock()
		if !e.removed {
			v := e.value
			e.mu.Unlock()
			return v, true
		}
		e.mu.Unlock()
	}
}

// Keys returns the keys linked into the shard when the call was made.
func (s *Shard[K, V]) Keys() []K {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]K, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	return keys
}

// Range calls fn with a copy of each entry until fn returns false.
// Each pair is internally consistent; pairs may reflect different points in
// time when the shard is mutated concurrently. fn runs without any shard or
// entry lock held.
func (s *Shard[K, V]) Range(fn func(key K, value V) bool) {
	for _, sl := range s.snapshot() {
		sl.e.mu.Lock()
		v, live := sl.e.value, !sl.e.removed
		sl.e.mu.Unlock()
		if live && !fn(sl.key, v) {
			return
		}
	}
}

func (s *Shard[K, V]) lookup(key K) *entry[V] {
	s.mu.RLock()
	e := s.items[key]
	s.mu.RUnlock()
	return e
}

func (s *Shard[K, V]) snapshot() []slot[K, V] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]slot[K, V], 0, len(s.items))
	for k, e := range s.items {
		out = append(out, slot[K, V]{key: k, e: e})
	}
	return out
}

// set upserts key and returns the value it replaced.
func (s *Shard[K, V]) set(key K, value V) (V, bool) {
	for {
		if e := s.lookup(key); e != nil {
			e.mu.Lock()
			if !e.removed {
				prev := e.value
				e.value = value
				e.mu.Unlock()
				return prev, true
			}
			e.mu.Unlock()
		}

		s.mu.Lock()
		if _, raced := s.items[key]; raced {
			s.mu.Unlock()
			continue
		}
		s.items[key] = &entry[V]{value: value}
		s.mu.Unlock()

		var zero V
		return zero, false
	}
}

// remove unlinks key and returns the value it held.
func (s *Shard[K, V]) remove(key K) (V, bool) {
	s.mu.Lock()
	e, ok := s.items[key]
	if ok {
		delete(s.items, key)
	}
	s.mu.Unlock()

	var zero V
	if !ok {
		return zero, false
	}

	// Waits for any in-flight update of the key to finish.
	e.mu.Lock()
	defer e.mu.Unlock()
	v := e.value
	e.value = zero
	e.removed = true
	return v, true
}

// update runs fn with exclusive access to key's value. It reports false
// when the key is absent.
func (s *Shard[K, V]) update(key K, fn func(K, *V)) bool {
	for {
		e := s.lookup(key)
		if e == nil {
			return false
		}
		if applyEntry(e, key, fn) {
			return true
		}
	}
}

// forEach runs fn on every live entry, one entry lock at a time.
func (s *Shard[K, V]) forEach(fn func(K, *V)) {
	for _, sl := range s.snapshot() {
		applyEntry(sl.e, sl.key, fn)
	}
}

// clear unlinks every entry and returns how many were dropped.
func (s *Shard[K, V]) clear() int {
	s.mu.Lock()
	old := s.items
	s.items = make(map[K]*entry[V])
	s.mu.Unlock()

	var zero V
	for _, e := range old {
		e.mu.Lock()
		e.value = zero
		e.removed = true
		e.mu.Unlock()
	}
	return len(old)
}

// load fills an unshared shard with copies of src's live entries.
func (s *Shard[K, V]) load(src *Shard[K, V], copyValue func(V) V) {
	src.Range(func(k K, v V) bool {
		s.items[k] = &entry[V]{value: copyValue(v)}
		return true
	})
}

// applyEntry runs fn under the entry lock and reports whether the entry was
// still live. The lock is released even if fn panics.
func applyEntry[K comparable, V any](e *entry[V], key K, fn func(K, *V)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return false
	}
	fn(key, &e.value)
	return true
}

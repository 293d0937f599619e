package storage

import (
	"fmt"
	"sync/atomic"

	"github.com/go-logr/logr"
)

// Entry is a key/value snapshot returned by Find.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Predicate selects entries for Find.
// Match may be called from several goroutines at once and runs on a copy of
// the value, outside every store lock.
type Predicate[K comparable, V any] interface {
	Match(key K, value V) bool
}

// PredicateFunc adapts an ordinary function to Predicate.
type PredicateFunc[K comparable, V any] func(key K, value V) bool

// Match calls f(key, value).
func (f PredicateFunc[K, V]) Match(key K, value V) bool {
	return f(key, value)
}

// UpdateFunc mutates a single value in place while the store holds that
// key exclusively. It must return promptly and must not call back into the
// store for the same key; doing so deadlocks. Other keys, including keys of
// the same shard, may be used freely.
type UpdateFunc[K comparable, V any] func(key K, value *V)

// Stats summarizes a store at a point in time.
type Stats struct {
	Shards []ShardInfo // Per-shard entry counts, ordered by index
	ID     int         // Store identifier
	Keys   int         // Sum of the per-shard counts
	Ops    uint64      // Operation counter when sampled
}

// Store is a concurrent key-value map partitioned into a fixed number of
// independently locked shards.
//
// Routing: every key maps to exactly one shard through Hasher(seed, key)
// modulo the shard count. The seed is drawn per instance at construction
// (or fixed with WithSeed) and never changes, so ShardIndex is a pure
// function for the lifetime of the store. Independent stores never share a
// seed or a counter.
//
// Operation counter: incremented atomically once per successful mutating
// call. Insert always counts; Remove, Update and Transaction count only when
// the key existed; Clear counts once; ForEach counts once per shard swept.
// Reads never count.
//
// Consistency:
//   - single-key operations are linearizable with respect to one another
//   - Transaction/Update/ForEach hold the affected key exclusively while the
//     callback runs; operations on other keys proceed
//   - Find, Keys and Len are not atomic snapshots of the whole store
//
// All methods are safe for concurrent use. "Not found" outcomes are reported
// through the boolean result, never as errors.
type Store[K comparable, V any] struct {
	log       logr.Logger
	hasher    Hasher[K]
	copyValue func(V) V
	shards    []*Shard[K, V]
	ops       atomic.Uint64
	seed      uint64
	id        int
}

// New creates a store with numShards empty shards, a fresh routing seed and
// a zero operation counter. It fails with ErrInvalidConfig when numShards is
// not positive.
//
// Example:
//
//	s, err := storage.New[string, int](1, 8)
//	if err != nil {
//	    return err
//	}
//	s.Insert("key-0", 0)
func New[K comparable, V any](id, numShards int, opts ...Option[K, V]) (*Store[K, V], error) {
	if numShards <= 0 {
		return nil, fmt.Errorf("%w: numShards must be > 0, got %d", ErrInvalidConfig, numShards)
	}

	o := defaultOptions[K, V]()
	for _, opt := range opts {
		opt(&o)
	}
	seed := newSeed()
	if o.seed != nil {
		seed = *o.seed
	}

	o.log = o.log.WithValues("store", id)
	s := newStore(id, numShards, seed, o)
	s.log.V(1).Info("store created", "shards", numShards, "seed", seed)
	return s, nil
}

func newStore[K comparable, V any](id, numShards int, seed uint64, o options[K, V]) *Store[K, V] {
	s := &Store[K, V]{
		id:        id,
		seed:      seed,
		hasher:    o.hasher,
		copyValue: o.copyValue,
		log:       o.log,
		shards:    make([]*Shard[K, V], numShards),
	}
	for i := range s.shards {
		s.shards[i] = newShard[K, V](i)
	}
	return s
}

// ID returns the identifier the store was created with.
func (s *Store[K, V]) ID() int {
	return s.id
}

// NumShards returns the fixed number of shards.
func (s *Store[K, V]) NumShards() int {
	return len(s.shards)
}

// Seed returns the routing seed.
func (s *Store[K, V]) Seed() uint64 {
	return s.seed
}

// ShardIndex returns the shard that owns key.
func (s *Store[K, V]) ShardIndex(key K) int {
	return indexFor(s.hasher(s.seed, key), len(s.shards))
}

// Shard borrows shard i for read access. It reports false when i is out of
// range.
func (s *Store[K, V]) Shard(i int) (*Shard[K, V], bool) {
	if i < 0 || i >= len(s.shards) {
		return nil, false
	}
	return s.shards[i], true
}

func (s *Store[K, V]) shardFor(key K) *Shard[K, V] {
	return s.shards[s.ShardIndex(key)]
}

// OpCount returns the operation counter.
func (s *Store[K, V]) OpCount() uint64 {
	return s.ops.Load()
}

// Len returns the total number of entries, summed shard by shard.
func (s *Store[K, V]) Len() int {
	n := 0
	for _, sh := range s.shards {
		n += sh.Len()
	}
	return n
}

// IsEmpty reports whether every shard is empty.
func (s *Store[K, V]) IsEmpty() bool {
	for _, sh := range s.shards {
		if sh.Len() > 0 {
			return false
		}
	}
	return true
}

// Insert stores value under key and returns the value it replaced, if any.
// It always increments the operation counter.
func (s *Store[K, V]) Insert(key K, value V) (V, bool) {
	prev, replaced := s.shardFor(key).set(key, value)
	s.ops.Add(1)
	return prev, replaced
}

// Get returns a copy of the value stored under key.
func (s *Store[K, V]) Get(key K) (V, bool) {
	return s.shardFor(key).Get(key)
}

// Remove deletes key and returns the value it held. The operation counter
// is incremented only when a value was removed.
func (s *Store[K, V]) Remove(key K) (V, bool) {
	prev, ok := s.shardFor(key).remove(key)
	if ok {
		s.ops.Add(1)
	}
	return prev, ok
}

// Update applies fn to key's value with exclusive access to that key.
// It reports false, without calling fn, when the key is absent. A panic in
// fn is recovered and returned as ErrCallbackPanic.
func (s *Store[K, V]) Update(key K, fn UpdateFunc[K, V]) (bool, error) {
	var ok bool
	err := s.guard("update", func() {
		ok = s.shardFor(key).update(key, fn)
	})
	if err != nil {
		return false, err
	}
	if ok {
		s.ops.Add(1)
	}
	return ok, nil
}

// Transaction applies fn to key's value with exclusive access to that key
// and returns fn's result. ok is false, and fn is not called, when the key
// is absent. Operations on other keys are not blocked. A panic in fn is
// recovered and returned as ErrCallbackPanic.
//
// fn must be finite and must not re-enter the store for the same key.
//
// Example:
//
//	next, ok, err := storage.Transaction(s, "hits", func(_ string, v *int) int {
//	    *v++
//	    return *v
//	})
func Transaction[K comparable, V, R any](s *Store[K, V], key K, fn func(key K, value *V) R) (result R, ok bool, err error) {
	err = s.guard("transaction", func() {
		ok = s.shardFor(key).update(key, func(k K, v *V) {
			result = fn(k, v)
		})
	})
	if err != nil {
		var zero R
		return zero, false, err
	}
	if ok {
		s.ops.Add(1)
	}
	return result, ok, nil
}

// ForEach calls fn on every entry, holding each key exclusively while fn
// runs. Visit order is unspecified. The counter is incremented once per
// shard swept. If fn panics the sweep stops at that entry and
// ErrCallbackPanic is returned.
func (s *Store[K, V]) ForEach(fn UpdateFunc[K, V]) error {
	for _, sh := range s.shards {
		if err := s.guard("for_each", func() { sh.forEach(fn) }); err != nil {
			return err
		}
		s.ops.Add(1)
	}
	return nil
}

// Find returns a snapshot of every entry accepted by pred. The scan is
// linear over all shards and is not one atomic snapshot: each returned pair
// existed at some instant during the scan, and entries left untouched for
// the whole scan are always seen.
func (s *Store[K, V]) Find(pred Predicate[K, V]) ([]Entry[K, V], error) {
	var out []Entry[K, V]
	err := s.guard("find", func() {
		for _, sh := range s.shards {
			sh.Range(func(k K, v V) bool {
				if pred.Match(k, v) {
					out = append(out, Entry[K, V]{Key: k, Value: v})
				}
				return true
			})
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Clear empties every shard and increments the counter once.
func (s *Store[K, V]) Clear() {
	dropped := 0
	for _, sh := range s.shards {
		dropped += sh.clear()
	}
	s.ops.Add(1)
	s.log.V(1).Info("store cleared", "dropped", dropped)
}

// Keys returns the keys present at call time, shard by shard. It is not
// linearizable against concurrent inserts and removes.
func (s *Store[K, V]) Keys() []K {
	keys := make([]K, 0, s.Len())
	for _, sh := range s.shards {
		keys = append(keys, sh.Keys()...)
	}
	return keys
}

// Stats returns per-shard entry counts and the operation counter.
func (s *Store[K, V]) Stats() Stats {
	st := Stats{
		ID:     s.id,
		Ops:    s.ops.Load(),
		Shards: make([]ShardInfo, len(s.shards)),
	}
	for i, sh := range s.shards {
		st.Shards[i] = sh.Info()
		st.Keys += st.Shards[i].Keys
	}
	return st
}

// Clone deep-copies the store's current contents into a new store.
//
// The clone keeps the source's id, shard count, hasher and routing seed, so
// every key lands in the same shard index in both stores. Values are copied
// with the WithCopyFunc function. The clone's operation counter starts at
// the source's current value; afterwards the two evolve independently.
func (s *Store[K, V]) Clone() *Store[K, V] {
	c := newStore(s.id, len(s.shards), s.seed, options[K, V]{
		hasher:    s.hasher,
		copyValue: s.copyValue,
		log:       s.log,
	})
	for i, sh := range s.shards {
		c.shards[i].load(sh, s.copyValue)
	}
	c.ops.Store(s.ops.Load())
	return c
}

// guard runs fn, converting a panic into ErrCallbackPanic.
func (s *Store[K, V]) guard(op string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrCallbackPanic, op, r)
			s.log.Error(err, "recovered callback panic", "op", op)
		}
	}()
	fn()
	return nil
}

package parallel

import "github.com/dreamware/shardkv/internal/storage"

// ProcessKeys evaluates fn for every key on the pool. value and found are a
// snapshot taken with Store.Get just before each call. The i-th result
// belongs to keys[i] whatever order the tasks complete in. When a callback
// panics its slot holds R's zero value and the panic is reported in the
// returned error; the other slots are still filled.
func ProcessKeys[K comparable, V, R any](p *Pool, s *storage.Store[K, V], keys []K, fn func(key K, value V, found bool) R) ([]R, error) {
	out := make([]R, len(keys))
	err := p.run(len(keys), func(i int) {
		v, ok := s.Get(keys[i])
		out[i] = fn(keys[i], v, ok)
	})
	return out, err
}

// SegmentProcess calls fn once per shard, concurrently, lending fn the
// shard for the duration of the call. No order is guaranteed and nothing is
// aggregated; it suits side effects such as publishing metrics.
func SegmentProcess[K comparable, V any](p *Pool, s *storage.Store[K, V], fn func(*storage.Shard[K, V])) error {
	return p.run(s.NumShards(), func(i int) {
		sh, _ := s.Shard(i)
		fn(sh)
	})
}

// BatchProcess calls fn once per store, concurrently. Stores are treated as
// independent; no cross-store synchronization is performed.
func BatchProcess[K comparable, V any](p *Pool, stores []*storage.Store[K, V], fn func(*storage.Store[K, V])) error {
	return p.run(len(stores), func(i int) {
		fn(stores[i])
	})
}

// ScopedSegmentProcess calls fn once per shard, concurrently, and returns
// one result per shard indexed by shard position. It returns only after
// every shard task has finished.
func ScopedSegmentProcess[K comparable, V, R any](p *Pool, s *storage.Store[K, V], fn func(*storage.Shard[K, V]) R) ([]R, error) {
	out := make([]R, s.NumShards())
	err := p.run(len(out), func(i int) {
		sh, _ := s.Shard(i)
		out[i] = fn(sh)
	})
	return out, err
}

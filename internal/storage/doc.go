// Package storage implements the sharded, in-memory key-value store at the
// core of shardkv: a fixed set of independently locked partitions, a
// per-instance shard router and an atomic operation counter.
//
// # Overview
//
// A Store spreads keys over N shards. Each shard is a map guarded by its own
// RWMutex, and every value inside it carries a private mutex, so a long
// Transaction on one key never stalls readers or writers of other keys, not
// even keys that share its shard.
//
// # Architecture
//
//	┌──────────────────────────────────────────┐
//	│               Store[K,V]                 │
//	├──────────────────────────────────────────┤
//	│  seed    uint64   fixed per instance     │
//	│  hasher  xxhash(seed, key)               │
//	│  ops     atomic counter                  │
//	├──────────────────────────────────────────┤
//	│  key ─► hash ─► hash % N ─► shard[i]     │
//	└──────────────────────────────────────────┘
//	        │            │             │
//	        ▼            ▼             ▼
//	┌────────────┐ ┌────────────┐ ┌────────────┐
//	│  Shard 0   │ │  Shard 1   │ │ Shard N-1  │
//	│ RWMutex    │ │ RWMutex    │ │ RWMutex    │
//	│ map[K]*e   │ │ map[K]*e   │ │ map[K]*e   │
//	│  e: Mutex  │ │  e: Mutex  │ │  e: Mutex  │
//	└────────────┘ └────────────┘ └────────────┘
//
// # Operations
//
//   - Insert, Get, Remove: single-key, linearizable
//   - Update, Transaction: read-modify-write under exclusive access to one key
//   - ForEach: in-place sweep, one key locked at a time
//   - Find, Keys, Len, Stats: scans, not atomic across the whole store
//   - Clear: empties all shards
//   - Clone: deep copy with the same routing seed
//
// # Routing
//
// Shard routing is xxhash seeded with a random per-instance value. The seed
// never changes while the store is alive, and Clone carries it over, so
// a clone places every key in the same shard index as its source. Pass
// WithSeed to build independent stores with identical placement.
//
// # Operation Counter
//
// The counter grows by one for each successful mutation:
//
//	Insert                      always
//	Remove/Update/Transaction   only when the key existed
//	Clear                       once per call
//	ForEach                     once per shard swept
//
// It is a single atomic word; no mutex is taken to maintain it.
//
// # Callbacks
//
// UpdateFunc and Transaction callbacks run while their key is held
// exclusively. They must be finite and must not call back into the store for
// the same key. Predicates run on copies, outside every lock. All callbacks
// may run concurrently with each other and must guard any shared state they
// capture.
//
// A panicking callback is recovered: its locks are released, the call
// returns ErrCallbackPanic and the store keeps serving.
//
// # Example
//
//	s, err := storage.New[string, uint64](1, 8)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	s.Insert("key-50", 50)
//	v, ok, err := storage.Transaction(s, "key-50", func(_ string, v *uint64) uint64 {
//	    *v++
//	    return *v
//	})
package storage

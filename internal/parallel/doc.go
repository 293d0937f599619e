// Package parallel fans work out over the keys, shards or instances of
// sharded stores using a bounded Pool.
//
//	ProcessKeys           one task per key,   results in input order
//	SegmentProcess        one task per shard, side effects only
//	ScopedSegmentProcess  one task per shard, results indexed by shard
//	BatchProcess          one task per store
//
// Every helper blocks until all of its tasks have joined; no goroutine
// outlives the call. Callbacks are expected to be total: they run on pool
// goroutines, possibly concurrently with each other, and must synchronize
// any state they share. A callback that never returns stalls its slot and
// the call. A panicking callback is recovered and reported as ErrTaskPanic
// without disturbing the other tasks.
package parallel

package actor

import "github.com/dreamware/shardkv/internal/storage"

// Operation is a command consumed by an Actor. The set of variants is
// closed: Insert, Remove, Get, Find, Clear and Shutdown.
//
// An Operation is consumed exactly once. Get and Find carry a reply channel
// that receives exactly one value; Send rejects it unless it has a buffer of at
// least one, and it must not be reused across sends.
type Operation[K comparable, V any] interface {
	// apply runs the command and reports whether the actor should stop.
	apply(s *storage.Store[K, V]) (stop bool)
	kind() string
}

// Insert upserts Key.
type Insert[K comparable, V any] struct {
	Key   K
	Value V
}

// Remove deletes Key if present.
type Remove[K comparable, V any] struct {
	Key K
}

// Lookup is the reply to a Get.
type Lookup[V any] struct {
	Value V
	Found bool
}

// Get reads Key and replies on Reply, including when the key is absent.
type Get[K comparable, V any] struct {
	Reply chan<- Lookup[V]
	Key   K
}

// FindResult is the reply to a Find. Err is set only when the predicate
// panicked.
type FindResult[K comparable, V any] struct {
	Err     error
	Entries []storage.Entry[K, V]
}

// Find scans the store with Predicate and replies on Reply, including when
// nothing matched.
type Find[K comparable, V any] struct {
	Predicate storage.Predicate[K, V]
	Reply     chan<- FindResult[K, V]
}

// Clear empties the store.
type Clear[K comparable, V any] struct{}

// Shutdown stops the actor. Operations queued behind it are discarded.
type Shutdown[K comparable, V any] struct{}

func (op Insert[K, V]) apply(s *storage.Store[K, V]) bool {
	s.Insert(op.Key, op.Value)
	return false
}

func (op Remove[K, V]) apply(s *storage.Store[K, V]) bool {
	s.Remove(op.Key)
	return false
}

func (op Get[K, V]) apply(s *storage.Store[K, V]) bool {
	v, ok := s.Get(op.Key)
	deliver(op.Reply, Lookup[V]{Value: v, Found: ok})
	return false
}

func (op Find[K, V]) apply(s *storage.Store[K, V]) bool {
	var res FindResult[K, V]
	if op.Predicate == nil {
		res.Entries, res.Err = s.Find(matchAll[K, V]{})
	} else {
		res.Entries, res.Err = s.Find(op.Predicate)
	}
	deliver(op.Reply, res)
	return false
}

func (Clear[K, V]) apply(s *storage.Store[K, V]) bool {
	s.Clear()
	return false
}

func (Shutdown[K, V]) apply(*storage.Store[K, V]) bool {
	return true
}

func (Insert[K, V]) kind() string   { return "insert" }
func (Remove[K, V]) kind() string   { return "remove" }
func (Get[K, V]) kind() string      { return "get" }
func (Find[K, V]) kind() string     { return "find" }
func (Clear[K, V]) kind() string    { return "clear" }
func (Shutdown[K, V]) kind() string { return "shutdown" }

// replier is implemented by operations that answer on a channel.
type replier interface {
	replyBuffered() bool
}

func (op Get[K, V]) replyBuffered() bool  { return op.Reply == nil || cap(op.Reply) > 0 }
func (op Find[K, V]) replyBuffered() bool { return op.Reply == nil || cap(op.Reply) > 0 }

type matchAll[K comparable, V any] struct{}

func (matchAll[K, V]) Match(K, V) bool { return true }

// deliver sends v without blocking. Send only admits nil or buffered reply
// channels, so a reply is lost only when the requester left one already full.
func deliver[T any](ch chan<- T, v T) {
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	default:
	}
}

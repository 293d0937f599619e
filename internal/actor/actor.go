package actor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/dreamware/shardkv/internal/storage"
)

// ErrStopped is returned when sending to, or waiting on, an actor that has
// processed Shutdown.
var ErrStopped = errors.New("actor stopped")

// ErrNilOperation is returned by Send for a nil Operation.
var ErrNilOperation = errors.New("nil operation")

// ErrUnbufferedReply is returned by Send for a Get or Find whose Reply
// channel has no buffer. Replies are delivered without blocking, so such a
// channel could miss its reply.
var ErrUnbufferedReply = errors.New("reply channel must be buffered")

// State is the actor lifecycle state.
type State int32

const (
	// Running means the actor is consuming its mailbox.
	Running State = iota
	// Stopped means Shutdown was processed; nothing else will be.
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Option configures an Actor.
type Option func(*options)

type options struct {
	log logr.Logger
}

// WithLogger attaches a structured logger. Start and stop are logged at
// V(1), every processed operation at V(2).
func WithLogger(log logr.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// Actor applies Operations to one Store from a single goroutine.
//
// Commands are taken from an unbounded FIFO mailbox in send order and each
// runs to completion before the next starts, so all traffic funneled
// through one Actor is serialized. Callers that use the Store directly are
// not ordered with respect to the actor.
//
// Lifecycle: New starts the actor in Running. Processing a Shutdown moves
// it to Stopped; the mailbox is then closed and anything still queued is
// discarded without being applied.
type Actor[K comparable, V any] struct {
	log       logr.Logger
	store     *storage.Store[K, V]
	inbox     *mailbox[Operation[K, V]]
	done      chan struct{}
	processed atomic.Uint64
	state     atomic.Int32
}

// New starts an actor consuming commands against store.
func New[K comparable, V any](store *storage.Store[K, V], opts ...Option) *Actor[K, V] {
	o := options{log: logr.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	a := &Actor[K, V]{
		log:   o.log.WithValues("store", store.ID()),
		store: store,
		inbox: newMailbox[Operation[K, V]](),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Actor[K, V]) run() {
	defer close(a.done)
	a.log.V(1).Info("actor started")

	for {
		op := a.inbox.pop()
		stop := op.apply(a.store)
		a.processed.Add(1)
		a.log.V(2).Info("operation applied", "op", op.kind())
		if stop {
			break
		}
	}

	a.state.Store(int32(Stopped))
	dropped := a.inbox.close()
	a.log.V(1).Info("actor stopped", "processed", a.processed.Load(), "dropped", dropped)
}

// Send enqueues op without blocking. It returns ErrStopped once the actor
// has stopped. An op accepted after a Shutdown was queued, but before that
// Shutdown was processed, is silently discarded.
//
// A Get or Find must carry a nil Reply or one with capacity of at least one.
func (a *Actor[K, V]) Send(op Operation[K, V]) error {
	if op == nil {
		return ErrNilOperation
	}
	if r, ok := op.(replier); ok && !r.replyBuffered() {
		return fmt.Errorf("%s: %w", op.kind(), ErrUnbufferedReply)
	}
	if !a.inbox.push(op) {
		return ErrStopped
	}
	return nil
}

// Insert enqueues an Insert.
func (a *Actor[K, V]) Insert(key K, value V) error {
	return a.Send(Insert[K, V]{Key: key, Value: value})
}

// Remove enqueues a Remove.
func (a *Actor[K, V]) Remove(key K) error {
	return a.Send(Remove[K, V]{Key: key})
}

// Clear enqueues a Clear.
func (a *Actor[K, V]) Clear() error {
	return a.Send(Clear[K, V]{})
}

// Shutdown enqueues a Shutdown. Operations already queued ahead of it are
// still applied. Use Done to wait for the actor to stop.
func (a *Actor[K, V]) Shutdown() error {
	return a.Send(Shutdown[K, V]{})
}

// Get sends a Get and waits for its reply. Commands queued earlier through
// this actor are applied first.
func (a *Actor[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	reply := make(chan Lookup[V], 1)
	var zero V
	if err := a.Send(Get[K, V]{Key: key, Reply: reply}); err != nil {
		return zero, false, err
	}
	r, err := await(ctx, a.done, reply)
	if err != nil {
		return zero, false, err
	}
	return r.Value, r.Found, nil
}

// Find sends a Find and waits for its reply.
func (a *Actor[K, V]) Find(ctx context.Context, pred storage.Predicate[K, V]) ([]storage.Entry[K, V], error) {
	reply := make(chan FindResult[K, V], 1)
	if err := a.Send(Find[K, V]{Predicate: pred, Reply: reply}); err != nil {
		return nil, err
	}
	r, err := await(ctx, a.done, reply)
	if err != nil {
		return nil, err
	}
	return r.Entries, r.Err
}

// Done is closed once the actor has stopped.
func (a *Actor[K, V]) Done() <-chan struct{} {
	return a.done
}

// State returns the current lifecycle state.
func (a *Actor[K, V]) State() State {
	return State(a.state.Load())
}

// Processed returns how many operations have been applied.
func (a *Actor[K, V]) Processed() uint64 {
	return a.processed.Load()
}

// Pending returns how many operations are queued.
func (a *Actor[K, V]) Pending() int {
	return a.inbox.len()
}

// await blocks for a single reply. A reply delivered just before the actor
// stopped is still returned.
func await[T any](ctx context.Context, done <-chan struct{}, reply <-chan T) (T, error) {
	var zero T
	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-done:
		select {
		case r := <-reply:
			return r, nil
		default:
			return zero, ErrStopped
		}
	}
}

package actor

import (
	"sync"

	"github.com/eapache/queue"
)

// mailbox is an unbounded FIFO with a single consumer. push never blocks;
// pop blocks until an item is available.
type mailbox[T any] struct {
	q      *queue.Queue
	cond   *sync.Cond
	mu     sync.Mutex
	closed bool
}

func newMailbox[T any]() *mailbox[T] {
	m := &mailbox[T]{q: queue.New()}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// push appends item. It reports false once the mailbox is closed.
func (m *mailbox[T]) push(item T) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.q.Add(item)
	m.cond.Signal()
	return true
}

// pop removes the oldest item, waiting for one if the mailbox is empty.
func (m *mailbox[T]) pop() T {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.q.Length() == 0 {
		m.cond.Wait()
	}
	return m.q.Remove().(T)
}

// close rejects further pushes and discards anything still queued,
// returning how many items were dropped.
func (m *mailbox[T]) close() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	n := m.q.Length()
	m.q = queue.New()
	return n
}

func (m *mailbox[T]) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.q.Length()
}

package parallel

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidSize is returned by NewPool for a non-positive size.
var ErrInvalidSize = errors.New("pool size must be positive")

// ErrTaskPanic wraps a panic recovered from a fan-out callback.
var ErrTaskPanic = errors.New("task panicked")

// Pool bounds how many fan-out tasks run at once. The size is fixed at
// construction and applies to each helper call independently, so helpers
// may be nested (a BatchProcess callback may itself call
// ScopedSegmentProcess on the same Pool) without deadlocking.
//
// A Pool holds no goroutines between calls and is safe for concurrent use.
type Pool struct {
	log  logr.Logger
	size int
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger attaches a logger used to report recovered task panics.
func WithLogger(log logr.Logger) Option {
	return func(p *Pool) {
		p.log = log
	}
}

// NewPool returns a pool running at most size tasks concurrently.
func NewPool(size int, opts ...Option) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}
	p := &Pool{size: size, log: logr.Discard()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Size returns the concurrency bound.
func (p *Pool) Size() int {
	return p.size
}

// run executes task(0..n-1) on at most p.size goroutines and returns once
// all of them have finished. Panics are recovered per task and combined
// into the returned error.
func (p *Pool) run(n int, task func(i int)) error {
	errs := make([]error, n)

	var g errgroup.Group
	g.SetLimit(p.size)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			errs[i] = p.safe(i, task)
			return nil
		})
	}
	_ = g.Wait()

	return multierr.Combine(errs...)
}

func (p *Pool) safe(i int, task func(int)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: task %d: %v", ErrTaskPanic, i, r)
			p.log.Error(err, "recovered task panic", "task", i)
		}
	}()
	task(i)
	return nil
}

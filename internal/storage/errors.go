package storage

import "errors"

// ErrInvalidConfig is returned by New when the store cannot be constructed
// from the supplied parameters, such as a zero shard count.
var ErrInvalidConfig = errors.New("invalid store configuration")

// ErrCallbackPanic is returned when a caller-supplied function panicked while
// the store was running it. The panic is recovered, every lock taken for the
// call is released and the store remains usable; only the failing call
// reports an error.
var ErrCallbackPanic = errors.New("callback panicked")

package storage

import "github.com/go-logr/logr"

// Option configures a Store at construction time.
type Option[K comparable, V any] func(*options[K, V])

type options[K comparable, V any] struct {
	seed      *uint64
	hasher    Hasher[K]
	copyValue func(V) V
	log       logr.Logger
}

func defaultOptions[K comparable, V any]() options[K, V] {
	return options[K, V]{
		hasher:    DefaultHasher[K],
		copyValue: func(v V) V { return v },
		log:       logr.Discard(),
	}
}

// WithSeed fixes the routing seed instead of drawing a random one.
// Two stores built with the same seed, shard count and hasher place every key
// in the same shard.
func WithSeed[K comparable, V any](seed uint64) Option[K, V] {
	return func(o *options[K, V]) {
		o.seed = &seed
	}
}

// WithHasher replaces DefaultHasher for shard routing.
func WithHasher[K comparable, V any](h Hasher[K]) Option[K, V] {
	return func(o *options[K, V]) {
		if h != nil {
			o.hasher = h
		}
	}
}

// WithCopyFunc sets how Clone copies values. The default is plain
// assignment, which shares any memory the value points to.
func WithCopyFunc[K comparable, V any](fn func(V) V) Option[K, V] {
	return func(o *options[K, V]) {
		if fn != nil {
			o.copyValue = fn
		}
	}
}

// WithLogger attaches a structured logger. Lifecycle events are logged at
// V(1); recovered callback panics are logged as errors.
func WithLogger[K comparable, V any](log logr.Logger) Option[K, V] {
	return func(o *options[K, V]) {
		o.log = log
	}
}

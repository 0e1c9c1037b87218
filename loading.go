package cached

import (
	"context"
	"time"
)

// LoaderFunc computes the value for a set of call arguments on a cache
// miss.
type LoaderFunc[T any] func(ctx context.Context, args ...any) (T, error)

// Loading is a read-through cache: Get serves hits from the underlying
// cache and otherwise invokes the loader synchronously, stores its
// result for the configured TTL and returns it. Concurrent misses on
// the same key each invoke the loader and the last write wins;
// single-flight deduplication is deliberately not provided.
type Loading[T any] struct {
	cache  Cache
	loader LoaderFunc[T]
	ttl    time.Duration
}

// NewLoading wraps cache with loader. Values loaded on miss are stored
// with ttl.
func NewLoading[T any](cache Cache, ttl time.Duration, loader LoaderFunc[T]) *Loading[T] {
	return &Loading[T]{cache: cache, loader: loader, ttl: ttl}
}

// Get returns the value for args, loading and storing it first when
// absent or expired. The key is derived from args the same way MakeKey
// derives any call key. Loader errors propagate unchanged and nothing
// is cached for that call. A failed cache write after a successful load
// does not fail the call; the loaded value is still returned.
func (l *Loading[T]) Get(ctx context.Context, args ...any) (T, error) {
	key := MakeKey(args, nil, false)

	found, val, err := l.cache.Get(ctx, key)
	if err != nil {
		var zero T
		return zero, err
	}
	if found {
		out, err := decodeAs[T](serializerOf(l.cache), val)
		if err != nil {
			var zero T
			return zero, err
		}
		return out, nil
	}

	out, err := l.loader(ctx, args...)
	if err != nil {
		var zero T
		return zero, err
	}
	_ = l.cache.Set(ctx, key, out, l.ttl)
	return out, nil
}

// Close forwards to the underlying cache.
func (l *Loading[T]) Close() error {
	return l.cache.Close()
}

package cached

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

type compositeCache struct {
	caches []Cache
}

var _ Cache = (*compositeCache)(nil)

// NewComposite chains caches into one: Get returns the first hit
// checked left to right, Set and Remove fan out to every tier, Close
// closes every tier. A common topology is an ephemeral L1 in front of a
// durable L2. At least one cache must be provided; panics if empty.
func NewComposite(caches ...Cache) Cache {
	if len(caches) == 0 {
		panic("cached: NewComposite requires at least one cache")
	}
	return &compositeCache{caches: caches}
}

func (c *compositeCache) Get(ctx context.Context, key any, opts ...CallOption) (bool, any, error) {
	for _, cache := range c.caches {
		found, val, err := cache.Get(ctx, key, opts...)
		if err != nil {
			return false, nil, err
		}
		if found {
			return true, val, nil
		}
	}
	return false, nil, nil
}

func (c *compositeCache) Set(ctx context.Context, key, val any, ttl time.Duration, opts ...CallOption) error {
	var firstErr error
	for _, cache := range c.caches {
		if err := cache.Set(ctx, key, val, ttl, opts...); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *compositeCache) Remove(ctx context.Context, key any, opts ...CallOption) (bool, error) {
	anyFound := false
	for _, cache := range c.caches {
		found, err := cache.Remove(ctx, key, opts...)
		if err != nil {
			return anyFound, err
		}
		if found {
			anyFound = true
		}
	}
	return anyFound, nil
}

// Clear clears every tier that supports it; tiers reporting
// ErrNotImplemented are skipped.
func (c *compositeCache) Clear(ctx context.Context) error {
	var firstErr error
	for _, cache := range c.caches {
		if err := cache.Clear(ctx); err != nil && !errors.Is(err, ErrNotImplemented) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *compositeCache) Close() error {
	var firstErr error
	for _, cache := range c.caches {
		if err := cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// serializer reports the first tier's codec; Get returns the first hit,
// so that is the tier whose payloads typed retrieval usually sees.
func (c *compositeCache) serializer() Serializer {
	return serializerOf(c.caches[0])
}

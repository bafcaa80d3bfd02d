package marketcache

import (
	"context"
	"time"
)

// GetAs is Get for a statically known value type.
func GetAs[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var v T
	if !c.Get(ctx, key, &v) {
		var zero T
		return zero, false
	}
	return v, true
}

// Typed is a view of a Cache that stores and returns values of type T with a
// fixed TTL. T must survive a JSON round trip unchanged.
type Typed[T any] struct {
	cache *Cache
	ttl   time.Duration
}

// NewTyped returns a typed view over c. A zero ttl uses the cache default.
func NewTyped[T any](c *Cache, ttl time.Duration) *Typed[T] {
	return &Typed[T]{cache: c, ttl: ttl}
}

// Get returns the live value stored under key.
func (t *Typed[T]) Get(ctx context.Context, key string) (T, bool) {
	return GetAs[T](ctx, t.cache, key)
}

// Set stores v under key.
func (t *Typed[T]) Set(ctx context.Context, key string, v T) {
	t.cache.Set(ctx, key, v, t.ttl)
}

// Fetch returns the cached value for key or loads, stores and returns a
// fresh one.
func (t *Typed[T]) Fetch(ctx context.Context, key string, load func(context.Context) (T, error), opts ...FetchOption) (T, error) {
	return Fetch(ctx, t.cache, key, t.ttl, load, opts...)
}

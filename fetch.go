package marketcache

import (
	"context"
	"fmt"
	"time"
)

type fetchOptions struct {
	force bool
}

// FetchOption tunes a Fetch call.
type FetchOption func(*fetchOptions)

// ForceRefresh skips the cache read and always calls the loader, still
// storing its result (stale-while-revalidate).
func ForceRefresh() FetchOption {
	return func(o *fetchOptions) { o.force = true }
}

// Fetch implements the read-through pattern used in front of upstream APIs:
// return the live cached value for key, otherwise run load, store its
// result for ttl and return it. Concurrent misses on the same key share a
// single load. Load errors are returned to every waiting caller and are
// never cached.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error), opts ...FetchOption) (T, error) {
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	if !o.force {
		if v, ok := GetAs[T](ctx, c, key); ok {
			return v, nil
		}
	}

	res, err, _ := c.loads.Do(key, func() (any, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, v, ttl)
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	v, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("cache fetch %q: loaded %T, want %T", key, res, zero)
	}
	return v, nil
}

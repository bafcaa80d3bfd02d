package storage

import (
	"context"
	"errors"
	"io"

	"github.com/ferro-labs/market-cache/internal/circuitbreaker"
	"github.com/ferro-labs/market-cache/internal/metrics"
)

// Breaker guards a Backend with a circuit breaker. While the circuit is open
// every operation fails immediately with circuitbreaker.ErrCircuitOpen.
// Init is passed through unguarded.
type Breaker struct {
	next Backend
	cb   *circuitbreaker.CircuitBreaker
}

// NewBreaker wraps next. The breaker state is mirrored into the
// marketcache_storage_breaker_state gauge.
func NewBreaker(next Backend, s circuitbreaker.Settings) *Breaker {
	userHook := s.OnStateChange
	s.OnStateChange = func(from, to circuitbreaker.State) {
		metrics.BreakerState.Set(float64(to))
		if userHook != nil {
			userHook(from, to)
		}
	}
	return &Breaker{next: next, cb: circuitbreaker.New(s)}
}

// State exposes the breaker state.
func (b *Breaker) State() circuitbreaker.State {
	return b.cb.State()
}

// Init opens the wrapped backend.
func (b *Breaker) Init(ctx context.Context) error {
	return b.next.Init(ctx)
}

// Get reads through the breaker.
func (b *Breaker) Get(ctx context.Context, key string) (rec Record, ok bool, err error) {
	err = b.cb.Do(func() error {
		var innerErr error
		rec, ok, innerErr = b.next.Get(ctx, key)
		return innerErr
	}, notCountable)
	return rec, ok, err
}

// Put writes through the breaker.
func (b *Breaker) Put(ctx context.Context, rec Record) error {
	return b.cb.Do(func() error { return b.next.Put(ctx, rec) }, notCountable)
}

// Delete deletes through the breaker.
func (b *Breaker) Delete(ctx context.Context, key string) error {
	return b.cb.Do(func() error { return b.next.Delete(ctx, key) }, notCountable)
}

// DeleteAll truncates through the breaker.
func (b *Breaker) DeleteAll(ctx context.Context) error {
	return b.cb.Do(func() error { return b.next.DeleteAll(ctx) }, notCountable)
}

// Keys enumerates through the breaker.
func (b *Breaker) Keys(ctx context.Context) (keys []string, err error) {
	err = b.cb.Do(func() error {
		var innerErr error
		keys, innerErr = b.next.Keys(ctx)
		return innerErr
	}, notCountable)
	return keys, err
}

// List enumerates through the breaker.
func (b *Breaker) List(ctx context.Context) (recs []Record, err error) {
	err = b.cb.Do(func() error {
		var innerErr error
		recs, innerErr = b.next.List(ctx)
		return innerErr
	}, notCountable)
	return recs, err
}

// Close closes the wrapped backend when it is closable.
func (b *Breaker) Close() error {
	if c, ok := b.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// notCountable reports errors that say nothing about backend health.
func notCountable(err error) bool {
	return errors.Is(err, ErrNotInitialized) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

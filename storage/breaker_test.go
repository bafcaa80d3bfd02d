package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ferro-labs/market-cache/internal/circuitbreaker"
)

// flakyBackend fails every call with err while err is non-nil.
type flakyBackend struct {
	*Memory
	err   error
	calls int
}

func (f *flakyBackend) Get(ctx context.Context, key string) (Record, bool, error) {
	f.calls++
	if f.err != nil {
		return Record{}, false, f.err
	}
	return f.Memory.Get(ctx, key)
}

func (f *flakyBackend) Put(ctx context.Context, rec Record) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return f.Memory.Put(ctx, rec)
}

func TestBreaker_OpensAndShortCircuits(t *testing.T) {
	ctx := context.Background()
	inner := &flakyBackend{Memory: NewMemory(), err: errors.New("disk I/O error")}
	b := NewBreaker(inner, circuitbreaker.Settings{FailureThreshold: 2, Timeout: time.Minute})
	if err := b.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, _, err := b.Get(ctx, "k"); err == nil {
			t.Fatal("expected backend error")
		}
	}
	if b.State() != circuitbreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", b.State())
	}

	_, _, err := b.Get(ctx, "k")
	if !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected backend to be skipped while open, calls=%d", inner.calls)
	}
}

func TestBreaker_PassesThroughWhenHealthy(t *testing.T) {
	ctx := context.Background()
	b := NewBreaker(NewMemory(), circuitbreaker.Settings{})
	_ = b.Init(ctx)

	now := time.Now()
	if err := b.Put(ctx, Record{Key: "k", Value: []byte("1"), CreatedAt: now, ExpiresAt: now}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok, err := b.Get(ctx, "k"); !ok || err != nil {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	keys, err := b.Keys(ctx)
	if err != nil || len(keys) != 1 {
		t.Fatalf("unexpected keys %v err=%v", keys, err)
	}
	recs, err := b.List(ctx)
	if err != nil || len(recs) != 1 {
		t.Fatalf("unexpected records %v err=%v", recs, err)
	}
	if err := b.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := b.DeleteAll(ctx); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestBreaker_NotInitializedDoesNotTrip(t *testing.T) {
	b := NewBreaker(NewMemory(), circuitbreaker.Settings{FailureThreshold: 1, Timeout: time.Minute})
	for i := 0; i < 3; i++ {
		_, _, _ = b.Get(context.Background(), "k")
	}
	if b.State() != circuitbreaker.StateClosed {
		t.Fatalf("expected closed breaker, got %s", b.State())
	}
}

package marketcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetch_LoadsOnceThenHits(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	var calls int
	load := func(context.Context) (quote, error) {
		calls++
		return quote{Symbol: "AAPL", Price: 150}, nil
	}

	for i := 0; i < 3; i++ {
		q, err := Fetch(ctx, c, "getStockInfo:AAPL", time.Hour, load)
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if q.Price != 150 {
			t.Fatalf("price = %v", q.Price)
		}
	}
	if calls != 1 {
		t.Fatalf("loader called %d times, want 1", calls)
	}
}

func TestFetch_ReloadsAfterExpiry(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache(t)

	var calls int
	load := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	if v, _ := Fetch(ctx, c, "k", time.Second, load); v != 1 {
		t.Fatalf("first Fetch = %d", v)
	}
	clock.Advance(time.Minute)
	if v, _ := Fetch(ctx, c, "k", time.Second, load); v != 2 {
		t.Fatalf("Fetch after expiry = %d, want 2", v)
	}
}

func TestFetch_ErrorNotCached(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	upstream := errors.New("rate limited")
	_, err := Fetch(ctx, c, "k", time.Hour, func(context.Context) (string, error) {
		return "", upstream
	})
	if !errors.Is(err, upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if st := c.Stats(ctx); st.TotalItems != 0 {
		t.Fatal("failed loads must not be cached")
	}

	v, err := Fetch(ctx, c, "k", time.Hour, func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Fatalf("Fetch = %q, %v", v, err)
	}
}

func TestFetch_ForceRefresh(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)
	c.Set(ctx, "k", "stale", time.Hour)

	v, err := Fetch(ctx, c, "k", time.Hour, func(context.Context) (string, error) {
		return "fresh", nil
	}, ForceRefresh())
	if err != nil || v != "fresh" {
		t.Fatalf("Fetch = %q, %v", v, err)
	}
	got, ok := GetAs[string](ctx, c, "k")
	if !ok || got != "fresh" {
		t.Fatalf("cached value = %q, want fresh", got)
	}
}

func TestFetch_DeduplicatesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	const n = 8
	var started, wg sync.WaitGroup
	results := make(chan int, n)
	for i := 0; i < n; i++ {
		started.Add(1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			v, err := Fetch(ctx, c, "k", time.Hour, load)
			if err != nil {
				t.Errorf("Fetch: %v", err)
			}
			results <- v
		}()
	}
	started.Wait()
	// Let the goroutines reach the shared load before releasing it.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	for v := range results {
		if v != 42 {
			t.Fatalf("got %d, want 42", v)
		}
	}
	if calls.Load() < 1 || calls.Load() > n {
		t.Fatalf("unexpected loader calls %d", calls.Load())
	}
	if calls.Load() == n {
		t.Fatalf("expected concurrent misses to share a load, got %d calls", calls.Load())
	}
}

func TestFetch_DisabledCacheStillLoads(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)
	c.state.Store(stateDisabled)

	v, err := Fetch(ctx, c, "k", time.Hour, func(context.Context) (string, error) {
		return "live", nil
	})
	if err != nil || v != "live" {
		t.Fatalf("Fetch = %q, %v", v, err)
	}
}

func TestTyped(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache(t)
	quotes := NewTyped[quote](c, time.Minute)

	if _, ok := quotes.Get(ctx, "getStockInfo:AAPL"); ok {
		t.Fatal("expected miss")
	}
	quotes.Set(ctx, "getStockInfo:AAPL", quote{Symbol: "AAPL", Price: 150})
	q, ok := quotes.Get(ctx, "getStockInfo:AAPL")
	if !ok || q.Price != 150 {
		t.Fatalf("Get = %+v, %v", q, ok)
	}

	clock.Advance(2 * time.Minute)
	if _, ok := quotes.Get(ctx, "getStockInfo:AAPL"); ok {
		t.Fatal("expected typed ttl to apply")
	}

	q, err := quotes.Fetch(ctx, "getStockInfo:MSFT", func(context.Context) (quote, error) {
		return quote{Symbol: "MSFT", Price: 410}, nil
	})
	if err != nil || q.Symbol != "MSFT" {
		t.Fatalf("Fetch = %+v, %v", q, err)
	}
}

func TestGetAs_TypeMismatch(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)
	c.Set(ctx, "k", "text", time.Hour)

	if v, ok := GetAs[int](ctx, c, "k"); ok || v != 0 {
		t.Fatalf("GetAs[int] = %d, %v; want zero miss", v, ok)
	}
}

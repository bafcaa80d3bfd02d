package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinBurst(t *testing.T) {
	l := New(10, 5)
	for i := 0; i < 5; i++ {
		if !l.Allow() {
			t.Fatalf("expected allow on request %d within burst", i+1)
		}
	}
}

func TestBlockWhenDepleted(t *testing.T) {
	l := New(10, 2)
	l.Allow()
	l.Allow()
	if l.Allow() {
		t.Fatal("expected rate limit after burst exhausted")
	}
}

func TestRefillOverTime(t *testing.T) {
	l := New(1000, 1) // 1000 rps, burst 1
	l.Allow()         // exhaust the burst
	time.Sleep(2 * time.Millisecond)
	if !l.Allow() {
		t.Fatal("expected allow after refill")
	}
}

func TestReserveReportsWait(t *testing.T) {
	now := time.Unix(1700000000, 0)
	l := newLimiter(2, 1, func() time.Time { return now })
	if ok, _ := l.Reserve(); !ok {
		t.Fatal("expected first reserve to succeed")
	}
	ok, wait := l.Reserve()
	if ok {
		t.Fatal("expected second reserve to be denied")
	}
	if wait != 500*time.Millisecond {
		t.Fatalf("expected 500ms wait, got %s", wait)
	}
}

func TestStoreCreatesPerKeyLimiters(t *testing.T) {
	s := NewStore(100, 10)
	for i := 0; i < 10; i++ {
		if !s.Allow("key-a") {
			t.Fatalf("expected allow on key-a request %d", i+1)
		}
	}
	// Key-b should have its own fresh bucket.
	if !s.Allow("key-b") {
		t.Fatal("expected allow on key-b (fresh limiter)")
	}
}

func TestStorePrune(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := NewStore(1, 1)
	s.now = func() time.Time { return now }

	s.Allow("old")
	now = now.Add(10 * time.Minute)
	s.Allow("recent")

	if n := s.Prune(5 * time.Minute); n != 1 {
		t.Fatalf("expected 1 pruned limiter, got %d", n)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 remaining limiter, got %d", s.Len())
	}
	// A pruned key starts with a full bucket.
	if !s.Allow("old") {
		t.Fatal("expected fresh bucket for pruned key")
	}
}

package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

func TestInitialStateClosed(t *testing.T) {
	cb := New(Settings{FailureThreshold: 3, Timeout: 10 * time.Second})
	if cb.State() != StateClosed {
		t.Fatalf("expected closed, got %s", cb.State())
	}
	if !cb.Allow() {
		t.Fatal("expected Allow=true when closed")
	}
}

func TestOpensAfterThreshold(t *testing.T) {
	cb := New(Settings{FailureThreshold: 3, Timeout: 10 * time.Second})
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open after 3 failures, got %s", cb.State())
	}
	if cb.Allow() {
		t.Fatal("expected Allow=false when open")
	}
}

func TestTransitionsToHalfOpenAfterTimeout(t *testing.T) {
	cb := New(Settings{FailureThreshold: 1, Timeout: time.Minute})
	now := time.Now()
	cb.now = func() time.Time { return now }
	cb.RecordFailure()

	now = now.Add(2 * time.Minute)
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half_open after timeout, got %s", cb.State())
	}
	if !cb.Allow() {
		t.Fatal("expected Allow=true when half_open")
	}
}

func TestClosesAfterSuccessInHalfOpen(t *testing.T) {
	cb := New(Settings{FailureThreshold: 1, Timeout: time.Millisecond})
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	_ = cb.State() // trigger half-open transition
	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after success in half_open, got %s", cb.State())
	}
}

func TestReopensOnFailureInHalfOpen(t *testing.T) {
	cb := New(Settings{FailureThreshold: 1, Timeout: time.Millisecond})
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	_ = cb.State()
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("expected open after failure in half_open, got %s", cb.State())
	}
}

func TestSuccessResetFailureCount(t *testing.T) {
	cb := New(Settings{FailureThreshold: 3, Timeout: 10 * time.Second})
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != StateClosed {
		t.Fatalf("expected still closed (failure count reset), got %s", cb.State())
	}
}

func TestDo_RejectsWhenOpen(t *testing.T) {
	cb := New(Settings{FailureThreshold: 1, Timeout: time.Minute})
	boom := errors.New("boom")

	if err := cb.Do(func() error { return boom }, nil); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	called := false
	err := cb.Do(func() error { called = true; return nil }, nil)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Fatal("fn must not run while the circuit is open")
	}
}

func TestDo_IgnoredErrorsCountAsSuccess(t *testing.T) {
	cb := New(Settings{FailureThreshold: 1, Timeout: time.Minute})
	notFound := errors.New("not found")
	ignore := func(err error) bool { return errors.Is(err, notFound) }

	for i := 0; i < 3; i++ {
		_ = cb.Do(func() error { return notFound }, ignore)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed, got %s", cb.State())
	}
}

func TestOnStateChange(t *testing.T) {
	var transitions []string
	cb := New(Settings{
		FailureThreshold: 1,
		Timeout:          time.Minute,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	cb.RecordFailure()
	cb.RecordFailure() // already open: no transition

	if len(transitions) != 1 || transitions[0] != "closed->open" {
		t.Fatalf("unexpected transitions: %v", transitions)
	}
}

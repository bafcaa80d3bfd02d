// Package storage defines the persistent key/value contract the cache is
// layered on, together with its in-memory, SQL (SQLite/Postgres) and
// circuit-breaker implementations.
//
// Backends are opened lazily through Init. Init is idempotent: concurrent
// callers wait on a single open attempt and every caller observes the same
// outcome for the lifetime of the backend value.
package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrUnavailable is wrapped by Init failures: the platform refused to
	// open or create the store.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrNotInitialized is returned by operations attempted before Init.
	ErrNotInitialized = errors.New("storage not initialized")
)

// Record is the persisted form of a cache entry. Value holds the encoded
// payload; the storage layer never interprets it.
type Record struct {
	Key       string
	Value     []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Backend is a durable key/value store. Implementations must be safe for
// concurrent use.
type Backend interface {
	// Init opens or creates the underlying store.
	Init(ctx context.Context) error
	// Get returns the record for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (rec Record, ok bool, err error)
	// Put creates or atomically overwrites the record for rec.Key.
	Put(ctx context.Context, rec Record) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// DeleteAll removes every record.
	DeleteAll(ctx context.Context) error
	// Keys enumerates every key currently stored.
	Keys(ctx context.Context) ([]string, error)
	// List enumerates every record currently stored in one pass.
	List(ctx context.Context) ([]Record, error)
}

// opener serialises the first Init and remembers its outcome.
type opener struct {
	initMu sync.Mutex
	done   bool
	err    error
	opened atomic.Bool
}

func (o *opener) open(fn func() error) error {
	o.initMu.Lock()
	defer o.initMu.Unlock()
	if o.done {
		return o.err
	}
	o.err = fn()
	o.done = true
	if o.err == nil {
		o.opened.Store(true)
	}
	return o.err
}

// ready reports whether operations may proceed.
func (o *opener) ready() error {
	if o.opened.Load() {
		return nil
	}
	o.initMu.Lock()
	defer o.initMu.Unlock()
	if !o.done {
		return ErrNotInitialized
	}
	return o.err
}

// Package marketcache is a persistent response cache for rate-limited
// market-data and LLM-analysis calls. Values are stored as JSON with a
// per-entry TTL on a pluggable storage backend (SQLite, Postgres or memory).
//
// The cache is fail-open: storage faults are logged, counted and reported to
// an optional error handler, and the operation degrades to a miss (reads) or
// a no-op (writes). Only Init returns an error, when the backend cannot be
// opened at all; after that every Get misses and every Set is dropped.
package marketcache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ferro-labs/market-cache/internal/logging"
	"github.com/ferro-labs/market-cache/internal/metrics"
	"github.com/ferro-labs/market-cache/storage"
)

// DefaultTTL applies when Set is called with a zero ttl.
const DefaultTTL = time.Hour

// Stats is a point-in-time snapshot of the cache contents.
type Stats struct {
	TotalItems   int      `json:"totalItems"`
	ActiveItems  int      `json:"activeItems"`
	ExpiredItems int      `json:"expiredItems"`
	CacheKeys    []string `json:"cacheKeys"`
}

// EntryInfo describes one stored entry for inspection surfaces.
type EntryInfo struct {
	Key       string          `json:"key"`
	CreatedAt time.Time       `json:"createdAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Expired   bool            `json:"expired"`
	Size      int             `json:"size"`
	Value     json.RawMessage `json:"value"`
}

// Option configures a Cache.
type Option func(*Cache)

// WithDefaultTTL overrides DefaultTTL. Non-positive values are ignored.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithErrorHandler registers fn to receive every swallowed fault.
func WithErrorHandler(fn func(*OpError)) Option {
	return func(c *Cache) { c.onError = fn }
}

// WithEvictOnRead controls whether Get deletes the expired entries it finds.
// Enabled by default.
func WithEvictOnRead(on bool) Option {
	return func(c *Cache) { c.evictOnRead = on }
}

// WithLogger sets the logger used for cache diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

const (
	stateUnopened int32 = iota
	stateReady
	stateDisabled
)

// Cache is a TTL key/value cache over a storage.Backend. Create one per
// process with New and share it; all methods are safe for concurrent use.
type Cache struct {
	backend     storage.Backend
	defaultTTL  time.Duration
	now         func() time.Time
	onError     func(*OpError)
	evictOnRead bool
	log         *slog.Logger

	initMu  sync.Mutex
	state   atomic.Int32
	initErr error

	loads singleflight.Group
}

// New creates a cache over backend. The backend is opened lazily by the
// first operation, or eagerly with Init.
func New(backend storage.Backend, opts ...Option) *Cache {
	c := &Cache{
		backend:     backend,
		defaultTTL:  DefaultTTL,
		now:         time.Now,
		evictOnRead: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init opens the storage backend. It is safe to call repeatedly and from
// several goroutines; all callers observe the outcome of the first attempt.
// On failure the returned error matches ErrStorageUnavailable and the cache
// stays disabled.
func (c *Cache) Init(ctx context.Context) error {
	switch c.state.Load() {
	case stateReady:
		return nil
	case stateDisabled:
		return c.initErr
	}

	c.initMu.Lock()
	defer c.initMu.Unlock()
	switch c.state.Load() {
	case stateReady:
		return nil
	case stateDisabled:
		return c.initErr
	}

	// The backend handle outlives the caller that happened to open it.
	if err := c.backend.Init(context.WithoutCancel(ctx)); err != nil {
		opErr := &OpError{Op: "init", Kind: ErrStorageUnavailable, Err: err}
		c.initErr = opErr
		c.state.Store(stateDisabled)
		c.report(ctx, opErr)
		return opErr
	}
	c.state.Store(stateReady)
	return nil
}

// Disabled reports whether Init failed and the cache is bypassed.
func (c *Cache) Disabled() bool {
	return c.state.Load() == stateDisabled
}

// DefaultTTL returns the TTL applied when Set receives a zero ttl.
func (c *Cache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

func (c *Cache) ready(ctx context.Context) bool {
	return c.state.Load() == stateReady || c.Init(ctx) == nil
}

// Get decodes the live entry stored under key into dst and reports whether
// it did. Absent, expired and unreadable entries are all misses. An expired
// entry is deleted on the way out unless evict-on-read is disabled.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	defer observe("get", time.Now())
	if !c.ready(ctx) {
		metrics.Requests.WithLabelValues(metrics.ResultDisabled).Inc()
		return false
	}

	now := c.now()
	rec, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		metrics.Requests.WithLabelValues(metrics.ResultError).Inc()
		c.report(ctx, &OpError{Op: "get", Key: key, Kind: ErrRead, Err: err})
		return false
	}
	if !ok {
		metrics.Requests.WithLabelValues(metrics.ResultMiss).Inc()
		return false
	}

	if expired(rec, now) {
		metrics.Requests.WithLabelValues(metrics.ResultExpired).Inc()
		if c.evictOnRead {
			if err := c.backend.Delete(ctx, key); err != nil {
				c.report(ctx, &OpError{Op: "evict", Key: key, Kind: ErrWrite, Err: err})
			} else {
				metrics.Evictions.WithLabelValues(metrics.CauseExpiredRead).Inc()
			}
		}
		return false
	}

	if err := unwrap(rec, dst); err != nil {
		metrics.Requests.WithLabelValues(metrics.ResultError).Inc()
		c.report(ctx, &OpError{Op: "get", Key: key, Kind: ErrRead, Err: err})
		return false
	}
	metrics.Requests.WithLabelValues(metrics.ResultHit).Inc()
	return true
}

// Set stores value under key for ttl, replacing any existing entry. A zero
// ttl selects the default TTL; a negative ttl stores an entry that is
// already expired.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	defer observe("set", time.Now())
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if !c.ready(ctx) {
		metrics.Writes.WithLabelValues("disabled").Inc()
		return
	}

	rec, err := wrap(key, value, ttl, c.now())
	if err != nil {
		metrics.Writes.WithLabelValues("error").Inc()
		c.report(ctx, &OpError{Op: "set", Key: key, Kind: ErrWrite, Err: err})
		return
	}
	if err := c.backend.Put(ctx, rec); err != nil {
		metrics.Writes.WithLabelValues("error").Inc()
		c.report(ctx, &OpError{Op: "set", Key: key, Kind: ErrWrite, Err: err})
		return
	}
	metrics.Writes.WithLabelValues("ok").Inc()
}

// Delete removes the entry stored under key, if any.
func (c *Cache) Delete(ctx context.Context, key string) {
	defer observe("delete", time.Now())
	if !c.ready(ctx) {
		return
	}
	if err := c.backend.Delete(ctx, key); err != nil {
		c.report(ctx, &OpError{Op: "delete", Key: key, Kind: ErrWrite, Err: err})
		return
	}
	metrics.Evictions.WithLabelValues(metrics.CauseDelete).Inc()
}

// Clear removes every entry.
func (c *Cache) Clear(ctx context.Context) {
	defer observe("clear", time.Now())
	if !c.ready(ctx) {
		return
	}
	if err := c.backend.DeleteAll(ctx); err != nil {
		c.report(ctx, &OpError{Op: "clear", Kind: ErrWrite, Err: err})
		return
	}
	logging.FromContext(ctx, c.logger()).Info("cache cleared")
}

// ClearPattern removes every entry whose key contains substring (literal,
// case-sensitive) and returns how many matching keys it attempted to
// delete. The empty substring matches every key.
func (c *Cache) ClearPattern(ctx context.Context, substring string) int {
	defer observe("clear_pattern", time.Now())
	if !c.ready(ctx) {
		return 0
	}
	keys, err := c.backend.Keys(ctx)
	if err != nil {
		c.report(ctx, &OpError{Op: "clear_pattern", Kind: ErrRead, Err: err})
		return 0
	}

	matched := 0
	for _, key := range keys {
		if !strings.Contains(key, substring) {
			continue
		}
		matched++
		if err := c.backend.Delete(ctx, key); err != nil {
			c.report(ctx, &OpError{Op: "clear_pattern", Key: key, Kind: ErrWrite, Err: err})
			continue
		}
		metrics.Evictions.WithLabelValues(metrics.CausePattern).Inc()
	}
	logging.FromContext(ctx, c.logger()).Info("cache pattern cleared", "pattern", substring, "count", matched)
	return matched
}

// Cleanup deletes every entry that has expired and returns how many it
// removed. Live entries are untouched.
func (c *Cache) Cleanup(ctx context.Context) int {
	defer observe("cleanup", time.Now())
	if !c.ready(ctx) {
		return 0
	}
	now := c.now()
	recs, err := c.backend.List(ctx)
	if err != nil {
		c.report(ctx, &OpError{Op: "cleanup", Kind: ErrRead, Err: err})
		return 0
	}

	removed := 0
	for _, rec := range recs {
		if !expired(rec, now) {
			continue
		}
		if err := c.backend.Delete(ctx, rec.Key); err != nil {
			c.report(ctx, &OpError{Op: "cleanup", Key: rec.Key, Kind: ErrWrite, Err: err})
			continue
		}
		removed++
	}
	metrics.Evictions.WithLabelValues(metrics.CauseCleanup).Add(float64(removed))
	return removed
}

// Stats classifies every stored entry against a single timestamp. A disabled
// or failing backend yields an empty snapshot.
func (c *Cache) Stats(ctx context.Context) Stats {
	defer observe("stats", time.Now())
	st := Stats{CacheKeys: []string{}}
	if !c.ready(ctx) {
		return st
	}
	now := c.now()
	recs, err := c.backend.List(ctx)
	if err != nil {
		c.report(ctx, &OpError{Op: "stats", Kind: ErrRead, Err: err})
		return st
	}

	for _, rec := range recs {
		st.TotalItems++
		st.CacheKeys = append(st.CacheKeys, rec.Key)
		if expired(rec, now) {
			st.ExpiredItems++
		} else {
			st.ActiveItems++
		}
	}
	sort.Strings(st.CacheKeys)

	metrics.Entries.WithLabelValues("active").Set(float64(st.ActiveItems))
	metrics.Entries.WithLabelValues("expired").Set(float64(st.ExpiredItems))
	return st
}

// Inspect returns metadata and the raw JSON payload for key without
// evicting it, expired or not.
func (c *Cache) Inspect(ctx context.Context, key string) (EntryInfo, bool) {
	defer observe("inspect", time.Now())
	if !c.ready(ctx) {
		return EntryInfo{}, false
	}
	rec, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.report(ctx, &OpError{Op: "inspect", Key: key, Kind: ErrRead, Err: err})
		return EntryInfo{}, false
	}
	if !ok {
		return EntryInfo{}, false
	}
	return EntryInfo{
		Key:       rec.Key,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
		Expired:   expired(rec, c.now()),
		Size:      len(rec.Value),
		Value:     json.RawMessage(rec.Value),
	}, true
}

// report routes a swallowed fault to logs, metrics and the error handler.
func (c *Cache) report(ctx context.Context, e *OpError) {
	metrics.Errors.WithLabelValues(e.Op, kindLabel(e.Kind)).Inc()
	logging.FromContext(ctx, c.logger()).Warn("cache operation failed",
		"op", e.Op,
		"key", e.Key,
		"kind", kindLabel(e.Kind),
		"error", e.Err,
	)
	if c.onError != nil {
		c.onError(e)
	}
}

func (c *Cache) logger() *slog.Logger {
	if c.log != nil {
		return c.log
	}
	return logging.Component("cache")
}

func observe(op string, start time.Time) {
	metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

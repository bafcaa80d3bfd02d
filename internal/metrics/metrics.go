// Package metrics registers the Prometheus metrics used by the cache.
// Every collector is registered on the default registry at import time, so
// the /metrics handler only needs to be mounted.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Read results.
const (
	ResultHit      = "hit"
	ResultMiss     = "miss"
	ResultExpired  = "expired"
	ResultError    = "error"
	ResultDisabled = "disabled"
)

// Eviction causes.
const (
	CauseExpiredRead = "expired_read"
	CauseCleanup     = "cleanup"
	CausePattern     = "pattern"
	CauseDelete      = "delete"
)

var (
	// Requests counts Get calls labelled by result.
	Requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketcache_requests_total",
			Help: "Total cache lookups by result.",
		},
		[]string{"result"},
	)

	// Writes counts Set calls labelled by status ("ok", "error", "disabled").
	Writes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketcache_writes_total",
			Help: "Total cache writes by status.",
		},
		[]string{"status"},
	)

	// Evictions counts entries removed from storage, by cause.
	Evictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketcache_evictions_total",
			Help: "Total entries removed from the cache by cause.",
		},
		[]string{"cause"},
	)

	// Errors counts swallowed storage/codec faults by operation and kind.
	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketcache_errors_total",
			Help: "Total internal cache errors by operation and kind.",
		},
		[]string{"op", "kind"},
	)

	// OperationDuration observes engine operation latency in seconds.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketcache_operation_duration_seconds",
			Help:    "Cache operation duration in seconds.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"op"},
	)

	// Entries reports the last observed entry counts ("active", "expired").
	Entries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marketcache_entries",
			Help: "Entries observed by the last stats snapshot, by state.",
		},
		[]string{"state"},
	)

	// BreakerState tracks the storage circuit breaker as a gauge:
	// 0 = closed, 1 = open, 2 = half_open.
	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketcache_storage_breaker_state",
			Help: "Storage circuit breaker state (0=closed 1=open 2=half_open).",
		},
	)

	// AdminRateLimited counts admin API requests rejected by rate limiting.
	AdminRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketcache_admin_rate_limited_total",
			Help: "Total admin API requests rejected by rate limiting.",
		},
	)
)

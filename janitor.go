package marketcache

import (
	"context"
	"time"

	"github.com/ferro-labs/market-cache/internal/logging"
)

// Janitor periodically removes expired entries so they do not linger until
// the next read of the same key.
type Janitor struct {
	cache    *Cache
	interval time.Duration
	hooks    []func(time.Time)
}

// NewJanitor creates a janitor sweeping c every interval. A non-positive
// interval disables sweeping.
func NewJanitor(c *Cache, interval time.Duration) *Janitor {
	return &Janitor{cache: c, interval: interval}
}

// OnSweep registers fn to run after every sweep, e.g. to prune other
// process-local state on the same schedule.
func (j *Janitor) OnSweep(fn func(now time.Time)) {
	j.hooks = append(j.hooks, fn)
}

// Run sweeps until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	if j.interval <= 0 {
		return
	}
	log := logging.Component("janitor")
	log.Info("janitor started", "interval", j.interval.String())

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("janitor stopped")
			return
		case now := <-ticker.C:
			j.Sweep(ctx, now)
		}
	}
}

// Sweep runs one cleanup pass and returns the number of entries removed.
func (j *Janitor) Sweep(ctx context.Context, now time.Time) int {
	removed := j.cache.Cleanup(ctx)
	if removed > 0 {
		logging.Component("janitor").Info("expired entries removed", "count", removed)
	}
	for _, fn := range j.hooks {
		fn(now)
	}
	return removed
}

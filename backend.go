package marketcache

import (
	"fmt"
	"io"

	"github.com/ferro-labs/market-cache/internal/circuitbreaker"
	"github.com/ferro-labs/market-cache/storage"
)

// NewBackend builds the storage backend described by cfg. It performs no
// I/O; the backend is opened by Cache.Init.
func NewBackend(cfg StorageConfig) (storage.Backend, error) {
	var b storage.Backend
	switch cfg.Driver {
	case DriverSQLite, "":
		b = storage.NewSQLite(cfg.DSN)
	case DriverPostgres:
		b = storage.NewPostgres(cfg.DSN)
	case DriverMemory:
		b = storage.NewMemory()
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
	}

	if bc := cfg.Breaker; bc != nil {
		b = storage.NewBreaker(b, circuitbreaker.Settings{
			FailureThreshold: bc.FailureThreshold,
			SuccessThreshold: bc.SuccessThreshold,
			Timeout:          bc.Timeout.Std(),
		})
	}
	return b, nil
}

// NewFromConfig builds a Cache and its backend from cfg. opts are applied
// after the config-derived options.
func NewFromConfig(cfg Config, opts ...Option) (*Cache, error) {
	b, err := NewBackend(cfg.Storage)
	if err != nil {
		return nil, err
	}
	base := []Option{WithDefaultTTL(cfg.DefaultTTL.Std())}
	if cfg.EvictOnRead != nil {
		base = append(base, WithEvictOnRead(*cfg.EvictOnRead))
	}
	return New(b, append(base, opts...)...), nil
}

// Close releases the storage backend when it holds resources. The cache
// must not be used afterwards.
func (c *Cache) Close() error {
	if closer, ok := c.backend.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

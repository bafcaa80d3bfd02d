package marketcache

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration for a cache process.
type Config struct {
	// Storage selects and configures the persistent backend.
	Storage StorageConfig `json:"storage" yaml:"storage"`
	// DefaultTTL applies to writes that do not specify a TTL.
	DefaultTTL Duration `json:"default_ttl,omitempty" yaml:"default_ttl,omitempty"`
	// CleanupInterval is the janitor period; zero disables the janitor.
	CleanupInterval Duration `json:"cleanup_interval,omitempty" yaml:"cleanup_interval,omitempty"`
	// EvictOnRead deletes expired entries when Get encounters them (default true).
	EvictOnRead *bool `json:"evict_on_read,omitempty" yaml:"evict_on_read,omitempty"`
	// Admin configures the cache-management HTTP API.
	Admin AdminConfig `json:"admin" yaml:"admin"`
	// Log configures structured logging.
	Log LogConfig `json:"log" yaml:"log"`
}

// StorageDriver names a storage backend implementation.
type StorageDriver string

// StorageDriver constants define the supported backends.
const (
	DriverSQLite   StorageDriver = "sqlite"
	DriverPostgres StorageDriver = "postgres"
	DriverMemory   StorageDriver = "memory"
)

// StorageConfig configures the storage backend.
type StorageConfig struct {
	Driver StorageDriver `json:"driver" yaml:"driver"`
	// DSN is a file path or DSN for SQLite, a connection string for Postgres.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	// Breaker enables a circuit breaker in front of the backend when set.
	Breaker *BreakerConfig `json:"breaker,omitempty" yaml:"breaker,omitempty"`
}

// BreakerConfig configures the storage circuit breaker.
type BreakerConfig struct {
	FailureThreshold int      `json:"failure_threshold,omitempty" yaml:"failure_threshold,omitempty"`
	SuccessThreshold int      `json:"success_threshold,omitempty" yaml:"success_threshold,omitempty"`
	Timeout          Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// AdminConfig configures the admin API.
type AdminConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
	// Token, when set, is required as a bearer token on every admin request.
	Token     string          `json:"token,omitempty" yaml:"token,omitempty"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	// TrustProxyHeaders takes the client IP from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool `json:"trust_proxy_headers,omitempty" yaml:"trust_proxy_headers,omitempty"`
}

// RateLimitConfig configures per-client admin rate limiting. RPS 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `json:"rps,omitempty" yaml:"rps,omitempty"`
	Burst float64 `json:"burst,omitempty" yaml:"burst,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	evict := true
	return Config{
		Storage:         StorageConfig{Driver: DriverSQLite},
		DefaultTTL:      Duration(DefaultTTL),
		CleanupInterval: Duration(10 * time.Minute),
		EvictOnRead:     &evict,
		Admin: AdminConfig{
			Addr:      ":8080",
			RateLimit: RateLimitConfig{RPS: 10, Burst: 20},
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Duration is a time.Duration that reads and writes as a Go duration
// string ("90s", "1h30m") in both JSON and YAML.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	return d.parse(s)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

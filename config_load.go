package marketcache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const configSchemaJSON = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"additionalProperties": false,
	"definitions": {
		"duration": {
			"type": "string",
			"pattern": "^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"
		}
	},
	"properties": {
		"storage": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"driver": {"enum": ["sqlite", "postgres", "memory"]},
				"dsn": {"type": "string"},
				"breaker": {
					"type": "object",
					"additionalProperties": false,
					"properties": {
						"failure_threshold": {"type": "integer", "minimum": 0},
						"success_threshold": {"type": "integer", "minimum": 0},
						"timeout": {"$ref": "#/definitions/duration"}
					}
				}
			}
		},
		"default_ttl": {"$ref": "#/definitions/duration"},
		"cleanup_interval": {"$ref": "#/definitions/duration"},
		"evict_on_read": {"type": "boolean"},
		"admin": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"addr": {"type": "string"},
				"token": {"type": "string"},
				"trust_proxy_headers": {"type": "boolean"},
				"rate_limit": {
					"type": "object",
					"additionalProperties": false,
					"properties": {
						"rps": {"type": "number", "minimum": 0},
						"burst": {"type": "number", "minimum": 0}
					}
				}
			}
		},
		"log": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"level": {"enum": ["debug", "info", "warn", "warning", "error"]},
				"format": {"enum": ["json", "text"]}
			}
		}
	}
}`

var configSchema = jsonschema.MustCompileString("marketcache-config.json", configSchemaJSON)

// LoadConfig reads, schema-checks and parses a config file. Fields absent
// from the file keep their DefaultConfig values.
// Supported formats: JSON (.json), YAML (.yaml, .yml).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var raw interface{}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q: use .json, .yaml, or .yml", ext)
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}

	// Normalise YAML and JSON to the same JSON document before validating.
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("normalizing config: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return nil, fmt.Errorf("normalizing config: %w", err)
	}
	if err := configSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("config schema: %w", err)
	}

	cfg := DefaultConfig()
	dec := json.NewDecoder(bytes.NewReader(normalized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overlays environment overrides onto cfg:
// MARKETCACHE_STORAGE_DRIVER, MARKETCACHE_STORAGE_DSN, MARKETCACHE_ADMIN_TOKEN,
// PORT, LOG_LEVEL and LOG_FORMAT.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("MARKETCACHE_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = StorageDriver(strings.ToLower(v))
	}
	if v := os.Getenv("MARKETCACHE_STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("MARKETCACHE_ADMIN_TOKEN"); v != "" {
		cfg.Admin.Token = v
	}
	if p := os.Getenv("PORT"); p != "" {
		cfg.Admin.Addr = ":" + p
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// ValidateConfig validates a Config for correctness.
func ValidateConfig(cfg Config) error {
	switch cfg.Storage.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return fmt.Errorf("postgres storage requires a dsn")
		}
	case "":
		return fmt.Errorf("storage driver is required")
	default:
		return fmt.Errorf("unknown storage driver: %q", cfg.Storage.Driver)
	}

	if cfg.DefaultTTL <= 0 {
		return fmt.Errorf("default_ttl must be positive, got %s", cfg.DefaultTTL)
	}
	if cfg.CleanupInterval < 0 {
		return fmt.Errorf("cleanup_interval must not be negative, got %s", cfg.CleanupInterval)
	}

	if b := cfg.Storage.Breaker; b != nil {
		if b.FailureThreshold < 0 || b.SuccessThreshold < 0 {
			return fmt.Errorf("breaker thresholds must not be negative")
		}
		if b.Timeout < 0 {
			return fmt.Errorf("breaker timeout must not be negative")
		}
	}

	if cfg.Admin.RateLimit.RPS < 0 || cfg.Admin.RateLimit.Burst < 0 {
		return fmt.Errorf("admin rate limit must not be negative")
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("unknown log format: %q", cfg.Log.Format)
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level: %q", cfg.Log.Level)
	}
	return nil
}

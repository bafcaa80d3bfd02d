// Package main provides the marketcache command: it serves the cache admin
// API and runs one-shot maintenance commands against the configured store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	marketcache "github.com/ferro-labs/market-cache"
	"github.com/ferro-labs/market-cache/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "marketcache",
		Short:        "Persistent TTL cache for market data and analysis responses",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("MARKETCACHE_CONFIG"),
		"config file (JSON or YAML); defaults to $MARKETCACHE_CONFIG")

	load := func() (marketcache.Config, error) {
		return loadConfig(configPath)
	}

	root.AddCommand(
		newServeCmd(load),
		newStatsCmd(load),
		newGetCmd(load),
		newSetCmd(load),
		newClearCmd(load),
		newClearPatternCmd(load),
		newCleanupCmd(load),
		newValidateCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig resolves the effective configuration: defaults, then the file
// at path (if any), then environment overrides.
func loadConfig(path string) (marketcache.Config, error) {
	cfg := marketcache.DefaultConfig()
	if path != "" {
		loaded, err := marketcache.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
		cfg = *loaded
	}
	marketcache.ApplyEnv(&cfg)
	if err := marketcache.ValidateConfig(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

// openCache builds and opens the cache described by cfg. Unlike the server,
// maintenance commands fail when storage cannot be opened.
func openCache(ctx context.Context, cfg marketcache.Config, opts ...marketcache.Option) (*marketcache.Cache, error) {
	c, err := marketcache.NewFromConfig(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	marketcache "github.com/ferro-labs/market-cache"
	"github.com/ferro-labs/market-cache/internal/version"
)

type configLoader func() (marketcache.Config, error)

// withCache loads the config, opens the cache and runs fn against it. The
// first storage fault the cache swallows during fn becomes the command error.
func withCache(cmd *cobra.Command, load configLoader, fn func(*marketcache.Cache) error) error {
	cfg, err := load()
	if err != nil {
		return err
	}
	var fault error
	c, err := openCache(cmd.Context(), cfg, marketcache.WithErrorHandler(func(e *marketcache.OpError) {
		if fault == nil {
			fault = e
		}
	}))
	if err != nil {
		return err
	}
	defer c.Close() //nolint:errcheck
	err = fn(c)
	if fault != nil {
		return fault
	}
	return err
}

func newStatsCmd(load configLoader) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show entry counts and keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(cmd, load, func(c *marketcache.Cache) error {
				st := c.Stats(cmd.Context())
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(st)
				}
				fmt.Fprintf(out, "Total:   %s\n", humanize.Comma(int64(st.TotalItems)))
				fmt.Fprintf(out, "Active:  %s\n", humanize.Comma(int64(st.ActiveItems)))
				fmt.Fprintf(out, "Expired: %s\n", humanize.Comma(int64(st.ExpiredItems)))
				for _, k := range st.CacheKeys {
					fmt.Fprintf(out, "  %s\n", k)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print stats as JSON")
	return cmd
}

func newGetCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a stored entry and its expiry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, load, func(c *marketcache.Cache) error {
				info, ok := c.Inspect(cmd.Context(), args[0])
				if !ok {
					return fmt.Errorf("no entry for key %q", args[0])
				}
				out := cmd.OutOrStdout()
				state := "expires"
				if info.Expired {
					state = "expired"
				}
				fmt.Fprintf(out, "%s (%s, %s %s)\n", info.Key,
					humanize.Bytes(uint64(info.Size)), state, humanize.Time(info.ExpiresAt))
				fmt.Fprintln(out, string(info.Value))
				return nil
			})
		},
	}
}

func newSetCmd(load configLoader) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "set <key> <json>",
		Short: "Store a JSON value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value interface{}
			if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
				return fmt.Errorf("value must be valid JSON: %w", err)
			}
			return withCache(cmd, load, func(c *marketcache.Cache) error {
				c.Set(cmd.Context(), args[0], value, ttl)
				if _, ok := c.Inspect(cmd.Context(), args[0]); !ok {
					return fmt.Errorf("entry %q was not stored", args[0])
				}
				effective := ttl
				if effective == 0 {
					effective = c.DefaultTTL()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Stored %s for %s\n", args[0], effective)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "time to live (default: config default_ttl)")
	return cmd
}

func newClearCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(cmd, load, func(c *marketcache.Cache) error {
				c.Clear(cmd.Context())
				fmt.Fprintln(cmd.OutOrStdout(), "✓ Cache cleared")
				return nil
			})
		},
	}
}

func newClearPatternCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-pattern <substring>",
		Short: "Remove entries whose key contains substring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "" {
				return fmt.Errorf("substring must not be empty")
			}
			return withCache(cmd, load, func(c *marketcache.Cache) error {
				n := c.ClearPattern(cmd.Context(), args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared %s entries matching %q\n", humanize.Comma(int64(n)), args[0])
				return nil
			})
		},
	}
}

func newCleanupCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(cmd, load, func(c *marketcache.Cache) error {
				n := c.Cleanup(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %s expired entries\n", humanize.Comma(int64(n)))
				return nil
			})
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file (JSON/YAML)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := marketcache.LoadConfig(args[0])
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := marketcache.ValidateConfig(*cfg); err != nil {
				return fmt.Errorf("validation error: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Config is valid\n")
			fmt.Fprintf(out, "  Storage:  %s\n", cfg.Storage.Driver)
			fmt.Fprintf(out, "  TTL:      %s\n", cfg.DefaultTTL)
			fmt.Fprintf(out, "  Cleanup:  %s\n", cfg.CleanupInterval)
			fmt.Fprintf(out, "  Admin:    %s\n", cfg.Admin.Addr)
			if cfg.Storage.Breaker != nil {
				fmt.Fprintf(out, "  Breaker:  %d failures, %s timeout\n",
					cfg.Storage.Breaker.FailureThreshold, cfg.Storage.Breaker.Timeout)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(version.Get())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "marketcache %s\n", version.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print version info as JSON")
	return cmd
}

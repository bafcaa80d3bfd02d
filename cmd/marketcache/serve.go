package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	marketcache "github.com/ferro-labs/market-cache"
	"github.com/ferro-labs/market-cache/internal/admin"
	"github.com/ferro-labs/market-cache/internal/logging"
	"github.com/ferro-labs/market-cache/internal/ratelimit"
	"github.com/ferro-labs/market-cache/internal/version"
)

// limiterIdle is how long a client's rate-limit bucket survives unused.
const limiterIdle = 10 * time.Minute

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API, metrics endpoint and expiry janitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg marketcache.Config) error {
	log := logging.Component("server")

	c, err := marketcache.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	defer c.Close() //nolint:errcheck

	// The server stays up with caching disabled; Init already logged why.
	if err := c.Init(parent); err != nil {
		log.Warn("storage unavailable, serving with caching disabled", "driver", cfg.Storage.Driver)
	}

	var limiter *ratelimit.Store
	if cfg.Admin.RateLimit.RPS > 0 {
		limiter = ratelimit.NewStore(cfg.Admin.RateLimit.RPS, cfg.Admin.RateLimit.Burst)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	janitor := marketcache.NewJanitor(c, cfg.CleanupInterval.Std())
	if limiter != nil {
		janitor.OnSweep(func(time.Time) { limiter.Prune(limiterIdle) })
	}
	go janitor.Run(ctx)

	srv := &http.Server{
		Addr:         cfg.Admin.Addr,
		Handler:      newRouter(c, cfg.Admin, limiter),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", "error", err)
		}
	}()

	log.Info("marketcache listening",
		"addr", cfg.Admin.Addr,
		"version", version.Short(),
		"storage", string(cfg.Storage.Driver),
		"default_ttl", cfg.DefaultTTL.String(),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("server stopped")
	return nil
}

// newRouter builds the HTTP router.
func newRouter(c *marketcache.Cache, cfg marketcache.AdminConfig, limiter *ratelimit.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(logging.Middleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		status := "healthy"
		if c.Disabled() {
			status = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  status,
			"version": version.Short(),
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	handlers := &admin.Handlers{Cache: c}
	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(ratelimit.Middleware(limiter))
		}
		r.Use(admin.AuthMiddleware(cfg.Token))
		r.Mount("/admin/cache", handlers.Routes())
	})
	return r
}

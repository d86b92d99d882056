// services.go builds the router dependencies from configuration and owns the background
// resources that must be released on shutdown.
package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/plugin-registry/plugin-registry/internal/auth"
	"github.com/plugin-registry/plugin-registry/internal/config"
	"github.com/plugin-registry/plugin-registry/internal/db/repositories"
	"github.com/plugin-registry/plugin-registry/internal/middleware"
	"github.com/plugin-registry/plugin-registry/internal/services"
	"github.com/plugin-registry/plugin-registry/internal/storage"
)

// BackgroundServices holds resources that must be released during graceful shutdown.
// The caller (cmd/server) calls Shutdown after the HTTP server has drained.
type BackgroundServices struct {
	stopLimiters []func()
	closers      []io.Closer
}

// Shutdown stops background goroutines and closes backend clients.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	for _, stop := range bg.stopLimiters {
		stop()
	}
	for _, c := range bg.closers {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close background resource", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewDependencies builds the services, verifier, limiter and archive described by cfg.
// rdb may be nil unless a Redis-backed component is enabled.
func NewDependencies(ctx context.Context, cfg *config.Config, db *sqlx.DB, rdb *redis.Client, version string) (*Dependencies, *BackgroundServices, error) {
	bg := &BackgroundServices{}

	verifier, err := auth.NewVerifier(ctx, &cfg.Auth, rdb)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize token verifier: %w", err)
	}
	slog.Info("token verifier initialized", "provider", cfg.Auth.Provider, "cache", cfg.Auth.Cache.Enabled)

	var backend storage.Storage
	var archive *services.Archiver
	if cfg.Storage.ArchiveEnabled {
		backend, err = storage.NewStorage(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize storage backend: %w", err)
		}
		if c, ok := backend.(io.Closer); ok {
			bg.closers = append(bg.closers, c)
		}
		archive = services.NewArchiver(backend, cfg.Storage.DefaultBackend)
		slog.Info("version archive enabled", "backend", cfg.Storage.DefaultBackend)
	}

	var clientLimiter, userLimiter middleware.Limiter
	if cfg.Security.RateLimiting.Enabled {
		clientLimiter, err = bg.newLimiter(cfg.Security.RateLimiting.PerClient(), rdb)
		if err != nil {
			return nil, nil, err
		}
		userLimiter, err = bg.newLimiter(cfg.Security.RateLimiting, rdb)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("rate limiting enabled",
			"backend", userLimiter.Backend(),
			"requests_per_minute", cfg.Security.RateLimiting.RequestsPerMinute,
			"client_requests_per_minute", cfg.Security.RateLimiting.ClientRequestsPerMinute,
		)
	}

	deps := &Dependencies{
		DB:            db,
		Storage:       backend,
		Verifier:      verifier,
		ClientLimiter: clientLimiter,
		UserLimiter:   userLimiter,
		Plugins:       services.NewPluginService(repositories.NewPluginRepository(db), archive, &cfg.Auth),
		Overlays:      services.NewOverlayService(repositories.NewOverlayRepository(db), archive, &cfg.Auth),
		Audit:         repositories.NewAuditRepository(db),
		Admins:        &cfg.Auth,
		Version:       version,
	}
	return deps, bg, nil
}

// newLimiter builds a limiter and registers its stop function. On failure every limiter built
// so far is stopped.
func (bg *BackgroundServices) newLimiter(cfg config.RateLimitingConfig, rdb *redis.Client) (middleware.Limiter, error) {
	limiter, stop, err := middleware.NewLimiter(cfg, rdb)
	if err != nil {
		bg.Shutdown()
		return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
	}
	bg.stopLimiters = append(bg.stopLimiters, stop)
	return limiter, nil
}

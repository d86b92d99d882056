// @title           Plugin Registry API
// @version         1.0.0
// @description     Community registry of versioned plugins and overlays with voting and import counts.
// @basePath        /
// @schemes         http https
// @securityDefinitions.apiKey  Bearer
// @in                          header
// @name                        Authorization
// @description                 "Bearer token resolved by the configured identity provider: 'Bearer {token}'"

// Package main is the entry point for the plugin registry server binary.
// It dispatches the serve, migrate, version and token subcommands via a switch on
// os.Args. The serve command runs pending migrations on startup so a fresh
// container never needs a separate migration step.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108 -- served only on the internal profiling port, never on the API listener.
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/plugin-registry/plugin-registry/internal/api"
	"github.com/plugin-registry/plugin-registry/internal/auth"
	"github.com/plugin-registry/plugin-registry/internal/cache"
	"github.com/plugin-registry/plugin-registry/internal/config"
	"github.com/plugin-registry/plugin-registry/internal/db"
	"github.com/plugin-registry/plugin-registry/internal/telemetry"

	// Import storage backends to register them
	_ "github.com/plugin-registry/plugin-registry/internal/storage/azure"
	_ "github.com/plugin-registry/plugin-registry/internal/storage/gcs"
	_ "github.com/plugin-registry/plugin-registry/internal/storage/local"
	_ "github.com/plugin-registry/plugin-registry/internal/storage/s3"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

const (
	shutdownTimeout    = 10 * time.Second
	dbStatsInterval    = 15 * time.Second
	defaultTokenTTL    = time.Hour
	sideServerTimeouts = 10 * time.Second
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run(args []string) error {
	command := "serve"
	if len(args) > 0 {
		command = args[0]
	}

	if command == "version" {
		fmt.Printf("Plugin Registry v%s\n", version)
		return nil
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	switch command {
	case "serve":
		return serve(cfg)
	case "migrate":
		if len(args) < 2 {
			return fmt.Errorf("usage: plugin-registry migrate <up|down>")
		}
		return runMigrations(cfg, args[1])
	case "token":
		if len(args) < 2 {
			return fmt.Errorf("usage: plugin-registry token <user-id> [login]")
		}
		login := ""
		if len(args) > 2 {
			login = args[2]
		}
		return issueToken(cfg, args[1], login)
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, version, token", command)
	}
}

func serve(cfg *config.Config) error {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	slog.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"name", cfg.Database.Name,
		"user", cfg.Database.User,
		"sslmode", cfg.Database.SSLMode)

	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	telemetry.StartDBStatsCollector(ctx, database, dbStatsInterval)

	slog.Info("running database migrations")
	if err := db.RunMigrations(database, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if v, dirty, err := db.GetMigrationVersion(database); err != nil {
		slog.Warn("failed to get migration version", "error", err)
	} else {
		slog.Info("database schema ready", "version", v, "dirty", dirty)
	}

	var rdb *redis.Client
	if cache.Needed(cfg) {
		rdb, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		slog.Info("connected to redis", "addr", cfg.Redis.Addr)
	}

	deps, bgServices, err := api.NewDependencies(ctx, cfg, sqlx.NewDb(database, "postgres"), rdb, version)
	if err != nil {
		return err
	}
	router := api.NewRouter(cfg, deps)

	if cfg.Telemetry.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		startSideServer("metrics", fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort), mux)
	}
	if cfg.Telemetry.Profiling.Enabled {
		startSideServer("pprof", fmt.Sprintf(":%d", cfg.Telemetry.Profiling.Port), http.DefaultServeMux)
	}

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", server.Addr,
			"auth_provider", cfg.Auth.Provider,
			"archive_enabled", cfg.Storage.ArchiveEnabled,
			"tls", cfg.Security.TLS.Enabled)

		var err error
		if cfg.Security.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		bgServices.Shutdown()
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	bgServices.Shutdown()
	slog.Info("server stopped gracefully")
	return nil
}

// startSideServer serves handler on an internal port outside the API router.
func startSideServer(name, addr string, handler http.Handler) {
	go func() {
		slog.Info("starting side server", "name", name, "addr", addr)
		srv := &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  sideServerTimeouts,
			WriteTimeout: sideServerTimeouts,
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("side server error", "name", name, "error", err)
		}
	}()
}

func runMigrations(cfg *config.Config, direction string) error {
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	slog.Info("running migrations", "direction", direction)
	if err := db.RunMigrations(database, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	v, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	slog.Info("migration completed", "version", v, "dirty", dirty)
	return nil
}

// issueToken prints a bearer token for userID signed with the configured JWT secret.
// It is meant for local development and service accounts when auth.provider is jwt.
func issueToken(cfg *config.Config, userID, login string) error {
	verifier, err := auth.NewJWTVerifier(cfg.Auth.JWT)
	if err != nil {
		return err
	}
	token, err := verifier.Issue(userID, login, defaultTokenTTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

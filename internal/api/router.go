// Package api wires together all HTTP routes for the plugin registry.
//
// Every /plugins, /overlays and /admin route requires a bearer token. Health, readiness
// and version endpoints are public so load balancers and orchestrators can probe them.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/plugin-registry/plugin-registry/internal/auth"
	"github.com/plugin-registry/plugin-registry/internal/config"
	"github.com/plugin-registry/plugin-registry/internal/db/models"
	"github.com/plugin-registry/plugin-registry/internal/middleware"
	"github.com/plugin-registry/plugin-registry/internal/storage"
)

// Pinger checks database connectivity.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// AuditStore writes and lists audit records.
type AuditStore interface {
	middleware.AuditWriter
	AuditLogReader
}

// Dependencies are the components the router serves.
type Dependencies struct {
	DB       Pinger
	Storage  storage.Storage // nil when the version archive is disabled
	Verifier auth.Verifier
	Plugins  EntryService[models.Plugin, models.PluginPatch]
	Overlays EntryService[models.Overlay, models.OverlayPatch]
	Audit    AuditStore
	Admins   middleware.AdminPolicy
	Version  string

	// ClientLimiter bounds each client ip before its token is verified and UserLimiter bounds
	// each verified caller. Both are nil when rate limiting is disabled.
	ClientLimiter middleware.Limiter
	UserLimiter   middleware.Limiter
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, deps *Dependencies) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig(cfg.Security.TLS.Enabled)))

	router.GET("/health", healthCheckHandler(deps.DB))
	router.GET("/ready", readinessHandler(deps.DB, deps.Storage))
	router.GET("/version", versionHandler(deps.Version))

	authenticated := router.Group("/")
	if deps.ClientLimiter != nil {
		authenticated.Use(middleware.RateLimitMiddleware(deps.ClientLimiter))
	}
	authenticated.Use(middleware.AuthMiddleware(deps.Verifier))
	if deps.UserLimiter != nil {
		authenticated.Use(middleware.RateLimitMiddleware(deps.UserLimiter))
	}

	admin := authenticated.Group("/admin")
	admin.Use(middleware.RequireAdmin(deps.Admins))
	admin.GET("/audit-logs", listAuditLogsHandler(deps.Audit))

	entries := authenticated.Group("/")
	entries.Use(middleware.AuditMiddleware(deps.Audit, cfg.Audit))
	NewEntryHandlers(deps.Plugins).Register(entries.Group("/plugins"))
	NewEntryHandlers(deps.Overlays).Register(entries.Group("/overlays"))

	return router
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
func healthCheckHandler(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks the database and the archive storage backend.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, checks, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false, checks, error"
// @Router       /ready [get]
func readinessHandler(db Pinger, storageBackend storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		// Probe with a known-absent path: Exists exercises credentials and
		// connectivity without creating state.
		if storageBackend != nil {
			if _, err := storageBackend.Exists(c.Request.Context(), ".readiness-probe"); err != nil {
				checks["storage"] = "unhealthy"
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"ready":  false,
					"checks": checks,
					"error":  "storage backend not ready",
				})
				return
			}
			checks["storage"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the build version of the service.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
func versionHandler(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     version,
			"api_version": "v1",
		})
	}
}

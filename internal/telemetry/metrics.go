// Package telemetry provides logging setup and Prometheus metrics for the plugin registry.
//
// Metrics are registered against the default registry and served on the side-channel
// HTTP server started by main.go:
//
//	GET http://<host>:<PLUGINS_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// HTTP metrics use c.FullPath() (the route template such as /plugins/:id) rather than
// the raw URL so plugin ids do not create unbounded label cardinality.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template and status code.
//
// Example PromQL queries:
//   - Error rate (%): sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency:    histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		},
	)
)

// Registry operation metrics. The kind label is "plugin" or "overlay".
//
// Example PromQL queries:
//   - Most imported kinds: sum by (kind) (rate(plugin_registry_imports_total[1h]))
//   - Vote churn:          sum by (action) (rate(plugin_registry_votes_total{action="retract"}[1h]))
var (
	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plugin_registry_imports_total",
			Help: "Total number of entries fetched by id (each fetch bumps importedCount), by kind.",
		},
		[]string{"kind"},
	)

	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plugin_registry_mutations_total",
			Help: "Total number of successful create, update, and delete operations, by kind and action.",
		},
		[]string{"kind", "action"},
	)

	VotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plugin_registry_votes_total",
			Help: "Total number of votes cast or retracted, by kind and action.",
		},
		[]string{"kind", "action"},
	)
)

// Authentication metrics.
//
// TokenVerificationsTotal counts calls to the configured identity provider; result is
// "valid", "invalid" or "error". TokenCacheTotal counts identity cache lookups; result
// is "hit", "miss" or "error".
var (
	TokenVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plugin_registry_token_verifications_total",
			Help: "Total number of bearer token verifications against the identity provider, by provider and result.",
		},
		[]string{"provider", "result"},
	)

	TokenCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plugin_registry_token_cache_total",
			Help: "Total number of identity cache lookups, by result.",
		},
		[]string{"result"},
	)
)

// ArchiveWritesTotal counts version snapshot uploads by storage backend and result
// ("success" or "error"). Archive writes never fail a request, so an alert on the
// error series is the main signal that snapshots are missing.
var ArchiveWritesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "plugin_registry_archive_writes_total",
		Help: "Total number of version archive writes, by backend and result.",
	},
	[]string{"backend", "result"},
)

// RateLimitRejectionsTotal counts requests rejected with 429, by limiter backend.
var RateLimitRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "plugin_registry_rate_limit_rejections_total",
		Help: "Total number of requests rejected by the rate limiter, by backend.",
	},
	[]string{"backend"},
)

// Database connection pool gauges, sampled by StartDBStatsCollector.
var (
	DBOpenConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_open_connections",
			Help: "Current number of open database connections in the pool.",
		},
	)

	DBInUseConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_in_use_connections",
			Help: "Current number of database connections in use.",
		},
	)

	DBWaitCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_wait_count",
			Help: "Total number of connections waited for, as reported by sql.DBStats.",
		},
	)
)

// RecordDBStats copies the pool statistics into the DB gauges.
func RecordDBStats(stats sql.DBStats) {
	DBOpenConnections.Set(float64(stats.OpenConnections))
	DBInUseConnections.Set(float64(stats.InUse))
	DBWaitCount.Set(float64(stats.WaitCount))
}

// StartDBStatsCollector samples pool statistics every interval until ctx is cancelled.
// Call it once after db.Connect succeeds.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Debug("db stats collector stopped")
				return
			case <-ticker.C:
				RecordDBStats(db.Stats())
			}
		}
	}()
}

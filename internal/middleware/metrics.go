// metrics.go records Prometheus request metrics for every request passing through the router.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/plugin-registry/plugin-registry/internal/telemetry"
)

// MetricsMiddleware returns a Gin handler that records request count, latency and
// the number of requests currently in flight.
//
// The path label is set from c.FullPath(), which returns the matched Gin route template
// (e.g. /plugins/:id/votes) rather than the raw URL. Requests that do not match any
// registered route use the literal string "<no-route>" so unhandled paths do not
// inflate label cardinality.
//
// Register after gin.Recovery() and RequestIDMiddleware so the final status is captured.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		telemetry.HTTPRequestsInFlight.Inc()
		defer telemetry.HTTPRequestsInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

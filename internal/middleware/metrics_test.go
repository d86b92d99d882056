package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/plugin-registry/plugin-registry/internal/telemetry"
)

// collectHistogramCount returns the sample count from a HistogramVec for the given labels.
func collectHistogramCount(t *testing.T, hv *prometheus.HistogramVec, labels prometheus.Labels) uint64 {
	t.Helper()
	obs, err := hv.GetMetricWith(labels)
	if err != nil {
		t.Fatal(err)
	}
	var dm dto.Metric
	if err := obs.(prometheus.Metric).Write(&dm); err != nil {
		t.Fatal(err)
	}
	return dm.GetHistogram().GetSampleCount()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var dm dto.Metric
	if err := g.Write(&dm); err != nil {
		t.Fatal(err)
	}
	return dm.GetGauge().GetValue()
}

// newMetricsRouter builds a minimal Gin engine with MetricsMiddleware and one test route.
func newMetricsRouter(handler gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/plugins/:id", handler)
	return r
}

// ---------------------------------------------------------------------------
// MetricsMiddleware tests
// ---------------------------------------------------------------------------

func TestMetricsMiddleware_RecordsRequestsAndDuration(t *testing.T) {
	counterLabels := prometheus.Labels{"method": "GET", "path": "/plugins/:id", "status": "200"}
	histLabels := prometheus.Labels{"method": "GET", "path": "/plugins/:id"}
	beforeCount := telemetry.CounterValue(telemetry.HTTPRequestsTotal, counterLabels)
	beforeHist := collectHistogramCount(t, telemetry.HTTPRequestDuration, histLabels)

	r := newMetricsRouter(func(c *gin.Context) { c.Status(http.StatusOK) })
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/plugins/42", nil))

	if got := telemetry.CounterValue(telemetry.HTTPRequestsTotal, counterLabels) - beforeCount; got != 1 {
		t.Errorf("http_requests_total delta = %v, want 1", got)
	}
	if got := collectHistogramCount(t, telemetry.HTTPRequestDuration, histLabels) - beforeHist; got != 1 {
		t.Errorf("http_request_duration_seconds samples delta = %d, want 1", got)
	}
	if raw := telemetry.CounterValue(telemetry.HTTPRequestsTotal, prometheus.Labels{"method": "GET", "path": "/plugins/42", "status": "200"}); raw != 0 {
		t.Error("raw URL used as path label")
	}
}

func TestMetricsMiddleware_NoRouteLabel(t *testing.T) {
	labels := prometheus.Labels{"method": "GET", "path": "<no-route>", "status": "404"}
	before := telemetry.CounterValue(telemetry.HTTPRequestsTotal, labels)

	r := gin.New()
	r.Use(MetricsMiddleware())
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))

	if got := telemetry.CounterValue(telemetry.HTTPRequestsTotal, labels) - before; got != 1 {
		t.Errorf("<no-route> delta = %v, want 1", got)
	}
}

func TestMetricsMiddleware_InFlight(t *testing.T) {
	base := gaugeValue(t, telemetry.HTTPRequestsInFlight)

	var during float64
	r := newMetricsRouter(func(c *gin.Context) {
		during = gaugeValue(t, telemetry.HTTPRequestsInFlight)
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/plugins/1", nil))

	if during != base+1 {
		t.Errorf("in-flight during request = %v, want %v", during, base+1)
	}
	if after := gaugeValue(t, telemetry.HTTPRequestsInFlight); after != base {
		t.Errorf("in-flight after request = %v, want %v", after, base)
	}
}

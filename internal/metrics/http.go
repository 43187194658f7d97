package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/m1z23r/drift/pkg/drift"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// statusRecorder remembers the status code drift writes, since drift.Context does not expose it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware records request count and latency per route pattern.
func HTTPMetricsMiddleware(m Recorder) drift.HandlerFunc {
	metrics, ok := m.(*Metrics)
	if !ok {
		return func(c *drift.Context) {
			c.Next()
		}
	}

	return func(c *drift.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: c.Response, status: http.StatusOK}
		c.Response = rec

		c.Next()

		path := routePattern(c)
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry for GET /metrics.
func Handler() drift.HandlerFunc {
	h := promhttp.Handler()
	return func(c *drift.Context) {
		h.ServeHTTP(c.Response, c.Request)
	}
}

// routePattern returns the matched route (e.g. /api/auth/users/:userId). Unmatched
// requests collapse to "unknown" so raw paths never become label values.
func routePattern(c *drift.Context) string {
	if v, ok := c.Get("_fullPath"); ok {
		if p, ok := v.(string); ok && p != "" {
			return p
		}
	}
	return "unknown"
}

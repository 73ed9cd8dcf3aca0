// Package metrics exposes Prometheus collectors for the portal service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	toolInvocationsTotal       *prometheus.CounterVec
	toolDurationSeconds        *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method", "route"},
		)

		toolInvocationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_tool_invocations_total",
				Help: "Total number of CLI invocations, labeled by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		)

		toolDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_tool_duration_seconds",
				Help:    "Histogram of CLI invocation durations, labeled by operation.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"operation"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveToolInvocation records one CLI run and its outcome.
func ObserveToolInvocation(operation string, exitCode int, duration time.Duration) {
	outcome := "success"
	if exitCode != 0 {
		outcome = "failure"
	}
	toolInvocationsTotal.WithLabelValues(operation, outcome).Inc()
	toolDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// knownRoutes bounds the route label cardinality. The middleware sits in
// front of the router, so unmatched paths would otherwise flow through
// verbatim.
var knownRoutes = map[string]struct{}{
	"/api/status":     {},
	"/api/jobs":       {},
	"/api/sessions":   {},
	"/api/health":     {},
	"/api/message":    {},
	"/api/job/run":    {},
	"/api/job/toggle": {},
	"/metrics":        {},
}

func routeLabel(path string) string {
	if _, ok := knownRoutes[path]; ok {
		return path
	}
	return "other"
}

// Middleware records request count and latency for every HTTP request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		ObserveHTTPRequest(r.Method, routeLabel(r.URL.Path), ww.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

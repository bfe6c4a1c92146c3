// Package server — metrics.go registers all Prometheus metrics for the
// HTTP server and exposes the instrumentation middleware.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// labelHandler partitions HTTP metrics by the logical endpoint name rather
// than the raw URL path.
const labelHandler = "handler"

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests
// can inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// answerRequestsTotal counts completed /api/answer requests,
	// partitioned by outcome: "ok", "timeout", "bad_request", or "error".
	answerRequestsTotal *prometheus.CounterVec

	// answerDurationSeconds records the wall-clock duration of each
	// /api/answer request, decomposition through reference resolution.
	answerDurationSeconds *prometheus.HistogramVec

	// answerReferences records how many table and figure references each
	// successful answer resolved.
	answerReferences prometheus.Histogram

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, path pattern, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns
// the populated serverMetrics. promauto.With(reg) is used so that each
// call registers into the provided registry rather than the global
// default, keeping unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		answerRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "manualqa",
			Subsystem: "answer",
			Name:      "requests_total",
			Help:      "Total number of /api/answer requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		answerDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "manualqa",
			Subsystem: "answer",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/answer requests, decomposition through reference resolution.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),

		answerReferences: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "manualqa",
			Subsystem: "answer",
			Name:      "references_resolved",
			Help:      "Number of table and figure references resolved per successful answer.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16},
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "manualqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "manualqa",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// instrument wraps the mux with per-request counting and latency
// observation. The handler label is the registered route pattern so
// /pages/... does not explode metric cardinality.
func (m *serverMetrics) instrument(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		mux.ServeHTTP(rw, r)
		elapsed := time.Since(start)

		_, pattern := mux.Handler(r)
		if pattern == "" {
			pattern = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(rw.status)).Inc()
		m.httpDurationSeconds.WithLabelValues(r.Method, pattern).Observe(elapsed.Seconds())
	})
}

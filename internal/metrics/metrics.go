// Package metrics provides Prometheus instrumentation for the fantasy engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DraftPicksTotal counts draft picks, partitioned by whether the clock
	// made the pick.
	DraftPicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flit_draft_picks_total",
		Help: "Total number of draft picks recorded",
	}, []string{"auto"})

	// ActiveDrafts tracks drafts currently on the clock.
	ActiveDrafts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flit_active_drafts",
		Help: "Number of drafts currently active",
	})

	// TradesTotal counts trade transitions by resulting status.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flit_trades_total",
		Help: "Total trade proposals and transitions",
	}, []string{"status"})

	// WaiverClaimsTotal counts waiver claims by resulting status.
	WaiverClaimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flit_waiver_claims_total",
		Help: "Total waiver claims submitted and processed",
	}, []string{"status"})

	// LessonsCompleted counts first-time lesson completions.
	LessonsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flit_lessons_completed_total",
		Help: "Lessons completed for the first time",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flit_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// JobRunsTotal counts scheduled job runs by outcome.
	JobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flit_job_runs_total",
		Help: "Scheduled job runs",
	}, []string{"job", "result"})

	// JobDuration tracks scheduled job duration.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flit_job_duration_seconds",
		Help:    "Scheduled job duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flit_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flit_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades through the wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

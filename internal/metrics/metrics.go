// Package metrics provides Prometheus metrics for the comparison service
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Comparison metrics
	ComparisonsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bomdiff_comparisons_total",
			Help: "Total number of comparisons by outcome",
		},
		[]string{"outcome"},
	)

	ComparisonDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bomdiff_comparison_duration_seconds",
			Help:    "Time spent waiting on the comparison backend",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	// Export metrics
	ExportsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bomdiff_exports_total",
			Help: "Total number of workbook exports",
		},
	)

	ExportRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bomdiff_export_rows_total",
			Help: "Total number of data rows written to exported workbooks",
		},
	)

	ExportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bomdiff_export_duration_seconds",
			Help:    "Time taken to build an export workbook",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	// Session metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bomdiff_sessions_active",
			Help: "Number of comparison sessions held in memory",
		},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bomdiff_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bomdiff_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bomdiff_rate_limit_hits_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"limiter"},
	)
)

// Recorder reports service events to the package collectors.
type Recorder struct{}

// NewRecorder creates a Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// ComparisonFinished records one comparison attempt.
func (Recorder) ComparisonFinished(outcome string, d time.Duration) {
	ComparisonsTotal.WithLabelValues(outcome).Inc()
	if d > 0 {
		ComparisonDuration.WithLabelValues(outcome).Observe(d.Seconds())
	}
}

// ExportFinished records one workbook export.
func (Recorder) ExportFinished(rows int, d time.Duration) {
	ExportsTotal.Inc()
	ExportRows.Add(float64(rows))
	ExportDuration.Observe(d.Seconds())
}

// SessionsActive sets the live session gauge.
func (Recorder) SessionsActive(n int) {
	SessionsActive.Set(float64(n))
}

// RateLimited records a request rejected by the named limiter.
func (Recorder) RateLimited(limiter string) {
	RateLimitHits.WithLabelValues(limiter).Inc()
}

// Middleware records request counts and latency labelled by chi route
// pattern, so session IDs do not become label values.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

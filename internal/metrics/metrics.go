// Package metrics exposes Prometheus instruments for the HTTP server and its
// background work.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a registry so several servers (and tests) can coexist in one
// process.
type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	rateLimited    *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	uploads        *prometheus.CounterVec
	orphansRemoved prometheus.Counter
}

// New registers every instrument plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hijo_http_requests_total",
				Help: "HTTP requests by method, route pattern and status.",
			},
			[]string{"method", "route", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hijo_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route pattern.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hijo_rate_limited_total",
				Help: "Requests rejected by a rate limiter, by scope.",
			},
			[]string{"scope"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hijo_notifications_total",
				Help: "Contact notification emails by kind and result.",
			},
			[]string{"kind", "result"},
		),
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hijo_uploads_total",
				Help: "Image upload attempts by result.",
			},
			[]string{"result"},
		),
		orphansRemoved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hijo_orphans_removed_total",
				Help: "Unreferenced upload objects deleted by the janitor.",
			},
		),
	}
	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.rateLimited,
		m.notifications,
		m.uploads,
		m.orphansRemoved,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency labelled by the matched
// route pattern, so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
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
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// RateLimited counts a rejection in scope.
func (m *Metrics) RateLimited(scope string) {
	m.rateLimited.WithLabelValues(scope).Inc()
}

// Notification counts a notification outcome.
func (m *Metrics) Notification(kind, result string) {
	m.notifications.WithLabelValues(kind, result).Inc()
}

// Upload counts an upload outcome.
func (m *Metrics) Upload(result string) {
	m.uploads.WithLabelValues(result).Inc()
}

// OrphansRemoved adds n deleted orphans.
func (m *Metrics) OrphansRemoved(n int) {
	m.orphansRemoved.Add(float64(n))
}

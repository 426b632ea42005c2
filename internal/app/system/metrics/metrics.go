// Package metrics exposes Prometheus collectors for the HTTP layer, the
// analytics endpoints and the health snapshot worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "flockhub"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// StatsRequests counts analytics computations by kind
	// (attendance, members, member, health, csv).
	StatsRequests *prometheus.CounterVec
	// HealthScores observes every computed group health score.
	HealthScores prometheus.Histogram

	SnapshotRuns     *prometheus.CounterVec
	SnapshotDuration prometheus.Histogram

	LoginAttempts *prometheus.CounterVec
}

// New registers all collectors plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		StatsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "group_stats_computed_total",
			Help:      "Group statistics computations by kind.",
		}, []string{"kind"}),
		HealthScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "group_health_score",
			Help:      "Distribution of computed group health scores.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		SnapshotRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_snapshot_runs_total",
			Help:      "Health snapshot sweeps by result.",
		}, []string{"result"}),
		SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "health_snapshot_duration_seconds",
			Help:      "Duration of health snapshot sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.StatsRequests,
		m.HealthScores,
		m.SnapshotRuns,
		m.SnapshotDuration,
		m.LoginAttempts,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Middleware records request counts and latency by chi route pattern.
// Unmatched requests are recorded under "unmatched".
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// ObserveStats counts one analytics computation of kind.
func (m *Metrics) ObserveStats(kind string) {
	if m == nil {
		return
	}
	m.StatsRequests.WithLabelValues(kind).Inc()
}

// ObserveHealthScore records a computed group health score.
func (m *Metrics) ObserveHealthScore(score int) {
	if m == nil {
		return
	}
	m.HealthScores.Observe(float64(score))
}

// ObserveLogin counts a login attempt ("success", "failed", "limited").
func (m *Metrics) ObserveLogin(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

// ObserveSnapshotRun records one health snapshot sweep ("ok", "partial",
// "failed") and how long it took.
func (m *Metrics) ObserveSnapshotRun(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.SnapshotRuns.WithLabelValues(result).Inc()
	m.SnapshotDuration.Observe(d.Seconds())
}

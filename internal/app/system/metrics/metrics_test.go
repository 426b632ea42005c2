package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/groups/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/groups/abc", nil))

	got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/groups/{id}", "GET", "418"))
	if got != 1 {
		t.Errorf("request counter = %v, want 1", got)
	}
}

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveStats("health")
	m.ObserveStats("health")
	m.ObserveLogin("failed")
	m.ObserveHealthScore(73)

	if got := testutil.ToFloat64(m.StatsRequests.WithLabelValues("health")); got != 2 {
		t.Errorf("stats counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.LoginAttempts.WithLabelValues("failed")); got != 1 {
		t.Errorf("login counter = %v, want 1", got)
	}
}

func TestObserve_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveStats("x")
	m.ObserveHealthScore(1)
	m.ObserveLogin("success")
}

func TestHandler_ServesTextFormat(t *testing.T) {
	m := New()
	m.ObserveStats("attendance")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "flockhub_group_stats_computed_total") {
		t.Error("expected stats counter in output")
	}
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilSafe(t *testing.T) {
	var m *Metrics
	m.IncAuthFailure("password", "wrong_password")
	m.IncAccessDenied("wrong_tenant")
	m.AddPushDeliveries("failed", 3)
}

func TestCounters(t *testing.T) {
	m := New()

	m.IncAccessDenied("wrong_tenant")
	m.IncAccessDenied("wrong_tenant")
	m.IncAccessDenied("insufficient_role")
	m.IncTokenRedemption("invite", "ok")
	m.AddCleanupDeleted("registration_tokens", 0)

	if got := testutil.ToFloat64(m.AccessDeniedTotal.WithLabelValues("wrong_tenant")); got != 2 {
		t.Errorf("wrong_tenant = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.TokenRedemptionsTotal.WithLabelValues("invite", "ok")); got != 1 {
		t.Errorf("invite ok = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.CleanupDeletedTotal); got != 0 {
		t.Errorf("cleanup series = %d, want 0 for zero adds", got)
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/schools/{schoolID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/schools/abc", nil))

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/schools/{schoolID}", "403"))
	if got != 1 {
		t.Errorf("requests{pattern} = %v, want 1", got)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "camphub_http_requests_total") {
		t.Error("exposition missing camphub_http_requests_total")
	}
}

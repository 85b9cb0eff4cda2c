// Package metrics holds the Prometheus collectors for authentication,
// tenancy checks, registration tokens and impersonation.
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

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	AuthSuccessesTotal        *prometheus.CounterVec
	AuthFailuresTotal         *prometheus.CounterVec
	CredentialRejectionsTotal *prometheus.CounterVec
	AccessDeniedTotal         *prometheus.CounterVec
	RateLimitRejectionsTotal  *prometheus.CounterVec

	TokensIssuedTotal     *prometheus.CounterVec
	TokenRedemptionsTotal *prometheus.CounterVec
	ImpersonationsTotal   *prometheus.CounterVec
	PushDeliveriesTotal   *prometheus.CounterVec
	CleanupDeletedTotal   *prometheus.CounterVec
	ServerStartTime       prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camphub_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "camphub_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		AuthSuccessesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camphub_auth_successes_total",
			Help: "Successful sign-ins by method.",
		}, []string{"method"}),

		AuthFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camphub_auth_failures_total",
			Help: "Failed sign-ins by method and reason.",
		}, []string{"method", "reason"}),

		CredentialRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camphub_credential_rejections_total",
			Help: "Presented credentials that resolved to anonymous, by reason.",
		}, []string{"reason"}),

		AccessDeniedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camphub_access_denied_total",
			Help: "Tenancy guard denials by reason.",
		}, []string{"reason"}),

		RateLimitRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camphub_ratelimit_rejections_total",
			Help: "Requests rejected by the attempt limiter.",
		}, []string{"endpoint"}),

		TokensIssuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camphub_registration_tokens_issued_total",
			Help: "Registration tokens issued by kind.",
		}, []string{"kind"}),

		TokenRedemptionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camphub_registration_token_redemptions_total",
			Help: "Registration token redemptions by kind and outcome.",
		}, []string{"kind", "outcome"}),

		ImpersonationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camphub_impersonations_total",
			Help: "Impersonation transitions by action and outcome.",
		}, []string{"action", "outcome"}),

		PushDeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camphub_push_deliveries_total",
			Help: "Push deliveries by outcome.",
		}, []string{"outcome"}),

		CleanupDeletedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camphub_cleanup_deleted_total",
			Help: "Expired documents removed by the cleanup worker.",
		}, []string{"collection"}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camphub_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthSuccessesTotal,
		m.AuthFailuresTotal,
		m.CredentialRejectionsTotal,
		m.AccessDeniedTotal,
		m.RateLimitRejectionsTotal,
		m.TokensIssuedTotal,
		m.TokenRedemptionsTotal,
		m.ImpersonationsTotal,
		m.PushDeliveriesTotal,
		m.CleanupDeletedTotal,
		m.ServerStartTime,
	)
	m.ServerStartTime.Set(float64(time.Now().Unix()))

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request count and latency by chi route pattern.
// Unmatched routes are labeled "unmatched" to bound cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				pattern = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}

// The helpers below are nil-safe so callers can run without metrics.

func (m *Metrics) IncAuthSuccess(method string) {
	if m != nil {
		m.AuthSuccessesTotal.WithLabelValues(method).Inc()
	}
}

func (m *Metrics) IncAuthFailure(method, reason string) {
	if m != nil {
		m.AuthFailuresTotal.WithLabelValues(method, reason).Inc()
	}
}

func (m *Metrics) IncCredentialRejection(reason string) {
	if m != nil {
		m.CredentialRejectionsTotal.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncAccessDenied(reason string) {
	if m != nil {
		m.AccessDeniedTotal.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncRateLimitRejection(endpoint string) {
	if m != nil {
		m.RateLimitRejectionsTotal.WithLabelValues(endpoint).Inc()
	}
}

func (m *Metrics) IncTokenIssued(kind string) {
	if m != nil {
		m.TokensIssuedTotal.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncTokenRedemption(kind, outcome string) {
	if m != nil {
		m.TokenRedemptionsTotal.WithLabelValues(kind, outcome).Inc()
	}
}

func (m *Metrics) IncImpersonation(action, outcome string) {
	if m != nil {
		m.ImpersonationsTotal.WithLabelValues(action, outcome).Inc()
	}
}

func (m *Metrics) AddPushDeliveries(outcome string, n int) {
	if m != nil && n > 0 {
		m.PushDeliveriesTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

func (m *Metrics) AddCleanupDeleted(collection string, n int64) {
	if m != nil && n > 0 {
		m.CleanupDeletedTotal.WithLabelValues(collection).Add(float64(n))
	}
}

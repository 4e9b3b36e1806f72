package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the portal's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Authorization
	GateDecisions *prometheus.CounterVec
	CSRFFailures  *prometheus.CounterVec

	// Rate limiting
	RateLimitDecisions *prometheus.CounterVec
	Lockouts           *prometheus.CounterVec

	// Sessions
	Logins    *prometheus.CounterVec
	Rotations prometheus.Counter
	Logouts   prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers every collector on registry.
func NewWithRegistry(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yetuga_http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "yetuga_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		GateDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yetuga_gate_decisions_total",
				Help: "Authorization gate outcomes",
			},
			[]string{"outcome"},
		),
		CSRFFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yetuga_csrf_failures_total",
				Help: "Rejected state changing requests by route",
			},
			[]string{"route"},
		),
		RateLimitDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yetuga_rate_limit_decisions_total",
				Help: "Rate limiter checks by action and result",
			},
			[]string{"action", "allowed"},
		),
		Lockouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yetuga_rate_limit_lockouts_total",
				Help: "Lockouts started by action",
			},
			[]string{"action"},
		),
		Logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yetuga_logins_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),
		Rotations: factory.NewCounter(prometheus.CounterOpts{
			Name: "yetuga_session_rotations_total",
			Help: "Session identifier rotations",
		}),
		Logouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "yetuga_logouts_total",
			Help: "Explicit sign outs",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRateLimit counts one limiter decision.
func (m *Metrics) ObserveRateLimit(action string, allowed bool) {
	if m == nil {
		return
	}
	label := "false"
	if allowed {
		label = "true"
	}
	m.RateLimitDecisions.WithLabelValues(action, label).Inc()
}

// ObserveLockout matches ratelimit.LockoutFunc.
func (m *Metrics) ObserveLockout(action, _ string, _ time.Time) {
	if m == nil {
		return
	}
	m.Lockouts.WithLabelValues(action).Inc()
}

// ObserveGate counts a gate outcome: "allowed" or a denial reason.
func (m *Metrics) ObserveGate(outcome string) {
	if m == nil {
		return
	}
	m.GateDecisions.WithLabelValues(outcome).Inc()
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveCSRFFailure counts a rejected submission on route.
func (m *Metrics) ObserveCSRFFailure(route string) {
	if m == nil {
		return
	}
	m.CSRFFailures.WithLabelValues(route).Inc()
}

// ObserveLogin counts a login attempt: "success", "failed" or "rate_limited".
func (m *Metrics) ObserveLogin(result string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRotation() {
	if m == nil {
		return
	}
	m.Rotations.Inc()
}

func (m *Metrics) ObserveLogout() {
	if m == nil {
		return
	}
	m.Logouts.Inc()
}

package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a pure side-effect observer over facade operations: it
// never influences a Verdict, only reports on the engine's state.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	globalInFlight   prometheus.Gauge
	tenantQueueDepth *prometheus.GaugeVec
	activeRateKeys   prometheus.Gauge
}

const (
	statusAdmitted             = "admitted"
	statusDenied               = "denied"
	statusQueued               = "queued"
	statusRejectedQueueFull    = "rejected_queue_full"
	statusRejectedShuttingDown = "rejected_shutting_down"
)

// NewMetrics registers the rate limiter's Prometheus collectors
// against registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimiter_requests_total",
			Help: "Total check_and_consume calls by terminal status.",
		}, []string{"status"}),
		globalInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ratelimiter_global_in_flight",
			Help: "Current global in-flight request count.",
		}),
		tenantQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ratelimiter_tenant_queue_depth",
			Help: "Current queue depth for a tenant.",
		}, []string{"tenant"}),
		activeRateKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ratelimiter_active_rate_keys",
			Help: "Total number of tracked (tenant, client, action) rate keys.",
		}),
	}

	registry.MustRegister(m.requestsTotal, m.globalInFlight, m.tenantQueueDepth, m.activeRateKeys)
	return m
}

// ObserveVerdict records the terminal status of one CheckAndConsume
// call. err, when non-nil, must be a *ServiceError produced by this
// package.
func (m *Metrics) ObserveVerdict(v Verdict, err error) {
	if err != nil {
		if svcErr, ok := err.(*ServiceError); ok {
			switch svcErr.Kind {
			case KindQueueFull:
				m.requestsTotal.WithLabelValues(statusRejectedQueueFull).Inc()
			case KindShuttingDown:
				m.requestsTotal.WithLabelValues(statusRejectedShuttingDown).Inc()
			}
		}
		return
	}

	switch {
	case v.Status == VerdictProcessed && v.Allowed:
		m.requestsTotal.WithLabelValues(statusAdmitted).Inc()
	case v.Status == VerdictProcessed && !v.Allowed:
		m.requestsTotal.WithLabelValues(statusDenied).Inc()
	case v.Status == VerdictRejected && v.Reason == ReasonQueueFull:
		m.requestsTotal.WithLabelValues(statusRejectedQueueFull).Inc()
	case v.Status == VerdictRejected && v.Reason == ReasonShuttingDown:
		m.requestsTotal.WithLabelValues(statusRejectedShuttingDown).Inc()
	}
}

// SetGlobalInFlight mirrors LoadState.global_in_flight onto the gauge.
func (m *Metrics) SetGlobalInFlight(n int) {
	m.globalInFlight.Set(float64(n))
}

// SetTenantQueueDepth mirrors one tenant's current queue length.
func (m *Metrics) SetTenantQueueDepth(tenant string, depth int) {
	m.tenantQueueDepth.WithLabelValues(tenant).Set(float64(depth))
}

// SetActiveRateKeys mirrors the Window Registry's total tracked-key count.
func (m *Metrics) SetActiveRateKeys(n int) {
	m.activeRateKeys.Set(float64(n))
}

package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "quote"

// Metrics owns the Prometheus collectors exported by the quote API. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.HistogramVec
	catalogCalls  *prometheus.CounterVec
	staleDiscards *prometheus.CounterVec
	checkouts     *prometheus.CounterVec
	persistErrors *prometheus.CounterVec
	activeWizards prometheus.Gauge
}

// NewMetrics registers the collectors on a private registry together with the Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		catalogCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "catalog_requests_total",
			Help:      "Catalog service calls by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		staleDiscards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stale_responses_discarded_total",
			Help:      "Resolver responses dropped because the resolution key changed while they were in flight.",
		}, []string{"kind"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "checkout_sessions_total",
			Help:      "Checkout session requests by processor and outcome.",
		}, []string{"processor", "outcome"}),
		persistErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "state_persist_failures_total",
			Help:      "Failed quote state writes by operation.",
		}, []string{"op"}),
		activeWizards: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_wizards",
			Help:      "Wizard sessions currently held in memory.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.catalogCalls, m.staleDiscards, m.checkouts, m.persistErrors, m.activeWizards,
	)
	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records a completed HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, latency time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(latency.Seconds())
}

// CatalogCall records a catalog call outcome ("ok", "error", "unavailable", "cache_hit").
func (m *Metrics) CatalogCall(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.catalogCalls.WithLabelValues(endpoint, outcome).Inc()
}

// StaleDiscarded counts a resolver response that was not applied.
func (m *Metrics) StaleDiscarded(kind string) {
	if m == nil {
		return
	}
	m.staleDiscards.WithLabelValues(kind).Inc()
}

// CheckoutSession counts a checkout handoff attempt.
func (m *Metrics) CheckoutSession(processor, outcome string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(processor, outcome).Inc()
}

// PersistFailed counts a failed state write or delete.
func (m *Metrics) PersistFailed(op string) {
	if m == nil {
		return
	}
	m.persistErrors.WithLabelValues(op).Inc()
}

// SetActiveWizards reports the in-memory session count.
func (m *Metrics) SetActiveWizards(n int) {
	if m == nil {
		return
	}
	m.activeWizards.Set(float64(n))
}

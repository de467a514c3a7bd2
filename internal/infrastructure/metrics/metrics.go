package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/pdv/internal/domain"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Calculator metrics
	PricingRecomputes *prometheus.CounterVec
	Reconciliations   *prometheus.CounterVec
	VarianceAmount    prometheus.Histogram

	// Closing delivery metrics
	ClosingsQueued          *prometheus.CounterVec
	ClosingsDelivered       prometheus.Counter
	ClosingDeliveryFailures prometheus.Counter
	ClosingsFailed          prometheus.Counter
	OutboxPending           prometheus.Gauge

	// Backend metrics
	BackendRequests *prometheus.CounterVec
	BackendDuration *prometheus.HistogramVec

	// Redis metrics
	SessionCacheLookups *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits prometheus.Counter
}

// New creates and registers all Prometheus metrics on the default registry
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates and registers all Prometheus metrics on reg
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Calculator metrics
		PricingRecomputes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdv_pricing_recomputes_total",
				Help: "Total pricing recomputations by edited field",
			},
			[]string{"field"},
		),
		Reconciliations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdv_reconciliations_total",
				Help: "Total cash reconciliations by severity",
			},
			[]string{"severity"},
		),
		VarianceAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pdv_reconciliation_variance",
			Help:    "Counted minus expected closing amount",
			Buckets: []float64{-500, -100, -50, -10, -1, 0, 1, 10, 50, 100, 500},
		}),

		// Closing delivery metrics
		ClosingsQueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdv_closings_queued_total",
				Help: "Total session closings queued for delivery by severity",
			},
			[]string{"severity"},
		),
		ClosingsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "pdv_closings_delivered_total",
			Help: "Total session closings delivered to the backend",
		}),
		ClosingDeliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "pdv_closing_delivery_failures_total",
			Help: "Total failed closing delivery attempts",
		}),
		ClosingsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "pdv_closings_failed_total",
			Help: "Total session closings given up on after repeated rejections",
		}),
		OutboxPending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pdv_closing_outbox_pending",
			Help: "Closings waiting for delivery seen in the last dispatch",
		}),

		// Backend metrics
		BackendRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdv_backend_requests_total",
				Help: "Total backend requests by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		BackendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pdv_backend_request_duration_seconds",
				Help:    "Backend request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		// Redis metrics
		SessionCacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdv_session_cache_lookups_total",
				Help: "Session snapshot cache lookups by result",
			},
			[]string{"result"},
		),

		// Rate limiting metrics
		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "pdv_rate_limit_hits_total",
			Help: "Total requests rejected by the rate limiter",
		}),
	}
}

// PricingRecomputed implements usecase.MetricsRecorder.
func (m *Metrics) PricingRecomputed(field domain.PricingField) {
	m.PricingRecomputes.WithLabelValues(string(field)).Inc()
}

// Reconciled implements usecase.MetricsRecorder.
func (m *Metrics) Reconciled(result domain.ReconciliationResult) {
	m.Reconciliations.WithLabelValues(string(result.Severity)).Inc()
	m.VarianceAmount.Observe(result.Variance.InexactFloat64())
}

// ClosingQueued implements usecase.MetricsRecorder.
func (m *Metrics) ClosingQueued(severity domain.Severity) {
	m.ClosingsQueued.WithLabelValues(string(severity)).Inc()
}

// SessionCacheLookup implements usecase.MetricsRecorder.
func (m *Metrics) SessionCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.SessionCacheLookups.WithLabelValues(result).Inc()
}

// ObserveBackendRequest implements backend.Metrics.
func (m *Metrics) ObserveBackendRequest(operation, outcome string, duration time.Duration) {
	m.BackendRequests.WithLabelValues(operation, outcome).Inc()
	m.BackendDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ClosingDelivered records a closing accepted by the backend.
func (m *Metrics) ClosingDelivered() {
	m.ClosingsDelivered.Inc()
}

// ClosingDeliveryFailed records a failed delivery attempt.
func (m *Metrics) ClosingDeliveryFailed() {
	m.ClosingDeliveryFailures.Inc()
}

// ClosingDeadLettered records a closing that will not be delivered again.
func (m *Metrics) ClosingDeadLettered() {
	m.ClosingsFailed.Inc()
}

// PendingClosings records the size of the last dispatched batch.
func (m *Metrics) PendingClosings(n int) {
	m.OutboxPending.Set(float64(n))
}

// RateLimited records a rejected request.
func (m *Metrics) RateLimited() {
	m.RateLimitHits.Inc()
}

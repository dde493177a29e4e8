package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/agencyledger/internal/domain"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Aggregation metrics
	Aggregations        *prometheus.CounterVec
	AggregationDuration *prometheus.HistogramVec
	SourceDuration      *prometheus.HistogramVec
	SourceErrors        *prometheus.CounterVec

	// Payment metrics
	PaymentsRecorded     *prometheus.CounterVec
	OverpaymentsRejected prometheus.Counter

	// Outbox metrics
	OutboxPublished prometheus.Counter
	OutboxErrors    prometheus.Counter

	// API metrics
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	HTTPInFlight   prometheus.Gauge
	RateLimitHits  prometheus.Counter
	AuthFailures   *prometheus.CounterVec
	IdempotentHits prometheus.Counter
}

// New creates and registers all Prometheus metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates and registers all Prometheus metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Aggregations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agencyledger_aggregations_total",
				Help: "Total balance aggregations by view and outcome",
			},
			[]string{"view", "status"},
		),
		AggregationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agencyledger_aggregation_duration_seconds",
				Help:    "Duration of balance aggregations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"view"},
		),
		SourceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agencyledger_source_query_duration_seconds",
				Help:    "Duration of transaction source queries",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"source"},
		),
		SourceErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agencyledger_source_errors_total",
				Help: "Total transaction source query failures",
			},
			[]string{"source"},
		),

		PaymentsRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agencyledger_payments_recorded_total",
				Help: "Total payments recorded",
			},
			[]string{"currency"},
		),
		OverpaymentsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "agencyledger_overpayments_rejected_total",
			Help: "Total payments rejected for exceeding the outstanding balance",
		}),

		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "agencyledger_outbox_published_total",
			Help: "Total outbox events published",
		}),
		OutboxErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "agencyledger_outbox_errors_total",
			Help: "Total outbox publish failures",
		}),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agencyledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agencyledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agencyledger_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),
		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "agencyledger_rate_limit_hits_total",
			Help: "Total requests rejected by the rate limiter",
		}),
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agencyledger_auth_failures_total",
				Help: "Total authentication failures",
			},
			[]string{"reason"},
		),
		IdempotentHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "agencyledger_idempotent_replays_total",
			Help: "Total responses replayed from the idempotency store",
		}),
	}
}

func status(err error) string {
	if err == nil {
		return "ok"
	}
	return string(domain.ErrorCode(err))
}

// ObserveSourceQuery records one transaction source query.
func (m *Metrics) ObserveSourceQuery(source string, d time.Duration, err error) {
	m.SourceDuration.WithLabelValues(source).Observe(d.Seconds())
	if err != nil {
		m.SourceErrors.WithLabelValues(source).Inc()
	}
}

// ObserveAggregation records one computed view.
func (m *Metrics) ObserveAggregation(view string, d time.Duration, err error) {
	m.Aggregations.WithLabelValues(view, status(err)).Inc()
	m.AggregationDuration.WithLabelValues(view).Observe(d.Seconds())
}

// PaymentRecorded counts a committed payment.
func (m *Metrics) PaymentRecorded(currencyID string) {
	m.PaymentsRecorded.WithLabelValues(currencyID).Inc()
}

// OverpaymentRejected counts a payment refused for exceeding the live balance.
func (m *Metrics) OverpaymentRejected() {
	m.OverpaymentsRejected.Inc()
}

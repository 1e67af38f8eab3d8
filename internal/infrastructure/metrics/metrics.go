package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Consumer outcomes
const (
	OutcomeHandled      = "handled"
	OutcomeMalformed    = "malformed"
	OutcomeUnregistered = "unregistered"
	OutcomeFailed       = "failed"
)

// Metrics holds all Prometheus metrics of the pipeline.
// Every method is safe to call on a nil *Metrics.
type Metrics struct {
	// Entry metrics
	EntriesCreated *prometheus.CounterVec

	// Outbox metrics
	OutboxPublished     prometheus.Counter
	OutboxPublishErrors prometheus.Counter
	OutboxSkipped       *prometheus.CounterVec
	OutboxBatchDuration prometheus.Histogram
	OutboxBatchSize     prometheus.Histogram

	// Consumer metrics
	MessagesConsumed *prometheus.CounterVec
	HandleDuration   *prometheus.HistogramVec

	// Projection metrics
	ProjectionsApplied   prometheus.Counter
	ProjectionDuplicates prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// New creates the metrics and registers them with reg.
// A nil reg falls back to prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		EntriesCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashflow_entries_created_total",
				Help: "Total number of entries recorded by direction",
			},
			[]string{"direction"},
		),

		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashflow_outbox_published_total",
			Help: "Total number of outbox records published and marked processed",
		}),
		OutboxPublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashflow_outbox_publish_errors_total",
			Help: "Total number of failed outbox publish attempts",
		}),
		OutboxSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashflow_outbox_skipped_total",
				Help: "Total number of outbox records marked failed without publishing",
			},
			[]string{"reason"},
		),
		OutboxBatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cashflow_outbox_batch_duration_seconds",
			Help:    "Duration of one dispatcher cycle",
			Buckets: prometheus.DefBuckets,
		}),
		OutboxBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cashflow_outbox_batch_size",
			Help:    "Number of records fetched per dispatcher cycle",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),

		MessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashflow_messages_consumed_total",
				Help: "Total number of consumed messages by outcome",
			},
			[]string{"queue", "outcome"},
		),
		HandleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cashflow_message_handle_duration_seconds",
				Help:    "Duration of message handling",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"event_type"},
		),

		ProjectionsApplied: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashflow_projections_applied_total",
			Help: "Total number of events applied to daily balances",
		}),
		ProjectionDuplicates: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashflow_projection_duplicates_total",
			Help: "Total number of events skipped by the processed-event ledger",
		}),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashflow_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cashflow_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashflow_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"path"},
		),
	}
}

func (m *Metrics) EntryCreated(direction string) {
	if m == nil {
		return
	}
	m.EntriesCreated.WithLabelValues(direction).Inc()
}

func (m *Metrics) OutboxPublishedInc() {
	if m == nil {
		return
	}
	m.OutboxPublished.Inc()
}

func (m *Metrics) OutboxPublishFailed() {
	if m == nil {
		return
	}
	m.OutboxPublishErrors.Inc()
}

func (m *Metrics) OutboxSkippedInc(reason string) {
	if m == nil {
		return
	}
	m.OutboxSkipped.WithLabelValues(reason).Inc()
}

// ObserveBatch records one dispatcher cycle.
func (m *Metrics) ObserveBatch(size int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.OutboxBatchSize.Observe(float64(size))
	m.OutboxBatchDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) MessageConsumed(queue, outcome string) {
	if m == nil {
		return
	}
	m.MessagesConsumed.WithLabelValues(queue, outcome).Inc()
}

func (m *Metrics) ObserveHandle(eventType string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HandleDuration.WithLabelValues(eventType).Observe(elapsed.Seconds())
}

func (m *Metrics) ProjectionApplied() {
	if m == nil {
		return
	}
	m.ProjectionsApplied.Inc()
}

func (m *Metrics) ProjectionDuplicate() {
	if m == nil {
		return
	}
	m.ProjectionDuplicates.Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, path, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, path, status).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func (m *Metrics) RateLimited(path string) {
	if m == nil {
		return
	}
	m.RateLimitHits.WithLabelValues(path).Inc()
}

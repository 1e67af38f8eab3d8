package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := New(registry)

	if m.OutboxPublished == nil || m.HTTPRequests == nil || m.MessagesConsumed == nil {
		t.Fatalf("expected key metrics to be initialized: %+v", m)
	}

	m.OutboxPublishedInc()
	m.MessageConsumed("cashflow.events", OutcomeHandled)

	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	if len(metricFamilies) == 0 {
		t.Fatalf("expected registered metrics, got none")
	}
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.EntryCreated("credit")
	m.EntryCreated("credit")
	m.OutboxPublishedInc()
	m.OutboxPublishFailed()
	m.OutboxSkippedInc("unknown_type")
	m.MessageConsumed("cashflow.events", OutcomeMalformed)
	m.ProjectionApplied()
	m.ProjectionDuplicate()
	m.RateLimited("/api/v1/entries")

	if got := testutil.ToFloat64(m.EntriesCreated.WithLabelValues("credit")); got != 2 {
		t.Errorf("entries created = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.OutboxPublished); got != 1 {
		t.Errorf("outbox published = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.OutboxPublishErrors); got != 1 {
		t.Errorf("outbox publish errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.OutboxSkipped.WithLabelValues("unknown_type")); got != 1 {
		t.Errorf("outbox skipped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.MessagesConsumed.WithLabelValues("cashflow.events", OutcomeMalformed)); got != 1 {
		t.Errorf("malformed messages = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ProjectionsApplied); got != 1 {
		t.Errorf("projections applied = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ProjectionDuplicates); got != 1 {
		t.Errorf("projection duplicates = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RateLimitHits.WithLabelValues("/api/v1/entries")); got != 1 {
		t.Errorf("rate limit hits = %v, want 1", got)
	}
}

func TestHistograms(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveBatch(10, 20*time.Millisecond)
	m.ObserveHandle("entry.created", time.Millisecond)
	m.ObserveHTTP("GET", "/health", "200", time.Millisecond)

	if got := testutil.CollectAndCount(m.OutboxBatchDuration); got != 1 {
		t.Errorf("expected one batch duration series, got %d", got)
	}
	if got := testutil.CollectAndCount(m.HTTPDuration); got != 1 {
		t.Errorf("expected one http duration series, got %d", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/health", "200")); got != 1 {
		t.Errorf("http requests = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	m.EntryCreated("debit")
	m.OutboxPublishedInc()
	m.OutboxPublishFailed()
	m.OutboxSkippedInc("decode")
	m.ObserveBatch(1, time.Second)
	m.MessageConsumed("q", OutcomeHandled)
	m.ObserveHandle("entry.created", time.Second)
	m.ProjectionApplied()
	m.ProjectionDuplicate()
	m.ObserveHTTP("GET", "/", "200", time.Second)
	m.RateLimited("/")
}

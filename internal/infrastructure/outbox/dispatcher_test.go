package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/infrastructure/messaging"
	"github.com/iho/cashflow/internal/usecase/mocks"
)

var base = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

type stubPublisher struct {
	mu         sync.Mutex
	published  []messaging.Event
	queues     []string
	errorsByID map[string]error
}

func (p *stubPublisher) Publish(ctx context.Context, event messaging.Event, queue string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.errorsByID[event.EventID()]; err != nil {
		return err
	}
	p.published = append(p.published, event)
	p.queues = append(p.queues, queue)
	return nil
}

func (p *stubPublisher) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, len(p.published))
	for i, e := range p.published {
		ids[i] = e.EventID()
	}
	return ids
}

func entryRecord(t *testing.T, n int) *domain.OutboxRecord {
	t.Helper()
	entry := &domain.Entry{
		ID:        fmt.Sprintf("entry-%02d", n),
		Date:      base,
		Amount:    decimal.NewFromInt(int64(n)),
		Direction: domain.DirectionCredit,
		CreatedAt: base,
	}
	content, err := json.Marshal(domain.NewEntryCreatedEvent(entry, ""))
	if err != nil {
		t.Fatal(err)
	}
	return domain.NewOutboxRecord(fmt.Sprintf("out-%02d", n), domain.EventTypeEntryCreated, content, "", base.Add(time.Duration(n)*time.Second))
}

func newTestDispatcher(repo *mocks.MemoryOutboxRepository, pub Publisher) *Dispatcher {
	nop := zerolog.Nop()
	return NewDispatcher(Config{
		OutboxRepo: repo,
		Publisher:  pub,
		Decoders: map[string]messaging.Decoder{
			domain.EventTypeEntryCreated: messaging.JSONDecoder[domain.EntryCreatedEvent](),
		},
		Logger:   &nop,
		Queue:    "cashflow.events",
		Interval: 10 * time.Millisecond,
	})
}

func TestProcessBatchPublishesInOrderAndMarks(t *testing.T) {
	repo := mocks.NewMemoryOutboxRepository()
	for n := 3; n >= 1; n-- {
		repo.Add(entryRecord(t, n))
	}
	pub := &stubPublisher{}
	d := newTestDispatcher(repo, pub)

	published, err := d.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}
	if published != 3 {
		t.Fatalf("expected 3 published, got %d", published)
	}

	want := []string{"entry-01", "entry-02", "entry-03"}
	got := pub.ids()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
	if pub.queues[0] != "cashflow.events" {
		t.Errorf("expected queue cashflow.events, got %q", pub.queues[0])
	}

	pending, _ := repo.FetchPending(context.Background(), 10)
	if len(pending) != 0 {
		t.Errorf("expected nothing pending, got %d", len(pending))
	}
}

func TestProcessBatchLeavesFailedPublishPending(t *testing.T) {
	repo := mocks.NewMemoryOutboxRepository()
	for n := 1; n <= 10; n++ {
		repo.Add(entryRecord(t, n))
	}
	pub := &stubPublisher{
		errorsByID: map[string]error{"entry-05": errors.New("broker unavailable")},
	}
	d := newTestDispatcher(repo, pub)

	published, err := d.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}
	if published != 9 {
		t.Fatalf("expected 9 published, got %d", published)
	}

	pending, _ := repo.FetchPending(context.Background(), 10)
	if len(pending) != 1 || pending[0].ID != "out-05" {
		t.Fatalf("expected only out-05 pending, got %v", pending)
	}
	if pending[0].Processed {
		t.Error("failed record must not be marked processed")
	}
	if pending[0].Attempts != 1 || pending[0].LastError != "broker unavailable" {
		t.Errorf("expected attempt recorded, got attempts=%d last_error=%q", pending[0].Attempts, pending[0].LastError)
	}
	if repo.ClaimedBy("out-05") != "" {
		t.Error("expected lease released")
	}

	// The broker recovers; the record goes out on the next cycle.
	pub.errorsByID = nil
	published, err = d.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}
	if published != 1 {
		t.Fatalf("expected retry to publish 1, got %d", published)
	}
}

func TestProcessBatchHonoursBatchSize(t *testing.T) {
	repo := mocks.NewMemoryOutboxRepository()
	for n := 1; n <= 15; n++ {
		repo.Add(entryRecord(t, n))
	}
	d := newTestDispatcher(repo, &stubPublisher{})

	published, _ := d.ProcessBatch(context.Background())
	if published != 10 {
		t.Fatalf("expected default batch of 10, got %d", published)
	}
	published, _ = d.ProcessBatch(context.Background())
	if published != 5 {
		t.Fatalf("expected remaining 5, got %d", published)
	}
}

func TestProcessBatchMarksUnknownAndUndecodableFailed(t *testing.T) {
	repo := mocks.NewMemoryOutboxRepository()
	unknown := domain.NewOutboxRecord("out-unknown", "entry.deleted", []byte(`{}`), "", base)
	garbage := domain.NewOutboxRecord("out-garbage", domain.EventTypeEntryCreated, []byte(`{not json`), "", base.Add(time.Second))
	repo.Add(unknown, garbage, entryRecord(t, 3))

	pub := &stubPublisher{}
	d := newTestDispatcher(repo, pub)

	published, err := d.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}
	if published != 1 {
		t.Fatalf("expected 1 published, got %d", published)
	}

	for _, id := range []string{"out-unknown", "out-garbage"} {
		rec, _ := repo.GetByID(context.Background(), id)
		if rec.FailedAt == nil || rec.LastError == "" {
			t.Errorf("%s: expected failure marker, got %+v", id, rec)
		}
		if rec.Processed {
			t.Errorf("%s: must not be processed", id)
		}
	}

	// Failed records are never picked up again.
	published, _ = d.ProcessBatch(context.Background())
	if published != 0 || len(pub.ids()) != 1 {
		t.Errorf("expected failed records to stay parked, published %v", pub.ids())
	}
}

func TestProcessBatchUsesRoutes(t *testing.T) {
	repo := mocks.NewMemoryOutboxRepository()
	repo.Add(entryRecord(t, 1))
	pub := &stubPublisher{}
	d := newTestDispatcher(repo, pub)
	d.routes = map[string]string{domain.EventTypeEntryCreated: "entries.created"}

	if _, err := d.ProcessBatch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if pub.queues[0] != "entries.created" {
		t.Errorf("expected routed queue, got %q", pub.queues[0])
	}
}

func TestProcessBatchReleasesClaimsWhenCancelled(t *testing.T) {
	repo := mocks.NewMemoryOutboxRepository()
	repo.Add(entryRecord(t, 1), entryRecord(t, 2))

	ctx, cancel := context.WithCancel(context.Background())
	pub := &cancellingPublisher{cancel: cancel}
	d := newTestDispatcher(repo, pub)

	published, err := d.ProcessBatch(ctx)
	if err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}
	if published != 1 {
		t.Fatalf("expected in-flight record to finish, got %d", published)
	}
	if repo.ClaimedBy("out-02") != "" {
		t.Error("expected remaining claim released")
	}
	pending, _ := repo.FetchPending(context.Background(), 10)
	if len(pending) != 1 || pending[0].ID != "out-02" {
		t.Fatalf("expected out-02 pending, got %v", pending)
	}
	if pending[0].Attempts != 0 || pending[0].LastError != "" {
		t.Errorf("an unattempted record must not count an attempt, got attempts=%d last_error=%q",
			pending[0].Attempts, pending[0].LastError)
	}
}

// hangingPublisher never gets a broker confirm: it blocks until its context
// ends.
type hangingPublisher struct {
	calls chan struct{}
}

func (p *hangingPublisher) Publish(ctx context.Context, event messaging.Event, queue string) error {
	select {
	case p.calls <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestProcessBatchTimesOutUnconfirmedPublish(t *testing.T) {
	repo := mocks.NewMemoryOutboxRepository()
	repo.Add(entryRecord(t, 1))
	d := newTestDispatcher(repo, &hangingPublisher{calls: make(chan struct{}, 1)})
	d.pubTimeout = 50 * time.Millisecond

	done := make(chan int, 1)
	go func() {
		published, _ := d.ProcessBatch(context.Background())
		done <- published
	}()

	select {
	case published := <-done:
		if published != 0 {
			t.Fatalf("expected nothing published, got %d", published)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("publish without a confirm blocked the batch")
	}

	rec, err := repo.GetByID(context.Background(), "out-01")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Processed || rec.Attempts != 1 || rec.LastError == "" {
		t.Errorf("expected timed out record released for retry, got %+v", rec)
	}
	if repo.ClaimedBy("out-01") != "" {
		t.Error("expected lease dropped after timeout")
	}
}

func TestStartReturnsPromptlyWhilePublishHangs(t *testing.T) {
	repo := mocks.NewMemoryOutboxRepository()
	repo.Add(entryRecord(t, 1))
	pub := &hangingPublisher{calls: make(chan struct{}, 1)}
	d := newTestDispatcher(repo, pub)
	d.pubTimeout = 200 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	select {
	case <-pub.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("publish never started")
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher still blocked after cancellation")
	}
}

func TestNewDispatcherKeepsPublishTimeoutBelowClaimTTL(t *testing.T) {
	d := NewDispatcher(Config{ClaimTTL: 30 * time.Second, PublishTimeout: time.Minute})
	if d.pubTimeout != 10*time.Second {
		t.Errorf("expected publish timeout clamped to 10s, got %s", d.pubTimeout)
	}

	d = NewDispatcher(Config{ClaimTTL: 30 * time.Second, PublishTimeout: 2 * time.Second})
	if d.pubTimeout != 2*time.Second {
		t.Errorf("expected configured publish timeout, got %s", d.pubTimeout)
	}
}

// leaseStealingPublisher lets the lease expire mid-publish and has another
// replica claim the record before the publish returns.
type leaseStealingPublisher struct {
	repo  *mocks.MemoryOutboxRepository
	clock *time.Time
}

func (p *leaseStealingPublisher) Publish(ctx context.Context, event messaging.Event, queue string) error {
	*p.clock = p.clock.Add(time.Hour)
	_, err := p.repo.ClaimPending(ctx, "entries-b", 10, time.Minute)
	return err
}

func TestProcessBatchDoesNotSettleRecordClaimedElsewhere(t *testing.T) {
	clock := base
	repo := mocks.NewMemoryOutboxRepository()
	repo.Now = func() time.Time { return clock }
	repo.Add(entryRecord(t, 1))

	d := newTestDispatcher(repo, &leaseStealingPublisher{repo: repo, clock: &clock})

	published, err := d.ProcessBatch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if published != 0 {
		t.Fatalf("expected no record settled, got %d", published)
	}

	rec, _ := repo.GetByID(context.Background(), "out-01")
	if rec.Processed {
		t.Error("record leased to another replica was marked processed")
	}
	if owner := repo.ClaimedBy("out-01"); owner != "entries-b" {
		t.Errorf("expected entries-b to keep its lease, got %q", owner)
	}
}

type cancellingPublisher struct {
	cancel context.CancelFunc
}

func (p *cancellingPublisher) Publish(ctx context.Context, event messaging.Event, queue string) error {
	p.cancel()
	return nil
}

func TestProcessBatchContinuesStoredTrace(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	transport := &recordingTransport{}
	pub := messaging.NewPublisher(messaging.PublisherConfig{Transport: transport, Tracer: tp.Tracer("test")})

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	rec := entryRecord(t, 1)
	rec.TraceParent = "00-" + traceID + "-00f067aa0ba902b7-01"

	repo := mocks.NewMemoryOutboxRepository()
	repo.Add(rec)
	d := newTestDispatcher(repo, pub)

	if _, err := d.ProcessBatch(context.Background()); err != nil {
		t.Fatal(err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected one producer span, got %d", len(spans))
	}
	if got := spans[0].SpanContext().TraceID().String(); got != traceID {
		t.Errorf("expected trace %s, got %s", traceID, got)
	}
	if got := spans[0].Parent().SpanID().String(); got != "00f067aa0ba902b7" {
		t.Errorf("expected parent span from stored traceparent, got %s", got)
	}
	if len(transport.sent) != 1 || len(transport.sent[0].Headers["traceparent"]) == 0 {
		t.Error("expected traceparent header on the message")
	}
}

type recordingTransport struct {
	sent []messaging.Message
}

func (r *recordingTransport) Send(ctx context.Context, queue string, msg messaging.Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

func TestStartStopsOnContextCancellation(t *testing.T) {
	repo := mocks.NewMemoryOutboxRepository()
	repo.Add(entryRecord(t, 1))
	pub := &stubPublisher{}
	d := newTestDispatcher(repo, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	deadline := time.After(2 * time.Second)
	for len(pub.ids()) == 0 {
		select {
		case <-deadline:
			t.Fatal("record was not published")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

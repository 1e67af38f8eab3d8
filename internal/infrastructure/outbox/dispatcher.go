// Package outbox publishes recorded outbox rows to the broker.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/infrastructure/messaging"
	"github.com/iho/cashflow/internal/infrastructure/metrics"
	"github.com/iho/cashflow/internal/infrastructure/tracing"
	"github.com/iho/cashflow/internal/usecase"
)

// Skip reasons
const (
	ReasonUnknownType = "unknown_type"
	ReasonUndecodable = "undecodable"
)

// Publisher sends a decoded event to a queue.
type Publisher interface {
	Publish(ctx context.Context, event messaging.Event, queue string) error
}

// Dispatcher polls the outbox and publishes pending records in creation order.
type Dispatcher struct {
	outboxRepo usecase.OutboxRepository
	publisher  Publisher
	decoders   map[string]messaging.Decoder
	routes     map[string]string
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	now        func() time.Time
	queue      string
	owner      string
	batchSize  int
	interval   time.Duration
	claimTTL   time.Duration
	pubTimeout time.Duration
}

// Config for Dispatcher.
type Config struct {
	OutboxRepo usecase.OutboxRepository
	Publisher  Publisher
	// Decoders by outbox type. Records of other types are marked failed.
	Decoders map[string]messaging.Decoder
	// Routes overrides Queue per outbox type.
	Routes  map[string]string
	Metrics *metrics.Metrics
	Logger  *zerolog.Logger
	Now     func() time.Time
	Queue   string
	// Owner identifies this replica in record leases.
	Owner     string
	BatchSize int           // Number of records to claim per cycle
	Interval  time.Duration // Polling interval
	ClaimTTL  time.Duration // Lease held on claimed records
	// PublishTimeout bounds one publish including the broker confirm. It
	// should be well below ClaimTTL. Defaults to ClaimTTL/3.
	PublishTimeout time.Duration
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.ClaimTTL == 0 {
		cfg.ClaimTTL = 30 * time.Second
	}
	if cfg.PublishTimeout <= 0 || cfg.PublishTimeout >= cfg.ClaimTTL {
		cfg.PublishTimeout = cfg.ClaimTTL / 3
	}
	if cfg.Logger == nil {
		cfg.Logger = &log.Logger
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Owner == "" {
		cfg.Owner = "dispatcher"
	}

	return &Dispatcher{
		outboxRepo: cfg.OutboxRepo,
		publisher:  cfg.Publisher,
		decoders:   cfg.Decoders,
		routes:     cfg.Routes,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With().Str("component", "outbox_dispatcher").Str("owner", cfg.Owner).Logger(),
		now:        cfg.Now,
		queue:      cfg.Queue,
		owner:      cfg.Owner,
		batchSize:  cfg.BatchSize,
		interval:   cfg.Interval,
		claimTTL:   cfg.ClaimTTL,
		pubTimeout: cfg.PublishTimeout,
	}
}

// Start runs dispatch cycles until ctx is cancelled. A record being published
// when ctx is cancelled is finished first, within the publish timeout.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info().
		Int("batch_size", d.batchSize).
		Dur("interval", d.interval).
		Msg("outbox dispatcher started")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	// Process immediately on start
	if _, err := d.ProcessBatch(ctx); err != nil {
		d.logger.Error().Err(err).Msg("error processing outbox on start")
	}

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("outbox dispatcher shutting down")
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.ProcessBatch(ctx); err != nil {
				d.logger.Error().Err(err).Msg("error processing outbox")
			}
		}
	}
}

// ProcessBatch claims up to one batch of pending records and publishes them
// serially. It returns how many were marked processed. Per-record failures
// are logged and do not fail the batch.
func (d *Dispatcher) ProcessBatch(ctx context.Context) (int, error) {
	started := time.Now()

	records, err := d.outboxRepo.ClaimPending(ctx, d.owner, d.batchSize, d.claimTTL)
	if err != nil {
		return 0, fmt.Errorf("failed to claim outbox records: %w", err)
	}

	if len(records) == 0 {
		return 0, nil
	}

	d.logger.Debug().Int("count", len(records)).Msg("processing outbox records")

	published := 0
	for i, record := range records {
		if ctx.Err() != nil {
			d.unclaim(records[i:])
			break
		}
		if d.dispatch(ctx, record) {
			published++
		}
	}

	d.metrics.ObserveBatch(len(records), time.Since(started))

	return published, nil
}

// dispatch publishes one record and settles it. It reports whether the
// record was marked processed.
func (d *Dispatcher) dispatch(ctx context.Context, record *domain.OutboxRecord) bool {
	l := d.logger.With().
		Str("outbox_id", record.ID).
		Str("event_type", record.Type).
		Logger()

	decode, ok := d.decoders[record.Type]
	if !ok {
		d.fail(ctx, l, record, ReasonUnknownType, fmt.Errorf("no decoder for event type %q", record.Type))
		return false
	}

	event, err := decode(record.Content)
	if err != nil {
		d.fail(ctx, l, record, ReasonUndecodable, err)
		return false
	}

	// Cancellation does not abort a publish in progress; the timeout does,
	// and a timed out publish is released like any other failure.
	settleCtx := tracing.WithTraceParent(context.WithoutCancel(ctx), record.TraceParent)
	pubCtx, cancel := context.WithTimeout(settleCtx, d.pubTimeout)
	err = d.publisher.Publish(pubCtx, event, d.queueFor(record.Type))
	cancel()

	if err != nil {
		d.metrics.OutboxPublishFailed()
		l.Error().Err(err).Int("attempts", record.Attempts+1).Msg("failed to publish outbox record")
		if err := d.outboxRepo.Release(settleCtx, record.ID, err.Error()); err != nil {
			l.Error().Err(err).Msg("failed to release outbox record")
		}
		return false
	}

	if err := d.outboxRepo.MarkProcessed(settleCtx, record.ID, d.owner, d.now()); err != nil {
		if errors.Is(err, domain.ErrOutboxClaimLost) {
			// Another replica owns the record now and will publish it again.
			l.Warn().Msg("outbox record lease lost before it was marked processed")
			return false
		}
		// Published but still pending: it will be sent again once the lease expires.
		l.Error().Err(err).Msg("failed to mark outbox record processed")
		return false
	}

	d.metrics.OutboxPublishedInc()
	l.Info().Msg("outbox record published")

	return true
}

func (d *Dispatcher) fail(ctx context.Context, l zerolog.Logger, record *domain.OutboxRecord, reason string, cause error) {
	d.metrics.OutboxSkippedInc(reason)
	l.Error().Err(cause).Str("reason", reason).Msg("outbox record cannot be published, marking failed")

	if err := d.outboxRepo.MarkFailed(context.WithoutCancel(ctx), record.ID, d.now(), cause.Error()); err != nil {
		l.Error().Err(err).Msg("failed to mark outbox record failed")
	}
}

// unclaim hands claims that were never attempted back, so another replica
// can pick them up without waiting for the lease to expire. Attempts are not
// counted.
func (d *Dispatcher) unclaim(records []*domain.OutboxRecord) {
	ctx := context.Background()
	for _, record := range records {
		if err := d.outboxRepo.Unclaim(ctx, record.ID, d.owner); err != nil {
			d.logger.Warn().Err(err).Str("outbox_id", record.ID).Msg("failed to unclaim outbox record")
		}
	}
}

func (d *Dispatcher) queueFor(eventType string) string {
	if q, ok := d.routes[eventType]; ok {
		return q
	}
	return d.queue
}

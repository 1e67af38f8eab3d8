package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/infrastructure/logger"
	"github.com/iho/cashflow/internal/infrastructure/metrics"
	"github.com/iho/cashflow/internal/infrastructure/tracing"
)

// EntryUseCase records entries together with their outbox records.
type EntryUseCase struct {
	txManager  TransactionManager
	entryRepo  EntryRepository
	outboxRepo OutboxRepository
	idGen      IDGenerator
	retrier    Retrier
	tracer     trace.Tracer
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewEntryUseCase creates a new EntryUseCase.
func NewEntryUseCase(
	txManager TransactionManager,
	entryRepo EntryRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	retrier Retrier,
) *EntryUseCase {
	return &EntryUseCase{
		txManager:  txManager,
		entryRepo:  entryRepo,
		outboxRepo: outboxRepo,
		idGen:      idGen,
		retrier:    retrier,
		tracer:     tracing.Tracer(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithMetrics enables entry metrics.
func (uc *EntryUseCase) WithMetrics(m *metrics.Metrics) *EntryUseCase {
	uc.metrics = m
	return uc
}

// WithTracer replaces the tracer.
func (uc *EntryUseCase) WithTracer(t trace.Tracer) *EntryUseCase {
	uc.tracer = t
	return uc
}

// CreateEntryInput represents input for recording an entry.
type CreateEntryInput struct {
	Date        time.Time
	Direction   domain.Direction
	Description string
	Amount      decimal.Decimal
}

// CreateEntry validates the input, then writes the entry and its
// entry-created outbox record in one transaction.
func (uc *EntryUseCase) CreateEntry(ctx context.Context, input CreateEntryInput) (*domain.Entry, error) {
	ctx, span := uc.tracer.Start(ctx, "create entry", trace.WithAttributes(
		attribute.String("entry.direction", string(input.Direction)),
	))
	defer span.End()

	now := uc.now()

	entry, err := domain.NewEntry(uc.idGen.Generate(), input.Date, input.Amount, input.Direction, input.Description, now)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	event := domain.NewEntryCreatedEvent(entry, logger.CorrelationID(ctx))
	content, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", event.EventType(), err)
	}

	record := domain.NewOutboxRecord(uc.idGen.Generate(), event.EventType(), content, tracing.TraceParent(ctx), now)

	err = uc.retrier.Retry(ctx, func() error {
		return uc.appendAtomically(ctx, entry, record)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("entry.id", entry.ID))
	uc.metrics.EntryCreated(string(entry.Direction))

	zerolog.Ctx(ctx).Info().
		Str("entry_id", entry.ID).
		Str("outbox_id", record.ID).
		Str("direction", string(entry.Direction)).
		Str("amount", entry.Amount.String()).
		Msg("entry recorded")

	return entry, nil
}

// appendAtomically inserts entry and record in one transaction; neither
// survives if either insert or the commit fails.
func (uc *EntryUseCase) appendAtomically(ctx context.Context, entry *domain.Entry, record *domain.OutboxRecord) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := uc.entryRepo.Create(ctx, tx, entry); err != nil {
		return err
	}

	if err := uc.outboxRepo.Create(ctx, tx, record); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetEntry returns an entry by ID.
func (uc *EntryUseCase) GetEntry(ctx context.Context, id string) (*domain.Entry, error) {
	return uc.entryRepo.GetByID(ctx, id)
}

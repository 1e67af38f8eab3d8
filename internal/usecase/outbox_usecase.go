package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/cashflow/internal/domain"
)

// OutboxUseCase exposes operator actions on the outbox.
type OutboxUseCase struct {
	outboxRepo OutboxRepository
}

// NewOutboxUseCase creates a new OutboxUseCase.
func NewOutboxUseCase(outboxRepo OutboxRepository) *OutboxUseCase {
	return &OutboxUseCase{outboxRepo: outboxRepo}
}

// ListPending lists unprocessed records, including failed ones.
func (uc *OutboxUseCase) ListPending(ctx context.Context, limit, offset int) ([]*domain.OutboxRecord, error) {
	limit, offset, _ = domain.ValidatePagination(limit, offset)
	return uc.outboxRepo.ListUnprocessed(ctx, limit, offset)
}

// Requeue clears the failure marker of a record so the dispatcher retries it.
func (uc *OutboxUseCase) Requeue(ctx context.Context, id string) (*domain.OutboxRecord, error) {
	if err := uc.outboxRepo.Requeue(ctx, id); err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Str("outbox_id", id).Msg("outbox record requeued")

	return uc.outboxRepo.GetByID(ctx, id)
}

// PurgeProcessed deletes records processed before the given time.
func (uc *OutboxUseCase) PurgeProcessed(ctx context.Context, before time.Time) (int64, error) {
	n, err := uc.outboxRepo.DeleteProcessed(ctx, before)
	if err != nil {
		return 0, err
	}

	zerolog.Ctx(ctx).Info().Int64("deleted", n).Time("before", before).Msg("processed outbox records purged")

	return n, nil
}

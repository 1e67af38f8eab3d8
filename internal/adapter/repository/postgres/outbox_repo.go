package postgres

import (
	"context"
	"slices"
	"time"

	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/infrastructure/postgres/generated"
	"github.com/iho/cashflow/internal/usecase"
)

// OutboxRepository implements usecase.OutboxRepository.
type OutboxRepository struct {
	queries *generated.Queries
	now     func() time.Time
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(db generated.DBTX) *OutboxRepository {
	return &OutboxRepository{
		queries: generated.New(db),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create creates a new outbox record within a transaction.
func (r *OutboxRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.OutboxRecord) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	return queries.CreateOutboxMessage(ctx, generated.CreateOutboxMessageParams{
		ID:          record.ID,
		Type:        record.Type,
		Content:     record.Content,
		TraceParent: optionalText(record.TraceParent),
		CreatedAt:   timeToPgTimestamptz(record.CreatedAt),
	})
}

// GetByID retrieves a record by ID.
func (r *OutboxRepository) GetByID(ctx context.Context, id string) (*domain.OutboxRecord, error) {
	row, err := r.queries.GetOutboxMessage(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrOutboxRecordNotFound
		}
		return nil, err
	}

	return rowToOutboxRecord(row), nil
}

// FetchPending retrieves pending records oldest first.
func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]*domain.OutboxRecord, error) {
	rows, err := r.queries.FetchPendingOutboxMessages(ctx, int32(limit))
	if err != nil {
		return nil, err
	}

	return rowsToOutboxRecords(rows), nil
}

// ClaimPending leases pending records to owner. Rows locked by a concurrent
// claim are skipped rather than waited on.
func (r *OutboxRepository) ClaimPending(ctx context.Context, owner string, limit int, lease time.Duration) ([]*domain.OutboxRecord, error) {
	now := r.now()

	rows, err := r.queries.ClaimPendingOutboxMessages(ctx, generated.ClaimPendingOutboxMessagesParams{
		ClaimedBy:    optionalText(owner),
		ClaimedUntil: timeToPgTimestamptz(now.Add(lease)),
		Now:          timeToPgTimestamptz(now),
		Limit:        int32(limit),
	})
	if err != nil {
		return nil, err
	}

	// UPDATE ... RETURNING does not keep the subquery order.
	records := rowsToOutboxRecords(rows)
	slices.SortFunc(records, func(a, b *domain.OutboxRecord) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	return records, nil
}

// MarkProcessed marks a record owner still holds as processed. A record that
// is gone, already processed or leased to someone else yields
// domain.ErrOutboxClaimLost.
func (r *OutboxRepository) MarkProcessed(ctx context.Context, id, owner string, processedAt time.Time) error {
	n, err := r.queries.MarkOutboxMessageProcessed(ctx, generated.MarkOutboxMessageProcessedParams{
		ID:          id,
		ProcessedAt: timeToPgTimestamptz(processedAt),
		ClaimedBy:   optionalText(owner),
	})
	if err == nil && n == 0 {
		return domain.ErrOutboxClaimLost
	}
	return err
}

// Unclaim drops owner's lease without counting an attempt.
func (r *OutboxRepository) Unclaim(ctx context.Context, id, owner string) error {
	n, err := r.queries.UnclaimOutboxMessage(ctx, generated.UnclaimOutboxMessageParams{
		ID:        id,
		ClaimedBy: optionalText(owner),
	})
	if err == nil && n == 0 {
		return domain.ErrOutboxClaimLost
	}
	return err
}

// Release drops the lease on a record after a failed publish.
func (r *OutboxRepository) Release(ctx context.Context, id string, cause string) error {
	n, err := r.queries.ReleaseOutboxMessage(ctx, generated.ReleaseOutboxMessageParams{
		ID:        id,
		LastError: optionalText(cause),
	})
	return affected(n, err)
}

// MarkFailed parks a record until it is requeued.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, failedAt time.Time, cause string) error {
	n, err := r.queries.MarkOutboxMessageFailed(ctx, generated.MarkOutboxMessageFailedParams{
		ID:        id,
		FailedAt:  timeToPgTimestamptz(failedAt),
		LastError: optionalText(cause),
	})
	return affected(n, err)
}

// Requeue clears the failure marker and attempt count of a record.
func (r *OutboxRepository) Requeue(ctx context.Context, id string) error {
	n, err := r.queries.RequeueOutboxMessage(ctx, id)
	return affected(n, err)
}

// ListUnprocessed pages through unprocessed records, failed ones included.
func (r *OutboxRepository) ListUnprocessed(ctx context.Context, limit, offset int) ([]*domain.OutboxRecord, error) {
	rows, err := r.queries.ListUnprocessedOutboxMessages(ctx, generated.ListUnprocessedOutboxMessagesParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, err
	}

	return rowsToOutboxRecords(rows), nil
}

// DeleteProcessed deletes records processed before the given time.
func (r *OutboxRepository) DeleteProcessed(ctx context.Context, before time.Time) (int64, error) {
	return r.queries.DeleteProcessedOutboxMessages(ctx, timeToPgTimestamptz(before))
}

func affected(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrOutboxRecordNotFound
	}
	return nil
}

func rowsToOutboxRecords(rows []generated.OutboxMessage) []*domain.OutboxRecord {
	records := make([]*domain.OutboxRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, rowToOutboxRecord(row))
	}
	return records
}

func rowToOutboxRecord(row generated.OutboxMessage) *domain.OutboxRecord {
	return &domain.OutboxRecord{
		ID:          row.ID,
		Type:        row.Type,
		Content:     row.Content,
		TraceParent: row.TraceParent.String,
		CreatedAt:   row.CreatedAt.Time,
		Processed:   row.Processed,
		ProcessedAt: optionalTime(row.ProcessedAt),
		FailedAt:    optionalTime(row.FailedAt),
		LastError:   row.LastError.String,
		Attempts:    int(row.Attempts),
	}
}

package postgres

import (
	"context"
	"time"

	"github.com/iho/cashflow/internal/infrastructure/postgres/generated"
	"github.com/iho/cashflow/internal/usecase"
)

// ProcessedEventRepository implements usecase.ProcessedEventRepository.
type ProcessedEventRepository struct{}

// NewProcessedEventRepository creates a new ProcessedEventRepository.
func NewProcessedEventRepository() *ProcessedEventRepository {
	return &ProcessedEventRepository{}
}

// MarkProcessed inserts the event into the ledger within tx. It reports
// false when the event was already there.
func (r *ProcessedEventRepository) MarkProcessed(ctx context.Context, tx usecase.Transaction, eventID, eventType string, at time.Time) (bool, error) {
	queries, err := txQueries(tx)
	if err != nil {
		return false, err
	}

	n, err := queries.InsertProcessedEvent(ctx, generated.InsertProcessedEventParams{
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: timeToPgTimestamptz(at),
	})
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

package postgres

import (
	"context"

	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/infrastructure/postgres/generated"
	"github.com/iho/cashflow/internal/usecase"
)

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	queries *generated.Queries
}

// NewEntryRepository creates a new EntryRepository. db is usually a *pgxpool.Pool.
func NewEntryRepository(db generated.DBTX) *EntryRepository {
	return &EntryRepository{
		queries: generated.New(db),
	}
}

// Create inserts an entry within tx.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	_, err = queries.CreateEntry(ctx, generated.CreateEntryParams{
		ID:          entry.ID,
		EntryDate:   timeToPgDate(entry.Date),
		Amount:      decimalToNumeric(entry.Amount),
		Direction:   string(entry.Direction),
		Description: entry.Description,
		CreatedAt:   timeToPgTimestamptz(entry.CreatedAt),
	})

	return err
}

// GetByID retrieves an entry by ID.
func (r *EntryRepository) GetByID(ctx context.Context, id string) (*domain.Entry, error) {
	row, err := r.queries.GetEntry(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}

	return rowToEntry(row), nil
}

func rowToEntry(row generated.Entry) *domain.Entry {
	return &domain.Entry{
		ID:          row.ID,
		Date:        row.EntryDate.Time,
		Amount:      numericToDecimal(row.Amount),
		Direction:   domain.Direction(row.Direction),
		Description: row.Description,
		CreatedAt:   row.CreatedAt.Time,
	}
}

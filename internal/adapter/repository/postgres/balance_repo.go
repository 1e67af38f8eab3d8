package postgres

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/infrastructure/postgres/generated"
	"github.com/iho/cashflow/internal/usecase"
)

// BalanceRepository implements usecase.BalanceRepository.
type BalanceRepository struct {
	queries *generated.Queries
}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository(db generated.DBTX) *BalanceRepository {
	return &BalanceRepository{
		queries: generated.New(db),
	}
}

// GetByDate retrieves the balance of a calendar date.
func (r *BalanceRepository) GetByDate(ctx context.Context, date time.Time) (*domain.Balance, error) {
	row, err := r.queries.GetDailyBalance(ctx, timeToPgDate(date))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrBalanceNotFound
		}
		return nil, err
	}

	return rowToBalance(row), nil
}

// ApplyDelta upserts the balance of date, adding delta in the database so
// concurrent projections cannot lose an update.
func (r *BalanceRepository) ApplyDelta(ctx context.Context, tx usecase.Transaction, id string, date time.Time, delta decimal.Decimal, now time.Time) (*domain.Balance, error) {
	queries, err := txQueries(tx)
	if err != nil {
		return nil, err
	}

	row, err := queries.ApplyDailyBalanceDelta(ctx, generated.ApplyDailyBalanceDeltaParams{
		ID:          id,
		BalanceDate: timeToPgDate(date),
		Total:       decimalToNumeric(delta),
		UpdatedAt:   timeToPgTimestamptz(now),
	})
	if err != nil {
		return nil, err
	}

	return rowToBalance(row), nil
}

func rowToBalance(row generated.DailyBalance) *domain.Balance {
	return &domain.Balance{
		ID:        row.ID,
		Date:      row.BalanceDate.Time,
		Total:     numericToDecimal(row.Total),
		UpdatedAt: row.UpdatedAt.Time,
	}
}

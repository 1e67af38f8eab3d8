package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is the consolidated total of every projected entry for one calendar date.
type Balance struct {
	UpdatedAt time.Time
	Date      time.Time
	ID        string
	Total     decimal.Decimal
}

// NewBalance seeds a balance for date with the first delta.
func NewBalance(id string, date time.Time, delta decimal.Decimal, now time.Time) *Balance {
	return &Balance{
		ID:        id,
		Date:      DateOf(date),
		Total:     delta,
		UpdatedAt: now,
	}
}

// Apply adds a signed delta to the running total.
func (b *Balance) Apply(delta decimal.Decimal, now time.Time) {
	b.Total = b.Total.Add(delta)
	b.UpdatedAt = now
}

package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction carries the sign of an entry. Stored amounts are always positive.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// ParseDirection parses a direction, case-insensitively.
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", NewValidationError("direction", ErrInvalidDirection)
	}
	return d, nil
}

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// Sign returns +amount for credits and -amount for debits.
func (d Direction) Sign(amount decimal.Decimal) decimal.Decimal {
	if d == DirectionDebit {
		return amount.Neg()
	}
	return amount
}

// Entry is a single immutable cash-flow record.
type Entry struct {
	CreatedAt   time.Time
	Date        time.Time
	ID          string
	Description string
	Direction   Direction
	Amount      decimal.Decimal
}

// NewEntry validates the command fields and builds an Entry.
func NewEntry(id string, date time.Time, amount decimal.Decimal, direction Direction, description string, now time.Time) (*Entry, error) {
	if date.IsZero() {
		return nil, NewValidationError("date", ErrMissingDate)
	}

	if err := ValidateAmount(amount); err != nil {
		return nil, NewValidationError("amount", err)
	}

	if !direction.Valid() {
		return nil, NewValidationError("direction", ErrInvalidDirection)
	}

	description = strings.TrimSpace(description)
	if err := ValidateDescription(description); err != nil {
		return nil, NewValidationError("description", err)
	}

	return &Entry{
		ID:          id,
		Date:        date,
		Amount:      amount,
		Direction:   direction,
		Description: description,
		CreatedAt:   now,
	}, nil
}

// SignedAmount returns the amount with the direction applied.
func (e *Entry) SignedAmount() decimal.Decimal {
	return e.Direction.Sign(e.Amount)
}

// Day returns the calendar date the entry is grouped under.
func (e *Entry) Day() time.Time {
	return DateOf(e.Date)
}

// DateOf drops the time of day, keeping the calendar date of t in its own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

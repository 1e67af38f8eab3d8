package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/usecase"
)

// CreateEntryRequest represents a request to record an entry.
type CreateEntryRequest struct {
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Amount      string `json:"amount" validate:"required,numeric"`
	Direction   string `json:"direction" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// ToUseCaseInput converts to use case input. Shape errors come back as
// *domain.ValidationError; range checks are left to the entry aggregate.
func (r *CreateEntryRequest) ToUseCaseInput() (usecase.CreateEntryInput, error) {
	date, err := time.Parse(usecase.DateLayout, r.Date)
	if err != nil {
		return usecase.CreateEntryInput{}, domain.NewValidationError("date", err)
	}

	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return usecase.CreateEntryInput{}, domain.NewValidationError("amount", err)
	}

	direction, err := domain.ParseDirection(r.Direction)
	if err != nil {
		return usecase.CreateEntryInput{}, err
	}

	return usecase.CreateEntryInput{
		Date:        date,
		Amount:      amount,
		Direction:   direction,
		Description: r.Description,
	}, nil
}

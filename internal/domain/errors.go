package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is the root of every command validation failure.
	ErrValidation = errors.New("validation failed")

	// Entry errors
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrMissingDate        = errors.New("date is required")
	ErrMissingDescription = errors.New("description is required")
	ErrInvalidDirection   = errors.New("direction must be credit or debit")
	ErrEntryNotFound      = errors.New("entry not found")

	// Balance errors
	ErrBalanceNotFound = errors.New("balance not found")

	// Outbox errors
	ErrOutboxRecordNotFound = errors.New("outbox record not found")
	ErrOutboxClaimLost      = errors.New("outbox record is no longer claimed by this dispatcher")
)

// ValidationError reports which command field was rejected.
// It matches both ErrValidation and the specific cause under errors.Is.
type ValidationError struct {
	Field string
	Err   error
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

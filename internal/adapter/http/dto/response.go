package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/usecase"
)

// CreateEntryResponse is returned after an entry is recorded.
type CreateEntryResponse struct {
	ID string `json:"id"`
}

// EntryResponse represents an entry in API responses.
type EntryResponse struct {
	ID          string          `json:"id"`
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   string          `json:"direction"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

// EntryFromDomain converts a domain entry to a response.
func EntryFromDomain(e *domain.Entry) *EntryResponse {
	return &EntryResponse{
		ID:          e.ID,
		Date:        e.Day().Format(usecase.DateLayout),
		Amount:      e.Amount,
		Direction:   string(e.Direction),
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	}
}

// BalanceResponse is the consolidated balance of one date.
type BalanceResponse struct {
	Date    string          `json:"date"`
	Balance decimal.Decimal `json:"balance"`
}

// BalanceFromDomain converts a domain balance to a response.
func BalanceFromDomain(b *domain.Balance) *BalanceResponse {
	return &BalanceResponse{
		Date:    domain.DateOf(b.Date).Format(usecase.DateLayout),
		Balance: b.Total,
	}
}

// OutboxRecordResponse represents an outbox record in API responses.
// The payload is omitted.
type OutboxRecordResponse struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	TraceParent string     `json:"trace_parent,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	Processed   bool       `json:"processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`
}

// OutboxRecordFromDomain converts a domain outbox record to a response.
func OutboxRecordFromDomain(r *domain.OutboxRecord) *OutboxRecordResponse {
	return &OutboxRecordResponse{
		ID:          r.ID,
		Type:        r.Type,
		TraceParent: r.TraceParent,
		CreatedAt:   r.CreatedAt,
		Processed:   r.Processed,
		ProcessedAt: r.ProcessedAt,
		Attempts:    r.Attempts,
		LastError:   r.LastError,
		FailedAt:    r.FailedAt,
	}
}

// OutboxRecordsFromDomain converts domain outbox records to responses.
func OutboxRecordsFromDomain(records []*domain.OutboxRecord) []*OutboxRecordResponse {
	result := make([]*OutboxRecordResponse, len(records))
	for i, r := range records {
		result[i] = OutboxRecordFromDomain(r)
	}
	return result
}

// PurgeResponse reports how many outbox records were deleted.
type PurgeResponse struct {
	Deleted int64     `json:"deleted"`
	Before  time.Time `json:"before"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Status        int          `json:"status"`
	Error         string       `json:"error"`
	Message       string       `json:"message,omitempty"`
	CorrelationID string       `json:"correlation_id,omitempty"`
	Details       []FieldError `json:"details,omitempty"`
}

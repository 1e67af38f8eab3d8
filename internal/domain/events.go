package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeEntryCreated = "entry.created"
)

// EntryCreatedEvent is the wire snapshot of a newly recorded entry.
type EntryCreatedEvent struct {
	Date          time.Time       `json:"date"`
	OccurredAt    time.Time       `json:"occurred_at"`
	EntryID       string          `json:"entry_id"`
	Direction     Direction       `json:"direction"`
	Description   string          `json:"description"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
}

// NewEntryCreatedEvent snapshots entry.
func NewEntryCreatedEvent(entry *Entry, correlationID string) EntryCreatedEvent {
	return EntryCreatedEvent{
		EntryID:       entry.ID,
		Date:          entry.Date,
		Amount:        entry.Amount,
		Direction:     entry.Direction,
		Description:   entry.Description,
		CorrelationID: correlationID,
		OccurredAt:    entry.CreatedAt,
	}
}

// EventType returns the discriminator stored in the outbox and the message type header.
func (e EntryCreatedEvent) EventType() string {
	return EventTypeEntryCreated
}

// EventID identifies the event; one event exists per entry.
func (e EntryCreatedEvent) EventID() string {
	return e.EntryID
}

// Delta is the signed amount the event contributes to its day's balance.
func (e EntryCreatedEvent) Delta() decimal.Decimal {
	return e.Direction.Sign(e.Amount)
}

// Day is the balance date the event is projected onto.
func (e EntryCreatedEvent) Day() time.Time {
	return DateOf(e.Date)
}

// Correlation returns the correlation id of the request that recorded the entry.
func (e EntryCreatedEvent) Correlation() string {
	return e.CorrelationID
}

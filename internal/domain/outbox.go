package domain

import "time"

// OutboxRecord is a pending event envelope stored next to the entry it describes.
type OutboxRecord struct {
	CreatedAt   time.Time
	ProcessedAt *time.Time
	FailedAt    *time.Time
	ID          string
	Type        string
	TraceParent string
	LastError   string
	Content     []byte
	Attempts    int
	Processed   bool
}

// NewOutboxRecord creates an unprocessed outbox record.
func NewOutboxRecord(id, eventType string, content []byte, traceParent string, now time.Time) *OutboxRecord {
	return &OutboxRecord{
		ID:          id,
		Type:        eventType,
		Content:     content,
		TraceParent: traceParent,
		CreatedAt:   now,
	}
}

// Pending reports whether the dispatcher should still pick the record up.
func (r *OutboxRecord) Pending() bool {
	return !r.Processed && r.FailedAt == nil
}

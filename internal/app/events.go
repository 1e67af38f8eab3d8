package app

import (
	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/infrastructure/messaging"
)

// Decoders lists every event type carried between the services.
func Decoders() map[string]messaging.Decoder {
	return map[string]messaging.Decoder{
		domain.EventTypeEntryCreated: messaging.JSONDecoder[domain.EntryCreatedEvent](),
	}
}

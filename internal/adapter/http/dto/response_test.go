package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/cashflow/internal/domain"
)

func TestBalanceFromDomain(t *testing.T) {
	b := &domain.Balance{
		ID:    "bal-1",
		Date:  time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Total: decimal.NewFromInt(60),
	}

	raw, err := json.Marshal(BalanceFromDomain(b))
	if err != nil {
		t.Fatal(err)
	}

	if got := string(raw); got != `{"date":"2024-01-10","balance":"60"}` {
		t.Fatalf("unexpected body %s", got)
	}
}

func TestOutboxRecordFromDomainOmitsPayload(t *testing.T) {
	failedAt := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	rec := domain.NewOutboxRecord("o-1", domain.EventTypeEntryCreated, []byte(`{"secret":1}`), "", failedAt)
	rec.FailedAt = &failedAt
	rec.LastError = "no decoder"

	raw, err := json.Marshal(OutboxRecordsFromDomain([]*domain.OutboxRecord{rec}))
	if err != nil {
		t.Fatal(err)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded[0]["content"]; ok {
		t.Error("payload must not be exposed")
	}
	if decoded[0]["last_error"] != "no decoder" || decoded[0]["failed_at"] == nil {
		t.Errorf("expected failure marker, got %v", decoded[0])
	}
}

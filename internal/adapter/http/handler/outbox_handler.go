package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/cashflow/internal/adapter/http/dto"
	"github.com/iho/cashflow/internal/domain"
)

// OutboxService defines the behavior needed by OutboxHandler.
type OutboxService interface {
	ListPending(ctx context.Context, limit, offset int) ([]*domain.OutboxRecord, error)
	Requeue(ctx context.Context, id string) (*domain.OutboxRecord, error)
	PurgeProcessed(ctx context.Context, before time.Time) (int64, error)
}

// OutboxHandler exposes outbox operations to operators.
type OutboxHandler struct {
	outboxUC OutboxService
}

// NewOutboxHandler creates a new OutboxHandler.
func NewOutboxHandler(outboxUC OutboxService) *OutboxHandler {
	return &OutboxHandler{outboxUC: outboxUC}
}

// ListPending lists unprocessed records, parked ones included.
func (h *OutboxHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	records, err := h.outboxUC.ListPending(r.Context(), limit, offset)
	if err != nil {
		writeDomainError(w, r, "failed to list outbox records", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.OutboxRecordsFromDomain(records))
}

// Requeue clears the failure marker of a record so it is dispatched again.
func (h *OutboxHandler) Requeue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "missing outbox record ID", "")
		return
	}

	record, err := h.outboxUC.Requeue(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, "failed to requeue outbox record", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.OutboxRecordFromDomain(record))
}

// Purge deletes processed records older than the "before" query parameter
// (RFC3339).
func (h *OutboxHandler) Purge(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("before")
	if raw == "" {
		writeError(w, r, http.StatusBadRequest, "missing 'before' parameter", "")
		return
	}

	before, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid 'before' format (use RFC3339)", err.Error())
		return
	}

	deleted, err := h.outboxUC.PurgeProcessed(r.Context(), before)
	if err != nil {
		writeDomainError(w, r, "failed to purge outbox records", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PurgeResponse{Deleted: deleted, Before: before})
}

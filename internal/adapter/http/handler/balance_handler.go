package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/iho/cashflow/internal/adapter/http/dto"
	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/usecase"
)

// BalanceService defines the behavior needed by BalanceHandler.
type BalanceService interface {
	GetBalance(ctx context.Context, date time.Time) (*domain.Balance, error)
}

// BalanceHandler serves consolidated daily balances.
type BalanceHandler struct {
	balanceUC BalanceService
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(balanceUC BalanceService) *BalanceHandler {
	return &BalanceHandler{balanceUC: balanceUC}
}

// Get returns the balance of the date given by the "date" query parameter.
func (h *BalanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		writeError(w, r, http.StatusBadRequest, "missing 'date' parameter", "")
		return
	}

	date, err := time.Parse(usecase.DateLayout, raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid 'date' format (use YYYY-MM-DD)", err.Error())
		return
	}

	balance, err := h.balanceUC.GetBalance(r.Context(), date)
	if err != nil {
		writeDomainError(w, r, "failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceFromDomain(balance))
}

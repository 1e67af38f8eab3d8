package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/cashflow/internal/domain"
)

type balanceServiceFunc func(ctx context.Context, date time.Time) (*domain.Balance, error)

func (f balanceServiceFunc) GetBalance(ctx context.Context, date time.Time) (*domain.Balance, error) {
	return f(ctx, date)
}

func TestBalanceHandler_Get(t *testing.T) {
	handler := NewBalanceHandler(balanceServiceFunc(func(ctx context.Context, date time.Time) (*domain.Balance, error) {
		if date.Format("2006-01-02") != "2024-01-10" {
			return nil, domain.ErrBalanceNotFound
		}
		return &domain.Balance{Date: date, Total: decimal.NewFromInt(60)}, nil
	}))

	tests := []struct {
		name   string
		query  string
		status int
		body   string
	}{
		{"found", "?date=2024-01-10", http.StatusOK, `{"date":"2024-01-10","balance":"60"}` + "\n"},
		{"not found", "?date=2024-01-11", http.StatusNotFound, ""},
		{"missing date", "", http.StatusBadRequest, ""},
		{"malformed date", "?date=yesterday", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/balances"+tt.query, nil)
			rec := httptest.NewRecorder()
			handler.Get(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			if tt.body != "" && rec.Body.String() != tt.body {
				t.Fatalf("expected body %q, got %q", tt.body, rec.Body.String())
			}
		})
	}
}

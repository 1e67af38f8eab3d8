package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/iho/cashflow/internal/adapter/http/dto"
	"github.com/iho/cashflow/internal/infrastructure/logger"
)

// writeError answers in the same shape as the handlers' errors.
func writeError(w http.ResponseWriter, r *http.Request, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.ErrorResponse{
		Status:        status,
		Error:         message,
		Message:       details,
		CorrelationID: logger.CorrelationID(r.Context()),
	})
}

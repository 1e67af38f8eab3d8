package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/iho/cashflow/internal/adapter/http/dto"
	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/infrastructure/logger"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response tagged with the request's correlation id.
func writeError(w http.ResponseWriter, r *http.Request, status int, message, details string) {
	writeJSON(w, status, dto.ErrorResponse{
		Status:        status,
		Error:         message,
		Message:       details,
		CorrelationID: logger.CorrelationID(r.Context()),
	})
}

// writeValidationError writes a 400 listing the rejected fields.
func writeValidationError(w http.ResponseWriter, r *http.Request, fields []dto.FieldError) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
		Status:        http.StatusBadRequest,
		Error:         "validation failed",
		CorrelationID: logger.CorrelationID(r.Context()),
		Details:       fields,
	})
}

// writeDomainError maps err to a status and writes it. Server errors are
// logged and their details hidden from the client.
func writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := mapDomainError(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg(message)
		writeError(w, r, status, message, "")
		return
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeValidationError(w, r, []dto.FieldError{{
			Field:   verr.Field,
			Message: verr.Err.Error(),
			Type:    "domain",
		}})
		return
	}

	writeError(w, r, status, message, err.Error())
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBalanceNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrOutboxRecordNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

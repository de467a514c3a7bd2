package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iho/pdv/internal/adapter/http/dto"
	"github.com/iho/pdv/internal/domain"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrCountedClosingRequired),
		errors.Is(err, domain.ErrInvalidField),
		errors.Is(err, domain.ErrInvalidSessionID),
		errors.Is(err, domain.ErrNotesTooLong),
		errors.Is(err, domain.ErrAmountTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrClosingNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionNotOpen):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSessionAlreadyClosed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrBackendUnauthorized):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes the request body, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

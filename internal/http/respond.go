package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/trinislearning/hit339/internal/admin"
	"github.com/trinislearning/hit339/internal/cart"
	"github.com/trinislearning/hit339/internal/checkout"
	"github.com/trinislearning/hit339/internal/identity"
	"github.com/trinislearning/hit339/internal/logger"
	"github.com/trinislearning/hit339/internal/repository"
)

const maxJSONBodyBytes = 1 << 20 // 1MB

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Error("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func respondValidation(w http.ResponseWriter, fields map[string]string) {
	respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:  "validation failed",
		Code:   "validation_failed",
		Fields: fields,
	})
}

// respondServiceError maps domain errors to HTTP responses. Unknown errors are
// logged and reported as a generic 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	var (
		verrs    admin.ValidationErrors
		stockErr *checkout.InsufficientStockError
	)

	switch {
	case errors.As(err, &verrs):
		respondValidation(w, verrs)
	case errors.As(err, &stockErr):
		respondError(w, http.StatusConflict, "insufficient_stock", stockErr.Error())
	case errors.Is(err, repository.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "not_found", "product not found")
	case errors.Is(err, repository.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "not_found", "order not found")
	case errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, cart.ErrConcurrentUpdate):
		respondError(w, http.StatusConflict, "concurrent_update", err.Error())
	case errors.Is(err, identity.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, identity.ErrInvalidEmail):
		respondValidation(w, map[string]string{"email": err.Error()})
	case errors.Is(err, identity.ErrWeakPassword):
		respondValidation(w, map[string]string{"password": err.Error()})
	case errors.Is(err, repository.ErrEmailTaken):
		respondError(w, http.StatusConflict, "email_taken", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		logger.FromContext(r.Context(), log).WithError(err).Error("request failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// decodeJSONBody reads at most maxJSONBodyBytes into v. It writes the error
// response itself and returns false when the body is unusable.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
		return false
	}
	respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
	return false
}

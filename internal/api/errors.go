// internal/api/errors.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error            string `json:"error"`
	RequiresOperator bool   `json:"requires_operator,omitempty"`
}

// statusFor maps protocol errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrInsufficientFee),
		errors.Is(err, types.ErrInsufficientBalance),
		errors.Is(err, types.ErrSlippageExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrTokenNotTrading), errors.Is(err, types.ErrAlreadyMigrated):
		return http.StatusConflict
	case errors.Is(err, types.ErrNetworkStale):
		return http.StatusServiceUnavailable
	case errors.Is(err, types.ErrMigrationUnconfigured):
		return http.StatusFailedDependency
	case errors.Is(err, types.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), RequiresOperator: types.RequiresOperator(err)})
}

// fail writes a protocol error. Unexpected failures are logged with the request id.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", zapRequest(r, err)...)
	}
	writeError(w, status, err)
}

func zapRequest(r *http.Request, err error) []zap.Field {
	return []zap.Field{
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	}
}

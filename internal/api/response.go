package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"promohub/internal/apperror"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("[HTTP] Failed to encode JSON response", "error", err)
		}
	}
}

// writeError maps an error from the service layer to a status code. Errors
// that carry no apperror kind become a 500 naming the failed operation; their
// details only go to the log.
func writeError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		kind := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status, kind = http.StatusBadRequest, "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status, kind = http.StatusNotFound, "not_found"
		case errors.Is(err, apperror.ErrForbidden):
			status, kind = http.StatusForbidden, "forbidden"
		case errors.Is(err, apperror.ErrConflict):
			status, kind = http.StatusConflict, "conflict"
		case errors.Is(err, apperror.ErrTimeout):
			status, kind = http.StatusGatewayTimeout, "timeout"
		case errors.Is(err, apperror.ErrUpstream):
			status, kind = http.StatusBadGateway, "upstream_error"
		case errors.Is(err, apperror.ErrUnavailable):
			status, kind = http.StatusServiceUnavailable, "unavailable"
		}

		if status >= http.StatusInternalServerError {
			logger.Warn("[HTTP] Request failed", "op", op, "status", status, "error", err)
		}
		writeJSON(w, status, ErrorResponse{Error: kind, Message: appErr.Message})
		return
	}

	logger.Error("[HTTP] Request failed", "op", op, "error", err)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: op + " failed",
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return nil
}

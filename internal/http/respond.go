package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"carteira/internal/core"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// respondError maps the shared error taxonomy to status codes. Anything
// unrecognized is a 500 with an opaque body; the detail goes to the log only.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var message string

	switch {
	case errors.Is(err, core.ErrValidation):
		status = http.StatusUnprocessableEntity
		message = err.Error()
	case errors.Is(err, core.ErrAuthentication):
		status = http.StatusUnauthorized
		message = "authentication failed"
	case errors.Is(err, core.ErrSession):
		status = http.StatusUnauthorized
		message = "session invalid or expired"
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, core.ErrConflict):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, core.ErrSyncIntegrity):
		status = http.StatusUnprocessableEntity
		message = err.Error()
	default:
		status = http.StatusInternalServerError
		message = "internal server error"
	}

	if status >= 500 {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		slog.WarnContext(r.Context(), "Request rejected",
			"method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	respondJSON(w, status, errorResponse{Error: message})
}

// decodeJSON parses a request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", core.ErrValidation, err)
	}
	return nil
}

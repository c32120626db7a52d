package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"cerebro/internal/auth"
	"cerebro/internal/warehouse"
	"cerebro/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// writeError maps err to a status and writes it. It returns the status.
func writeError(w http.ResponseWriter, err error) int {
	var ae *auth.AccessError
	if errors.As(err, &ae) {
		IncrementAccessDenied(ae.Reason())
	}
	status := http.StatusInternalServerError
	var he HTTPError
	switch {
	case errors.As(err, &he):
		status = he.StatusCode()
	case warehouse.IsNotConfigured(err):
		status = http.StatusServiceUnavailable
	}
	writeJSONError(w, status, err.Error())
	return status
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		if zlog != nil {
			zlog.Error().Err(err).Msg("encode response")
		}
	}
}

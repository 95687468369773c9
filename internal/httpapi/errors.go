package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"chesscomm/internal/llm"
	"chesscomm/internal/manager"
	"chesscomm/internal/segment"
	"chesscomm/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps well-known service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case manager.IsTooBusy(err):
		return http.StatusTooManyRequests
	case llm.IsModelNotFound(err):
		return http.StatusNotFound
	case llm.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable
	case segment.IsInvalidInput(err):
		return http.StatusBadRequest
	case segment.IsUpstream(err):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

var (
	ErrMaxSessionsReached = errors.New("maximum sessions reached")
	ErrMaxSessionsPerIP   = errors.New("maximum sessions per IP reached")
	ErrQuotaExceeded      = errors.New("monthly quota exceeded")
)

// ErrorResponse is the JSON error shape all endpoints share. The error
// string is what extension clients classify on, so quota messages must
// reach it verbatim.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string, logArgs ...any) {
	args := []any{
		"status", status,
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", extractRealIP(r),
	}
	args = append(args, logArgs...)
	slog.Error(message, args...)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

func writeInternalError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	slog.Error("internal error",
		"operation", operation,
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	if encErr := json.NewEncoder(w).Encode(ErrorResponse{
		Error: "An internal error occurred. Please try again later.",
	}); encErr != nil {
		slog.Error("failed to encode error response", "error", encErr)
	}
}

// sanitizeOAuthError maps provider failures onto stable public messages
// without leaking token or credential material into responses.
func sanitizeOAuthError(err error) string {
	if err == nil {
		return "token exchange failed"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "invalid_grant"):
		return "authorization code expired or already used"
	case strings.Contains(msg, "invalid_client"):
		return "OAuth client configuration error"
	case strings.Contains(msg, "redirect_uri_mismatch"):
		return "OAuth redirect configuration error"
	case strings.Contains(msg, "access_denied"):
		return "access denied by user"
	default:
		return "token exchange failed"
	}
}

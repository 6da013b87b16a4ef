package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/halvard/muninn/internal/content"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

// writeError classifies err, maps it to an HTTP status, and renders the
// classification as the response body.
func writeError(w http.ResponseWriter, op string, err error) {
	info := content.Describe(err)
	status := statusFor(info.Type)
	if status >= http.StatusInternalServerError {
		slog.Error(op, slog.String("error", err.Error()))
	}
	writeJSON(w, status, info)
}

func statusFor(errType string) int {
	switch errType {
	case "not_found":
		return http.StatusNotFound
	case "invalid_argument":
		return http.StatusBadRequest
	case "rate_limited":
		return http.StatusTooManyRequests
	case "unavailable":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

package content

import (
	"context"
	"errors"
	"time"

	"github.com/halvard/muninn/internal/apperr"
	"github.com/halvard/muninn/internal/fetch"
	"github.com/halvard/muninn/internal/parser"
)

// ErrorInfo is the transport-neutral shape of a failed operation. The
// HTTP and MCP layers map Type to their own status codes.
type ErrorInfo struct {
	Type    string         `json:"error_type"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

// Describe classifies an error from any service operation.
func Describe(err error) ErrorInfo {
	var rl *fetch.RateLimitError
	var fe *fetch.Error
	var pe *parser.ParseError
	switch {
	case errors.As(err, &rl):
		info := ErrorInfo{Type: "rate_limited", Message: err.Error()}
		if !rl.ResetAt.IsZero() {
			info.Context = map[string]any{"reset_at": rl.ResetAt.UTC().Format(time.RFC3339)}
		}
		return info
	case errors.Is(err, apperr.ErrNotFound):
		return ErrorInfo{Type: "not_found", Message: err.Error()}
	case errors.Is(err, apperr.ErrInvalidCategory), errors.Is(err, apperr.ErrEmptyQuery):
		return ErrorInfo{Type: "invalid_argument", Message: err.Error()}
	case errors.As(err, &fe):
		return ErrorInfo{Type: "unavailable", Message: err.Error(), Context: map[string]any{
			"url":      fe.URL,
			"attempts": fe.Attempts,
		}}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorInfo{Type: "canceled", Message: err.Error()}
	case errors.As(err, &pe):
		return ErrorInfo{Type: "parse_error", Message: err.Error()}
	default:
		return ErrorInfo{Type: "internal", Message: err.Error()}
	}
}

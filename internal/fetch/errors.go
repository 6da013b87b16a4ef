package fetch

import (
	"fmt"
	"time"
)

// Error reports a fetch that failed for transport or server reasons
// after its retry budget was spent.
type Error struct {
	URL      string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// RateLimitError reports an upstream 403 or 429. It is never retried;
// ResetAt carries the upstream reset hint when one was provided.
type RateLimitError struct {
	URL     string
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return fmt.Sprintf("rate limited fetching %s", e.URL)
	}
	return fmt.Sprintf("rate limited fetching %s, resets at %s", e.URL, e.ResetAt.Format(time.RFC3339))
}

// Package fetch retrieves corpus content over HTTP with bounded
// retries. Transient failures (network errors, 5xx) are retried with
// exponential backoff; rate limits and missing documents are terminal
// and surface as typed errors.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/halvard/muninn/internal/apperr"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultMaxAttempts   = 3
	DefaultBackoffBase   = 500 * time.Millisecond
	DefaultBackoffFactor = 2.0
	defaultUserAgent     = "muninn/1.0"
)

// Fetcher retrieves the text body behind a URL.
type Fetcher interface {
	Text(ctx context.Context, url string) (string, error)
}

// Config controls the client's timeout, retry budget, and auth.
type Config struct {
	Timeout       time.Duration
	MaxAttempts   int
	BackoffBase   time.Duration
	BackoffFactor float64
	Token         string
	UserAgent     string
}

// Client is the HTTP Fetcher implementation. Zero Config fields take
// the package defaults.
type Client struct {
	http *http.Client
	cfg  Config
}

var _ Fetcher = (*Client)(nil)

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Timeout < 0 || cfg.MaxAttempts < 0 || cfg.BackoffBase < 0 {
		return nil, fmt.Errorf("fetch: negative timeout, attempts, or backoff")
	}
	if cfg.BackoffFactor != 0 && cfg.BackoffFactor < 1 {
		return nil, fmt.Errorf("fetch: backoff factor must be >= 1, got %v", cfg.BackoffFactor)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.BackoffFactor == 0 {
		cfg.BackoffFactor = DefaultBackoffFactor
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Client{
		http: &http.Client{Timeout: cfg.Timeout},
		cfg:  cfg,
	}, nil
}

// Text fetches url and returns its body. Retries cover network errors
// and 5xx responses only; 404 maps to apperr.ErrNotFound and 403/429 to
// *RateLimitError immediately. Context cancellation aborts both
// requests and backoff waits.
func (c *Client) Text(ctx context.Context, url string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.wait(ctx, attempt); err != nil {
				return "", fmt.Errorf("fetch %s: %w", url, err)
			}
		}
		text, retryable, err := c.attempt(ctx, url)
		if err == nil {
			return text, nil
		}
		if !retryable {
			return "", err
		}
		lastErr = err
	}
	return "", &Error{URL: url, Attempts: c.cfg.MaxAttempts, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, url string) (text string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, fmt.Errorf("fetch %s: %w", url, ctx.Err())
		}
		return "", true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", true, fmt.Errorf("read body: %w", err)
		}
		return string(b), false, nil
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return "", false, &RateLimitError{URL: url, ResetAt: parseReset(resp.Header, time.Now())}
	case resp.StatusCode == http.StatusNotFound:
		return "", false, fmt.Errorf("%s: %w", url, apperr.ErrNotFound)
	case resp.StatusCode >= 500:
		return "", true, fmt.Errorf("status %d", resp.StatusCode)
	default:
		return "", false, &Error{URL: url, Attempts: 1, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
}

// parseReset extracts the rate-limit reset hint. GitHub sends
// Retry-After (delay seconds) on secondary limits and X-RateLimit-Reset
// (unix epoch) on primary ones.
func parseReset(h http.Header, now time.Time) time.Time {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return now.Add(time.Duration(secs) * time.Second)
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil && epoch > 0 {
			return time.Unix(epoch, 0)
		}
	}
	return time.Time{}
}

func (c *Client) wait(ctx context.Context, attempt int) error {
	d := c.cfg.BackoffBase
	for i := 2; i < attempt; i++ {
		d = time.Duration(float64(d) * c.cfg.BackoffFactor)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

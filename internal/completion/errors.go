package completion

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CompletionError is the single failure type surfaced by Client.Complete.
type CompletionError struct {
	Stage     string
	Model     string
	Transient bool
	Attempts  int
	Err       error
}

func (e *CompletionError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("completion failed for stage %s (model %s, %s, %d attempt(s)): %v",
		e.Stage, e.Model, kind, e.Attempts, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// StatusError is an HTTP-level failure returned by a backend.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// EmptyContentError reports a well-formed response without output text.
type EmptyContentError struct {
	Reason string
}

func (e *EmptyContentError) Error() string {
	if e.Reason == "" {
		return "empty content"
	}
	return fmt.Sprintf("empty content (%s)", e.Reason)
}

// RefusalError reports a content-policy rejection. It is never retried.
type RefusalError struct {
	Message string
}

func (e *RefusalError) Error() string {
	return fmt.Sprintf("request refused: %s", strings.TrimSpace(e.Message))
}

// ErrMissingCredential is returned by backends constructed without an API key.
var ErrMissingCredential = errors.New("api key required")

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var refusal *RefusalError
	if errors.As(err, &refusal) {
		return false
	}

	var empty *EmptyContentError
	if errors.As(err, &empty) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			return true
		default:
			return false
		}
	}

	// Per-attempt timeouts surface as DeadlineExceeded; the caller's own
	// deadline is checked separately before retrying.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}

	return false
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay
		}
	}
	return 0
}

func summarizeSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}

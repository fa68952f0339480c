package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrUnauthorized marks a 401 response. The credential must be replaced.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited marks a 429 response that outlived the retry budget.
	ErrRateLimited = errors.New("rate limited")
)

const maxBodyExcerpt = 512

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	// Body is the first bytes of the response body.
	Body string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap maps well-known status codes onto the package sentinels.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

// retryableError wraps transport-level failures.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// IsRetryable reports whether err is worth retrying: 429, 5xx, and network
// failures are; other 4xx responses and context cancellation are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusTooManyRequests:
			return true
		case se.StatusCode >= 500 && se.StatusCode < 600:
			return true
		default:
			return false
		}
	}

	var re *retryableError
	if errors.As(err, &re) {
		return true
	}

	var ne net.Error
	return errors.As(err, &ne)
}

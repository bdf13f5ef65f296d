package integrations

import (
	"errors"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds each registry request. A request that times out
	// is treated like any other fetch failure.
	DefaultTimeout = 10 * time.Second

	// DefaultAttempts is the number of tries for retryable failures.
	DefaultAttempts = 3

	// DefaultRetryDelay is the wait before the first retry; it doubles after
	// each attempt.
	DefaultRetryDelay = 500 * time.Millisecond
)

var (
	// ErrNotFound is returned when a package or resource doesn't exist in the registry.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")

	// ErrRateLimited is returned when the registry keeps answering 429.
	ErrRateLimited = errors.New("rate limited")
)

// NewHTTPClient creates an HTTP client with the given per-request timeout.
// A non-positive timeout means [DefaultTimeout].
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

package generation

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAuthFailure means the service rejected our credentials. Fatal to the
	// whole run, never retried.
	ErrAuthFailure = errors.New("generation: authentication failed")

	// ErrServiceUnavailable covers 5xx responses. Per-unit error, not retried
	// outside the shared retry policy.
	ErrServiceUnavailable = errors.New("generation: service unavailable")

	// ErrTimeout is raised when polling exceeds its absolute bound or the
	// request deadline fires.
	ErrTimeout = errors.New("generation: timed out")

	// ErrEmptyInput rejects a submit with no usable text.
	ErrEmptyInput = errors.New("generation: empty input text")

	// ErrGenerationFailed means the service reported a terminal failed status.
	ErrGenerationFailed = errors.New("generation: request failed")
)

// RateLimitedError is retryable; RetryAfter carries the service's advertised
// interval when present, zero otherwise.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("generation: rate limited, retry after %s", e.RetryAfter)
	}
	return "generation: rate limited"
}

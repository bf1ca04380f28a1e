package spelunk

import (
	"context"

	"github.com/pkg/errors"

	"github.com/strixlab/spelunker/internal/types"
)

// Sentinel errors. These are the same values the internal transport and
// session packages produce, so errors.Is works across layers.
var (
	// ErrAuthRejected is returned when the server rejects the bearer token
	ErrAuthRejected = types.ErrAuthRejected

	// ErrAuthFailed is returned when the credential exchange fails, or when
	// a re-authenticated replay is rejected again.
	ErrAuthFailed = types.ErrAuthFailed

	// ErrNotFound is returned when a resource does not exist
	ErrNotFound = types.ErrNotFound

	// ErrTimeout is returned when a single operation exceeds its deadline
	ErrTimeout = types.ErrTimeout

	// ErrCancelled is returned when an in-flight operation is cancelled
	ErrCancelled = types.ErrCancelled
)

// ConfigError reports an invalid client configuration, surfaced before any
// network I/O.
type ConfigError = types.ConfigError

// APIError represents a non-retryable server rejection with diagnostic
// metadata (status code, parsed server message, request id).
type APIError = types.APIError

// MaxRetriesError is returned when the retry budget for transient failures
// is exhausted. Attempts counts every attempt made, including the first.
type MaxRetriesError = types.MaxRetriesError

// RetryPolicy configures the retry/backoff executor
type RetryPolicy = types.RetryPolicy

// Logger interface for logging
type Logger = types.Logger

// Hooks provides request lifecycle hooks
type Hooks = types.Hooks

// IsAuthRejected reports whether the server rejected the credential used
// for a request.
func IsAuthRejected(err error) bool {
	return errors.Is(err, ErrAuthRejected)
}

// IsTimeout reports whether an operation exceeded its deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// IsRetryable reports whether an error was a transient condition. The
// client retries these internally, so seeing one means the retry budget
// was exhausted.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 502, 503, 504:
			return true
		}
	}
	return false
}

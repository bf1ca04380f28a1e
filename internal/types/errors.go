package types

import (
	"errors"
	"fmt"
)

// ConfigError reports an invalid client configuration. It is returned
// before any network I/O happens and is never retried.
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config: %s", e.Message)
}

// APIError represents a non-retryable server rejection, surfaced verbatim
// with diagnostic metadata.
type APIError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	RequestID  string `json:"requestId,omitempty"`
	URL        string `json:"url,omitempty"`
	Err        error  `json:"-"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request failed"
	}
	if e.RequestID != "" {
		return fmt.Sprintf("api error: %d: %s (request id %s)", e.StatusCode, msg, e.RequestID)
	}
	return fmt.Sprintf("api error: %d: %s", e.StatusCode, msg)
}

// Unwrap returns the wrapped sentinel, if any
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is matches either the wrapped sentinel or another APIError with the same
// status code.
func (e *APIError) Is(target error) bool {
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode
}

// MaxRetriesError is returned when the retry budget is exhausted. Attempts
// counts every attempt made, including the first.
type MaxRetriesError struct {
	Attempts int   `json:"attempts"`
	Err      error `json:"-"`
}

func (e *MaxRetriesError) Error() string {
	return fmt.Sprintf("giving up after %d attempt(s): %v", e.Attempts, e.Err)
}

// Unwrap returns the final underlying error
func (e *MaxRetriesError) Unwrap() error {
	return e.Err
}

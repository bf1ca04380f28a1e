package types

import (
	"errors"
	"time"
)

const (
	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second

	// DefaultSessionTTL is assumed when the server does not report a
	// session lifetime during login.
	DefaultSessionTTL = time.Hour

	// DefaultSessionExpiryBuffer is subtracted from the session TTL so a
	// token is refreshed before the server would actually reject it.
	DefaultSessionExpiryBuffer = time.Minute

	// DefaultMaxRetries is the default retry budget for transient failures
	DefaultMaxRetries = 3

	// DefaultRetryWaitMin is the base backoff between retries
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax caps the exponential backoff
	DefaultRetryWaitMax = 30 * time.Second

	// UserAgent is the user agent string
	UserAgent = "spelunker-go/1.0.0"
)

// Common errors
var (
	// ErrAuthRejected is returned when the server rejects the bearer token
	ErrAuthRejected = errors.New("authentication rejected")

	// ErrAuthFailed is returned when the credential exchange fails
	ErrAuthFailed = errors.New("authentication failed")

	// ErrStaticStrategy is returned when a login is attempted for a
	// static-token strategy, which has no credential exchange.
	ErrStaticStrategy = errors.New("static token strategy cannot login")

	// ErrNotFound is returned when a resource does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrTimeout is returned when a single operation exceeds its deadline
	ErrTimeout = errors.New("request timeout")

	// ErrCancelled is returned when an in-flight operation is cancelled
	ErrCancelled = errors.New("request cancelled")
)

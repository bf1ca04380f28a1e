package types

import (
	"context"
	"net/http"
	"time"
)

// Logger interface for logging
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// RetryPolicy configures the retry/backoff executor. It is fixed at client
// construction and shared read-only afterwards.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the initial attempt, so a
	// permanently failing call makes MaxRetries+1 attempts in total.
	MaxRetries int `json:"maxRetries"`

	// RetryWaitMin is the base backoff. The wait before retry n is
	// RetryWaitMin * 2^n, or the server's Retry-After hint if larger.
	RetryWaitMin time.Duration `json:"retryWaitMin"`

	// RetryWaitMax caps the exponential component of the backoff. A valid
	// Retry-After hint may still exceed it.
	RetryWaitMax time.Duration `json:"retryWaitMax"`
}

// Hooks provides lifecycle hooks for requests
type Hooks struct {
	OnRequest  func(ctx context.Context, req *http.Request)
	OnResponse func(ctx context.Context, resp *http.Response, duration time.Duration)
	OnError    func(ctx context.Context, err error)
}

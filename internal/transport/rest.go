// Package transport executes single logical REST calls reliably against a
// flaky network. Transient failures (429/502/503/504 and transport errors)
// are retried with exponential backoff honoring a server Retry-After hint;
// everything else surfaces immediately with status and body preserved.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/strixlab/spelunker/internal/types"
)

const (
	authHeaderKey      = "Authorization"
	requestIDHeaderKey = "X-Request-Id"
	contentTypeJSON    = "application/json"
	contentTypeForm    = "application/x-www-form-urlencoded"

	// maxErrorBody bounds how much of an error response is kept for
	// diagnostics.
	maxErrorBody = 64 << 10
)

// Options for the REST transport
type Options struct {
	BaseURL     string
	HTTPClient  *http.Client
	RetryPolicy *types.RetryPolicy
	Headers     map[string]string
	Logger      types.Logger
	Hooks       *types.Hooks
}

// RESTTransport handles HTTP communication with one target. Everything in
// it is immutable after construction; credentials travel with each Request.
type RESTTransport struct {
	baseURL     string
	httpClient  *http.Client
	retryClient *retryablehttp.Client
	headers     map[string]string
	logger      types.Logger
	hooks       *types.Hooks
}

// Request is one logical REST call.
type Request struct {
	Method string
	Path   string
	Query  url.Values

	// Body is a buffered, safely re-issuable request body.
	Body []byte

	// BodyStream is a single-consumption body. When set, the transport
	// makes at most one attempt regardless of the retry policy, because
	// the stream cannot be replayed. Transient failures then surface
	// instead of being retried.
	BodyStream io.Reader

	ContentType string

	// Token is the bearer value for this call. Empty for unauthenticated
	// calls such as the login exchange.
	Token string
}

// New creates a REST transport
func New(opts *Options) *RESTTransport {
	if opts == nil {
		opts = &Options{}
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout: types.DefaultTimeout,
		}
	}

	policy := types.RetryPolicy{
		MaxRetries:   types.DefaultMaxRetries,
		RetryWaitMin: types.DefaultRetryWaitMin,
		RetryWaitMax: types.DefaultRetryWaitMax,
	}
	if opts.RetryPolicy != nil {
		policy = *opts.RetryPolicy
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = opts.HTTPClient
	retryClient.RetryMax = policy.MaxRetries
	retryClient.RetryWaitMin = policy.RetryWaitMin
	retryClient.RetryWaitMax = policy.RetryWaitMax
	retryClient.CheckRetry = checkRetry
	retryClient.Backoff = backoffWait
	retryClient.Logger = nil

	if opts.Logger != nil {
		retryClient.Logger = &retryLogger{logger: opts.Logger}
	}

	headers := map[string]string{
		"Accept":     contentTypeJSON,
		"User-Agent": types.UserAgent,
	}
	for k, v := range opts.Headers {
		headers[k] = v
	}

	t := &RESTTransport{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		httpClient:  opts.HTTPClient,
		retryClient: retryClient,
		headers:     headers,
		logger:      opts.Logger,
		hooks:       opts.Hooks,
	}
	retryClient.ErrorHandler = t.errorHandler

	return t
}

// Do executes the request, retrying transient failures per the retry
// policy, and returns the response body of a 2xx response. Non-2xx
// responses are converted to typed errors: 401/403 wrap
// types.ErrAuthRejected, 404 wraps types.ErrNotFound, everything else is a
// plain *types.APIError.
func (t *RESTTransport) Do(ctx context.Context, req *Request) ([]byte, error) {
	u := t.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	requestID := uuid.New().String()

	var resp *http.Response
	var err error
	start := time.Now()

	if req.BodyStream != nil {
		resp, err = t.doSingleShot(ctx, req, u, requestID)
	} else {
		resp, err = t.doRetryable(ctx, req, u, requestID)
	}
	duration := time.Since(start)

	if err != nil {
		err = mapContextError(err)
		if t.hooks != nil && t.hooks.OnError != nil {
			t.hooks.OnError(ctx, err)
		}
		if t.logger != nil {
			t.logger.Debug("request failed", "method", req.Method, "url", u, "error", err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if t.hooks != nil && t.hooks.OnResponse != nil {
		t.hooks.OnResponse(ctx, resp, duration)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if t.logger != nil {
		t.logger.Debug("response", "method", req.Method, "url", u,
			"status", resp.StatusCode, "duration", duration, "size", len(body))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := t.handleHTTPError(resp, body, requestID)
		if t.hooks != nil && t.hooks.OnError != nil {
			t.hooks.OnError(ctx, apiErr)
		}
		return nil, apiErr
	}

	return body, nil
}

// doRetryable runs the full retry/backoff cycle with a replayable body.
func (t *RESTTransport) doRetryable(ctx context.Context, req *Request, u, requestID string) (*http.Response, error) {
	var body interface{}
	if req.Body != nil {
		body = req.Body
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	t.setHeaders(httpReq.Header, req, requestID)

	if t.hooks != nil && t.hooks.OnRequest != nil {
		t.hooks.OnRequest(ctx, httpReq.Request)
	}

	return t.retryClient.Do(httpReq)
}

// doSingleShot issues the request exactly once. Used for streaming bodies;
// the stream is consumed by the first attempt so a retry would send a
// truncated body.
func (t *RESTTransport) doSingleShot(ctx context.Context, req *Request, u, requestID string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, req.BodyStream)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	t.setHeaders(httpReq.Header, req, requestID)

	if t.hooks != nil && t.hooks.OnRequest != nil {
		t.hooks.OnRequest(ctx, httpReq)
	}
	if t.logger != nil {
		t.logger.Debug("single-shot request, retries disabled", "method", req.Method, "url", u)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "single-shot request failed")
	}
	return resp, nil
}

func (t *RESTTransport) setHeaders(h http.Header, req *Request, requestID string) {
	for k, v := range t.headers {
		h.Set(k, v)
	}

	h.Set(requestIDHeaderKey, requestID)

	contentType := req.ContentType
	if contentType == "" && (req.Body != nil || req.BodyStream != nil) {
		contentType = contentTypeForm
	}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}

	if req.Token != "" {
		h.Set(authHeaderKey, "Bearer "+req.Token)
	}
}

// errorHandler is invoked by the retry client when it stops retrying with
// an unresolved failure. Exhaustion of the retry budget becomes a
// MaxRetriesError carrying the total attempts made and the final
// underlying error; context errors pass through untouched.
func (t *RESTTransport) errorHandler(resp *http.Response, err error, numTries int) (*http.Response, error) {
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		if resp != nil {
			drainBody(resp)
		}
		return nil, err
	}

	last := err
	if last == nil && resp != nil {
		body := readErrorBody(resp)
		last = t.handleHTTPError(resp, body, resp.Header.Get(requestIDHeaderKey))
	}
	if last == nil {
		last = errors.New("request failed")
	}

	return nil, &types.MaxRetriesError{Attempts: numTries, Err: last}
}

// handleHTTPError converts a non-2xx response into a typed error,
// preserving status, parsed server message and request id for diagnostics.
func (t *RESTTransport) handleHTTPError(resp *http.Response, body []byte, requestID string) error {
	if id := resp.Header.Get(requestIDHeaderKey); id != "" {
		requestID = id
	}

	msg := parseServerMessage(body)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	apiErr := &types.APIError{
		StatusCode: resp.StatusCode,
		Message:    msg,
		RequestID:  requestID,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		apiErr.URL = resp.Request.URL.String()
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		apiErr.Err = types.ErrAuthRejected
	case http.StatusNotFound:
		apiErr.Err = types.ErrNotFound
	case http.StatusRequestTimeout:
		apiErr.Err = types.ErrTimeout
	}

	return apiErr
}

// parseServerMessage extracts the first message from the service's
// {"messages":[{"type":...,"text":...}]} error envelope.
func parseServerMessage(body []byte) string {
	var envelope struct {
		Messages []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"messages"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Messages) == 0 {
		return ""
	}

	m := envelope.Messages[0]
	if m.Type != "" {
		return fmt.Sprintf("%s: %s", m.Type, m.Text)
	}
	return m.Text
}

// mapContextError converts context errors into the client taxonomy.
func mapContextError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return errors.WithMessage(types.ErrCancelled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return errors.WithMessage(types.ErrTimeout, err.Error())
	}
	return err
}

func readErrorBody(resp *http.Response) []byte {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
	return body
}

func drainBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

// retryLogger adapts our logger to retryablehttp
type retryLogger struct {
	logger types.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, keysAndValues...)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, keysAndValues...)
}

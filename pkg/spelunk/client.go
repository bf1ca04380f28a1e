// Package spelunk is a client for the REST API of a Splunk-compatible
// enterprise search platform. It authenticates with either a static bearer
// token or a username/password session, retries transient failures with
// exponential backoff, pages through collection listings, and can fan a
// fetch out across many deployments concurrently.
package spelunk

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"

	"github.com/strixlab/spelunker/internal/session"
	"github.com/strixlab/spelunker/internal/transport"
	"github.com/strixlab/spelunker/internal/types"
)

const (
	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = types.DefaultTimeout

	// UserAgent is the user agent string
	UserAgent = types.UserAgent

	loginPath = "/services/auth/login"
)

// Client is the main API client. One client talks to one deployment; build
// one client per target for concurrent multi-target work (see FetchAll).
type Client struct {
	// Service interfaces
	Search  SearchService
	Indexes IndexService
	Apps    AppService
	Users   UserService

	// Internal fields
	baseURL   string
	transport Transport
	session   *session.State
	options   *ClientOptions
	logger    types.Logger

	// loginMu serializes the expiry-check/login/store sequence so
	// concurrent callers never issue duplicate logins or clobber a fresh
	// token with a stale one.
	loginMu sync.Mutex
}

// Transport executes one logical REST call, running the full retry/backoff
// cycle for transient failures.
type Transport interface {
	Do(ctx context.Context, req *transport.Request) ([]byte, error)
}

// ClientOptions configures the client
type ClientOptions struct {
	// BaseURL of the management API, e.g. https://search.example.com:8089
	BaseURL string

	// Token provides a static bearer token. Wins over Username/Password
	// when both are set.
	Token string

	// Username and Password select the session-token strategy: a login
	// exchange produces a short-lived session key.
	Username string
	Password string

	// SkipTLSVerify disables certificate verification. Common for
	// self-signed management ports; off by default.
	SkipTLSVerify bool

	// HTTPClient allows using a custom HTTP client
	HTTPClient *http.Client

	// Timeout sets the HTTP client timeout
	Timeout time.Duration

	// RetryPolicy configures retry behavior for transient failures
	RetryPolicy *types.RetryPolicy

	// SessionTTL is the assumed session lifetime when the server does not
	// report one. Default one hour.
	SessionTTL time.Duration

	// SessionExpiryBuffer refreshes the session this long before the TTL
	// actually elapses. Default one minute.
	SessionExpiryBuffer time.Duration

	// Logger for debug logging
	Logger types.Logger

	// Hooks for observability
	Hooks *types.Hooks

	// SentryDSN enables Sentry error tracking when set
	SentryDSN string

	// SentryOptions allows custom Sentry configuration
	SentryOptions *sentry.ClientOptions
}

// NewClient creates a new client. It fails fast with a *ConfigError before
// any network I/O when the configuration cannot work.
func NewClient(opts *ClientOptions) (*Client, error) {
	if opts == nil {
		opts = &ClientOptions{}
	}

	if opts.BaseURL == "" {
		return nil, &ConfigError{Field: "base_url", Message: "base URL is required"}
	}
	if u, err := url.Parse(opts.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &ConfigError{Field: "base_url", Message: "base URL must be http or https"}
	}

	strategy := session.Strategy{
		Token:    opts.Token,
		Username: opts.Username,
		Password: opts.Password,
	}
	if !strategy.Valid() {
		return nil, &ConfigError{Field: "credentials", Message: "either a token or a username/password pair is required"}
	}

	// Initialize Sentry if configured. Failure to do so is logged, not
	// fatal.
	if opts.SentryDSN != "" || opts.SentryOptions != nil {
		sentryOpts := sentry.ClientOptions{}
		if opts.SentryOptions != nil {
			sentryOpts = *opts.SentryOptions
		}
		if opts.SentryDSN != "" {
			sentryOpts.Dsn = opts.SentryDSN
		}
		if sentryOpts.Environment == "" {
			sentryOpts.Environment = "production"
		}
		if err := sentry.Init(sentryOpts); err != nil && opts.Logger != nil {
			opts.Logger.Error("Failed to initialize Sentry", "error", err)
		}
	}

	if opts.HTTPClient == nil {
		httpClient := &http.Client{Timeout: DefaultTimeout}
		if opts.SkipTLSVerify {
			httpClient.Transport = &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402
			}
		}
		opts.HTTPClient = httpClient
	}
	if opts.Timeout > 0 {
		opts.HTTPClient.Timeout = opts.Timeout
	}

	trans := transport.New(&transport.Options{
		BaseURL:     opts.BaseURL,
		HTTPClient:  opts.HTTPClient,
		RetryPolicy: opts.RetryPolicy,
		Logger:      opts.Logger,
		Hooks:       opts.Hooks,
	})

	c := &Client{
		baseURL:   opts.BaseURL,
		transport: trans,
		session:   session.New(strategy, opts.SessionTTL, opts.SessionExpiryBuffer),
		options:   opts,
		logger:    opts.Logger,
	}
	c.initServices()

	return c, nil
}

// NewClientWithToken creates a client with a static bearer token
func NewClientWithToken(baseURL, token string) (*Client, error) {
	return NewClient(&ClientOptions{
		BaseURL: baseURL,
		Token:   token,
	})
}

// initServices initializes all service implementations
func (c *Client) initServices() {
	c.Search = &searchService{client: c}
	c.Indexes = &indexService{client: c}
	c.Apps = &appService{client: c}
	c.Users = &userService{client: c}
}

// BaseURL returns the target this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login performs the credential exchange and returns the bearer value in
// use. For the static-token strategy it is a no-op success returning the
// configured token.
func (c *Client) Login(ctx context.Context) (string, error) {
	if c.session.IsStatic() {
		tok, _ := c.session.BearerToken()
		return tok, nil
	}

	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	return c.login(ctx)
}

// login performs the credential exchange and stores the session token.
// Callers must hold loginMu.
func (c *Client) login(ctx context.Context) (string, error) {
	if c.session.IsStatic() {
		return "", errors.WithStack(types.ErrStaticStrategy)
	}

	strategy := c.session.Strategy()
	form := url.Values{
		"username":    {strategy.Username},
		"password":    {strategy.Password},
		"output_mode": {"json"},
	}

	body, err := c.transport.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   loginPath,
		Body:   []byte(form.Encode()),
	})
	if err != nil {
		if IsAuthRejected(err) {
			return "", errors.WithMessage(ErrAuthFailed, err.Error())
		}
		return "", errors.Wrap(err, "login request failed")
	}

	var loginResp struct {
		SessionKey string `json:"sessionKey"`
	}
	if err := json.Unmarshal(body, &loginResp); err != nil {
		return "", errors.Wrap(err, "failed to parse login response")
	}
	if loginResp.SessionKey == "" {
		return "", errors.WithMessage(ErrAuthFailed, "no session key in login response")
	}

	c.session.Store(loginResp.SessionKey, 0)

	if c.logger != nil {
		c.logger.Info("login successful", "username", strategy.Username, "baseURL", c.baseURL)
	}

	return loginResp.SessionKey, nil
}

// bearer returns a usable bearer token, performing a login when the cached
// session is missing or expired.
func (c *Client) bearer(ctx context.Context) (string, error) {
	if tok, ok := c.session.BearerToken(); ok {
		return tok, nil
	}

	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if tok, ok := c.session.BearerToken(); ok {
		return tok, nil
	}
	return c.login(ctx)
}

// do executes one authenticated logical call. On an auth rejection with
// the credentials strategy it clears the session, logs in once and replays
// the call exactly once; each of the two attempts independently runs the
// full retry/backoff cycle. A static token is never retried: a bad static
// token will not fix itself.
func (c *Client) do(ctx context.Context, method, path string, query, form url.Values, out interface{}) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("output_mode", "json")

	req := &transport.Request{
		Method: method,
		Path:   path,
		Query:  query,
	}
	if form != nil {
		req.Body = []byte(form.Encode())
	}

	tok, err := c.bearer(ctx)
	if err != nil {
		return err
	}
	req.Token = tok

	body, err := c.transport.Do(ctx, req)

	if err != nil && IsAuthRejected(err) && !c.session.IsStatic() {
		if c.logger != nil {
			c.logger.Warn("session rejected, re-authenticating", "path", path)
		}
		c.session.Clear()

		c.loginMu.Lock()
		tok, lerr := c.login(ctx)
		c.loginMu.Unlock()
		if lerr != nil {
			return lerr
		}

		req.Token = tok
		body, err = c.transport.Do(ctx, req)
		if err != nil && IsAuthRejected(err) {
			// Fresh token rejected too: terminal, no further replays.
			return errors.WithMessage(ErrAuthFailed, err.Error())
		}
	}

	if err != nil {
		c.captureError(ctx, err, method, path)
		return err
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return errors.Wrap(err, "failed to unmarshal response")
		}
	}

	return nil
}

// captureError reports terminal request failures to Sentry when enabled.
func (c *Client) captureError(ctx context.Context, err error, method, path string) {
	if c.options.SentryDSN == "" && c.options.SentryOptions == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("http.method", method)
		scope.SetContext("request", map[string]interface{}{
			"path":    path,
			"baseURL": c.baseURL,
		})
		hub.CaptureException(err)
	})
}

// Close flushes any pending Sentry events and performs cleanup
func (c *Client) Close() {
	if c.options.SentryDSN != "" || c.options.SentryOptions != nil {
		sentry.Flush(2 * time.Second)
	}
}

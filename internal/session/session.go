// Package session holds the credential material for one client instance.
//
// A Strategy is immutable for the life of a client: either a static bearer
// token or a username/password pair exchanged for a short-lived session
// token. State is the mutable part and is guarded by a mutex because a
// refresh is a read-modify-write (check expiry, login, store token) that
// must not run twice concurrently.
package session

import (
	"sync"
	"time"

	"github.com/strixlab/spelunker/internal/types"
)

// Strategy describes how a client authenticates. When both a token and
// credentials are configured, the static token wins.
type Strategy struct {
	Token    string
	Username string
	Password string
}

// IsStatic reports whether the strategy uses a static bearer token.
func (s Strategy) IsStatic() bool {
	return s.Token != ""
}

// HasCredentials reports whether a username/password pair is configured.
func (s Strategy) HasCredentials() bool {
	return s.Username != "" && s.Password != ""
}

// Valid reports whether the strategy can authenticate at all.
func (s Strategy) Valid() bool {
	return s.IsStatic() || s.HasCredentials()
}

// State is the time-bounded session derived from a Strategy. All access
// goes through the mutex; the zero value is not usable, construct with New.
type State struct {
	mu       sync.Mutex
	strategy Strategy

	token    string
	issuedAt time.Time
	ttl      time.Duration
	buffer   time.Duration

	now func() time.Time
}

// New creates session state for the given strategy. ttl and buffer apply
// only to credential-based sessions; zero values select the defaults.
func New(strategy Strategy, ttl, buffer time.Duration) *State {
	if ttl <= 0 {
		ttl = types.DefaultSessionTTL
	}
	if buffer < 0 {
		buffer = 0
	} else if buffer == 0 {
		buffer = types.DefaultSessionExpiryBuffer
	}

	return &State{
		strategy: strategy,
		ttl:      ttl,
		buffer:   buffer,
		now:      time.Now,
	}
}

// Strategy returns the immutable auth strategy.
func (s *State) Strategy() Strategy {
	return s.strategy
}

// IsStatic reports whether this session wraps a static token.
func (s *State) IsStatic() bool {
	return s.strategy.IsStatic()
}

// BearerToken returns the current bearer value. For a static strategy it is
// always the configured token. For credentials it is the cached session
// token, and ok is false when no login happened yet or the token expired.
func (s *State) BearerToken() (token string, ok bool) {
	if s.strategy.IsStatic() {
		return s.strategy.Token, true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expiredLocked() {
		return "", false
	}
	return s.token, true
}

// Expired reports whether the session needs a (re-)login. A static token
// never expires from the client's point of view.
func (s *State) Expired() bool {
	if s.strategy.IsStatic() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiredLocked()
}

// expiredLocked applies the expiry invariant: a session is expired if the
// token is absent or now >= issuedAt + ttl - buffer.
func (s *State) expiredLocked() bool {
	if s.token == "" {
		return true
	}
	return !s.now().Before(s.issuedAt.Add(s.ttl - s.buffer))
}

// Store records a freshly issued session token. A non-positive ttl keeps
// the configured session TTL; servers that report a lifetime override it.
func (s *State) Store(token string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.issuedAt = s.now()
	if ttl > 0 {
		s.ttl = ttl
	}
}

// Clear drops the cached token. The next BearerToken call path requires a
// re-login. Called whenever the server rejects the session.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.issuedAt = time.Time{}
}

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategy_Precedence(t *testing.T) {
	s := Strategy{Token: "tok", Username: "admin", Password: "changeme"}
	assert.True(t, s.IsStatic(), "static token wins when both are configured")
	assert.True(t, s.Valid())

	creds := Strategy{Username: "admin", Password: "changeme"}
	assert.False(t, creds.IsStatic())
	assert.True(t, creds.HasCredentials())
	assert.True(t, creds.Valid())

	assert.False(t, Strategy{}.Valid())
}

func TestState_StaticToken(t *testing.T) {
	state := New(Strategy{Token: "static-token"}, 0, 0)

	tok, ok := state.BearerToken()
	require.True(t, ok)
	assert.Equal(t, "static-token", tok)
	assert.False(t, state.Expired(), "static tokens never expire")

	// Clear has no effect on the static bearer value.
	state.Clear()
	tok, ok = state.BearerToken()
	require.True(t, ok)
	assert.Equal(t, "static-token", tok)
}

func TestState_CredentialsLifecycle(t *testing.T) {
	state := New(Strategy{Username: "admin", Password: "changeme"}, time.Hour, time.Minute)

	// No login yet.
	_, ok := state.BearerToken()
	assert.False(t, ok)
	assert.True(t, state.Expired())

	state.Store("session-key", 0)
	tok, ok := state.BearerToken()
	require.True(t, ok)
	assert.Equal(t, "session-key", tok)
	assert.False(t, state.Expired())

	state.Clear()
	_, ok = state.BearerToken()
	assert.False(t, ok)
	assert.True(t, state.Expired())
}

func TestState_ExpiryInvariant(t *testing.T) {
	// Expired iff now >= issuedAt + ttl - buffer.
	issued := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		now     time.Time
		expired bool
	}{
		{"fresh", issued.Add(time.Minute), false},
		{"just inside buffer boundary", issued.Add(59 * time.Minute).Add(-time.Nanosecond), false},
		{"exactly at boundary", issued.Add(59 * time.Minute), true},
		{"past ttl", issued.Add(2 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := New(Strategy{Username: "admin", Password: "changeme"}, time.Hour, time.Minute)
			state.now = func() time.Time { return issued }
			state.Store("session-key", 0)

			state.now = func() time.Time { return tt.now }
			assert.Equal(t, tt.expired, state.Expired())

			_, ok := state.BearerToken()
			assert.Equal(t, !tt.expired, ok)
		})
	}
}

func TestState_StoreServerTTLOverride(t *testing.T) {
	issued := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	state := New(Strategy{Username: "admin", Password: "changeme"}, time.Hour, time.Minute)
	state.now = func() time.Time { return issued }

	// Server reports a 10 minute session lifetime; the configured hour no
	// longer applies.
	state.Store("session-key", 10*time.Minute)

	state.now = func() time.Time { return issued.Add(5 * time.Minute) }
	assert.False(t, state.Expired())

	state.now = func() time.Time { return issued.Add(9 * time.Minute) }
	assert.True(t, state.Expired())
}

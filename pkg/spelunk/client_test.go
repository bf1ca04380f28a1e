package spelunk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strixlab/spelunker/internal/types"
)

func fastRetryPolicy() *types.RetryPolicy {
	return &types.RetryPolicy{
		MaxRetries:   2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	}
}

func newTestClient(t *testing.T, serverURL string, mutate func(*ClientOptions)) *Client {
	t.Helper()

	opts := &ClientOptions{
		BaseURL:     serverURL,
		Token:       "static-token",
		RetryPolicy: fastRetryPolicy(),
	}
	if mutate != nil {
		mutate(opts)
	}

	client, err := NewClient(opts)
	require.NoError(t, err)
	return client
}

func writeFeed(w http.ResponseWriter, names []string, total int) {
	type entry struct {
		Name    string          `json:"name"`
		Content json.RawMessage `json:"content"`
	}
	feed := struct {
		Entry  []entry `json:"entry"`
		Paging struct {
			Total int `json:"total"`
		} `json:"paging"`
	}{}
	for _, name := range names {
		feed.Entry = append(feed.Entry, entry{Name: name, Content: json.RawMessage(`{}`)})
	}
	feed.Paging.Total = total
	_ = json.NewEncoder(w).Encode(feed)
}

func TestNewClient_ConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		opts  *ClientOptions
		field string
	}{
		{"nil options", nil, "base_url"},
		{"missing base url", &ClientOptions{Token: "t"}, "base_url"},
		{"bad scheme", &ClientOptions{BaseURL: "ftp://host", Token: "t"}, "base_url"},
		{"no credentials", &ClientOptions{BaseURL: "https://host:8089"}, "credentials"},
		{"password without username", &ClientOptions{BaseURL: "https://host:8089", Password: "p"}, "credentials"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.opts)
			require.Error(t, err)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestClient_Login_CredentialsExchange(t *testing.T) {
	var gotUsername, gotPassword string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/services/auth/login", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotUsername = r.PostForm.Get("username")
		gotPassword = r.PostForm.Get("password")
		fmt.Fprint(w, `{"sessionKey":"fresh-session-key"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(o *ClientOptions) {
		o.Token = ""
		o.Username = "admin"
		o.Password = "changeme"
	})
	defer client.Close()

	token, err := client.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-session-key", token)
	assert.Equal(t, "admin", gotUsername)
	assert.Equal(t, "changeme", gotPassword)
}

func TestClient_Login_StaticTokenIsNoOp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("static-token login must not touch the network")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	defer client.Close()

	token, err := client.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "static-token", token)
}

func TestClient_Login_RejectedCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"messages":[{"type":"WARN","text":"Login failed"}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(o *ClientOptions) {
		o.Token = ""
		o.Username = "admin"
		o.Password = "wrong"
	})
	defer client.Close()

	_, err := client.Login(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestClient_AuthRetry_ReauthenticatesOnce(t *testing.T) {
	var logins, dataHits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/services/auth/login":
			n := atomic.AddInt32(&logins, 1)
			fmt.Fprintf(w, `{"sessionKey":"key-%d"}`, n)
		case "/services/data/indexes":
			atomic.AddInt32(&dataHits, 1)
			// The first session key is stale; only the re-issued one works.
			if r.Header.Get("Authorization") != "Bearer key-2" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			writeFeed(w, []string{"main"}, 1)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(o *ClientOptions) {
		o.Token = ""
		o.Username = "admin"
		o.Password = "changeme"
	})
	defer client.Close()

	indexes, err := client.Indexes.List(context.Background())
	require.NoError(t, err)
	require.Len(t, indexes, 1)
	assert.Equal(t, "main", indexes[0].Name)

	assert.Equal(t, int32(2), atomic.LoadInt32(&logins), "one initial login plus one re-login")
	assert.Equal(t, int32(2), atomic.LoadInt32(&dataHits), "original call plus exactly one replay")
}

func TestClient_AuthRetry_Bounded(t *testing.T) {
	var logins, dataHits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/services/auth/login":
			n := atomic.AddInt32(&logins, 1)
			fmt.Fprintf(w, `{"sessionKey":"key-%d"}`, n)
		default:
			// Every data call is rejected, no matter how fresh the token.
			atomic.AddInt32(&dataHits, 1)
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(o *ClientOptions) {
		o.Token = ""
		o.Username = "admin"
		o.Password = "changeme"
	})
	defer client.Close()

	_, err := client.Indexes.List(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthFailed)

	assert.Equal(t, int32(2), atomic.LoadInt32(&logins), "no more than one re-login per logical call")
	assert.Equal(t, int32(2), atomic.LoadInt32(&dataHits), "no more than one replay per logical call")
}

func TestClient_StaticToken_NoReauthOn401(t *testing.T) {
	var logins, dataHits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/services/auth/login":
			atomic.AddInt32(&logins, 1)
			fmt.Fprint(w, `{"sessionKey":"irrelevant"}`)
		default:
			atomic.AddInt32(&dataHits, 1)
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	defer client.Close()

	_, err := client.Indexes.List(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthRejected, "a bad static token propagates unchanged")

	assert.Equal(t, int32(0), atomic.LoadInt32(&logins), "zero re-auth attempts for a static token")
	assert.Equal(t, int32(1), atomic.LoadInt32(&dataHits))
}

func TestClient_SessionReusedAcrossCalls(t *testing.T) {
	var logins int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/services/auth/login":
			atomic.AddInt32(&logins, 1)
			fmt.Fprint(w, `{"sessionKey":"key-1"}`)
		default:
			require.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
			writeFeed(w, []string{"main"}, 1)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(o *ClientOptions) {
		o.Token = ""
		o.Username = "admin"
		o.Password = "changeme"
	})
	defer client.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := client.Indexes.List(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&logins), "a fresh session is reused, not re-obtained")
}

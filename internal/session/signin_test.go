package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthenticator(t *testing.T, relayURL string) (*Authenticator, *Store) {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	auth := NewAuthenticator(store, relayURL, 5*time.Second)
	auth.openURL = func(string) error { return nil }
	return auth, store
}

func TestSignIn(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/init", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"auth_url":   "https://accounts.google.com/o/oauth2/v2/auth?state=abc",
			"session_id": "flow-1",
		})
	})
	mux.HandleFunc("GET /auth/poll/flow-1", func(w http.ResponseWriter, r *http.Request) {
		// First poll: still pending; second poll: tokens ready
		if polls.Add(1) == 1 {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-abc",
			"refresh_token": "refresh-def",
			"expires_in":    3600,
			"user":          map[string]string{"id": "u-1", "email": "user@example.com"},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	auth, store := newTestAuthenticator(t, server.URL)

	user, err := auth.SignIn(context.Background())
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "user@example.com", user.Email)
	assert.GreaterOrEqual(t, polls.Load(), int32(2))

	state := store.Resolve()
	require.True(t, state.IsAuthenticated)
	assert.Equal(t, "access-abc", state.AccessToken)
	assert.False(t, store.Expired())
}

func TestSignInRejectedSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/init", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"auth_url":   "https://example.com/auth",
			"session_id": "flow-2",
		})
	})
	mux.HandleFunc("GET /auth/poll/flow-2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	auth, store := newTestAuthenticator(t, server.URL)

	_, err := auth.SignIn(context.Background())
	require.Error(t, err)
	assert.False(t, store.Resolve().IsAuthenticated)
}

func TestSignInCancelled(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/init", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"auth_url":   "https://example.com/auth",
			"session_id": "flow-3",
		})
	})
	mux.HandleFunc("GET /auth/poll/flow-3", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	auth, _ := newTestAuthenticator(t, server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := auth.SignIn(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRefresh(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "refresh-456", req.RefreshToken)

		// Response omits user and refresh token; the client keeps the known ones
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-new",
			"expires_in":   3600,
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	auth, store := newTestAuthenticator(t, server.URL)
	require.NoError(t, store.Set(testSession()))

	require.NoError(t, auth.Refresh(context.Background()))

	state := store.Resolve()
	require.True(t, state.IsAuthenticated)
	assert.Equal(t, "access-new", state.AccessToken)
	assert.Equal(t, "user@example.com", state.User.Email)

	current := store.Current()
	assert.Equal(t, "refresh-456", current.Token.RefreshToken)
}

func TestRefreshWithoutToken(t *testing.T) {
	auth, _ := newTestAuthenticator(t, "http://relay.invalid")
	assert.Error(t, auth.Refresh(context.Background()))
}

func TestSignOut(t *testing.T) {
	auth, store := newTestAuthenticator(t, "http://relay.invalid")
	require.NoError(t, store.Set(testSession()))
	require.NoError(t, auth.SignOut())
	assert.False(t, store.Resolve().IsAuthenticated)
}

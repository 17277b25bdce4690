package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryoshumei/add-to-calendar/internal/usage"
)

type staticToken string

func (s staticToken) AccessToken() string { return string(s) }

func TestRemoteExtractSuccess(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/process-text", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"eventDetails": {"events": [
				{"title":"Standup","startTime":"2025-06-02T09:00:00","endTime":"2025-06-02T09:15:00"}
			]},
			"usage": {"usageCount": 3, "limit": 50, "yearMonth": "2025-06"}
		}`))
	}))
	defer server.Close()

	store := usage.NewStore(t.TempDir())
	r := NewRemoteExtractor(server.URL, staticToken("tok-123"), server.Client(), store)

	result, err := r.Extract(context.Background(), "standup monday 9am")
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "Standup", result.Events[0].Title)
	assert.Equal(t, "Bearer tok-123", gotAuth)

	// The reported quota snapshot is mirrored locally
	snap, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 3, snap.UsageCount)
	assert.Equal(t, "2025-06", snap.YearMonth)
}

func TestRemoteExtractNoToken(t *testing.T) {
	r := NewRemoteExtractor("http://relay.invalid", staticToken(""), nil, nil)
	_, err := r.Extract(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestRemoteExtract401(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"session expired"}`))
	}))
	defer server.Close()

	r := NewRemoteExtractor(server.URL, staticToken("stale"), server.Client(), nil)
	_, err := r.Extract(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.False(t, IsQuotaError(err))
}

func TestRemoteExtractQuota(t *testing.T) {
	message := "Monthly limit exceeded. You have used 50/50 requests this month."
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
	}))
	defer server.Close()

	r := NewRemoteExtractor(server.URL, staticToken("tok"), server.Client(), nil)
	_, err := r.Extract(context.Background(), "text")
	require.Error(t, err)
	require.True(t, IsQuotaError(err))

	var quotaErr *QuotaError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, message, quotaErr.Message)
	assert.Equal(t, 50, quotaErr.UsageCount)
	assert.Equal(t, 50, quotaErr.Limit)
}

func TestRemoteExtractGenericFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"failed to extract events from text"}`))
	}))
	defer server.Close()

	r := NewRemoteExtractor(server.URL, staticToken("tok"), server.Client(), nil)
	_, err := r.Extract(context.Background(), "text")
	require.Error(t, err)
	assert.False(t, IsAuthError(err))
	assert.False(t, IsQuotaError(err))
}

func TestRemoteExtractInvalidPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Zero events must be rejected even with HTTP 200
		_, _ = w.Write([]byte(`{"eventDetails": {"events": []}}`))
	}))
	defer server.Close()

	r := NewRemoteExtractor(server.URL, staticToken("tok"), server.Client(), nil)
	_, err := r.Extract(context.Background(), "text")
	require.Error(t, err)
	assert.False(t, IsAuthError(err))
}

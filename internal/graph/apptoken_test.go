package graph

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable clock for cache expiry tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestCachedTokenSource_ReusesWithinTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	var fetches atomic.Int32

	fetch := func() (string, time.Time, error) {
		fetches.Add(1)
		return "tok-1", clock.now.Add(time.Hour), nil
	}

	src := NewCachedTokenSource(fetch, clock.Now, time.Minute, slog.Default())

	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	tok, err = src.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	assert.Equal(t, int32(1), fetches.Load(), "second call within TTL must be a cache hit")
}

func TestCachedTokenSource_RefreshesBeforeExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	var fetches atomic.Int32

	fetch := func() (string, time.Time, error) {
		n := fetches.Add(1)
		if n == 1 {
			return "tok-1", clock.now.Add(time.Hour), nil
		}

		return "tok-2", clock.now.Add(time.Hour), nil
	}

	src := NewCachedTokenSource(fetch, clock.Now, time.Minute, slog.Default())

	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	// Within the margin of the expiry the cached token counts as stale,
	// so the cache re-acquires before returning.
	clock.Advance(time.Hour - 30*time.Second)

	tok, err = src.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.Equal(t, int32(2), fetches.Load())
}

func TestCachedTokenSource_FetchFailurePropagates(t *testing.T) {
	fetch := func() (string, time.Time, error) {
		return "", time.Time{}, &AuthError{Detail: "AADSTS7000215: invalid client secret"}
	}

	src := NewCachedTokenSource(fetch, nil, 0, slog.Default())

	_, err := src.Token()
	require.Error(t, err)

	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Detail, "AADSTS7000215")
}

func TestNewAppTokenSource_ClientCredentialsGrant(t *testing.T) {
	var requests atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/tenant-1/oauth2/v2.0/token", r.URL.Path)
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"app-tok","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	cred := Credential{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		TenantID:     "tenant-1",
		AuthorityURL: srv.URL,
	}

	src := NewAppTokenSource(context.Background(), cred, nil, slog.Default())

	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "app-tok", tok)

	// Second call hits the cache — one network round-trip total.
	tok, err = src.Token()
	require.NoError(t, err)
	assert.Equal(t, "app-tok", tok)
	assert.Equal(t, int32(1), requests.Load())
}

func TestNewAppTokenSource_ProviderErrorBecomesAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"AADSTS7000215: invalid client secret"}`))
	}))
	defer srv.Close()

	cred := Credential{
		ClientID:     "client-1",
		ClientSecret: "wrong",
		TenantID:     "tenant-1",
		AuthorityURL: srv.URL,
	}

	src := NewAppTokenSource(context.Background(), cred, nil, slog.Default())

	_, err := src.Token()
	require.Error(t, err)

	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Detail, "AADSTS7000215")
}

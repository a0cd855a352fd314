package skymesh_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stationpulse/stationpulse/internal/provider/skymesh"
)

func signedToken(t *testing.T, expiresIn time.Duration) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "monitor",
		"exp": time.Now().Add(expiresIn).Unix(),
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func loginServer(t *testing.T, calls *atomic.Int32, token func() string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/login", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var creds map[string]string
		require.NoError(t, json.Unmarshal(body, &creds))
		require.Equal(t, "monitor", creds["username"])
		require.Equal(t, "hunter2", creds["password"])

		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]string{"token": token()})
	}))
}

func TestTokenCache_LoginAndReuse(t *testing.T) {
	var calls atomic.Int32
	token := signedToken(t, time.Hour)
	server := loginServer(t, &calls, func() string { return token })
	defer server.Close()

	cache := skymesh.NewTokenCache(skymesh.TokenCacheConfig{
		BaseURL:  server.URL,
		Username: "monitor",
		Password: "hunter2",
		Logger:   zerolog.New(io.Discard),
	})

	got, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, token, got)

	// Second call is served from the cache.
	got, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, token, got)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTokenCache_RefreshesInsideSafetyMargin(t *testing.T) {
	var calls atomic.Int32
	// Expiry inside the five minute safety margin, so the cached token is
	// already considered stale by the time it is stored.
	server := loginServer(t, &calls, func() string { return signedToken(t, 4*time.Minute) })
	defer server.Close()

	cache := skymesh.NewTokenCache(skymesh.TokenCacheConfig{
		BaseURL:  server.URL,
		Username: "monitor",
		Password: "hunter2",
		Logger:   zerolog.New(io.Discard),
	})

	_, err := cache.Token(context.Background())
	require.NoError(t, err)
	_, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTokenCache_PrefersStaticToken(t *testing.T) {
	var calls atomic.Int32
	server := loginServer(t, &calls, func() string { return "unused" })
	defer server.Close()

	static := signedToken(t, time.Hour)
	cache := skymesh.NewTokenCache(skymesh.TokenCacheConfig{
		BaseURL:     server.URL,
		Username:    "monitor",
		Password:    "hunter2",
		StaticToken: static,
		Logger:      zerolog.New(io.Discard),
	})

	got, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, static, got)
	assert.Equal(t, int32(0), calls.Load())
}

func TestTokenCache_StaticTokenWithoutExpiryClaim(t *testing.T) {
	cache := skymesh.NewTokenCache(skymesh.TokenCacheConfig{
		StaticToken: "opaque-provisioned-token",
		Logger:      zerolog.New(io.Discard),
	})

	got, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "opaque-provisioned-token", got)
}

func TestTokenCache_NoCredentials(t *testing.T) {
	cache := skymesh.NewTokenCache(skymesh.TokenCacheConfig{
		Logger: zerolog.New(io.Discard),
	})

	_, err := cache.Token(context.Background())
	assert.ErrorIs(t, err, skymesh.ErrAuthUnavailable)
}

func TestTokenCache_LoginFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	cache := skymesh.NewTokenCache(skymesh.TokenCacheConfig{
		BaseURL:  server.URL,
		Username: "monitor",
		Password: "wrong",
		Logger:   zerolog.New(io.Discard),
	})

	_, err := cache.Token(context.Background())
	assert.ErrorIs(t, err, skymesh.ErrAuthUnavailable)
}

func TestTokenCache_InvalidateForcesRefresh(t *testing.T) {
	var calls atomic.Int32
	server := loginServer(t, &calls, func() string { return signedToken(t, time.Hour) })
	defer server.Close()

	cache := skymesh.NewTokenCache(skymesh.TokenCacheConfig{
		BaseURL:  server.URL,
		Username: "monitor",
		Password: "hunter2",
		Logger:   zerolog.New(io.Discard),
	})

	_, err := cache.Token(context.Background())
	require.NoError(t, err)

	cache.Invalidate()

	_, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

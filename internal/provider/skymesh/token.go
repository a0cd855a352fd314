package skymesh

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// ErrAuthUnavailable is returned when no credential source is configured or
// the login exchange fails. Callers treat it as "skip this cycle".
var ErrAuthUnavailable = errors.New("no usable skymesh credential")

const (
	// tokenSafetyMargin is subtracted from the claimed expiry so a token is
	// never used in its final minutes.
	tokenSafetyMargin = 5 * time.Minute

	// fallbackTokenValidity is assumed when a pre-provisioned token does
	// not carry a decodable expiry claim.
	fallbackTokenValidity = 24 * time.Hour
)

// TokenCacheConfig holds configuration for the token cache.
type TokenCacheConfig struct {
	// BaseURL is the SkyMesh API base URL.
	BaseURL string

	// Username and Password are the login credentials.
	Username string
	Password string

	// StaticToken is an externally pre-provisioned bearer token. When set
	// it is preferred over performing a login.
	StaticToken string

	// HTTPClient executes the login request. Defaults to a resilient
	// client when nil.
	HTTPClient HTTPDoer

	// Logger for token lifecycle events.
	Logger zerolog.Logger
}

// TokenCache holds the single shared bearer credential for the SkyMesh API
// and refreshes it via login when absent or expired. The check-then-refresh
// sequence runs under one mutex, so concurrent callers share a single login
// instead of racing redundant ones.
type TokenCache struct {
	cfg        TokenCacheConfig
	httpClient HTTPDoer

	mu     sync.Mutex
	token  string
	expiry time.Time

	now func() time.Time
}

// NewTokenCache creates a token cache. The cache starts empty and populates
// lazily on first use; it is not persisted across restarts.
func NewTokenCache(cfg TokenCacheConfig) *TokenCache {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = defaultHTTPClient("skymesh-auth")
	}
	return &TokenCache{
		cfg:        cfg,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// Token returns a valid bearer credential, refreshing it when the cached one
// is absent or inside its safety margin.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiry) {
		return c.token, nil
	}
	return c.refresh(ctx)
}

// Invalidate drops the cached credential so the next caller refreshes.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiry = time.Time{}
}

// refresh must be called with the mutex held.
func (c *TokenCache) refresh(ctx context.Context) (string, error) {
	if c.cfg.StaticToken != "" {
		c.store(c.cfg.StaticToken)
		return c.token, nil
	}

	if c.cfg.Username == "" || c.cfg.Password == "" {
		return "", fmt.Errorf("%w: no static token and no login credentials configured", ErrAuthUnavailable)
	}

	token, err := c.login(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrAuthUnavailable, err)
	}

	c.store(token)
	c.cfg.Logger.Info().
		Time("expiry", c.expiry).
		Msg("skymesh token refreshed")
	return c.token, nil
}

func (c *TokenCache) store(token string) {
	c.token = token
	c.expiry = c.claimedExpiry(token).Add(-tokenSafetyMargin)
}

// claimedExpiry decodes the token's embedded expiry claim. The signature is
// not verified: we are the API client, not the issuer. Tokens without a
// decodable claim get a conservative fixed validity window so the monitor
// keeps functioning.
func (c *TokenCache) claimedExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	c.cfg.Logger.Warn().Msg("skymesh token has no decodable expiry claim, assuming fixed validity")
	return c.now().Add(fallbackTokenValidity)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (c *TokenCache) login(ctx context.Context) (string, error) {
	body, err := json.Marshal(loginRequest{Username: c.cfg.Username, Password: c.cfg.Password})
	if err != nil {
		return "", fmt.Errorf("encode login request: %w", err)
	}

	url := c.cfg.BaseURL + "/auth/login"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d from login endpoint", resp.StatusCode)
	}

	var result loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if result.Token == "" {
		return "", errors.New("login response contained no token")
	}
	return result.Token, nil
}

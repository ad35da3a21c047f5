package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-membergate/core"
)

const (
	defaultTokenTTL            = time.Hour
	defaultTokenRequestTimeout = 30 * time.Second
	maxTokenResponseBodyBytes  = 1 << 20 // 1 MiB
	diagnosticBodyLimit        = 200
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type TokenManagerConfig struct {
	TokenURL       string
	Credentials    Credentials
	RequestTimeout time.Duration
	Now            func() time.Time
	HTTPClient     HTTPDoer
}

type cachedToken struct {
	value     string
	expiresAt time.Time
}

// TokenManager owns a single cached bearer token obtained via the OAuth2
// client-credentials grant. The cache is an explicit owned structure guarded
// by a mutex: a concurrent refresh race is tolerated, both writers produce
// valid interchangeable tokens and the last write wins.
type TokenManager struct {
	config     TokenManagerConfig
	httpClient HTTPDoer

	mu     sync.Mutex
	cached *cachedToken
}

func NewTokenManager(cfg TokenManagerConfig) (*TokenManager, error) {
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("auth: token url is required")
	}
	if cfg.Credentials.IsZero() {
		return nil, fmt.Errorf("auth: credentials are not configured")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultTokenRequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &TokenManager{
		config:     cfg,
		httpClient: httpClient,
	}, nil
}

// AccessToken returns the cached token while it is still valid and otherwise
// fetches a fresh one. On a failed fetch the stale cache entry is left
// untouched so a later call can retry.
func (m *TokenManager) AccessToken(ctx context.Context) (string, error) {
	if m == nil {
		return "", fmt.Errorf("auth: token manager is nil")
	}
	if token, ok := m.lookupCached(); ok {
		return token, nil
	}

	issued, err := m.fetchToken(ctx)
	if err != nil {
		return "", err
	}
	m.storeCached(issued)
	return issued.value, nil
}

// Invalidate clears the cached token unconditionally so the next AccessToken
// call refetches. Used for diagnostics and recovery from upstream revocation.
func (m *TokenManager) Invalidate() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = nil
}

// ExpiresAt reports the cached token expiry, if a token is held.
func (m *TokenManager) ExpiresAt() (time.Time, bool) {
	if m == nil {
		return time.Time{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached == nil {
		return time.Time{}, false
	}
	return m.cached.expiresAt, true
}

func (m *TokenManager) lookupCached() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached == nil {
		return "", false
	}
	now := m.config.Now().UTC()
	if !now.Before(m.cached.expiresAt) {
		return "", false
	}
	return m.cached.value, true
}

func (m *TokenManager) storeCached(issued cachedToken) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = &issued
}

type tokenEndpointPayload struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (m *TokenManager) fetchToken(ctx context.Context) (cachedToken, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	endpoint, err := url.Parse(m.config.TokenURL)
	if err != nil {
		return cachedToken{}, acquisitionError(fmt.Sprintf("auth: invalid token url: %v", err), 0, "")
	}
	query := endpoint.Query()
	query.Set("grant_type", "client_credentials")
	if m.config.Credentials.ClientID != "" {
		query.Set("client_id", m.config.Credentials.ClientID)
	}
	if m.config.Credentials.ClientSecret != "" {
		query.Set("client_secret", m.config.Credentials.ClientSecret)
	}
	endpoint.RawQuery = query.Encode()

	requestCtx, cancel := context.WithTimeout(ctx, m.config.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint.String(), nil)
	if err != nil {
		return cachedToken{}, acquisitionError(fmt.Sprintf("auth: build token request: %v", err), 0, "")
	}
	httpReq.Header.Set("Authorization", m.config.Credentials.AuthorizationHeader())
	httpReq.Header.Set("Content-Type", "application/json")

	response, err := m.httpClient.Do(httpReq)
	if err != nil {
		return cachedToken{}, acquisitionError(fmt.Sprintf("auth: token request failed: %v", err), 0, "")
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxTokenResponseBodyBytes))
	if readErr != nil {
		return cachedToken{}, acquisitionError(fmt.Sprintf("auth: read token response: %v", readErr), response.StatusCode, "")
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return cachedToken{}, acquisitionError(
			fmt.Sprintf("auth: token endpoint returned status %d", response.StatusCode),
			response.StatusCode,
			truncateBody(body),
		)
	}

	var payload tokenEndpointPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return cachedToken{}, acquisitionError(
			fmt.Sprintf("auth: decode token response: %v", err),
			response.StatusCode,
			truncateBody(body),
		)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return cachedToken{}, acquisitionError(
			"auth: token endpoint response missing access token",
			response.StatusCode,
			truncateBody(body),
		)
	}

	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = int64(defaultTokenTTL / time.Second)
	}
	now := m.config.Now().UTC()
	return cachedToken{
		value:     strings.TrimSpace(payload.AccessToken),
		expiresAt: now.Add(time.Duration(expiresIn) * time.Second),
	}, nil
}

func acquisitionError(message string, status int, body string) error {
	metadata := map[string]any{}
	if status > 0 {
		metadata["upstream_status"] = status
	}
	if body != "" {
		metadata["upstream_body"] = body
	}
	err := goerrors.New(message, goerrors.CategoryAuth).
		WithTextCode(core.ErrorTokenAcquisition)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func truncateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > diagnosticBodyLimit {
		return text[:diagnosticBodyLimit]
	}
	return text
}

var _ core.TokenSource = (*TokenManager)(nil)

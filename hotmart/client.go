package hotmart

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-membergate/auth"
	"github.com/goliatone/go-membergate/core"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxResponseBodyBytes  = 4 << 20 // 4 MiB
	diagnosticBodyLimit   = 200
)

type ClientConfig struct {
	SalesHistoryURL string
	CheckTokenURL   string
	Credentials     auth.Credentials
	RequestTimeout  time.Duration
	HTTPClient      auth.HTTPDoer
}

// Client talks to the payments platform API with a caller-supplied bearer
// token. It never manages tokens itself; that is the token manager's job.
type Client struct {
	config     ClientConfig
	httpClient auth.HTTPDoer
}

func NewClient(cfg ClientConfig) (*Client, error) {
	cfg.SalesHistoryURL = strings.TrimSpace(cfg.SalesHistoryURL)
	if cfg.SalesHistoryURL == "" {
		return nil, fmt.Errorf("hotmart: sales history url is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}, nil
}

type salesHistoryPayload struct {
	Data struct {
		Items []saleItemPayload `json:"items"`
	} `json:"data"`
}

type saleItemPayload struct {
	Transaction  string            `json:"transaction"`
	Status       string            `json:"status"`
	Buyer        *core.SaleBuyer   `json:"buyer"`
	Product      *core.SaleProduct `json:"product"`
	PurchaseDate saleTimestamp     `json:"purchase_date"`
}

func (p saleItemPayload) toDomain() core.SaleItem {
	return core.SaleItem{
		Transaction:  p.Transaction,
		Status:       p.Status,
		Buyer:        p.Buyer,
		Product:      p.Product,
		PurchaseDate: p.PurchaseDate.value,
	}
}

// saleTimestamp absorbs the wire formats the sales API uses for dates:
// epoch milliseconds as a bare number, RFC 3339 strings, or null. A value it
// cannot read leaves the field unset instead of failing the whole response.
type saleTimestamp struct {
	value *time.Time
}

func (t *saleTimestamp) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "" || text == "null" {
		t.value = nil
		return nil
	}
	if millis, err := strconv.ParseInt(text, 10, 64); err == nil {
		parsed := time.UnixMilli(millis).UTC()
		t.value = &parsed
		return nil
	}
	var quoted string
	if err := json.Unmarshal(data, &quoted); err == nil {
		if parsed, err := time.Parse(time.RFC3339, quoted); err == nil {
			utc := parsed.UTC()
			t.value = &utc
			return nil
		}
	}
	t.value = nil
	return nil
}

// SalesHistory queries the remote sales-history endpoint. A 401 wraps the
// unauthorized sentinel so callers can distinguish a rejected token from an
// outage; an empty item list is a well-formed response, not an error.
func (c *Client) SalesHistory(ctx context.Context, token string, query core.SalesQuery) (core.SalesPage, error) {
	if c == nil {
		return core.SalesPage{}, fmt.Errorf("hotmart: client is nil")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return core.SalesPage{}, fmt.Errorf("hotmart: bearer token is required")
	}

	endpoint, err := url.Parse(c.config.SalesHistoryURL)
	if err != nil {
		return core.SalesPage{}, fmt.Errorf("hotmart: invalid sales history url: %w", err)
	}
	params := endpoint.Query()
	if status := strings.TrimSpace(query.TransactionStatus); status != "" {
		params.Set("transaction_status", status)
	}
	if email := strings.TrimSpace(query.BuyerEmail); email != "" {
		params.Set("buyer_email", email)
	}
	endpoint.RawQuery = params.Encode()

	body, status, err := c.execute(ctx, http.MethodGet, endpoint.String(), func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
	})
	if err != nil {
		return core.SalesPage{}, err
	}

	switch {
	case status == http.StatusUnauthorized:
		return core.SalesPage{}, fmt.Errorf("hotmart: sales history rejected token: %w", core.ErrUpstreamUnauthorized)
	case status < http.StatusOK || status >= http.StatusMultipleChoices:
		return core.SalesPage{}, fmt.Errorf("hotmart: sales history returned status %d: %s", status, truncateBody(body))
	}

	var payload salesHistoryPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.SalesPage{}, fmt.Errorf("hotmart: decode sales history response: %w", err)
	}
	items := make([]core.SaleItem, 0, len(payload.Data.Items))
	for _, item := range payload.Data.Items {
		items = append(items, item.toDomain())
	}
	return core.SalesPage{Items: items}, nil
}

// TokenStatus is the decoded check_token diagnostic response.
type TokenStatus struct {
	Active    bool     `json:"active"`
	ClientID  string   `json:"client_id"`
	Scope     []string `json:"scope"`
	ExpiresIn int64    `json:"exp"`
}

// CheckToken asks the security endpoint whether a token is still recognized.
// Diagnostic only.
func (c *Client) CheckToken(ctx context.Context, token string) (TokenStatus, error) {
	if c == nil {
		return TokenStatus{}, fmt.Errorf("hotmart: client is nil")
	}
	checkURL := strings.TrimSpace(c.config.CheckTokenURL)
	if checkURL == "" {
		return TokenStatus{}, fmt.Errorf("hotmart: check token url is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return TokenStatus{}, fmt.Errorf("hotmart: bearer token is required")
	}

	endpoint, err := url.Parse(checkURL)
	if err != nil {
		return TokenStatus{}, fmt.Errorf("hotmart: invalid check token url: %w", err)
	}
	params := endpoint.Query()
	params.Set("token", token)
	endpoint.RawQuery = params.Encode()

	body, status, err := c.execute(ctx, http.MethodPost, endpoint.String(), func(req *http.Request) {
		if header := c.config.Credentials.AuthorizationHeader(); header != "" {
			req.Header.Set("Authorization", header)
		}
		req.Header.Set("Content-Type", "application/json")
	})
	if err != nil {
		return TokenStatus{}, err
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return TokenStatus{}, fmt.Errorf("hotmart: check token returned status %d: %s", status, truncateBody(body))
	}

	var payload TokenStatus
	if err := json.Unmarshal(body, &payload); err != nil {
		return TokenStatus{}, fmt.Errorf("hotmart: decode check token response: %w", err)
	}
	return payload, nil
}

func (c *Client) execute(ctx context.Context, method string, endpoint string, decorate func(*http.Request)) ([]byte, int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	requestCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, method, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("hotmart: build request: %w", err)
	}
	if decorate != nil {
		decorate(req)
	}

	response, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("hotmart: request failed: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, response.StatusCode, fmt.Errorf("hotmart: read response: %w", err)
	}
	return body, response.StatusCode, nil
}

func truncateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > diagnosticBodyLimit {
		return text[:diagnosticBodyLimit]
	}
	return text
}

var _ core.SalesReader = (*Client)(nil)

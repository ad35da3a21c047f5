package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-membergate/auth"
)

const (
	defaultFetchTimeout = 30 * time.Second
	maxCatalogBodyBytes = 16 << 20 // 16 MiB
)

// Source produces the current catalog contents.
type Source interface {
	Fetch(ctx context.Context) ([]Product, error)
}

type FetcherConfig struct {
	CSVURL         string
	RequestTimeout time.Duration
	HTTPClient     auth.HTTPDoer
}

// HTTPFetcher downloads and parses the published sheet export.
type HTTPFetcher struct {
	config     FetcherConfig
	httpClient auth.HTTPDoer
}

func NewHTTPFetcher(cfg FetcherConfig) (*HTTPFetcher, error) {
	cfg.CSVURL = strings.TrimSpace(cfg.CSVURL)
	if cfg.CSVURL == "" {
		return nil, fmt.Errorf("catalog: csv url is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultFetchTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &HTTPFetcher{
		config:     cfg,
		httpClient: httpClient,
	}, nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]Product, error) {
	if f == nil {
		return nil, fmt.Errorf("catalog: fetcher is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	requestCtx, cancel := context.WithTimeout(ctx, f.config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, f.config.CSVURL, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build fetch request: %w", err)
	}

	response, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: fetch catalog: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("catalog: catalog source returned status %d", response.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxCatalogBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("catalog: read catalog body: %w", err)
	}
	return ParseCSV(bytes.NewReader(body))
}

var _ Source = (*HTTPFetcher)(nil)

package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Service holds the current catalog snapshot and answers searches against it.
// The snapshot is replaced wholesale on refresh; readers never see a
// partially-updated catalog.
type Service struct {
	source Source
	logger glog.Logger

	mu          sync.RWMutex
	products    []Product
	refreshedAt time.Time
}

func NewService(source Source, options ...ServiceOption) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("catalog: source is required")
	}
	service := &Service{
		source: source,
		logger: glog.Ensure(nil),
	}
	for _, opt := range options {
		if opt != nil {
			opt(service)
		}
	}
	return service, nil
}

type ServiceOption func(*Service)

func WithLogger(logger glog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Refresh fetches the catalog and swaps the snapshot. On failure the previous
// snapshot stays in place.
func (s *Service) Refresh(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("catalog: service is nil")
	}
	products, err := s.source.Fetch(ctx)
	if err != nil {
		s.logger.Error("catalog refresh failed", "error", err.Error())
		return err
	}

	s.mu.Lock()
	s.products = products
	s.refreshedAt = time.Now().UTC()
	s.mu.Unlock()

	s.logger.Info("catalog refreshed", "products", len(products))
	return nil
}

// Search applies the text, brand, and category filters. A product matches the
// text filter when any query word is a substring of its lowercased name or
// brand; brand and category must match exactly when set.
func (s *Service) Search(query SearchQuery) []Product {
	if s == nil {
		return nil
	}
	words := splitQueryWords(query.Text)
	brand := strings.TrimSpace(query.Brand)
	category := strings.TrimSpace(query.Category)

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]Product, 0)
	for _, product := range s.products {
		if !matchesWords(product, words) {
			continue
		}
		if brand != "" && product.Brand != brand {
			continue
		}
		if category != "" && product.Category != category {
			continue
		}
		matches = append(matches, product)
	}
	return matches
}

// Products returns the full current snapshot.
func (s *Service) Products() []Product {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

// Brands lists the distinct non-empty brands, sorted.
func (s *Service) Brands() []string {
	return s.distinct(func(p Product) string { return p.Brand })
}

// Categories lists the distinct non-empty categories, sorted.
func (s *Service) Categories() []string {
	return s.distinct(func(p Product) string { return p.Category })
}

// RefreshedAt reports when the snapshot was last replaced.
func (s *Service) RefreshedAt() (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.refreshedAt.IsZero() {
		return time.Time{}, false
	}
	return s.refreshedAt, true
}

func (s *Service) distinct(extract func(Product) string) []string {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, product := range s.products {
		value := strings.TrimSpace(extract(product))
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

func splitQueryWords(text string) []string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	return fields
}

func matchesWords(product Product, words []string) bool {
	if len(words) == 0 {
		return true
	}
	name := strings.ToLower(product.Name)
	brand := strings.ToLower(product.Brand)
	for _, word := range words {
		if strings.Contains(name, word) || strings.Contains(brand, word) {
			return true
		}
	}
	return false
}

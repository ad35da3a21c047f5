package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// TokenSource produces a currently-valid bearer token for the remote payments
// API. Implementations cache aggressively: a call must not touch the network
// while a cached token is still valid.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	// Invalidate clears any cached token unconditionally, forcing the next
	// AccessToken call to refetch.
	Invalidate()
	// ExpiresAt reports the expiry of the cached token, if one is held.
	ExpiresAt() (time.Time, bool)
}

// SalesQuery filters the remote sales-history endpoint.
type SalesQuery struct {
	BuyerEmail        string
	TransactionStatus string
}

type SaleBuyer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type SaleProduct struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type SaleItem struct {
	Transaction  string       `json:"transaction"`
	Status       string       `json:"status"`
	Buyer        *SaleBuyer   `json:"buyer"`
	Product      *SaleProduct `json:"product"`
	PurchaseDate *time.Time   `json:"purchase_date"`
}

// SalesPage is the decoded sales-history response. An empty Items slice is a
// well-formed negative result, not an error.
type SalesPage struct {
	Items []SaleItem
}

// SalesReader calls the remote sales-history endpoint with a bearer token.
type SalesReader interface {
	SalesHistory(ctx context.Context, token string, query SalesQuery) (SalesPage, error)
}

// UserStore is the local record store. Lookup returns at most the first match
// for a normalized email; callers check before insert. Append never updates
// in place.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (UserRecord, bool, error)
	Append(ctx context.Context, record UserRecord) (UserRecord, error)
	ListAll(ctx context.Context) ([]UserRecord, error)
}

type WebhookLogStore interface {
	Append(ctx context.Context, entry WebhookLogEntry) (WebhookLogEntry, error)
	List(ctx context.Context, limit int) ([]WebhookLogEntry, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// StoreProvider exposes the stores a persistence factory builds.
type StoreProvider interface {
	UserStore() UserStore
	WebhookLogStore() WebhookLogStore
}

package membergate

import "github.com/goliatone/go-membergate/core"

type Config = core.Config

type HotmartConfig = core.HotmartConfig

type VerifierConfig = core.VerifierConfig

type CatalogConfig = core.CatalogConfig

type SessionConfig = core.SessionConfig

type Option = core.Option

type Service = core.Service

type UserRecord = core.UserRecord
type SubscriptionInfo = core.SubscriptionInfo
type RecordSource = core.RecordSource

type VerifyRequest = core.VerifyRequest
type VerificationResult = core.VerificationResult
type VerificationOutcome = core.VerificationOutcome

type RegisterUserRequest = core.RegisterUserRequest

type WebhookEvent = core.WebhookEvent
type WebhookLogEntry = core.WebhookLogEntry

type TokenSource = core.TokenSource
type SalesReader = core.SalesReader
type UserStore = core.UserStore
type WebhookLogStore = core.WebhookLogStore
type StoreProvider = core.StoreProvider
type MetricsRecorder = core.MetricsRecorder

const (
	OutcomeFound         = core.OutcomeFound
	OutcomeNotFound      = core.OutcomeNotFound
	OutcomeUpstreamError = core.OutcomeUpstreamError
)

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorFactory    = core.WithErrorFactory
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithTokenSource     = core.WithTokenSource
	WithSalesReader     = core.WithSalesReader
	WithUserStore       = core.WithUserStore
	WithWebhookLogStore = core.WithWebhookLogStore
	WithStoreProvider   = core.WithStoreProvider
	WithClock           = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

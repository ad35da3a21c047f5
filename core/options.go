package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	tokenSource     TokenSource
	salesReader     SalesReader
	userStore       UserStore
	webhookLogStore WebhookLogStore
	storeProvider   StoreProvider
	now             func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithTokenSource(source TokenSource) Option {
	return func(b *serviceBuilder) {
		b.tokenSource = source
	}
}

func WithSalesReader(reader SalesReader) Option {
	return func(b *serviceBuilder) {
		b.salesReader = reader
	}
}

func WithUserStore(store UserStore) Option {
	return func(b *serviceBuilder) {
		b.userStore = store
	}
}

func WithWebhookLogStore(store WebhookLogStore) Option {
	return func(b *serviceBuilder) {
		b.webhookLogStore = store
	}
}

func WithStoreProvider(provider StoreProvider) Option {
	return func(b *serviceBuilder) {
		b.storeProvider = provider
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("membergate", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return verificationErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || strings.TrimSpace(cfg.AdminKey) != "" {
		layer["admin_key"] = cfg.AdminKey
	}

	hotmart := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Hotmart.TokenURL) != "" {
		hotmart["token_url"] = cfg.Hotmart.TokenURL
	}
	if includeZero || strings.TrimSpace(cfg.Hotmart.SalesHistoryURL) != "" {
		hotmart["sales_history_url"] = cfg.Hotmart.SalesHistoryURL
	}
	if includeZero || strings.TrimSpace(cfg.Hotmart.CheckTokenURL) != "" {
		hotmart["check_token_url"] = cfg.Hotmart.CheckTokenURL
	}
	if includeZero || strings.TrimSpace(cfg.Hotmart.ClientID) != "" {
		hotmart["client_id"] = cfg.Hotmart.ClientID
	}
	if includeZero || strings.TrimSpace(cfg.Hotmart.ClientSecret) != "" {
		hotmart["client_secret"] = cfg.Hotmart.ClientSecret
	}
	if includeZero || strings.TrimSpace(cfg.Hotmart.BasicAuth) != "" {
		hotmart["basic_auth"] = cfg.Hotmart.BasicAuth
	}
	if includeZero || cfg.Hotmart.RequestTimeout > 0 {
		hotmart["request_timeout"] = cfg.Hotmart.RequestTimeout
	}
	if len(hotmart) > 0 {
		layer["hotmart"] = hotmart
	}

	if includeZero || strings.TrimSpace(cfg.Verifier.TestDomainSuffix) != "" {
		layer["verifier"] = map[string]any{
			"test_domain_suffix": cfg.Verifier.TestDomainSuffix,
		}
	}

	catalog := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Catalog.CSVURL) != "" {
		catalog["csv_url"] = cfg.Catalog.CSVURL
	}
	if includeZero || cfg.Catalog.RefreshInterval > 0 {
		catalog["refresh_interval"] = cfg.Catalog.RefreshInterval
	}
	if len(catalog) > 0 {
		layer["catalog"] = catalog
	}

	session := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Session.Secret) != "" {
		session["secret"] = cfg.Session.Secret
	}
	if includeZero || strings.TrimSpace(cfg.Session.Issuer) != "" {
		session["issuer"] = cfg.Session.Issuer
	}
	if includeZero || cfg.Session.TTL > 0 {
		session["ttl"] = cfg.Session.TTL
	}
	if len(session) > 0 {
		layer["session"] = session
	}

	return layer
}

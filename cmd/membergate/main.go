package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/goliatone/go-membergate/auth"
	"github.com/goliatone/go-membergate/catalog"
	"github.com/goliatone/go-membergate/core"
	"github.com/goliatone/go-membergate/hotmart"
	"github.com/goliatone/go-membergate/metrics"
	gatemigrations "github.com/goliatone/go-membergate/migrations"
	"github.com/goliatone/go-membergate/ratelimit"
	"github.com/goliatone/go-membergate/session"
	sqlstore "github.com/goliatone/go-membergate/store/sql"
	"github.com/goliatone/go-membergate/transport"
	"github.com/goliatone/go-membergate/webhooks"
)

const defaultSQLiteDSN = "file:membergate.db?_foreign_keys=on"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	_, logger := glog.Resolve(cfg.ServiceName, nil, nil)

	client, cleanup, err := openDatabase(ctx)
	if err != nil {
		logger.Error("database init failed", "error", err.Error())
		os.Exit(1)
	}
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		logger.Error("store factory init failed", "error", err.Error())
		os.Exit(1)
	}
	userStore, err := buildUserStore(factory)
	if err != nil {
		logger.Error("user store init failed", "error", err.Error())
		os.Exit(1)
	}

	credentials, err := auth.ParseCredentials(
		cfg.Hotmart.BasicAuth,
		cfg.Hotmart.ClientID,
		cfg.Hotmart.ClientSecret,
	)
	if err != nil {
		logger.Error("hotmart credentials are not configured", "error", err.Error())
		os.Exit(1)
	}
	tokens, err := auth.NewTokenManager(auth.TokenManagerConfig{
		TokenURL:       cfg.Hotmart.TokenURL,
		Credentials:    credentials,
		RequestTimeout: cfg.Hotmart.RequestTimeout,
	})
	if err != nil {
		logger.Error("token manager init failed", "error", err.Error())
		os.Exit(1)
	}
	sales, err := hotmart.NewClient(hotmart.ClientConfig{
		SalesHistoryURL: cfg.Hotmart.SalesHistoryURL,
		CheckTokenURL:   cfg.Hotmart.CheckTokenURL,
		Credentials:     credentials,
		RequestTimeout:  cfg.Hotmart.RequestTimeout,
	})
	if err != nil {
		logger.Error("hotmart client init failed", "error", err.Error())
		os.Exit(1)
	}

	recorder := metrics.NewDefaultRecorder()

	service, err := core.NewService(cfg,
		core.WithLogger(logger),
		core.WithMetricsRecorder(recorder),
		core.WithTokenSource(tokens),
		core.WithSalesReader(sales),
		core.WithUserStore(userStore),
		core.WithWebhookLogStore(factory.WebhookLogStore()),
	)
	if err != nil {
		logger.Error("service init failed", "error", err.Error())
		os.Exit(1)
	}

	sessions, err := buildSessions(ctx, cfg, logger)
	if err != nil {
		logger.Error("session manager init failed", "error", err.Error())
		os.Exit(1)
	}

	processor := buildWebhookProcessor(service)
	loginLimiter := ratelimit.NewFixedWindowLimiter(ratelimit.Config{
		Limit:  envInt("MEMBERGATE_LOGIN_RATE_LIMIT", 10),
		Window: envDuration("MEMBERGATE_LOGIN_RATE_WINDOW", time.Minute),
	})

	options := []transport.ServerOption{
		transport.WithSessionManager(sessions),
		transport.WithWebhookProcessor(processor),
		transport.WithLoginLimiter(loginLimiter),
		transport.WithTokenSource(tokens),
		transport.WithMetricsHandler(recorder.Handler()),
		transport.WithLogger(logger),
	}

	if catalogService := buildCatalog(ctx, cfg, logger); catalogService != nil {
		options = append(options, transport.WithCatalog(catalogService))
	}

	server := transport.NewServer(transport.Config{
		Addr:           envString("MEMBERGATE_HTTP_ADDR", ":8080"),
		AdminKey:       cfg.AdminKey,
		AllowedOrigins: envList("MEMBERGATE_ALLOWED_ORIGINS"),
		CookieSecure:   envBool("MEMBERGATE_COOKIE_SECURE", false),
	}, service, options...)

	logger.Info("membergate starting",
		"addr", envString("MEMBERGATE_HTTP_ADDR", ":8080"),
		"catalog", cfg.Catalog.CSVURL != "",
	)
	if err := server.ListenAndServe(ctx); err != nil {
		logger.Error("server stopped", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("membergate stopped")
}

func loadConfig(ctx context.Context) (core.Config, error) {
	provider := core.NewCfgxConfigProvider(envConfigLoader{})
	return provider.Load(ctx, core.DefaultConfig())
}

// envConfigLoader maps MEMBERGATE_* environment variables onto the nested
// configuration keys the cfgx builder expects.
type envConfigLoader struct{}

func (envConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	raw := map[string]any{}
	setEnv(raw, "service_name", "MEMBERGATE_SERVICE_NAME")
	setEnv(raw, "admin_key", "MEMBERGATE_ADMIN_KEY")

	hotmart := map[string]any{}
	setEnv(hotmart, "token_url", "MEMBERGATE_HOTMART_TOKEN_URL")
	setEnv(hotmart, "sales_history_url", "MEMBERGATE_HOTMART_SALES_HISTORY_URL")
	setEnv(hotmart, "check_token_url", "MEMBERGATE_HOTMART_CHECK_TOKEN_URL")
	setEnv(hotmart, "client_id", "MEMBERGATE_HOTMART_CLIENT_ID")
	setEnv(hotmart, "client_secret", "MEMBERGATE_HOTMART_CLIENT_SECRET")
	setEnv(hotmart, "basic_auth", "MEMBERGATE_HOTMART_BASIC_AUTH")
	setEnvDuration(hotmart, "request_timeout", "MEMBERGATE_HOTMART_REQUEST_TIMEOUT")
	if len(hotmart) > 0 {
		raw["hotmart"] = hotmart
	}

	verifier := map[string]any{}
	setEnv(verifier, "test_domain_suffix", "MEMBERGATE_VERIFIER_TEST_DOMAIN_SUFFIX")
	if len(verifier) > 0 {
		raw["verifier"] = verifier
	}

	catalogSection := map[string]any{}
	setEnv(catalogSection, "csv_url", "MEMBERGATE_CATALOG_CSV_URL")
	setEnvDuration(catalogSection, "refresh_interval", "MEMBERGATE_CATALOG_REFRESH_INTERVAL")
	if len(catalogSection) > 0 {
		raw["catalog"] = catalogSection
	}

	sessionSection := map[string]any{}
	setEnv(sessionSection, "secret", "MEMBERGATE_SESSION_SECRET")
	setEnv(sessionSection, "issuer", "MEMBERGATE_SESSION_ISSUER")
	setEnvDuration(sessionSection, "ttl", "MEMBERGATE_SESSION_TTL")
	if len(sessionSection) > 0 {
		raw["session"] = sessionSection
	}

	return raw, nil
}

type persistenceSettings struct {
	driver string
	server string
	debug  bool
}

func (s persistenceSettings) GetDebug() bool { return s.debug }

func (s persistenceSettings) GetDriver() string { return s.driver }

func (s persistenceSettings) GetServer() string { return s.server }

func (s persistenceSettings) GetPingTimeout() time.Duration { return 5 * time.Second }

func (s persistenceSettings) GetOtelIdentifier() string { return "go-membergate" }

func openDatabase(ctx context.Context) (*persistence.Client, func(), error) {
	driver := strings.ToLower(envString("MEMBERGATE_DB_DRIVER", "sqlite3"))

	var (
		dsn         string
		dialect     schema.Dialect
		dialectName string
	)
	switch driver {
	case "postgres":
		dsn = envString("MEMBERGATE_DB_DSN", "")
		if dsn == "" {
			return nil, nil, fmt.Errorf("MEMBERGATE_DB_DSN is required for the postgres driver")
		}
		dialect = pgdialect.New()
		dialectName = gatemigrations.DialectPostgres
	case "sqlite3", "sqlite":
		driver = "sqlite3"
		dsn = envString("MEMBERGATE_DB_DSN", defaultSQLiteDSN)
		dialect = sqlitedialect.New()
		dialectName = gatemigrations.DialectSQLite
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if driver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}

	settings := persistenceSettings{
		driver: driver,
		server: dsn,
		debug:  envBool("MEMBERGATE_DB_DEBUG", false),
	}
	client, err := persistence.New(settings, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("persistence client: %w", err)
	}

	_, err = gatemigrations.Register(ctx, func(_ context.Context, migrationDialect string, _ string, fsys fs.FS) error {
		if migrationDialect != dialectName {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, gatemigrations.WithValidationTargets(dialectName))
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("register migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}

	return client, func() { _ = client.Close() }, nil
}

func buildUserStore(factory *sqlstore.RepositoryFactory) (core.UserStore, error) {
	base := factory.UserStore()

	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = envDuration("MEMBERGATE_USER_CACHE_TTL", 5*time.Minute)
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		return nil, fmt.Errorf("user cache service: %w", err)
	}
	return sqlstore.NewCachedUserStore(base, cacheService)
}

func buildSessions(ctx context.Context, cfg core.Config, logger glog.Logger) (*session.Manager, error) {
	var revocations session.RevocationStore
	if addr := envString("MEMBERGATE_REDIS_ADDR", ""); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: envString("MEMBERGATE_REDIS_PASSWORD", ""),
			DB:       envInt("MEMBERGATE_REDIS_DB", 0),
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			logger.Warn("redis unavailable, session revocations stay in memory", "error", err.Error())
		} else {
			store, err := session.NewRedisRevocationStore(client, "")
			if err != nil {
				return nil, err
			}
			revocations = store
		}
	}

	return session.NewManager(session.ManagerConfig{
		Secret: cfg.Session.Secret,
		Issuer: cfg.Session.Issuer,
		TTL:    cfg.Session.TTL,
	}, revocations)
}

func buildWebhookProcessor(service *core.Service) *webhooks.Processor {
	verifier := webhooks.NewHottokVerifier(envString("MEMBERGATE_HOTTOK", ""))
	handler := webhooks.NewServiceHandler(service)
	processor := webhooks.NewProcessor(verifier, webhooks.NewMemoryLedger(), handler)

	if mode := envString("MEMBERGATE_WEBHOOK_BURST_MODE", ""); mode != "" {
		processor.Burst = webhooks.NewBurstController(webhooks.BurstOptions{
			Mode:   webhooks.BurstMode(mode),
			Window: envDuration("MEMBERGATE_WEBHOOK_BURST_WINDOW", 2*time.Second),
		})
	}
	return processor
}

// buildCatalog returns nil when no catalog source is configured; the catalog
// endpoints then answer with a configuration error.
func buildCatalog(ctx context.Context, cfg core.Config, logger glog.Logger) *catalog.Service {
	if strings.TrimSpace(cfg.Catalog.CSVURL) == "" {
		return nil
	}
	fetcher, err := catalog.NewHTTPFetcher(catalog.FetcherConfig{
		CSVURL: cfg.Catalog.CSVURL,
	})
	if err != nil {
		logger.Error("catalog fetcher init failed", "error", err.Error())
		return nil
	}
	service, err := catalog.NewService(fetcher, catalog.WithLogger(logger))
	if err != nil {
		logger.Error("catalog service init failed", "error", err.Error())
		return nil
	}
	refresher, err := catalog.NewRefresher(service, cfg.Catalog.RefreshInterval)
	if err != nil {
		logger.Error("catalog refresher init failed", "error", err.Error())
		return nil
	}
	refresher.Logger = logger
	go func() {
		_ = refresher.Run(ctx)
	}()
	return service
}

func setEnv(target map[string]any, key string, envKey string) {
	if value := strings.TrimSpace(os.Getenv(envKey)); value != "" {
		target[key] = value
	}
}

func setEnvDuration(target map[string]any, key string, envKey string) {
	value := strings.TrimSpace(os.Getenv(envKey))
	if value == "" {
		return
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		target[key] = parsed
	}
}

func envString(key string, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envList(key string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

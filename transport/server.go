package transport

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-membergate/catalog"
	"github.com/goliatone/go-membergate/core"
	"github.com/goliatone/go-membergate/session"
	"github.com/goliatone/go-membergate/webhooks"
)

const (
	defaultSessionCookie = "membergate_session"
	defaultAdminKey      = "dev-admin-key"
)

// VerifierService is the application surface the HTTP layer exposes.
type VerifierService interface {
	Verify(ctx context.Context, req core.VerifyRequest) (core.VerificationResult, error)
	RegisterUser(ctx context.Context, req core.RegisterUserRequest) (core.UserRecord, error)
	LookupUser(ctx context.Context, email string) (core.UserRecord, bool, error)
	ListUsers(ctx context.Context) ([]core.UserRecord, error)
}

type SessionManager interface {
	Issue(ctx context.Context, email string) (string, session.Session, error)
	Validate(ctx context.Context, token string) (session.Session, error)
	Revoke(ctx context.Context, s session.Session) error
	TTL() time.Duration
}

type CatalogReader interface {
	Search(query catalog.SearchQuery) []catalog.Product
	Brands() []string
	Categories() []string
}

type WebhookProcessor interface {
	Process(ctx context.Context, req webhooks.InboundRequest) (webhooks.InboundResult, error)
}

// LoginLimiter throttles login attempts per key. A nil limiter disables
// throttling.
type LoginLimiter interface {
	Allow(ctx context.Context, key string) error
}

type Config struct {
	Addr           string
	AdminKey       string
	AllowedOrigins []string
	CookieName     string
	CookieSecure   bool
}

// Server wires the verification core, sessions, catalog, and webhook intake
// behind the public HTTP API.
type Server struct {
	config    Config
	service   VerifierService
	sessions  SessionManager
	catalog   CatalogReader
	processor WebhookProcessor
	limiter   LoginLimiter
	tokens    core.TokenSource
	metrics   http.Handler
	logger    glog.Logger
	router    chi.Router
	now       func() time.Time
}

type ServerOption func(*Server)

func WithSessionManager(sessions SessionManager) ServerOption {
	return func(s *Server) { s.sessions = sessions }
}

func WithCatalog(reader CatalogReader) ServerOption {
	return func(s *Server) { s.catalog = reader }
}

func WithWebhookProcessor(processor WebhookProcessor) ServerOption {
	return func(s *Server) { s.processor = processor }
}

func WithLoginLimiter(limiter LoginLimiter) ServerOption {
	return func(s *Server) { s.limiter = limiter }
}

func WithTokenSource(tokens core.TokenSource) ServerOption {
	return func(s *Server) { s.tokens = tokens }
}

func WithMetricsHandler(handler http.Handler) ServerOption {
	return func(s *Server) { s.metrics = handler }
}

func WithLogger(logger glog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) { s.now = now }
}

func NewServer(cfg Config, service VerifierService, options ...ServerOption) *Server {
	if strings.TrimSpace(cfg.CookieName) == "" {
		cfg.CookieName = defaultSessionCookie
	}
	if strings.TrimSpace(cfg.AdminKey) == "" {
		cfg.AdminKey = defaultAdminKey
	}
	server := &Server{
		config:  cfg,
		service: service,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(server)
	}
	server.logger = glog.Ensure(server.logger)
	server.router = server.buildRouter()
	return server
}

func (s *Server) Handler() http.Handler {
	if s == nil {
		return http.NotFoundHandler()
	}
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", "X-Hotmart-Hottok"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/verify-hotmart-customer", s.handleVerifyCustomer)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Get("/auth-status", s.handleAuthStatus)
		r.Get("/users", s.handleListUsers)
		r.Post("/admin/add-user", s.handleAdminAddUser)
		r.Post("/webhook/hotmart", s.handleWebhook)
		r.Get("/test", s.handleTest)
		r.Get("/test-hotmart-token", s.handleTokenStatus)
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/products", s.handleCatalogProducts)
			r.Get("/brands", s.handleCatalogBrands)
			r.Get("/categories", s.handleCatalogCategories)
		})
	})

	return r
}

// ListenAndServe blocks until the context is cancelled, then drains in-flight
// requests before returning.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

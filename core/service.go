package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

// ErrUpstreamUnauthorized reports a 401 from the sales-history endpoint. The
// verifier surfaces it as a non-fatal negative outcome instead of a server
// error.
var ErrUpstreamUnauthorized = errors.New("core: upstream rejected the access token")

// Service decides, for a given email, whether it corresponds to a confirmed
// purchaser, preferring local knowledge and falling back to the remote
// authority.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	tokenSource     TokenSource
	salesReader     SalesReader
	userStore       UserStore
	webhookLogStore WebhookLogStore
	now             func() time.Time
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("membergate", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("membergate"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.storeProvider != nil {
		if builder.userStore == nil {
			builder.userStore = builder.storeProvider.UserStore()
		}
		if builder.webhookLogStore == nil {
			builder.webhookLogStore = builder.storeProvider.WebhookLogStore()
		}
	}
	if builder.userStore == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: user store is required"))
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		tokenSource:     builder.tokenSource,
		salesReader:     builder.salesReader,
		userStore:       builder.userStore,
		webhookLogStore: builder.webhookLogStore,
		now:             builder.now,
	}, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

// Verify runs the verification state machine:
// TestModeCheck -> LocalLookup -> RemoteCheck -> {Found | NotFound | UpstreamError}.
// Remote-path failures are converted into reported outcomes; only missing
// input is returned as an error.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (VerificationResult, error) {
	if s == nil {
		return VerificationResult{}, fmt.Errorf("core: service is nil")
	}
	startedAt := s.now()
	email := NormalizeEmail(req.Email)
	if email == "" {
		err := goerrors.NewValidation("core: email is required", goerrors.FieldError{
			Field:   "email",
			Message: "email is required",
		}).WithTextCode(ErrorBadInput)
		return VerificationResult{}, err
	}

	fields := map[string]any{"email": email, "test_mode": req.TestMode}

	if req.TestMode && strings.HasSuffix(email, s.testDomainSuffix()) {
		record, err := s.synthesizeTestRecord(ctx, email)
		s.observeOperation(ctx, startedAt, "verify", err, fields)
		if err != nil {
			return VerificationResult{}, s.errorMapper(err)
		}
		return VerificationResult{
			Outcome: OutcomeFound,
			Record:  &record,
			Reason:  "test customer verified",
		}, nil
	}

	existing, found, err := s.userStore.FindByEmail(ctx, email)
	if err != nil {
		s.observeOperation(ctx, startedAt, "verify", err, fields)
		return VerificationResult{}, s.errorMapper(err)
	}
	if found {
		s.observeOperation(ctx, startedAt, "verify", nil, fields)
		return VerificationResult{
			Outcome: OutcomeFound,
			Record:  &existing,
			Reason:  "customer verified from local store",
		}, nil
	}

	result := s.verifyRemote(ctx, email)
	s.observeOperation(ctx, startedAt, "verify", nil, fields)
	return result, nil
}

func (s *Service) verifyRemote(ctx context.Context, email string) VerificationResult {
	if s.tokenSource == nil || s.salesReader == nil {
		return VerificationResult{
			Outcome: OutcomeUpstreamError,
			Reason:  "remote verification is not configured",
		}
	}

	token, err := s.tokenSource.AccessToken(ctx)
	if err != nil {
		return VerificationResult{
			Outcome: OutcomeUpstreamError,
			Reason:  "could not authenticate with the payments API",
			Detail:  err.Error(),
		}
	}

	page, err := s.salesReader.SalesHistory(ctx, token, SalesQuery{
		BuyerEmail:        email,
		TransactionStatus: "APPROVED",
	})
	if err != nil {
		if errors.Is(err, ErrUpstreamUnauthorized) {
			return VerificationResult{
				Outcome: OutcomeNotFound,
				Reason:  "authentication failed against the payments API",
				Detail:  "token rejected or expired",
			}
		}
		return VerificationResult{
			Outcome: OutcomeUpstreamError,
			Reason:  "could not check the sales history",
			Detail:  err.Error(),
		}
	}

	if len(page.Items) == 0 {
		return VerificationResult{
			Outcome: OutcomeNotFound,
			Reason:  "no approved sale found for this email",
		}
	}

	record, err := s.persistRemoteRecord(ctx, email, page.Items[0])
	if err != nil {
		return VerificationResult{
			Outcome: OutcomeUpstreamError,
			Reason:  "could not persist the verified customer",
			Detail:  err.Error(),
		}
	}
	return VerificationResult{
		Outcome: OutcomeFound,
		Record:  &record,
		Reason:  "customer verified against the sales history",
	}
}

func (s *Service) persistRemoteRecord(ctx context.Context, email string, sale SaleItem) (UserRecord, error) {
	now := s.now()
	name := fmt.Sprintf("Cliente %s", EmailLocalPart(email))
	if sale.Buyer != nil && strings.TrimSpace(sale.Buyer.Name) != "" {
		name = strings.TrimSpace(sale.Buyer.Name)
	}
	plan := "Premium"
	if sale.Product != nil && strings.TrimSpace(sale.Product.Name) != "" {
		plan = strings.TrimSpace(sale.Product.Name)
	}
	startDate := now
	if sale.PurchaseDate != nil {
		startDate = sale.PurchaseDate.UTC()
	}
	id := strings.TrimSpace(sale.Transaction)
	if id == "" {
		id = uuid.NewString()
	}
	expiresAt := now.Add(24 * time.Hour)

	record := UserRecord{
		ID:       id,
		Email:    email,
		Name:     name,
		Verified: true,
		Source:   RecordSourceRemote,
		Subscription: &SubscriptionInfo{
			Plan:      plan,
			Status:    "active",
			StartDate: &startDate,
		},
		ProviderData: map[string]any{
			"transaction": sale.Transaction,
		},
		CreatedAt: now,
		ExpiresAt: &expiresAt,
	}
	return s.userStore.Append(ctx, record)
}

func (s *Service) synthesizeTestRecord(ctx context.Context, email string) (UserRecord, error) {
	now := s.now()
	startDate := now
	record := UserRecord{
		ID:       "test-" + uuid.NewString(),
		Email:    email,
		Name:     "Teste " + EmailLocalPart(email),
		Verified: true,
		Source:   RecordSourceTest,
		Subscription: &SubscriptionInfo{
			Plan:      "Teste Premium",
			Status:    "active",
			StartDate: &startDate,
		},
		CreatedAt: now,
	}
	return s.userStore.Append(ctx, record)
}

type RegisterUserRequest struct {
	Email  string
	Name   string
	Source RecordSource
}

// RegisterUser appends a record through the administrative path. It refuses
// duplicates: the store key is checked before insert.
func (s *Service) RegisterUser(ctx context.Context, req RegisterUserRequest) (UserRecord, error) {
	if s == nil {
		return UserRecord{}, fmt.Errorf("core: service is nil")
	}
	startedAt := s.now()
	email := NormalizeEmail(req.Email)
	if email == "" {
		return UserRecord{}, goerrors.NewValidation("core: email is required", goerrors.FieldError{
			Field:   "email",
			Message: "email is required",
		}).WithTextCode(ErrorBadInput)
	}

	_, found, err := s.userStore.FindByEmail(ctx, email)
	if err != nil {
		s.observeOperation(ctx, startedAt, "register_user", err, map[string]any{"email": email})
		return UserRecord{}, s.errorMapper(err)
	}
	if found {
		err := goerrors.New("core: user already exists", goerrors.CategoryConflict).
			WithTextCode(ErrorBadInput)
		s.observeOperation(ctx, startedAt, "register_user", err, map[string]any{"email": email})
		return UserRecord{}, err
	}

	source := req.Source
	if strings.TrimSpace(string(source)) == "" {
		source = RecordSourceManual
	}
	record := UserRecord{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      strings.TrimSpace(req.Name),
		Verified:  true,
		Source:    source,
		CreatedAt: s.now(),
	}
	created, err := s.userStore.Append(ctx, record)
	s.observeOperation(ctx, startedAt, "register_user", err, map[string]any{"email": email})
	if err != nil {
		return UserRecord{}, s.errorMapper(err)
	}
	return created, nil
}

// LookupUser serves the login and auth-status paths from the local store only.
func (s *Service) LookupUser(ctx context.Context, email string) (UserRecord, bool, error) {
	if s == nil {
		return UserRecord{}, false, fmt.Errorf("core: service is nil")
	}
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return UserRecord{}, false, goerrors.NewValidation("core: email is required", goerrors.FieldError{
			Field:   "email",
			Message: "email is required",
		}).WithTextCode(ErrorBadInput)
	}
	record, found, err := s.userStore.FindByEmail(ctx, normalized)
	if err != nil {
		return UserRecord{}, false, s.errorMapper(err)
	}
	return record, found, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]UserRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	records, err := s.userStore.ListAll(ctx)
	if err != nil {
		return nil, s.errorMapper(err)
	}
	return records, nil
}

// RecordWebhook logs every delivery and upserts a user record for purchase
// approvals. Unknown events are logged and otherwise ignored.
func (s *Service) RecordWebhook(ctx context.Context, event WebhookEvent) error {
	if s == nil {
		return fmt.Errorf("core: service is nil")
	}
	startedAt := s.now()
	fields := map[string]any{"event": event.Event, "delivery_id": event.DeliveryID}

	if s.webhookLogStore != nil {
		entry := WebhookLogEntry{
			ID:         uuid.NewString(),
			DeliveryID: strings.TrimSpace(event.DeliveryID),
			Event:      strings.TrimSpace(event.Event),
			Payload:    event.Payload,
			CreatedAt:  s.now(),
		}
		if _, err := s.webhookLogStore.Append(ctx, entry); err != nil {
			s.observeOperation(ctx, startedAt, "record_webhook", err, fields)
			return s.errorMapper(err)
		}
	}

	if !isPurchaseEvent(event.Event) {
		s.observeOperation(ctx, startedAt, "record_webhook", nil, fields)
		return nil
	}
	email := NormalizeEmail(event.BuyerEmail)
	if email == "" {
		s.observeOperation(ctx, startedAt, "record_webhook", nil, fields)
		return nil
	}

	_, found, err := s.userStore.FindByEmail(ctx, email)
	if err != nil {
		s.observeOperation(ctx, startedAt, "record_webhook", err, fields)
		return s.errorMapper(err)
	}
	if found {
		s.observeOperation(ctx, startedAt, "record_webhook", nil, fields)
		return nil
	}

	record := UserRecord{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(event.BuyerName),
		Verified:     true,
		Source:       RecordSourceWebhook,
		ProviderData: event.Payload,
		CreatedAt:    s.now(),
	}
	_, err = s.userStore.Append(ctx, record)
	s.observeOperation(ctx, startedAt, "record_webhook", err, fields)
	if err != nil {
		return s.errorMapper(err)
	}
	return nil
}

func (s *Service) testDomainSuffix() string {
	suffix := strings.TrimSpace(s.config.Verifier.TestDomainSuffix)
	if suffix == "" {
		suffix = "@teste.com"
	}
	return strings.ToLower(suffix)
}

func isPurchaseEvent(event string) bool {
	switch strings.ToUpper(strings.TrimSpace(event)) {
	case "PURCHASE_APPROVED", "PURCHASE_COMPLETE":
		return true
	}
	return false
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}

package membergate

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-membergate/catalog"
	gatecommand "github.com/goliatone/go-membergate/command"
	"github.com/goliatone/go-membergate/core"
	gatequery "github.com/goliatone/go-membergate/query"
)

type stubFacadeService struct {
	lastVerifyEmail  string
	lastWebhookEvent string
}

func (s *stubFacadeService) Verify(_ context.Context, req core.VerifyRequest) (core.VerificationResult, error) {
	s.lastVerifyEmail = req.Email
	return core.VerificationResult{Outcome: core.OutcomeNotFound, Reason: "no approved sale found for this email"}, nil
}

func (s *stubFacadeService) RegisterUser(_ context.Context, req core.RegisterUserRequest) (core.UserRecord, error) {
	return core.UserRecord{ID: "u1", Email: req.Email}, nil
}

func (s *stubFacadeService) RecordWebhook(_ context.Context, event core.WebhookEvent) error {
	s.lastWebhookEvent = event.Event
	return nil
}

func (s *stubFacadeService) LookupUser(_ context.Context, email string) (core.UserRecord, bool, error) {
	if email == "maria@example.com" {
		return core.UserRecord{ID: "u1", Email: email}, true, nil
	}
	return core.UserRecord{}, false, nil
}

func (s *stubFacadeService) ListUsers(context.Context) ([]core.UserRecord, error) {
	return []core.UserRecord{{ID: "u1", Email: "maria@example.com"}}, nil
}

type stubFacadeCatalog struct {
	refreshes int
}

func (s *stubFacadeCatalog) Refresh(context.Context) error {
	s.refreshes++
	return nil
}

func (s *stubFacadeCatalog) Search(catalog.SearchQuery) []catalog.Product {
	return []catalog.Product{{ID: 1, Name: "Shampoo Hidratante"}}
}

func (s *stubFacadeCatalog) Brands() []string { return []string{"Marca A"} }

func (s *stubFacadeCatalog) Categories() []string { return []string{"Cabelo"} }

type stubFacadeTokens struct {
	invalidations int
}

func (s *stubFacadeTokens) AccessToken(context.Context) (string, error) { return "tok", nil }

func (s *stubFacadeTokens) Invalidate() { s.invalidations++ }

func (s *stubFacadeTokens) ExpiresAt() (time.Time, bool) { return time.Time{}, false }

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	svc := &stubFacadeService{}

	facade, err := NewFacade(svc,
		WithFacadeTokenSource(&stubFacadeTokens{}),
		WithFacadeCatalog(&stubFacadeCatalog{}),
	)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.VerifyCustomer == nil || commands.RegisterUser == nil || commands.IngestWebhook == nil {
		t.Fatalf("expected core command handlers to be wired")
	}
	if commands.InvalidateToken == nil || commands.RefreshCatalog == nil {
		t.Fatalf("expected optional command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.LookupUser == nil || queries.ListUsers == nil || queries.SearchCatalog == nil {
		t.Fatalf("expected query handlers to be wired")
	}
}

func TestNewFacade_OptionalHandlersStayNilWithoutDeps(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if facade.Commands().InvalidateToken != nil || facade.Commands().RefreshCatalog != nil {
		t.Fatalf("expected optional commands to stay nil")
	}
	if facade.Queries().SearchCatalog != nil {
		t.Fatalf("expected catalog queries to stay nil")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}
	cat := &stubFacadeCatalog{}

	facade, err := NewFacade(svc, WithFacadeCatalog(cat))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	if err := facade.Commands().IngestWebhook.Execute(context.Background(), gatecommand.IngestWebhookMessage{
		Event: core.WebhookEvent{Event: "PURCHASE_APPROVED", BuyerEmail: "maria@example.com"},
	}); err != nil {
		t.Fatalf("execute ingest webhook: %v", err)
	}
	if svc.lastWebhookEvent != "PURCHASE_APPROVED" {
		t.Fatalf("expected webhook delegation, got %q", svc.lastWebhookEvent)
	}

	if err := facade.Commands().RefreshCatalog.Execute(context.Background(), gatecommand.RefreshCatalogMessage{}); err != nil {
		t.Fatalf("execute refresh catalog: %v", err)
	}
	if cat.refreshes != 1 {
		t.Fatalf("expected catalog refresh delegation")
	}

	result, err := facade.Queries().LookupUser.Query(context.Background(), gatequery.LookupUserMessage{
		Email: "maria@example.com",
	})
	if err != nil {
		t.Fatalf("lookup user query: %v", err)
	}
	if !result.Found || result.Record.ID != "u1" {
		t.Fatalf("unexpected lookup result: %#v", result)
	}

	products, err := facade.Queries().SearchCatalog.Query(context.Background(), gatequery.SearchCatalogMessage{})
	if err != nil {
		t.Fatalf("search catalog query: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("unexpected products: %#v", products)
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-membergate/core"
)

// VerifierService is the mutating surface of the verification core.
type VerifierService interface {
	Verify(ctx context.Context, req core.VerifyRequest) (core.VerificationResult, error)
	RegisterUser(ctx context.Context, req core.RegisterUserRequest) (core.UserRecord, error)
	RecordWebhook(ctx context.Context, event core.WebhookEvent) error
}

type CatalogRefresher interface {
	Refresh(ctx context.Context) error
}

type VerifyCustomerCommand struct {
	service VerifierService
}

func NewVerifyCustomerCommand(service VerifierService) *VerifyCustomerCommand {
	return &VerifyCustomerCommand{service: service}
}

func (c *VerifyCustomerCommand) Execute(ctx context.Context, msg VerifyCustomerMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: verifier service is required")
	}
	out, err := c.service.Verify(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RegisterUserCommand struct {
	service VerifierService
}

func NewRegisterUserCommand(service VerifierService) *RegisterUserCommand {
	return &RegisterUserCommand{service: service}
}

func (c *RegisterUserCommand) Execute(ctx context.Context, msg RegisterUserMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: register service is required")
	}
	out, err := c.service.RegisterUser(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type IngestWebhookCommand struct {
	service VerifierService
}

func NewIngestWebhookCommand(service VerifierService) *IngestWebhookCommand {
	return &IngestWebhookCommand{service: service}
}

func (c *IngestWebhookCommand) Execute(ctx context.Context, msg IngestWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: webhook service is required")
	}
	return c.service.RecordWebhook(ctx, msg.Event)
}

type InvalidateTokenCommand struct {
	tokens core.TokenSource
}

func NewInvalidateTokenCommand(tokens core.TokenSource) *InvalidateTokenCommand {
	return &InvalidateTokenCommand{tokens: tokens}
}

func (c *InvalidateTokenCommand) Execute(_ context.Context, _ InvalidateTokenMessage) error {
	if c == nil || c.tokens == nil {
		return commandDependencyError("command: token source is required")
	}
	c.tokens.Invalidate()
	return nil
}

type RefreshCatalogCommand struct {
	catalog CatalogRefresher
}

func NewRefreshCatalogCommand(catalog CatalogRefresher) *RefreshCatalogCommand {
	return &RefreshCatalogCommand{catalog: catalog}
}

func (c *RefreshCatalogCommand) Execute(ctx context.Context, _ RefreshCatalogMessage) error {
	if c == nil || c.catalog == nil {
		return commandDependencyError("command: catalog service is required")
	}
	return c.catalog.Refresh(ctx)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

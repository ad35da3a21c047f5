package command

import (
	"strings"

	"github.com/goliatone/go-membergate/core"
)

const (
	TypeVerifyCustomer  = "membergate.command.customer.verify"
	TypeRegisterUser    = "membergate.command.user.register"
	TypeIngestWebhook   = "membergate.command.webhook.ingest"
	TypeInvalidateToken = "membergate.command.token.invalidate"
	TypeRefreshCatalog  = "membergate.command.catalog.refresh"
)

type VerifyCustomerMessage struct {
	Request core.VerifyRequest
}

func (VerifyCustomerMessage) Type() string { return TypeVerifyCustomer }

func (m VerifyCustomerMessage) Validate() error {
	if core.NormalizeEmail(m.Request.Email) == "" {
		return commandValidationError("email", "email is required")
	}
	return nil
}

type RegisterUserMessage struct {
	Request core.RegisterUserRequest
}

func (RegisterUserMessage) Type() string { return TypeRegisterUser }

func (m RegisterUserMessage) Validate() error {
	if core.NormalizeEmail(m.Request.Email) == "" {
		return commandValidationError("email", "email is required")
	}
	return nil
}

type IngestWebhookMessage struct {
	Event core.WebhookEvent
}

func (IngestWebhookMessage) Type() string { return TypeIngestWebhook }

func (m IngestWebhookMessage) Validate() error {
	if strings.TrimSpace(m.Event.Event) == "" {
		return commandValidationError("event", "event name is required")
	}
	return nil
}

// InvalidateTokenMessage forces the next token request to hit the network.
type InvalidateTokenMessage struct{}

func (InvalidateTokenMessage) Type() string { return TypeInvalidateToken }

func (InvalidateTokenMessage) Validate() error { return nil }

type RefreshCatalogMessage struct{}

func (RefreshCatalogMessage) Type() string { return TypeRefreshCatalog }

func (RefreshCatalogMessage) Validate() error { return nil }

package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[VerifyCustomerMessage]  = (*VerifyCustomerCommand)(nil)
	_ gocmd.Commander[RegisterUserMessage]    = (*RegisterUserCommand)(nil)
	_ gocmd.Commander[IngestWebhookMessage]   = (*IngestWebhookCommand)(nil)
	_ gocmd.Commander[InvalidateTokenMessage] = (*InvalidateTokenCommand)(nil)
	_ gocmd.Commander[RefreshCatalogMessage]  = (*RefreshCatalogCommand)(nil)
)

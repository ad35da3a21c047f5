package membergate

import (
	"fmt"

	gatecommand "github.com/goliatone/go-membergate/command"
	"github.com/goliatone/go-membergate/core"
	gatequery "github.com/goliatone/go-membergate/query"
)

// CommandQueryService is the application surface the facade dispatches to.
// *core.Service satisfies it.
type CommandQueryService interface {
	gatecommand.VerifierService
	gatequery.UserReader
}

type Commands struct {
	VerifyCustomer  *gatecommand.VerifyCustomerCommand
	RegisterUser    *gatecommand.RegisterUserCommand
	IngestWebhook   *gatecommand.IngestWebhookCommand
	InvalidateToken *gatecommand.InvalidateTokenCommand
	RefreshCatalog  *gatecommand.RefreshCatalogCommand
}

type Queries struct {
	LookupUser     *gatequery.LookupUserQuery
	ListUsers      *gatequery.ListUsersQuery
	SearchCatalog  *gatequery.SearchCatalogQuery
	ListBrands     *gatequery.ListBrandsQuery
	ListCategories *gatequery.ListCategoriesQuery
}

// Facade bundles the command and query handlers around one service instance
// so hosts wire a single dependency.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	tokens  core.TokenSource
	catalog facadeCatalog
}

type facadeCatalog interface {
	gatecommand.CatalogRefresher
	gatequery.CatalogReader
}

func WithFacadeTokenSource(tokens core.TokenSource) FacadeOption {
	return func(options *facadeOptions) {
		options.tokens = tokens
	}
}

func WithFacadeCatalog(catalog facadeCatalog) FacadeOption {
	return func(options *facadeOptions) {
		options.catalog = catalog
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("membergate: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		VerifyCustomer: gatecommand.NewVerifyCustomerCommand(service),
		RegisterUser:   gatecommand.NewRegisterUserCommand(service),
		IngestWebhook:  gatecommand.NewIngestWebhookCommand(service),
	}
	facade.queries = Queries{
		LookupUser: gatequery.NewLookupUserQuery(service),
		ListUsers:  gatequery.NewListUsersQuery(service),
	}

	if cfg.tokens != nil {
		facade.commands.InvalidateToken = gatecommand.NewInvalidateTokenCommand(cfg.tokens)
	}
	if cfg.catalog != nil {
		facade.commands.RefreshCatalog = gatecommand.NewRefreshCatalogCommand(cfg.catalog)
		facade.queries.SearchCatalog = gatequery.NewSearchCatalogQuery(cfg.catalog)
		facade.queries.ListBrands = gatequery.NewListBrandsQuery(cfg.catalog)
		facade.queries.ListCategories = gatequery.NewListCategoriesQuery(cfg.catalog)
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

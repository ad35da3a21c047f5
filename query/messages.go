package query

import (
	"github.com/goliatone/go-membergate/catalog"
	"github.com/goliatone/go-membergate/core"
)

const (
	TypeLookupUser     = "membergate.query.user.lookup"
	TypeListUsers      = "membergate.query.user.list"
	TypeSearchCatalog  = "membergate.query.catalog.search"
	TypeListBrands     = "membergate.query.catalog.brands"
	TypeListCategories = "membergate.query.catalog.categories"
)

type LookupUserMessage struct {
	Email string
}

func (LookupUserMessage) Type() string { return TypeLookupUser }

func (m LookupUserMessage) Validate() error {
	if core.NormalizeEmail(m.Email) == "" {
		return queryValidationError("email", "email is required")
	}
	return nil
}

type ListUsersMessage struct{}

func (ListUsersMessage) Type() string { return TypeListUsers }

func (ListUsersMessage) Validate() error { return nil }

// SearchCatalogMessage carries the free-text and facet filters. An empty
// message matches the whole catalog.
type SearchCatalogMessage struct {
	Query catalog.SearchQuery
}

func (SearchCatalogMessage) Type() string { return TypeSearchCatalog }

func (SearchCatalogMessage) Validate() error { return nil }

type ListBrandsMessage struct{}

func (ListBrandsMessage) Type() string { return TypeListBrands }

func (ListBrandsMessage) Validate() error { return nil }

type ListCategoriesMessage struct{}

func (ListCategoriesMessage) Type() string { return TypeListCategories }

func (ListCategoriesMessage) Validate() error { return nil }

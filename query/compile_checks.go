package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-membergate/catalog"
	"github.com/goliatone/go-membergate/core"
)

var (
	_ gocmd.Querier[LookupUserMessage, LookupUserResult]     = (*LookupUserQuery)(nil)
	_ gocmd.Querier[ListUsersMessage, []core.UserRecord]     = (*ListUsersQuery)(nil)
	_ gocmd.Querier[SearchCatalogMessage, []catalog.Product] = (*SearchCatalogQuery)(nil)
	_ gocmd.Querier[ListBrandsMessage, []string]             = (*ListBrandsQuery)(nil)
	_ gocmd.Querier[ListCategoriesMessage, []string]         = (*ListCategoriesQuery)(nil)
)

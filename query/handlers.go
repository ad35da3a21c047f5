package query

import (
	"context"

	"github.com/goliatone/go-membergate/catalog"
	"github.com/goliatone/go-membergate/core"
)

type UserReader interface {
	LookupUser(ctx context.Context, email string) (core.UserRecord, bool, error)
	ListUsers(ctx context.Context) ([]core.UserRecord, error)
}

// CatalogReader serves search and facet queries from the in-memory snapshot.
type CatalogReader interface {
	Search(query catalog.SearchQuery) []catalog.Product
	Brands() []string
	Categories() []string
}

// LookupUserResult distinguishes a missing user from an empty record.
type LookupUserResult struct {
	Record core.UserRecord
	Found  bool
}

type LookupUserQuery struct {
	reader UserReader
}

func NewLookupUserQuery(reader UserReader) *LookupUserQuery {
	return &LookupUserQuery{reader: reader}
}

func (q *LookupUserQuery) Query(ctx context.Context, msg LookupUserMessage) (LookupUserResult, error) {
	if q == nil || q.reader == nil {
		return LookupUserResult{}, queryDependencyError("query: user reader is required")
	}
	record, found, err := q.reader.LookupUser(ctx, msg.Email)
	if err != nil {
		return LookupUserResult{}, err
	}
	return LookupUserResult{Record: record, Found: found}, nil
}

type ListUsersQuery struct {
	reader UserReader
}

func NewListUsersQuery(reader UserReader) *ListUsersQuery {
	return &ListUsersQuery{reader: reader}
}

func (q *ListUsersQuery) Query(ctx context.Context, _ ListUsersMessage) ([]core.UserRecord, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: user reader is required")
	}
	return q.reader.ListUsers(ctx)
}

type SearchCatalogQuery struct {
	reader CatalogReader
}

func NewSearchCatalogQuery(reader CatalogReader) *SearchCatalogQuery {
	return &SearchCatalogQuery{reader: reader}
}

func (q *SearchCatalogQuery) Query(_ context.Context, msg SearchCatalogMessage) ([]catalog.Product, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: catalog reader is required")
	}
	return q.reader.Search(msg.Query), nil
}

type ListBrandsQuery struct {
	reader CatalogReader
}

func NewListBrandsQuery(reader CatalogReader) *ListBrandsQuery {
	return &ListBrandsQuery{reader: reader}
}

func (q *ListBrandsQuery) Query(_ context.Context, _ ListBrandsMessage) ([]string, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: catalog reader is required")
	}
	return q.reader.Brands(), nil
}

type ListCategoriesQuery struct {
	reader CatalogReader
}

func NewListCategoriesQuery(reader CatalogReader) *ListCategoriesQuery {
	return &ListCategoriesQuery{reader: reader}
}

func (q *ListCategoriesQuery) Query(_ context.Context, _ ListCategoriesMessage) ([]string, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: catalog reader is required")
	}
	return q.reader.Categories(), nil
}

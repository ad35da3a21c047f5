package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/goliatone/go-membergate/catalog"
	"github.com/goliatone/go-membergate/core"
)

type stubUserReader struct {
	lookupFn func(ctx context.Context, email string) (core.UserRecord, bool, error)
	listFn   func(ctx context.Context) ([]core.UserRecord, error)
}

func (s stubUserReader) LookupUser(ctx context.Context, email string) (core.UserRecord, bool, error) {
	if s.lookupFn == nil {
		return core.UserRecord{}, false, fmt.Errorf("lookup not configured")
	}
	return s.lookupFn(ctx, email)
}

func (s stubUserReader) ListUsers(ctx context.Context) ([]core.UserRecord, error) {
	if s.listFn == nil {
		return nil, fmt.Errorf("list not configured")
	}
	return s.listFn(ctx)
}

type stubCatalogReader struct {
	searchFn     func(query catalog.SearchQuery) []catalog.Product
	brandsFn     func() []string
	categoriesFn func() []string
}

func (s stubCatalogReader) Search(query catalog.SearchQuery) []catalog.Product {
	if s.searchFn == nil {
		return nil
	}
	return s.searchFn(query)
}

func (s stubCatalogReader) Brands() []string {
	if s.brandsFn == nil {
		return nil
	}
	return s.brandsFn()
}

func (s stubCatalogReader) Categories() []string {
	if s.categoriesFn == nil {
		return nil
	}
	return s.categoriesFn()
}

var (
	_ UserReader    = stubUserReader{}
	_ CatalogReader = stubCatalogReader{}
)

func TestLookupUserQuery_QueryDelegates(t *testing.T) {
	expected := core.UserRecord{ID: "u1", Email: "maria@example.com", Verified: true}
	called := false
	reader := stubUserReader{
		lookupFn: func(_ context.Context, email string) (core.UserRecord, bool, error) {
			called = true
			if email != "maria@example.com" {
				t.Fatalf("unexpected email %q", email)
			}
			return expected, true, nil
		},
	}

	result, err := NewLookupUserQuery(reader).Query(context.Background(), LookupUserMessage{
		Email: "maria@example.com",
	})
	if err != nil {
		t.Fatalf("lookup user query: %v", err)
	}
	if !called {
		t.Fatalf("expected reader invocation")
	}
	if !result.Found || result.Record.ID != expected.ID {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestLookupUserQuery_MissReportsNotFound(t *testing.T) {
	reader := stubUserReader{
		lookupFn: func(context.Context, string) (core.UserRecord, bool, error) {
			return core.UserRecord{}, false, nil
		},
	}
	result, err := NewLookupUserQuery(reader).Query(context.Background(), LookupUserMessage{
		Email: "ghost@example.com",
	})
	if err != nil {
		t.Fatalf("lookup user query: %v", err)
	}
	if result.Found {
		t.Fatalf("expected miss, got %#v", result)
	}
}

func TestListUsersQuery_QueryDelegates(t *testing.T) {
	reader := stubUserReader{
		listFn: func(context.Context) ([]core.UserRecord, error) {
			return []core.UserRecord{
				{ID: "u1", Email: "maria@example.com"},
				{ID: "u2", Email: "joao@example.com"},
			}, nil
		},
	}
	records, err := NewListUsersQuery(reader).Query(context.Background(), ListUsersMessage{})
	if err != nil {
		t.Fatalf("list users query: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected two records, got %d", len(records))
	}
}

func TestSearchCatalogQuery_QueryDelegates(t *testing.T) {
	called := false
	reader := stubCatalogReader{
		searchFn: func(query catalog.SearchQuery) []catalog.Product {
			called = true
			if query.Text != "shampoo" || query.Brand != "Marca A" {
				t.Fatalf("unexpected search query: %#v", query)
			}
			return []catalog.Product{{ID: 1, Name: "Shampoo Hidratante", Brand: "Marca A"}}
		},
	}

	products, err := NewSearchCatalogQuery(reader).Query(context.Background(), SearchCatalogMessage{
		Query: catalog.SearchQuery{Text: "shampoo", Brand: "Marca A"},
	})
	if err != nil {
		t.Fatalf("search catalog query: %v", err)
	}
	if !called {
		t.Fatalf("expected catalog reader invocation")
	}
	if len(products) != 1 || products[0].ID != 1 {
		t.Fatalf("unexpected products: %#v", products)
	}
}

func TestCatalogFacetQueries_Delegate(t *testing.T) {
	reader := stubCatalogReader{
		brandsFn:     func() []string { return []string{"Marca A", "Marca B"} },
		categoriesFn: func() []string { return []string{"Cabelo"} },
	}

	brands, err := NewListBrandsQuery(reader).Query(context.Background(), ListBrandsMessage{})
	if err != nil {
		t.Fatalf("list brands query: %v", err)
	}
	if len(brands) != 2 {
		t.Fatalf("unexpected brands: %v", brands)
	}

	categories, err := NewListCategoriesQuery(reader).Query(context.Background(), ListCategoriesMessage{})
	if err != nil {
		t.Fatalf("list categories query: %v", err)
	}
	if len(categories) != 1 || categories[0] != "Cabelo" {
		t.Fatalf("unexpected categories: %v", categories)
	}
}

func TestQueryMessageValidation(t *testing.T) {
	tests := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{
			name:    "lookup user valid",
			msg:     LookupUserMessage{Email: "maria@example.com"},
			wantErr: false,
		},
		{
			name:    "lookup user blank email",
			msg:     LookupUserMessage{Email: "  "},
			wantErr: true,
		},
		{
			name:    "list users always valid",
			msg:     ListUsersMessage{},
			wantErr: false,
		},
		{
			name:    "search catalog empty query valid",
			msg:     SearchCatalogMessage{},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

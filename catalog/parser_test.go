package catalog

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

const sampleSheet = `Nome,Descricao,Preco,Imagem,Categoria,Opiniao,Link,Marca,opiniao_consulta
Shampoo Hidratante,Limpeza suave,49.90,https://img.example.com/1.jpg,Cabelo,Otimo produto,https://loja.example.com/1,Marca A,OK
Condicionador,Hidratacao profunda,"59,90",,Cabelo,Bom,https://loja.example.com/2,Marca B,OK
Produto Oculto,Nao listar,10.00,https://img.example.com/3.jpg,Outros,,https://loja.example.com/3,Marca C,NA
Creme Facial,Pele seca,R$ 89.90,https://img.example.com/4.jpg,,Excelente,https://loja.example.com/4,Marca A,ok
`

func TestParseCSV_MapsAliasedColumns(t *testing.T) {
	products, err := ParseCSV(strings.NewReader(sampleSheet))
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("expected 3 products after NA filtering, got %d", len(products))
	}

	first := products[0]
	if first.Name != "Shampoo Hidratante" {
		t.Fatalf("unexpected name: %q", first.Name)
	}
	if first.Brand != "Marca A" {
		t.Fatalf("unexpected brand: %q", first.Brand)
	}
	if !first.Price.Equal(decimal.RequireFromString("49.90")) {
		t.Fatalf("unexpected price: %s", first.Price)
	}
	if first.ID != 1 {
		t.Fatalf("expected row number id, got %d", first.ID)
	}
}

func TestParseCSV_ExcludesConsultOpinionNA(t *testing.T) {
	products, err := ParseCSV(strings.NewReader(sampleSheet))
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	for _, product := range products {
		if product.Name == "Produto Oculto" {
			t.Fatalf("expected NA row to be excluded")
		}
	}
}

func TestParseCSV_Defaults(t *testing.T) {
	products, err := ParseCSV(strings.NewReader(sampleSheet))
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}

	conditioner := products[1]
	if conditioner.ImageURL != placeholderImageURL {
		t.Fatalf("expected placeholder image for empty cell, got %q", conditioner.ImageURL)
	}
	if !conditioner.Price.Equal(decimal.RequireFromString("59.90")) {
		t.Fatalf("expected comma decimal to parse, got %s", conditioner.Price)
	}

	cream := products[2]
	if cream.Category != "Uncategorized" {
		t.Fatalf("expected default category, got %q", cream.Category)
	}
	if !cream.Price.Equal(decimal.RequireFromString("89.90")) {
		t.Fatalf("expected currency prefix to be stripped, got %s", cream.Price)
	}
}

func TestParseCSV_SkipsMalformedRows(t *testing.T) {
	sheet := "Nome,Preco,Marca,opiniao_consulta\n" +
		"Produto A,10.00,Marca A,OK\n" +
		"linha,quebrada\n" +
		"Produto B,20.00,Marca B,OK\n"
	products, err := ParseCSV(strings.NewReader(sheet))
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected malformed row to be skipped, got %d products", len(products))
	}
}

func TestParseCSV_EmptyInput(t *testing.T) {
	products, err := ParseCSV(strings.NewReader(""))
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(products) != 0 {
		t.Fatalf("expected empty catalog, got %d", len(products))
	}
}

func TestParseCSV_EnglishHeaders(t *testing.T) {
	sheet := "name,description,price,imageUrl,category,opinion,url,brand,opiniao_consulta\n" +
		"Face Cream,Moisturizer,15.50,https://img.example.com/a.jpg,Skin,Great,https://shop.example.com/a,Brand X,OK\n"
	products, err := ParseCSV(strings.NewReader(sheet))
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("expected one product, got %d", len(products))
	}
	product := products[0]
	if product.Name != "Face Cream" || product.Brand != "Brand X" || product.Link != "https://shop.example.com/a" {
		t.Fatalf("expected english aliases to map, got %+v", product)
	}
}

package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseCSV decodes the published catalog sheet. Header names are matched
// case-insensitively against the Portuguese and English aliases the sheet has
// used over time. Rows whose consult-opinion column reads NA are excluded
// from the catalog entirely.
func ParseCSV(reader io.Reader) ([]Product, error) {
	if reader == nil {
		return nil, fmt.Errorf("catalog: csv reader is required")
	}
	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	header, err := csvReader.Read()
	if err == io.EOF {
		return []Product{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: read csv header: %w", err)
	}
	columns := indexColumns(header)

	var products []Product
	for rowNumber := 1; ; rowNumber++ {
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed rows are skipped, matching the tolerant sheet import.
			continue
		}
		if len(row) != len(header) {
			continue
		}

		product := Product{
			ID:             parseRowID(columns.value(row, "id"), rowNumber),
			Name:           columns.value(row, "name"),
			Description:    columns.value(row, "description"),
			Price:          parsePrice(columns.value(row, "price")),
			ImageURL:       columns.value(row, "image"),
			Category:       columns.value(row, "category"),
			Opinion:        columns.value(row, "opinion"),
			Link:           columns.value(row, "link"),
			Brand:          columns.value(row, "brand"),
			ConsultOpinion: columns.value(row, "consult_opinion"),
		}
		if product.ImageURL == "" {
			product.ImageURL = placeholderImageURL
		}
		if product.Category == "" {
			product.Category = "Uncategorized"
		}
		if strings.EqualFold(strings.TrimSpace(product.ConsultOpinion), "NA") {
			continue
		}
		products = append(products, product)
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

var columnAliases = map[string][]string{
	"id":              {"id"},
	"name":            {"nome", "name"},
	"description":     {"description", "descricao"},
	"price":           {"price", "preco"},
	"image":           {"imagem", "imageurl"},
	"category":        {"category", "categoria"},
	"opinion":         {"opiniao", "opinion"},
	"link":            {"link", "url"},
	"brand":           {"marca", "brand"},
	"consult_opinion": {"opiniao_consulta"},
}

type columnIndex map[string]int

func indexColumns(header []string) columnIndex {
	positions := map[string]int{}
	for i, name := range header {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if _, exists := positions[normalized]; !exists {
			positions[normalized] = i
		}
	}

	index := columnIndex{}
	for field, aliases := range columnAliases {
		for _, alias := range aliases {
			if pos, ok := positions[alias]; ok {
				index[field] = pos
				break
			}
		}
	}
	return index
}

func (c columnIndex) value(row []string, field string) string {
	pos, ok := c[field]
	if !ok || pos < 0 || pos >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[pos])
}

func parseRowID(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parsePrice(value string) decimal.Decimal {
	value = strings.TrimSpace(value)
	value = strings.TrimSpace(strings.TrimPrefix(value, "R$"))
	if value == "" {
		return decimal.Zero
	}
	if strings.Contains(value, ",") && !strings.Contains(value, ".") {
		value = strings.ReplaceAll(value, ",", ".")
	}
	price, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return price
}

package catalog

import (
	"github.com/shopspring/decimal"
)

const placeholderImageURL = "https://via.placeholder.com/150"

// Product is one row of the published catalog sheet.
type Product struct {
	ID             int             `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Price          decimal.Decimal `json:"price"`
	ImageURL       string          `json:"imageUrl"`
	Category       string          `json:"category"`
	Opinion        string          `json:"opiniao"`
	Link           string          `json:"link"`
	Brand          string          `json:"marca"`
	ConsultOpinion string          `json:"opiniao_consulta"`
}

// SearchQuery filters the catalog. Text matches any word against name or
// brand; Brand and Category are exact matches when set.
type SearchQuery struct {
	Text     string
	Brand    string
	Category string
}

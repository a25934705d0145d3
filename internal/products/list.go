package products

import (
	"strings"

	"github.com/shopspring/decimal"
)

// SortOrder selects the browse ordering.
type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortPriceAsc  SortOrder = "price-asc"
	SortPriceDesc SortOrder = "price-desc"
)

// ParseSortOrder maps the query value to a sort order; blank means newest.
func ParseSortOrder(raw string) (SortOrder, bool) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SortNewest:
		return SortNewest, true
	case SortPriceAsc:
		return SortPriceAsc, true
	case SortPriceDesc:
		return SortPriceDesc, true
	default:
		return "", false
	}
}

// categoryAll disables the category filter.
const categoryAll = "all"

// ListFilter describes the supported filter knobs for the browse endpoint.
type ListFilter struct {
	Category string
	Query    string
	MaxPrice *decimal.Decimal
	Colors   []string
	Sort     SortOrder
}

func (f ListFilter) category() string {
	c := strings.ToLower(strings.TrimSpace(f.Category))
	if c == categoryAll {
		return ""
	}
	return c
}

func (f ListFilter) colors() []string {
	out := make([]string, 0, len(f.Colors))
	for _, c := range f.Colors {
		if trimmed := strings.ToLower(strings.TrimSpace(c)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

package types

import "github.com/shopspring/decimal"

// LineItem is a product snapshot plus the buyer's choices. Carts, checkout
// intents, and orders all carry the same shape.
type LineItem struct {
	CartItemID   string          `json:"cartItemId"`
	ProductID    string          `json:"productId"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Category     string          `json:"category"`
	Color        string          `json:"color"`
	Sizes        []string        `json:"sizes"`
	ImageURL     string          `json:"imageUrl"`
	Images       []string        `json:"images"`
	Description  string          `json:"description"`
	AIHint       string          `json:"aiHint,omitempty"`
	Quantity     int             `json:"quantity"`
	SelectedSize string          `json:"selectedSize"`
}

// LineTotal is price times quantity.
func (l LineItem) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Clone returns a deep copy; slices are not shared with the receiver.
func (l LineItem) Clone() LineItem {
	out := l
	out.Sizes = append([]string(nil), l.Sizes...)
	out.Images = append([]string(nil), l.Images...)
	return out
}

// CloneLineItems deep-copies a slice of line items.
func CloneLineItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

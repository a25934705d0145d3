package helpers

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Rates are the configured shipping fee and tax fraction.
type Rates struct {
	Shipping decimal.Decimal
	TaxRate  decimal.Decimal
}

// ComputeTotals prices a set of lines. Shipping is only charged on a
// non-empty order and taxes are rounded to two places.
func ComputeTotals(items []types.LineItem, rates Rates) orders.Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	shipping := decimal.Zero
	if subtotal.IsPositive() {
		shipping = rates.Shipping
	}
	taxes := subtotal.Mul(rates.TaxRate).Round(2)
	return orders.Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Taxes:    taxes,
		Total:    subtotal.Add(shipping).Add(taxes),
	}
}

// ToMinor converts an amount to the currency's minor unit for gateways.
func ToMinor(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// View is the cart as returned to clients, with derived totals.
type View struct {
	Items     []types.LineItem `json:"items"`
	Count     int              `json:"count"`
	Subtotal  decimal.Decimal  `json:"subtotal"`
	UpdatedAt *time.Time       `json:"updatedAt,omitempty"`
}

func viewOf(c *Cart) *View {
	v := &View{
		Items:    types.CloneLineItems(c.Items),
		Count:    c.Count(),
		Subtotal: c.Subtotal(),
	}
	if v.Items == nil {
		v.Items = []types.LineItem{}
	}
	if !c.UpdatedAt.IsZero() {
		at := c.UpdatedAt
		v.UpdatedAt = &at
	}
	return v
}

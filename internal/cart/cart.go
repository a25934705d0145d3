package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Cart is one owner's ordered list of line items. Count and Subtotal are
// derived on every call and never stored.
type Cart struct {
	OwnerID   uuid.UUID        `json:"ownerId"`
	Items     []types.LineItem `json:"items"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// New returns an empty cart for owner.
func New(owner uuid.UUID) *Cart {
	return &Cart{OwnerID: owner, Items: []types.LineItem{}}
}

// Add puts one unit of product in the given size. An existing line for the
// same (product, size) is incremented; otherwise a line with quantity 1 is
// appended under newID. An empty size changes nothing and reports false.
func (c *Cart) Add(product *models.Product, size string, newID func() string) bool {
	if product == nil || size == "" {
		return false
	}
	productID := product.ID.String()
	if i := c.indexOfPair(productID, size, ""); i >= 0 {
		c.Items[i].Quantity++
		return true
	}
	c.Items = append(c.Items, types.LineItem{
		CartItemID:   newID(),
		ProductID:    productID,
		Name:         product.Name,
		Price:        product.Price,
		Category:     product.Category,
		Color:        product.Color,
		Sizes:        append([]string(nil), product.Sizes...),
		ImageURL:     product.ImageURL,
		Images:       append([]string(nil), product.Images...),
		Description:  product.Description,
		AIHint:       product.AIHint,
		Quantity:     1,
		SelectedSize: size,
	})
	return true
}

// UpdateQuantity sets the line quantity in place; n < 1 removes the line.
// It reports whether the line existed.
func (c *Cart) UpdateQuantity(cartItemID string, n int) bool {
	i := c.indexOf(cartItemID)
	if i < 0 {
		return false
	}
	if n < 1 {
		c.removeAt(i)
		return true
	}
	c.Items[i].Quantity = n
	return true
}

// UpdateSize moves a line to another size. When a different line already
// holds (product, newSize) the two merge: the existing line keeps its id and
// position and absorbs the moved quantity. It reports whether the line existed.
func (c *Cart) UpdateSize(cartItemID, newSize string) bool {
	i := c.indexOf(cartItemID)
	if i < 0 {
		return false
	}
	if newSize == "" || c.Items[i].SelectedSize == newSize {
		return true
	}
	if j := c.indexOfPair(c.Items[i].ProductID, newSize, cartItemID); j >= 0 {
		c.Items[j].Quantity += c.Items[i].Quantity
		c.removeAt(i)
		return true
	}
	c.Items[i].SelectedSize = newSize
	return true
}

// Remove drops the line if present. Removing a missing line is a no-op.
func (c *Cart) Remove(cartItemID string) {
	if i := c.indexOf(cartItemID); i >= 0 {
		c.removeAt(i)
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = []types.LineItem{}
}

// Find returns the line with cartItemID.
func (c *Cart) Find(cartItemID string) (types.LineItem, bool) {
	if i := c.indexOf(cartItemID); i >= 0 {
		return c.Items[i], true
	}
	return types.LineItem{}, false
}

// Count is the sum of quantities.
func (c *Cart) Count() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// Subtotal is the sum of price times quantity.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) indexOf(cartItemID string) int {
	for i, item := range c.Items {
		if item.CartItemID == cartItemID {
			return i
		}
	}
	return -1
}

func (c *Cart) indexOfPair(productID, size, skipID string) int {
	for i, item := range c.Items {
		if item.CartItemID == skipID {
			continue
		}
		if item.ProductID == productID && item.SelectedSize == size {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}

package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Totals are computed before an order is created and stored verbatim.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Taxes    decimal.Decimal `json:"taxes"`
	Total    decimal.Decimal `json:"total"`
}

// CreateOrderInput is the snapshot handed to AddOrder by checkout.
type CreateOrderInput struct {
	UserID           uuid.UUID
	Items            []types.LineItem
	ShippingAddress  types.Address
	PaymentMethod    enums.PaymentMethod
	Totals           Totals
	Currency         string
	PaymentReference *string
}

// OrderDTO is the transport shape of an order.
type OrderDTO struct {
	ID               uuid.UUID           `json:"id"`
	UserID           uuid.UUID           `json:"userId"`
	Date             time.Time           `json:"date"`
	Status           enums.OrderStatus   `json:"status"`
	Subtotal         decimal.Decimal     `json:"subtotal"`
	Shipping         decimal.Decimal     `json:"shipping"`
	Taxes            decimal.Decimal     `json:"taxes"`
	Total            decimal.Decimal     `json:"total"`
	Currency         string              `json:"currency"`
	Items            []types.LineItem    `json:"items"`
	ShippingAddress  types.Address       `json:"shippingAddress"`
	PaymentMethod    enums.PaymentMethod `json:"paymentMethod"`
	PaymentReference *string             `json:"paymentReference,omitempty"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

func FromModel(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}
	return &OrderDTO{
		ID:               o.ID,
		UserID:           o.UserID,
		Date:             o.CreatedAt,
		Status:           o.Status,
		Subtotal:         o.Subtotal,
		Shipping:         o.Shipping,
		Taxes:            o.Taxes,
		Total:            o.Total,
		Currency:         o.Currency,
		Items:            types.CloneLineItems(o.Items),
		ShippingAddress:  o.ShippingAddress.Clone(),
		PaymentMethod:    o.PaymentMethod,
		PaymentReference: o.PaymentReference,
		UpdatedAt:        o.UpdatedAt,
	}
}

func fromModels(rows []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}

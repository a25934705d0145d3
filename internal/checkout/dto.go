package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Input is what the buyer submits on the checkout page. Exactly one of
// AddressID and NewAddress is expected.
type Input struct {
	AddressID      *uuid.UUID     `json:"addressId,omitempty"`
	NewAddress     *address.Input `json:"newAddress,omitempty"`
	PaymentMethod  string         `json:"paymentMethod"`
	CardSourceID   string         `json:"cardSourceId,omitempty"`
	CustomerEmail  string         `json:"-"`
	IdempotencyKey string         `json:"-"`
}

// Result reports the outcome of a checkout. Immediate payment methods carry an
// order id; hosted payment carries an intent and the page to send the buyer to.
type Result struct {
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	OrderID       *uuid.UUID          `json:"orderId,omitempty"`
	IntentID      *uuid.UUID          `json:"intentId,omitempty"`
	RedirectURL   string              `json:"redirectUrl,omitempty"`
	Replayed      bool                `json:"replayed,omitempty"`
}

// CancelResult is returned when the buyer abandons a hosted payment.
type CancelResult struct {
	Cancelled bool   `json:"cancelled"`
	Message   string `json:"message"`
}

// Quote is the checkout summary for the current cart.
type Quote struct {
	Items    []types.LineItem `json:"items"`
	Subtotal decimal.Decimal  `json:"subtotal"`
	Shipping decimal.Decimal  `json:"shipping"`
	Taxes    decimal.Decimal  `json:"taxes"`
	Total    decimal.Decimal  `json:"total"`
	Currency string           `json:"currency"`
}

const cancelledMessage = "Payment was cancelled. Your cart has been kept so you can try again."

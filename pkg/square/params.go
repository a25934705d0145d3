package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
)

const paymentStatusCompleted = "COMPLETED"

// PaymentCreateParams encapsulates the inputs for a Square card payment.
// AmountMinor is in the currency's minor unit (paise for INR).
type PaymentCreateParams struct {
	AmountMinor    int64
	Currency       string
	LocationID     string
	SourceID       string
	IdempotencyKey string
	Note           string
	ReferenceID    string
	BuyerEmail     string
}

func (p PaymentCreateParams) toSquareRequest(idempotencyKey string) *sq.CreatePaymentRequest {
	req := &sq.CreatePaymentRequest{
		IdempotencyKey: idempotencyKey,
		LocationID:     ptrString(p.LocationID),
		SourceID:       p.SourceID,
		Autocomplete:   boolPtr(true),
	}
	if p.AmountMinor > 0 {
		req.AmountMoney = moneyPtr(p.AmountMinor, p.Currency)
	}
	if trimmed := strings.TrimSpace(p.Note); trimmed != "" {
		req.Note = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		req.ReferenceID = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.BuyerEmail); trimmed != "" {
		req.BuyerEmailAddress = ptrString(trimmed)
	}
	return req
}

// Charge is the subset of a Square payment the checkout flow records.
type Charge struct {
	ID          string
	Status      string
	AmountMinor int64
	Currency    string
	ReceiptURL  string
}

// Succeeded reports whether the payment captured funds.
func (c *Charge) Succeeded() bool {
	return c != nil && strings.EqualFold(c.Status, paymentStatusCompleted)
}

func chargeFromPayment(payment *sq.Payment) *Charge {
	if payment == nil {
		return &Charge{}
	}
	charge := &Charge{
		ID:         stringValue(payment.GetID()),
		Status:     stringValue(payment.GetStatus()),
		ReceiptURL: stringValue(payment.GetReceiptURL()),
	}
	if money := payment.GetAmountMoney(); money != nil {
		if money.Amount != nil {
			charge.AmountMinor = *money.Amount
		}
		if money.Currency != nil {
			charge.Currency = string(*money.Currency)
		}
	}
	return charge
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func boolPtr(value bool) *bool {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "INR"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}

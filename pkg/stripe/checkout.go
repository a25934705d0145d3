package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/webhook"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// MetadataIntentKey carries the checkout intent id through a hosted session.
const MetadataIntentKey = "checkout_intent_id"

// Stripe accepts expires_at between 30 minutes and 24 hours after creation.
// The floor carries a minute of slack for clock drift.
const (
	minSessionLifetime = 31 * time.Minute
	maxSessionLifetime = 24 * time.Hour
)

// LineItem is one priced row on a hosted checkout page.
type LineItem struct {
	Name            string
	UnitAmountMinor int64
	Quantity        int64
	ImageURL        string
}

// CheckoutSessionInput describes a hosted payment page.
type CheckoutSessionInput struct {
	ClientReferenceID string
	CustomerEmail     string
	Currency          string
	SuccessURL        string
	CancelURL         string
	IdempotencyKey    string
	LineItems         []LineItem
	Metadata          map[string]string
	// ExpiresAt closes the session for payment. Zero leaves Stripe's 24h default.
	ExpiresAt time.Time
}

// CheckoutSession is the subset of a Stripe checkout session the storefront reads.
type CheckoutSession struct {
	ID                string
	URL               string
	PaymentStatus     string
	PaymentIntentID   string
	ClientReferenceID string
	AmountTotal       int64
	Metadata          map[string]string
}

// Paid reports whether funds were captured for the session.
func (s *CheckoutSession) Paid() bool {
	return s != nil && s.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid)
}

// ToMinor converts a decimal amount to the currency's minor unit.
func ToMinor(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// CreateCheckoutSession opens a payment-mode hosted checkout.
func (c *Client) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSession, error) {
	if c == nil || c.api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe client not configured")
	}
	params, err := buildSessionParams(in, time.Now())
	if err != nil {
		return nil, err
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return nil, mapStripeError(err, "create checkout session")
	}
	return fromStripeSession(sess), nil
}

// ExpireCheckoutSession closes an open hosted session so it can no longer be paid.
func (c *Client) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	if c == nil || c.api == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "stripe client not configured")
	}
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := session.Expire(sessionID, params); err != nil {
		return mapStripeError(err, "expire checkout session")
	}
	return nil
}

// ConstructEvent verifies a webhook payload against the signing secret.
func (c *Client) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if c == nil {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeDependency, "stripe client not configured")
	}
	event, err := webhook.ConstructEvent(payload, sigHeader, c.signingSecret)
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "verify stripe signature")
	}
	return event, nil
}

// CheckoutSessionFromEvent decodes the session carried by checkout.session.* events.
func CheckoutSessionFromEvent(event *stripe.Event) (*CheckoutSession, error) {
	if event == nil || event.Data == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}
	return fromStripeSession(&sess), nil
}

func buildSessionParams(in CheckoutSessionInput, now time.Time) (*stripe.CheckoutSessionParams, error) {
	if len(in.LineItems) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session requires line items")
	}
	if strings.TrimSpace(in.SuccessURL) == "" || strings.TrimSpace(in.CancelURL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "success and cancel urls are required")
	}
	currency := strings.ToLower(strings.TrimSpace(in.Currency))
	if currency == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "currency is required")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
	}
	if ref := strings.TrimSpace(in.ClientReferenceID); ref != "" {
		params.ClientReferenceID = stripe.String(ref)
	}
	if email := strings.TrimSpace(in.CustomerEmail); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if !in.ExpiresAt.IsZero() {
		params.ExpiresAt = stripe.Int64(sessionExpiry(in.ExpiresAt, now).Unix())
	}

	for i, item := range in.LineItems {
		if item.Quantity <= 0 || item.UnitAmountMinor < 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "line item %d has invalid amount or quantity", i)
		}
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if img := strings.TrimSpace(item.ImageURL); strings.HasPrefix(img, "https://") {
			product.Images = []*string{stripe.String(img)}
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(item.UnitAmountMinor),
				ProductData: product,
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	return params, nil
}

func sessionExpiry(at, now time.Time) time.Time {
	if floor := now.Add(minSessionLifetime); at.Before(floor) {
		return floor
	}
	if ceiling := now.Add(maxSessionLifetime); at.After(ceiling) {
		return ceiling
	}
	return at
}

func fromStripeSession(sess *stripe.CheckoutSession) *CheckoutSession {
	if sess == nil {
		return nil
	}
	out := &CheckoutSession{
		ID:                sess.ID,
		URL:               sess.URL,
		PaymentStatus:     string(sess.PaymentStatus),
		ClientReferenceID: sess.ClientReferenceID,
		AmountTotal:       sess.AmountTotal,
		Metadata:          sess.Metadata,
	}
	if sess.PaymentIntent != nil {
		out.PaymentIntentID = sess.PaymentIntent.ID
	}
	return out
}

func mapStripeError(err error, op string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		code := pkgerrors.CodeDependency
		switch stripeErr.Type {
		case stripe.ErrorTypeCard:
			code = pkgerrors.CodePayment
		case stripe.ErrorTypeInvalidRequest:
			code = pkgerrors.CodeValidation
		}
		if stripeErr.HTTPStatusCode == http.StatusTooManyRequests {
			code = pkgerrors.CodeRateLimit
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("stripe %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("stripe %s failed", op))
}

package stripe

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestToMinor(t *testing.T) {
	assert.Equal(t, int64(34500), ToMinor(decimal.RequireFromString("345.00")))
	assert.Equal(t, int64(1999), ToMinor(decimal.RequireFromString("19.99")))
	assert.Equal(t, int64(1), ToMinor(decimal.RequireFromString("0.005")))
}

func TestBuildSessionParams(t *testing.T) {
	params, err := buildSessionParams(CheckoutSessionInput{
		ClientReferenceID: "intent-1",
		CustomerEmail:     "ada@example.com",
		Currency:          "INR",
		SuccessURL:        "https://shop.test/ok",
		CancelURL:         "https://shop.test/cancel",
		LineItems: []LineItem{
			{Name: "Tee", UnitAmountMinor: 2500, Quantity: 2, ImageURL: "https://cdn.test/tee.png"},
			{Name: "Shipping", UnitAmountMinor: 500, Quantity: 1, ImageURL: "/local.png"},
		},
		Metadata: map[string]string{MetadataIntentKey: "intent-1"},
	}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, string(stripe.CheckoutSessionModePayment), *params.Mode)
	assert.Equal(t, "intent-1", *params.ClientReferenceID)
	assert.Equal(t, "ada@example.com", *params.CustomerEmail)
	require.Len(t, params.LineItems, 2)
	first := params.LineItems[0]
	assert.Equal(t, "inr", *first.PriceData.Currency)
	assert.Equal(t, int64(2500), *first.PriceData.UnitAmount)
	assert.Equal(t, int64(2), *first.Quantity)
	assert.Len(t, first.PriceData.ProductData.Images, 1)
	assert.Empty(t, params.LineItems[1].PriceData.ProductData.Images)
	assert.Equal(t, "intent-1", params.Metadata[MetadataIntentKey])
	assert.Nil(t, params.ExpiresAt, "zero expiry keeps the gateway default")
}

func TestBuildSessionParamsExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := CheckoutSessionInput{
		Currency:   "inr",
		SuccessURL: "https://shop.test/ok",
		CancelURL:  "https://shop.test/cancel",
		LineItems:  []LineItem{{Name: "Tee", UnitAmountMinor: 100, Quantity: 1}},
		ExpiresAt:  now.Add(time.Hour),
	}
	params, err := buildSessionParams(in, now)
	require.NoError(t, err)
	require.NotNil(t, params.ExpiresAt)
	assert.Equal(t, now.Add(time.Hour).Unix(), *params.ExpiresAt)

	in.ExpiresAt = now.Add(5 * time.Minute)
	params, err = buildSessionParams(in, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(minSessionLifetime).Unix(), *params.ExpiresAt)

	in.ExpiresAt = now.Add(72 * time.Hour)
	params, err = buildSessionParams(in, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(maxSessionLifetime).Unix(), *params.ExpiresAt)
}

func TestBuildSessionParamsValidation(t *testing.T) {
	base := CheckoutSessionInput{
		Currency:   "inr",
		SuccessURL: "https://shop.test/ok",
		CancelURL:  "https://shop.test/cancel",
		LineItems:  []LineItem{{Name: "Tee", UnitAmountMinor: 100, Quantity: 1}},
	}

	noItems := base
	noItems.LineItems = nil
	_, err := buildSessionParams(noItems, time.Now())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	noURL := base
	noURL.CancelURL = ""
	_, err = buildSessionParams(noURL, time.Now())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	badQty := base
	badQty.LineItems = []LineItem{{Name: "Tee", UnitAmountMinor: 100, Quantity: 0}}
	_, err = buildSessionParams(badQty, time.Now())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCheckoutSessionFromEvent(t *testing.T) {
	raw, err := json.Marshal(map[string]any{
		"id":                  "cs_test_1",
		"object":              "checkout.session",
		"payment_status":      "paid",
		"client_reference_id": "intent-1",
		"amount_total":        34500,
		"metadata":            map[string]string{MetadataIntentKey: "intent-1"},
	})
	require.NoError(t, err)

	sess, err := CheckoutSessionFromEvent(&stripe.Event{
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: raw},
	})
	require.NoError(t, err)
	assert.True(t, sess.Paid())
	assert.Equal(t, "cs_test_1", sess.ID)
	assert.Equal(t, "intent-1", sess.ClientReferenceID)
	assert.Equal(t, int64(34500), sess.AmountTotal)
	assert.Equal(t, "intent-1", sess.Metadata[MetadataIntentKey])

	_, err = CheckoutSessionFromEvent(&stripe.Event{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMapStripeError(t *testing.T) {
	cardErr := &stripe.Error{Type: stripe.ErrorTypeCard, HTTPStatusCode: 402}
	assert.True(t, pkgerrors.IsCode(mapStripeError(cardErr, "op"), pkgerrors.CodePayment))

	limited := &stripe.Error{Type: stripe.ErrorTypeAPI, HTTPStatusCode: 429}
	assert.True(t, pkgerrors.IsCode(mapStripeError(limited, "op"), pkgerrors.CodeRateLimit))

	assert.True(t, pkgerrors.IsCode(mapStripeError(errors.New("dial tcp"), "op"), pkgerrors.CodeDependency))
}

func TestCredentialsFrom(t *testing.T) {
	creds, err := credentialsFrom(config.StripeConfig{APIKey: " sk_test_abc ", Secret: "whsec_abc"})
	require.NoError(t, err)
	assert.Equal(t, "test", creds.mode)
	assert.Equal(t, "sk_test_abc", creds.apiKey)

	_, err = credentialsFrom(config.StripeConfig{APIKey: "rk_live_abc", Secret: "whsec_abc", Env: "LIVE"})
	assert.NoError(t, err)

	_, err = credentialsFrom(config.StripeConfig{APIKey: "sk_live_abc", Secret: "whsec_abc"})
	assert.ErrorContains(t, err, "test mode needs")

	_, err = credentialsFrom(config.StripeConfig{APIKey: "sk_test_abc", Secret: "whsec_abc", Env: "staging"})
	assert.ErrorContains(t, err, "test or live")

	_, err = credentialsFrom(config.StripeConfig{})
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2, "missing key and secret are reported together")

	_, err = credentialsFrom(config.StripeConfig{APIKey: "sk_test_abc", Secret: "secret"})
	assert.ErrorContains(t, err, "whsec_")
}

func TestNilClientIsNotConfigured(t *testing.T) {
	var c *Client
	_, err := c.ConstructEvent([]byte("{}"), "sig")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Equal(t, "", c.Mode())
}

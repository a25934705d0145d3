package checkout

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type fixture struct {
	svc     Service
	kv      *fakeKV
	carts   *stubCart
	addrs   *stubAddressBook
	orders  *stubOrders
	hosted  *stubHosted
	card    *stubCard
	metrics outcomeCounter
	userID  uuid.UUID
	homeID  uuid.UUID
	shirt   models.Product
	belt    models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		kv:      newFakeKV(),
		carts:   &stubCart{carts: map[uuid.UUID]*cart.Cart{}},
		addrs:   newStubAddressBook(),
		orders:  &stubOrders{},
		hosted:  &stubHosted{},
		card:    &stubCard{status: "COMPLETED"},
		metrics: outcomeCounter{},
		userID:  uuid.New(),
	}
	f.shirt = models.Product{ID: uuid.New(), Name: "Linen Shirt", Price: decimal.RequireFromString("100.00"), Sizes: []string{"S", "M"}, ImageURL: "https://cdn.example.com/shirt.jpg"}
	f.belt = models.Product{ID: uuid.New(), Name: "Belt", Price: decimal.RequireFromString("50.00"), Sizes: []string{"One Size"}}
	f.homeID = f.addrs.add(f.userID, types.Address{Name: "Ada", AddressLine1: "12 Analytical Row", City: "Pune", State: "MH", Zip: "411001", Country: "IN"})

	c := cart.New(f.userID)
	// Client-held prices are deliberately wrong; checkout must ignore them.
	c.Items = []types.LineItem{
		{CartItemID: "item-1", ProductID: f.shirt.ID.String(), Name: "Linen Shirt", Price: decimal.RequireFromString("1.00"), Quantity: 2, SelectedSize: "M"},
		{CartItemID: "item-2", ProductID: f.belt.ID.String(), Name: "Belt", Price: decimal.RequireFromString("1.00"), Quantity: 1, SelectedSize: "One Size"},
	}
	f.carts.carts[f.userID] = c

	intents, err := NewIntentStore(f.kv, time.Hour)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Config: config.CheckoutConfig{
			ShippingFlat: "50",
			TaxRate:      "0.18",
			Currency:     "INR",
			SuccessURL:   "https://shop.example.com/orders?checkout=success",
			CancelURL:    "https://shop.example.com/checkout",
		},
		Flags:   config.FeatureFlagsConfig{HostedPayment: true, CardPayment: true},
		Cart:    f.carts,
		Catalog: stubCatalog{f.shirt.ID: f.shirt, f.belt.ID: f.belt},
		Address: f.addrs,
		Orders:  f.orders,
		Intents: intents,
		Hosted:  f.hosted,
		Card:    f.card,
		Metrics: f.metrics,
		Logger:  logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard}),
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) input(method string) Input {
	return Input{AddressID: &f.homeID, PaymentMethod: method}
}

func requireMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestQuoteRepricesFromCatalog(t *testing.T) {
	f := newFixture(t)
	q, err := f.svc.Quote(context.Background(), f.userID)
	require.NoError(t, err)

	requireMoney(t, "250", q.Subtotal)
	requireMoney(t, "50", q.Shipping)
	requireMoney(t, "45", q.Taxes)
	requireMoney(t, "345", q.Total)
	assert.Equal(t, "INR", q.Currency)
	require.Len(t, q.Items, 2)
	requireMoney(t, "100", q.Items[0].Price)
}

func TestQuoteEmptyCart(t *testing.T) {
	f := newFixture(t)
	q, err := f.svc.Quote(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, q.Items)
	assert.True(t, q.Total.IsZero())
}

func TestCheckoutCashOnDelivery(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Checkout(context.Background(), f.userID, f.input("cod"))
	require.NoError(t, err)
	require.NotNil(t, res.OrderID)
	assert.Equal(t, enums.PaymentMethodCOD, res.PaymentMethod)

	require.Len(t, f.orders.created, 1)
	created := f.orders.created[0]
	assert.Equal(t, f.userID, created.UserID)
	assert.Equal(t, "Pune", created.ShippingAddress.City)
	requireMoney(t, "345", created.Totals.Total)
	assert.Nil(t, created.PaymentReference)
	assert.Equal(t, []uuid.UUID{f.userID}, f.carts.cleared)
	assert.Equal(t, 1, f.metrics["cod/placed"])
}

func TestCheckoutRejectsEmptyCartAndMissingAddress(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Checkout(context.Background(), uuid.New(), Input{PaymentMethod: "cod"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Checkout(context.Background(), f.userID, Input{PaymentMethod: "cod"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	other := uuid.New()
	foreign := f.addrs.add(other, types.Address{Name: "Someone Else"})
	_, err = f.svc.Checkout(context.Background(), f.userID, Input{AddressID: &foreign, PaymentMethod: "cod"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	assert.Empty(t, f.orders.created)
	assert.Empty(t, f.carts.cleared)
}

func TestCheckoutSavesNewAddress(t *testing.T) {
	f := newFixture(t)
	in := Input{
		PaymentMethod: "cod",
		NewAddress: &address.Input{
			Name:         "Grace",
			AddressLine1: "1 Compiler Way",
			City:         "Mumbai",
			State:        "MH",
			Zip:          "400001",
			Country:      "IN",
		},
	}
	_, err := f.svc.Checkout(context.Background(), f.userID, in)
	require.NoError(t, err)
	assert.Equal(t, 1, f.addrs.added)
	assert.Equal(t, "Mumbai", f.orders.created[0].ShippingAddress.City)
}

func TestCheckoutRejectsStaleCart(t *testing.T) {
	f := newFixture(t)
	f.carts.carts[f.userID].Items[1].ProductID = uuid.NewString()

	_, err := f.svc.Checkout(context.Background(), f.userID, f.input("cod"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details := pkgerrors.As(err).Details().(map[string]string)
	assert.Contains(t, details, "item-2")
	assert.Empty(t, f.orders.created)
}

func TestCheckoutUnknownPaymentMethod(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Checkout(context.Background(), f.userID, f.input("barter"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestHostedPaymentLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Checkout(ctx, f.userID, f.input("online"))
	require.NoError(t, err)
	require.NotNil(t, res.IntentID)
	assert.Nil(t, res.OrderID)
	assert.Contains(t, res.RedirectURL, "cs_test_1")
	assert.Empty(t, f.orders.created, "no order before payment")
	assert.Empty(t, f.carts.cleared)

	require.Len(t, f.hosted.inputs, 1)
	session := f.hosted.inputs[0]
	assert.Equal(t, res.IntentID.String(), session.Metadata[stripe.MetadataIntentKey])
	assert.Contains(t, session.CancelURL, "intent="+res.IntentID.String())
	var minor int64
	for _, line := range session.LineItems {
		minor += line.UnitAmountMinor * line.Quantity
	}
	assert.Equal(t, int64(34500), minor)

	done, err := f.svc.CompleteHostedPayment(ctx, *res.IntentID, "cs_test_1")
	require.NoError(t, err)
	require.NotNil(t, done.OrderID)
	require.Len(t, f.orders.created, 1)
	require.NotNil(t, f.orders.created[0].PaymentReference)
	assert.Equal(t, "cs_test_1", *f.orders.created[0].PaymentReference)
	assert.Equal(t, enums.PaymentMethodOnline, f.orders.created[0].PaymentMethod)
	assert.Equal(t, []uuid.UUID{f.userID}, f.carts.cleared)

	replay, err := f.svc.CompleteHostedPayment(ctx, *res.IntentID, "cs_test_1")
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	require.NotNil(t, replay.OrderID)
	assert.Equal(t, *done.OrderID, *replay.OrderID)
	assert.Len(t, f.orders.created, 1)
	assert.Equal(t, 1, f.metrics["online/completed"])
}

func TestHostedPaymentCancelKeepsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Checkout(ctx, f.userID, f.input("online"))
	require.NoError(t, err)

	_, err = f.svc.CancelHostedPayment(ctx, uuid.New(), *res.IntentID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	cancelled, err := f.svc.CancelHostedPayment(ctx, f.userID, *res.IntentID)
	require.NoError(t, err)
	assert.True(t, cancelled.Cancelled)
	assert.NotEmpty(t, cancelled.Message)
	assert.Equal(t, []string{"cs_test_1"}, f.hosted.expired)
	assert.Empty(t, f.orders.created)
	assert.Empty(t, f.carts.cleared)
	assert.Len(t, f.carts.carts[f.userID].Items, 2)

	// A completion arriving after the cancel has nothing to turn into an order.
	_, err = f.svc.CompleteHostedPayment(ctx, *res.IntentID, "cs_test_1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Empty(t, f.orders.created)

	again, err := f.svc.CancelHostedPayment(ctx, f.userID, *res.IntentID)
	require.NoError(t, err)
	assert.True(t, again.Cancelled)
}

func TestHostedPaymentFailedOrderReleasesClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Checkout(ctx, f.userID, f.input("online"))
	require.NoError(t, err)

	f.orders.err = pkgerrors.New(pkgerrors.CodeDependency, "db down")
	_, err = f.svc.CompleteHostedPayment(ctx, *res.IntentID, "cs_test_1")
	require.Error(t, err)

	f.orders.err = nil
	done, err := f.svc.CompleteHostedPayment(ctx, *res.IntentID, "cs_test_1")
	require.NoError(t, err)
	assert.False(t, done.Replayed)
	assert.Len(t, f.orders.created, 1)
}

func TestHostedPaymentSessionClosesWithIntent(t *testing.T) {
	f := newFixture(t)
	started := time.Now()
	_, err := f.svc.Checkout(context.Background(), f.userID, f.input("online"))
	require.NoError(t, err)

	require.Len(t, f.hosted.inputs, 1)
	expiresAt := f.hosted.inputs[0].ExpiresAt
	require.False(t, expiresAt.IsZero(), "hosted session must close when the intent window does")
	assert.WithinDuration(t, started.Add(time.Hour), expiresAt, 5*time.Second)
}

func TestHostedPaymentLapsedIntentReleasesClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Checkout(ctx, f.userID, f.input("online"))
	require.NoError(t, err)

	// Redis evicted the intent before the gateway reported the payment.
	delete(f.kv.values, f.kv.CheckoutIntentKey(res.IntentID.String()))

	_, err = f.svc.CompleteHostedPayment(ctx, *res.IntentID, "cs_test_1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, held := f.kv.values[f.kv.CheckoutClaimKey(res.IntentID.String())]
	assert.False(t, held, "claim must be released when no intent was found")
	assert.Equal(t, 1, f.metrics["online/expired"])

	// The retry must surface the same failure rather than ack as a replay.
	retry, err := f.svc.CompleteHostedPayment(ctx, *res.IntentID, "cs_test_1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Nil(t, retry)
	assert.Zero(t, f.metrics["online/replayed"])
	assert.Empty(t, f.orders.created)
}

func TestHostedPaymentSessionMismatch(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Checkout(context.Background(), f.userID, f.input("online"))
	require.NoError(t, err)

	_, err = f.svc.CompleteHostedPayment(context.Background(), *res.IntentID, "cs_other")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, f.orders.created)
}

func TestCardPayment(t *testing.T) {
	f := newFixture(t)
	in := f.input("card")
	in.CardSourceID = "cnon:card-nonce-ok"

	res, err := f.svc.Checkout(context.Background(), f.userID, in)
	require.NoError(t, err)
	require.NotNil(t, res.OrderID)
	require.Len(t, f.card.params, 1)
	assert.Equal(t, int64(34500), f.card.params[0].AmountMinor)
	assert.Equal(t, "INR", f.card.params[0].Currency)
	require.Len(t, f.orders.created, 1)
	assert.Equal(t, "sq_pay_1", *f.orders.created[0].PaymentReference)
	assert.Equal(t, []uuid.UUID{f.userID}, f.carts.cleared)
}

func TestCardPaymentDeclinedKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.card.status = "FAILED"
	in := f.input("card")
	in.CardSourceID = "cnon:card-nonce-declined"

	_, err := f.svc.Checkout(context.Background(), f.userID, in)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePayment))
	assert.Empty(t, f.orders.created)
	assert.Empty(t, f.carts.cleared)
	assert.Equal(t, 1, f.metrics["card/declined"])
}

func TestCardPaymentRequiresSource(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Checkout(context.Background(), f.userID, f.input("card"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, f.card.params)
}

func TestDisabledGatewayIsUnavailable(t *testing.T) {
	f := newFixture(t)
	svc := f.svc.(*service)
	svc.flags.CardPayment = false
	in := f.input("card")
	in.CardSourceID = "cnon:card-nonce-ok"

	_, err := f.svc.Checkout(context.Background(), f.userID, in)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestExpireHostedPaymentDropsIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Checkout(ctx, f.userID, f.input("online"))
	require.NoError(t, err)

	require.NoError(t, f.svc.ExpireHostedPayment(ctx, *res.IntentID))
	_, ok := f.kv.values[f.kv.CheckoutIntentKey(res.IntentID.String())]
	assert.False(t, ok)
	assert.Empty(t, f.carts.cleared)
}

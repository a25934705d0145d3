package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout/helpers"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/square"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const (
	outcomePlaced    = "placed"
	outcomePending   = "pending"
	outcomeCompleted = "completed"
	outcomeDeclined  = "declined"
	outcomeFailed    = "failed"
	outcomeCancelled = "cancelled"
	outcomeExpired   = "expired"
	outcomeReplayed  = "replayed"

	// Square rejects longer idempotency keys.
	maxCardIdempotencyKey = 45
)

// Service turns a cart into an order.
type Service interface {
	Quote(ctx context.Context, userID uuid.UUID) (*Quote, error)
	Checkout(ctx context.Context, userID uuid.UUID, input Input) (*Result, error)
	CompleteHostedPayment(ctx context.Context, intentID uuid.UUID, sessionID string) (*Result, error)
	CancelHostedPayment(ctx context.Context, userID, intentID uuid.UUID) (*CancelResult, error)
	ExpireHostedPayment(ctx context.Context, intentID uuid.UUID) error
}

type cartAccess interface {
	Load(ctx context.Context, ownerID uuid.UUID) (*cart.Cart, error)
	ClearCart(ctx context.Context, ownerID uuid.UUID) error
}

type catalogReader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type addressBook interface {
	AddAddress(ctx context.Context, userID uuid.UUID, input address.Input) (uuid.UUID, error)
	Snapshot(ctx context.Context, userID, addressID uuid.UUID) (types.Address, error)
}

type orderWriter interface {
	AddOrder(ctx context.Context, input orders.CreateOrderInput) (uuid.UUID, error)
	FindByPaymentReference(ctx context.Context, reference string) (*orders.OrderDTO, error)
}

type hostedGateway interface {
	CreateCheckoutSession(ctx context.Context, in stripe.CheckoutSessionInput) (*stripe.CheckoutSession, error)
	ExpireCheckoutSession(ctx context.Context, sessionID string) error
}

type cardGateway interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*square.Charge, error)
}

type outcomeRecorder interface {
	IncCheckout(method, outcome string)
}

type ServiceParams struct {
	Config  config.CheckoutConfig
	Flags   config.FeatureFlagsConfig
	Cart    cartAccess
	Catalog catalogReader
	Address addressBook
	Orders  orderWriter
	Intents *IntentStore
	// Hosted and Card may be nil when the gateway is not configured.
	Hosted  hostedGateway
	Card    cardGateway
	Metrics outcomeRecorder
	Logger  *logger.Logger
	Now     func() time.Time
}

type service struct {
	cfg     config.CheckoutConfig
	flags   config.FeatureFlagsConfig
	cart    cartAccess
	catalog catalogReader
	address addressBook
	orders  orderWriter
	intents *IntentStore
	hosted  hostedGateway
	card    cardGateway
	metrics outcomeRecorder
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Cart == nil {
		return nil, errors.New("cart service required")
	}
	if params.Catalog == nil {
		return nil, errors.New("catalog reader required")
	}
	if params.Address == nil {
		return nil, errors.New("address book required")
	}
	if params.Orders == nil {
		return nil, errors.New("order service required")
	}
	if params.Intents == nil {
		return nil, errors.New("intent store required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	var metrics outcomeRecorder = noopRecorder{}
	if params.Metrics != nil {
		metrics = params.Metrics
	}
	return &service{
		cfg:     params.Config,
		flags:   params.Flags,
		cart:    params.Cart,
		catalog: params.Catalog,
		address: params.Address,
		orders:  params.Orders,
		intents: params.Intents,
		hosted:  params.Hosted,
		card:    params.Card,
		metrics: metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

type pricedCart struct {
	items  []types.LineItem
	totals orders.Totals
}

func (s *service) Quote(ctx context.Context, userID uuid.UUID) (*Quote, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	c, err := s.cart.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	priced := pricedCart{items: []types.LineItem{}, totals: helpers.ComputeTotals(nil, s.rates())}
	if !c.IsEmpty() {
		p, err := s.price(ctx, c)
		if err != nil {
			return nil, err
		}
		priced = *p
	}
	return &Quote{
		Items:    priced.items,
		Subtotal: priced.totals.Subtotal,
		Shipping: priced.totals.Shipping,
		Taxes:    priced.totals.Taxes,
		Total:    priced.totals.Total,
		Currency: s.cfg.CurrencyCode(),
	}, nil
}

func (s *service) Checkout(ctx context.Context, userID uuid.UUID, input Input) (*Result, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	method, err := enums.ParsePaymentMethod(input.PaymentMethod)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method").
			WithDetails(map[string]string{"paymentMethod": "must be one of cod, online, card"})
	}
	if err := s.methodAvailable(method); err != nil {
		return nil, err
	}
	if method == enums.PaymentMethodCard && strings.TrimSpace(input.CardSourceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "card details are required").
			WithDetails(map[string]string{"cardSourceId": "is required"})
	}

	c, err := s.cart.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	priced, err := s.price(ctx, c)
	if err != nil {
		s.metrics.IncCheckout(string(method), outcomeFailed)
		return nil, err
	}
	shipTo, err := s.resolveAddress(ctx, userID, input)
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"payment_method": string(method),
		"total":          priced.totals.Total.StringFixed(2),
	})
	switch method {
	case enums.PaymentMethodOnline:
		return s.startHostedPayment(ctx, userID, input, priced, shipTo)
	case enums.PaymentMethodCard:
		return s.chargeCard(ctx, userID, input, priced, shipTo)
	default:
		orderID, err := s.placeOrder(ctx, userID, enums.PaymentMethodCOD, priced.items, shipTo, priced.totals, nil)
		if err != nil {
			s.metrics.IncCheckout(string(method), outcomeFailed)
			return nil, err
		}
		s.metrics.IncCheckout(string(method), outcomePlaced)
		return &Result{PaymentMethod: enums.PaymentMethodCOD, OrderID: &orderID}, nil
	}
}

func (s *service) startHostedPayment(ctx context.Context, userID uuid.UUID, input Input, priced *pricedCart, shipTo types.Address) (*Result, error) {
	method := string(enums.PaymentMethodOnline)
	intent := &Intent{
		ID:              uuid.New(),
		UserID:          userID,
		Items:           types.CloneLineItems(priced.items),
		ShippingAddress: shipTo.Clone(),
		Totals:          priced.totals,
		Currency:        s.cfg.CurrencyCode(),
		CreatedAt:       s.now().UTC(),
	}
	if err := s.intents.Save(ctx, intent); err != nil {
		s.metrics.IncCheckout(method, outcomeFailed)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis: save checkout intent")
	}

	successURL, err := withIntentParam(s.cfg.SuccessURL, intent.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "invalid checkout success url")
	}
	cancelURL, err := withIntentParam(s.cfg.CancelURL, intent.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "invalid checkout cancel url")
	}

	sess, err := s.hosted.CreateCheckoutSession(ctx, stripe.CheckoutSessionInput{
		ClientReferenceID: userID.String(),
		CustomerEmail:     input.CustomerEmail,
		Currency:          intent.Currency,
		SuccessURL:        successURL,
		CancelURL:         cancelURL,
		IdempotencyKey:    input.IdempotencyKey,
		LineItems:         sessionLines(intent),
		Metadata:          map[string]string{stripe.MetadataIntentKey: intent.ID.String()},
		ExpiresAt:         intent.CreatedAt.Add(s.intents.SessionWindow()),
	})
	if err != nil {
		s.metrics.IncCheckout(method, outcomeFailed)
		if delErr := s.intents.Delete(ctx, intent.ID); delErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", delErr.Error()), "checkout intent cleanup failed")
		}
		return nil, err
	}

	intent.SessionID = sess.ID
	if err := s.intents.Save(ctx, intent); err != nil {
		s.metrics.IncCheckout(method, outcomeFailed)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis: save checkout intent")
	}

	s.metrics.IncCheckout(method, outcomePending)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"intent_id":  intent.ID.String(),
		"session_id": sess.ID,
	}), "hosted payment started")
	return &Result{
		PaymentMethod: enums.PaymentMethodOnline,
		IntentID:      &intent.ID,
		RedirectURL:   sess.URL,
	}, nil
}

func (s *service) chargeCard(ctx context.Context, userID uuid.UUID, input Input, priced *pricedCart, shipTo types.Address) (*Result, error) {
	method := string(enums.PaymentMethodCard)
	key := strings.TrimSpace(input.IdempotencyKey)
	if len(key) > maxCardIdempotencyKey {
		key = ""
	}
	charge, err := s.card.CreatePayment(ctx, square.PaymentCreateParams{
		AmountMinor:    helpers.ToMinor(priced.totals.Total),
		Currency:       s.cfg.CurrencyCode(),
		SourceID:       input.CardSourceID,
		IdempotencyKey: key,
		ReferenceID:    userID.String(),
		BuyerEmail:     input.CustomerEmail,
		Note:           fmt.Sprintf("storefront order, %d lines", len(priced.items)),
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodePayment) {
			s.metrics.IncCheckout(method, outcomeDeclined)
		} else {
			s.metrics.IncCheckout(method, outcomeFailed)
		}
		return nil, err
	}

	ref := charge.ID
	orderID, err := s.placeOrder(ctx, userID, enums.PaymentMethodCard, priced.items, shipTo, priced.totals, &ref)
	if err != nil {
		s.metrics.IncCheckout(method, outcomeFailed)
		s.logg.Error(s.logg.WithField(ctx, "payment_id", charge.ID), "card charged but order was not recorded", err)
		return nil, err
	}
	s.metrics.IncCheckout(method, outcomePlaced)
	return &Result{PaymentMethod: enums.PaymentMethodCard, OrderID: &orderID}, nil
}

func (s *service) CompleteHostedPayment(ctx context.Context, intentID uuid.UUID, sessionID string) (*Result, error) {
	method := string(enums.PaymentMethodOnline)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"intent_id":  intentID.String(),
		"session_id": sessionID,
	})

	claimed, err := s.intents.Claim(ctx, intentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis: claim checkout intent")
	}
	if !claimed {
		s.metrics.IncCheckout(method, outcomeReplayed)
		result := &Result{PaymentMethod: enums.PaymentMethodOnline, IntentID: &intentID, Replayed: true}
		if sessionID != "" {
			if order, err := s.orders.FindByPaymentReference(ctx, sessionID); err == nil {
				result.OrderID = &order.ID
			}
		}
		s.logg.Info(ctx, "hosted payment already completed")
		return result, nil
	}

	intent, err := s.intents.Load(ctx, intentID)
	if err != nil {
		s.release(ctx, intentID)
		if errors.Is(err, errIntentNotFound) {
			s.metrics.IncCheckout(method, outcomeExpired)
			s.logg.Error(ctx, "hosted payment has no checkout intent, order not created", err)
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout intent not found or expired")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis: load checkout intent")
	}
	if intent.SessionID != "" && sessionID != "" && intent.SessionID != sessionID {
		s.release(ctx, intentID)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment session does not match checkout intent")
	}
	ref := sessionID
	if ref == "" {
		ref = intent.SessionID
	}

	orderID, err := s.placeOrder(ctx, intent.UserID, enums.PaymentMethodOnline, intent.Items, intent.ShippingAddress, intent.Totals, &ref)
	if err != nil {
		s.metrics.IncCheckout(method, outcomeFailed)
		s.release(ctx, intentID)
		return nil, err
	}
	if err := s.intents.Delete(ctx, intentID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "checkout intent cleanup failed")
	}

	s.metrics.IncCheckout(method, outcomeCompleted)
	return &Result{PaymentMethod: enums.PaymentMethodOnline, OrderID: &orderID, IntentID: &intentID}, nil
}

func (s *service) CancelHostedPayment(ctx context.Context, userID, intentID uuid.UUID) (*CancelResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	cancelled := &CancelResult{Cancelled: true, Message: cancelledMessage}

	intent, err := s.intents.Load(ctx, intentID)
	if err != nil {
		if errors.Is(err, errIntentNotFound) {
			return cancelled, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis: load checkout intent")
	}
	if intent.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout intent not found")
	}

	// The session must stop accepting payment before the intent is discarded,
	// otherwise a late payment would have nothing to become an order from.
	if intent.SessionID != "" && s.hosted != nil {
		if err := s.hosted.ExpireCheckoutSession(ctx, intent.SessionID); err != nil {
			return nil, err
		}
	}
	if err := s.intents.Delete(ctx, intentID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis: delete checkout intent")
	}

	s.metrics.IncCheckout(string(enums.PaymentMethodOnline), outcomeCancelled)
	s.logg.Info(s.logg.WithField(ctx, "intent_id", intentID.String()), "hosted payment cancelled")
	return cancelled, nil
}

func (s *service) ExpireHostedPayment(ctx context.Context, intentID uuid.UUID) error {
	if err := s.intents.Delete(ctx, intentID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis: delete checkout intent")
	}
	s.metrics.IncCheckout(string(enums.PaymentMethodOnline), outcomeExpired)
	return nil
}

func (s *service) price(ctx context.Context, c *cart.Cart) (*pricedCart, error) {
	ids, err := helpers.ProductIDs(c.Items)
	if err != nil {
		return nil, err
	}
	catalog, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load products")
	}
	items, err := helpers.Reprice(c.Items, catalog)
	if err != nil {
		return nil, err
	}
	return &pricedCart{items: items, totals: helpers.ComputeTotals(items, s.rates())}, nil
}

func (s *service) resolveAddress(ctx context.Context, userID uuid.UUID, input Input) (types.Address, error) {
	switch {
	case input.AddressID != nil && *input.AddressID != uuid.Nil:
		return s.address.Snapshot(ctx, userID, *input.AddressID)
	case input.NewAddress != nil:
		id, err := s.address.AddAddress(ctx, userID, *input.NewAddress)
		if err != nil {
			return types.Address{}, err
		}
		return s.address.Snapshot(ctx, userID, id)
	default:
		return types.Address{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required").
			WithDetails(map[string]string{"addressId": "select an address or add a new one"})
	}
}

func (s *service) placeOrder(ctx context.Context, userID uuid.UUID, method enums.PaymentMethod, items []types.LineItem, shipTo types.Address, totals orders.Totals, ref *string) (uuid.UUID, error) {
	orderID, err := s.orders.AddOrder(ctx, orders.CreateOrderInput{
		UserID:           userID,
		Items:            items,
		ShippingAddress:  shipTo,
		PaymentMethod:    method,
		Totals:           totals,
		Currency:         s.cfg.CurrencyCode(),
		PaymentReference: ref,
	})
	if err != nil {
		return uuid.Nil, err
	}
	// The order stands even if the cart cannot be cleared.
	if err := s.cart.ClearCart(ctx, userID); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"order_id": orderID.String(),
			"error":    err.Error(),
		}), "cart clear after order failed")
	}
	return orderID, nil
}

func (s *service) methodAvailable(method enums.PaymentMethod) error {
	switch method {
	case enums.PaymentMethodOnline:
		if !s.flags.HostedPayment || s.hosted == nil {
			return pkgerrors.New(pkgerrors.CodeDependency, "online payment is currently unavailable")
		}
	case enums.PaymentMethodCard:
		if !s.flags.CardPayment || s.card == nil {
			return pkgerrors.New(pkgerrors.CodeDependency, "card payment is currently unavailable")
		}
	}
	return nil
}

func (s *service) release(ctx context.Context, intentID uuid.UUID) {
	if err := s.intents.Release(ctx, intentID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "checkout intent claim release failed")
	}
}

func (s *service) rates() helpers.Rates {
	return helpers.Rates{Shipping: s.cfg.Shipping(), TaxRate: s.cfg.Rate()}
}

// sessionLines itemizes the intent so the hosted page total matches it.
func sessionLines(intent *Intent) []stripe.LineItem {
	lines := make([]stripe.LineItem, 0, len(intent.Items)+2)
	for _, item := range intent.Items {
		name := item.Name
		if item.SelectedSize != "" {
			name = fmt.Sprintf("%s (%s)", item.Name, item.SelectedSize)
		}
		lines = append(lines, stripe.LineItem{
			Name:            name,
			UnitAmountMinor: helpers.ToMinor(item.Price),
			Quantity:        int64(item.Quantity),
			ImageURL:        item.ImageURL,
		})
	}
	if intent.Totals.Shipping.IsPositive() {
		lines = append(lines, stripe.LineItem{Name: "Shipping", UnitAmountMinor: helpers.ToMinor(intent.Totals.Shipping), Quantity: 1})
	}
	if intent.Totals.Taxes.IsPositive() {
		lines = append(lines, stripe.LineItem{Name: "Taxes", UnitAmountMinor: helpers.ToMinor(intent.Totals.Taxes), Quantity: 1})
	}
	return lines
}

func withIntentParam(raw string, intentID uuid.UUID) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("intent", intentID.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type noopRecorder struct{}

func (noopRecorder) IncCheckout(string, string) {}

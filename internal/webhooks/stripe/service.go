package stripewebhook

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/storefront-backend/pkg/stripe"
)

type hostedPayments interface {
	CompleteHostedPayment(ctx context.Context, intentID uuid.UUID, sessionID string) (*checkout.Result, error)
	ExpireHostedPayment(ctx context.Context, intentID uuid.UUID) error
}

// Service routes verified Stripe checkout events into the checkout flow.
type Service struct {
	checkout hostedPayments
	logg     *logger.Logger
}

func NewService(payments hostedPayments, logg *logger.Logger) (*Service, error) {
	if payments == nil {
		return nil, errors.New("checkout service required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Service{checkout: payments, logg: logg}, nil
}

// HandleEvent ignores event types the storefront does not act on.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_event_type": string(event.Type),
	})

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		sess, intentID, err := sessionIntent(event)
		if err != nil {
			return err
		}
		if !sess.Paid() {
			// Delayed methods settle later via async_payment_succeeded.
			s.logg.Info(s.logg.WithField(ctx, "payment_status", sess.PaymentStatus), "checkout session completed without payment")
			return nil
		}
		result, err := s.checkout.CompleteHostedPayment(ctx, intentID, sess.ID)
		if err != nil {
			return err
		}
		if result.OrderID != nil {
			ctx = s.logg.WithField(ctx, "order_id", result.OrderID.String())
		}
		s.logg.Info(ctx, "hosted payment completed")
		return nil
	case stripe.EventTypeCheckoutSessionExpired,
		stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		_, intentID, err := sessionIntent(event)
		if err != nil {
			return err
		}
		return s.checkout.ExpireHostedPayment(ctx, intentID)
	default:
		return nil
	}
}

func sessionIntent(event *stripe.Event) (*pkgstripe.CheckoutSession, uuid.UUID, error) {
	sess, err := pkgstripe.CheckoutSessionFromEvent(event)
	if err != nil {
		return nil, uuid.Nil, err
	}
	raw := strings.TrimSpace(sess.Metadata[pkgstripe.MetadataIntentKey])
	intentID, err := uuid.Parse(raw)
	if err != nil {
		return nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "checkout intent id missing from session metadata")
	}
	return sess, intentID, nil
}

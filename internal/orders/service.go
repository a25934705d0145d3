package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Service owns order creation and the status state machine.
type Service interface {
	AddOrder(ctx context.Context, input CreateOrderInput) (uuid.UUID, error)
	GetOrders(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error)
	GetOrderByID(ctx context.Context, principal auth.Principal, orderID uuid.UUID) (*OrderDTO, error)
	GetAllOrders(ctx context.Context, principal auth.Principal) ([]OrderDTO, error)
	UpdateOrderStatus(ctx context.Context, principal auth.Principal, orderID uuid.UUID, newStatus string) (*OrderDTO, error)
	// FindByPaymentReference returns the order already created for a gateway payment.
	FindByPaymentReference(ctx context.Context, reference string) (*OrderDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type statusRecorder interface {
	IncOrderStatus(status string)
}

type ServiceParams struct {
	Repo     *Repository
	TxRunner txRunner
	Outbox   eventEmitter
	Metrics  statusRecorder
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo    *Repository
	tx      txRunner
	outbox  eventEmitter
	metrics statusRecorder
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("order repository required")
	}
	if params.TxRunner == nil {
		return nil, errors.New("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	var metrics statusRecorder = noopRecorder{}
	if params.Metrics != nil {
		metrics = params.Metrics
	}
	return &service{
		repo:    params.Repo,
		tx:      params.TxRunner,
		outbox:  params.Outbox,
		metrics: metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

func (s *service) AddOrder(ctx context.Context, input CreateOrderInput) (uuid.UUID, error) {
	if err := validateCreate(input); err != nil {
		return uuid.Nil, err
	}

	// Deep copies: the caller clears the cart right after this returns.
	order := &models.Order{
		UserID:           input.UserID,
		Status:           enums.OrderStatusProcessing,
		Subtotal:         input.Totals.Subtotal,
		Shipping:         input.Totals.Shipping,
		Taxes:            input.Totals.Taxes,
		Total:            input.Totals.Total,
		Currency:         strings.ToUpper(strings.TrimSpace(input.Currency)),
		Items:            types.CloneLineItems(input.Items),
		ShippingAddress:  input.ShippingAddress.Clone(),
		PaymentMethod:    input.PaymentMethod,
		PaymentReference: input.PaymentReference,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert order")
		}
		itemCount := 0
		for _, item := range order.Items {
			itemCount += item.Quantity
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: order.UserID, Role: string(enums.RoleCustomer)},
			Data: outbox.OrderCreatedEvent{
				OrderID:       order.ID,
				UserID:        order.UserID,
				Status:        order.Status,
				PaymentMethod: order.PaymentMethod,
				ItemCount:     itemCount,
				Total:         order.Total,
				Currency:      order.Currency,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return uuid.Nil, err
		}
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create order")
	}

	s.metrics.IncOrderStatus(string(order.Status))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":       order.ID.String(),
		"payment_method": order.PaymentMethod,
		"total":          order.Total.StringFixed(2),
	}), "order created")
	return order.ID, nil
}

func (s *service) GetOrders(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list orders")
	}
	return fromModels(rows), nil
}

func (s *service) GetOrderByID(ctx context.Context, principal auth.Principal, orderID uuid.UUID) (*OrderDTO, error) {
	if principal.Anonymous() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	var (
		order *models.Order
		err   error
	)
	if principal.IsAdmin() {
		order, err = s.repo.FindByID(ctx, orderID)
	} else {
		order, err = s.repo.FindForUser(ctx, principal.UserID, orderID)
	}
	if err != nil {
		return nil, mapLookupError(err)
	}
	return FromModel(order), nil
}

func (s *service) GetAllOrders(ctx context.Context, principal auth.Principal) ([]OrderDTO, error) {
	if !principal.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list all orders")
	}
	return fromModels(rows), nil
}

func (s *service) UpdateOrderStatus(ctx context.Context, principal auth.Principal, orderID uuid.UUID, newStatus string) (*OrderDTO, error) {
	if !principal.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	target, err := enums.ParseOrderStatus(newStatus)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status").
			WithDetails(map[string]string{"status": "must be one of Processing, Shipped, Delivered, Cancelled"})
	}

	var (
		result  *models.Order
		changed bool
		from    enums.OrderStatus
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.LockByID(ctx, orderID)
		if err != nil {
			return mapLookupError(err)
		}
		from = current.Status
		if current.Status == target {
			result = current
			return nil
		}
		if !current.Status.CanTransitionTo(target) {
			return transitionError(current.Status, target)
		}

		at := s.now().UTC()
		rows, err := repo.UpdateStatus(ctx, orderID, target, enums.OrderStatusSourcesFor(target), at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order status")
		}
		if rows == 0 {
			// Lost a race on a store without row locks; report what is there now.
			latest, err := repo.FindByID(ctx, orderID)
			if err != nil {
				return mapLookupError(err)
			}
			if latest.Status == target {
				result = latest
				return nil
			}
			return transitionError(latest.Status, target)
		}

		current.Status = target
		current.UpdatedAt = at
		result = current
		changed = true
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{UserID: principal.UserID, Role: string(principal.Role)},
			Data: outbox.OrderStatusChangedEvent{
				OrderID:    orderID,
				UserID:     current.UserID,
				FromStatus: from,
				ToStatus:   target,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order status")
	}

	if changed {
		s.metrics.IncOrderStatus(string(target))
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"order_id":    orderID.String(),
			"from_status": from,
			"to_status":   target,
		}), "order status updated")
	}
	return FromModel(result), nil
}

func (s *service) FindByPaymentReference(ctx context.Context, reference string) (*OrderDTO, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	order, err := s.repo.FindByPaymentReference(ctx, reference)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return FromModel(order), nil
}

func validateCreate(input CreateOrderInput) error {
	details := map[string]string{}
	if input.UserID == uuid.Nil {
		details["userId"] = "is required"
	}
	if len(input.Items) == 0 {
		details["items"] = "at least one item is required"
	}
	for _, item := range input.Items {
		if item.Quantity < 1 {
			details["items"] = "quantities must be at least 1"
			break
		}
	}
	if !input.PaymentMethod.IsValid() {
		details["paymentMethod"] = "is invalid"
	}
	if strings.TrimSpace(input.Currency) == "" {
		details["currency"] = "is required"
	}
	if input.Totals.Total.IsNegative() {
		details["total"] = "must not be negative"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order").WithDetails(details)
	}
	return nil
}

func transitionError(from, to enums.OrderStatus) error {
	if from.IsTerminal() {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order is %s and can no longer change", from)
	}
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order cannot move from %s to %s", from, to)
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
}

type noopRecorder struct{}

func (noopRecorder) IncOrderStatus(string) {}

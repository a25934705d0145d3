package orders

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type statusCounter map[string]int

func (c statusCounter) IncOrderStatus(status string) { c[status]++ }

type fixture struct {
	conn    *gorm.DB
	repo    *Repository
	svc     Service
	metrics statusCounter
	admin   auth.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Order{}, &models.OutboxEvent{}))

	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	repo := NewRepository(conn)
	metrics := statusCounter{}
	svc, err := NewService(ServiceParams{
		Repo:     repo,
		TxRunner: db.NewFromGorm(conn),
		Outbox:   outbox.NewService(outbox.NewRepository(conn), logg),
		Metrics:  metrics,
		Logger:   logg,
	})
	require.NoError(t, err)
	return &fixture{
		conn:    conn,
		repo:    repo,
		svc:     svc,
		metrics: metrics,
		admin:   auth.Principal{UserID: uuid.New(), Role: enums.RoleAdmin},
	}
}

func sampleInput(userID uuid.UUID) CreateOrderInput {
	line2 := "Flat 2"
	return CreateOrderInput{
		UserID: userID,
		Items: []types.LineItem{{
			CartItemID:   "item-1",
			ProductID:    uuid.NewString(),
			Name:         "Linen Shirt",
			Price:        decimal.RequireFromString("100.00"),
			Sizes:        []string{"S", "M"},
			Images:       []string{"https://cdn.example.com/shirt.jpg"},
			Quantity:     2,
			SelectedSize: "M",
		}},
		ShippingAddress: types.Address{
			Name:         "Ada",
			AddressLine1: "12 Analytical Row",
			AddressLine2: &line2,
			City:         "Pune",
			State:        "MH",
			Zip:          "411001",
			Country:      "IN",
		},
		PaymentMethod: enums.PaymentMethodCOD,
		Totals: Totals{
			Subtotal: decimal.RequireFromString("200.00"),
			Shipping: decimal.RequireFromString("50.00"),
			Taxes:    decimal.RequireFromString("36.00"),
			Total:    decimal.RequireFromString("286.00"),
		},
		Currency: "inr",
	}
}

func customer(id uuid.UUID) auth.Principal {
	return auth.Principal{UserID: id, Role: enums.RoleCustomer}
}

func outboxTypes(t *testing.T, conn *gorm.DB) []enums.OutboxEventType {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, conn.Order("created_at ASC").Find(&rows).Error)
	out := make([]enums.OutboxEventType, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.EventType)
	}
	return out
}

func TestAddOrderSnapshotsInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	input := sampleInput(userID)
	id, err := f.svc.AddOrder(ctx, input)
	require.NoError(t, err)

	// Mutating the caller's slices after placement must not leak into the order.
	input.Items[0].Quantity = 9
	input.Items[0].Sizes[0] = "XXL"
	*input.ShippingAddress.AddressLine2 = "changed"
	input.Items = nil

	got, err := f.svc.GetOrderByID(ctx, customer(userID), id)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, got.Status)
	assert.Equal(t, "INR", got.Currency)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.Equal(t, []string{"S", "M"}, got.Items[0].Sizes)
	require.NotNil(t, got.ShippingAddress.AddressLine2)
	assert.Equal(t, "Flat 2", *got.ShippingAddress.AddressLine2)
	assert.True(t, decimal.RequireFromString("286.00").Equal(got.Total))
	assert.False(t, got.Date.IsZero())

	assert.Equal(t, []enums.OutboxEventType{enums.EventOrderCreated}, outboxTypes(t, f.conn))
	assert.Equal(t, 1, f.metrics[string(enums.OrderStatusProcessing)])
}

func TestAddOrderValidation(t *testing.T) {
	f := newFixture(t)
	input := sampleInput(uuid.New())
	input.Items = nil
	input.PaymentMethod = "barter"

	_, err := f.svc.AddOrder(context.Background(), input)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "items")
	assert.Contains(t, details, "paymentMethod")
	assert.Empty(t, outboxTypes(t, f.conn))
}

func TestGetOrdersNewestFirstAndScopedToUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		in := sampleInput(userID)
		order := &models.Order{
			UserID:          userID,
			Status:          enums.OrderStatusProcessing,
			Subtotal:        in.Totals.Subtotal,
			Shipping:        in.Totals.Shipping,
			Taxes:           in.Totals.Taxes,
			Total:           in.Totals.Total,
			Currency:        "INR",
			Items:           in.Items,
			ShippingAddress: in.ShippingAddress,
			PaymentMethod:   enums.PaymentMethodCOD,
			CreatedAt:       base.Add(time.Duration(i) * time.Hour),
		}
		_, err := f.repo.Create(ctx, order)
		require.NoError(t, err)
		ids = append(ids, order.ID)
	}
	_, err := f.svc.AddOrder(ctx, sampleInput(uuid.New()))
	require.NoError(t, err)

	got, err := f.svc.GetOrders(ctx, userID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, ids[2], got[0].ID)
	assert.Equal(t, ids[1], got[1].ID)
	assert.Equal(t, ids[0], got[2].ID)

	all, err := f.svc.GetAllOrders(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestGetOrderByIDHidesOtherUsersOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	id, err := f.svc.AddOrder(ctx, sampleInput(owner))
	require.NoError(t, err)

	_, err = f.svc.GetOrderByID(ctx, customer(uuid.New()), id)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	got, err := f.svc.GetOrderByID(ctx, f.admin, id)
	require.NoError(t, err)
	assert.Equal(t, owner, got.UserID)

	_, err = f.svc.GetOrderByID(ctx, auth.Principal{}, id)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestGetAllOrdersRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetAllOrders(context.Background(), customer(uuid.New()))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestUpdateOrderStatusRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	id, err := f.svc.AddOrder(ctx, sampleInput(owner))
	require.NoError(t, err)

	_, err = f.svc.UpdateOrderStatus(ctx, customer(owner), id, "Shipped")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	stored, err := f.repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, stored.Status)
	assert.Equal(t, []enums.OutboxEventType{enums.EventOrderCreated}, outboxTypes(t, f.conn))
}

func TestUpdateOrderStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.svc.AddOrder(ctx, sampleInput(uuid.New()))
	require.NoError(t, err)

	got, err := f.svc.UpdateOrderStatus(ctx, f.admin, id, "Shipped")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, got.Status)

	// Same status is accepted without a new event.
	got, err = f.svc.UpdateOrderStatus(ctx, f.admin, id, "Shipped")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, got.Status)

	got, err = f.svc.UpdateOrderStatus(ctx, f.admin, id, "Delivered")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, got.Status)

	_, err = f.svc.UpdateOrderStatus(ctx, f.admin, id, "Cancelled")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	stored, err := f.repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, stored.Status)

	assert.ElementsMatch(t, []enums.OutboxEventType{
		enums.EventOrderCreated,
		enums.EventOrderStatusChanged,
		enums.EventOrderStatusChanged,
	}, outboxTypes(t, f.conn))
	assert.Equal(t, 1, f.metrics[string(enums.OrderStatusShipped)])
	assert.Equal(t, 1, f.metrics[string(enums.OrderStatusDelivered)])
}

func TestUpdateOrderStatusFromCancelledIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.svc.AddOrder(ctx, sampleInput(uuid.New()))
	require.NoError(t, err)

	_, err = f.svc.UpdateOrderStatus(ctx, f.admin, id, "Cancelled")
	require.NoError(t, err)

	for _, next := range []string{"Processing", "Shipped", "Delivered"} {
		_, err = f.svc.UpdateOrderStatus(ctx, f.admin, id, next)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), next)
	}
}

func TestUpdateOrderStatusInputErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.svc.AddOrder(ctx, sampleInput(uuid.New()))
	require.NoError(t, err)

	_, err = f.svc.UpdateOrderStatus(ctx, f.admin, id, "Teleported")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.UpdateOrderStatus(ctx, f.admin, uuid.New(), "Shipped")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestFindByPaymentReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := "cs_test_123"
	input := sampleInput(uuid.New())
	input.PaymentMethod = enums.PaymentMethodOnline
	input.PaymentReference = &ref
	id, err := f.svc.AddOrder(ctx, input)
	require.NoError(t, err)

	got, err := f.svc.FindByPaymentReference(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)

	_, err = f.svc.FindByPaymentReference(ctx, "cs_missing")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

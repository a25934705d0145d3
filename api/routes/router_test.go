package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/internal/admin"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/products"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessionChecker struct{}

func (stubSessionChecker) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type stubIdempotencyStore struct {
	data map[string]string
}

func (s *stubIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	return s.data[key], nil
}

func (s *stubIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = fmt.Sprint(value)
	return true, nil
}

func (s *stubIdempotencyStore) IdempotencyKey(scope, id string) string {
	return scope + "|" + id
}

func (s *stubIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

type stubProductService struct {
	products.Service
}

func (stubProductService) List(context.Context, products.ListFilter) ([]products.ProductDTO, error) {
	return []products.ProductDTO{}, nil
}

type stubCartService struct {
	cart.Service
}

func (stubCartService) GetCart(context.Context, uuid.UUID) (*cart.View, error) {
	return &cart.View{}, nil
}

type stubCheckoutService struct {
	checkout.Service
	calls int
}

func (s *stubCheckoutService) Checkout(context.Context, uuid.UUID, checkout.Input) (*checkout.Result, error) {
	s.calls++
	orderID := uuid.New()
	return &checkout.Result{PaymentMethod: enums.PaymentMethodCOD, OrderID: &orderID}, nil
}

type stubOrdersService struct {
	orders.Service
}

func (stubOrdersService) GetAllOrders(context.Context, pkgAuth.Principal) ([]orders.OrderDTO, error) {
	return []orders.OrderDTO{}, nil
}

type stubAdminService struct{}

func (stubAdminService) GetStats(context.Context, pkgAuth.Principal) (*admin.Stats, error) {
	return &admin.Stats{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{
			Secret:            "test-secret",
			Issuer:            "storefront-test",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config, checkoutSvc checkout.Service) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(Deps{
		Config:      cfg,
		Logger:      logg,
		Pingers:     map[string]controllers.Pinger{"db": stubPinger{}},
		Sessions:    stubSessionChecker{},
		Idempotency: &stubIdempotencyStore{data: map[string]string{}},
		Products:    stubProductService{},
		Cart:        stubCartService{},
		Checkout:    checkoutSvc,
		Orders:      stubOrdersService{},
		Admin:       stubAdminService{},
	})
}

func buildToken(t *testing.T, cfg *config.Config, role enums.Role) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		Email:  "shopper@example.com",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndCatalogArePublic(t *testing.T) {
	router := newTestRouter(testConfig(), &stubCheckoutService{})

	for _, path := range []string{"/health/live", "/health/ready", "/api/v1/products"} {
		if rec := serve(router, httptest.NewRequest(http.MethodGet, path, nil)); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig(), &stubCheckoutService{})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestPrivateGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, &stubCheckoutService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleCustomer))
	if rec := serve(router, req); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, &stubCheckoutService{})

	for _, path := range []string{"/api/v1/admin/stats", "/api/v1/admin/orders"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleCustomer))
		if rec := serve(router, req); rec.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403 for customer, got %d", path, rec.Code)
		}

		req = httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleAdmin))
		if rec := serve(router, req); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 for admin, got %d", path, rec.Code)
		}
	}
}

func TestCheckoutRequiresIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	svc := &stubCheckoutService{}
	router := newTestRouter(cfg, svc)
	token := buildToken(t, cfg, enums.RoleCustomer)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"paymentMethod":"cod"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	if rec := serve(router, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key, got %d", rec.Code)
	}

	for i := 0; i < 2; i++ {
		req = httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"paymentMethod":"cod"}`))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "order-1")
		if rec := serve(router, req); rec.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201, got %d (%s)", i, rec.Code, rec.Body.String())
		}
	}
	if svc.calls != 1 {
		t.Fatalf("expected replay to skip the handler, got %d calls", svc.calls)
	}
}

func TestStripeWebhookWithoutHostedPayment(t *testing.T) {
	router := newTestRouter(testConfig(), &stubCheckoutService{})

	rec := serve(router, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(`{}`)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/admin"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type httpObserver interface {
	ObserveHTTP(method, route string, status int, duration time.Duration)
}

type stripeEventVerifier interface {
	ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

type stripeEventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// Deps carries everything the HTTP surface needs. Stripe fields may be left
// nil when hosted payment is disabled; the webhook then answers 503.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Metrics  httpObserver
	Exporter http.Handler

	Pingers        map[string]controllers.Pinger
	Sessions       session.AccessSessionChecker
	Idempotency    redis.IdempotencyStore
	RateLimiter    rateLimiter
	StripeVerifier stripeEventVerifier
	StripeGuard    stripeEventGuard
	StripeEvents   webhookcontrollers.StripeWebhookService

	Auth      auth.Service
	Directory users.Directory
	Products  products.Service
	Cart      cart.Service
	Addresses address.Service
	Checkout  checkout.Service
	Orders    orders.Service
	Admin     admin.Service
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, d.Metrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Pingers))
	})
	if d.Exporter != nil {
		r.Handle("/metrics", d.Exporter)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(d.StripeEvents, d.StripeVerifier, d.StripeGuard, logg))

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(registerPolicy, d.RateLimiter, logg)).Post("/register", controllers.AuthRegister(d.Auth, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, d.RateLimiter, logg)).Post("/login", controllers.AuthLogin(d.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(d.Auth, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(d.Products, logg))
			r.Get("/{productId}", controllers.ProductGet(d.Products, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))
			r.Use(middleware.Idempotency(d.Idempotency, logg))

			r.Post("/auth/logout", controllers.AuthLogout(d.Auth, logg))
			r.Get("/me", controllers.AuthMe(d.Auth, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(d.Cart, logg))
				r.Delete("/", controllers.CartClear(d.Cart, logg))
				r.Post("/items", controllers.CartAddItem(d.Cart, logg))
				r.Patch("/items/{cartItemId}/quantity", controllers.CartUpdateQuantity(d.Cart, logg))
				r.Patch("/items/{cartItemId}/size", controllers.CartUpdateSize(d.Cart, logg))
				r.Delete("/items/{cartItemId}", controllers.CartRemoveItem(d.Cart, logg))
			})

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", controllers.AddressList(d.Addresses, logg))
				r.Post("/", controllers.AddressCreate(d.Addresses, logg))
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/quote", controllers.CheckoutQuote(d.Checkout, logg))
				r.Post("/", controllers.CheckoutSubmit(d.Checkout, logg))
				r.Post("/intents/{intentId}/cancel", controllers.CheckoutCancelIntent(d.Checkout, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.OrderList(d.Orders, logg))
				r.Get("/{orderId}", controllers.OrderGet(d.Orders, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.RoleAdmin, logg))
				r.Get("/stats", controllers.AdminStats(d.Admin, logg))
				r.Get("/users", controllers.AdminUsers(d.Directory, logg))
				r.Route("/orders", func(r chi.Router) {
					r.Get("/", controllers.AdminOrderList(d.Orders, logg))
					r.Get("/{orderId}", controllers.OrderGet(d.Orders, logg))
					r.Patch("/{orderId}/status", controllers.AdminOrderUpdateStatus(d.Orders, logg))
				})
				r.Route("/products", func(r chi.Router) {
					r.Post("/", controllers.AdminProductCreate(d.Products, logg))
					r.Put("/{productId}", controllers.AdminProductUpdate(d.Products, logg))
					r.Delete("/{productId}", controllers.AdminProductDelete(d.Products, logg))
				})
			})
		})
	})

	return r
}

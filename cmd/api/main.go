package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/admin"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/users"
	stripewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/env"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/square"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

const (
	serviceName       = "storefront-api"
	stripeEventTTL    = 72 * time.Hour
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collectorSet := metrics.New(registry)

	usersRepo := users.NewRepository(dbClient.DB())
	directory, err := users.NewDirectory(usersRepo, cfg.FeatureFlags.UserDirectory, logg)
	if err != nil {
		return err
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return err
	}

	productsRepo := products.NewRepository(dbClient.DB())
	productsService, err := products.NewService(productsRepo, logg)
	if err != nil {
		return err
	}

	cartStore, err := cart.NewRedisStore(redisClient, cfg.Cart.TTL)
	if err != nil {
		return err
	}
	cartService, err := cart.NewService(cart.ServiceParams{
		Store:    cartStore,
		Products: productsRepo,
		Metrics:  collectorSet,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	addressService, err := address.NewService(address.NewRepository(dbClient.DB()), logg)
	if err != nil {
		return err
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:     ordersRepo,
		TxRunner: dbClient,
		Outbox:   outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Metrics:  collectorSet,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	intents, err := checkout.NewIntentStore(redisClient, cfg.Checkout.IntentTTL)
	if err != nil {
		return err
	}

	checkoutParams := checkout.ServiceParams{
		Config:  cfg.Checkout,
		Flags:   cfg.FeatureFlags,
		Cart:    cartService,
		Catalog: productsRepo,
		Address: addressService,
		Orders:  ordersService,
		Intents: intents,
		Metrics: collectorSet,
		Logger:  logg,
	}

	var stripeClient *stripe.Client
	if cfg.FeatureFlags.HostedPayment {
		stripeClient, err = stripe.NewClient(bootCtx, cfg.Stripe, logg)
		if err != nil {
			return err
		}
		checkoutParams.Hosted = stripeClient
	}
	if cfg.FeatureFlags.CardPayment {
		squareClient, err := square.NewClient(bootCtx, cfg.Square, logg)
		if err != nil {
			return err
		}
		checkoutParams.Card = squareClient
	}

	checkoutService, err := checkout.NewService(checkoutParams)
	if err != nil {
		return err
	}

	adminService, err := admin.NewService(ordersRepo, productsService, directory, logg)
	if err != nil {
		return err
	}

	deps := routes.Deps{
		Config:   cfg,
		Logger:   logg,
		Metrics:  collectorSet,
		Exporter: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Pingers: map[string]controllers.Pinger{
			"db":    dbClient,
			"redis": redisClient,
		},
		Sessions:    sessionManager,
		Idempotency: redisClient,
		RateLimiter: redisClient,
		Auth:        authService,
		Directory:   directory,
		Products:    productsService,
		Cart:        cartService,
		Addresses:   addressService,
		Checkout:    checkoutService,
		Orders:      ordersService,
		Admin:       adminService,
	}

	if stripeClient != nil {
		events, err := stripewebhook.NewService(checkoutService, logg)
		if err != nil {
			return err
		}
		ledger, err := stripewebhook.NewEventLedger(redisClient, stripeEventTTL)
		if err != nil {
			return err
		}
		deps.StripeVerifier = stripeClient
		deps.StripeGuard = ledger
		deps.StripeEvents = events
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)

	ctx, stop := signal.NotifyContext(bootCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":            cfg.App.Env,
		"addr":           addr,
		"hostedPayments": stripeClient != nil,
		"stripeMode":     stripeClient.Mode(),
		"cardPayments":   checkoutParams.Card != nil,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logg.Info(ctx, "api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

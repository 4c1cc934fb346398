package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/nateruiz/saasbase-backend/api/routes"
	"github.com/nateruiz/saasbase-backend/internal/catalog"
	"github.com/nateruiz/saasbase-backend/internal/customers"
	"github.com/nateruiz/saasbase-backend/internal/subscriptions"
	"github.com/nateruiz/saasbase-backend/internal/users"
	stripewebhook "github.com/nateruiz/saasbase-backend/internal/webhooks/stripe"
	"github.com/nateruiz/saasbase-backend/pkg/config"
	"github.com/nateruiz/saasbase-backend/pkg/db"
	"github.com/nateruiz/saasbase-backend/pkg/logger"
	"github.com/nateruiz/saasbase-backend/pkg/metrics"
	"github.com/nateruiz/saasbase-backend/pkg/redis"
	"github.com/nateruiz/saasbase-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)

	executor, err := db.NewExecutor(dbClient, db.PolicyFromConfig(cfg.DB), logg)
	requireResource(ctx, logg, "db executor", err)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	requireResource(ctx, logg, "stripe", err)

	catalogService, err := catalog.NewService(catalog.ServiceParams{
		Repo:            catalog.NewRepository(dbClient.DB()),
		Executor:        executor,
		Logger:          logg,
		FKRetryAttempts: cfg.Webhook.FKRetryAttempts,
		FKRetryDelay:    cfg.Webhook.FKRetryDelay,
	})
	requireResource(ctx, logg, "catalog service", err)

	customerStripeClient := customers.NewStripeClient(stripeClient)
	customerService, err := customers.NewService(customers.ServiceParams{
		Repo:     customers.NewRepository(dbClient.DB()),
		Executor: executor,
		Stripe:   customerStripeClient,
		Logger:   logg,
	})
	requireResource(ctx, logg, "customer service", err)

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:           subscriptions.NewRepository(dbClient.DB()),
		UsersRepo:      users.NewRepository(dbClient.DB()),
		Resolver:       customerService,
		Stripe:         subscriptions.NewStripeClient(stripeClient),
		CustomerClient: customerStripeClient,
		Executor:       executor,
		Logger:         logg,
	})
	requireResource(ctx, logg, "subscription service", err)

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Catalog:       catalogService,
		Subscriptions: subscriptionService,
		Logger:        logg,
	})
	requireResource(ctx, logg, "webhook service", err)

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, "stripe-webhook")
	requireResource(ctx, logg, "webhook idempotency guard", err)

	registry := prometheus.NewRegistry()
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:          cfg,
			Logger:          logg,
			DB:              dbClient,
			Redis:           redisClient,
			StripeClient:    stripeClient,
			CustomerService: customerService,
			WebhookService:  webhookService,
			WebhookGuard:    webhookGuard,
			WebhookMetrics:  webhookMetrics,
			MetricsRegistry: registry,
		}),
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	startCtx := logg.WithFields(runCtx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(startCtx, "api server started")

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(startCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(startCtx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var closeErr error
	closeErr = multierr.Append(closeErr, server.Shutdown(shutdownCtx))
	closeErr = multierr.Append(closeErr, redisClient.Close())
	closeErr = multierr.Append(closeErr, dbClient.Close())
	if closeErr != nil {
		logg.Error(startCtx, "shutdown finished with errors", closeErr)
		os.Exit(1)
	}
	logg.Info(startCtx, "shutdown complete")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

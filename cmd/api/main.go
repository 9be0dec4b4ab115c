package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bazaarlabs/bazaar-backend/api/routes"
	"github.com/bazaarlabs/bazaar-backend/internal/checkout"
	"github.com/bazaarlabs/bazaar-backend/internal/invoices"
	"github.com/bazaarlabs/bazaar-backend/internal/notifications"
	"github.com/bazaarlabs/bazaar-backend/internal/orders"
	"github.com/bazaarlabs/bazaar-backend/internal/payments"
	"github.com/bazaarlabs/bazaar-backend/internal/settlement"
	"github.com/bazaarlabs/bazaar-backend/internal/shipping"
	"github.com/bazaarlabs/bazaar-backend/internal/withdrawals"
	"github.com/bazaarlabs/bazaar-backend/pkg/config"
	"github.com/bazaarlabs/bazaar-backend/pkg/courier"
	"github.com/bazaarlabs/bazaar-backend/pkg/db"
	"github.com/bazaarlabs/bazaar-backend/pkg/instance"
	"github.com/bazaarlabs/bazaar-backend/pkg/logger"
	"github.com/bazaarlabs/bazaar-backend/pkg/mailer"
	"github.com/bazaarlabs/bazaar-backend/pkg/metrics"
	"github.com/bazaarlabs/bazaar-backend/pkg/migrate"
	"github.com/bazaarlabs/bazaar-backend/pkg/redis"
	"github.com/bazaarlabs/bazaar-backend/pkg/stripe"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap stripe client", err)
		os.Exit(1)
	}

	courierClient, err := courier.NewClient(cfg.Courier, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap courier client", err)
		os.Exit(1)
	}

	mailClient, err := mailer.NewClient(cfg.Mailer)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap mailer", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	ordersRepo := orders.NewRepository(dbClient.DB())
	ledger, err := orders.NewLedger(ordersRepo, dbClient)
	if err != nil {
		logg.Error(ctx, "failed to create order ledger", err)
		os.Exit(1)
	}

	dispatcher, err := notifications.NewDispatcher(notifications.NewRepository(dbClient.DB()), logg, 0)
	if err != nil {
		logg.Error(ctx, "failed to create notification dispatcher", err)
		os.Exit(1)
	}
	defer dispatcher.Close()

	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to create notification service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(ordersRepo, dbClient, stripeClient, logg)
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	paymentGuard, err := payments.NewIdempotencyGuard(redisClient, "webhook:payment")
	if err != nil {
		logg.Error(ctx, "failed to create payment idempotency guard", err)
		os.Exit(1)
	}
	paymentService, err := payments.NewService(payments.ServiceParams{
		Ledger:   ledger,
		Guard:    paymentGuard,
		Notifier: dispatcher,
		Mailer:   mailClient,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create payment service", err)
		os.Exit(1)
	}

	commissionRate, err := cfg.Platform.Rate()
	if err != nil {
		logg.Error(ctx, "invalid commission rate", err)
		os.Exit(1)
	}
	settlementService, err := settlement.NewService(settlement.NewRepository(dbClient.DB()), commissionRate, logg)
	if err != nil {
		logg.Error(ctx, "failed to create settlement service", err)
		os.Exit(1)
	}

	shipmentOrchestrator, err := shipping.NewOrchestrator(shipping.OrchestratorParams{
		Ledger:   ledger,
		Repo:     ordersRepo,
		Tx:       dbClient,
		Gateway:  courierClient,
		Notifier: dispatcher,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create shipment orchestrator", err)
		os.Exit(1)
	}

	courierGuard, err := payments.NewIdempotencyGuard(redisClient, "webhook:courier")
	if err != nil {
		logg.Error(ctx, "failed to create courier idempotency guard", err)
		os.Exit(1)
	}
	shipmentEvents, err := shipping.NewEventProcessor(shipping.EventProcessorParams{
		Ledger:     ledger,
		Repo:       ordersRepo,
		Tx:         dbClient,
		Settlement: settlementService,
		Deduper:    courierGuard,
		Notifier:   dispatcher,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create shipment event processor", err)
		os.Exit(1)
	}

	withdrawalService, err := withdrawals.NewService(withdrawals.NewRepository(dbClient.DB()), dbClient, dispatcher, logg)
	if err != nil {
		logg.Error(ctx, "failed to create withdrawal service", err)
		os.Exit(1)
	}

	invoiceRenderer, err := invoices.NewHTMLRenderer()
	if err != nil {
		logg.Error(ctx, "failed to create invoice renderer", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.Deps{
		Config:               cfg,
		Logger:               logg,
		DB:                   dbClient,
		Redis:                redisClient,
		StripeClient:         stripeClient,
		CheckoutService:      checkoutService,
		OrderLedger:          ledger,
		PaymentService:       paymentService,
		ShipmentOrchestrator: shipmentOrchestrator,
		ShipmentEvents:       shipmentEvents,
		WithdrawalService:    withdrawalService,
		NotificationService:  notificationService,
		InvoiceRenderer:      invoiceRenderer,
		WebhookMetrics:       webhookMetrics,
		MetricsHandler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	runCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(runCtx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(runCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(runCtx, "graceful shutdown failed", err)
		}
	}
}

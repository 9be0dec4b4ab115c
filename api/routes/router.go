package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bazaarlabs/bazaar-backend/api/controllers"
	webhookcontrollers "github.com/bazaarlabs/bazaar-backend/api/controllers/webhooks"
	"github.com/bazaarlabs/bazaar-backend/api/middleware"
	checkoutsvc "github.com/bazaarlabs/bazaar-backend/internal/checkout"
	"github.com/bazaarlabs/bazaar-backend/internal/invoices"
	"github.com/bazaarlabs/bazaar-backend/internal/notifications"
	"github.com/bazaarlabs/bazaar-backend/internal/orders"
	"github.com/bazaarlabs/bazaar-backend/internal/payments"
	"github.com/bazaarlabs/bazaar-backend/internal/shipping"
	"github.com/bazaarlabs/bazaar-backend/internal/withdrawals"
	"github.com/bazaarlabs/bazaar-backend/pkg/config"
	"github.com/bazaarlabs/bazaar-backend/pkg/db"
	"github.com/bazaarlabs/bazaar-backend/pkg/enums"
	"github.com/bazaarlabs/bazaar-backend/pkg/logger"
	"github.com/bazaarlabs/bazaar-backend/pkg/metrics"
	"github.com/bazaarlabs/bazaar-backend/pkg/redis"
	"github.com/bazaarlabs/bazaar-backend/pkg/stripe"
)

// Deps collects everything the router wires into handlers.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB    db.Pinger
	Redis *redis.Client

	StripeClient *stripe.Client

	CheckoutService      checkoutsvc.Service
	OrderLedger          orders.Ledger
	PaymentService       payments.Service
	ShipmentOrchestrator shipping.Orchestrator
	ShipmentEvents       shipping.EventProcessor
	WithdrawalService    withdrawals.Service
	NotificationService  notifications.Service
	InvoiceRenderer      invoices.Renderer

	WebhookMetrics *metrics.WebhookMetrics
	MetricsHandler http.Handler
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	var cache redis.Pinger
	if deps.Redis != nil {
		cache = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, cache, logg))
	})

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payment", webhookcontrollers.PaymentWebhook(deps.PaymentService, deps.StripeClient, deps.WebhookMetrics, logg))
		r.Post("/courier", webhookcontrollers.CourierWebhook(deps.ShipmentEvents, cfg.Courier.WebhookAPIKey, deps.WebhookMetrics, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRoles(logg, enums.ActorRoleCustomer, enums.ActorRoleAdmin))
			r.Post("/checkout", controllers.Checkout(deps.CheckoutService, logg))
			r.Post("/checkout/{orderID}/session", controllers.ResendCheckoutSession(deps.CheckoutService, deps.OrderLedger, logg))
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.ListMyOrders(deps.OrderLedger, logg))
				r.Get("/{orderID}", controllers.GetOrder(deps.OrderLedger, logg))
				r.Get("/{orderID}/invoice", controllers.OrderInvoice(deps.OrderLedger, deps.InvoiceRenderer, logg))
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.NotificationService, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(deps.NotificationService, logg))
		})

		r.Route("/vendor", func(r chi.Router) {
			r.Use(middleware.RequireRoles(logg, enums.ActorRoleVendor))
			r.Route("/withdrawals", func(r chi.Router) {
				r.Get("/", controllers.ListMyWithdrawals(deps.WithdrawalService, logg))
				r.Post("/", controllers.RequestWithdrawal(deps.WithdrawalService, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRoles(logg, enums.ActorRoleAdmin))
			r.Route("/orders/{orderID}", func(r chi.Router) {
				r.Post("/ship", controllers.ShipOrder(deps.ShipmentOrchestrator, logg))
				r.Post("/cancel", controllers.CancelOrder(deps.ShipmentOrchestrator, logg))
			})
			r.Route("/withdrawals", func(r chi.Router) {
				r.Get("/pending", controllers.ListPendingWithdrawals(deps.WithdrawalService, logg))
				r.Post("/{requestID}/approve", controllers.ApproveWithdrawal(deps.WithdrawalService, logg))
				r.Post("/{requestID}/reject", controllers.RejectWithdrawal(deps.WithdrawalService, logg))
				r.Post("/{requestID}/paid", controllers.MarkWithdrawalPaid(deps.WithdrawalService, logg))
			})
		})
	})

	return r
}

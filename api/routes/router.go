package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	checkoutcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/checkout"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	pricingcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/pricing"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	paymentwebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/payments"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/square"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

type Dependencies struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      controllers.Pinger
	Redis   *redis.Client
	Metrics *metrics.OrderMetrics
	// Gatherer backs /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer

	Orders     orders.Service
	Checkout   checkoutsvc.Service
	Pricing    pricing.Service
	Reconciler *paymentwebhook.Reconciler
	Dispatcher *paymentwebhook.Dispatcher

	// Gateway webhooks are mounted only for configured clients. One guard covers
	// both providers so the dispatcher can release any failed event.
	WebhookGuard *paymentwebhook.IdempotencyGuard
	Stripe       *stripe.Client
	Square       *square.Client
}

func NewRouter(d Dependencies) http.Handler {
	cfg, logg := d.Config, d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, logg, map[string]controllers.Pinger{
			"db":    d.DB,
			"redis": d.Redis,
		}))
	})

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.Generic(d.Dispatcher, logg))
		if d.WebhookGuard == nil {
			return
		}
		if d.Stripe != nil {
			r.Post("/stripe", webhookcontrollers.Stripe(d.Stripe, d.WebhookGuard, d.Dispatcher, d.Metrics, logg))
		}
		if d.Square != nil {
			r.Post("/square", webhookcontrollers.Square(d.Square, d.WebhookGuard, d.Dispatcher, d.Metrics, logg))
		}
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(d.Redis, logg))

		r.Post("/checkout", checkoutcontrollers.Create(d.Checkout, logg))
		r.Get("/checkout/return", checkoutcontrollers.Return(d.Reconciler, logg))
		r.Post("/pricing/quote", pricingcontrollers.Quote(d.Pricing, logg))

		r.Route("/orders/{orderID}", func(r chi.Router) {
			r.Get("/", ordercontrollers.Detail(d.Orders, logg))
			r.Get("/transitions", ordercontrollers.Transitions(d.Orders, logg))
			r.Get("/audit", ordercontrollers.Audit(d.Orders, logg))
			r.Post("/square-payments", checkoutcontrollers.SquarePayment(d.Checkout, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.RoleAdmin, logg))
			r.Patch("/orders/{orderID}/status", ordercontrollers.AdminUpdateStatus(d.Orders, logg))
			r.Post("/orders/{orderID}/reject", ordercontrollers.AdminReject(d.Orders, logg))
		})
	})

	return r
}

package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nateruiz/saasbase-backend/api/controllers"
	webhookcontrollers "github.com/nateruiz/saasbase-backend/api/controllers/webhooks"
	"github.com/nateruiz/saasbase-backend/api/middleware"
	"github.com/nateruiz/saasbase-backend/internal/customers"
	stripewebhook "github.com/nateruiz/saasbase-backend/internal/webhooks/stripe"
	"github.com/nateruiz/saasbase-backend/pkg/config"
	"github.com/nateruiz/saasbase-backend/pkg/db"
	"github.com/nateruiz/saasbase-backend/pkg/logger"
	"github.com/nateruiz/saasbase-backend/pkg/metrics"
	"github.com/nateruiz/saasbase-backend/pkg/redis"
	"github.com/nateruiz/saasbase-backend/pkg/stripe"
)

type RouterParams struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              db.Pinger
	Redis           redis.Pinger
	StripeClient    *stripe.Client
	CustomerService *customers.Service
	WebhookService  *stripewebhook.Service
	WebhookGuard    *stripewebhook.IdempotencyGuard
	WebhookMetrics  *metrics.WebhookMetrics
	MetricsRegistry *prometheus.Registry
}

func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, p.DB, p.Redis))
	})

	if p.MetricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.WebhookService, p.StripeClient, p.WebhookGuard, p.WebhookMetrics, p.Logger))
	})

	r.Route("/api/v1/billing", func(r chi.Router) {
		r.Use(middleware.UserContext(p.Logger))
		r.Post("/customer", controllers.EnsureBillingCustomer(p.CustomerService, p.Logger))
	})

	return r
}

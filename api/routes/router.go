package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coralreef/resortpay/api/controllers"
	webhookcontrollers "github.com/coralreef/resortpay/api/controllers/webhooks"
	"github.com/coralreef/resortpay/api/middleware"
	"github.com/coralreef/resortpay/internal/checkout"
	"github.com/coralreef/resortpay/internal/checkoutcontext"
	"github.com/coralreef/resortpay/internal/confirmation"
	"github.com/coralreef/resortpay/internal/ledger"
	"github.com/coralreef/resortpay/internal/refunds"
	"github.com/coralreef/resortpay/internal/webhooks"
	"github.com/coralreef/resortpay/pkg/config"
	"github.com/coralreef/resortpay/pkg/logger"
	pkgredis "github.com/coralreef/resortpay/pkg/redis"
)

// RedisStore is the redis surface shared by idempotency and rate limiting.
type RedisStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type stripeSigner interface {
	SigningSecret() string
}

type squareSigner interface {
	SigningSecret() string
	NotificationURL() string
}

// Dependencies groups what the router hands to controllers. Webhook entries
// are optional and only mounted for the configured provider.
type Dependencies struct {
	DB    controllers.Pinger
	Redis RedisStore

	Initiator     checkout.Initiator
	Resolver      confirmation.Resolver
	Contexts      checkoutcontext.Service
	Ledger        ledger.Service
	Refunds       refunds.Manager
	Metrics       prometheus.Gatherer
	StripeClient  stripeSigner
	StripeHandler webhookcontrollers.StripeEventHandler
	StripeGuard   *webhooks.Guard
	SquareClient  squareSigner
	SquareHandler webhookcontrollers.SquareEventHandler
	SquareGuard   *webhooks.Guard
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	checkoutPolicy := middleware.NewRateLimitPolicy("checkout", cfg.RateLimit.Window, cfg.RateLimit.CheckoutPerWindow, 0)
	refundPolicy := middleware.NewRateLimitPolicy("refund", cfg.RateLimit.Window, 0, cfg.RateLimit.RefundPerWindow)

	pingers := map[string]controllers.Pinger{}
	if deps.DB != nil {
		pingers["db"] = deps.DB
	}
	if deps.Redis != nil {
		if p, ok := deps.Redis.(controllers.Pinger); ok {
			pingers["redis"] = p
		}
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pingers))
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	if deps.StripeHandler != nil {
		r.Post("/api/v1/webhooks/stripe", webhookcontrollers.StripeWebhook(deps.StripeHandler, deps.StripeClient, deps.StripeGuard, logg))
	}
	if deps.SquareHandler != nil {
		r.Post("/api/v1/webhooks/square", webhookcontrollers.SquareWebhook(deps.SquareHandler, deps.SquareClient, deps.SquareGuard, logg))
	}

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(checkoutPolicy, deps.Redis, logg))
			r.Use(middleware.Idempotency(deps.Redis, logg))
			r.Post("/booking", controllers.CheckoutBooking(deps.Initiator, logg))
			r.Post("/cart", controllers.CheckoutCart(deps.Initiator, logg))
		})
		r.Get("/confirm", controllers.CheckoutConfirm(deps.Resolver, logg))
		r.Get("/contexts/{token}", controllers.CheckoutContextLookup(deps.Contexts, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.With(middleware.RateLimit(refundPolicy, deps.Redis, logg)).Post("/api/v1/refunds", controllers.RequestRefund(deps.Refunds, logg))
		r.Get("/api/v1/payments/{paymentId}/refunds", controllers.PaymentRefunds(deps.Refunds, logg))

		r.Route("/api/admin/v1", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))

			r.Route("/refunds", func(r chi.Router) {
				r.Get("/", controllers.AdminRefundList(deps.Refunds, logg))
				r.Post("/{refundId}/decision", controllers.AdminRefundDecision(deps.Refunds, logg))
				r.Post("/{refundId}/reconcile", controllers.AdminRefundReconcile(deps.Refunds, logg))
			})
			r.Route("/payments", func(r chi.Router) {
				r.Get("/", controllers.AdminPaymentList(deps.Ledger, logg))
				r.Get("/{paymentId}", controllers.AdminPaymentDetail(deps.Ledger, logg))
			})
			r.Get("/checkout/contexts/unforwarded", controllers.AdminUnforwardedContexts(deps.Contexts, logg))
		})
	})

	return r
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/coralreef/resortpay/api/routes"
	"github.com/coralreef/resortpay/internal/booking"
	"github.com/coralreef/resortpay/internal/checkout"
	"github.com/coralreef/resortpay/internal/checkoutcontext"
	"github.com/coralreef/resortpay/internal/confirmation"
	"github.com/coralreef/resortpay/internal/ledger"
	"github.com/coralreef/resortpay/internal/refunds"
	"github.com/coralreef/resortpay/internal/webhooks"
	squarewebhook "github.com/coralreef/resortpay/internal/webhooks/square"
	stripewebhook "github.com/coralreef/resortpay/internal/webhooks/stripe"
	"github.com/coralreef/resortpay/pkg/config"
	"github.com/coralreef/resortpay/pkg/db"
	"github.com/coralreef/resortpay/pkg/enums"
	"github.com/coralreef/resortpay/pkg/logger"
	"github.com/coralreef/resortpay/pkg/metrics"
	"github.com/coralreef/resortpay/pkg/migrate"
	"github.com/coralreef/resortpay/pkg/processor"
	"github.com/coralreef/resortpay/pkg/redis"
	squareclient "github.com/coralreef/resortpay/pkg/square"
	stripeclient "github.com/coralreef/resortpay/pkg/stripe"
)

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

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPaymentMetrics(registry)

	payments := ledger.NewRepository(dbClient.DB())
	contexts := checkoutcontext.NewRepository(dbClient.DB())
	refundRepo := refunds.NewRepository(dbClient.DB())

	deps := routes.Dependencies{
		DB:      dbClient,
		Redis:   redisClient,
		Metrics: registry,
	}

	var client processor.Client
	switch cfg.Processor.ProviderName() {
	case config.ProcessorSquare:
		sq, err := squareclient.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return err
		}
		client = sq
		deps.SquareClient = sq
	default:
		st, err := stripeclient.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return err
		}
		client = st
		deps.StripeClient = st
	}

	bookings, err := booking.NewClient(cfg.Booking.BaseURL, booking.WithTimeout(cfg.Booking.Timeout))
	if err != nil {
		return err
	}

	settlement, err := enums.NormalizeCurrency(cfg.Currency.Settlement, enums.CurrencyUSD)
	if err != nil {
		return err
	}
	deps.Initiator, err = checkout.NewInitiator(dbClient, payments, contexts, client, recorder, logg, checkout.Config{
		SuccessURL:          cfg.Processor.SuccessURL,
		CancelURL:           cfg.Processor.CancelURL,
		Settlement:          settlement,
		DefaultExchangeRate: cfg.Currency.ExchangeRate(),
		ProcessorTimeout:    cfg.Processor.Timeout,
	})
	if err != nil {
		return err
	}

	deps.Resolver, err = confirmation.NewResolver(client, payments, contexts, bookings, recorder, logg, confirmation.Config{
		ProcessorTimeout: cfg.Processor.Timeout,
		BookingTimeout:   cfg.Booking.Timeout,
	})
	if err != nil {
		return err
	}

	if deps.Contexts, err = checkoutcontext.NewService(contexts); err != nil {
		return err
	}
	if deps.Ledger, err = ledger.NewService(payments); err != nil {
		return err
	}

	deps.Refunds, err = refunds.NewManager(refundRepo, payments, client, recorder, logg, refunds.Config{
		PolicyWindowDays: cfg.Refund.PolicyWindowDays,
		ProcessorTimeout: cfg.Processor.Timeout,
		Currency:         settlement,
	})
	if err != nil {
		return err
	}

	if err := wireWebhooks(cfg, logg, redisClient, &deps); err != nil {
		return err
	}

	addr := ":" + cfg.App.Port
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"processor": cfg.Processor.ProviderName(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, deps),
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// wireWebhooks mounts the webhook handler of the configured processor.
func wireWebhooks(cfg *config.Config, logg *logger.Logger, store webhooks.EventStore, deps *routes.Dependencies) error {
	provider := cfg.Processor.ProviderName()
	guard, err := webhooks.NewGuard(store, cfg.HTTP.WebhookDedupTTL, provider)
	if err != nil {
		return err
	}

	switch provider {
	case config.ProcessorSquare:
		svc, err := squarewebhook.NewService(squarewebhook.ServiceParams{
			Confirmations: deps.Resolver,
			Refunds:       deps.Refunds,
			Logger:        logg,
		})
		if err != nil {
			return err
		}
		deps.SquareHandler = svc
		deps.SquareGuard = guard
	default:
		svc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
			Confirmations: deps.Resolver,
			Refunds:       deps.Refunds,
			Logger:        logg,
		})
		if err != nil {
			return err
		}
		deps.StripeHandler = svc
		deps.StripeGuard = guard
	}
	return nil
}

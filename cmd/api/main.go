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

	"github.com/angelmondragon/proppilot-backend/api/routes"
	"github.com/angelmondragon/proppilot-backend/internal/accounting"
	"github.com/angelmondragon/proppilot-backend/internal/activation"
	"github.com/angelmondragon/proppilot-backend/internal/admin"
	"github.com/angelmondragon/proppilot-backend/internal/billing"
	"github.com/angelmondragon/proppilot-backend/internal/graceperiod"
	"github.com/angelmondragon/proppilot-backend/internal/notifications"
	"github.com/angelmondragon/proppilot-backend/internal/organizations"
	"github.com/angelmondragon/proppilot-backend/internal/plans"
	"github.com/angelmondragon/proppilot-backend/internal/registration"
	"github.com/angelmondragon/proppilot-backend/internal/risk"
	stripewebhook "github.com/angelmondragon/proppilot-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/proppilot-backend/pkg/config"
	"github.com/angelmondragon/proppilot-backend/pkg/db"
	"github.com/angelmondragon/proppilot-backend/pkg/email"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
	"github.com/angelmondragon/proppilot-backend/pkg/metrics"
	"github.com/angelmondragon/proppilot-backend/pkg/migrate"
	"github.com/angelmondragon/proppilot-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/proppilot-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

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
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	sender, err := email.NewSender(cfg.Sendgrid, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create email sender", err)
		os.Exit(1)
	}
	notifier := notifications.NewNotifier(sender, cfg.App.PublicURL)
	billingMetrics := metrics.NewBillingMetrics(prometheus.DefaultRegisterer)

	orgRepo := organizations.NewRepository(dbClient.DB())
	planRepo := plans.NewRepository(dbClient.DB())
	planService, err := plans.NewService(planRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create plans service", err)
		os.Exit(1)
	}

	billingService, err := billing.NewService(billing.ServiceParams{
		Gateway:  stripeClient,
		Plans:    planRepo,
		Currency: stripeClient.Currency(),
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create billing service", err)
		os.Exit(1)
	}

	registrationService, err := registration.NewService(registration.ServiceParams{
		DB:            dbClient,
		Organizations: orgRepo,
		Scorer:        risk.NewScorer(cfg.Risk),
		Notifier:      notifier,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create registration service", err)
		os.Exit(1)
	}

	activationService, err := activation.NewService(activation.ServiceParams{
		Organizations: orgRepo,
		Plans:         planService,
		Billing:       billingService,
		Metrics:       billingMetrics,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create activation service", err)
		os.Exit(1)
	}

	sweeper, err := graceperiod.NewSweeper(graceperiod.SweeperParams{
		Organizations:    orgRepo,
		Notifier:         notifier,
		Metrics:          billingMetrics,
		Logger:           logg,
		DefaultGraceDays: cfg.Billing.DefaultGracePeriodDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create grace sweeper", err)
		os.Exit(1)
	}

	adminService, err := admin.NewService(admin.ServiceParams{
		DB:            dbClient,
		Organizations: orgRepo,
		Plans:         planService,
		Activation:    activationService,
		Billing:       billingService,
		Sweeper:       sweeper,
		Notifier:      notifier,
		Metrics:       billingMetrics,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create admin service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Organizations:     orgRepo,
		TransactionRunner: dbClient,
		Notifier:          notifier,
		Metrics:           billingMetrics,
		Logger:            logg,
		DefaultGraceDays:  cfg.Billing.DefaultGracePeriodDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}
	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Billing.WebhookIdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	deps := routes.Dependencies{
		DB:             dbClient,
		Redis:          redisClient,
		Gatherer:       prometheus.DefaultGatherer,
		Registration:   registrationService,
		Activation:     activationService,
		Plans:          planService,
		Admin:          adminService,
		StripeWebhook:  webhookService,
		StripeEvents:   stripeClient,
		WebhookGuard:   webhookGuard,
		WebhookMetrics: billingMetrics,
	}

	if cfg.Accounting.Enabled() {
		accountingService, err := newAccountingService(cfg, dbClient, redisClient, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create accounting service", err)
			os.Exit(1)
		}
		deps.Accounting = accountingService
	} else {
		logg.Warn(context.Background(), "accounting integration disabled, connect routes will answer 503")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
		"stripe":   stripeClient.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}

func newAccountingService(cfg *config.Config, dbClient *db.Client, redisClient *redis.Client, logg *logger.Logger) (*accounting.Service, error) {
	sealer, err := accounting.NewSealer(cfg.Accounting.EncryptionKey)
	if err != nil {
		return nil, err
	}
	states, err := accounting.NewStateStore(redisClient, cfg.Accounting.StateTTL)
	if err != nil {
		return nil, err
	}
	return accounting.NewService(accounting.ServiceParams{
		Config:     cfg.Accounting,
		States:     states,
		Repository: accounting.NewRepository(dbClient.DB()),
		Sealer:     sealer,
		Logger:     logg,
	})
}

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/proppilot-backend/internal/cron"
	"github.com/angelmondragon/proppilot-backend/internal/graceperiod"
	"github.com/angelmondragon/proppilot-backend/internal/notifications"
	"github.com/angelmondragon/proppilot-backend/internal/organizations"
	"github.com/angelmondragon/proppilot-backend/pkg/config"
	"github.com/angelmondragon/proppilot-backend/pkg/db"
	"github.com/angelmondragon/proppilot-backend/pkg/email"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
	"github.com/angelmondragon/proppilot-backend/pkg/metrics"
	"github.com/angelmondragon/proppilot-backend/pkg/migrate"
	"github.com/angelmondragon/proppilot-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single locked cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if !cfg.Cron.GraceSweepEnabled {
		logg.Warn(context.Background(), "grace sweep disabled, cron worker exiting")
		return
	}

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

	sender, err := email.NewSender(cfg.Sendgrid, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create email sender", err)
		os.Exit(1)
	}

	sweeper, err := graceperiod.NewSweeper(graceperiod.SweeperParams{
		Organizations:    organizations.NewRepository(dbClient.DB()),
		Notifier:         notifications.NewNotifier(sender, cfg.App.PublicURL),
		Metrics:          metrics.NewBillingMetrics(prometheus.DefaultRegisterer),
		Logger:           logg,
		DefaultGraceDays: cfg.Billing.DefaultGracePeriodDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create grace sweeper", err)
		os.Exit(1)
	}

	sweepJob, err := cron.NewGraceSweepJob(cron.GraceSweepJobParams{Logger: logg, Sweeper: sweeper})
	if err != nil {
		logg.Error(context.Background(), "failed to create grace sweep job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("grace-sweep:"+lockScope(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry(sweepJob)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
		Schedule: cfg.Cron.GraceSweepSchedule,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"schedule":    cfg.Cron.GraceSweepSchedule,
		"interval":    cfg.Cron.Interval.String(),
	})

	if *once {
		logg.Info(ctx, "running single cron cycle")
		service.RunOnce(ctx)
		return
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockScope(env string) string {
	if env == "" {
		return "local"
	}
	return env
}

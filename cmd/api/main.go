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

	"github.com/courseshare/courseshare-backend/api/controllers"
	"github.com/courseshare/courseshare-backend/api/routes"
	"github.com/courseshare/courseshare-backend/internal/auth"
	"github.com/courseshare/courseshare-backend/internal/billing"
	"github.com/courseshare/courseshare-backend/internal/chat"
	"github.com/courseshare/courseshare-backend/internal/documents"
	"github.com/courseshare/courseshare-backend/internal/ledger"
	"github.com/courseshare/courseshare-backend/internal/notifications"
	"github.com/courseshare/courseshare-backend/internal/rides"
	"github.com/courseshare/courseshare-backend/internal/subscriptions"
	"github.com/courseshare/courseshare-backend/internal/users"
	stripewebhook "github.com/courseshare/courseshare-backend/internal/webhooks/stripe"
	"github.com/courseshare/courseshare-backend/pkg/async"
	"github.com/courseshare/courseshare-backend/pkg/config"
	"github.com/courseshare/courseshare-backend/pkg/db"
	"github.com/courseshare/courseshare-backend/pkg/logger"
	"github.com/courseshare/courseshare-backend/pkg/metrics"
	"github.com/courseshare/courseshare-backend/pkg/migrate"
	"github.com/courseshare/courseshare-backend/pkg/pubsub"
	"github.com/courseshare/courseshare-backend/pkg/redis"
	pkgstripe "github.com/courseshare/courseshare-backend/pkg/stripe"
)

const (
	shutdownTimeout   = 20 * time.Second
	stripeEventTTL    = 72 * time.Hour
	stripeEventScope  = "stripe-webhook"
	readHeaderTimeout = 10 * time.Second
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
	cfg.Service.Kind = "api"

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

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	sqlDB, err := dbClient.SQL()
	if err != nil {
		return err
	}
	registry.MustRegister(collectors.NewDBStatsCollector(sqlDB, "courseshare"))

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	files, closeFiles, err := newFileStore(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFiles(); err != nil {
			logg.Error(context.Background(), "error closing file store", err)
		}
	}()

	dispatcher, err := async.NewDispatcher(async.DispatcherParams{
		Logger:      logg,
		Metrics:     metrics.NewTaskMetrics(registry),
		Workers:     cfg.Async.Workers,
		QueueSize:   cfg.Async.QueueSize,
		TaskTimeout: cfg.Async.TaskTimeout,
	})
	if err != nil {
		return err
	}

	var publisher notifications.Publisher
	if cfg.FeatureFlags.PushEnabled {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return err
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		topic := pubsubClient.NotificationPublisher()
		defer topic.Stop()
		publisher = topic
	}

	location, err := cfg.Quota.Location()
	if err != nil {
		return err
	}

	userRepo := users.NewRepository(dbClient.DB())
	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repo:               ledger.NewRepository(dbClient.DB()),
		FreePlanRideLimit:  cfg.Quota.FreePlanRideLimit,
		ReferralBonusRides: cfg.Quota.ReferralBonusRides,
		Location:           location,
	})
	if err != nil {
		return err
	}

	authService, err := auth.NewService(auth.ServiceParams{
		Tx:             dbClient,
		UserRepo:       userRepo,
		Ledger:         ledgerService,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return err
	}

	notificationService, err := notifications.NewService(notifications.ServiceParams{
		Repo:      notifications.NewRepository(dbClient.DB()),
		Publisher: publisher,
		Logger:    logg,
	})
	if err != nil {
		return err
	}

	rideRepo := rides.NewRepository(dbClient.DB())
	rideService, err := rides.NewService(rides.ServiceParams{
		Repo:       rideRepo,
		Tx:         dbClient,
		Ledger:     ledgerService,
		Files:      files,
		KeyPrefix:  cfg.Storage.KeyPrefix,
		Runner:     dispatcher,
		Notifier:   notificationService,
		Recipients: userRepo,
		Metrics:    metrics.NewRideMetrics(registry),
		Logger:     logg,
	})
	if err != nil {
		return err
	}

	documentService, err := documents.NewService(documents.ServiceParams{
		Repo:      documents.NewRepository(dbClient.DB()),
		Tx:        dbClient,
		Rides:     rideRepo,
		Files:     files,
		KeyPrefix: cfg.Storage.KeyPrefix,
		Runner:    dispatcher,
		Logger:    logg,
	})
	if err != nil {
		return err
	}

	chatService, err := chat.NewService(chat.ServiceParams{
		Repo:      chat.NewRepository(dbClient.DB()),
		Rides:     rideRepo,
		Files:     files,
		KeyPrefix: cfg.Storage.KeyPrefix,
		Runner:    dispatcher,
		Notifier:  notificationService,
		Logger:    logg,
	})
	if err != nil {
		return err
	}

	services := routes.Services{
		Auth:          authService,
		Rides:         rideService,
		Chat:          chatService,
		Documents:     documentService,
		Notifications: notificationService,
	}

	subscriptionParams := subscriptions.ServiceParams{
		BillingRepo:       billing.NewRepository(dbClient.DB()),
		Users:             userRepo,
		TransactionRunner: dbClient,
		Logger:            logg,
	}
	if cfg.Stripe.Enabled() {
		stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return err
		}
		subscriptionParams.Checkout = stripeClient
		services.StripeVerify = stripeClient
	} else {
		logg.Warn(ctx, "stripe disabled; checkout and billing webhooks are unavailable")
	}

	subscriptionService, err := subscriptions.NewService(subscriptionParams)
	if err != nil {
		return err
	}
	services.Subscriptions = subscriptionService

	if services.StripeVerify != nil {
		webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
			Subscriptions: subscriptionService,
			Logger:        logg,
		})
		if err != nil {
			return err
		}
		guard, err := stripewebhook.NewIdempotencyGuard(redisClient, stripeEventTTL, stripeEventScope)
		if err != nil {
			return err
		}
		services.StripeEvents = webhookService
		services.StripeGuard = guard
	}

	checks := map[string]controllers.Pinger{
		"db":      dbClient,
		"redis":   redisClient,
		"storage": files,
	}

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, routes.Dependencies{Store: redisClient, Checks: checks, Gatherer: registry, HTTP: metrics.NewHTTPMetrics(registry)}, services),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"serviceKind": cfg.Service.Kind,
		"storage":     cfg.Storage.Driver,
	})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logg.Info(logCtx, "api server shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(logCtx, "http server shutdown", err)
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logg.Error(logCtx, "async dispatcher shutdown", err)
	}
	return nil
}

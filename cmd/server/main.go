package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"travel/internal/app"
	"travel/internal/config"
	"travel/internal/gateway"
	"travel/internal/handler"
	"travel/internal/notify"
	internalRedis "travel/internal/redis"
	"travel/internal/repository/postgres"
	"travel/internal/service"
	"travel/internal/telemetry"
)

func main() {
	cfg := config.Load()

	logger, err := telemetry.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}

	// New Relic comes first so the database and Redis clients can be instrumented.
	nrApp := newRelicApp(cfg.NewRelic, logger)

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	if err := postgres.Migrate(ctx, db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
		logger.Info("connected to Redis")
	}

	publisher, err := app.NewPublisher(cfg.Broker, logger)
	if err != nil {
		logger.Fatal("failed to create notification publisher", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(registry)

	dispatcher := notify.NewDispatcher(publisher, cfg.Broker.BufferSize, logger, metrics)
	dispatcher.Start()

	server := wireServer(db, redisClient, nrApp, dispatcher, registry, metrics, logger, cfg)

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	// Handlers are done, so nothing can enqueue after this point.
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("notification dispatcher did not drain", zap.Error(err))
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown failed", zap.Error(err))
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
}

func newRelicApp(cfg config.NewRelicConfig, logger *zap.Logger) *newrelic.Application {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		return nil
	}

	nrApp, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		logger.Warn("failed to initialize New Relic", zap.Error(err))
		return nil
	}

	logger.Info("New Relic enabled", zap.String("app", cfg.AppName))
	return nrApp
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	dispatcher *notify.Dispatcher,
	registry *prometheus.Registry,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
	cfg *config.Config,
) *http.Server {
	listingRepo := postgres.NewListingRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	reviewRepo := postgres.NewReviewRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)

	// A nil *CacheStore inside the interface would not compare equal to nil.
	var listingCache internalRedis.ListingCacheInterface
	if redisClient != nil {
		listingCache = internalRedis.NewCacheStore(redisClient)
	}

	provider := gateway.NewClient(cfg.Gateway, gateway.WithMetrics(metrics))

	notificationService := service.NewNotificationService(dispatcher, logger)
	listingService := service.NewListingService(listingRepo, listingCache, logger)
	bookingService := service.NewBookingService(bookingRepo, listingRepo, notificationService, logger)
	reviewService := service.NewReviewService(reviewRepo, listingRepo)
	paymentService := service.NewPaymentService(paymentRepo, provider, notificationService, cfg.Gateway, logger, metrics)

	router := app.NewRouter(app.RouterDeps{
		PaymentHandler: handler.NewPaymentHandler(paymentService, logger),
		ListingHandler: handler.NewListingHandler(listingService, bookingService, reviewService, logger),
		BookingHandler: handler.NewBookingHandler(bookingService, logger),
		ReviewHandler:  handler.NewReviewHandler(reviewService, logger),
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
		Logger:         logger,
		Metrics:        metrics,
		Gatherer:       registry,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

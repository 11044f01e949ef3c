package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"travel/internal/app"
	"travel/internal/config"
	"travel/internal/notify"
	internalRedis "travel/internal/redis"
	"travel/internal/telemetry"
)

// The worker consumes notification tasks from the broker and sends the emails.
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer, err := app.NewConsumer(cfg.Broker, logger)
	if err != nil {
		logger.Fatal("failed to create notification consumer", zap.Error(err))
	}
	defer consumer.Close()

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.Worker.MetricsPort,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	var opts []notify.WorkerOption
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nil)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
		opts = append(opts, notify.WithClaimer(internalRedis.NewTaskClaimStore(redisClient), internalRedis.TaskClaimTTL))
	}

	worker := notify.NewWorker(notify.NewMailer(cfg.Email, logger), logger, metrics, opts...)

	logger.Info("notification worker started",
		zap.String("broker", cfg.Broker.Kind),
		zap.String("email_backend", cfg.Email.Backend),
	)
	if err := worker.Run(ctx, consumer); err != nil {
		logger.Error("notification worker stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown failed", zap.Error(err))
	}

	logger.Info("notification worker exited")
}

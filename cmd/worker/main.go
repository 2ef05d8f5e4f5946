package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dunamismax/boothflow/internal/booth"
	"github.com/dunamismax/boothflow/internal/config"
	"github.com/dunamismax/boothflow/internal/effects"
	"github.com/dunamismax/boothflow/internal/logging"
	"github.com/dunamismax/boothflow/internal/store"
	"github.com/dunamismax/boothflow/internal/telemetry"
	"github.com/dunamismax/boothflow/internal/webhook"
	"github.com/dunamismax/boothflow/internal/worker"
)

func main() {
	bootLogger := logging.New(logging.Options{Prefix: "[worker]"})
	cfg, err := config.Load()
	if err != nil {
		bootLogger.Fatal("load config", "err", err)
	}
	logger := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Prefix: "[worker]"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry, os.Stdout, logger)
	if err != nil {
		logger.Fatal("setup tracing", "err", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown failed", "err", err)
		}
	}()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})
	defer rdb.Close()

	if err := effects.Startup(); err != nil {
		logger.Fatal("start image runtime", "err", err)
	}
	defer effects.Shutdown()

	registry := telemetry.NewRegistry()
	service, closeService, err := booth.Open(ctx, cfg, rdb, logger, registry)
	if err != nil {
		logger.Fatal("open booth", "err", err)
	}
	defer closeService()

	jobStore, closeJobs, err := store.OpenJobStore(ctx, cfg.Database.JobStore, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("open job store", "err", err)
	}
	defer closeJobs()

	webhookClient := webhook.NewClient(webhook.Config{
		SigningSecret: cfg.Webhook.SigningSecret,
		MaxAttempts:   cfg.Webhook.MaxAttempts,
	})

	logger.Info("starting worker",
		"concurrency", cfg.Worker.Concurrency,
		"max_active_jobs", cfg.Worker.MaxActiveJobs,
		"queue", cfg.Queue.Name,
		"redis", cfg.Queue.RedisAddr,
	)

	srv, err := worker.NewServer(logger, cfg.Queue, cfg.Worker, registry, service, webhookClient, jobStore)
	if err != nil {
		logger.Fatal("create worker", "err", err)
	}

	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           srv.MetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()
	defer metricsServer.Close()

	if err := srv.Run(); err != nil {
		logger.Fatal("worker failed", "err", err)
	}
}

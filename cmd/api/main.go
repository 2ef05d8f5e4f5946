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

	"github.com/dunamismax/boothflow/internal/api"
	"github.com/dunamismax/boothflow/internal/booth"
	"github.com/dunamismax/boothflow/internal/config"
	"github.com/dunamismax/boothflow/internal/effects"
	"github.com/dunamismax/boothflow/internal/logging"
	"github.com/dunamismax/boothflow/internal/queue"
	"github.com/dunamismax/boothflow/internal/ratelimit"
	"github.com/dunamismax/boothflow/internal/store"
	"github.com/dunamismax/boothflow/internal/telemetry"
)

func main() {
	bootLogger := logging.New(logging.Options{Prefix: "[api]"})
	cfg, err := config.Load()
	if err != nil {
		bootLogger.Fatal("load config", "err", err)
	}
	logger := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Prefix: "[api]"})

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

	queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close error", "err", err)
		}
	}()

	opts := api.Options{
		Logger:     logger,
		Processor:  service,
		Queue:      queueClient,
		JobStore:   jobStore,
		Registry:   registry,
		WebhookURL: cfg.Webhook.URL,
	}
	if cfg.RateLimit.Enabled {
		limiter, err := ratelimit.New(rdb, cfg.RateLimit)
		if err != nil {
			logger.Fatal("create rate limiter", "err", err)
		}
		opts.RateLimiter = limiter
		opts.VideoCost = cfg.RateLimit.VideoCost
	}
	app := api.NewServer(opts)

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.API.Addr, "images", cfg.Booth.Folders.Images)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", "err", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
}

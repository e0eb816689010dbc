package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ivolkov/matchbot/internal/api/router"
	"github.com/ivolkov/matchbot/internal/cities"
	appconfig "github.com/ivolkov/matchbot/internal/config"
	"github.com/ivolkov/matchbot/internal/dialog"
	"github.com/ivolkov/matchbot/internal/dispatch"
	"github.com/ivolkov/matchbot/internal/observability/metrics"
	"github.com/ivolkov/matchbot/internal/session"
	"github.com/ivolkov/matchbot/internal/vk"
	"github.com/ivolkov/matchbot/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting matchbot",
		"env", cfg.Env,
		"port", cfg.Port,
		"event_source", cfg.VKEventSource,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	store := session.NewStore(pool)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unavailable, photo caching disabled", "addr", cfg.RedisAddr, "error", err)
			redisClient = nil
		}
		cancel()
	}

	resolver, err := cities.Load(cfg.CitiesFile)
	if err != nil {
		logger.Error("failed to load city index", "path", cfg.CitiesFile, "error", err)
		os.Exit(1)
	}
	if resolver.Empty() {
		logger.Warn("city index is empty, city step will reject every input", "path", cfg.CitiesFile)
	}

	registry := prometheus.NewRegistry()
	botMetrics := metrics.NewBotMetrics(registry)

	client := vk.NewClient(cfg.VKToken, cfg.VKAPIVersion)
	client.SetMetrics(botMetrics)

	photos := dialog.NewPhotoCache(client, redisClient, logger)
	engine := dialog.NewEngine(resolver, client, photos, store, logger)
	dispatcher := dispatch.NewDispatcher(store, client, engine, cfg.WorkerCount, cfg.QueueDepth, logger,
		dispatch.WithMetrics(botMetrics),
		dispatch.WithEventTimeout(cfg.EventTimeout),
		dispatch.WithMaxAttempts(cfg.MaxAttempts),
	)

	var source dispatch.EventSource
	var callbackHandler http.Handler
	switch cfg.VKEventSource {
	case appconfig.EventSourceWebhook:
		callback := vk.NewCallbackSource(cfg.VKConfirmation, cfg.VKSecret, cfg.QueueDepth, logger)
		source = callback
		callbackHandler = callback
	default:
		source = vk.NewLongPoller(client, cfg.VKGroupID, logger)
	}

	r := router.New(&router.Config{
		Logger:          logger,
		CallbackHandler: callbackHandler,
		MetricsHandler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		DB:              pool,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	dispatchDone := make(chan error, 1)
	go func() {
		dispatchDone <- dispatcher.Run(ctx, source)
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	if err := source.Close(); err != nil {
		logger.Warn("event source close failed", "error", err)
	}
	if err := <-dispatchDone; err != nil && err != context.Canceled {
		logger.Error("dispatcher stopped with error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("matchbot stopped")
}

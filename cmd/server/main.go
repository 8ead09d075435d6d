// Package main is the entry point for the Pharmalytics API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pharmalytics/internal/config"
	"pharmalytics/internal/domain/analytics"
	"pharmalytics/internal/infrastructure/cache"
	v1 "pharmalytics/internal/infrastructure/http/v1"
	"pharmalytics/internal/infrastructure/metrics"
	"pharmalytics/internal/infrastructure/storage/postgres"
	"pharmalytics/internal/infrastructure/storage/postgres/analytics_repo"
	"pharmalytics/pkg/logger"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Infow("starting pharmalytics server", "version", version, "cache_backend", cfg.Cache.Backend)

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	// --- Result cache ---
	store, err := cache.Open(ctx, cache.Config{
		Backend:         cfg.Cache.Backend,
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		Prefix:          cfg.Cache.Prefix,
		JanitorInterval: cfg.Cache.JanitorInterval,
	})
	if err != nil {
		log.Fatalw("failed to open result cache", "error", err)
	}
	defer store.Close()

	collector := metrics.New()

	// External writers NOTIFY stock_changed to drop stale analytics.
	invalidator := cache.NewInvalidator(pool.Unwrap(), store)
	invalidator.AddListener(collector.CacheInvalidated)
	if err := invalidator.Start(ctx); err != nil {
		log.Fatalw("failed to start cache invalidator", "error", err)
	}
	defer invalidator.Stop()

	// --- Analytics ---
	txm := postgres.NewTxManager(pool, cfg.Analytics.QueryTimeout)
	repo := analytics_repo.NewAnalyticsRepo(txm)
	service := analytics.NewService(repo, cfg.ServiceConfig(),
		analytics.WithCache(store),
		analytics.WithMetrics(collector),
	)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Analytics:      service,
		Database:       pool,
		Cache:          store,
		Metrics:        collector,
		MetricsHandler: collector.Handler(),
		Logger:         log,
		Version:        version,
		Development:    cfg.App.IsDevelopment(),
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	postgres.LogPoolStats(ctx, pool.Unwrap())

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

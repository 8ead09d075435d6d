// Package main is the entry point for the Pharmalytics cache warmer. It
// periodically recomputes the first report pages into the shared Redis cache.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"pharmalytics/internal/config"
	"pharmalytics/internal/domain/analytics"
	"pharmalytics/internal/infrastructure/cache"
	"pharmalytics/internal/infrastructure/metrics"
	"pharmalytics/internal/infrastructure/storage/postgres"
	"pharmalytics/internal/infrastructure/storage/postgres/analytics_repo"
	"pharmalytics/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Cache.Backend != config.CacheRedis {
		fmt.Printf("cache warmer requires CACHE_BACKEND=%s, got %q\n", config.CacheRedis, cfg.Cache.Backend)
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

	log.Info("starting pharmalytics cache warmer")

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.ApplicationName = "pharmalytics-warmer"
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	store, err := cache.Open(ctx, cache.Config{
		Backend:       cfg.Cache.Backend,
		RedisAddr:     cfg.Cache.RedisAddr,
		RedisPassword: cfg.Cache.RedisPassword,
		RedisDB:       cfg.Cache.RedisDB,
		Prefix:        cfg.Cache.Prefix,
	})
	if err != nil {
		log.Fatalw("failed to open result cache", "error", err)
	}
	defer store.Close()

	collector := metrics.New()

	txm := postgres.NewTxManager(pool, cfg.Analytics.QueryTimeout)
	service := analytics.NewService(analytics_repo.NewAnalyticsRepo(txm), cfg.ServiceConfig(),
		analytics.WithCache(store),
		analytics.WithMetrics(collector),
	)

	warmer := NewWarmer(service, collector, cfg.Warmer, log)

	metricsServer := &http.Server{
		Addr:              cfg.Warmer.MetricsAddr,
		Handler:           collector.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics server failed", "error", err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		warmer.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down warmer...")
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	log.Info("warmer stopped")
}

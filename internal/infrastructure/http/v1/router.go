// Package v1 provides HTTP API version 1.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmalytics/internal/domain/analytics"
	"pharmalytics/internal/infrastructure/cache"
	"pharmalytics/internal/infrastructure/http/v1/handlers"
	"pharmalytics/internal/infrastructure/http/v1/middleware"
	"pharmalytics/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Analytics computes reports and insight views
	Analytics *analytics.Service

	// Database is checked by readiness and reported by /health/info
	Database handlers.Database

	// Cache is the result cache backing Analytics
	Cache cache.Store

	// Metrics observes requests; MetricsHandler serves /metrics
	Metrics        middleware.RequestObserver
	MetricsHandler http.Handler

	// Logger for request logging
	Logger *logger.Logger

	Version     string
	Development bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (order matters!). Recovery sits inside ErrorHandler
	// so a recovered panic is still rendered as a 500 body.
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
	}
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	healthHandler := handlers.NewHealthHandler(cfg.Database, cfg.Cache, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	v1 := router.Group("/api/v1")
	registerStockAnalyticsRoutes(v1, cfg)

	return router
}

func registerStockAnalyticsRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	h := handlers.NewStockAnalyticsHandler(handlers.NewBaseHandler(), cfg.Analytics)

	sa := rg.Group("/stock-analytics")
	{
		sa.GET("", h.Report)
		sa.GET("/products/:id", h.Product)
		sa.GET("/abc/:category", h.ByCategory)
		sa.GET("/critical", h.Critical)
		sa.GET("/summary", h.Summary)
		sa.GET("/top", h.TopPerformers)
		sa.GET("/trend/:trend", h.ByTrend)
		sa.GET("/efficiency", h.Efficiency)
	}
}

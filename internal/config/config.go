// Package config loads process configuration from the environment.
// A .env file in the working directory is applied first if present; it never
// overrides variables already set in the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"pharmalytics/internal/domain/analytics"
	"pharmalytics/pkg/resilience"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds all settings for the server and warmer processes.
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Analytics AnalyticsConfig
	Retry     RetryConfig
	Policy    PolicyConfig
	Warmer    WarmerConfig
}

type AppConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// IsDevelopment reports whether the process runs in development mode.
func (c AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

type DatabaseConfig struct {
	URL      string
	MaxConns int
}

type CacheConfig struct {
	Backend         string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	Prefix          string
	JanitorInterval time.Duration
}

type AnalyticsConfig struct {
	WindowMonths     int
	ReportTTL        time.Duration
	InsightTTL       time.Duration
	CriticalTTL      time.Duration
	QueryTimeout     time.Duration
	SalesConcurrency int
	InsightBatch     int
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

type PolicyConfig struct {
	ServiceLevelZ   float64
	LeadTimeMonths  float64
	OrderingCost    float64
	HoldingCostRate float64
}

type WarmerConfig struct {
	Interval    time.Duration
	Pages       int
	Limit       int
	MetricsAddr string
}

// Load reads .env (if any) and the environment.
func Load() (*Config, error) {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Port:     getEnv("APP_PORT", "8080"),
			Env:      getEnv("APP_ENV", "development"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 25),
		},
		Cache: CacheConfig{
			Backend:         strings.ToLower(getEnv("CACHE_BACKEND", CacheMemory)),
			RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:   os.Getenv("REDIS_PASSWORD"),
			RedisDB:         getEnvInt("REDIS_DB", 0),
			Prefix:          getEnv("CACHE_PREFIX", "pharmalytics:"),
			JanitorInterval: getEnvDuration("CACHE_JANITOR_INTERVAL", 5*time.Minute),
		},
		Analytics: AnalyticsConfig{
			WindowMonths:     getEnvInt("ANALYTICS_WINDOW_MONTHS", 6),
			ReportTTL:        getEnvDuration("ANALYTICS_REPORT_TTL", 5*time.Minute),
			InsightTTL:       getEnvDuration("ANALYTICS_INSIGHT_TTL", 15*time.Minute),
			CriticalTTL:      getEnvDuration("ANALYTICS_CRITICAL_TTL", 10*time.Minute),
			QueryTimeout:     getEnvDuration("ANALYTICS_QUERY_TIMEOUT", 8*time.Second),
			SalesConcurrency: getEnvInt("ANALYTICS_SALES_CONCURRENCY", 8),
			InsightBatch:     getEnvInt("ANALYTICS_INSIGHT_BATCH", 1000),
		},
		Retry: RetryConfig{
			MaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 3),
			BaseDelay:   getEnvDuration("RETRY_BASE_DELAY", time.Second),
			MaxDelay:    getEnvDuration("RETRY_MAX_DELAY", 5*time.Second),
		},
		Policy: PolicyConfig{
			ServiceLevelZ:   getEnvFloat("POLICY_SERVICE_LEVEL_Z", 1.65),
			LeadTimeMonths:  getEnvFloat("POLICY_LEAD_TIME_MONTHS", 0.5),
			OrderingCost:    getEnvFloat("POLICY_ORDERING_COST", 50),
			HoldingCostRate: getEnvFloat("POLICY_HOLDING_COST_RATE", 0.20),
		},
		Warmer: WarmerConfig{
			Interval:    getEnvDuration("WARMER_INTERVAL", 4*time.Minute),
			Pages:       getEnvInt("WARMER_PAGES", 3),
			Limit:       getEnvInt("WARMER_LIMIT", 25),
			MetricsAddr: getEnv("WARMER_METRICS_ADDR", ":9091"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Cache.Backend != CacheMemory && c.Cache.Backend != CacheRedis {
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", CacheMemory, CacheRedis, c.Cache.Backend))
	}
	if c.Analytics.WindowMonths < 1 {
		errs = append(errs, fmt.Errorf("ANALYTICS_WINDOW_MONTHS must be positive, got %d", c.Analytics.WindowMonths))
	}
	if c.Analytics.SalesConcurrency < 1 {
		errs = append(errs, fmt.Errorf("ANALYTICS_SALES_CONCURRENCY must be positive, got %d", c.Analytics.SalesConcurrency))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("RETRY_MAX_ATTEMPTS must be positive, got %d", c.Retry.MaxAttempts))
	}
	return errors.Join(errs...)
}

// ServiceConfig maps the analytics, retry and policy settings onto the
// report service configuration.
func (c *Config) ServiceConfig() analytics.Config {
	retry := resilience.DefaultRetryPolicy()
	retry.MaxAttempts = c.Retry.MaxAttempts
	retry.BaseDelay = c.Retry.BaseDelay
	retry.MaxDelay = c.Retry.MaxDelay

	return analytics.Config{
		WindowMonths:     c.Analytics.WindowMonths,
		ReportTTL:        c.Analytics.ReportTTL,
		InsightTTL:       c.Analytics.InsightTTL,
		CriticalTTL:      c.Analytics.CriticalTTL,
		QueryTimeout:     c.Analytics.QueryTimeout,
		SalesConcurrency: c.Analytics.SalesConcurrency,
		InsightBatch:     c.Analytics.InsightBatch,
		Retry:            retry,
		Policy: analytics.PolicyConfig{
			ServiceLevelZ:   c.Policy.ServiceLevelZ,
			LeadTimeMonths:  c.Policy.LeadTimeMonths,
			OrderingCost:    c.Policy.OrderingCost,
			HoldingCostRate: c.Policy.HoldingCostRate,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

package main

import (
	"context"
	"time"

	"pharmalytics/internal/config"
	appctx "pharmalytics/internal/core/context"
	"pharmalytics/internal/domain/analytics"
	"pharmalytics/pkg/logger"
)

// PageWarmer recomputes one report page into the cache.
type PageWarmer interface {
	Warm(ctx context.Context, q analytics.ReportQuery) error
}

// WarmObserver records the outcome of each page.
type WarmObserver interface {
	WarmCompleted(success bool)
}

// Warmer keeps the first report pages hot.
type Warmer struct {
	target   PageWarmer
	obs      WarmObserver
	interval time.Duration
	pages    int
	limit    int
	log      *logger.Logger
}

// NewWarmer creates a warmer for cfg.Pages pages of cfg.Limit products.
func NewWarmer(target PageWarmer, obs WarmObserver, cfg config.WarmerConfig, log *logger.Logger) *Warmer {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 4 * time.Minute
	}
	pages := cfg.Pages
	if pages < 1 {
		pages = 1
	}
	return &Warmer{
		target:   target,
		obs:      obs,
		interval: interval,
		pages:    pages,
		limit:    cfg.Limit,
		log:      log.WithComponent("warmer"),
	}
}

// Run warms immediately and then on every tick until ctx is cancelled.
func (w *Warmer) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce warms every configured page in order and returns how many
// succeeded. A failed page does not stop the run.
func (w *Warmer) RunOnce(ctx context.Context) int {
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext())
	start := time.Now()
	warmed := 0

	for page := 1; page <= w.pages; page++ {
		if ctx.Err() != nil {
			break
		}
		q := analytics.ReportQuery{Page: page, Limit: w.limit, Mode: analytics.ModeFull}
		if err := w.target.Warm(ctx, q); err != nil {
			w.obs.WarmCompleted(false)
			logger.Warn(ctx, "failed to warm report page", "page", page, "limit", w.limit, "error", err)
			continue
		}
		w.obs.WarmCompleted(true)
		warmed++
	}

	w.log.Infow("cache warm run finished",
		"warmed", warmed,
		"pages", w.pages,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return warmed
}

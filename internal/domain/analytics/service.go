package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"pharmalytics/internal/core/apperror"
	"pharmalytics/pkg/logger"
	"pharmalytics/pkg/resilience"
)

var tracer = otel.Tracer("pharmalytics/analytics")

// Config tunes the report pipeline.
type Config struct {
	WindowMonths     int
	ReportTTL        time.Duration
	InsightTTL       time.Duration
	CriticalTTL      time.Duration
	QueryTimeout     time.Duration
	SalesConcurrency int
	InsightBatch     int
	Retry            resilience.RetryPolicy
	Policy           PolicyConfig
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		WindowMonths:     6,
		ReportTTL:        5 * time.Minute,
		InsightTTL:       15 * time.Minute,
		CriticalTTL:      10 * time.Minute,
		QueryTimeout:     8 * time.Second,
		SalesConcurrency: 8,
		InsightBatch:     MaxLimit,
		Retry:            resilience.DefaultRetryPolicy(),
		Policy:           DefaultPolicyConfig(),
	}
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables result caching.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides the time source used to place the trailing window.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service builds stock analytics reports.
type Service struct {
	repo    Repository
	cache   Cache
	metrics Metrics
	cfg     Config
	now     func() time.Time
	flight  singleflight.Group
}

// NewService creates a report service. Without WithCache every request is
// computed from storage.
func NewService(repo Repository, cfg Config, opts ...Option) *Service {
	if cfg.WindowMonths < 1 {
		cfg.WindowMonths = 6
	}
	if cfg.SalesConcurrency < 1 {
		cfg.SalesConcurrency = 1
	}
	if cfg.InsightBatch < 1 || cfg.InsightBatch > MaxLimit {
		cfg.InsightBatch = MaxLimit
	}
	s := &Service{
		repo:    repo,
		cfg:     cfg,
		metrics: nopMetrics{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report returns one page of stock analytics. Identical queries within the
// report TTL are served from cache. On terminal failure the returned envelope
// is the empty failure page and err describes the cause; the envelope is
// never nil.
func (s *Service) Report(ctx context.Context, q ReportQuery) (*PageEnvelope, error) {
	q = q.Normalize()
	ctx, span := tracer.Start(ctx, "analytics.report", trace.WithAttributes(
		attribute.Int("report.page", q.Page),
		attribute.Int("report.limit", q.Limit),
		attribute.String("report.mode", string(q.Mode)),
	))
	defer span.End()

	start := time.Now()
	env, err := loadThrough(ctx, s, q.CacheKey(), s.cfg.ReportTTL, func(ctx context.Context) (*PageEnvelope, error) {
		return s.computeWithRetry(ctx, q)
	})
	s.metrics.ReportCompleted(q.Mode, err == nil, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "report failed")
		logger.Error(ctx, "stock analytics failed", "page", q.Page, "limit", q.Limit, "mode", q.Mode, "error", err)
		return FailedEnvelope(q, err), err
	}
	return env, nil
}

// Warm recomputes the page for q and overwrites its cache entry.
func (s *Service) Warm(ctx context.Context, q ReportQuery) error {
	q = q.Normalize()
	env, err := s.computeWithRetry(ctx, q)
	if err != nil {
		return err
	}
	s.cacheSet(ctx, q.CacheKey(), env, s.cfg.ReportTTL)
	return nil
}

// FailedEnvelope is the self-consistent empty page returned on terminal
// failure.
func FailedEnvelope(q ReportQuery, err error) *PageEnvelope {
	q = q.Normalize()
	return &PageEnvelope{
		Products:   []ProductAnalytics{},
		Summary:    ReportSummary{},
		Pagination: Paginate(0, DefaultPage, q.Limit),
		Success:    false,
		Error:      "Stock analytics failed: " + failureMessage(err),
	}
}

func failureMessage(err error) string {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.Message
	}
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func (s *Service) computeWithRetry(ctx context.Context, q ReportQuery) (*PageEnvelope, error) {
	policy := s.cfg.Retry
	policy.OnRetry = func(int, time.Duration, error) {
		s.metrics.RetryAttempt("stock_analytics")
	}
	return resilience.Retry(ctx, "stock analytics", policy, func(ctx context.Context) (*PageEnvelope, error) {
		return s.compute(ctx, q)
	})
}

// compute runs the whole pipeline once. The count and product list are
// fetched concurrently and settle independently; only a failed product list
// fails the page.
func (s *Service) compute(ctx context.Context, q ReportQuery) (*PageEnvelope, error) {
	filter := ProductFilter{Search: q.Query}

	var (
		count    resilience.Result[int64]
		products resilience.Result[[]Product]
		g        errgroup.Group
	)
	g.Go(func() error {
		count = fetch(ctx, s, "count_products", func(ctx context.Context) (int64, error) {
			return s.repo.CountProducts(ctx, filter)
		})
		return nil
	})
	g.Go(func() error {
		products = fetch(ctx, s, "list_products", func(ctx context.Context) ([]Product, error) {
			return s.repo.ListProducts(ctx, filter, q.Offset(), q.Limit)
		})
		return nil
	})
	_ = g.Wait()

	for _, f := range resilience.Failures(count, products) {
		logger.Warn(ctx, "sub-query failed", "query", f.QueryName(), "error", f.Cause())
	}
	if products.Failed() {
		return nil, fmt.Errorf("list products: %w", products.Err)
	}
	rows := products.Value

	total := count.ValueOr(fallbackTotal(q, len(rows)))
	if count.Failed() {
		logger.Warn(ctx, "product count unavailable, using page-derived total",
			"kind", count.Kind, "total", total)
	}

	window := TrailingWindow(s.now(), s.cfg.WindowMonths)
	items := make([]ProductAnalytics, len(rows))

	var summary ReportSummary
	if q.Mode == ModeFast {
		for i, p := range rows {
			items[i] = FastRecord(p, window)
		}
		summary = SummarizeStockOnly(items)
	} else {
		sales := s.fetchSales(ctx, rows, window)
		for i, p := range rows {
			items[i] = Analyze(p, sales[i], window, s.cfg.Policy)
		}
		ClassifyABC(items)
		summary = Summarize(items)
	}

	return &PageEnvelope{
		Products:   items,
		Summary:    summary,
		Pagination: Paginate(total, q.Page, q.Limit),
		Success:    true,
	}, nil
}

// fallbackTotal is the product total this page proves when the count query
// failed. A full page implies at least one more product.
func fallbackTotal(q ReportQuery, rows int) int64 {
	total := int64(q.Offset() + rows)
	if rows == q.Limit {
		total++
	}
	return total
}

// fetchSales loads each product's window of sales with bounded concurrency.
// A product whose query fails gets no sales, which yields zero statistics.
func (s *Service) fetchSales(ctx context.Context, products []Product, w Window) [][]SaleEvent {
	sales := make([][]SaleEvent, len(products))
	outcomes := make([]resilience.Outcome, len(products))

	var g errgroup.Group
	g.SetLimit(s.cfg.SalesConcurrency)
	for i, p := range products {
		g.Go(func() error {
			res := fetch(ctx, s, "product_sales", func(ctx context.Context) ([]SaleEvent, error) {
				return s.repo.SalesForProduct(ctx, p.ID, w.Start(), w.End())
			})
			if res.Failed() {
				logger.Warn(ctx, "sales unavailable, defaulting to zero demand",
					"product_id", p.ID, "kind", res.Kind, "error", res.Err)
			}
			sales[i] = res.ValueOr(nil)
			outcomes[i] = res
			return nil
		})
	}
	_ = g.Wait()

	if failed := resilience.Failures(outcomes...); len(failed) > 0 {
		logger.Warn(ctx, "sales fan-out degraded", "failed", len(failed), "products", len(products))
	}
	return sales
}

func fetch[T any](ctx context.Context, s *Service, name string, fn func(ctx context.Context) (T, error)) resilience.Result[T] {
	ctx, span := tracer.Start(ctx, "analytics.fetch."+name)
	defer span.End()

	res := resilience.Settle(ctx, name, s.cfg.QueryTimeout, fn)
	s.metrics.QueryCompleted(name, res.Kind, res.Elapsed)
	if res.Failed() {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, string(res.Kind))
	}
	logger.Debug(ctx, "query settled", "query", name, "kind", res.Kind, "elapsed_ms", res.Elapsed.Milliseconds())
	return res
}

// Analyze runs aggregation, statistics, policy and recommendations for one
// product. The ABC category is left empty; it depends on the whole batch.
func Analyze(p Product, sales []SaleEvent, w Window, cfg PolicyConfig) ProductAnalytics {
	buckets := Aggregate(sales, w)
	stats := ComputeDemand(buckets)
	policy := cfg.Compute(stats, p.UnitCost)

	return ProductAnalytics{
		ProductID:     p.ID,
		ProductName:   p.Name,
		ProductCode:   p.Code,
		CurrentStock:  p.CurrentStock,
		AlertQuantity: p.AlertQuantity,
		UnitCost:      p.UnitCost,
		UnitPrice:     p.UnitPrice,

		MonthlySales:        buckets,
		TotalUnitsSold:      stats.TotalUnitsSold,
		TotalRevenue:        TotalRevenue(buckets),
		AverageMonthlyUnits: round2(stats.AverageMonthlyUnits),
		SalesTrend:          stats.Trend,
		DemandVariability:   round2(stats.Variability),

		OptimalStock:          roundUnits(policy.OptimalStock),
		SafetyStock:           roundUnits(policy.SafetyStock),
		ReorderPoint:          roundUnits(policy.ReorderPoint),
		EconomicOrderQuantity: roundUnits(policy.EconomicOrderQuantity),

		Recommendations: Recommend(RecommendationInput{
			CurrentStock:        p.CurrentStock,
			AlertQuantity:       p.AlertQuantity,
			OptimalStock:        policy.OptimalStock,
			AverageMonthlyUnits: stats.AverageMonthlyUnits,
			Variability:         stats.Variability,
			WindowMonths:        w.Len(),
		}),
	}
}

// FastRecord is the stock-only record used in fast mode.
func FastRecord(p Product, w Window) ProductAnalytics {
	return ProductAnalytics{
		ProductID:       p.ID,
		ProductName:     p.Name,
		ProductCode:     p.Code,
		CurrentStock:    p.CurrentStock,
		AlertQuantity:   p.AlertQuantity,
		UnitCost:        p.UnitCost,
		UnitPrice:       p.UnitPrice,
		MonthlySales:    EmptyBuckets(w),
		TotalRevenue:    decimal.Zero,
		SalesTrend:      TrendStable,
		ABCCategory:     CategoryC,
		Recommendations: []string{},
	}
}

func roundUnits(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int64(math.Round(v))
}

// loadThrough serves key from cache or computes, stores and returns it.
// Concurrent misses on the same key share one computation. The computation
// runs detached from any single caller and is bounded by computeBudget, so a
// caller that goes away only abandons its own wait. Failures are never cached.
func loadThrough[T any](ctx context.Context, s *Service, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := cacheGet[T](ctx, s, key); ok {
		return v, nil
	}

	ch := s.flight.DoChan(key, func() (v any, err error) {
		fctx, cancel := s.detach(ctx)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				logger.Error(fctx, "shared computation panicked", "key", key, "panic", fmt.Sprint(r))
				err = apperror.NewInternal(fmt.Errorf("computing %s: panic: %v", key, r))
			}
		}()

		val, err := compute(fctx)
		if err != nil {
			return nil, err
		}
		s.cacheSet(fctx, key, val, ttl)
		return val, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// detach returns a context that keeps ctx's values but not its cancellation,
// bounded by computeBudget.
func (s *Service) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if budget := s.computeBudget(); budget > 0 {
		return context.WithTimeout(detached, budget)
	}
	return context.WithCancel(detached)
}

// computeBudget is the longest a retried computation can legitimately take:
// every attempt runs the product queries and then the sales fan-out in waves
// of SalesConcurrency, each wave bounded by QueryTimeout, plus the backoff
// between attempts. Zero when queries are unbounded.
func (s *Service) computeBudget() time.Duration {
	if s.cfg.QueryTimeout <= 0 {
		return 0
	}
	attempts := s.cfg.Retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	waves := 1 + (MaxLimit+s.cfg.SalesConcurrency-1)/s.cfg.SalesConcurrency

	budget := time.Duration(attempts*waves) * s.cfg.QueryTimeout
	for i := 1; i < attempts; i++ {
		budget += s.cfg.Retry.Delay(i)
	}
	return budget
}

func cacheGet[T any](ctx context.Context, s *Service, key string) (T, bool) {
	var v T
	if s.cache == nil {
		return v, false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.Warn(ctx, "cache read failed, recomputing", "key", key, "error", err)
		ok = false
	}
	s.metrics.CacheLookup(ok)
	if !ok {
		logger.Debug(ctx, "cache miss", "key", key)
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		logger.Warn(ctx, "discarding undecodable cache entry", "key", key, "error", err)
		return v, false
	}
	logger.Debug(ctx, "cache hit", "key", key)
	return v, true
}

func (s *Service) cacheSet(ctx context.Context, key string, v any, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		logger.Warn(ctx, "cache encode failed", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, raw, ttl); err != nil {
		logger.Warn(ctx, "cache write failed", "key", key, "error", err)
	}
}

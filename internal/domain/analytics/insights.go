package analytics

import (
	"context"
	"fmt"
	"sort"

	"pharmalytics/internal/core/apperror"
)

// Insight views are derived from one large full-mode batch of the catalog.

// criticalOverstockFactor marks products far above optimal stock.
const criticalOverstockFactor = 1.5

// Top performer limits.
const (
	DefaultTopLimit = 10
	MaxTopLimit     = 100
)

// CriticalProducts groups products that need attention.
type CriticalProducts struct {
	Overstocked  []ProductAnalytics `json:"overstocked"`
	Understocked []ProductAnalytics `json:"understocked"`
	Critical     []ProductAnalytics `json:"critical"`
}

// CategoryEfficiency summarises stock efficiency within one ABC tier.
type CategoryEfficiency struct {
	Category          ABCCategory `json:"category"`
	TotalProducts     int         `json:"totalProducts"`
	AverageEfficiency float64     `json:"averageEfficiency"`
	OverstockedCount  int         `json:"overstockedCount"`
	UnderstockedCount int         `json:"understockedCount"`
}

func insightKey(parts ...any) string {
	key := CacheKeyPrefix + "insights"
	for _, p := range parts {
		key += fmt.Sprintf(":%v", p)
	}
	return key
}

// batch returns the full-mode analytics for the first InsightBatch products.
func (s *Service) batch(ctx context.Context) ([]ProductAnalytics, error) {
	env, err := s.Report(ctx, ReportQuery{Page: 1, Limit: s.cfg.InsightBatch, Mode: ModeFull})
	if err != nil {
		return nil, err
	}
	return env.Products, nil
}

// Product returns the analytics record of one product.
func (s *Service) Product(ctx context.Context, productID string) (*ProductAnalytics, error) {
	return loadThrough(ctx, s, insightKey("product", productID), s.cfg.InsightTTL, func(ctx context.Context) (*ProductAnalytics, error) {
		items, err := s.batch(ctx)
		if err != nil {
			return nil, err
		}
		p, ok := FindProduct(items, productID)
		if !ok {
			return nil, apperror.NewNotFound("product analytics", productID)
		}
		return &p, nil
	})
}

// ByCategory returns products in the given ABC tier.
func (s *Service) ByCategory(ctx context.Context, c ABCCategory) ([]ProductAnalytics, error) {
	return loadThrough(ctx, s, insightKey("abc", c), s.cfg.InsightTTL, func(ctx context.Context) ([]ProductAnalytics, error) {
		items, err := s.batch(ctx)
		if err != nil {
			return nil, err
		}
		return FilterByCategory(items, c), nil
	})
}

// Critical returns over-, under- and critically stocked products.
func (s *Service) Critical(ctx context.Context) (*CriticalProducts, error) {
	return loadThrough(ctx, s, insightKey("critical"), s.cfg.CriticalTTL, func(ctx context.Context) (*CriticalProducts, error) {
		items, err := s.batch(ctx)
		if err != nil {
			return nil, err
		}
		c := SplitCritical(items)
		return &c, nil
	})
}

// Summary returns the summary of the default first report page.
func (s *Service) Summary(ctx context.Context) (*ReportSummary, error) {
	return loadThrough(ctx, s, insightKey("summary"), s.cfg.InsightTTL, func(ctx context.Context) (*ReportSummary, error) {
		env, err := s.Report(ctx, ReportQuery{})
		if err != nil {
			return nil, err
		}
		return &env.Summary, nil
	})
}

// TopPerformers returns the limit best sellers by units sold.
func (s *Service) TopPerformers(ctx context.Context, limit int) ([]ProductAnalytics, error) {
	if limit < 1 {
		limit = DefaultTopLimit
	}
	if limit > MaxTopLimit {
		limit = MaxTopLimit
	}
	return loadThrough(ctx, s, insightKey("top", limit), s.cfg.InsightTTL, func(ctx context.Context) ([]ProductAnalytics, error) {
		items, err := s.batch(ctx)
		if err != nil {
			return nil, err
		}
		return TopByUnits(items, limit), nil
	})
}

// ByTrend returns products whose demand moves in the given direction.
func (s *Service) ByTrend(ctx context.Context, t Trend) ([]ProductAnalytics, error) {
	return loadThrough(ctx, s, insightKey("trend", t), s.cfg.InsightTTL, func(ctx context.Context) ([]ProductAnalytics, error) {
		items, err := s.batch(ctx)
		if err != nil {
			return nil, err
		}
		return FilterByTrend(items, t), nil
	})
}

// Efficiency returns stock efficiency per ABC tier.
func (s *Service) Efficiency(ctx context.Context) ([]CategoryEfficiency, error) {
	return loadThrough(ctx, s, insightKey("efficiency"), s.cfg.InsightTTL, func(ctx context.Context) ([]CategoryEfficiency, error) {
		items, err := s.batch(ctx)
		if err != nil {
			return nil, err
		}
		return EfficiencyByCategory(items), nil
	})
}

// FindProduct looks a product up by ID.
func FindProduct(items []ProductAnalytics, productID string) (ProductAnalytics, bool) {
	for _, p := range items {
		if p.ProductID == productID {
			return p, true
		}
	}
	return ProductAnalytics{}, false
}

// FilterByCategory keeps products in tier c, in input order.
func FilterByCategory(items []ProductAnalytics, c ABCCategory) []ProductAnalytics {
	return filter(items, func(p ProductAnalytics) bool { return p.ABCCategory == c })
}

// FilterByTrend keeps products with trend t, in input order.
func FilterByTrend(items []ProductAnalytics, t Trend) []ProductAnalytics {
	return filter(items, func(p ProductAnalytics) bool { return p.SalesTrend == t })
}

// SplitCritical classifies products against their optimal stock and alert
// thresholds. A product may appear in more than one group.
func SplitCritical(items []ProductAnalytics) CriticalProducts {
	return CriticalProducts{
		Overstocked: filter(items, func(p ProductAnalytics) bool {
			return isOverstocked(p, criticalOverstockFactor)
		}),
		Understocked: filter(items, isUnderstocked),
		Critical: filter(items, func(p ProductAnalytics) bool {
			return p.CurrentStock <= p.AlertQuantity || p.CurrentStock < p.ReorderPoint
		}),
	}
}

// TopByUnits returns the first n products by units sold, highest first.
func TopByUnits(items []ProductAnalytics, n int) []ProductAnalytics {
	sorted := make([]ProductAnalytics, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TotalUnitsSold > sorted[j].TotalUnitsSold
	})
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// EfficiencyByCategory reports per-tier efficiency. Tiers without products
// are omitted.
func EfficiencyByCategory(items []ProductAnalytics) []CategoryEfficiency {
	out := make([]CategoryEfficiency, 0, len(Categories))
	for _, c := range Categories {
		group := FilterByCategory(items, c)
		if len(group) == 0 {
			continue
		}
		e := CategoryEfficiency{Category: c, TotalProducts: len(group)}
		var sum float64
		for _, p := range group {
			if p.OptimalStock > 0 {
				sum += float64(p.CurrentStock) / float64(p.OptimalStock) * 100
			}
			if isOverstocked(p, overstockFactor) {
				e.OverstockedCount++
			}
			if isUnderstocked(p) {
				e.UnderstockedCount++
			}
		}
		e.AverageEfficiency = round2(sum / float64(len(group)))
		out = append(out, e)
	}
	return out
}

func filter(items []ProductAnalytics, keep func(ProductAnalytics) bool) []ProductAnalytics {
	out := make([]ProductAnalytics, 0)
	for _, p := range items {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

package analytics

import "math"

// Stock band multipliers relative to optimal stock.
const (
	overstockFactor  = 1.25
	understockFactor = 0.75
)

// Summarize aggregates a page of products using their rounded optimal stock.
func Summarize(items []ProductAnalytics) ReportSummary {
	s := ReportSummary{TotalProducts: len(items)}
	for _, p := range items {
		s.TotalCurrentStock += p.CurrentStock
		s.TotalOptimalStock += p.OptimalStock
		if isOverstocked(p, overstockFactor) {
			s.OverstockedCount++
		}
		if isUnderstocked(p) {
			s.UnderstockedCount++
		}
	}
	s.StockEfficiencyPercent = efficiency(s.TotalCurrentStock, s.TotalOptimalStock)
	return s
}

// SummarizeStockOnly aggregates records that carry no policy figures. The
// stock band counts need an optimal stock and stay zero.
func SummarizeStockOnly(items []ProductAnalytics) ReportSummary {
	s := ReportSummary{TotalProducts: len(items)}
	for _, p := range items {
		s.TotalCurrentStock += p.CurrentStock
	}
	return s
}

func isOverstocked(p ProductAnalytics, factor float64) bool {
	return float64(p.CurrentStock) > float64(p.OptimalStock)*factor
}

func isUnderstocked(p ProductAnalytics) bool {
	return float64(p.CurrentStock) < float64(p.OptimalStock)*understockFactor
}

// efficiency is current/optimal as a percentage, 0 when optimal is 0.
func efficiency(current, optimal int64) float64 {
	if optimal <= 0 {
		return 0
	}
	return round2(float64(current) / float64(optimal) * 100)
}

// Paginate computes page metadata; totalPages is ceil(total/limit).
func Paginate(total int64, page, limit int) Pagination {
	if limit < 1 {
		limit = DefaultLimit
	}
	if page < 1 {
		page = DefaultPage
	}
	if total < 0 {
		total = 0
	}
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return Pagination{
		CurrentPage:     page,
		TotalPages:      totalPages,
		TotalProducts:   total,
		Limit:           limit,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
}

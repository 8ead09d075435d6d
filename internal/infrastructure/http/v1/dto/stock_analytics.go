package dto

import (
	"pharmalytics/internal/domain/analytics"
)

// MonthlySalesResponse is one month of a product's sales history.
type MonthlySalesResponse struct {
	Month            string  `json:"month"`
	UnitsSold        int64   `json:"unitsSold"`
	Revenue          float64 `json:"revenue"`
	AverageUnitPrice float64 `json:"averageUnitPrice"`
}

// ProductAnalyticsResponse is the API representation of one product record.
type ProductAnalyticsResponse struct {
	ProductID             string                 `json:"productId"`
	ProductName           string                 `json:"productName"`
	ProductCode           string                 `json:"productCode"`
	CurrentStock          int64                  `json:"currentStock"`
	AlertQuantity         int64                  `json:"alertQuantity"`
	UnitCost              float64                `json:"unitCost"`
	UnitPrice             float64                `json:"unitPrice"`
	MonthlySales          []MonthlySalesResponse `json:"monthlySales"`
	TotalUnitsSold        int64                  `json:"totalUnitsSold"`
	AverageMonthlyUnits   float64                `json:"averageMonthlyUnits"`
	SalesTrend            string                 `json:"salesTrend"`
	DemandVariability     float64                `json:"demandVariability"`
	OptimalStock          int64                  `json:"optimalStock"`
	SafetyStock           int64                  `json:"safetyStock"`
	ReorderPoint          int64                  `json:"reorderPoint"`
	EconomicOrderQuantity int64                  `json:"economicOrderQuantity"`
	ABCCategory           string                 `json:"abcCategory"`
	Recommendations       []string               `json:"recommendations"`
}

// SummaryResponse aggregates one page of products.
type SummaryResponse struct {
	TotalProducts        int     `json:"totalProducts"`
	TotalCurrentStock    int64   `json:"totalCurrentStock"`
	TotalOptimalStock    int64   `json:"totalOptimalStock"`
	StockEfficiency      float64 `json:"stockEfficiency"`
	OverstockedProducts  int     `json:"overstockedProducts"`
	UnderstockedProducts int     `json:"understockedProducts"`
}

// PaginationResponse contains pagination metadata.
type PaginationResponse struct {
	CurrentPage     int   `json:"currentPage"`
	TotalPages      int   `json:"totalPages"`
	TotalProducts   int64 `json:"totalProducts"`
	Limit           int   `json:"limit"`
	HasNextPage     bool  `json:"hasNextPage"`
	HasPreviousPage bool  `json:"hasPreviousPage"`
}

// StockAnalyticsResponse is the report page body.
type StockAnalyticsResponse struct {
	Products   []ProductAnalyticsResponse `json:"products"`
	Summary    SummaryResponse            `json:"summary"`
	Pagination PaginationResponse         `json:"pagination"`
	Success    bool                       `json:"success"`
	Error      string                     `json:"error,omitempty"`
}

// CriticalProductsResponse groups products needing attention.
type CriticalProductsResponse struct {
	Overstocked  []ProductAnalyticsResponse `json:"overstocked"`
	Understocked []ProductAnalyticsResponse `json:"understocked"`
	Critical     []ProductAnalyticsResponse `json:"critical"`
}

// CategoryEfficiencyResponse is the stock efficiency of one ABC tier.
type CategoryEfficiencyResponse struct {
	Category          string  `json:"category"`
	TotalProducts     int     `json:"totalProducts"`
	AverageEfficiency float64 `json:"averageEfficiency"`
	OverstockedCount  int     `json:"overstockedCount"`
	UnderstockedCount int     `json:"understockedCount"`
}

// FromStockAnalyticsPage converts a report page.
func FromStockAnalyticsPage(env *analytics.PageEnvelope) StockAnalyticsResponse {
	return StockAnalyticsResponse{
		Products:   FromProductAnalyticsList(env.Products),
		Summary:    FromSummary(env.Summary),
		Pagination: PaginationResponse(env.Pagination),
		Success:    env.Success,
		Error:      env.Error,
	}
}

// FromProductAnalytics converts one product record.
func FromProductAnalytics(p analytics.ProductAnalytics) ProductAnalyticsResponse {
	months := make([]MonthlySalesResponse, len(p.MonthlySales))
	for i, m := range p.MonthlySales {
		months[i] = MonthlySalesResponse{
			Month:            m.Month,
			UnitsSold:        m.UnitsSold,
			Revenue:          Money(m.Revenue),
			AverageUnitPrice: Money(m.AverageUnitPrice),
		}
	}

	recs := p.Recommendations
	if recs == nil {
		recs = []string{}
	}

	return ProductAnalyticsResponse{
		ProductID:             p.ProductID,
		ProductName:           p.ProductName,
		ProductCode:           p.ProductCode,
		CurrentStock:          p.CurrentStock,
		AlertQuantity:         p.AlertQuantity,
		UnitCost:              Money(p.UnitCost),
		UnitPrice:             Money(p.UnitPrice),
		MonthlySales:          months,
		TotalUnitsSold:        p.TotalUnitsSold,
		AverageMonthlyUnits:   p.AverageMonthlyUnits,
		SalesTrend:            string(p.SalesTrend),
		DemandVariability:     p.DemandVariability,
		OptimalStock:          p.OptimalStock,
		SafetyStock:           p.SafetyStock,
		ReorderPoint:          p.ReorderPoint,
		EconomicOrderQuantity: p.EconomicOrderQuantity,
		ABCCategory:           string(p.ABCCategory),
		Recommendations:       recs,
	}
}

// FromProductAnalyticsList converts a list, never returning nil.
func FromProductAnalyticsList(items []analytics.ProductAnalytics) []ProductAnalyticsResponse {
	out := make([]ProductAnalyticsResponse, len(items))
	for i, p := range items {
		out[i] = FromProductAnalytics(p)
	}
	return out
}

// FromSummary converts a page summary.
func FromSummary(s analytics.ReportSummary) SummaryResponse {
	return SummaryResponse{
		TotalProducts:        s.TotalProducts,
		TotalCurrentStock:    s.TotalCurrentStock,
		TotalOptimalStock:    s.TotalOptimalStock,
		StockEfficiency:      s.StockEfficiencyPercent,
		OverstockedProducts:  s.OverstockedCount,
		UnderstockedProducts: s.UnderstockedCount,
	}
}

// FromCriticalProducts converts the critical product groups.
func FromCriticalProducts(c *analytics.CriticalProducts) CriticalProductsResponse {
	return CriticalProductsResponse{
		Overstocked:  FromProductAnalyticsList(c.Overstocked),
		Understocked: FromProductAnalyticsList(c.Understocked),
		Critical:     FromProductAnalyticsList(c.Critical),
	}
}

// FromCategoryEfficiency converts per-tier efficiency rows.
func FromCategoryEfficiency(rows []analytics.CategoryEfficiency) []CategoryEfficiencyResponse {
	out := make([]CategoryEfficiencyResponse, len(rows))
	for i, r := range rows {
		out[i] = CategoryEfficiencyResponse{
			Category:          string(r.Category),
			TotalProducts:     r.TotalProducts,
			AverageEfficiency: r.AverageEfficiency,
			OverstockedCount:  r.OverstockedCount,
			UnderstockedCount: r.UnderstockedCount,
		}
	}
	return out
}

// Package analytics turns per-sale history into demand statistics and
// inventory policy numbers for a page of products.
package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Trend is the direction of demand across the trailing window.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// ParseTrend validates a trend name.
func ParseTrend(s string) (Trend, bool) {
	switch t := Trend(strings.ToLower(s)); t {
	case TrendIncreasing, TrendDecreasing, TrendStable:
		return t, true
	}
	return "", false
}

// ABCCategory is the revenue tier of a product within a batch.
type ABCCategory string

const (
	CategoryA ABCCategory = "A"
	CategoryB ABCCategory = "B"
	CategoryC ABCCategory = "C"
)

// Categories lists the tiers in rank order.
var Categories = []ABCCategory{CategoryA, CategoryB, CategoryC}

// ParseCategory validates a category name.
func ParseCategory(s string) (ABCCategory, bool) {
	switch c := ABCCategory(strings.ToUpper(s)); c {
	case CategoryA, CategoryB, CategoryC:
		return c, true
	}
	return "", false
}

// Mode selects how much of the pipeline runs.
type Mode string

const (
	// ModeFull runs aggregation, statistics, policy, classification and
	// recommendations.
	ModeFull Mode = "full"
	// ModeFast skips sales entirely and returns stock levels only.
	ModeFast Mode = "fast"
)

// SaleEvent is one sale line read from storage.
type SaleEvent struct {
	Quantity   int64           `db:"quantity"`
	UnitPrice  decimal.Decimal `db:"unit_price"`
	OccurredAt time.Time       `db:"occurred_at"`
}

// Product is a catalog row with its current stock position.
type Product struct {
	ID            string          `db:"id"`
	Name          string          `db:"name"`
	Code          string          `db:"code"`
	CurrentStock  int64           `db:"current_stock"`
	AlertQuantity int64           `db:"alert_quantity"`
	UnitCost      decimal.Decimal `db:"unit_cost"`
	UnitPrice     decimal.Decimal `db:"unit_price"`
}

// MonthBucket is the sales total of one calendar month.
type MonthBucket struct {
	Month            string          `json:"month"`
	UnitsSold        int64           `json:"unitsSold"`
	Revenue          decimal.Decimal `json:"revenue"`
	AverageUnitPrice decimal.Decimal `json:"averageUnitPrice"`
}

// ProductAnalytics is the per-product output record. Policy quantities are
// rounded to whole units; AverageMonthlyUnits and DemandVariability to 2dp.
type ProductAnalytics struct {
	ProductID     string          `json:"productId"`
	ProductName   string          `json:"productName"`
	ProductCode   string          `json:"productCode"`
	CurrentStock  int64           `json:"currentStock"`
	AlertQuantity int64           `json:"alertQuantity"`
	UnitCost      decimal.Decimal `json:"unitCost"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`

	MonthlySales        []MonthBucket   `json:"monthlySales"`
	TotalUnitsSold      int64           `json:"totalUnitsSold"`
	TotalRevenue        decimal.Decimal `json:"totalRevenue"`
	AverageMonthlyUnits float64         `json:"averageMonthlyUnits"`
	SalesTrend          Trend           `json:"salesTrend"`
	DemandVariability   float64         `json:"demandVariability"`

	OptimalStock          int64 `json:"optimalStock"`
	SafetyStock           int64 `json:"safetyStock"`
	ReorderPoint          int64 `json:"reorderPoint"`
	EconomicOrderQuantity int64 `json:"economicOrderQuantity"`

	ABCCategory     ABCCategory `json:"abcCategory"`
	Recommendations []string    `json:"recommendations"`
}

// ReportSummary aggregates the products of one page.
type ReportSummary struct {
	TotalProducts          int     `json:"totalProducts"`
	TotalCurrentStock      int64   `json:"totalCurrentStock"`
	TotalOptimalStock      int64   `json:"totalOptimalStock"`
	StockEfficiencyPercent float64 `json:"stockEfficiency"`
	OverstockedCount       int     `json:"overstockedProducts"`
	UnderstockedCount      int     `json:"understockedProducts"`
}

// Pagination describes where a page sits in the filtered product set.
type Pagination struct {
	CurrentPage     int   `json:"currentPage"`
	TotalPages      int   `json:"totalPages"`
	TotalProducts   int64 `json:"totalProducts"`
	Limit           int   `json:"limit"`
	HasNextPage     bool  `json:"hasNextPage"`
	HasPreviousPage bool  `json:"hasPreviousPage"`
}

// PageEnvelope is the report response. It is either a complete page or, on
// terminal failure, an empty page with Success false and Error set.
type PageEnvelope struct {
	Products   []ProductAnalytics `json:"products"`
	Summary    ReportSummary      `json:"summary"`
	Pagination Pagination         `json:"pagination"`
	Success    bool               `json:"success"`
	Error      string             `json:"error,omitempty"`
}

// Page size limits.
const (
	DefaultPage  = 1
	DefaultLimit = 25
	MaxLimit     = 1000
)

// ReportQuery selects a report page.
type ReportQuery struct {
	Page  int
	Limit int
	Query string
	Mode  Mode
}

// Normalize clamps malformed input to safe defaults instead of rejecting it.
func (q ReportQuery) Normalize() ReportQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	q.Query = strings.TrimSpace(q.Query)
	switch Mode(strings.ToLower(string(q.Mode))) {
	case ModeFast:
		q.Mode = ModeFast
	default:
		q.Mode = ModeFull
	}
	return q
}

// Offset returns the number of rows before this page.
func (q ReportQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// CacheKeyPrefix namespaces every key this package writes.
const CacheKeyPrefix = "stock-analytics:"

// CacheKey identifies the report page for a normalized query.
func (q ReportQuery) CacheKey() string {
	return fmt.Sprintf("%spage-%d:limit-%d:q-%s:mode-%s", CacheKeyPrefix, q.Page, q.Limit, strings.ToLower(q.Query), q.Mode)
}

// ProductFilter restricts the product set at the storage level.
type ProductFilter struct {
	// Search matches product name or code, case-insensitively.
	Search string
}

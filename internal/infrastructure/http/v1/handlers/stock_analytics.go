package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmalytics/internal/core/apperror"
	"pharmalytics/internal/domain/analytics"
	"pharmalytics/internal/infrastructure/http/v1/dto"
)

// StockAnalyticsHandler handles stock analytics endpoints.
type StockAnalyticsHandler struct {
	*BaseHandler
	service *analytics.Service
}

// NewStockAnalyticsHandler creates a new stock analytics handler.
func NewStockAnalyticsHandler(base *BaseHandler, service *analytics.Service) *StockAnalyticsHandler {
	return &StockAnalyticsHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Report returns one page of stock analytics.
// GET /api/v1/stock-analytics?page=&limit=&q=&mode=
//
// Malformed paging is clamped, never rejected. A terminal failure is
// rendered as the empty page with success=false and status 500.
func (h *StockAnalyticsHandler) Report(c *gin.Context) {
	q := analytics.ReportQuery{
		Page:  h.ParseIntQuery(c, "page", analytics.DefaultPage),
		Limit: h.ParseIntQuery(c, "limit", analytics.DefaultLimit),
		Query: c.Query("q"),
		Mode:  analytics.Mode(c.DefaultQuery("mode", string(analytics.ModeFull))),
	}

	env, err := h.service.Report(c.Request.Context(), q)
	if err != nil {
		// Logged by middleware.Logger; the body is the failure page, not an AppError.
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, dto.FromStockAnalyticsPage(env))
		return
	}
	h.OK(c, dto.FromStockAnalyticsPage(env))
}

// Product returns the analytics record of one product.
// GET /api/v1/stock-analytics/products/:id
func (h *StockAnalyticsHandler) Product(c *gin.Context) {
	p, err := h.service.Product(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromProductAnalytics(*p))
}

// ByCategory returns products in one ABC tier.
// GET /api/v1/stock-analytics/abc/:category
func (h *StockAnalyticsHandler) ByCategory(c *gin.Context) {
	category, ok := analytics.ParseCategory(c.Param("category"))
	if !ok {
		h.Error(c, apperror.NewValidation("invalid ABC category").
			WithDetail("category", c.Param("category")).
			WithDetail("allowed", analytics.Categories))
		return
	}

	items, err := h.service.ByCategory(c.Request.Context(), category)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromProductAnalyticsList(items))
}

// Critical returns overstocked, understocked and critical products.
// GET /api/v1/stock-analytics/critical
func (h *StockAnalyticsHandler) Critical(c *gin.Context) {
	groups, err := h.service.Critical(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromCriticalProducts(groups))
}

// Summary returns the summary of the default first page.
// GET /api/v1/stock-analytics/summary
func (h *StockAnalyticsHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromSummary(*summary))
}

// TopPerformers returns the best sellers by units.
// GET /api/v1/stock-analytics/top?limit=
func (h *StockAnalyticsHandler) TopPerformers(c *gin.Context) {
	limit := h.ParseIntQuery(c, "limit", analytics.DefaultTopLimit)

	items, err := h.service.TopPerformers(c.Request.Context(), limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromProductAnalyticsList(items))
}

// ByTrend returns products with the given sales trend.
// GET /api/v1/stock-analytics/trend/:trend
func (h *StockAnalyticsHandler) ByTrend(c *gin.Context) {
	trend, ok := analytics.ParseTrend(c.Param("trend"))
	if !ok {
		h.Error(c, apperror.NewValidation("invalid sales trend").
			WithDetail("trend", c.Param("trend")))
		return
	}

	items, err := h.service.ByTrend(c.Request.Context(), trend)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromProductAnalyticsList(items))
}

// Efficiency returns stock efficiency per ABC tier.
// GET /api/v1/stock-analytics/efficiency
func (h *StockAnalyticsHandler) Efficiency(c *gin.Context) {
	rows, err := h.service.Efficiency(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromCategoryEfficiency(rows))
}

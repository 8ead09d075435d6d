package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmalytics/internal/core/apperror"
	"pharmalytics/internal/domain/analytics"
	"pharmalytics/internal/infrastructure/cache"
	"pharmalytics/internal/infrastructure/http/v1/dto"
	"pharmalytics/internal/infrastructure/http/v1/handlers"
	"pharmalytics/internal/infrastructure/storage/postgres"
	"pharmalytics/pkg/logger"
	"pharmalytics/pkg/resilience"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type stubRepo struct {
	products []analytics.Product
	sales    map[string][]analytics.SaleEvent
	err      error
}

func (r *stubRepo) CountProducts(_ context.Context, f analytics.ProductFilter) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	return int64(len(r.match(f))), nil
}

func (r *stubRepo) ListProducts(_ context.Context, f analytics.ProductFilter, offset, limit int) ([]analytics.Product, error) {
	if r.err != nil {
		return nil, r.err
	}
	items := r.match(f)
	if offset >= len(items) {
		return nil, nil
	}
	end := min(offset+limit, len(items))
	return items[offset:end], nil
}

func (r *stubRepo) SalesForProduct(_ context.Context, id string, _, _ time.Time) ([]analytics.SaleEvent, error) {
	return r.sales[id], nil
}

func (r *stubRepo) match(f analytics.ProductFilter) []analytics.Product {
	if f.Search == "" {
		return r.products
	}
	var out []analytics.Product
	for _, p := range r.products {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			out = append(out, p)
		}
	}
	return out
}

type stubDB struct{ err error }

func (d stubDB) Ping(context.Context) error { return d.err }
func (d stubDB) Stats() postgres.PoolStats { return postgres.PoolStats{MaxConns: 25} }

type recordingObserver struct{ routes []string }

func (o *recordingObserver) HTTPRequest(_, route string, _ int, _ time.Duration) {
	o.routes = append(o.routes, route)
}

func monthly(units ...int64) []analytics.SaleEvent {
	var out []analytics.SaleEvent
	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	for i, u := range units {
		if u == 0 {
			continue
		}
		out = append(out, analytics.SaleEvent{
			Quantity:   u,
			UnitPrice:  decimal.NewFromFloat(2.5),
			OccurredAt: start.AddDate(0, i, 0),
		})
	}
	return out
}

func newStubRepo() *stubRepo {
	mk := func(id, name string, stock int64) analytics.Product {
		return analytics.Product{
			ID: id, Name: name, Code: strings.ToUpper(id),
			CurrentStock: stock, AlertQuantity: 5,
			UnitCost: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(15),
		}
	}
	return &stubRepo{
		products: []analytics.Product{
			mk("amox", "Amoxicillin", 400),
			mk("ibup", "Ibuprofen", 3),
			mk("para", "Paracetamol", 100),
		},
		sales: map[string][]analytics.SaleEvent{
			"amox": monthly(10, 10, 10, 10, 10, 10),
			"ibup": monthly(20, 20, 20, 40, 40, 40),
			"para": monthly(50, 50, 50, 50, 50, 50),
		},
	}
}

func newTestRouter(t *testing.T, repo analytics.Repository, db handlers.Database) (*gin.Engine, *recordingObserver) {
	t.Helper()
	store := cache.NewMemoryStore()
	cfg := analytics.DefaultConfig()
	cfg.QueryTimeout = time.Second
	cfg.Retry = resilience.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	svc := analytics.NewService(repo, cfg,
		analytics.WithCache(store),
		analytics.WithClock(func() time.Time { return testNow }),
	)
	obs := &recordingObserver{}
	r := NewRouter(RouterConfig{
		Analytics:      svc,
		Database:       db,
		Cache:          store,
		Metrics:        obs,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) }),
		Logger:         logger.NewNop(),
		Version:        "test",
	})
	return r, obs
}

func get(t *testing.T, r http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestReport_Success(t *testing.T) {
	r, obs := newTestRouter(t, newStubRepo(), stubDB{})

	w := get(t, r, "/api/v1/stock-analytics?page=1&limit=2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	body := decode[dto.StockAnalyticsResponse](t, w)
	assert.True(t, body.Success)
	assert.Empty(t, body.Error)
	assert.Len(t, body.Products, 2)
	assert.Equal(t, dto.PaginationResponse{
		CurrentPage: 1, TotalPages: 2, TotalProducts: 3, Limit: 2, HasNextPage: true,
	}, body.Pagination)

	for _, p := range body.Products {
		assert.Len(t, p.MonthlySales, 6)
		assert.Equal(t, 10.0, p.UnitCost)
	}
	assert.Contains(t, obs.routes, "/api/v1/stock-analytics")

	// Money is rendered as a JSON number.
	assert.Contains(t, w.Body.String(), `"unitPrice":15`)
}

func TestReport_MalformedPagingIsClamped(t *testing.T) {
	r, _ := newTestRouter(t, newStubRepo(), stubDB{})

	w := get(t, r, "/api/v1/stock-analytics?page=abc&limit=-4&mode=bogus")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[dto.StockAnalyticsResponse](t, w)
	assert.Equal(t, 1, body.Pagination.CurrentPage)
	assert.Equal(t, analytics.DefaultLimit, body.Pagination.Limit)
	assert.Len(t, body.Products, 3)
}

func TestReport_FastMode(t *testing.T) {
	r, _ := newTestRouter(t, newStubRepo(), stubDB{})

	w := get(t, r, "/api/v1/stock-analytics?mode=fast&q=para")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[dto.StockAnalyticsResponse](t, w)
	require.Len(t, body.Products, 1)
	assert.Equal(t, "Paracetamol", body.Products[0].ProductName)
	assert.Equal(t, int64(0), body.Products[0].TotalUnitsSold)
	assert.Equal(t, "stable", body.Products[0].SalesTrend)
}

func TestReport_TerminalFailure(t *testing.T) {
	repo := newStubRepo()
	repo.err = apperror.NewTransient("list products", errors.New("connection refused"))
	r, _ := newTestRouter(t, repo, stubDB{})

	w := get(t, r, "/api/v1/stock-analytics?limit=10")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	body := decode[dto.StockAnalyticsResponse](t, w)
	assert.False(t, body.Success)
	assert.True(t, strings.HasPrefix(body.Error, "Stock analytics failed: "), body.Error)
	assert.Empty(t, body.Products)
	assert.NotNil(t, body.Products)
	assert.Equal(t, 0, body.Pagination.TotalPages)
	assert.Equal(t, 10, body.Pagination.Limit)
	assert.False(t, body.Pagination.HasNextPage)
	assert.False(t, body.Pagination.HasPreviousPage)
}

func TestInsights(t *testing.T) {
	r, _ := newTestRouter(t, newStubRepo(), stubDB{})

	t.Run("product", func(t *testing.T) {
		w := get(t, r, "/api/v1/stock-analytics/products/para")
		require.Equal(t, http.StatusOK, w.Code)
		p := decode[dto.ProductAnalyticsResponse](t, w)
		assert.Equal(t, int64(300), p.TotalUnitsSold)
		assert.Equal(t, 50.0, p.AverageMonthlyUnits)
	})

	t.Run("product not found", func(t *testing.T) {
		w := get(t, r, "/api/v1/stock-analytics/products/missing")
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apperror.CodeNotFound, decode[dto.ErrorResponse](t, w).Code)
	})

	t.Run("abc category", func(t *testing.T) {
		w := get(t, r, "/api/v1/stock-analytics/abc/c")
		require.Equal(t, http.StatusOK, w.Code)
		items := decode[[]dto.ProductAnalyticsResponse](t, w)
		for _, p := range items {
			assert.Equal(t, "C", p.ABCCategory)
		}
	})

	t.Run("invalid category", func(t *testing.T) {
		w := get(t, r, "/api/v1/stock-analytics/abc/z")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperror.CodeValidation, decode[dto.ErrorResponse](t, w).Code)
	})

	t.Run("trend", func(t *testing.T) {
		w := get(t, r, "/api/v1/stock-analytics/trend/increasing")
		require.Equal(t, http.StatusOK, w.Code)
		items := decode[[]dto.ProductAnalyticsResponse](t, w)
		require.Len(t, items, 1)
		assert.Equal(t, "ibup", items[0].ProductID)
	})

	t.Run("invalid trend", func(t *testing.T) {
		w := get(t, r, "/api/v1/stock-analytics/trend/sideways")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("top", func(t *testing.T) {
		w := get(t, r, "/api/v1/stock-analytics/top?limit=2")
		require.Equal(t, http.StatusOK, w.Code)
		items := decode[[]dto.ProductAnalyticsResponse](t, w)
		require.Len(t, items, 2)
		assert.Equal(t, "para", items[0].ProductID)
		assert.Equal(t, "ibup", items[1].ProductID)
	})

	t.Run("critical", func(t *testing.T) {
		w := get(t, r, "/api/v1/stock-analytics/critical")
		require.Equal(t, http.StatusOK, w.Code)
		groups := decode[dto.CriticalProductsResponse](t, w)
		ids := func(items []dto.ProductAnalyticsResponse) []string {
			var out []string
			for _, p := range items {
				out = append(out, p.ProductID)
			}
			return out
		}
		assert.Contains(t, ids(groups.Overstocked), "amox")
		assert.Contains(t, ids(groups.Critical), "ibup")
	})

	t.Run("summary", func(t *testing.T) {
		w := get(t, r, "/api/v1/stock-analytics/summary")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 3, decode[dto.SummaryResponse](t, w).TotalProducts)
	})

	t.Run("efficiency", func(t *testing.T) {
		w := get(t, r, "/api/v1/stock-analytics/efficiency")
		require.Equal(t, http.StatusOK, w.Code)
		rows := decode[[]dto.CategoryEfficiencyResponse](t, w)
		total := 0
		for _, row := range rows {
			total += row.TotalProducts
		}
		assert.Equal(t, 3, total)
	})
}

func TestInsights_BatchFailure(t *testing.T) {
	repo := newStubRepo()
	repo.err = apperror.NewTransient("list products", errors.New("connection refused"))
	r, _ := newTestRouter(t, repo, stubDB{})

	w := get(t, r, "/api/v1/stock-analytics/critical")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, apperror.CodeTransient, decode[dto.ErrorResponse](t, w).Code)
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, newStubRepo(), stubDB{})

	assert.Equal(t, http.StatusOK, get(t, r, "/health/live").Code)
	assert.Equal(t, http.StatusOK, get(t, r, "/health/ready").Code)

	w := get(t, r, "/health/info")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"backend":"memory"`)
	assert.Contains(t, w.Body.String(), `"maxConns":25`)

	assert.Equal(t, "ok", get(t, r, "/metrics").Body.String())
}

func TestHealth_NotReady(t *testing.T) {
	r, _ := newTestRouter(t, newStubRepo(), stubDB{err: errors.New("dial tcp: refused")})

	w := get(t, r, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unhealthy")
}

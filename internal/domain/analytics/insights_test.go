package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmalytics/internal/core/apperror"
)

func insightRepo() *fakeRepo {
	products := makeProducts(10)
	products[3].CurrentStock = 2 // below alert quantity
	products[7].CurrentStock = 500
	return &fakeRepo{
		products: products,
		sales: map[string][]SaleEvent{
			"prod-000": monthlySales(40, 40, 40, 10, 10, 10),
			"prod-001": monthlySales(5, 5, 5, 20, 20, 20),
			"prod-002": monthlySales(8, 8, 8, 8, 8, 8),
			"prod-003": monthlySales(30, 30, 30, 30, 30, 30),
			"prod-007": monthlySales(1, 1, 1, 1, 1, 1),
		},
	}
}

func TestInsights_Product(t *testing.T) {
	svc := newTestService(insightRepo(), WithCache(newFakeCache()))

	p, err := svc.Product(context.Background(), "prod-002")
	require.NoError(t, err)
	assert.Equal(t, "prod-002", p.ProductID)
	assert.Equal(t, int64(48), p.TotalUnitsSold)

	_, err = svc.Product(context.Background(), "missing")
	assert.True(t, apperror.IsNotFound(err))
}

func TestInsights_ByCategoryAndTrend(t *testing.T) {
	svc := newTestService(insightRepo())
	ctx := context.Background()

	a, err := svc.ByCategory(ctx, CategoryA)
	require.NoError(t, err)
	require.Len(t, a, 2)
	assert.Equal(t, "prod-003", a[0].ProductID)
	assert.Equal(t, "prod-000", a[1].ProductID)

	c, err := svc.ByCategory(ctx, CategoryC)
	require.NoError(t, err)
	assert.Len(t, c, 5)

	up, err := svc.ByTrend(ctx, TrendIncreasing)
	require.NoError(t, err)
	require.Len(t, up, 1)
	assert.Equal(t, "prod-001", up[0].ProductID)

	down, err := svc.ByTrend(ctx, TrendDecreasing)
	require.NoError(t, err)
	require.Len(t, down, 1)
	assert.Equal(t, "prod-000", down[0].ProductID)
}

func TestInsights_TopPerformers(t *testing.T) {
	svc := newTestService(insightRepo())

	top, err := svc.TopPerformers(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"prod-003", "prod-000", "prod-001"},
		[]string{top[0].ProductID, top[1].ProductID, top[2].ProductID})

	all, err := svc.TopPerformers(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, DefaultTopLimit)
}

func TestInsights_Critical(t *testing.T) {
	svc := newTestService(insightRepo())

	c, err := svc.Critical(context.Background())
	require.NoError(t, err)

	ids := func(items []ProductAnalytics) []string {
		out := make([]string, 0, len(items))
		for _, p := range items {
			out = append(out, p.ProductID)
		}
		return out
	}
	assert.Contains(t, ids(c.Critical), "prod-003")
	assert.Contains(t, ids(c.Understocked), "prod-003")
	assert.Contains(t, ids(c.Overstocked), "prod-007")
	assert.NotContains(t, ids(c.Overstocked), "prod-003")
}

func TestInsights_Efficiency(t *testing.T) {
	svc := newTestService(insightRepo())

	eff, err := svc.Efficiency(context.Background())
	require.NoError(t, err)
	require.Len(t, eff, 3)

	total := 0
	for i, e := range eff {
		assert.Equal(t, Categories[i], e.Category)
		total += e.TotalProducts
	}
	assert.Equal(t, 10, total)
}

func TestInsights_Summary(t *testing.T) {
	svc := newTestService(insightRepo())

	s, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, s.TotalProducts)
}

func TestInsights_PropagateBatchFailure(t *testing.T) {
	repo := &fakeRepo{listErr: apperror.NewTransient("list products", errors.New("down"))}
	cache := newFakeCache()
	svc := newTestService(repo, WithCache(cache))

	_, err := svc.Critical(context.Background())
	require.Error(t, err)
	assert.True(t, apperror.IsTransient(err))
	assert.Empty(t, cache.entries)
}

func TestEfficiencyByCategory(t *testing.T) {
	items := []ProductAnalytics{
		{ABCCategory: CategoryA, CurrentStock: 150, OptimalStock: 100},
		{ABCCategory: CategoryA, CurrentStock: 50, OptimalStock: 100},
		{ABCCategory: CategoryC, CurrentStock: 10, OptimalStock: 0},
	}

	eff := EfficiencyByCategory(items)

	require.Len(t, eff, 2)
	assert.Equal(t, CategoryEfficiency{Category: CategoryA, TotalProducts: 2, AverageEfficiency: 100, OverstockedCount: 1, UnderstockedCount: 1}, eff[0])
	assert.Equal(t, CategoryC, eff[1].Category)
	assert.Zero(t, eff[1].AverageEfficiency)
	assert.Equal(t, 1, eff[1].OverstockedCount)
}

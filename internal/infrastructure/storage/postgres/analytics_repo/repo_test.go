package analytics_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmalytics/internal/domain/analytics"
)

const productSelect = "SELECT p.id::text AS id, p.name AS name, p.product_code AS code, " +
	"p.stock_qty AS current_stock, p.alert_qty AS alert_quantity, " +
	"p.product_cost AS unit_cost, p.product_price AS unit_price FROM products p"

func TestCountQuery(t *testing.T) {
	repo := NewAnalyticsRepo(nil)

	sql, args, err := repo.countQuery(analytics.ProductFilter{}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM products p", sql)
	assert.Empty(t, args)

	sql, args, err = repo.countQuery(analytics.ProductFilter{Search: "  amox "}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM products p WHERE (p.name ILIKE $1 OR p.product_code ILIKE $2)", sql)
	assert.Equal(t, []any{"%amox%", "%amox%"}, args)
}

func TestListQuery(t *testing.T) {
	repo := NewAnalyticsRepo(nil)

	tests := []struct {
		name     string
		filter   analytics.ProductFilter
		offset   int
		limit    int
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "first page",
			limit:   25,
			wantSQL: productSelect + " ORDER BY p.name ASC, p.id ASC LIMIT 25",
		},
		{
			name:    "later page",
			offset:  50,
			limit:   25,
			wantSQL: productSelect + " ORDER BY p.name ASC, p.id ASC LIMIT 25 OFFSET 50",
		},
		{
			name:     "search",
			filter:   analytics.ProductFilter{Search: "para"},
			limit:    10,
			wantSQL:  productSelect + " WHERE (p.name ILIKE $1 OR p.product_code ILIKE $2) ORDER BY p.name ASC, p.id ASC LIMIT 10",
			wantArgs: []any{"%para%", "%para%"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := repo.listQuery(tt.filter, tt.offset, tt.limit).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestSalesQuery(t *testing.T) {
	repo := NewAnalyticsRepo(nil)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	sql, args, err := repo.salesQuery("p-1", from, to).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT s.qty AS quantity, s.sale_price AS unit_price, s.created_at AS occurred_at FROM sales s "+
			"WHERE s.product_id = $1::uuid AND s.created_at >= $2 AND s.created_at < $3 ORDER BY s.created_at ASC",
		sql)
	assert.Equal(t, []any{"p-1", from, to}, args)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off`, escapeLike("50% off"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\d`, escapeLike(`c:\d`))
}

// Package analytics_repo provides the PostgreSQL implementation of the
// stock analytics read model.
package analytics_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pharmalytics/internal/domain/analytics"
	"pharmalytics/internal/infrastructure/storage/postgres"
)

const (
	productsTable = "products p"
	salesTable    = "sales s"
)

// Column sources for the typed read model. Keys are db tags on
// analytics.Product / analytics.SaleEvent.
var (
	productColumns = postgres.SelectColumns[analytics.Product]("p", map[string]string{
		"id":             "id::text",
		"code":           "product_code",
		"current_stock":  "stock_qty",
		"alert_quantity": "alert_qty",
		"unit_cost":      "product_cost",
		"unit_price":     "product_price",
	})
	saleColumns = postgres.SelectColumns[analytics.SaleEvent]("s", map[string]string{
		"quantity":    "qty",
		"unit_price":  "sale_price",
		"occurred_at": "created_at",
	})
)

// AnalyticsRepo implements analytics.Repository. Every call runs in its own
// read-only transaction bounded by the TxManager's statement timeout.
type AnalyticsRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewAnalyticsRepo creates a new analytics repository.
func NewAnalyticsRepo(txm *postgres.TxManager) *AnalyticsRepo {
	return &AnalyticsRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ analytics.Repository = (*AnalyticsRepo)(nil)

// CountProducts returns the number of products matching filter.
func (r *AnalyticsRepo) CountProducts(ctx context.Context, filter analytics.ProductFilter) (int64, error) {
	sql, args, err := r.countQuery(filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var total int64
	err = r.txm.ReadOnly(ctx, "count_products", func(ctx context.Context, q postgres.Querier) error {
		return q.QueryRow(ctx, sql, args...).Scan(&total)
	})
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return total, nil
}

// ListProducts returns one page of products ordered by name.
func (r *AnalyticsRepo) ListProducts(ctx context.Context, filter analytics.ProductFilter, offset, limit int) ([]analytics.Product, error) {
	sql, args, err := r.listQuery(filter, offset, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	var products []analytics.Product
	err = r.txm.ReadOnly(ctx, "list_products", func(ctx context.Context, q postgres.Querier) error {
		return pgxscan.Select(ctx, q, &products, sql, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// SalesForProduct returns the product's sale events in [from, to).
func (r *AnalyticsRepo) SalesForProduct(ctx context.Context, productID string, from, to time.Time) ([]analytics.SaleEvent, error) {
	sql, args, err := r.salesQuery(productID, from, to).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sales query: %w", err)
	}

	var events []analytics.SaleEvent
	err = r.txm.ReadOnly(ctx, "sales_for_product", func(ctx context.Context, q postgres.Querier) error {
		return pgxscan.Select(ctx, q, &events, sql, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("sales for product %s: %w", productID, err)
	}
	return events, nil
}

func (r *AnalyticsRepo) countQuery(filter analytics.ProductFilter) squirrel.SelectBuilder {
	return applySearch(r.builder.Select("COUNT(*)").From(productsTable), filter)
}

func (r *AnalyticsRepo) listQuery(filter analytics.ProductFilter, offset, limit int) squirrel.SelectBuilder {
	q := applySearch(r.builder.Select(productColumns...).From(productsTable), filter).
		OrderBy("p.name ASC", "p.id ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	return q
}

func (r *AnalyticsRepo) salesQuery(productID string, from, to time.Time) squirrel.SelectBuilder {
	return r.builder.
		Select(saleColumns...).
		From(salesTable).
		Where(squirrel.Expr("s.product_id = ?::uuid", productID)).
		Where(squirrel.GtOrEq{"s.created_at": from}).
		Where(squirrel.Lt{"s.created_at": to}).
		OrderBy("s.created_at ASC")
}

// applySearch adds a case-insensitive substring match on name or code.
func applySearch(q squirrel.SelectBuilder, filter analytics.ProductFilter) squirrel.SelectBuilder {
	search := strings.TrimSpace(filter.Search)
	if search == "" {
		return q
	}
	pattern := "%" + escapeLike(search) + "%"
	return q.Where(squirrel.Or{
		squirrel.ILike{"p.name": pattern},
		squirrel.ILike{"p.product_code": pattern},
	})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user input match literally inside an ILIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

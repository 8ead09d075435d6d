package analytics

import (
	"context"
	"time"

	"pharmalytics/pkg/resilience"
)

// Repository reads the catalog and sales history.
type Repository interface {
	// CountProducts returns the number of products matching filter.
	CountProducts(ctx context.Context, filter ProductFilter) (int64, error)

	// ListProducts returns one page of products ordered by name.
	ListProducts(ctx context.Context, filter ProductFilter, offset, limit int) ([]Product, error)

	// SalesForProduct returns the product's sale events in [from, to).
	SalesForProduct(ctx context.Context, productID string, from, to time.Time) ([]SaleEvent, error)
}

// Cache stores serialized results with a TTL. An expired entry is a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Invalidate removes every key starting with prefix and returns how many
	// were removed.
	Invalidate(ctx context.Context, prefix string) (int, error)
}

// Metrics receives service events. Implementations must be safe for
// concurrent use.
type Metrics interface {
	CacheLookup(hit bool)
	QueryCompleted(query string, kind resilience.ErrorKind, elapsed time.Duration)
	RetryAttempt(operation string)
	ReportCompleted(mode Mode, success bool, elapsed time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) CacheLookup(bool) {}
func (nopMetrics) QueryCompleted(string, resilience.ErrorKind, time.Duration) {}
func (nopMetrics) RetryAttempt(string) {}
func (nopMetrics) ReportCompleted(Mode, bool, time.Duration) {}

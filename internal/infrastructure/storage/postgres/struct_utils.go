package postgres

import (
	"reflect"
	"sync"
)

// ExtractDBColumns extracts all column names from struct "db" tags.
// It handles embedded structs recursively.
//
// Usage:
//
//	columns := ExtractDBColumns[analytics.Product]()
//	// Returns: ["id", "name", "code", "current_stock", ...]
func ExtractDBColumns[T any]() []string {
	var zero T
	return cachedColumns(reflect.TypeOf(zero))
}

// SelectColumns builds a SELECT list for T where each db tag is read from
// table.source. Tags without an entry in sources read the column of the
// same name. The result aliases every expression back to its tag so pgxscan
// can map rows onto T.
//
//	SelectColumns[analytics.Product]("p", map[string]string{"code": "product_code"})
//	// ["p.id AS id", "p.name AS name", "p.product_code AS code", ...]
func SelectColumns[T any](table string, sources map[string]string) []string {
	tags := ExtractDBColumns[T]()
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		source := tag
		if s, ok := sources[tag]; ok {
			source = s
		}
		expr := source
		if table != "" {
			expr = table + "." + source
		}
		out = append(out, expr+" AS "+tag)
	}
	return out
}

// Global cache for extracted columns (thread-safe).
var columnCache sync.Map // map[reflect.Type][]string

func cachedColumns(t reflect.Type) []string {
	if t == nil {
		return nil
	}
	if cached, ok := columnCache.Load(t); ok {
		return cached.([]string)
	}
	cols := extractColumnsFromType(t)
	columnCache.Store(t, cols)
	return cols
}

// extractColumnsFromType recursively extracts column names from a type.
func extractColumnsFromType(t reflect.Type) []string {
	// Dereference pointer types
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return nil
	}

	var cols []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Anonymous {
			cols = append(cols, extractColumnsFromType(field.Type)...)
			continue
		}

		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		cols = append(cols, tag)
	}

	return cols
}

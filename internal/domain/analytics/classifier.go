package analytics

import "sort"

// ABC tier boundaries as cumulative tenths of the batch.
const (
	tierATenths = 2
	tierBTenths = 5
)

// ClassifyABC sorts items by trailing revenue, highest first, and assigns
// tiers: the top floor(N*0.2) are A, up to floor(N*0.5) are B, the rest C.
// Items with equal revenue keep their relative order. Classification covers
// only the given batch.
func ClassifyABC(items []ProductAnalytics) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].TotalRevenue.GreaterThan(items[j].TotalRevenue)
	})

	n := len(items)
	aCut := n * tierATenths / 10
	bCut := n * tierBTenths / 10
	for i := range items {
		switch {
		case i < aCut:
			items[i].ABCCategory = CategoryA
		case i < bCut:
			items[i].ABCCategory = CategoryB
		default:
			items[i].ABCCategory = CategoryC
		}
	}
}

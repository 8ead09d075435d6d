package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthLabelLayout formats bucket labels, e.g. "Jun 2025".
const MonthLabelLayout = "Jan 2006"

// Window is a trailing run of whole calendar months, oldest first.
type Window struct {
	months []time.Time
}

// TrailingWindow returns the n calendar months ending with the month of now.
// Month boundaries are computed in UTC.
func TrailingWindow(now time.Time, n int) Window {
	if n < 1 {
		n = 1
	}
	now = now.UTC()
	last := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	months := make([]time.Time, n)
	for i := 0; i < n; i++ {
		months[i] = last.AddDate(0, i-(n-1), 0)
	}
	return Window{months: months}
}

// Len returns the number of months in the window.
func (w Window) Len() int { return len(w.months) }

// Start is the first instant of the oldest month.
func (w Window) Start() time.Time { return w.months[0] }

// End is the first instant after the newest month.
func (w Window) End() time.Time { return w.months[len(w.months)-1].AddDate(0, 1, 0) }

// Contains reports whether t falls inside [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start()) && t.Before(w.End())
}

// Labels returns the month labels in chronological order.
func (w Window) Labels() []string {
	labels := make([]string, len(w.months))
	for i, m := range w.months {
		labels[i] = m.Format(MonthLabelLayout)
	}
	return labels
}

type monthTotals struct {
	units   int64
	revenue decimal.Decimal
}

// Aggregate buckets sale events into one MonthBucket per window month.
// Events outside the window are ignored and months without sales are
// zero-filled, so the result always has w.Len() entries.
func Aggregate(events []SaleEvent, w Window) []MonthBucket {
	totals := make(map[string]*monthTotals, w.Len())
	for _, e := range events {
		at := e.OccurredAt.UTC()
		if !w.Contains(at) {
			continue
		}
		label := at.Format(MonthLabelLayout)
		t, ok := totals[label]
		if !ok {
			t = &monthTotals{revenue: decimal.Zero}
			totals[label] = t
		}
		t.units += e.Quantity
		t.revenue = t.revenue.Add(e.UnitPrice.Mul(decimal.NewFromInt(e.Quantity)))
	}

	buckets := make([]MonthBucket, 0, w.Len())
	for _, label := range w.Labels() {
		b := MonthBucket{Month: label, Revenue: decimal.Zero, AverageUnitPrice: decimal.Zero}
		if t, ok := totals[label]; ok {
			b.UnitsSold = t.units
			b.Revenue = t.revenue
			if t.units > 0 {
				b.AverageUnitPrice = t.revenue.Div(decimal.NewFromInt(t.units)).Round(2)
			}
		}
		buckets = append(buckets, b)
	}
	return buckets
}

// EmptyBuckets returns zero-filled buckets for every window month.
func EmptyBuckets(w Window) []MonthBucket {
	return Aggregate(nil, w)
}

// TotalRevenue sums bucket revenue.
func TotalRevenue(buckets []MonthBucket) decimal.Decimal {
	total := decimal.Zero
	for _, b := range buckets {
		total = total.Add(b.Revenue)
	}
	return total
}

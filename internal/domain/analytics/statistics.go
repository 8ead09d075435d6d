package analytics

import "math"

// trendThresholdPct is the half-over-half change beyond which demand is
// considered to be moving.
const trendThresholdPct = 10.0

// DemandStats summarises monthly unit sales.
type DemandStats struct {
	TotalUnitsSold      int64
	AverageMonthlyUnits float64
	Variance            float64
	// Variability is the coefficient of variation, 0 when there is no demand.
	Variability float64
	Trend       Trend
}

// ComputeDemand derives demand statistics from a full window of buckets.
// The divisor for the mean and the population variance is the number of
// buckets, zero months included.
func ComputeDemand(buckets []MonthBucket) DemandStats {
	n := len(buckets)
	if n == 0 {
		return DemandStats{Trend: TrendStable}
	}

	units := make([]int64, n)
	var total int64
	for i, b := range buckets {
		units[i] = b.UnitsSold
		total += b.UnitsSold
	}

	mean := float64(total) / float64(n)
	var sq float64
	for _, u := range units {
		d := float64(u) - mean
		sq += d * d
	}
	variance := sq / float64(n)

	var cv float64
	if mean > 0 {
		cv = math.Sqrt(variance) / mean
	}

	return DemandStats{
		TotalUnitsSold:      total,
		AverageMonthlyUnits: mean,
		Variance:            variance,
		Variability:         cv,
		Trend:               SalesTrend(units),
	}
}

// SalesTrend compares mean units of the earlier and later half of the
// series. With an odd length the earlier half takes the extra month.
func SalesTrend(units []int64) Trend {
	if len(units) < 2 {
		return TrendStable
	}
	split := (len(units) + 1) / 2
	earlier := meanUnits(units[:split])
	later := meanUnits(units[split:])
	if earlier == 0 {
		return TrendStable
	}

	change := (later - earlier) / earlier * 100
	switch {
	case change > trendThresholdPct:
		return TrendIncreasing
	case change < -trendThresholdPct:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func meanUnits(units []int64) float64 {
	if len(units) == 0 {
		return 0
	}
	var sum int64
	for _, u := range units {
		sum += u
	}
	return float64(sum) / float64(len(units))
}

// round2 rounds half away from zero to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

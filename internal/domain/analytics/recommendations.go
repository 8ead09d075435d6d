package analytics

import "fmt"

// Recommendation texts.
const (
	RecSignificantlyOverstocked = "Significantly overstocked - consider reducing orders"
	RecModeratelyOverstocked    = "Moderately overstocked - monitor closely"
	RecCriticallyUnderstocked   = "Critically understocked - immediate reorder required"
	RecUnderstocked             = "Understocked - consider increasing stock levels"
	RecOptimal                  = "Stock levels are optimal"
	RecBelowAlert               = "Below alert quantity - reorder soon"
	RecHighVariability          = "High demand variability - consider increasing safety stock"
	RecLowVolume                = "Very low sales volume - review pricing and marketing"
)

// highVariability is the coefficient of variation above which safety stock
// should be raised.
const highVariability = 0.5

// RecommendationInput carries what the rules look at for one product.
type RecommendationInput struct {
	CurrentStock        int64
	AlertQuantity       int64
	OptimalStock        float64
	AverageMonthlyUnits float64
	Variability         float64
	WindowMonths        int
}

// Recommend evaluates every rule in order and returns all that apply.
// The stock level rule is skipped when there is no optimal stock to compare
// against.
func Recommend(in RecommendationInput) []string {
	recs := make([]string, 0, 4)

	if in.OptimalStock > 0 {
		diffPct := (float64(in.CurrentStock) - in.OptimalStock) / in.OptimalStock * 100
		switch {
		case diffPct > 50:
			recs = append(recs, RecSignificantlyOverstocked)
		case diffPct > 25:
			recs = append(recs, RecModeratelyOverstocked)
		case diffPct < -50:
			recs = append(recs, RecCriticallyUnderstocked)
		case diffPct < -25:
			recs = append(recs, RecUnderstocked)
		default:
			recs = append(recs, RecOptimal)
		}
	}

	if in.CurrentStock <= in.AlertQuantity {
		recs = append(recs, RecBelowAlert)
	}

	if in.Variability > highVariability {
		recs = append(recs, RecHighVariability)
	}

	switch {
	case in.AverageMonthlyUnits == 0:
		recs = append(recs, NoSalesRecommendation(in.WindowMonths))
	case in.AverageMonthlyUnits < 1:
		recs = append(recs, RecLowVolume)
	}

	return recs
}

// NoSalesRecommendation is emitted for products with no sales in the window.
func NoSalesRecommendation(months int) string {
	return fmt.Sprintf("No sales in %d months - consider discontinuing or marketing", months)
}

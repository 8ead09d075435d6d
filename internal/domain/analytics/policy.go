package analytics

import (
	"math"

	"github.com/shopspring/decimal"
)

// PolicyConfig holds the fixed operating parameters of the inventory policy.
type PolicyConfig struct {
	// ServiceLevelZ is the z-score of the target service level.
	ServiceLevelZ float64
	// LeadTimeMonths is the replenishment lead time.
	LeadTimeMonths float64
	// OrderingCost is the fixed cost of placing one order.
	OrderingCost float64
	// HoldingCostRate is the annual holding cost as a fraction of unit cost.
	HoldingCostRate float64
}

// DefaultPolicyConfig is a 95% service level with a two-week lead time.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		ServiceLevelZ:   1.65,
		LeadTimeMonths:  0.5,
		OrderingCost:    50,
		HoldingCostRate: 0.20,
	}
}

// Policy holds unrounded stock targets for one product.
type Policy struct {
	SafetyStock           float64
	ReorderPoint          float64
	EconomicOrderQuantity float64
	OptimalStock          float64
}

// Compute derives safety stock, reorder point, EOQ and optimal stock.
func (c PolicyConfig) Compute(d DemandStats, unitCost decimal.Decimal) Policy {
	avg := d.AverageMonthlyUnits
	stdDev := avg * d.Variability

	safety := math.Max(0, c.ServiceLevelZ*math.Sqrt(math.Max(0, c.LeadTimeMonths))*stdDev)
	reorder := avg*c.LeadTimeMonths + safety
	eoq := c.EconomicOrderQuantity(avg, unitCost)
	optimal := math.Max(0, safety+eoq/2+avg*0.5)

	return Policy{
		SafetyStock:           safety,
		ReorderPoint:          math.Max(safety, reorder),
		EconomicOrderQuantity: eoq,
		OptimalStock:          optimal,
	}
}

// EconomicOrderQuantity returns sqrt(2*D*K/h) for annual demand D. A zero
// holding cost falls back to two months of demand.
func (c PolicyConfig) EconomicOrderQuantity(avgMonthlyUnits float64, unitCost decimal.Decimal) float64 {
	annualDemand := avgMonthlyUnits * 12
	holdingCost := unitCost.InexactFloat64() * c.HoldingCostRate
	if holdingCost <= 0 {
		return avgMonthlyUnits * 2
	}
	return math.Sqrt(math.Max(0, 2*annualDemand*c.OrderingCost/holdingCost))
}

package calc

import (
	"math"

	"github.com/iwvelando/venture-calc/pkg/mathutil"
	"github.com/shopspring/decimal"
)

// BreakevenParams are the inputs to a breakeven analysis.
type BreakevenParams struct {
	FixedCosts   float64 `json:"fixedCosts" mapstructure:"fixedCosts" yaml:"fixedCosts"`
	VariableCost float64 `json:"variableCost" mapstructure:"variableCost" yaml:"variableCost"`
	Price        float64 `json:"price" mapstructure:"price" yaml:"price"`
}

// BreakevenResult is the outcome of a breakeven analysis.
type BreakevenResult struct {
	Units                   int64   `json:"units"`
	Revenue                 float64 `json:"revenue"`
	ContributionMargin      float64 `json:"contributionMargin"`
	ContributionMarginRatio float64 `json:"contributionMarginRatio"`
}

// Breakeven returns the whole number of units that must be sold to cover
// fixed costs: ceil(fixedCosts / (price - variableCost)). The division runs
// in decimal so that margins such as 0.3 - 0.2 do not round up a unit.
func Breakeven(p BreakevenParams) (BreakevenResult, error) {
	if err := requireFinite(p); err != nil {
		return BreakevenResult{}, err
	}
	if p.FixedCosts < 0 {
		return BreakevenResult{}, invalid("fixedCosts", "must not be negative")
	}
	if p.VariableCost < 0 {
		return BreakevenResult{}, invalid("variableCost", "must not be negative")
	}
	if p.Price <= p.VariableCost {
		return BreakevenResult{}, invalid("price", "must be greater than variable cost")
	}

	price := decimal.NewFromFloat(p.Price)
	margin := price.Sub(decimal.NewFromFloat(p.VariableCost))
	units := decimal.NewFromFloat(p.FixedCosts).Div(margin).Ceil()
	if !units.LessThanOrEqual(decimal.NewFromInt(math.MaxInt64)) {
		return BreakevenResult{}, invalid("fixedCosts", "breakeven unit count exceeds supported range")
	}

	result := BreakevenResult{
		Units:                   units.IntPart(),
		Revenue:                 units.Mul(price).InexactFloat64(),
		ContributionMargin:      margin.InexactFloat64(),
		ContributionMarginRatio: mathutil.CalculatePercentage(margin.InexactFloat64(), p.Price),
	}
	if err := requireFiniteResult(result, "price", "breakeven revenue overflows"); err != nil {
		return BreakevenResult{}, err
	}
	return result, nil
}

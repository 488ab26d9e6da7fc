package calc

import (
	"github.com/iwvelando/venture-calc/pkg/constants"
	"github.com/iwvelando/venture-calc/pkg/mathutil"
)

// Unit economics health labels.
const (
	HealthHealthy      = "healthy"
	HealthMarginal     = "marginal"
	HealthUnprofitable = "unprofitable"
)

// UnitEconomicsParams describe a single customer. Price and cost are monthly;
// churn is percent per month.
type UnitEconomicsParams struct {
	Price     float64 `json:"price" mapstructure:"price" yaml:"price"`
	Cost      float64 `json:"cost" mapstructure:"cost" yaml:"cost"`
	CAC       float64 `json:"cac" mapstructure:"cac" yaml:"cac"`
	ChurnRate float64 `json:"churnRate" mapstructure:"churnRate" yaml:"churnRate"`
}

// UnitEconomicsResult is the outcome of a unit economics analysis. LTVToCAC
// is nil when acquisition is free.
type UnitEconomicsResult struct {
	ContributionMargin float64  `json:"contributionMargin"`
	GrossMarginPercent float64  `json:"grossMarginPercent"`
	LifetimeMonths     float64  `json:"lifetimeMonths"`
	LTV                float64  `json:"ltv"`
	LTVToCAC           *float64 `json:"ltvToCac,omitempty"`
	CACPaybackMonths   float64  `json:"cacPaybackMonths"`
	Health             string   `json:"health"`
}

// UnitEconomics computes contribution margin, customer lifetime value, and
// acquisition payback for one customer.
func UnitEconomics(p UnitEconomicsParams) (UnitEconomicsResult, error) {
	if err := requireFinite(p); err != nil {
		return UnitEconomicsResult{}, err
	}
	if p.Cost < 0 {
		return UnitEconomicsResult{}, invalid("cost", "must not be negative")
	}
	if p.Price <= p.Cost {
		return UnitEconomicsResult{}, invalid("price", "must be greater than cost")
	}
	if p.CAC < 0 {
		return UnitEconomicsResult{}, invalid("cac", "must not be negative")
	}
	if p.ChurnRate <= 0 || p.ChurnRate > constants.PercentageMultiplier {
		return UnitEconomicsResult{}, invalid("churnRate", "must be greater than 0 and at most 100")
	}

	margin := p.Price - p.Cost
	lifetime := constants.PercentageMultiplier / p.ChurnRate
	ltv := margin * lifetime

	result := UnitEconomicsResult{
		ContributionMargin: margin,
		GrossMarginPercent: mathutil.CalculatePercentage(margin, p.Price),
		LifetimeMonths:     lifetime,
		LTV:                ltv,
		CACPaybackMonths:   p.CAC / margin,
		Health:             HealthHealthy,
	}

	if p.CAC > 0 {
		ratio := ltv / p.CAC
		result.LTVToCAC = &ratio
		switch {
		case ratio >= constants.HealthyLTVToCAC:
			result.Health = HealthHealthy
		case ratio >= constants.MarginalLTVToCAC:
			result.Health = HealthMarginal
		default:
			result.Health = HealthUnprofitable
		}
	}

	if err := requireFiniteResult(result, "churnRate", "lifetime value overflows"); err != nil {
		return UnitEconomicsResult{}, err
	}
	return result, nil
}

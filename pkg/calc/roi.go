package calc

import (
	"math"

	"github.com/iwvelando/venture-calc/pkg/constants"
	"github.com/iwvelando/venture-calc/pkg/mathutil"
)

// ROIParams are the inputs to an ROI projection. Revenue and costs are annual.
type ROIParams struct {
	Investment     float64 `json:"investment" mapstructure:"investment" yaml:"investment"`
	Revenue        float64 `json:"revenue" mapstructure:"revenue" yaml:"revenue"`
	Costs          float64 `json:"costs" mapstructure:"costs" yaml:"costs"`
	Years          int     `json:"years" mapstructure:"years" yaml:"years"`
	GrowthRate     float64 `json:"growthRate,omitempty" mapstructure:"growthRate" yaml:"growthRate,omitempty"`
	CostGrowthRate float64 `json:"costGrowthRate,omitempty" mapstructure:"costGrowthRate" yaml:"costGrowthRate,omitempty"`
}

// ROIYear is one year of an ROI projection.
type ROIYear struct {
	Year          int     `json:"year"`
	Revenue       float64 `json:"revenue"`
	Costs         float64 `json:"costs"`
	Net           float64 `json:"net"`
	CumulativeNet float64 `json:"cumulativeNet"`
}

// ROIResult is the outcome of an ROI projection.
type ROIResult struct {
	ROI           float64   `json:"roi"`
	NetProfit     float64   `json:"netProfit"`
	TotalNet      float64   `json:"totalNet"`
	AnnualizedROI float64   `json:"annualizedRoi"`
	PaybackYears  *float64  `json:"paybackYears,omitempty"`
	Years         []ROIYear `json:"years"`
}

// ROI projects return on an investment over a number of years. Revenue
// compounds by GrowthRate and costs by CostGrowthRate, both percent per year.
func ROI(p ROIParams) (ROIResult, error) {
	if err := requireFinite(p); err != nil {
		return ROIResult{}, err
	}
	if p.Investment <= 0 {
		return ROIResult{}, invalid("investment", "must be greater than zero")
	}
	if p.Years <= 0 {
		return ROIResult{}, invalid("years", "must be greater than zero")
	}
	if p.Years > MaxYears {
		return ROIResult{}, invalid("years", "must be at most %d", MaxYears)
	}
	if p.GrowthRate <= -constants.PercentageMultiplier {
		return ROIResult{}, invalid("growthRate", "must be greater than -100")
	}
	if p.CostGrowthRate <= -constants.PercentageMultiplier {
		return ROIResult{}, invalid("costGrowthRate", "must be greater than -100")
	}

	var result ROIResult
	result.Years = make([]ROIYear, 0, p.Years)

	cumulative := 0.0
	for year := 1; year <= p.Years; year++ {
		revenue := mathutil.Grow(p.Revenue, p.GrowthRate, year-1)
		costs := mathutil.Grow(p.Costs, p.CostGrowthRate, year-1)
		net := revenue - costs
		previous := cumulative
		cumulative += net

		if result.PaybackYears == nil && mathutil.IsPositive(net) && previous < p.Investment && cumulative >= p.Investment {
			payback := float64(year-1) + (p.Investment-previous)/net
			result.PaybackYears = &payback
		}

		result.Years = append(result.Years, ROIYear{
			Year:          year,
			Revenue:       revenue,
			Costs:         costs,
			Net:           net,
			CumulativeNet: cumulative,
		})
	}

	result.TotalNet = cumulative
	result.NetProfit = cumulative - p.Investment
	result.ROI = result.NetProfit / p.Investment * constants.PercentageMultiplier

	finalValue := p.Investment + result.NetProfit
	if finalValue <= 0 {
		result.AnnualizedROI = -constants.PercentageMultiplier
	} else {
		result.AnnualizedROI = (math.Pow(finalValue/p.Investment, 1/float64(p.Years)) - 1) * constants.PercentageMultiplier
	}

	if err := requireFiniteResult(result, "growthRate", "projection overflows"); err != nil {
		return ROIResult{}, err
	}
	return result, nil
}

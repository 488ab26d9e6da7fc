package calc

import (
	"math"

	"github.com/iwvelando/venture-calc/pkg/constants"
	"github.com/iwvelando/venture-calc/pkg/mathutil"
)

// NPVParams are the inputs to a discounted cash flow analysis. CashFlows[i]
// arrives at the end of period i+1; DiscountRate is percent per period.
type NPVParams struct {
	DiscountRate      float64   `json:"discountRate" mapstructure:"discountRate" yaml:"discountRate"`
	InitialInvestment float64   `json:"initialInvestment" mapstructure:"initialInvestment" yaml:"initialInvestment"`
	CashFlows         []float64 `json:"cashFlows" mapstructure:"cashFlows" yaml:"cashFlows"`
}

// NPVResult is the outcome of a discounted cash flow analysis.
type NPVResult struct {
	NPV                     float64   `json:"npv"`
	PresentValues           []float64 `json:"presentValues"`
	TotalPresentValue       float64   `json:"totalPresentValue"`
	ProfitabilityIndex      float64   `json:"profitabilityIndex"`
	IRR                     *float64  `json:"irr,omitempty"`
	DiscountedPaybackPeriod *float64  `json:"discountedPaybackPeriod,omitempty"`
}

// NPV discounts the cash flows back to period zero and nets the initial
// investment. IRR is found by bisection and omitted when the flows never
// change the sign of NPV within the search bracket.
func NPV(p NPVParams) (NPVResult, error) {
	if err := requireFinite(p); err != nil {
		return NPVResult{}, err
	}
	if p.DiscountRate <= -constants.PercentageMultiplier {
		return NPVResult{}, invalid("discountRate", "must be greater than -100")
	}
	if p.InitialInvestment < 0 {
		return NPVResult{}, invalid("initialInvestment", "must not be negative")
	}
	if len(p.CashFlows) == 0 {
		return NPVResult{}, invalid("cashFlows", "must contain at least one period")
	}
	if len(p.CashFlows) > MaxPeriods {
		return NPVResult{}, invalid("cashFlows", "must contain at most %d periods", MaxPeriods)
	}

	rate := mathutil.PercentToRate(p.DiscountRate)
	result := NPVResult{PresentValues: make([]float64, len(p.CashFlows))}

	cumulative := -p.InitialInvestment
	if p.InitialInvestment == 0 {
		zero := 0.0
		result.DiscountedPaybackPeriod = &zero
	}
	for i, flow := range p.CashFlows {
		pv := flow / math.Pow(1+rate, float64(i+1))
		result.PresentValues[i] = pv
		result.TotalPresentValue += pv

		previous := cumulative
		cumulative += pv
		if result.DiscountedPaybackPeriod == nil && pv > 0 && previous < 0 && cumulative >= 0 {
			period := float64(i) + (-previous)/pv
			result.DiscountedPaybackPeriod = &period
		}
	}

	result.NPV = result.TotalPresentValue - p.InitialInvestment
	if p.InitialInvestment > 0 {
		result.ProfitabilityIndex = result.TotalPresentValue / p.InitialInvestment
	}
	if irr, ok := internalRateOfReturn(p.InitialInvestment, p.CashFlows); ok {
		result.IRR = &irr
	}

	if err := requireFiniteResult(result, "discountRate", "discounting overflows"); err != nil {
		return NPVResult{}, err
	}
	return result, nil
}

func netPresentValue(ratePercent, initial float64, flows []float64) float64 {
	rate := mathutil.PercentToRate(ratePercent)
	total := -initial
	for i, flow := range flows {
		total += flow / math.Pow(1+rate, float64(i+1))
	}
	return total
}

// internalRateOfReturn returns the IRR in percent per period.
func internalRateOfReturn(initial float64, flows []float64) (float64, bool) {
	lo, hi := constants.IRRLowerBound, constants.IRRUpperBound
	fLo := netPresentValue(lo, initial, flows)
	fHi := netPresentValue(hi, initial, flows)
	if math.IsNaN(fLo) || math.IsNaN(fHi) || math.IsInf(fLo, 0) || math.IsInf(fHi, 0) {
		return 0, false
	}
	if fLo == 0 {
		return lo, true
	}
	if fHi == 0 {
		return hi, true
	}
	if (fLo > 0) == (fHi > 0) {
		return 0, false
	}

	mid := lo
	for i := 0; i < constants.IRRMaxIterations; i++ {
		mid = (lo + hi) / 2
		fMid := netPresentValue(mid, initial, flows)
		if math.Abs(fMid) < constants.IRRTolerance || (hi-lo)/2 < constants.IRRTolerance {
			return mid, true
		}
		if (fMid > 0) == (fLo > 0) {
			lo, fLo = mid, fMid
		} else {
			hi = mid
		}
	}
	return mid, true
}

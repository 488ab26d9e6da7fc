package calc

import (
	"github.com/iwvelando/venture-calc/pkg/constants"
	"github.com/iwvelando/venture-calc/pkg/loans"
	"github.com/iwvelando/venture-calc/pkg/mathutil"
	"go.uber.org/zap"
)

// LoanParams are the inputs to a loan payment calculation. Rate is annual percent.
type LoanParams struct {
	Principal       float64              `json:"principal" mapstructure:"principal" yaml:"principal"`
	Rate            float64              `json:"rate" mapstructure:"rate" yaml:"rate"`
	TermMonths      int                  `json:"termMonths" mapstructure:"termMonths" yaml:"termMonths"`
	DownPayment     float64              `json:"downPayment,omitempty" mapstructure:"downPayment" yaml:"downPayment,omitempty"`
	ExtraPayments   []loans.ExtraPayment `json:"extraPayments,omitempty" mapstructure:"extraPayments" yaml:"extraPayments,omitempty"`
	IncludeSchedule bool                 `json:"includeSchedule,omitempty" mapstructure:"includeSchedule" yaml:"includeSchedule,omitempty"`
}

// LoanResult is the outcome of a loan payment calculation. Without extra
// payments MonthlyPayment * TermMonths equals TotalPayment and
// TotalPayment - Financed equals TotalInterest.
type LoanResult struct {
	Financed       float64         `json:"financed"`
	MonthlyPayment float64         `json:"monthlyPayment"`
	TotalPayment   float64         `json:"totalPayment"`
	TotalInterest  float64         `json:"totalInterest"`
	PayoffMonths   int             `json:"payoffMonths"`
	Schedule       []loans.Payment `json:"schedule,omitempty"`
}

// LoanPayment computes the level monthly payment for an amortizing loan.
func LoanPayment(p LoanParams) (LoanResult, error) {
	return loanPayment(zap.NewNop(), p)
}

func loanPayment(logger *zap.Logger, p LoanParams) (LoanResult, error) {
	if err := requireFinite(p); err != nil {
		return LoanResult{}, err
	}
	if p.Principal <= 0 {
		return LoanResult{}, invalid("principal", "must be greater than zero")
	}
	if p.Rate < 0 {
		return LoanResult{}, invalid("rate", "must not be negative")
	}
	if p.TermMonths <= 0 {
		return LoanResult{}, invalid("termMonths", "must be greater than zero")
	}
	if p.TermMonths > MaxMonths {
		return LoanResult{}, invalid("termMonths", "must be at most %d", MaxMonths)
	}
	if p.DownPayment < 0 || p.DownPayment >= p.Principal {
		return LoanResult{}, invalid("downPayment", "must be at least zero and less than principal")
	}
	for i, extra := range p.ExtraPayments {
		if extra.Month < 1 || extra.Month > p.TermMonths {
			return LoanResult{}, invalid("extraPayments", "entry %d month %d is outside 1..%d", i+1, extra.Month, p.TermMonths)
		}
		if extra.Amount < 0 {
			return LoanResult{}, invalid("extraPayments", "entry %d amount must not be negative", i+1)
		}
	}

	config := loans.LoanConfig{
		Name:          "loanPayment",
		Principal:     p.Principal,
		DownPayment:   p.DownPayment,
		InterestRate:  p.Rate,
		Term:          p.TermMonths,
		ExtraPayments: p.ExtraPayments,
	}

	result := LoanResult{
		Financed:       config.Financed(),
		MonthlyPayment: loans.CalculateMonthlyPayment(p.Principal, p.DownPayment, p.Rate, p.TermMonths),
		PayoffMonths:   p.TermMonths,
	}
	result.TotalPayment = result.MonthlyPayment * float64(p.TermMonths)
	result.TotalInterest = result.TotalPayment - result.Financed
	if err := requireFiniteResult(result, "rate", "payment overflows"); err != nil {
		return LoanResult{}, err
	}

	if !p.IncludeSchedule && len(p.ExtraPayments) == 0 {
		return result, nil
	}

	schedule, err := loans.NewAmortizationScheduleGenerator(logger).GenerateSchedule(config)
	if err != nil {
		return LoanResult{}, err
	}
	if len(p.ExtraPayments) > 0 {
		result.TotalPayment, result.TotalInterest = loans.Totals(schedule)
		result.PayoffMonths = len(schedule)
	} else {
		// Each scheduled payment may drift by up to a cent from the level payment.
		scheduled, _ := loans.Totals(schedule)
		tolerance := constants.CurrencyTolerance * float64(p.TermMonths)
		if !mathutil.WithinTolerance(scheduled, result.TotalPayment, tolerance) {
			logger.Warn("amortization schedule does not reconcile with level payment",
				zap.String("op", "calc.LoanPayment"),
				zap.Float64("schedule_total", scheduled),
				zap.Float64("level_total", result.TotalPayment),
			)
		}
	}
	if p.IncludeSchedule {
		result.Schedule = schedule
	}
	return result, nil
}

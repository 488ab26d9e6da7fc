// Package loans provides loan payment and amortization utilities.
package loans

import (
	"fmt"
	"math"

	"github.com/iwvelando/venture-calc/pkg/constants"
	"github.com/iwvelando/venture-calc/pkg/mathutil"
	"go.uber.org/zap"
)

// Payment holds the values for a given payment.
type Payment struct {
	Month              int     `json:"month"`
	Payment            float64 `json:"payment"`
	Principal          float64 `json:"principal"`
	Interest           float64 `json:"interest"`
	ExtraPrincipal     float64 `json:"extraPrincipal,omitempty"`
	RemainingPrincipal float64 `json:"remainingPrincipal"`
}

// ExtraPayment is an additional principal payment applied in a given 1-based month.
type ExtraPayment struct {
	Month  int     `json:"month" mapstructure:"month" yaml:"month"`
	Amount float64 `json:"amount" mapstructure:"amount" yaml:"amount"`
}

// LoanConfig represents loan configuration parameters
type LoanConfig struct {
	Name          string
	Principal     float64
	DownPayment   float64
	InterestRate  float64 // annual, percent
	Term          int     // months
	ExtraPayments []ExtraPayment
}

// Financed returns the amount actually borrowed.
func (l LoanConfig) Financed() float64 {
	return l.Principal - l.DownPayment
}

// CalculateMonthlyPayment calculates the monthly payment for a loan using the standard amortization formula.
func CalculateMonthlyPayment(principal, downPayment, annualInterestRate float64, termMonths int) float64 {
	if termMonths <= 0 {
		return 0
	}
	if annualInterestRate == 0 {
		// For zero interest, simply divide the principal by term
		return (principal - downPayment) / float64(termMonths)
	}

	periodicInterestRate := annualInterestRate / (constants.PercentageMultiplier * constants.MonthsPerYear)
	power := math.Pow((1.00 + periodicInterestRate), float64(termMonths))
	discountFactor := (power - 1.00) / power
	return (principal - downPayment) * periodicInterestRate / discountFactor
}

// CalculateInterestPayment calculates the interest portion of a payment.
func CalculateInterestPayment(remainingPrincipal, annualInterestRate float64) float64 {
	return remainingPrincipal * annualInterestRate / (constants.PercentageMultiplier * constants.MonthsPerYear)
}

// CalculateExtraPrincipal calculates the total extra principal payment for a given month
func CalculateExtraPrincipal(extraPayments []ExtraPayment, month int) float64 {
	amount := 0.00
	for _, extra := range extraPayments {
		if extra.Month == month {
			amount += extra.Amount
		}
	}
	return amount
}

// AmortizationScheduleGenerator provides utilities for generating loan amortization schedules
type AmortizationScheduleGenerator struct {
	logger *zap.Logger
}

// NewAmortizationScheduleGenerator creates a new generator instance
func NewAmortizationScheduleGenerator(logger *zap.Logger) *AmortizationScheduleGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AmortizationScheduleGenerator{logger: logger}
}

// GenerateSchedule creates a complete amortization schedule for a loan. The
// schedule ends at the term or as soon as extra payments retire the balance.
func (g *AmortizationScheduleGenerator) GenerateSchedule(loan LoanConfig) ([]Payment, error) {
	if loan.Term <= 0 {
		return nil, fmt.Errorf("loan %s: term must be positive, got %d", loan.Name, loan.Term)
	}
	financed := loan.Financed()
	if financed < 0 {
		return nil, fmt.Errorf("loan %s: down payment %.2f exceeds principal %.2f", loan.Name, loan.DownPayment, loan.Principal)
	}

	monthlyPayment := CalculateMonthlyPayment(loan.Principal, loan.DownPayment, loan.InterestRate, loan.Term)
	schedule := make([]Payment, 0, loan.Term)
	remaining := financed

	for month := 1; month <= loan.Term && remaining > 0; month++ {
		var current Payment
		current.Month = month
		current.Interest = CalculateInterestPayment(remaining, loan.InterestRate)

		scheduledPrincipal := monthlyPayment - current.Interest
		extra := CalculateExtraPrincipalWithOverpaymentPrevention(g.logger,
			loan.ExtraPayments, month, remaining-scheduledPrincipal, loan.Name)
		if extra > 0 {
			g.logger.Debug(fmt.Sprintf("month %d: applying extra principal payment %.2f for loan %s",
				month, extra, loan.Name),
				zap.String("op", "loans.GenerateSchedule"),
			)
		}

		current.ExtraPrincipal = extra
		current.Principal = scheduledPrincipal + extra

		if month == loan.Term || mathutil.Round(remaining-current.Principal) <= 0 {
			// We will get machine error otherwise so just retire the balance.
			current.Principal = remaining
			current.RemainingPrincipal = 0.00
		} else {
			current.RemainingPrincipal = remaining - current.Principal
		}
		current.Payment = current.Principal + current.Interest

		schedule = append(schedule, current)
		remaining = current.RemainingPrincipal
	}

	if len(schedule) < loan.Term {
		g.logger.Debug(fmt.Sprintf("loan %s retired after %d of %d months", loan.Name, len(schedule), loan.Term),
			zap.String("op", "loans.GenerateSchedule"),
		)
	}

	return schedule, nil
}

// CalculateExtraPrincipalWithOverpaymentPrevention calculates extra principal with overpayment prevention
func CalculateExtraPrincipalWithOverpaymentPrevention(
	logger *zap.Logger, extraPayments []ExtraPayment, month int, balanceAfterScheduled float64, loanName string,
) float64 {
	if logger == nil {
		logger = zap.NewNop()
	}
	totalExtra := CalculateExtraPrincipal(extraPayments, month)

	// Prevent overpayment by capping extra payment to current balance
	if totalExtra > balanceAfterScheduled {
		capped := math.Max(balanceAfterScheduled, 0)
		logger.Debug("Capping extra principal payment to prevent overpayment",
			zap.Int("month", month),
			zap.String("loan", loanName),
			zap.Float64("requested", totalExtra),
			zap.Float64("capped_to_balance", capped))
		return capped
	}

	return totalExtra
}

// Totals sums the payments and interest of a schedule.
func Totals(schedule []Payment) (totalPayment, totalInterest float64) {
	for _, p := range schedule {
		totalPayment += p.Payment
		totalInterest += p.Interest
	}
	return totalPayment, totalInterest
}

package calc

import (
	"github.com/iwvelando/venture-calc/pkg/constants"
	"github.com/iwvelando/venture-calc/pkg/mathutil"
)

// OneTimeExpense is an expense charged once in a 1-based month.
type OneTimeExpense struct {
	Name   string  `json:"name,omitempty" mapstructure:"name" yaml:"name,omitempty"`
	Month  int     `json:"month" mapstructure:"month" yaml:"month"`
	Amount float64 `json:"amount" mapstructure:"amount" yaml:"amount"`
}

// CashflowParams are the inputs to a monthly cashflow projection.
type CashflowParams struct {
	MonthlyRevenue    float64          `json:"monthlyRevenue" mapstructure:"monthlyRevenue" yaml:"monthlyRevenue"`
	MonthlyExpenses   float64          `json:"monthlyExpenses" mapstructure:"monthlyExpenses" yaml:"monthlyExpenses"`
	Months            int              `json:"months" mapstructure:"months" yaml:"months"`
	StartingCash      float64          `json:"startingCash,omitempty" mapstructure:"startingCash" yaml:"startingCash,omitempty"`
	GrowthRate        float64          `json:"growthRate,omitempty" mapstructure:"growthRate" yaml:"growthRate,omitempty"`
	ExpenseGrowthRate float64          `json:"expenseGrowthRate,omitempty" mapstructure:"expenseGrowthRate" yaml:"expenseGrowthRate,omitempty"`
	Seasonality       []float64        `json:"seasonality,omitempty" mapstructure:"seasonality" yaml:"seasonality,omitempty"`
	OneTimeExpenses   []OneTimeExpense `json:"oneTimeExpenses,omitempty" mapstructure:"oneTimeExpenses" yaml:"oneTimeExpenses,omitempty"`
}

// CashflowMonth is one month of a cashflow projection.
type CashflowMonth struct {
	Month          int     `json:"month"`
	Revenue        float64 `json:"revenue"`
	Expenses       float64 `json:"expenses"`
	OneTime        float64 `json:"oneTime,omitempty"`
	Net            float64 `json:"net"`
	CumulativeCash float64 `json:"cumulativeCash"`
}

// CashflowResult is the outcome of a cashflow projection. Month indexes are
// 1-based; zero means the event never happens within the horizon.
type CashflowResult struct {
	Series             []CashflowMonth `json:"months"`
	TotalRevenue       float64         `json:"totalRevenue"`
	TotalExpenses      float64         `json:"totalExpenses"`
	TotalNet           float64         `json:"totalNet"`
	EndingCash         float64         `json:"endingCash"`
	LowestCash         float64         `json:"lowestCash"`
	LowestCashMonth    int             `json:"lowestCashMonth"`
	FirstPositiveMonth int             `json:"firstPositiveMonth"`
	RunwayMonths       int             `json:"runwayMonths"`
}

// Cashflow projects monthly revenue, expenses, and cash on hand. Revenue
// compounds by GrowthRate and recurring expenses by ExpenseGrowthRate, both
// percent per month. Seasonality multiplies revenue by a 12-entry cycle that
// starts at month 1. One-time expenses are charged in their month in addition
// to recurring expenses.
func Cashflow(p CashflowParams) (CashflowResult, error) {
	if err := requireFinite(p); err != nil {
		return CashflowResult{}, err
	}
	if p.Months <= 0 {
		return CashflowResult{}, invalid("months", "must be greater than zero")
	}
	if p.Months > MaxMonths {
		return CashflowResult{}, invalid("months", "must be at most %d", MaxMonths)
	}
	if p.GrowthRate <= -constants.PercentageMultiplier {
		return CashflowResult{}, invalid("growthRate", "must be greater than -100")
	}
	if p.ExpenseGrowthRate <= -constants.PercentageMultiplier {
		return CashflowResult{}, invalid("expenseGrowthRate", "must be greater than -100")
	}
	if len(p.Seasonality) != 0 && len(p.Seasonality) != constants.MonthsPerYear {
		return CashflowResult{}, invalid("seasonality", "must have %d entries, got %d", constants.MonthsPerYear, len(p.Seasonality))
	}
	for i, factor := range p.Seasonality {
		if factor < 0 {
			return CashflowResult{}, invalid("seasonality", "entry %d must not be negative", i+1)
		}
	}

	oneTime := make(map[int]float64)
	for i, expense := range p.OneTimeExpenses {
		if expense.Month < 1 || expense.Month > p.Months {
			return CashflowResult{}, invalid("oneTimeExpenses", "entry %d month %d is outside 1..%d", i+1, expense.Month, p.Months)
		}
		oneTime[expense.Month] += expense.Amount
	}

	result := CashflowResult{Series: make([]CashflowMonth, 0, p.Months)}
	cash := p.StartingCash

	for month := 1; month <= p.Months; month++ {
		revenue := mathutil.Grow(p.MonthlyRevenue, p.GrowthRate, month-1)
		if len(p.Seasonality) == constants.MonthsPerYear {
			revenue *= p.Seasonality[(month-1)%constants.MonthsPerYear]
		}
		expenses := mathutil.Grow(p.MonthlyExpenses, p.ExpenseGrowthRate, month-1) + oneTime[month]
		net := revenue - expenses
		cash += net

		result.Series = append(result.Series, CashflowMonth{
			Month:          month,
			Revenue:        revenue,
			Expenses:       expenses,
			OneTime:        oneTime[month],
			Net:            net,
			CumulativeCash: cash,
		})

		result.TotalRevenue += revenue
		result.TotalExpenses += expenses
		result.TotalNet += net

		if month == 1 || cash < result.LowestCash {
			result.LowestCash = cash
			result.LowestCashMonth = month
		}
		if result.FirstPositiveMonth == 0 && (net >= 0 || mathutil.IsZero(net)) {
			result.FirstPositiveMonth = month
		}
		if result.RunwayMonths == 0 && mathutil.IsNegative(cash) {
			result.RunwayMonths = month
		}
	}

	result.EndingCash = cash
	if err := requireFiniteResult(result, "growthRate", "projection overflows"); err != nil {
		return CashflowResult{}, err
	}
	return result, nil
}

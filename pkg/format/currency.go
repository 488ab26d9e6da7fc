// Package format renders monetary values, percentages, and durations for display.
package format

import (
	"fmt"
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/iwvelando/venture-calc/pkg/constants"
	"github.com/shopspring/decimal"
)

// notAvailable stands in for values that cannot be rendered, such as NaN.
const notAvailable = "n/a"

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Currency returns a whole-dollar currency string with thousands separators
// (e.g., "$1,234,567" or "-$1,234"). Cents round half away from zero.
func Currency(amount float64) string {
	if !finite(amount) {
		return notAvailable
	}
	cur := money.GetCurrency(constants.DefaultCurrency)
	whole := decimal.NewFromFloat(amount).Round(0).IntPart()
	return money.NewFormatter(0, cur.Decimal, cur.Thousand, cur.Grapheme, cur.Template).Format(whole)
}

// CurrencyCents returns a currency string including cents (e.g., "-$1,234.56").
func CurrencyCents(amount float64) string {
	if !finite(amount) {
		return notAvailable
	}
	cents := decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
	return money.New(cents, constants.DefaultCurrency).Display()
}

// NumericCurrency returns a currency string without a currency symbol but with separators (e.g., "-1,234.56").
func NumericCurrency(amount float64) string {
	if !finite(amount) {
		return notAvailable
	}
	sign := ""
	if amount < 0 {
		sign = "-"
	}
	return sign + groupThousands(decimal.NewFromFloat(math.Abs(amount)).StringFixed(2))
}

// Percent renders a percentage with the given number of decimals (e.g., "12.5%").
func Percent(value float64, decimals int32) string {
	if !finite(value) {
		return notAvailable
	}
	return decimal.NewFromFloat(value).StringFixed(decimals) + "%"
}

var compactUnits = []struct {
	suffix string
	size   float64
}{
	{"B", 1e9},
	{"M", 1e6},
	{"K", 1e3},
}

// Compact renders large amounts with a magnitude suffix (e.g., "$1.2M", "$950K").
// Amounts under a thousand fall back to Currency.
func Compact(amount float64) string {
	if !finite(amount) {
		return notAvailable
	}
	abs := math.Abs(amount)
	sign := ""
	if amount < 0 {
		sign = "-"
	}

	for i, unit := range compactUnits {
		if abs < unit.size {
			continue
		}
		scaled := decimal.NewFromFloat(abs / unit.size).Round(1)
		// 999,950 would otherwise render as "$1000.0K"
		if i > 0 && scaled.GreaterThanOrEqual(decimal.NewFromInt(1000)) {
			prev := compactUnits[i-1]
			scaled = decimal.NewFromFloat(abs / prev.size).Round(1)
			return sign + "$" + scaled.String() + prev.suffix
		}
		return sign + "$" + scaled.String() + unit.suffix
	}

	if decimal.NewFromFloat(abs).Round(0).GreaterThanOrEqual(decimal.NewFromInt(1000)) {
		return sign + "$1K"
	}
	return Currency(amount)
}

// Months renders a month count with one decimal at most (e.g., "18 months", "1 month").
func Months(value float64) string {
	if !finite(value) {
		return notAvailable
	}
	rounded := decimal.NewFromFloat(value).Round(1)
	if rounded.Equal(decimal.NewFromInt(1)) {
		return "1 month"
	}
	return fmt.Sprintf("%s months", rounded.String())
}

func groupThousands(formatted string) string {
	parts := strings.SplitN(formatted, ".", 2)
	intPart := parts[0]

	if len(intPart) > 3 {
		var builder strings.Builder
		for i, digit := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				builder.WriteByte(',')
			}
			builder.WriteRune(digit)
		}
		intPart = builder.String()
	}

	if len(parts) == 2 {
		return intPart + "." + parts[1]
	}
	return intPart
}

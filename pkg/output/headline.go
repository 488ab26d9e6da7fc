package output

import (
	"fmt"

	"github.com/iwvelando/venture-calc/pkg/calc"
	"github.com/iwvelando/venture-calc/pkg/format"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Headline summarizes a successful result in one sentence. Outputs that are
// not one of the calc result types (e.g. cached JSON) yield "".
func Headline(result calc.Result) string {
	if !result.OK() {
		return ""
	}
	p := message.NewPrinter(language.English)

	switch r := result.Outputs.(type) {
	case calc.ROIResult:
		payback := "not reached"
		if r.PaybackYears != nil {
			payback = fmt.Sprintf("%.1f years", *r.PaybackYears)
		}
		return fmt.Sprintf("ROI %s, net profit %s, payback %s",
			format.Percent(r.ROI, 1), format.Currency(r.NetProfit), payback)
	case calc.CashflowResult:
		runway := "cash never runs out"
		if r.RunwayMonths > 0 {
			runway = "cash runs out in month " + fmt.Sprint(r.RunwayMonths)
		}
		return fmt.Sprintf("Ending cash %s, lowest %s, %s",
			format.Currency(r.EndingCash), format.Currency(r.LowestCash), runway)
	case calc.BreakevenResult:
		return p.Sprintf("Break even at %d units (%s revenue)", r.Units, format.Currency(r.Revenue))
	case calc.UnitEconomicsResult:
		ratio := "unbounded"
		if r.LTVToCAC != nil {
			ratio = fmt.Sprintf("%.1fx", *r.LTVToCAC)
		}
		return fmt.Sprintf("LTV %s, LTV:CAC %s, CAC payback %s, %s",
			format.Currency(r.LTV), ratio, format.Months(r.CACPaybackMonths), r.Health)
	case calc.LoanResult:
		return fmt.Sprintf("Monthly payment %s, total interest %s over %s",
			format.CurrencyCents(r.MonthlyPayment), format.Currency(r.TotalInterest), format.Months(float64(r.PayoffMonths)))
	case calc.NPVResult:
		irr := "n/a"
		if r.IRR != nil {
			irr = format.Percent(*r.IRR, 1)
		}
		return fmt.Sprintf("NPV %s, IRR %s", format.Compact(r.NPV), irr)
	}
	return ""
}

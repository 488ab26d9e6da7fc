// Package calc is the deterministic financial calculation engine behind
// venture worksheets. Every calculation is a pure function from a flat
// parameter struct to a result struct; invalid input is reported as an
// *InputError and never panics.
package calc

import (
	"errors"
	"fmt"
	"strings"
)

// Kind names a calculation.
type Kind string

// Supported calculation kinds.
const (
	KindROI           Kind = "roi"
	KindCashflow      Kind = "cashflow"
	KindBreakeven     Kind = "breakeven"
	KindUnitEconomics Kind = "unitEconomics"
	KindLoanPayment   Kind = "loanPayment"
	KindNPV           Kind = "npv"
)

// Limits on iteration counts so a single request cannot run away.
const (
	MaxYears   = 100
	MaxMonths  = 1200
	MaxPeriods = 600
)

// ErrUnknownKind is returned for calculation kinds the engine does not know.
var ErrUnknownKind = errors.New("unknown calculation kind")

// Kinds returns every supported kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindROI, KindCashflow, KindBreakeven, KindUnitEconomics, KindLoanPayment, KindNPV}
}

// ParseKind resolves a kind name, ignoring case, dashes and underscores so
// "unit-economics" and "UNIT_ECONOMICS" both resolve to KindUnitEconomics.
func ParseKind(name string) (Kind, error) {
	wanted := normalizeKind(name)
	for _, kind := range Kinds() {
		if normalizeKind(string(kind)) == wanted {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

func normalizeKind(name string) string {
	replacer := strings.NewReplacer("-", "", "_", "", " ", "")
	return strings.ToLower(replacer.Replace(strings.TrimSpace(name)))
}

// InputError reports calculation input that fails a precondition.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + " " + e.Message
}

func invalid(field, format string, args ...interface{}) error {
	return &InputError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsInputError reports whether err is, or wraps, an *InputError.
func IsInputError(err error) bool {
	var inputErr *InputError
	return errors.As(err, &inputErr)
}

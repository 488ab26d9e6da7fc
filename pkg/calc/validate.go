package calc

import "fmt"

var requiredFields = map[Kind][]string{
	KindROI:           {"investment", "revenue", "costs", "years"},
	KindCashflow:      {"monthlyRevenue", "monthlyExpenses", "months"},
	KindBreakeven:     {"fixedCosts", "variableCost", "price"},
	KindUnitEconomics: {"price", "cost", "cac", "churnRate"},
	KindLoanPayment:   {"principal", "rate", "termMonths"},
	KindNPV:           {"discountRate", "initialInvestment", "cashFlows"},
}

// RequiredFields returns the parameters a calculation cannot run without.
func RequiredFields(kind Kind) ([]string, error) {
	fields, ok := requiredFields[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return append([]string(nil), fields...), nil
}

// Validate returns the required fields that are absent from params, nil, or
// the empty string. Zero and false count as present.
func Validate(kind Kind, params map[string]interface{}) ([]string, error) {
	fields, err := RequiredFields(kind)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, field := range fields {
		value, ok := params[field]
		if !ok || isBlank(value) {
			missing = append(missing, field)
		}
	}
	return missing, nil
}

func isBlank(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case *string:
		return v == nil || *v == ""
	}
	return false
}

package calc

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// Result is the outcome of a dynamically dispatched calculation. Callers
// check Error before using Outputs.
type Result struct {
	Kind    Kind        `json:"kind"`
	Outputs interface{} `json:"outputs,omitempty"`
	Error   string      `json:"error,omitempty"`
	Missing []string    `json:"missing,omitempty"`
}

// OK reports whether the calculation succeeded.
func (r Result) OK() bool {
	return r.Error == ""
}

// Engine runs calculations from loosely typed parameter maps, such as
// worksheet inputs decoded from JSON or YAML.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates an engine that logs through logger.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Calculate runs a calculation with the default engine.
func Calculate(kind Kind, params map[string]interface{}) Result {
	return NewEngine(nil).Calculate(kind, params)
}

// Calculate validates required fields, decodes params into the typed inputs
// of kind, and runs the formula. It never returns a Go error; failures are
// reported through Result.Error.
func (e *Engine) Calculate(kind Kind, params map[string]interface{}) Result {
	result := Result{Kind: kind}

	outputs, missing, err := e.Compute(kind, params)
	result.Missing = missing
	if err != nil {
		result.Error = err.Error()
		e.logger.Debug("calculation rejected",
			zap.String("op", "calc.Calculate"),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return result
	}

	result.Outputs = outputs
	return result
}

// Compute is Calculate with a Go error for callers that need to branch on
// the failure, e.g. errors.Is(err, ErrUnknownKind).
func (e *Engine) Compute(kind Kind, params map[string]interface{}) (interface{}, []string, error) {
	missing, err := Validate(kind, params)
	if err != nil {
		return nil, nil, err
	}
	if len(missing) > 0 {
		return nil, missing, &InputError{Message: "missing required fields: " + strings.Join(missing, ", ")}
	}

	switch kind {
	case KindROI:
		var p ROIParams
		if err := decodeParams(params, &p); err != nil {
			return nil, nil, err
		}
		return wrap(ROI(p))
	case KindCashflow:
		var p CashflowParams
		if err := decodeParams(params, &p); err != nil {
			return nil, nil, err
		}
		return wrap(Cashflow(p))
	case KindBreakeven:
		var p BreakevenParams
		if err := decodeParams(params, &p); err != nil {
			return nil, nil, err
		}
		return wrap(Breakeven(p))
	case KindUnitEconomics:
		var p UnitEconomicsParams
		if err := decodeParams(params, &p); err != nil {
			return nil, nil, err
		}
		return wrap(UnitEconomics(p))
	case KindLoanPayment:
		var p LoanParams
		if err := decodeParams(params, &p); err != nil {
			return nil, nil, err
		}
		return wrap(loanPayment(e.logger, p))
	case KindNPV:
		var p NPVParams
		if err := decodeParams(params, &p); err != nil {
			return nil, nil, err
		}
		return wrap(NPV(p))
	}

	return nil, nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func wrap[T any](result T, err error) (interface{}, []string, error) {
	if err != nil {
		return nil, nil, err
	}
	return result, nil, nil
}

// decodeParams copies a parameter map into a typed params struct. Numeric
// strings such as "1500" are accepted so form inputs decode unchanged.
func decodeParams(params map[string]interface{}, target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           target,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("failed to build parameter decoder: %w", err)
	}
	if err := decoder.Decode(params); err != nil {
		return &InputError{Message: fmt.Sprintf("invalid parameters: %v", err)}
	}
	return nil
}

package calc

import (
	"math"
	"strings"
)

// defaultStatusThreshold is the relative variance treated as on target.
const defaultStatusThreshold = 0.01

func fnVariance(args []Value) (Value, error) {
	if err := requireArgs("VARIANCE", len(args), 2); err != nil {
		return Null, err
	}
	n, err := numberArgs("VARIANCE", args)
	if err != nil {
		return Null, err
	}
	return Number(n[0] - n[1]), nil
}

func fnVariancePct(args []Value) (Value, error) {
	if err := requireArgs("VARIANCE_PCT", len(args), 2); err != nil {
		return Null, err
	}
	n, err := numberArgs("VARIANCE_PCT", args)
	if err != nil {
		return Null, err
	}
	if n[1] == 0 {
		return Null, NewEvalError(ErrorKindDivisionByZero, "VARIANCE_PCT: budget cannot be zero")
	}
	return Number((n[0] - n[1]) / n[1]), nil
}

// fnVarianceStatus is VARIANCE_STATUS(actual, budget, [threshold or "cost"]).
// It returns 1 when favorable, -1 when unfavorable and 0 within the
// threshold. For a cost metric, coming in under budget is favorable.
func fnVarianceStatus(args []Value) (Value, error) {
	if err := requireArgsRange("VARIANCE_STATUS", len(args), 2, 3); err != nil {
		return Null, err
	}
	n, err := numberArgs("VARIANCE_STATUS", args[:2])
	if err != nil {
		return Null, err
	}
	actual, budget := n[0], n[1]
	threshold, isCost := defaultStatusThreshold, false
	if len(args) > 2 {
		switch third := args[2]; third.Type {
		case ValueText:
			isCost = strings.EqualFold(third.Str, "cost")
		case ValueNumber:
			threshold = third.Num
		}
	}
	status := sign(actual)
	if budget != 0 {
		pct := (actual - budget) / math.Abs(budget)
		if math.Abs(pct) <= threshold {
			return Number(0), nil
		}
		status = sign(pct)
	}
	if isCost && status != 0 {
		status = -status
	}
	return Number(status), nil
}

// fnBreakevenUnits is fixed costs over the unit contribution margin.
func fnBreakevenUnits(args []Value) (Value, error) {
	if err := requireArgs("BREAKEVEN_UNITS", len(args), 3); err != nil {
		return Null, err
	}
	n, err := numberArgs("BREAKEVEN_UNITS", args)
	if err != nil {
		return Null, err
	}
	margin := n[1] - n[2]
	if margin <= 0 {
		return Null, NewEvalError(ErrorKindDomain, "BREAKEVEN_UNITS: unit_price must be greater than variable_cost")
	}
	return Number(n[0] / margin), nil
}

// fnBreakevenRevenue is fixed costs over the contribution margin ratio,
// which must lie in (0, 1].
func fnBreakevenRevenue(args []Value) (Value, error) {
	if err := requireArgs("BREAKEVEN_REVENUE", len(args), 2); err != nil {
		return Null, err
	}
	n, err := numberArgs("BREAKEVEN_REVENUE", args)
	if err != nil {
		return Null, err
	}
	if n[1] <= 0 || n[1] > 1 {
		return Null, NewEvalError(ErrorKindDomain,
			"BREAKEVEN_REVENUE: contribution_margin_pct must be between 0 and 1 (exclusive of 0)")
	}
	return Number(n[0] / n[1]), nil
}

// fnScenario reads an override, SCENARIO(scenario_name, variable_name).
func (e *Evaluator) fnScenario(n *FunctionCallNode, ctx *EvalContext) (Value, error) {
	if err := requireArgs("SCENARIO", len(n.Args), 2); err != nil {
		return Null, err
	}
	args, err := e.evalArgs(n.Args, ctx)
	if err != nil {
		return Null, err
	}
	name, variable := args[0].AsText(), args[1].AsText()
	overrides, ok := ctx.Scenarios[name]
	if !ok {
		return Null, NewEvalError(ErrorKindUnknownReference, "Scenario '%s' not found%s",
			name, suggestion(name, sortedKeys(ctx.Scenarios)))
	}
	v, ok := overrides[variable]
	if !ok {
		return Null, NewEvalError(ErrorKindUnknownReference, "Variable '%s' not found in scenario '%s'%s",
			variable, name, suggestion(variable, sortedKeys(overrides)))
	}
	return Number(v), nil
}

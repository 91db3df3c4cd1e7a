package calc

import "math"

func isBlank(v Value) bool {
	return v.IsNull() || (v.Type == ValueText && v.Str == "")
}

// isFunc builds the one-argument IS* predicates.
func isFunc(name string, pred func(Value) bool) valueFunc {
	return func(args []Value) (Value, error) {
		if err := requireArgs(name, len(args), 1); err != nil {
			return Null, err
		}
		return Boolean(pred(args[0])), nil
	}
}

// fnIserror is TRUE when the argument fails to evaluate or is NA().
func (e *Evaluator) fnIserror(n *FunctionCallNode, ctx *EvalContext) (Value, error) {
	if err := requireArgs("ISERROR", len(n.Args), 1); err != nil {
		return Null, err
	}
	v, err := n.Args[0].Eval(e, ctx)
	return Boolean(err != nil || v.IsNull()), nil
}

// parityFunc builds ISEVEN (remainder 0) and ISODD (remainder 1). The number
// is truncated first.
func parityFunc(name string, remainder int64) valueFunc {
	return func(args []Value) (Value, error) {
		if err := requireArgs(name, len(args), 1); err != nil {
			return Null, err
		}
		x, err := numberArg(name, args[0])
		if err != nil {
			return Null, err
		}
		r := int64(math.Trunc(x)) % 2
		if r < 0 {
			r = -r
		}
		return Boolean(r == remainder), nil
	}
}

// fnType returns the spreadsheet type code: 1 number, 2 text, 4 logical,
// 16 error (NA), 64 array.
func fnType(args []Value) (Value, error) {
	if err := requireArgs("TYPE", len(args), 1); err != nil {
		return Null, err
	}
	switch args[0].Type {
	case ValueNumber:
		return Number(1), nil
	case ValueText:
		return Number(2), nil
	case ValueBoolean:
		return Number(4), nil
	case ValueArray:
		return Number(64), nil
	}
	return Number(16), nil
}

// fnN converts to a number: numbers pass through, TRUE is 1, anything else 0.
func fnN(args []Value) (Value, error) {
	if err := requireArgs("N", len(args), 1); err != nil {
		return Null, err
	}
	switch v := args[0]; {
	case v.Type == ValueNumber:
		return v, nil
	case v.Type == ValueBoolean && v.Bool:
		return Number(1), nil
	}
	return Number(0), nil
}

// fnIsref reports whether the argument is a reference that resolves.
func (e *Evaluator) fnIsref(n *FunctionCallNode, ctx *EvalContext) (Value, error) {
	if err := requireArgs("ISREF", len(n.Args), 1); err != nil {
		return Null, err
	}
	switch n.Args[0].(type) {
	case *ReferenceNode, *IndexNode:
	default:
		return Boolean(false), nil
	}
	if _, err := n.Args[0].Eval(e, ctx.arrayMode()); err != nil {
		if IsKind(err, ErrorKindUnknownReference) {
			return Boolean(false), nil
		}
		return Null, err
	}
	return Boolean(true), nil
}

// fnIsformula reports whether the referenced scalar or column is computed
// by a formula.
func (e *Evaluator) fnIsformula(n *FunctionCallNode, ctx *EvalContext) (Value, error) {
	if err := requireArgs("ISFORMULA", len(n.Args), 1); err != nil {
		return Null, err
	}
	ref, ok := n.Args[0].(*ReferenceNode)
	if !ok {
		return Boolean(false), nil
	}
	if _, err := ref.Eval(e, ctx); err != nil {
		return Null, err
	}
	return Boolean(ctx.isFormula(ref)), nil
}

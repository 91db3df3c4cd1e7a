package calc

// fnIf evaluates only the selected branch. Without an else branch a false
// condition yields FALSE.
func (e *Evaluator) fnIf(n *FunctionCallNode, ctx *EvalContext) (Value, error) {
	if err := requireArgsRange("IF", len(n.Args), 2, 3); err != nil {
		return Null, err
	}
	cond, err := n.Args[0].Eval(e, ctx)
	if err != nil {
		return Null, err
	}
	if cond.IsTruthy() {
		return n.Args[1].Eval(e, ctx)
	}
	if len(n.Args) == 3 {
		return n.Args[2].Eval(e, ctx)
	}
	return Boolean(false), nil
}

// fnIferror is the one place an evaluation error is intercepted.
func (e *Evaluator) fnIferror(n *FunctionCallNode, ctx *EvalContext) (Value, error) {
	if err := requireArgs("IFERROR", len(n.Args), 2); err != nil {
		return Null, err
	}
	v, err := n.Args[0].Eval(e, ctx)
	if err != nil {
		return n.Args[1].Eval(e, ctx)
	}
	return v, nil
}

// fnIfna substitutes the fallback for NA(), which is the null value.
func (e *Evaluator) fnIfna(n *FunctionCallNode, ctx *EvalContext) (Value, error) {
	if err := requireArgs("IFNA", len(n.Args), 2); err != nil {
		return Null, err
	}
	v, err := n.Args[0].Eval(e, ctx)
	if err != nil {
		return Null, err
	}
	if v.IsNull() {
		return n.Args[1].Eval(e, ctx)
	}
	return v, nil
}

func (e *Evaluator) fnIfs(n *FunctionCallNode, ctx *EvalContext) (Value, error) {
	if len(n.Args) == 0 || len(n.Args)%2 != 0 {
		return Null, NewEvalError(ErrorKindInvalidArgument, "IFS requires an even number of arguments (condition, value pairs)")
	}
	for i := 0; i < len(n.Args); i += 2 {
		cond, err := n.Args[i].Eval(e, ctx)
		if err != nil {
			return Null, err
		}
		if cond.IsTruthy() {
			return n.Args[i+1].Eval(e, ctx)
		}
	}
	return Null, NewEvalError(ErrorKindLookupNotFound, "IFS: No matching condition found (consider adding TRUE as final condition)")
}

func fnAnd(args []Value) (Value, error) {
	if err := requireMinArgs("AND", len(args), 1); err != nil {
		return Null, err
	}
	for _, v := range flattenValues(args) {
		if !v.IsTruthy() {
			return Boolean(false), nil
		}
	}
	return Boolean(true), nil
}

func fnOr(args []Value) (Value, error) {
	if err := requireMinArgs("OR", len(args), 1); err != nil {
		return Null, err
	}
	for _, v := range flattenValues(args) {
		if v.IsTruthy() {
			return Boolean(true), nil
		}
	}
	return Boolean(false), nil
}

func fnNot(args []Value) (Value, error) {
	if err := requireArgs("NOT", len(args), 1); err != nil {
		return Null, err
	}
	return Boolean(!args[0].IsTruthy()), nil
}

// fnXor is true when an odd number of arguments are true.
func fnXor(args []Value) (Value, error) {
	if err := requireMinArgs("XOR", len(args), 1); err != nil {
		return Null, err
	}
	count := 0
	for _, v := range flattenValues(args) {
		if v.IsTruthy() {
			count++
		}
	}
	return Boolean(count%2 == 1), nil
}

// fnLet binds names left to right; each value sees the earlier bindings.
func (e *Evaluator) fnLet(n *FunctionCallNode, ctx *EvalContext) (Value, error) {
	if len(n.Args) < 3 || len(n.Args)%2 == 0 {
		return Null, NewEvalError(ErrorKindInvalidArgument, "LET requires pairs of name/value plus a calculation")
	}
	scope := ctx
	for i := 0; i+1 < len(n.Args); i += 2 {
		name, ok := letName(n.Args[i])
		if !ok {
			return Null, NewEvalError(ErrorKindInvalidArgument, "LET variable name must be an identifier, got %s", n.Args[i].ToString())
		}
		v, err := n.Args[i+1].Eval(e, scope)
		if err != nil {
			return Null, err
		}
		scope = scope.bind(name, v)
	}
	return n.Args[len(n.Args)-1].Eval(e, scope)
}

func letName(node ASTNode) (string, bool) {
	ref, ok := node.(*ReferenceNode)
	if !ok || ref.Qualified() {
		return "", false
	}
	return ref.Name, true
}

// lambdaParams returns the parameter names of LAMBDA(param, ..., body).
func lambdaParams(n *FunctionCallNode) ([]string, error) {
	if len(n.Args) == 0 {
		return nil, NewEvalError(ErrorKindInvalidArgument, "LAMBDA requires at least a body")
	}
	params := make([]string, len(n.Args)-1)
	for i, arg := range n.Args[:len(n.Args)-1] {
		name, ok := letName(arg)
		if !ok {
			return nil, NewEvalError(ErrorKindInvalidArgument, "LAMBDA parameter %d must be an identifier, got %s", i+1, arg.ToString())
		}
		params[i] = name
	}
	return params, nil
}

// fnLambda only runs for a LAMBDA that is never applied.
func (e *Evaluator) fnLambda(n *FunctionCallNode) (Value, error) {
	if _, err := lambdaParams(n); err != nil {
		return Null, err
	}
	return Null, NewEvalError(ErrorKindInvalidArgument, "LAMBDA must be called with arguments, as in LAMBDA(x, x * 2)(5)")
}

// callLambda evaluates the arguments in the caller's scope and the body with
// each parameter bound to its argument.
func (e *Evaluator) callLambda(n *LambdaCallNode, ctx *EvalContext) (Value, error) {
	params, err := lambdaParams(n.Lambda)
	if err != nil {
		return Null, err
	}
	if len(n.Args) != len(params) {
		return Null, NewEvalError(ErrorKindInvalidArgument, "LAMBDA expects %d argument(s), got %d", len(params), len(n.Args))
	}
	scope := ctx
	for i, arg := range n.Args {
		v, err := arg.Eval(e, ctx)
		if err != nil {
			return Null, err
		}
		scope = scope.bind(params[i], v)
	}
	return n.Lambda.Args[len(n.Lambda.Args)-1].Eval(e, scope)
}

// fnSwitch compares the expression against each case with value equality.
// A trailing unpaired argument is the default.
func (e *Evaluator) fnSwitch(n *FunctionCallNode, ctx *EvalContext) (Value, error) {
	if err := requireMinArgs("SWITCH", len(n.Args), 2); err != nil {
		return Null, err
	}
	subject, err := n.Args[0].Eval(e, ctx)
	if err != nil {
		return Null, err
	}
	cases := n.Args[1:]
	for i := 0; i+1 < len(cases); i += 2 {
		candidate, err := cases[i].Eval(e, ctx)
		if err != nil {
			return Null, err
		}
		if ValuesEqual(subject, candidate) {
			return cases[i+1].Eval(e, ctx)
		}
	}
	if len(cases)%2 == 1 {
		return cases[len(cases)-1].Eval(e, ctx)
	}
	return Null, NewEvalError(ErrorKindLookupNotFound, "SWITCH: No match found for %s", subject.AsText())
}

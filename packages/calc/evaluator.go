package calc

import (
	"math"
	"sort"
	"time"
)

// EvalContext is the environment a formula is evaluated against. The maps
// are shared between all derived contexts and are never written during
// evaluation; switching to row or array mode copies only the small fields.
type EvalContext struct {
	Scalars   map[string]Value
	Tables    map[string]map[string][]Value
	Scenarios map[string]map[string]float64
	Formulas  map[FormulaOwner]struct{} // slots computed by a formula

	table    string // table whose row formulas are being evaluated
	rowCount int
	row      int
	inRow    bool
	locals   *binding
}

// binding is a LET-bound name. Inner bindings shadow outer ones.
type binding struct {
	name  string
	value Value
	next  *binding
}

// NewEvalContext creates an empty context in array mode.
func NewEvalContext() *EvalContext {
	return &EvalContext{
		Scalars:   make(map[string]Value),
		Tables:    make(map[string]map[string][]Value),
		Scenarios: make(map[string]map[string]float64),
		Formulas:  make(map[FormulaOwner]struct{}),
	}
}

// ForTable returns a context whose bare names resolve against the columns
// of table first. It stays in array mode until WithRow is called.
func (c *EvalContext) ForTable(table string, rowCount int) *EvalContext {
	next := *c
	next.table = table
	next.rowCount = rowCount
	next.inRow = false
	next.row = 0
	return &next
}

// WithRow returns a row-mode context: column references yield the value at
// row instead of the whole column.
func (c *EvalContext) WithRow(row int) *EvalContext {
	next := *c
	next.row = row
	next.inRow = true
	return &next
}

// CurrentRow returns the 0-based row being evaluated, if any.
func (c *EvalContext) CurrentRow() (int, bool) {
	return c.row, c.inRow
}

// arrayMode returns a context in which column references yield whole
// columns, as required by aggregation and lookup arguments.
func (c *EvalContext) arrayMode() *EvalContext {
	if !c.inRow {
		return c
	}
	next := *c
	next.inRow = false
	return &next
}

func (c *EvalContext) bind(name string, value Value) *EvalContext {
	next := *c
	next.locals = &binding{name: name, value: value, next: c.locals}
	return &next
}

func (c *EvalContext) local(name string) (Value, bool) {
	for b := c.locals; b != nil; b = b.next {
		if b.name == name {
			return b.value, true
		}
	}
	return Null, false
}

// isFormula reports whether ref, resolved the way evalReference resolves
// it, names a formula-backed slot.
func (c *EvalContext) isFormula(ref *ReferenceNode) bool {
	var owner FormulaOwner
	switch {
	case ref.Qualified():
		if _, ok := c.Scalars[ref.Table+"."+ref.Name]; ok {
			owner = FormulaOwner{Name: ref.Table + "." + ref.Name}
		} else {
			owner = FormulaOwner{Table: ref.Table, Name: ref.Name}
		}
	default:
		if _, ok := c.local(ref.Name); ok {
			return false
		}
		if _, ok := c.column(c.table, ref.Name); ok && c.table != "" {
			owner = FormulaOwner{Table: c.table, Name: ref.Name}
		} else {
			owner = FormulaOwner{Name: ref.Name}
		}
	}
	_, ok := c.Formulas[owner]
	return ok
}

func (c *EvalContext) column(table, name string) ([]Value, bool) {
	columns, ok := c.Tables[table]
	if !ok {
		return nil, false
	}
	values, ok := columns[name]
	return values, ok
}

// Evaluator walks formula ASTs. It holds the injectable clock, random
// source and time zone used by the volatile functions; it is otherwise
// stateless and safe to reuse across contexts.
type Evaluator struct {
	clock    Clock
	rng      RandomGenerator
	location *time.Location
	formulas *FormulaTable
}

// NewEvaluator creates an evaluator with the given options.
func NewEvaluator(opts ...Option) *Evaluator {
	return newEvaluator(newConfig(opts))
}

func newEvaluator(cfg *config) *Evaluator {
	return &Evaluator{
		clock:    cfg.clock,
		rng:      cfg.rng,
		location: cfg.location,
		formulas: NewFormulaTable(),
	}
}

// Evaluate parses formula (cached by its text) and evaluates it against ctx.
// A nil ctx evaluates against an empty context.
func (e *Evaluator) Evaluate(formula string, ctx *EvalContext) (Value, error) {
	_, ast, err := e.formulas.Parse(formula, FormulaOwner{})
	if err != nil {
		return Null, err
	}
	return e.EvaluateAST(ast, ctx)
}

// EvaluateAST evaluates an already parsed formula.
func (e *Evaluator) EvaluateAST(ast ASTNode, ctx *EvalContext) (Value, error) {
	if ctx == nil {
		ctx = NewEvalContext()
	}
	return ast.Eval(e, ctx)
}

func (e *Evaluator) evalReference(n *ReferenceNode, ctx *EvalContext) (Value, error) {
	if n.Qualified() {
		return e.resolveQualified(n.Table, n.Name, ctx)
	}
	return e.resolveName(n.Name, ctx)
}

// resolveName looks a bare identifier up in LET bindings, then the current
// table's columns, then the scalars.
func (e *Evaluator) resolveName(name string, ctx *EvalContext) (Value, error) {
	if value, ok := ctx.local(name); ok {
		return value, nil
	}
	if ctx.table != "" {
		if values, ok := ctx.column(ctx.table, name); ok {
			return columnValue(ctx, ctx.table, name, values)
		}
	}
	if value, ok := ctx.Scalars[name]; ok {
		return scalarValue(ctx, value)
	}
	return Null, NewEvalError(ErrorKindUnknownReference, "Unknown variable: %s%s", name, suggestion(name, ctx.visibleNames()))
}

// resolveQualified resolves a.b as the scalar "a.b" first and as column b
// of table a otherwise.
func (e *Evaluator) resolveQualified(table, name string, ctx *EvalContext) (Value, error) {
	if value, ok := ctx.Scalars[table+"."+name]; ok {
		return scalarValue(ctx, value)
	}
	columns, ok := ctx.Tables[table]
	if !ok {
		return Null, NewEvalError(ErrorKindUnknownReference, "Unknown table: %s%s", table, suggestion(table, sortedKeys(ctx.Tables)))
	}
	values, ok := columns[name]
	if !ok {
		return Null, NewEvalError(ErrorKindUnknownReference, "Unknown column: %s.%s%s", table, name, suggestion(name, sortedKeys(columns)))
	}
	return columnValue(ctx, table, name, values)
}

func columnValue(ctx *EvalContext, table, name string, values []Value) (Value, error) {
	if !ctx.inRow {
		return Array(values), nil
	}
	if len(values) != ctx.rowCount {
		return Null, NewEvalError(ErrorKindDimensionMismatch, "Row count mismatch: %s.%s has %d rows but expected %d", table, name, len(values), ctx.rowCount)
	}
	if ctx.row >= len(values) {
		return Null, NewEvalError(ErrorKindIndex, "Row %d out of bounds", ctx.row)
	}
	return values[ctx.row], nil
}

// scalarValue returns a scalar, taking the current row of an array-valued
// scalar in row mode.
func scalarValue(ctx *EvalContext, value Value) (Value, error) {
	if !ctx.inRow || !value.IsArray() {
		return value, nil
	}
	if ctx.row >= len(value.Items) {
		return Null, NewEvalError(ErrorKindIndex, "Row %d out of bounds", ctx.row)
	}
	return value.Items[ctx.row], nil
}

// visibleNames lists the names a bare identifier could have meant.
func (c *EvalContext) visibleNames() []string {
	var names []string
	for b := c.locals; b != nil; b = b.next {
		names = append(names, b.name)
	}
	if columns, ok := c.Tables[c.table]; ok && c.table != "" {
		names = append(names, sortedKeys(columns)...)
	}
	return append(names, sortedKeys(c.Scalars)...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// evalIndex evaluates target[index] with a 0-based index. The target is
// always evaluated as a whole array, even in row mode.
func (e *Evaluator) evalIndex(n *IndexNode, ctx *EvalContext) (Value, error) {
	target, err := n.Target.Eval(e, ctx.arrayMode())
	if err != nil {
		return Null, err
	}
	indexVal, err := n.Index.Eval(e, ctx)
	if err != nil {
		return Null, err
	}
	idx, ok := indexVal.AsNumber()
	if !ok {
		return Null, NewEvalError(ErrorKindTypeMismatch, "Array index must be a number")
	}
	if !target.IsArray() {
		return Null, NewEvalError(ErrorKindTypeMismatch, "Cannot index non-array value %s", n.Target.ToString())
	}
	if !(idx >= 0 && idx < float64(len(target.Items))) {
		return Null, NewEvalError(ErrorKindIndex, "Array index %s out of bounds for %s (length %d)", formatNumber(idx), n.Target.ToString(), len(target.Items))
	}
	return target.Items[toInt(idx)], nil
}

// evalBinaryOp applies op to two values. Arrays combine element-wise with
// arrays of the same length and broadcast against single values.
func evalBinaryOp(op BinaryOp, left, right Value) (Value, error) {
	if !left.IsArray() && !right.IsArray() {
		return scalarBinaryOp(op, left, right)
	}
	n, err := broadcastLength(left, right)
	if err != nil {
		return Null, err
	}
	items := make([]Value, n)
	for i := range items {
		item, err := scalarBinaryOp(op, broadcastAt(left, i), broadcastAt(right, i))
		if err != nil {
			return Null, err
		}
		items[i] = item
	}
	return Array(items), nil
}

func broadcastLength(left, right Value) (int, error) {
	switch {
	case left.IsArray() && right.IsArray():
		if len(left.Items) != len(right.Items) {
			return 0, NewEvalError(ErrorKindDimensionMismatch, "Array length mismatch: %d vs %d", len(left.Items), len(right.Items))
		}
		return len(left.Items), nil
	case left.IsArray():
		return len(left.Items), nil
	default:
		return len(right.Items), nil
	}
}

func broadcastAt(v Value, i int) Value {
	if v.IsArray() {
		return v.Items[i]
	}
	return v
}

func scalarBinaryOp(op BinaryOp, left, right Value) (Value, error) {
	switch op {
	case BinOpConcat:
		return Text(left.AsText() + right.AsText()), nil
	case BinOpEqual:
		return Boolean(ValuesEqual(left, right)), nil
	case BinOpNotEqual:
		return Boolean(!ValuesEqual(left, right)), nil
	case BinOpAdd:
		if left.Type == ValueText || right.Type == ValueText {
			return Text(left.AsText() + right.AsText()), nil
		}
	}

	l, r, err := numericOperands(op, left, right)
	if err != nil {
		return Null, err
	}

	switch op {
	case BinOpAdd:
		return Number(l + r), nil
	case BinOpSubtract:
		return Number(l - r), nil
	case BinOpMultiply:
		return Number(l * r), nil
	case BinOpDivide:
		if r == 0 {
			return Null, NewEvalError(ErrorKindDivisionByZero, "Division by zero")
		}
		return Number(l / r), nil
	case BinOpPower:
		result := math.Pow(l, r)
		if math.IsNaN(result) || math.IsInf(result, 0) {
			return Null, NewEvalError(ErrorKindDomain, "Invalid power: %s^%s", formatNumber(l), formatNumber(r))
		}
		return Number(result), nil
	case BinOpLess:
		return Boolean(l < r), nil
	case BinOpLessEqual:
		return Boolean(l <= r), nil
	case BinOpGreater:
		return Boolean(l > r), nil
	case BinOpGreaterEqual:
		return Boolean(l >= r), nil
	}
	return Null, NewEvalError(ErrorKindParse, "Unknown operator: %s", binaryOpSymbols[op])
}

func numericOperands(op BinaryOp, left, right Value) (float64, float64, error) {
	l, ok := left.AsNumber()
	if !ok {
		return 0, 0, NewEvalError(ErrorKindTypeMismatch, "Left operand of %s must be a number, got %s", binaryOpSymbols[op], describe(left))
	}
	r, ok := right.AsNumber()
	if !ok {
		return 0, 0, NewEvalError(ErrorKindTypeMismatch, "Right operand of %s must be a number, got %s", binaryOpSymbols[op], describe(right))
	}
	return l, r, nil
}

func evalUnaryOp(op UnaryOp, operand Value) (Value, error) {
	if operand.IsArray() {
		items := make([]Value, len(operand.Items))
		for i, item := range operand.Items {
			v, err := evalUnaryOp(op, item)
			if err != nil {
				return Null, err
			}
			items[i] = v
		}
		return Array(items), nil
	}
	n, ok := operand.AsNumber()
	if !ok {
		return Null, NewEvalError(ErrorKindTypeMismatch, "Operand must be a number, got %s", describe(operand))
	}
	switch op {
	case UnaryOpMinus:
		return Number(-n), nil
	case UnaryOpPercent:
		return Number(n / 100), nil
	default:
		return Number(n), nil
	}
}

package calc

import (
	"fmt"
	"strconv"
	"strings"
)

// lookupArray evaluates the array argument of a lookup in array mode.
func (e *Evaluator) lookupArray(name, param string, arg ASTNode, ctx *EvalContext) ([]Value, error) {
	v, err := arg.Eval(e, ctx.arrayMode())
	if err != nil {
		return nil, err
	}
	if v.Type != ValueArray {
		if param == "" {
			return nil, NewEvalError(ErrorKindTypeMismatch, "%s requires an array", name)
		}
		return nil, NewEvalError(ErrorKindTypeMismatch, "%s %s must be an array", name, param)
	}
	return v.Items, nil
}

// wholeArg reads a whole-number argument such as a match mode or a
// position. Anything that is not a number is rejected.
func wholeArg(name, param string, v Value) (int, error) {
	n, ok := v.AsNumber()
	if !ok {
		return 0, NewEvalError(ErrorKindInvalidArgument, "%s: %s must be a number, got %s", name, param, describe(v))
	}
	return toInt(n), nil
}

// nearest returns the index of the closest numeric item on one side of
// target: the largest item <= target when below is set, otherwise the
// smallest item >= target.
func nearest(items []Value, target float64, below bool) int {
	best := -1
	bestVal := 0.0
	for i, item := range items {
		n, ok := item.AsNumber()
		if !ok {
			continue
		}
		if below {
			if n <= target && (best < 0 || n > bestVal) {
				best, bestVal = i, n
			}
		} else if n >= target && (best < 0 || n < bestVal) {
			best, bestVal = i, n
		}
	}
	return best
}

func firstEqual(items []Value, target Value) int {
	for i, item := range items {
		if ValuesEqual(target, item) {
			return i
		}
	}
	return -1
}

// fnMatch is MATCH(value, array, [match_type]) returning a 1-based position.
func (e *Evaluator) fnMatch(n *FunctionCallNode, ctx *EvalContext) (Value, error) {
	if err := requireArgsRange("MATCH", len(n.Args), 2, 3); err != nil {
		return Null, err
	}
	target, err := n.Args[0].Eval(e, ctx)
	if err != nil {
		return Null, err
	}
	items, err := e.lookupArray("MATCH", "", n.Args[1], ctx)
	if err != nil {
		return Null, err
	}
	matchType := 1
	if len(n.Args) > 2 {
		v, err := n.Args[2].Eval(e, ctx)
		if err != nil {
			return Null, err
		}
		if matchType, err = wholeArg("MATCH", "match_type", v); err != nil {
			return Null, err
		}
	}

	idx := -1
	switch matchType {
	case 0:
		idx = firstEqual(items, target)
	case 1:
		if num, ok := target.AsNumber(); ok {
			idx = nearest(items, num, true)
		} else {
			want := strings.ToLower(target.AsText())
			for i, item := range items {
				if strings.ToLower(item.AsText()) == want {
					idx = i
					break
				}
			}
		}
	case -1:
		if num, ok := target.AsNumber(); ok {
			idx = nearest(items, num, false)
		}
	default:
		return Null, NewEvalError(ErrorKindInvalidArgument, "MATCH: invalid match_type %d", matchType)
	}
	if idx < 0 {
		return Null, NewEvalError(ErrorKindLookupNotFound, "MATCH: value not found")
	}
	return Number(float64(idx + 1)), nil
}

// fnIndex is INDEX(array, row_num, [col_num]) with a 1-based row. The
// column argument is accepted for compatibility; arrays are flat.
func (e *Evaluator) fnIndex(n *FunctionCallNode, ctx *EvalContext) (Value, error) {
	if err := requireArgsRange("INDEX", len(n.Args), 2, 3); err != nil {
		return Null, err
	}
	items, err := e.lookupArray("INDEX", "", n.Args[0], ctx)
	if err != nil {
		return Null, err
	}
	v, err := n.Args[1].Eval(e, ctx)
	if err != nil {
		return Null, err
	}
	row, err := wholeArg("INDEX", "row_num", v)
	if err != nil {
		return Null, err
	}
	if row < 1 {
		return Null, NewEvalError(ErrorKindIndex, "INDEX: row_num %d must be >= 1", row)
	}
	if row > len(items) {
		return Null, NewEvalError(ErrorKindIndex, "INDEX row %d out of bounds", row)
	}
	return items[row-1], nil
}

// fnXlookup is XLOOKUP(value, lookup_array, return_array, [if_not_found],
// [match_mode]). Match mode 0 is exact, -1 exact or next smaller, 1 exact
// or next larger.
func (e *Evaluator) fnXlookup(n *FunctionCallNode, ctx *EvalContext) (Value, error) {
	if err := requireArgsRange("XLOOKUP", len(n.Args), 3, 6); err != nil {
		return Null, err
	}
	target, err := n.Args[0].Eval(e, ctx)
	if err != nil {
		return Null, err
	}
	keys, err := e.lookupArray("XLOOKUP", "lookup_array", n.Args[1], ctx)
	if err != nil {
		return Null, err
	}
	results, err := e.lookupArray("XLOOKUP", "return_array", n.Args[2], ctx)
	if err != nil {
		return Null, err
	}
	if len(keys) != len(results) {
		return Null, NewEvalError(ErrorKindDimensionMismatch,
			"XLOOKUP: lookup_array (%d) and return_array (%d) must have same length", len(keys), len(results))
	}
	mode := 0
	if len(n.Args) > 4 {
		v, err := n.Args[4].Eval(e, ctx)
		if err != nil {
			return Null, err
		}
		if mode, err = wholeArg("XLOOKUP", "match_mode", v); err != nil {
			return Null, err
		}
	}

	idx := firstEqual(keys, target)
	switch mode {
	case 0:
	case -1, 1:
		if num, ok := target.AsNumber(); idx < 0 && ok {
			idx = nearest(keys, num, mode == -1)
		}
	default:
		return Null, NewEvalError(ErrorKindInvalidArgument, "XLOOKUP: invalid match_mode %d", mode)
	}
	if idx >= 0 {
		return results[idx], nil
	}
	if len(n.Args) > 3 {
		return n.Args[3].Eval(e, ctx)
	}
	return Null, NewEvalError(ErrorKindLookupNotFound, "XLOOKUP: No match found")
}

// flatLookup implements VLOOKUP and HLOOKUP over a single flat array. The
// index argument is validated but selects nothing. With range_lookup (the
// default) the largest value <= the target matches.
func (e *Evaluator) flatLookup(n *FunctionCallNode, ctx *EvalContext, name string) (Value, error) {
	if err := requireArgsRange(name, len(n.Args), 3, 4); err != nil {
		return Null, err
	}
	target, err := n.Args[0].Eval(e, ctx)
	if err != nil {
		return Null, err
	}
	items, err := e.lookupArray(name, "table_array", n.Args[1], ctx)
	if err != nil {
		return Null, err
	}
	idxArg, err := n.Args[2].Eval(e, ctx)
	if err != nil {
		return Null, err
	}
	if _, ok := idxArg.AsNumber(); !ok {
		param := "col_index"
		if name == "HLOOKUP" {
			param = "row_index"
		}
		return Null, NewEvalError(ErrorKindTypeMismatch, "%s: %s must be a number", name, param)
	}
	rangeLookup := true
	if len(n.Args) > 3 {
		v, err := n.Args[3].Eval(e, ctx)
		if err != nil {
			return Null, err
		}
		rangeLookup = v.IsTruthy()
	}

	idx := -1
	if !rangeLookup {
		idx = firstEqual(items, target)
	} else if num, ok := target.AsNumber(); ok {
		idx = nearest(items, num, true)
	}
	if idx < 0 {
		return Null, NewEvalError(ErrorKindLookupNotFound, "%s: value not found", name)
	}
	return items[idx], nil
}

// fnChoose evaluates only the selected alternative.
func (e *Evaluator) fnChoose(n *FunctionCallNode, ctx *EvalContext) (Value, error) {
	if err := requireArgsRange("CHOOSE", len(n.Args), 2, 255); err != nil {
		return Null, err
	}
	v, err := n.Args[0].Eval(e, ctx)
	if err != nil {
		return Null, err
	}
	idx, ok := v.AsNumber()
	if !ok {
		return Null, NewEvalError(ErrorKindTypeMismatch, "CHOOSE index must be a number")
	}
	i := toInt(idx)
	if i < 1 || i >= len(n.Args) {
		return Null, NewEvalError(ErrorKindIndex, "CHOOSE index %d out of range", i)
	}
	return n.Args[i].Eval(e, ctx)
}

// fnIndirect resolves a scalar name or a "table.column" string at runtime.
func (e *Evaluator) fnIndirect(n *FunctionCallNode, ctx *EvalContext) (Value, error) {
	if err := requireArgs("INDIRECT", len(n.Args), 1); err != nil {
		return Null, err
	}
	v, err := n.Args[0].Eval(e, ctx)
	if err != nil {
		return Null, err
	}
	ref := strings.TrimSpace(v.AsText())
	if s, ok := ctx.Scalars[ref]; ok {
		return s, nil
	}
	if table, column, ok := strings.Cut(ref, "."); ok {
		if values, ok := ctx.column(table, column); ok {
			return Array(values), nil
		}
	}
	return Null, NewEvalError(ErrorKindUnknownReference, "INDIRECT: cannot resolve '%s'", ref)
}

// tableArg returns the table named by a bare reference argument.
func tableArg(arg ASTNode, ctx *EvalContext) (map[string][]Value, bool) {
	ref, ok := arg.(*ReferenceNode)
	if !ok || ref.Qualified() {
		return nil, false
	}
	if _, local := ctx.local(ref.Name); local {
		return nil, false
	}
	if _, scalar := ctx.Scalars[ref.Name]; scalar {
		return nil, false
	}
	table, ok := ctx.Tables[ref.Name]
	return table, ok
}

// fnRows counts the items of an array; a bare table name counts its rows
// and anything else is one row.
func (e *Evaluator) fnRows(n *FunctionCallNode, ctx *EvalContext) (Value, error) {
	if err := requireArgs("ROWS", len(n.Args), 1); err != nil {
		return Null, err
	}
	if table, ok := tableArg(n.Args[0], ctx); ok {
		rows := 0
		for _, values := range table {
			rows = max(rows, len(values))
		}
		return Number(float64(rows)), nil
	}
	v, err := n.Args[0].Eval(e, ctx.arrayMode())
	if err != nil {
		return Null, err
	}
	if v.Type == ValueArray {
		return Number(float64(len(v.Items))), nil
	}
	return Number(1), nil
}

// fnColumns counts the columns of a bare table name; arrays have one.
func (e *Evaluator) fnColumns(n *FunctionCallNode, ctx *EvalContext) (Value, error) {
	if err := requireArgs("COLUMNS", len(n.Args), 1); err != nil {
		return Null, err
	}
	if table, ok := tableArg(n.Args[0], ctx); ok {
		return Number(float64(len(table))), nil
	}
	if _, err := n.Args[0].Eval(e, ctx.arrayMode()); err != nil {
		return Null, err
	}
	return Number(1), nil
}

// fnOffset is OFFSET(reference, rows, cols, [height], [width]) over a flat
// array. rows skips items and height takes that many from there; cols and
// width are validated but select nothing. A single value can only be
// offset by 0, 0.
func (e *Evaluator) fnOffset(n *FunctionCallNode, ctx *EvalContext) (Value, error) {
	if err := requireArgsRange("OFFSET", len(n.Args), 3, 5); err != nil {
		return Null, err
	}
	base, err := n.Args[0].Eval(e, ctx.arrayMode())
	if err != nil {
		return Null, err
	}
	params := []string{"rows", "cols", "height", "width"}
	shape := make([]int, len(n.Args)-1)
	for i, arg := range n.Args[1:] {
		v, err := arg.Eval(e, ctx)
		if err != nil {
			return Null, err
		}
		if shape[i], err = wholeArg("OFFSET", params[i], v); err != nil {
			return Null, err
		}
	}
	rows, cols := shape[0], shape[1]
	if base.Type != ValueArray {
		if rows == 0 && cols == 0 {
			return base, nil
		}
		return Null, NewEvalError(ErrorKindIndex, "OFFSET: cannot offset a single value")
	}
	if rows < 0 || rows >= len(base.Items) {
		return Null, NewEvalError(ErrorKindIndex, "OFFSET: row %d out of bounds (length %d)", rows, len(base.Items))
	}
	if len(shape) < 3 {
		return base.Items[rows], nil
	}
	height := shape[2]
	if height < 1 || height > len(base.Items)-rows {
		return Null, NewEvalError(ErrorKindIndex, "OFFSET: height %d out of bounds", height)
	}
	return Array(append([]Value(nil), base.Items[rows:rows+height]...)), nil
}

// fnRow is the 1-based row of the row formula being evaluated. Outside a
// row formula, and for any reference argument, it is 1.
func (e *Evaluator) fnRow(n *FunctionCallNode, ctx *EvalContext) (Value, error) {
	if err := requireArgsRange("ROW", len(n.Args), 0, 1); err != nil {
		return Null, err
	}
	if row, ok := ctx.CurrentRow(); ok && len(n.Args) == 0 {
		return Number(float64(row + 1)), nil
	}
	return Number(1), nil
}

// fnColumn is always 1; columns are not ordered.
func (e *Evaluator) fnColumn(n *FunctionCallNode, ctx *EvalContext) (Value, error) {
	if err := requireArgsRange("COLUMN", len(n.Args), 0, 1); err != nil {
		return Null, err
	}
	return Number(1), nil
}

const maxAddressColumn = 16384

// fnAddress is ADDRESS(row, column, [abs_num], [a1], [sheet]). abs_num 1
// is fully absolute, 2 fixes the row, 3 fixes the column and 4 is relative.
func fnAddress(args []Value) (Value, error) {
	if err := requireArgsRange("ADDRESS", len(args), 2, 5); err != nil {
		return Null, err
	}
	row, err := wholeArg("ADDRESS", "row", args[0])
	if err != nil {
		return Null, err
	}
	column, err := wholeArg("ADDRESS", "column", args[1])
	if err != nil {
		return Null, err
	}
	absNum := 1
	if len(args) > 2 {
		if absNum, err = wholeArg("ADDRESS", "abs_num", args[2]); err != nil {
			return Null, err
		}
	}
	if absNum < 1 || absNum > 4 {
		return Null, NewEvalError(ErrorKindInvalidArgument, "ADDRESS: invalid abs_num %d", absNum)
	}
	if row < 1 {
		return Null, NewEvalError(ErrorKindIndex, "ADDRESS: row %d must be >= 1", row)
	}
	if column < 1 || column > maxAddressColumn {
		return Null, NewEvalError(ErrorKindIndex, "ADDRESS: column %d out of range", column)
	}
	a1 := len(args) < 4 || args[3].IsTruthy()
	absRow, absCol := absNum == 1 || absNum == 2, absNum == 1 || absNum == 3

	var address string
	if a1 {
		address = fmt.Sprintf("%s%s%s%d", dollar(absCol), columnLetters(column), dollar(absRow), row)
	} else {
		address = fmt.Sprintf("R%sC%s", r1c1Part(row, absRow), r1c1Part(column, absCol))
	}
	if len(args) > 4 && args[4].AsText() != "" {
		address = args[4].AsText() + "!" + address
	}
	return Text(address), nil
}

func dollar(absolute bool) string {
	if absolute {
		return "$"
	}
	return ""
}

func r1c1Part(n int, absolute bool) string {
	if absolute {
		return strconv.Itoa(n)
	}
	return "[" + strconv.Itoa(n) + "]"
}

// columnLetters converts a 1-based column number to A..Z, AA..ZZ, AAA...
func columnLetters(column int) string {
	var letters []byte
	for ; column > 0; column = (column - 1) / 26 {
		letters = append([]byte{byte('A' + (column-1)%26)}, letters...)
	}
	return string(letters)
}

package calc

import (
	"math"
	"strconv"
	"strings"
)

// criterion is a parsed condition such as ">=10", "<>closed" or "apple".
type criterion struct {
	op    string
	text  string
	num   float64
	isNum bool
	raw   Value
}

var criterionOps = []string{">=", "<=", "<>", "!=", ">", "<", "="}

func parseCriterion(v Value) criterion {
	text := v.AsText()
	for _, op := range criterionOps {
		if rest, ok := strings.CutPrefix(text, op); ok {
			c := criterion{op: op, text: strings.TrimSpace(rest), raw: v}
			c.num, c.isNum = parseCriterionNumber(c.text)
			return c
		}
	}
	return criterion{text: text, raw: v}
}

func parseCriterionNumber(s string) (float64, bool) {
	n, err := strconv.ParseFloat(s, 64)
	return n, err == nil
}

func sameNumber(a, b float64) bool {
	return math.Abs(a-b) < 1e-15
}

// matches applies the criterion. Numeric comparisons need both sides to be
// numbers; otherwise text equality ignores case.
func (c criterion) matches(v Value) bool {
	num, numOK := v.AsNumber()
	switch c.op {
	case ">=", "<=", ">", "<":
		if numOK && c.isNum {
			switch c.op {
			case ">=":
				return num >= c.num
			case "<=":
				return num <= c.num
			case ">":
				return num > c.num
			default:
				return num < c.num
			}
		}
	case "<>", "!=":
		if numOK && c.isNum {
			return !sameNumber(num, c.num)
		}
		return v.AsText() != c.text
	case "=":
		if numOK && c.isNum {
			return sameNumber(num, c.num)
		}
		return strings.EqualFold(v.AsText(), c.text)
	}
	if want, ok := c.raw.AsNumber(); ok && numOK {
		return sameNumber(num, want)
	}
	return strings.EqualFold(v.AsText(), c.raw.AsText())
}

// criteriaMask evaluates (range, criteria) pairs against a range of size n.
// Items past the end of a shorter criteria range stay selected.
func criteriaMask(n int, pairs []Value) []bool {
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		c := parseCriterion(pairs[i+1])
		for j, v := range pairs[i].Values() {
			if j < n && !c.matches(v) {
				mask[j] = false
			}
		}
	}
	return mask
}

// selected returns the numbers of values whose mask entry is set.
func selected(values []Value, mask []bool) []float64 {
	var nums []float64
	for i, v := range values {
		if i >= len(mask) || !mask[i] {
			continue
		}
		if n, ok := v.AsNumber(); ok {
			nums = append(nums, n)
		}
	}
	return nums
}

// singleCriterion handles the (range, criteria, [target_range]) shape of
// SUMIF and AVERAGEIF.
func singleCriterion(name string, args []Value) ([]float64, error) {
	if err := requireArgsRange(name, len(args), 2, 3); err != nil {
		return nil, err
	}
	rng := args[0].Values()
	target := rng
	if len(args) > 2 {
		target = args[2].Values()
	}
	return selected(target, criteriaMask(len(rng), args[:2])), nil
}

// multiCriteria handles the (target_range, range1, criteria1, ...) shape.
func multiCriteria(name, usage string, args []Value) ([]float64, error) {
	if len(args) < 3 || len(args)%2 == 0 {
		return nil, NewEvalError(ErrorKindInvalidArgument, "%s requires %s", name, usage)
	}
	target := args[0].Values()
	return selected(target, criteriaMask(len(target), args[1:])), nil
}

func sum(nums []float64) float64 {
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return total
}

func fnSumif(args []Value) (Value, error) {
	nums, err := singleCriterion("SUMIF", args)
	if err != nil {
		return Null, err
	}
	return Number(sum(nums)), nil
}

func fnSumifs(args []Value) (Value, error) {
	nums, err := multiCriteria("SUMIFS", "sum_range, criteria_range1, criteria1, ...", args)
	if err != nil {
		return Null, err
	}
	return Number(sum(nums)), nil
}

func fnCountif(args []Value) (Value, error) {
	if err := requireArgs("COUNTIF", len(args), 2); err != nil {
		return Null, err
	}
	count := 0
	for _, m := range criteriaMask(len(args[0].Values()), args) {
		if m {
			count++
		}
	}
	return Number(float64(count)), nil
}

func fnCountifs(args []Value) (Value, error) {
	if len(args) < 2 || len(args)%2 != 0 {
		return Null, NewEvalError(ErrorKindInvalidArgument, "COUNTIFS requires criteria_range1, criteria1, ...")
	}
	count := 0
	for _, m := range criteriaMask(len(args[0].Values()), args) {
		if m {
			count++
		}
	}
	return Number(float64(count)), nil
}

func fnAverageif(args []Value) (Value, error) {
	nums, err := singleCriterion("AVERAGEIF", args)
	if err != nil {
		return Null, err
	}
	if len(nums) == 0 {
		return Null, NewEvalError(ErrorKindDivisionByZero, "AVERAGEIF: no matching values")
	}
	return Number(mean(nums)), nil
}

func fnAverageifs(args []Value) (Value, error) {
	nums, err := multiCriteria("AVERAGEIFS", "avg_range, criteria_range1, criteria1, ...", args)
	if err != nil {
		return Null, err
	}
	if len(nums) == 0 {
		return Null, NewEvalError(ErrorKindDivisionByZero, "AVERAGEIFS: no matching values")
	}
	return Number(mean(nums)), nil
}

// extremumIfs builds MAXIFS and MINIFS, which return 0 when nothing
// matches.
func extremumIfs(name string, better func(a, b float64) bool) valueFunc {
	usage := strings.ToLower(name[:3]) + "_range, criteria_range1, criteria1, ..."
	return func(args []Value) (Value, error) {
		nums, err := multiCriteria(name, usage, args)
		if err != nil {
			return Null, err
		}
		if len(nums) == 0 {
			return Number(0), nil
		}
		best := nums[0]
		for _, n := range nums[1:] {
			if better(n, best) {
				best = n
			}
		}
		return Number(best), nil
	}
}

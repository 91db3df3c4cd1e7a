package calc

import (
	"math"
	"sort"
)

// fnUnique keeps the first occurrence of each distinct value.
func fnUnique(args []Value) (Value, error) {
	if err := requireArgs("UNIQUE", len(args), 1); err != nil {
		return Null, err
	}
	return Array(uniqueValues(args[0].Values())), nil
}

// fnSort orders the numbers of an array, descending when the order
// argument is negative.
func fnSort(args []Value) (Value, error) {
	if err := requireArgsRange("SORT", len(args), 1, 2); err != nil {
		return Null, err
	}
	nums := collectNumbers(args[:1])
	if optionalNumber(args, 1, 1) < 0 {
		sort.Sort(sort.Reverse(sort.Float64Slice(nums)))
	} else {
		sort.Float64s(nums)
	}
	return NumberArray(nums), nil
}

// fnFilter keeps the items whose matching include value is truthy.
func fnFilter(args []Value) (Value, error) {
	if err := requireArgs("FILTER", len(args), 2); err != nil {
		return Null, err
	}
	data, include := args[0].Values(), args[1].Values()
	var kept []Value
	for i, v := range data {
		if i < len(include) && include[i].IsTruthy() {
			kept = append(kept, v)
		}
	}
	return Array(kept), nil
}

func arrayShape(name string, args []Value) (int, error) {
	rows, cols := 1, 1
	var err error
	if len(args) > 0 {
		if rows, err = integerArg(name, "rows", args[0], 0); err != nil {
			return 0, err
		}
	}
	if len(args) > 1 {
		if cols, err = integerArg(name, "columns", args[1], 0); err != nil {
			return 0, err
		}
	}
	if rows > maxBuildLen || cols > maxBuildLen || rows*cols > maxBuildLen {
		return 0, NewEvalError(ErrorKindInvalidArgument, "%s: more than %d items requested", name, maxBuildLen)
	}
	return rows * cols, nil
}

// fnSequence is SEQUENCE(rows, [columns], [start], [step]) flattened row by
// row.
func fnSequence(args []Value) (Value, error) {
	if err := requireArgsRange("SEQUENCE", len(args), 1, 4); err != nil {
		return Null, err
	}
	total, err := arrayShape("SEQUENCE", args)
	if err != nil {
		return Null, err
	}
	start := optionalNumber(args, 2, 1)
	step := optionalNumber(args, 3, 1)
	nums := make([]float64, total)
	for i := range nums {
		nums[i] = start + float64(i)*step
	}
	return NumberArray(nums), nil
}

// fnRandarray is RANDARRAY([rows], [columns], [min], [max], [whole_number]).
func (e *Evaluator) fnRandarray(args []Value) (Value, error) {
	if err := requireArgsRange("RANDARRAY", len(args), 0, 5); err != nil {
		return Null, err
	}
	total, err := arrayShape("RANDARRAY", args)
	if err != nil {
		return Null, err
	}
	lo := optionalNumber(args, 2, 0)
	hi := optionalNumber(args, 3, 1)
	if lo > hi {
		return Null, NewEvalError(ErrorKindInvalidArgument, "RANDARRAY: min must be <= max")
	}
	whole := len(args) > 4 && args[4].IsTruthy()
	nums := make([]float64, total)
	for i := range nums {
		if whole {
			bottom, top := math.Floor(lo), math.Floor(hi)
			nums[i] = bottom + math.Floor(e.rng.Float64()*(top-bottom+1))
		} else {
			nums[i] = lo + e.rng.Float64()*(hi-lo)
		}
	}
	return NumberArray(nums), nil
}

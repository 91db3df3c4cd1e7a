package calc

import (
	"fmt"
	"math"
)

// domain restricts the input of a unary math function.
type domain struct {
	ok      func(x float64) bool
	message string
}

var (
	noDomain          = domain{}
	positiveDomain    = domain{ok: func(x float64) bool { return x > 0 }, message: "of non-positive number"}
	nonNegativeDomain = domain{ok: func(x float64) bool { return x >= 0 }, message: "of negative number"}
	unitDomain        = domain{ok: func(x float64) bool { return x >= -1 && x <= 1 }, message: "argument must be between -1 and 1"}
)

// unaryMath builds a one-argument numeric function.
func unaryMath(name string, d domain, fn func(float64) float64) valueFunc {
	return func(args []Value) (Value, error) {
		if err := requireArgs(name, len(args), 1); err != nil {
			return Null, err
		}
		x, err := numberArg(name, args[0])
		if err != nil {
			return Null, err
		}
		if d.ok != nil && !d.ok(x) {
			return Null, NewEvalError(ErrorKindDomain, "%s %s", name, d.message)
		}
		return Number(fn(x)), nil
	}
}

var fnSqrt = unaryMath("SQRT", nonNegativeDomain, math.Sqrt)

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func roundHalfAway(x float64) float64 { return math.Round(x) }
func roundUp(x float64) float64       { return sign(x) * math.Ceil(math.Abs(x)) }
func roundDown(x float64) float64     { return sign(x) * math.Floor(math.Abs(x)) }

// roundFunc builds ROUND-style functions taking (number, [digits]).
func roundFunc(name string, round func(float64) float64) valueFunc {
	return func(args []Value) (Value, error) {
		if err := requireArgsRange(name, len(args), 1, 2); err != nil {
			return Null, err
		}
		x, err := numberArg(name, args[0])
		if err != nil {
			return Null, err
		}
		digits := optionalInt(args, 1, 0)
		multiplier := math.Pow(10, float64(digits))
		return Number(round(x*multiplier) / multiplier), nil
	}
}

// significanceFunc builds FLOOR and CEILING, which round to a multiple of
// an optional significance. A zero significance yields 0.
func significanceFunc(name string, round func(float64) float64) valueFunc {
	return func(args []Value) (Value, error) {
		if err := requireArgsRange(name, len(args), 1, 2); err != nil {
			return Null, err
		}
		x, err := numberArg(name, args[0])
		if err != nil {
			return Null, err
		}
		significance := optionalNumber(args, 1, 1)
		if significance == 0 {
			return Number(0), nil
		}
		return Number(round(x/significance) * significance), nil
	}
}

// fnMod takes the sign of the divisor, like spreadsheets do.
func fnMod(args []Value) (Value, error) {
	if err := requireArgs("MOD", len(args), 2); err != nil {
		return Null, err
	}
	nums, err := numberArgs("MOD", args)
	if err != nil {
		return Null, err
	}
	if nums[1] == 0 {
		return Null, NewEvalError(ErrorKindDomain, "MOD division by zero")
	}
	return Number(nums[0] - nums[1]*math.Floor(nums[0]/nums[1])), nil
}

func fnPower(args []Value) (Value, error) {
	if err := requireArgs("POWER", len(args), 2); err != nil {
		return Null, err
	}
	nums, err := numberArgs("POWER", args)
	if err != nil {
		return Null, err
	}
	result := math.Pow(nums[0], nums[1])
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return Null, NewEvalError(ErrorKindDomain, "POWER: invalid result for %s^%s", formatNumber(nums[0]), formatNumber(nums[1]))
	}
	return Number(result), nil
}

// fnLog is LOG(number, [base]) with base 10 by default.
func fnLog(args []Value) (Value, error) {
	if err := requireArgsRange("LOG", len(args), 1, 2); err != nil {
		return Null, err
	}
	x, err := numberArg("LOG", args[0])
	if err != nil {
		return Null, err
	}
	if x <= 0 {
		return Null, NewEvalError(ErrorKindDomain, "LOG of non-positive number")
	}
	base := 10.0
	if len(args) == 2 {
		if base, err = numberArg("LOG", args[1]); err != nil {
			return Null, err
		}
		if base <= 0 || base == 1 {
			return Null, NewEvalError(ErrorKindDomain, "LOG base must be positive and not 1, got %s", formatNumber(base))
		}
	}
	return Number(math.Log(x) / math.Log(base)), nil
}

func (e *Evaluator) fnRand(args []Value) (Value, error) {
	if err := requireArgs("RAND", len(args), 0); err != nil {
		return Null, err
	}
	return Number(e.rng.Float64()), nil
}

func (e *Evaluator) fnRandbetween(args []Value) (Value, error) {
	if err := requireArgs("RANDBETWEEN", len(args), 2); err != nil {
		return Null, err
	}
	nums, err := numberArgs("RANDBETWEEN", args)
	if err != nil {
		return Null, err
	}
	if nums[0] > nums[1] {
		return Null, NewEvalError(ErrorKindInvalidArgument, "RANDBETWEEN: bottom must be <= top")
	}
	bottom, top := math.Ceil(nums[0]), math.Floor(nums[1])
	if bottom > top {
		return Null, NewEvalError(ErrorKindInvalidArgument, "RANDBETWEEN: no integers in range")
	}
	return Number(bottom + math.Floor(e.rng.Float64()*(top-bottom+1))), nil
}

// integerArg converts an argument to a whole number of at least min.
func integerArg(name, param string, v Value, min int) (int, error) {
	n, err := numberArg(name, v)
	if err != nil {
		return 0, err
	}
	if n < float64(min) {
		return 0, NewEvalError(ErrorKindInvalidArgument, "%s: %s must be >= %d", name, param, min)
	}
	return toInt(n), nil
}

func describe(v Value) string {
	return fmt.Sprintf("%s %q", v.Type, v.AsText())
}

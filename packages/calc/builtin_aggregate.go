package calc

import (
	"math"
	"sort"
)

func fnSum(args []Value) (Value, error) {
	total := 0.0
	for _, n := range collectNumbers(args) {
		total += n
	}
	return Number(total), nil
}

// fnProduct returns 0 when there is nothing to multiply.
func fnProduct(args []Value) (Value, error) {
	nums := collectNumbers(args)
	if len(nums) == 0 {
		return Number(0), nil
	}
	product := 1.0
	for _, n := range nums {
		product *= n
	}
	return Number(product), nil
}

func fnAverage(args []Value) (Value, error) {
	nums := collectNumbers(args)
	if len(nums) == 0 {
		return Null, NewEvalError(ErrorKindDivisionByZero, "AVERAGE of empty set")
	}
	return Number(mean(nums)), nil
}

// fnCount counts values that convert to numbers inside arrays, and number
// arguments given directly.
func fnCount(args []Value) (Value, error) {
	return Number(float64(len(collectNumbers(args)))), nil
}

func fnCounta(args []Value) (Value, error) {
	count := 0
	for _, v := range flattenValues(args) {
		if !v.IsNull() {
			count++
		}
	}
	return Number(float64(count)), nil
}

func fnCountblank(args []Value) (Value, error) {
	count := 0
	for _, v := range flattenValues(args) {
		if isBlank(v) {
			count++
		}
	}
	return Number(float64(count)), nil
}

// extremum builds MIN and MAX. better reports whether a should replace b.
func extremum(name string, better func(a, b float64) bool) valueFunc {
	return func(args []Value) (Value, error) {
		nums := collectNumbers(args)
		if len(nums) == 0 {
			return Null, NewEvalError(ErrorKindInvalidArgument, "%s of empty set", name)
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

func fnCountunique(args []Value) (Value, error) {
	if err := requireArgs("COUNTUNIQUE", len(args), 1); err != nil {
		return Null, err
	}
	return Number(float64(len(uniqueValues(args[0].Values())))), nil
}

// uniqueValues dedupes by textual representation, keeping the first
// occurrence of each.
func uniqueValues(values []Value) []Value {
	seen := make(map[string]struct{}, len(values))
	var result []Value
	for _, v := range values {
		key := v.AsText()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, v)
	}
	return result
}

func mean(nums []float64) float64 {
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return total / float64(len(nums))
}

func sortedCopy(nums []float64) []float64 {
	sorted := append([]float64(nil), nums...)
	sort.Float64s(sorted)
	return sorted
}

// kthFunc builds LARGE and SMALL, which return the k-th value counted from
// the top or the bottom.
func kthFunc(name string, largest bool) valueFunc {
	return func(args []Value) (Value, error) {
		if err := requireArgs(name, len(args), 2); err != nil {
			return Null, err
		}
		nums := collectNumbers(args[:1])
		k, ok := args[1].AsNumber()
		if !ok {
			return Null, NewEvalError(ErrorKindTypeMismatch, "%s k must be a number", name)
		}
		pos := toInt(k)
		if pos < 1 || pos > len(nums) {
			return Null, NewEvalError(ErrorKindDomain, "%s: k must be between 1 and %d", name, len(nums))
		}
		sorted := sortedCopy(nums)
		if largest {
			return Number(sorted[len(sorted)-pos]), nil
		}
		return Number(sorted[pos-1]), nil
	}
}

// fnRankEq is RANK.EQ(value, array, [order]). Order 0 ranks the largest
// value first; ties share the best rank.
func fnRankEq(args []Value) (Value, error) {
	if err := requireArgsRange("RANK.EQ", len(args), 2, 3); err != nil {
		return Null, err
	}
	target, err := numberArg("RANK.EQ", args[0])
	if err != nil {
		return Null, err
	}
	ascending := false
	if len(args) > 2 {
		order, err := wholeArg("RANK.EQ", "order", args[2])
		if err != nil {
			return Null, err
		}
		ascending = order != 0
	}
	rank, found := 1, false
	for _, n := range collectNumbers(args[1:2]) {
		switch {
		case n == target:
			found = true
		case ascending && n < target, !ascending && n > target:
			rank++
		}
	}
	if !found {
		return Null, NewEvalError(ErrorKindLookupNotFound, "RANK.EQ: value %s not found", formatNumber(target))
	}
	return Number(float64(rank)), nil
}

func fnMedian(args []Value) (Value, error) {
	nums := collectNumbers(args)
	if len(nums) == 0 {
		return Null, NewEvalError(ErrorKindInvalidArgument, "MEDIAN of empty set")
	}
	sorted := sortedCopy(nums)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return Number((sorted[mid-1] + sorted[mid]) / 2), nil
	}
	return Number(sorted[mid]), nil
}

// varianceFunc builds VAR.S, VAR.P, STDEV.S and STDEV.P. A sample needs at
// least two values.
func varianceFunc(name string, sample, root bool) valueFunc {
	minValues := 1
	if sample {
		minValues = 2
	}
	return func(args []Value) (Value, error) {
		nums := collectNumbers(args)
		if len(nums) < minValues {
			if minValues == 1 {
				return Null, NewEvalError(ErrorKindInvalidArgument, "%s requires at least 1 value", name)
			}
			return Null, NewEvalError(ErrorKindInvalidArgument, "%s requires at least 2 values", name)
		}
		m := mean(nums)
		sumSq := 0.0
		for _, n := range nums {
			sumSq += (n - m) * (n - m)
		}
		divisor := float64(len(nums))
		if sample {
			divisor--
		}
		variance := sumSq / divisor
		if root {
			return Number(math.Sqrt(variance)), nil
		}
		return Number(variance), nil
	}
}

// interpolate returns the k-th quantile (0 <= k <= 1) of sorted values by
// linear interpolation between order statistics.
func interpolate(sorted []float64, k float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := k * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

func fnPercentile(args []Value) (Value, error) {
	if err := requireArgs("PERCENTILE", len(args), 2); err != nil {
		return Null, err
	}
	nums := collectNumbers(args[:1])
	if len(nums) == 0 {
		return Null, NewEvalError(ErrorKindInvalidArgument, "PERCENTILE of empty set")
	}
	k, ok := args[1].AsNumber()
	if !ok {
		return Null, NewEvalError(ErrorKindTypeMismatch, "PERCENTILE k must be a number")
	}
	if k < 0 || k > 1 {
		return Null, NewEvalError(ErrorKindDomain, "PERCENTILE k must be between 0 and 1")
	}
	return Number(interpolate(sortedCopy(nums), k)), nil
}

func fnQuartile(args []Value) (Value, error) {
	if err := requireArgs("QUARTILE", len(args), 2); err != nil {
		return Null, err
	}
	nums := collectNumbers(args[:1])
	if len(nums) == 0 {
		return Null, NewEvalError(ErrorKindInvalidArgument, "QUARTILE of empty set")
	}
	q, ok := args[1].AsNumber()
	if !ok {
		return Null, NewEvalError(ErrorKindTypeMismatch, "QUARTILE quart must be a number")
	}
	quart := toInt(q)
	if quart < 0 || quart > 4 {
		return Null, NewEvalError(ErrorKindDomain, "QUARTILE quart must be 0, 1, 2, 3, or 4")
	}
	return Number(interpolate(sortedCopy(nums), float64(quart)/4)), nil
}

// fnCorrel is the Pearson correlation coefficient.
func fnCorrel(args []Value) (Value, error) {
	if err := requireArgs("CORREL", len(args), 2); err != nil {
		return Null, err
	}
	xs := collectNumbers(args[:1])
	ys := collectNumbers(args[1:])
	if len(xs) != len(ys) || len(xs) < 2 {
		return Null, NewEvalError(ErrorKindInvalidArgument, "CORREL requires two arrays of equal length >= 2")
	}
	xMean, yMean := mean(xs), mean(ys)
	var cov, varX, varY float64
	for i := range xs {
		dx := xs[i] - xMean
		dy := ys[i] - yMean
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return Null, NewEvalError(ErrorKindDomain, "CORREL: zero variance")
	}
	return Number(cov / (math.Sqrt(varX) * math.Sqrt(varY))), nil
}

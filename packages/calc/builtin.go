package calc

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (w *WallClock) Now() time.Time {
	return time.Now()
}

// RandomGenerator interface provides random number generation for testing
type RandomGenerator interface {
	Float64() float64
}

// DefaultRandomGenerator uses the standard library's rand package
type DefaultRandomGenerator struct{}

func (d *DefaultRandomGenerator) Float64() float64 {
	return rand.Float64()
}

type config struct {
	clock    Clock
	rng      RandomGenerator
	logger   hclog.Logger
	location *time.Location
}

// Option configures an Evaluator or an ArrayCalculator.
type Option func(*config)

// WithClock sets the clock used by TODAY and NOW.
func WithClock(clock Clock) Option {
	return func(c *config) { c.clock = clock }
}

// WithRandom sets the source used by RAND, RANDBETWEEN and RANDARRAY.
func WithRandom(rng RandomGenerator) Option {
	return func(c *config) { c.rng = rng }
}

// WithLogger sets the logger of an ArrayCalculator. A logger attached to
// the context passed to CalculateAll takes precedence.
func WithLogger(logger hclog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithLocation sets the time zone TODAY and NOW report in and that loose
// date strings are parsed in. The default is UTC.
func WithLocation(loc *time.Location) Option {
	return func(c *config) { c.location = loc }
}

func newConfig(opts []Option) *config {
	cfg := &config{
		clock:    &WallClock{},
		rng:      &DefaultRandomGenerator{},
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.location == nil {
		cfg.location = time.UTC
	}
	return cfg
}

// valueFunc is a built-in that only needs its evaluated arguments.
type valueFunc func(args []Value) (Value, error)

// call dispatches a function call node to its implementation. Functions
// that control the evaluation of their arguments (IF, IFERROR, LET, the
// lookups) receive the node; the others receive evaluated values.
func (e *Evaluator) call(n *FunctionCallNode, ctx *EvalContext) (Value, error) {
	switch n.Func.ID {
	// math
	case FnAbs:
		return e.eager(n, ctx, unaryMath("ABS", noDomain, math.Abs))
	case FnSqrt:
		return e.eager(n, ctx, fnSqrt)
	case FnRound:
		return e.eager(n, ctx, roundFunc("ROUND", roundHalfAway))
	case FnRoundup:
		return e.eager(n, ctx, roundFunc("ROUNDUP", roundUp))
	case FnRounddown:
		return e.eager(n, ctx, roundFunc("ROUNDDOWN", roundDown))
	case FnFloor:
		return e.eager(n, ctx, significanceFunc("FLOOR", math.Floor))
	case FnCeiling:
		return e.eager(n, ctx, significanceFunc("CEILING", math.Ceil))
	case FnMod:
		return e.eager(n, ctx, fnMod)
	case FnPower:
		return e.eager(n, ctx, fnPower)
	case FnExp:
		return e.eager(n, ctx, unaryMath("EXP", noDomain, math.Exp))
	case FnLn:
		return e.eager(n, ctx, unaryMath("LN", positiveDomain, math.Log))
	case FnLog10:
		return e.eager(n, ctx, unaryMath("LOG10", positiveDomain, math.Log10))
	case FnLog:
		return e.eager(n, ctx, fnLog)
	case FnInt:
		return e.eager(n, ctx, unaryMath("INT", noDomain, math.Floor))
	case FnSign:
		return e.eager(n, ctx, unaryMath("SIGN", noDomain, sign))
	case FnTrunc:
		return e.eager(n, ctx, roundFunc("TRUNC", roundDown))
	case FnPi:
		return e.eager(n, ctx, constant("PI", Number(math.Pi)))
	case FnE:
		return e.eager(n, ctx, constant("E", Number(math.E)))
	case FnRand:
		return e.eager(n, ctx, e.fnRand)
	case FnRandbetween:
		return e.eager(n, ctx, e.fnRandbetween)

	// aggregation
	case FnSum:
		return e.eager(n, ctx, fnSum)
	case FnProduct:
		return e.eager(n, ctx, fnProduct)
	case FnAverage:
		return e.eager(n, ctx, fnAverage)
	case FnCount:
		return e.eager(n, ctx, fnCount)
	case FnCounta:
		return e.eager(n, ctx, fnCounta)
	case FnCountblank:
		return e.eager(n, ctx, fnCountblank)
	case FnMin:
		return e.eager(n, ctx, extremum("MIN", func(a, b float64) bool { return a < b }))
	case FnMax:
		return e.eager(n, ctx, extremum("MAX", func(a, b float64) bool { return a > b }))
	case FnCountunique:
		return e.arrayEager(n, ctx, fnCountunique)
	case FnLarge:
		return e.eager(n, ctx, kthFunc("LARGE", true))
	case FnSmall:
		return e.eager(n, ctx, kthFunc("SMALL", false))
	case FnRankEq:
		return e.eager(n, ctx, fnRankEq)

	// statistical
	case FnMedian:
		return e.eager(n, ctx, fnMedian)
	case FnVarS:
		return e.eager(n, ctx, varianceFunc("VAR.S", true, false))
	case FnVarP:
		return e.eager(n, ctx, varianceFunc("VAR.P", false, false))
	case FnStdevS:
		return e.eager(n, ctx, varianceFunc("STDEV.S", true, true))
	case FnStdevP:
		return e.eager(n, ctx, varianceFunc("STDEV.P", false, true))
	case FnPercentile:
		return e.eager(n, ctx, fnPercentile)
	case FnQuartile:
		return e.eager(n, ctx, fnQuartile)
	case FnCorrel:
		return e.eager(n, ctx, fnCorrel)

	// logical
	case FnIf:
		return e.fnIf(n, ctx)
	case FnAnd:
		return e.eager(n, ctx, fnAnd)
	case FnOr:
		return e.eager(n, ctx, fnOr)
	case FnNot:
		return e.eager(n, ctx, fnNot)
	case FnXor:
		return e.eager(n, ctx, fnXor)
	case FnIferror:
		return e.fnIferror(n, ctx)
	case FnIfna:
		return e.fnIfna(n, ctx)
	case FnIfs:
		return e.fnIfs(n, ctx)
	case FnTrue:
		return e.eager(n, ctx, constant("TRUE", Boolean(true)))
	case FnFalse:
		return e.eager(n, ctx, constant("FALSE", Boolean(false)))

	// text
	case FnConcat:
		return e.eager(n, ctx, fnConcat)
	case FnUpper:
		return e.eager(n, ctx, caseFunc("UPPER", upperCaser))
	case FnLower:
		return e.eager(n, ctx, caseFunc("LOWER", lowerCaser))
	case FnProper:
		return e.eager(n, ctx, caseFunc("PROPER", titleCaser))
	case FnTrim:
		return e.eager(n, ctx, fnTrim)
	case FnLen:
		return e.eager(n, ctx, fnLen)
	case FnLeft:
		return e.eager(n, ctx, fnLeft)
	case FnRight:
		return e.eager(n, ctx, fnRight)
	case FnMid:
		return e.eager(n, ctx, fnMid)
	case FnRept:
		return e.eager(n, ctx, fnRept)
	case FnReplace:
		return e.eager(n, ctx, fnReplace)
	case FnSubstitute:
		return e.eager(n, ctx, fnSubstitute)
	case FnFind:
		return e.eager(n, ctx, findFunc("FIND", false))
	case FnSearch:
		return e.eager(n, ctx, findFunc("SEARCH", true))
	case FnText:
		return e.eager(n, ctx, fnText)
	case FnValue:
		return e.eager(n, ctx, fnValue)

	// date
	case FnToday:
		return e.eager(n, ctx, e.fnToday)
	case FnNow:
		return e.eager(n, ctx, e.fnNow)
	case FnDate:
		return e.eager(n, ctx, fnDate)
	case FnTime:
		return e.eager(n, ctx, fnTime)
	case FnYear:
		return e.eager(n, ctx, e.dateComponent("YEAR", func(t time.Time) int { return t.Year() }))
	case FnMonth:
		return e.eager(n, ctx, e.dateComponent("MONTH", func(t time.Time) int { return int(t.Month()) }))
	case FnDay:
		return e.eager(n, ctx, e.dateComponent("DAY", func(t time.Time) int { return t.Day() }))
	case FnHour:
		return e.eager(n, ctx, timeComponent("HOUR", 0))
	case FnMinute:
		return e.eager(n, ctx, timeComponent("MINUTE", 1))
	case FnSecond:
		return e.eager(n, ctx, timeComponent("SECOND", 2))
	case FnDays:
		return e.eager(n, ctx, e.fnDays)
	case FnWeekday:
		return e.eager(n, ctx, e.fnWeekday)
	case FnEdate:
		return e.eager(n, ctx, e.fnEdate)
	case FnEomonth:
		return e.eager(n, ctx, e.fnEomonth)
	case FnDatedif:
		return e.eager(n, ctx, e.fnDatedif)
	case FnYearfrac:
		return e.eager(n, ctx, e.fnYearfrac)
	case FnWorkday:
		return e.eager(n, ctx, e.fnWorkday)
	case FnNetworkdays:
		return e.eager(n, ctx, e.fnNetworkdays)

	// lookup
	case FnMatch:
		return e.fnMatch(n, ctx)
	case FnIndex:
		return e.fnIndex(n, ctx)
	case FnXlookup:
		return e.fnXlookup(n, ctx)
	case FnVlookup:
		return e.flatLookup(n, ctx, "VLOOKUP")
	case FnHlookup:
		return e.flatLookup(n, ctx, "HLOOKUP")
	case FnChoose:
		return e.fnChoose(n, ctx)
	case FnIndirect:
		return e.fnIndirect(n, ctx)
	case FnRows:
		return e.fnRows(n, ctx)
	case FnColumns:
		return e.fnColumns(n, ctx)
	case FnOffset:
		return e.fnOffset(n, ctx)
	case FnRow:
		return e.fnRow(n, ctx)
	case FnColumn:
		return e.fnColumn(n, ctx)
	case FnAddress:
		return e.eager(n, ctx, fnAddress)

	// financial
	case FnPmt:
		return e.eager(n, ctx, fnPmt)
	case FnFv:
		return e.eager(n, ctx, fnFv)
	case FnPv:
		return e.eager(n, ctx, fnPv)
	case FnNpv:
		return e.eager(n, ctx, fnNpv)
	case FnIrr:
		return e.eager(n, ctx, fnIrr)
	case FnNper:
		return e.eager(n, ctx, fnNper)
	case FnRate:
		return e.eager(n, ctx, fnRate)
	case FnXnpv:
		return e.eager(n, ctx, e.fnXnpv)
	case FnXirr:
		return e.eager(n, ctx, e.fnXirr)
	case FnMirr:
		return e.eager(n, ctx, fnMirr)
	case FnSln:
		return e.eager(n, ctx, fnSln)
	case FnDb:
		return e.eager(n, ctx, fnDb)
	case FnDdb:
		return e.eager(n, ctx, fnDdb)
	case FnPpmt:
		return e.eager(n, ctx, fnPpmt)
	case FnIpmt:
		return e.eager(n, ctx, fnIpmt)
	case FnEffect:
		return e.eager(n, ctx, fnEffect)
	case FnNominal:
		return e.eager(n, ctx, fnNominal)
	case FnPricedisc:
		return e.eager(n, ctx, e.fnPricedisc)
	case FnYielddisc:
		return e.eager(n, ctx, e.fnYielddisc)
	case FnAccrint:
		return e.eager(n, ctx, e.fnAccrint)

	// trigonometric
	case FnSin:
		return e.eager(n, ctx, unaryMath("SIN", noDomain, math.Sin))
	case FnCos:
		return e.eager(n, ctx, unaryMath("COS", noDomain, math.Cos))
	case FnTan:
		return e.eager(n, ctx, unaryMath("TAN", noDomain, math.Tan))
	case FnAsin:
		return e.eager(n, ctx, unaryMath("ASIN", unitDomain, math.Asin))
	case FnAcos:
		return e.eager(n, ctx, unaryMath("ACOS", unitDomain, math.Acos))
	case FnAtan:
		return e.eager(n, ctx, unaryMath("ATAN", noDomain, math.Atan))
	case FnSinh:
		return e.eager(n, ctx, unaryMath("SINH", noDomain, math.Sinh))
	case FnCosh:
		return e.eager(n, ctx, unaryMath("COSH", noDomain, math.Cosh))
	case FnTanh:
		return e.eager(n, ctx, unaryMath("TANH", noDomain, math.Tanh))
	case FnRadians:
		return e.eager(n, ctx, unaryMath("RADIANS", noDomain, func(x float64) float64 { return x * math.Pi / 180 }))
	case FnDegrees:
		return e.eager(n, ctx, unaryMath("DEGREES", noDomain, func(x float64) float64 { return x * 180 / math.Pi }))

	// information
	case FnIsblank:
		return e.eager(n, ctx, isFunc("ISBLANK", isBlank))
	case FnIsna:
		return e.eager(n, ctx, isFunc("ISNA", func(v Value) bool { return v.IsNull() }))
	case FnIserror:
		return e.fnIserror(n, ctx)
	case FnIsnumber:
		return e.eager(n, ctx, isFunc("ISNUMBER", func(v Value) bool { return v.Type == ValueNumber }))
	case FnIstext:
		return e.eager(n, ctx, isFunc("ISTEXT", func(v Value) bool { return v.Type == ValueText }))
	case FnIslogical:
		return e.eager(n, ctx, isFunc("ISLOGICAL", func(v Value) bool { return v.Type == ValueBoolean }))
	case FnIseven:
		return e.eager(n, ctx, parityFunc("ISEVEN", 0))
	case FnIsodd:
		return e.eager(n, ctx, parityFunc("ISODD", 1))
	case FnIsref:
		return e.fnIsref(n, ctx)
	case FnIsformula:
		return e.fnIsformula(n, ctx)
	case FnNa:
		return e.eager(n, ctx, constant("NA", Null))
	case FnType:
		return e.eager(n, ctx, fnType)
	case FnN:
		return e.eager(n, ctx, fnN)

	// conditional
	case FnSumif:
		return e.eager(n, ctx, fnSumif)
	case FnSumifs:
		return e.eager(n, ctx, fnSumifs)
	case FnCountif:
		return e.eager(n, ctx, fnCountif)
	case FnCountifs:
		return e.eager(n, ctx, fnCountifs)
	case FnAverageif:
		return e.eager(n, ctx, fnAverageif)
	case FnAverageifs:
		return e.eager(n, ctx, fnAverageifs)
	case FnMaxifs:
		return e.eager(n, ctx, extremumIfs("MAXIFS", func(a, b float64) bool { return a > b }))
	case FnMinifs:
		return e.eager(n, ctx, extremumIfs("MINIFS", func(a, b float64) bool { return a < b }))

	// array
	case FnUnique:
		return e.arrayEager(n, ctx, fnUnique)
	case FnSort:
		return e.arrayEager(n, ctx, fnSort)
	case FnFilter:
		return e.arrayEager(n, ctx, fnFilter)
	case FnSequence:
		return e.eager(n, ctx, fnSequence)
	case FnRandarray:
		return e.eager(n, ctx, e.fnRandarray)

	// advanced
	case FnLet:
		return e.fnLet(n, ctx)
	case FnLambda:
		return e.fnLambda(n)
	case FnSwitch:
		return e.fnSwitch(n, ctx)

	// domain
	case FnVariance:
		return e.eager(n, ctx, fnVariance)
	case FnVariancePct:
		return e.eager(n, ctx, fnVariancePct)
	case FnVarianceStatus:
		return e.eager(n, ctx, fnVarianceStatus)
	case FnBreakevenUnits:
		return e.eager(n, ctx, fnBreakevenUnits)
	case FnBreakevenRevenue:
		return e.eager(n, ctx, fnBreakevenRevenue)
	case FnScenario:
		return e.fnScenario(n, ctx)
	}
	return Null, NewEvalError(ErrorKindUnknownReference, "Unknown function: %s", n.Name)
}

// eager evaluates every argument in ctx and passes the values to fn.
func (e *Evaluator) eager(n *FunctionCallNode, ctx *EvalContext, fn valueFunc) (Value, error) {
	args, err := e.evalArgs(n.Args, ctx)
	if err != nil {
		return Null, err
	}
	return fn(args)
}

// arrayEager is eager with the arguments evaluated in array mode, for
// functions that consume whole columns even inside a row formula.
func (e *Evaluator) arrayEager(n *FunctionCallNode, ctx *EvalContext, fn valueFunc) (Value, error) {
	return e.eager(n, ctx.arrayMode(), fn)
}

func (e *Evaluator) evalArgs(args []ASTNode, ctx *EvalContext) ([]Value, error) {
	values := make([]Value, len(args))
	for i, arg := range args {
		v, err := arg.Eval(e, ctx)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// evalArray evaluates arg as a whole array.
func (e *Evaluator) evalArray(arg ASTNode, ctx *EvalContext) ([]Value, error) {
	v, err := arg.Eval(e, ctx.arrayMode())
	if err != nil {
		return nil, err
	}
	return v.Values(), nil
}

func requireArgs(name string, got, want int) error {
	if got != want {
		return NewEvalError(ErrorKindInvalidArgument, "%s requires %d argument(s), got %d", name, want, got)
	}
	return nil
}

func requireArgsRange(name string, got, min, max int) error {
	if got < min || got > max {
		return NewEvalError(ErrorKindInvalidArgument, "%s requires %d-%d arguments, got %d", name, min, max, got)
	}
	return nil
}

func requireMinArgs(name string, got, min int) error {
	if got < min {
		return NewEvalError(ErrorKindInvalidArgument, "%s requires at least %d argument(s), got %d", name, min, got)
	}
	return nil
}

func constant(name string, v Value) valueFunc {
	return func(args []Value) (Value, error) {
		if err := requireArgs(name, len(args), 0); err != nil {
			return Null, err
		}
		return v, nil
	}
}

// numberArg converts a function argument to a number.
func numberArg(name string, v Value) (float64, error) {
	n, ok := v.AsNumber()
	if !ok {
		return 0, NewEvalError(ErrorKindTypeMismatch, "%s requires a number, got %s", name, describe(v))
	}
	return n, nil
}

// numberArgs converts all arguments to numbers.
func numberArgs(name string, args []Value) ([]float64, error) {
	nums := make([]float64, len(args))
	for i, arg := range args {
		n, err := numberArg(name, arg)
		if err != nil {
			return nil, err
		}
		nums[i] = n
	}
	return nums, nil
}

// optionalNumber returns args[i] as a number, or def when the argument is
// absent or does not convert.
func optionalNumber(args []Value, i int, def float64) float64 {
	if i >= len(args) {
		return def
	}
	if n, ok := args[i].AsNumber(); ok {
		return n
	}
	return def
}

// maxIntArg bounds whole-number arguments so that offsets built from them
// cannot overflow.
const maxIntArg = 1 << 53

// maxBuildLen bounds the arrays and strings built-ins construct.
const maxBuildLen = 1 << 20

// toInt truncates f toward zero, saturating at +/-maxIntArg. NaN is 0.
func toInt(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f > maxIntArg:
		return maxIntArg
	case f < -maxIntArg:
		return -maxIntArg
	}
	return int(f)
}

// optionalInt is optionalNumber truncated with toInt.
func optionalInt(args []Value, i int, def int) int {
	return toInt(optionalNumber(args, i, float64(def)))
}

// collectNumbers flattens arguments into numbers. Array items contribute
// whatever converts to a number; direct arguments only when they are
// numbers.
func collectNumbers(args []Value) []float64 {
	var nums []float64
	for _, arg := range args {
		switch arg.Type {
		case ValueArray:
			for _, item := range arg.Items {
				if n, ok := item.AsNumber(); ok {
					nums = append(nums, n)
				}
			}
		case ValueNumber:
			nums = append(nums, arg.Num)
		}
	}
	return nums
}

// flattenValues expands array arguments into their items.
func flattenValues(args []Value) []Value {
	var values []Value
	for _, arg := range args {
		values = append(values, arg.Values()...)
	}
	return values
}

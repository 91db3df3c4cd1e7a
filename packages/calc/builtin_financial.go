package calc

import (
	"math"
	"time"
)

const (
	solverIterations = 100
	solverTolerance  = 1e-10
)

// annuity holds the common (rate, nper, pmt, pv, fv, type) parameters of
// the time-value functions.
type annuity struct {
	rate, nper, pmt, pv, fv float64
	due                     bool
}

// growth is (1+rate)^nper.
func (a annuity) growth() float64 {
	return math.Pow(1+a.rate, a.nper)
}

func (a annuity) payment() float64 {
	if a.rate == 0 {
		return -(a.pv + a.fv) / a.nper
	}
	g := a.growth()
	pmt := (-a.pv*a.rate*g - a.fv*a.rate) / (g - 1)
	if a.due {
		pmt /= 1 + a.rate
	}
	return pmt
}

func (a annuity) futureValue() float64 {
	if a.rate == 0 {
		return -a.pv - a.pmt*a.nper
	}
	g := a.growth()
	pmt := a.pmt
	if a.due {
		pmt *= 1 + a.rate
	}
	return -a.pv*g - pmt*(g-1)/a.rate
}

func (a annuity) presentValue() float64 {
	if a.rate == 0 {
		return -a.fv - a.pmt*a.nper
	}
	g := a.growth()
	pmt := a.pmt
	if a.due {
		pmt *= 1 + a.rate
	}
	return (-a.fv - pmt*(g-1)/a.rate) / g
}

// financialArgs reads the required leading numbers then optional trailing
// ones, which default to zero.
func financialArgs(name string, args []Value, required, optional int) ([]float64, error) {
	if err := requireArgsRange(name, len(args), required, required+optional); err != nil {
		return nil, err
	}
	nums, err := numberArgs(name, args[:required])
	if err != nil {
		return nil, err
	}
	for i := required; i < required+optional; i++ {
		nums = append(nums, optionalNumber(args, i, 0))
	}
	return nums, nil
}

func finite(name string, x float64) (Value, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Null, NewEvalError(ErrorKindDomain, "%s: result is not a finite number", name)
	}
	return Number(x), nil
}

// fnPmt is PMT(rate, nper, pv, [fv], [type]).
func fnPmt(args []Value) (Value, error) {
	n, err := financialArgs("PMT", args, 3, 2)
	if err != nil {
		return Null, err
	}
	if n[1] == 0 {
		return Null, NewEvalError(ErrorKindDivisionByZero, "PMT: nper cannot be zero")
	}
	return finite("PMT", annuity{rate: n[0], nper: n[1], pv: n[2], fv: n[3], due: n[4] == 1}.payment())
}

// fnFv is FV(rate, nper, pmt, [pv], [type]).
func fnFv(args []Value) (Value, error) {
	n, err := financialArgs("FV", args, 3, 2)
	if err != nil {
		return Null, err
	}
	return finite("FV", annuity{rate: n[0], nper: n[1], pmt: n[2], pv: n[3], due: n[4] == 1}.futureValue())
}

// fnPv is PV(rate, nper, pmt, [fv], [type]).
func fnPv(args []Value) (Value, error) {
	n, err := financialArgs("PV", args, 3, 2)
	if err != nil {
		return Null, err
	}
	return finite("PV", annuity{rate: n[0], nper: n[1], pmt: n[2], fv: n[3], due: n[4] == 1}.presentValue())
}

// fnNpv discounts the cash flows starting one period from now.
func fnNpv(args []Value) (Value, error) {
	if err := requireArgsRange("NPV", len(args), 2, 255); err != nil {
		return Null, err
	}
	rate, ok := args[0].AsNumber()
	if !ok {
		return Null, NewEvalError(ErrorKindTypeMismatch, "NPV rate must be a number")
	}
	npv := 0.0
	for i, cf := range collectNumbers(args[1:]) {
		npv += cf / math.Pow(1+rate, float64(i+1))
	}
	return finite("NPV", npv)
}

// hasSignChange reports whether the cash flows contain both an inflow and
// an outflow, without which no rate of return exists.
func hasSignChange(flows []float64) bool {
	var pos, neg bool
	for _, cf := range flows {
		pos = pos || cf > 0
		neg = neg || cf < 0
	}
	return pos && neg
}

// discounted returns sum(flow / (1+rate)^t) over the flow times.
func discounted(rate float64, flows, times []float64) float64 {
	total := 0.0
	for i, cf := range flows {
		total += cf / math.Pow(1+rate, times[i])
	}
	return total
}

// solveRate finds the rate where f crosses zero. Newton's method runs from
// guess first; if it diverges the interval (-1, 1e6) is scanned for a sign
// change and bisected.
func solveRate(f func(rate float64) float64, guess float64) (float64, bool) {
	rate := guess
	for range solverIterations {
		y := f(rate)
		if math.Abs(y) < solverTolerance {
			return rate, true
		}
		h := 1e-6 * max(1, math.Abs(rate))
		slope := (f(rate+h) - f(rate-h)) / (2 * h)
		if slope == 0 || math.IsNaN(slope) {
			break
		}
		next := rate - y/slope
		if math.IsNaN(next) || math.IsInf(next, 0) || next <= -1 {
			break
		}
		if math.Abs(next-rate) < solverTolerance {
			return next, true
		}
		rate = next
	}
	return bisectRate(f)
}

func bisectRate(f func(rate float64) float64) (float64, bool) {
	lo := -0.999999
	flo := f(lo)
	for hi := -0.99; hi < 1e6; hi = nextProbe(hi) {
		fhi := f(hi)
		if math.IsNaN(fhi) {
			continue
		}
		if flo == 0 {
			return lo, true
		}
		if math.Signbit(flo) != math.Signbit(fhi) {
			for range 200 {
				mid := (lo + hi) / 2
				fmid := f(mid)
				if math.Signbit(fmid) == math.Signbit(flo) {
					lo, flo = mid, fmid
				} else {
					hi = mid
				}
			}
			return (lo + hi) / 2, true
		}
		lo, flo = hi, fhi
	}
	return 0, false
}

// nextProbe steps finely near zero and geometrically beyond 1.
func nextProbe(r float64) float64 {
	if r < 1 {
		return r + 0.01
	}
	return r * 1.5
}

func rateOfReturn(name string, flows, times []float64, guess float64) (Value, error) {
	if !hasSignChange(flows) {
		return Null, NewEvalError(ErrorKindDomain, "%s requires both positive and negative cash flows", name)
	}
	rate, ok := solveRate(func(r float64) float64 { return discounted(r, flows, times) }, guess)
	if !ok {
		return Null, NewEvalError(ErrorKindDomain, "%s: failed to converge", name)
	}
	return Number(rate), nil
}

// fnIrr is IRR(values, [guess]) over evenly spaced periods.
func fnIrr(args []Value) (Value, error) {
	if err := requireArgsRange("IRR", len(args), 1, 2); err != nil {
		return Null, err
	}
	flows := collectNumbers(args[:1])
	if len(flows) == 0 {
		return Null, NewEvalError(ErrorKindInvalidArgument, "IRR requires cash flows")
	}
	times := make([]float64, len(flows))
	for i := range times {
		times[i] = float64(i)
	}
	return rateOfReturn("IRR", flows, times, optionalNumber(args, 1, 0.1))
}

// fnNper is NPER(rate, pmt, pv, [fv], [type]).
func fnNper(args []Value) (Value, error) {
	n, err := financialArgs("NPER", args, 3, 2)
	if err != nil {
		return Null, err
	}
	rate, pmt, pv, fv := n[0], n[1], n[2], n[3]
	if rate == 0 {
		if pmt == 0 {
			return Null, NewEvalError(ErrorKindDivisionByZero, "NPER: payment cannot be zero at a zero rate")
		}
		return Number(-(pv + fv) / pmt), nil
	}
	if n[4] == 1 {
		pmt *= 1 + rate
	}
	return finite("NPER", math.Log((-fv*rate+pmt)/(pv*rate+pmt))/math.Log(1+rate))
}

// fnRate is RATE(nper, pmt, pv, [fv], [type], [guess]).
func fnRate(args []Value) (Value, error) {
	n, err := financialArgs("RATE", args, 3, 3)
	if err != nil {
		return Null, err
	}
	guess := optionalNumber(args, 5, 0.1)
	a := annuity{nper: n[0], pmt: n[1], pv: n[2], fv: n[3], due: n[4] == 1}
	f := func(r float64) float64 {
		a.rate = r
		if r == 0 {
			return a.pv + a.pmt*a.nper + a.fv
		}
		g := a.growth()
		pmt := a.pmt
		if a.due {
			pmt *= 1 + r
		}
		return a.pv*g + pmt*(g-1)/r + a.fv
	}
	rate, ok := solveRate(f, guess)
	if !ok {
		return Null, NewEvalError(ErrorKindDomain, "RATE: failed to converge")
	}
	return Number(rate), nil
}

// datedFlows reads the values and dates of XNPV and XIRR. Times are in
// years of 365 days from the first date.
func (e *Evaluator) datedFlows(name string, values, dates Value) ([]float64, []float64, error) {
	flows := collectNumbers([]Value{values})
	items := dates.Values()
	if len(flows) == 0 || len(flows) != len(items) {
		return nil, nil, NewEvalError(ErrorKindInvalidArgument, "%s: values and dates must have same length", name)
	}
	times := make([]float64, len(items))
	var first time.Time
	for i, item := range items {
		d, err := e.dateArg(name, item)
		if err != nil {
			return nil, nil, err
		}
		if i == 0 {
			first = d
		}
		times[i] = float64(daysBetween(first, d)) / 365
	}
	return flows, times, nil
}

// fnXnpv is XNPV(rate, values, dates).
func (e *Evaluator) fnXnpv(args []Value) (Value, error) {
	if err := requireArgs("XNPV", len(args), 3); err != nil {
		return Null, err
	}
	rate, err := numberArg("XNPV", args[0])
	if err != nil {
		return Null, err
	}
	flows, times, err := e.datedFlows("XNPV", args[1], args[2])
	if err != nil {
		return Null, err
	}
	return finite("XNPV", discounted(rate, flows, times))
}

// fnXirr is XIRR(values, dates, [guess]).
func (e *Evaluator) fnXirr(args []Value) (Value, error) {
	if err := requireArgsRange("XIRR", len(args), 2, 3); err != nil {
		return Null, err
	}
	flows, times, err := e.datedFlows("XIRR", args[0], args[1])
	if err != nil {
		return Null, err
	}
	return rateOfReturn("XIRR", flows, times, optionalNumber(args, 2, 0.1))
}

// fnMirr compounds positive flows at the reinvestment rate and discounts
// negative ones at the finance rate.
func fnMirr(args []Value) (Value, error) {
	if err := requireArgs("MIRR", len(args), 3); err != nil {
		return Null, err
	}
	flows := collectNumbers(args[:1])
	rates, err := numberArgs("MIRR", args[1:])
	if err != nil {
		return Null, err
	}
	if len(flows) < 2 {
		return Null, NewEvalError(ErrorKindInvalidArgument, "MIRR requires cash flows")
	}
	finance, reinvest := rates[0], rates[1]
	n := float64(len(flows))
	var negative, positive float64
	for i, cf := range flows {
		if cf < 0 {
			negative += cf / math.Pow(1+finance, float64(i))
		} else {
			positive += cf * math.Pow(1+reinvest, n-1-float64(i))
		}
	}
	if negative == 0 || positive == 0 {
		return Null, NewEvalError(ErrorKindDomain, "MIRR requires both positive and negative cash flows")
	}
	return finite("MIRR", math.Pow(-positive/negative, 1/(n-1))-1)
}

// fnSln is straight-line depreciation per period.
func fnSln(args []Value) (Value, error) {
	n, err := financialArgs("SLN", args, 3, 0)
	if err != nil {
		return Null, err
	}
	if n[2] == 0 {
		return Null, NewEvalError(ErrorKindDivisionByZero, "SLN: life cannot be zero")
	}
	return Number((n[0] - n[1]) / n[2]), nil
}

// fnDb is fixed-declining-balance depreciation, DB(cost, salvage, life,
// period, [month]). The rate is rounded to three decimals and the first
// and last periods are prorated by month.
func fnDb(args []Value) (Value, error) {
	n, err := financialArgs("DB", args, 4, 1)
	if err != nil {
		return Null, err
	}
	cost, salvage, life, period := n[0], n[1], n[2], n[3]
	month := 12.0
	if len(args) > 4 {
		month = n[4]
	}
	if life == 0 || cost == 0 {
		return Number(0), nil
	}
	if period < 1 || period > life+1 || period > maxBuildLen {
		return Null, NewEvalError(ErrorKindDomain, "DB: period must be between 1 and life")
	}
	rate := math.Round((1-math.Pow(salvage/cost, 1/life))*1000) / 1000
	depreciation, remaining := 0.0, cost
	for p := 1; p <= toInt(period); p++ {
		switch {
		case p == 1:
			depreciation = cost * rate * month / 12
		case p == toInt(life)+1:
			depreciation = remaining * rate * (12 - month) / 12
		default:
			depreciation = remaining * rate
		}
		remaining -= depreciation
	}
	return Number(depreciation), nil
}

// fnDdb is double-declining-balance depreciation, DDB(cost, salvage, life,
// period, [factor]). Book value never drops below salvage.
func fnDdb(args []Value) (Value, error) {
	n, err := financialArgs("DDB", args, 4, 1)
	if err != nil {
		return Null, err
	}
	cost, salvage, life, period := n[0], n[1], n[2], n[3]
	factor := 2.0
	if len(args) > 4 {
		factor = n[4]
	}
	if life == 0 {
		return Null, NewEvalError(ErrorKindDivisionByZero, "DDB: life cannot be zero")
	}
	if period < 1 || period > life || period > maxBuildLen {
		return Null, NewEvalError(ErrorKindDomain, "DDB: period must be between 1 and life")
	}
	rate := factor / life
	depreciation, remaining := 0.0, cost
	for p := 1; p <= toInt(period); p++ {
		depreciation = remaining * rate
		if remaining-depreciation < salvage {
			depreciation = remaining - salvage
		}
		depreciation = max(depreciation, 0)
		remaining -= depreciation
	}
	return Number(depreciation), nil
}

// loanSplit reads (rate, per, nper, pv, [fv], [type]) and returns the
// payment and the interest part of period per.
func loanSplit(name string, args []Value) (float64, float64, error) {
	n, err := financialArgs(name, args, 4, 2)
	if err != nil {
		return 0, 0, err
	}
	rate, per, nper := n[0], n[1], n[2]
	if per < 1 || per > nper {
		return 0, 0, NewEvalError(ErrorKindDomain, "%s: period must be between 1 and nper", name)
	}
	a := annuity{rate: rate, nper: nper, pv: n[3], fv: n[4], due: n[5] == 1}
	pmt := a.payment()
	if rate == 0 {
		return pmt, 0, nil
	}
	// interest accrues on the balance left after per-1 payments
	before := annuity{rate: rate, nper: per - 1, pmt: pmt, pv: a.pv, due: a.due}
	interest := before.futureValue() * rate
	if a.due {
		if per == 1 {
			interest = 0
		} else {
			interest = (annuity{rate: rate, nper: per - 2, pmt: pmt, pv: a.pv, due: true}.futureValue() - pmt) * rate
		}
	}
	return pmt, interest, nil
}

// fnIpmt is the interest part of one loan payment.
func fnIpmt(args []Value) (Value, error) {
	_, interest, err := loanSplit("IPMT", args)
	if err != nil {
		return Null, err
	}
	return finite("IPMT", interest)
}

// fnPpmt is the principal part of one loan payment.
func fnPpmt(args []Value) (Value, error) {
	pmt, interest, err := loanSplit("PPMT", args)
	if err != nil {
		return Null, err
	}
	return finite("PPMT", pmt-interest)
}

func compounding(name string, args []Value) (float64, float64, error) {
	n, err := financialArgs(name, args, 2, 0)
	if err != nil {
		return 0, 0, err
	}
	periods := math.Trunc(n[1])
	if n[0] <= 0 || periods < 1 {
		return 0, 0, NewEvalError(ErrorKindDomain, "%s: rate must be > 0 and npery >= 1", name)
	}
	return n[0], periods, nil
}

// fnEffect converts a nominal annual rate to the effective rate.
func fnEffect(args []Value) (Value, error) {
	nominal, periods, err := compounding("EFFECT", args)
	if err != nil {
		return Null, err
	}
	return Number(math.Pow(1+nominal/periods, periods) - 1), nil
}

// fnNominal converts an effective annual rate to the nominal rate.
func fnNominal(args []Value) (Value, error) {
	effect, periods, err := compounding("NOMINAL", args)
	if err != nil {
		return Null, err
	}
	return Number(periods * (math.Pow(1+effect, 1/periods) - 1)), nil
}

// security reads the (settlement, maturity, x, redemption, [basis])
// arguments of PRICEDISC and YIELDDISC and returns x, the redemption and
// the year fraction between the dates.
func (e *Evaluator) security(name string, args []Value) (float64, float64, float64, error) {
	if err := requireArgsRange(name, len(args), 4, 5); err != nil {
		return 0, 0, 0, err
	}
	settlement, err := e.dateArg(name, args[0])
	if err != nil {
		return 0, 0, 0, err
	}
	maturity, err := e.dateArg(name, args[1])
	if err != nil {
		return 0, 0, 0, err
	}
	if !settlement.Before(maturity) {
		return 0, 0, 0, NewEvalError(ErrorKindDomain, "%s: settlement must be before maturity", name)
	}
	nums, err := numberArgs(name, args[2:4])
	if err != nil {
		return 0, 0, 0, err
	}
	if nums[0] <= 0 || nums[1] <= 0 {
		return 0, 0, 0, NewEvalError(ErrorKindDomain, "%s: rate and redemption must be > 0", name)
	}
	frac, err := yearFraction(name, settlement, maturity, optionalInt(args, 4, 0))
	if err != nil {
		return 0, 0, 0, err
	}
	return nums[0], nums[1], frac.Num, nil
}

// fnPricedisc is the price per 100 face value of a discounted security.
func (e *Evaluator) fnPricedisc(args []Value) (Value, error) {
	discount, redemption, years, err := e.security("PRICEDISC", args)
	if err != nil {
		return Null, err
	}
	return Number(redemption - discount*redemption*years), nil
}

// fnYielddisc is the annual yield of a discounted security.
func (e *Evaluator) fnYielddisc(args []Value) (Value, error) {
	price, redemption, years, err := e.security("YIELDDISC", args)
	if err != nil {
		return Null, err
	}
	return Number((redemption - price) / price / years), nil
}

// fnAccrint is the interest accrued from issue to settlement,
// ACCRINT(issue, first_interest, settlement, rate, par, frequency, [basis]).
func (e *Evaluator) fnAccrint(args []Value) (Value, error) {
	if err := requireArgsRange("ACCRINT", len(args), 6, 7); err != nil {
		return Null, err
	}
	issue, err := e.dateArg("ACCRINT", args[0])
	if err != nil {
		return Null, err
	}
	if _, err := e.dateArg("ACCRINT", args[1]); err != nil {
		return Null, err
	}
	settlement, err := e.dateArg("ACCRINT", args[2])
	if err != nil {
		return Null, err
	}
	nums, err := numberArgs("ACCRINT", args[3:6])
	if err != nil {
		return Null, err
	}
	rate, par, frequency := nums[0], nums[1], nums[2]
	if rate <= 0 || par <= 0 {
		return Null, NewEvalError(ErrorKindDomain, "ACCRINT: rate and par must be > 0")
	}
	if frequency != 1 && frequency != 2 && frequency != 4 {
		return Null, NewEvalError(ErrorKindInvalidArgument, "ACCRINT: frequency must be 1, 2 or 4")
	}
	if !issue.Before(settlement) {
		return Null, NewEvalError(ErrorKindDomain, "ACCRINT: issue must be before settlement")
	}
	frac, err := yearFraction("ACCRINT", issue, settlement, optionalInt(args, 6, 0))
	if err != nil {
		return Null, err
	}
	return Number(par * rate * frac.Num), nil
}

package calc

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fixtureContext holds arrays as scalars so formulas can read them by name.
func fixtureContext() *EvalContext {
	ctx := NewEvalContext()
	ctx.Scalars["nums"] = NumberArray([]float64{1, 2, 3, 4, 5})
	ctx.Scalars["quad"] = NumberArray([]float64{1, 2, 3, 4})
	ctx.Scalars["tens"] = NumberArray([]float64{10, 20, 30})
	ctx.Scalars["codes"] = NumberArray([]float64{100, 200, 300})
	ctx.Scalars["spread"] = NumberArray([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	ctx.Scalars["doubled"] = NumberArray([]float64{2, 4, 6, 8, 10})
	ctx.Scalars["repeats"] = NumberArray([]float64{3, 1, 3, 2, 1})
	ctx.Scalars["flows"] = NumberArray([]float64{-10000, 2750, 4250, 3250, 2750})
	ctx.Scalars["flow_dates"] = Array([]Value{
		Text("2008-01-01"), Text("2008-03-01"), Text("2008-10-30"), Text("2009-02-15"), Text("2009-04-01"),
	})
	ctx.Scalars["rate"] = Number(0.05)
	return ctx
}

func evalFormula(t *testing.T, formula string) (Value, error) {
	t.Helper()
	return NewEvaluator().Evaluate(formula, fixtureContext())
}

func TestNumericFixtures(t *testing.T) {
	tests := []struct {
		formula  string
		expected float64
	}{
		{"=SUM(nums)", 15},
		{"=MEDIAN(quad)", 2.5},
		{"=MATCH(20, tens, 0)", 2},
		{"=INDEX(tens, 1)", 10},
		{`=DATEDIF("2024-01-15", "2025-01-15", "Y")`, 1},
		{"=IFERROR(1/0, 999)", 999},
		{"=VAR.P(spread)", 4},
		{"=CORREL(nums, doubled)", 1},
		{"=COUNTUNIQUE(repeats)", 3},
		{"=AVERAGE(nums)", 3},
		{"=MAX(nums) - MIN(nums)", 4},
		{"=PRODUCT(quad)", 24},
		{"=COUNT(nums)", 5},
		{"=ROUND(3.14159, 2)", 3.14},
		{"=MOD(10, 3)", 1},
		{"=POWER(2, 10)", 1024},
		{"=2 ^ 3 ^ 2", 512},
		{"=-2 ^ 2", 4},
		{"=10 - 2 - 3", 5},
		{"=1 + 2 * 3", 7},
		{"=(1 + 2) * 3", 9},
		{"=SUM(nums * 2)", 30},
		{"=SUM(nums + doubled)", 45},
		{"=AND(TRUE, 1 < 2)", 1},
		{`=IF(LEN("abc") = 3, 1, 0)`, 1},
		{"=LET(x, 2, y, x * 3, x + y)", 8},
		{"=LAMBDA(x, x * 2)(5)", 10},
		{"=LAMBDA(a, b, a + b)(2, 3)", 5},
		{"=LAMBDA(x, x * rate)(100)", 5},
		{"=SUM(LAMBDA(x, x * 2)(nums))", 30},
		{"=LAMBDA(7)()", 7},
		{"=LET(k, 3, LAMBDA(x, x * k)(2))", 6},
		{"=SUMIF(nums, \">2\")", 12},
		{"=COUNTIF(repeats, 3)", 2},
		{"=SLN(10000, 1000, 9)", 1000},
		{"=EFFECT(0.12, 12)", 0.12682503013196977},
		{`=BREAKEVEN_UNITS(5000, 25, 15)`, 500},
		{`=VARIANCE(120, 100)`, 20},
		{`=VARIANCE_PCT(120, 100)`, 0.2},

		// lookups
		{"=MATCH(25, tens)", 2},
		{"=MATCH(25, tens, 1)", 2},
		{"=MATCH(25, tens, -1)", 3},
		{"=MATCH(30, tens, -1)", 3},
		{"=XLOOKUP(20, tens, codes)", 200},
		{"=XLOOKUP(25, tens, codes, -7)", -7},
		{"=XLOOKUP(25, tens, codes, -7, -1)", 200},
		{"=XLOOKUP(25, tens, codes, -7, 1)", 300},
		{"=XLOOKUP(30, tens, codes, -7, 1)", 300},
		{"=CHOOSE(2, 1/0, 7)", 7},
		{`=INDIRECT("rate")`, 0.05},
		{`=SUM(INDIRECT("tens"))`, 60},
		{"=OFFSET(tens, 1, 0)", 20},
		{"=SUM(OFFSET(nums, 1, 0, 3))", 9},
		{"=OFFSET(5, 0, 0)", 5},
		{"=ROW()", 1},
		{"=COLUMN()", 1},

		// order statistics
		{"=QUARTILE(nums, 0)", 1},
		{"=QUARTILE(nums, 1)", 2},
		{"=QUARTILE(nums, 4)", 5},
		{"=PERCENTILE(nums, 0.25)", 2},
		{"=PERCENTILE(quad, 0.5)", 2.5},
		{"=LARGE(nums, 1)", 5},
		{"=LARGE(repeats, 2)", 3},
		{"=SMALL(repeats, 3)", 2},
		{"=RANK.EQ(3, repeats)", 1},
		{"=RANK.EQ(2, repeats)", 3},
		{"=RANK(1, repeats, 1)", 1},
		{"=RANK.EQ(2, repeats, 1)", 3},
		{"=VAR.S(spread)", 32.0 / 7},
		{"=STDEV.S(spread)", 2.138089935299395},
		{"=STDEV.P(spread)", 2},

		// information
		{"=ISNA(NA())", 1},
		{"=ISNA(1)", 0},
		{"=ISBLANK(NA())", 1},
		{`=ISBLANK("")`, 1},
		{"=ISBLANK(0)", 0},
		{"=ISERROR(1/0)", 1},
		{"=ISERROR(SQRT(-1))", 1},
		{"=ISERROR(NA())", 1},
		{"=ISERROR(1)", 0},
		{"=TYPE(1)", 1},
		{`=TYPE("a")`, 2},
		{"=TYPE(TRUE)", 4},
		{"=TYPE(NA())", 16},
		{"=TYPE(nums)", 64},

		// budget variance
		{"=VARIANCE_STATUS(120, 100)", 1},
		{"=VARIANCE_STATUS(80, 100)", -1},
		{"=VARIANCE_STATUS(100.5, 100)", 0},
		{"=VARIANCE_STATUS(105, 100, 0.1)", 0},
		{`=VARIANCE_STATUS(120, 100, "cost")`, -1},
		{`=VARIANCE_STATUS(80, 100, "cost")`, 1},
		{"=VARIANCE_STATUS(5, 0)", 1},
		{`=VARIANCE_STATUS(5, 0, "cost")`, -1},
		{`=VARIANCE_STATUS(-5, 0, "cost")`, 1},
		{`=VARIANCE_STATUS(0, 0, "cost")`, 0},
		{"=BREAKEVEN_REVENUE(5000, 0.25)", 20000},

		// dates
		{`=NETWORKDAYS("2024-01-01", "2024-01-31")`, 23},
		{`=NETWORKDAYS("2024-01-31", "2024-01-01")`, -23},
		{`=YEARFRAC("2024-01-01", "2024-07-01")`, 0.5},
		{`=YEARFRAC("2024-01-01", "2024-07-01", 3) * 365`, 182},
		{`=YEARFRAC("2024-01-01", "2024-07-01", 1) * 366`, 182},

		// financial
		{"=MIRR(flows, 0.1, 0.12)", 0.11731331412707746},
		{"=DB(1000000, 100000, 6, 1, 7)", 186083.33333333334},
		{"=DDB(2400, 300, 10, 1)", 480},
		{"=DDB(2400, 300, 10, 2)", 384},
		{`=PRICEDISC("2008-02-16", "2008-03-01", 0.0525, 100, 2)`, 99.79583333333333},
		{`=YIELDDISC("2008-02-16", "2008-03-01", 99.795, 100, 2)`, 0.05282257198685834},
		{`=ACCRINT("2008-03-01", "2008-08-31", "2008-05-01", 0.1, 1000, 2, 0)`, 16.666666666666664},
	}

	for _, test := range tests {
		result, err := evalFormula(t, test.formula)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", test.formula, err)
			continue
		}
		actual, ok := result.AsNumber()
		if !ok {
			t.Errorf("%s: result %v is not a number", test.formula, result)
			continue
		}
		if math.Abs(actual-test.expected) > 1e-9 {
			t.Errorf("%s = %v, want %v", test.formula, actual, test.expected)
		}
	}
}

func TestErrorFixtures(t *testing.T) {
	tests := []struct {
		formula  string
		kind     ErrorKind
		fragment string
	}{
		{"=1/0", ErrorKindDivisionByZero, "Division by zero"},
		{"=SQRT(-1)", ErrorKindDomain, "SQRT"},
		{"=INDEX(tens, 0)", ErrorKindIndex, "INDEX"},
		{"=INDEX(tens, 4)", ErrorKindIndex, "out of bounds"},
		{"=MATCH(25, tens, 0)", ErrorKindLookupNotFound, "MATCH"},
		{"=SUMM(nums)", ErrorKindUnknownReference, "SUM"},
		{"=missing + 1", ErrorKindUnknownReference, "Unknown variable: missing"},
		{"=nums +", ErrorKindParse, ""},
		{"=LAMBDA(x, x * 2)", ErrorKindInvalidArgument, "must be called"},
		{"=LAMBDA(x, x * 2)(1, 2)", ErrorKindInvalidArgument, "expects 1 argument(s), got 2"},
		{"=LAMBDA(1, 2)(3)", ErrorKindInvalidArgument, "parameter 1 must be an identifier"},
		{"=LAMBDA()()", ErrorKindInvalidArgument, "at least a body"},
		{"=(1)(2)", ErrorKindParse, ""},
		{"=PMT(0.05, 0, 1000)", ErrorKindDivisionByZero, "PMT"},
		{"=XNPV(0.1, flows, tens)", ErrorKindInvalidArgument, "same length"},
		{`=SCENARIO("bull", "growth")`, ErrorKindUnknownReference, "Scenario 'bull' not found"},

		// lookups
		{"=MATCH(5, tens, 1)", ErrorKindLookupNotFound, "MATCH"},
		{"=MATCH(35, tens, -1)", ErrorKindLookupNotFound, "MATCH"},
		{"=MATCH(20, tens, 2)", ErrorKindInvalidArgument, "invalid match_type 2"},
		{`=MATCH(20, tens, "exact")`, ErrorKindInvalidArgument, "match_type must be a number"},
		{`=INDEX(tens, "first")`, ErrorKindInvalidArgument, "row_num must be a number"},
		{"=XLOOKUP(25, tens, codes)", ErrorKindLookupNotFound, "No match found"},
		{"=XLOOKUP(20, tens, nums)", ErrorKindDimensionMismatch, "same length"},
		{"=XLOOKUP(20, tens, codes, 0, 2)", ErrorKindInvalidArgument, "invalid match_mode 2"},
		{`=XLOOKUP(20, tens, codes, 0, "next")`, ErrorKindInvalidArgument, "match_mode must be a number"},
		{"=CHOOSE(3, 1, 2)", ErrorKindIndex, "CHOOSE index 3 out of range"},
		{"=CHOOSE(0, 1, 2)", ErrorKindIndex, "out of range"},
		{`=INDIRECT("nowhere")`, ErrorKindUnknownReference, "cannot resolve 'nowhere'"},
		{"=OFFSET(tens, 3, 0)", ErrorKindIndex, "out of bounds"},
		{"=OFFSET(tens, 1, 0, 3)", ErrorKindIndex, "height 3 out of bounds"},
		{"=OFFSET(5, 1, 0)", ErrorKindIndex, "cannot offset"},
		{`=OFFSET(tens, "one", 0)`, ErrorKindInvalidArgument, "rows must be a number"},
		{"=ADDRESS(1, 0)", ErrorKindIndex, "column 0 out of range"},
		{"=ADDRESS(0, 1)", ErrorKindIndex, "row 0 must be >= 1"},
		{"=ADDRESS(1, 1, 5)", ErrorKindInvalidArgument, "invalid abs_num 5"},

		// order statistics
		{"=VAR.S(5)", ErrorKindInvalidArgument, "VAR.S requires at least 2 values"},
		{"=STDEV.S(5)", ErrorKindInvalidArgument, "at least 2 values"},
		{"=QUARTILE(nums, 5)", ErrorKindDomain, "QUARTILE"},
		{"=PERCENTILE(nums, 1.5)", ErrorKindDomain, "between 0 and 1"},
		{"=LARGE(nums, 6)", ErrorKindDomain, "k must be between 1 and 5"},
		{"=SMALL(nums, 0)", ErrorKindDomain, "SMALL"},
		{"=RANK.EQ(99, nums)", ErrorKindLookupNotFound, "value 99 not found"},
		{`=RANK.EQ(2, nums, "down")`, ErrorKindInvalidArgument, "order must be a number"},

		// budget helpers
		{"=BREAKEVEN_UNITS(5000, 15, 15)", ErrorKindDomain, "unit_price must be greater than variable_cost"},
		{"=BREAKEVEN_UNITS(5000, 10, 15)", ErrorKindDomain, "BREAKEVEN_UNITS"},
		{"=BREAKEVEN_REVENUE(5000, 0)", ErrorKindDomain, "contribution_margin_pct"},
		{"=BREAKEVEN_REVENUE(5000, -0.2)", ErrorKindDomain, "contribution_margin_pct"},
		{"=VARIANCE_PCT(120, 0)", ErrorKindDivisionByZero, "budget cannot be zero"},

		// financial
		{"=MIRR(nums, 0.1, 0.12)", ErrorKindDomain, "positive and negative"},
		{"=DDB(2400, 300, 10, 11)", ErrorKindDomain, "DDB: period"},
		{"=DB(1000000, 100000, 6, 0)", ErrorKindDomain, "DB: period"},
		{`=PRICEDISC("2008-03-01", "2008-02-16", 0.0525, 100)`, ErrorKindDomain, "settlement must be before maturity"},
		{`=ACCRINT("2008-03-01", "2008-08-31", "2008-05-01", 0.1, 1000, 3)`, ErrorKindInvalidArgument, "frequency must be 1, 2 or 4"},

		// arguments too large to index with
		{"=tens[1e20]", ErrorKindIndex, "out of bounds"},
		{"=tens[-1]", ErrorKindIndex, "out of bounds"},
		{"=INDEX(tens, 1e20)", ErrorKindIndex, "out of bounds"},
		{"=CHOOSE(1e20, 1, 2)", ErrorKindIndex, "out of range"},
		{`=REPT("ab", 1e20)`, ErrorKindInvalidArgument, "REPT: result longer"},
		{"=SEQUENCE(1e20)", ErrorKindInvalidArgument, "more than"},
		{"=SEQUENCE(1e6, 1e6)", ErrorKindInvalidArgument, "more than"},
		{`=WORKDAY("2024-01-01", 1e20)`, ErrorKindDomain, "WORKDAY"},
		{`=NETWORKDAYS(0, 1e15)`, ErrorKindDomain, "date serial"},
		{`=NETWORKDAYS(-2958465, 2958465)`, ErrorKindDomain, "range longer"},
		{"=YEAR(1e15)", ErrorKindDomain, "YEAR: date serial"},
		{"=DDB(2400, 300, 1e20, 1e20)", ErrorKindDomain, "DDB: period"},
		{`=PERCENTILE(nums, "NaN")`, ErrorKindTypeMismatch, "PERCENTILE k must be a number"},
	}

	for _, test := range tests {
		_, err := evalFormula(t, test.formula)
		if err == nil {
			t.Errorf("%s: expected %v error, got none", test.formula, test.kind)
			continue
		}
		if !IsKind(err, test.kind) {
			got, _ := KindOf(err)
			t.Errorf("%s: got kind %v (%v), want %v", test.formula, got, err, test.kind)
		}
		if !strings.Contains(err.Error(), test.fragment) {
			t.Errorf("%s: error %q does not contain %q", test.formula, err, test.fragment)
		}
	}
}

func TestIrregularCashFlows(t *testing.T) {
	rate, err := evalFormula(t, "=XIRR(flows, flow_dates)")
	if err != nil {
		t.Fatalf("XIRR: %v", err)
	}
	r, _ := rate.AsNumber()
	if math.Abs(r-0.373362535) > 1e-6 {
		t.Errorf("XIRR = %v, want about 0.373362535", r)
	}

	npv, err := evalFormula(t, "=XNPV(XIRR(flows, flow_dates), flows, flow_dates)")
	if err != nil {
		t.Fatalf("XNPV: %v", err)
	}
	n, _ := npv.AsNumber()
	if math.Abs(n) > 1e-3 {
		t.Errorf("XNPV at XIRR = %v, want about 0", n)
	}
}

func TestIrrRoundTrip(t *testing.T) {
	result, err := evalFormula(t, "=NPV(IRR(flows), flows)")
	if err != nil {
		t.Fatalf("NPV(IRR): %v", err)
	}
	n, _ := result.AsNumber()
	if math.Abs(n) > 1e-3 {
		t.Errorf("NPV at IRR = %v, want about 0", n)
	}
}

func TestLoanPayment(t *testing.T) {
	result, err := evalFormula(t, "=PMT(0.05/12, 360, 200000)")
	if err != nil {
		t.Fatalf("PMT: %v", err)
	}
	n, _ := result.AsNumber()
	if math.Abs(n-(-1073.643246)) > 1e-5 {
		t.Errorf("PMT = %v, want about -1073.643246", n)
	}

	split, err := evalFormula(t, "=PPMT(0.05/12, 1, 360, 200000) + IPMT(0.05/12, 1, 360, 200000) - PMT(0.05/12, 360, 200000)")
	if err != nil {
		t.Fatalf("PPMT + IPMT: %v", err)
	}
	if d, _ := split.AsNumber(); math.Abs(d) > 1e-6 {
		t.Errorf("PPMT + IPMT - PMT = %v, want 0", d)
	}
}

func TestArrayResults(t *testing.T) {
	tests := []struct {
		formula  string
		expected []Value
	}{
		{"=UNIQUE(repeats)", []Value{Number(3), Number(1), Number(2)}},
		{"=SORT(repeats)", []Value{Number(1), Number(1), Number(2), Number(3), Number(3)}},
		{"=SORT(repeats, -1)", []Value{Number(3), Number(3), Number(2), Number(1), Number(1)}},
		{"=tens * 2", []Value{Number(20), Number(40), Number(60)}},
		{"=tens + 1", []Value{Number(11), Number(21), Number(31)}},
	}

	for _, test := range tests {
		result, err := evalFormula(t, test.formula)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", test.formula, err)
			continue
		}
		if !result.IsArray() {
			t.Errorf("%s: result %v is not an array", test.formula, result)
			continue
		}
		if diff := cmp.Diff(test.expected, result.Items); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", test.formula, diff)
		}
	}
}

func TestArrayLengthMismatch(t *testing.T) {
	_, err := evalFormula(t, "=tens + nums")
	if !IsKind(err, ErrorKindDimensionMismatch) {
		t.Errorf("tens + nums: got %v, want a dimension mismatch", err)
	}
}

func TestTextFunctions(t *testing.T) {
	tests := []struct {
		formula  string
		expected string
	}{
		{`=CONCAT("net ", "margin")`, "net margin"},
		{`=UPPER("abc")`, "ABC"},
		{`=LEFT("forecast", 4)`, "fore"},
		{`=TRIM("  a  b  ")`, "a b"},
		{`=SUBSTITUTE("a-b-c", "-", "+")`, "a+b+c"},
		{`=EDATE("2024-01-31", 1)`, "2024-02-29"},
		{`=IF(1 > 2, "yes", "no")`, "no"},
		{`=MID("abcdef", 3, 100)`, "cdef"},
		{`=MID("abc", 10, 2)`, ""},
		{`=MID("abc", 0, 2)`, "ab"},
		{`=MID("héllo", 2, 3)`, "éll"},
		{`=LEFT("abc", 1e20)`, "abc"},
		{`=RIGHT("abc", 1e20)`, "abc"},
		{`=MID("abc", 1e20, 1e20)`, ""},
		{`=MID("abc", -1e20, 2)`, "ab"},
		{`=EOMONTH("2024-01-15", 1)`, "2024-02-29"},
		{`=EOMONTH("2024-03-31", -1)`, "2024-02-29"},
		{`=EOMONTH("2023-12-01", 0)`, "2023-12-31"},
		{`=XLOOKUP(25, tens, codes, "none")`, "none"},
		{"=ADDRESS(2, 3)", "$C$2"},
		{"=ADDRESS(2, 3, 2)", "C$2"},
		{"=ADDRESS(2, 3, 3)", "$C2"},
		{"=ADDRESS(2, 3, 4)", "C2"},
		{"=ADDRESS(1, 28)", "$AB$1"},
		{"=ADDRESS(1, 16384, 4)", "XFD1"},
		{"=ADDRESS(1, 28, 1, FALSE)", "R1C28"},
		{"=ADDRESS(1, 27, 4, FALSE)", "R[1]C[27]"},
		{`=ADDRESS(1, 1, 1, TRUE, "Plan")`, "Plan!$A$1"},
	}

	for _, test := range tests {
		result, err := evalFormula(t, test.formula)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", test.formula, err)
			continue
		}
		if result.Type != ValueText || result.Str != test.expected {
			t.Errorf("%s = %v, want %q", test.formula, result, test.expected)
		}
	}
}

func TestFunctionRegistry(t *testing.T) {
	for _, name := range []string{"SUM", "XIRR", "VAR.P", "SCENARIO", "LET", "LAMBDA", "LARGE", "SMALL", "RANK.EQ", "OFFSET", "ADDRESS"} {
		if _, ok := LookupFunction(name); !ok {
			t.Errorf("LookupFunction(%q) not found", name)
		}
	}
	if _, ok := LookupFunction("sum"); !ok {
		t.Errorf("LookupFunction is not case insensitive")
	}
	if avg, ok := LookupFunction("AVG"); !ok || avg.Name != "AVERAGE" {
		t.Errorf("alias AVG does not resolve to AVERAGE")
	}
	if rank, ok := LookupFunction("RANK"); !ok || rank.Name != "RANK.EQ" {
		t.Errorf("alias RANK does not resolve to RANK.EQ")
	}
	sum, _ := LookupFunction("SUM")
	if !sum.Aggregate {
		t.Errorf("SUM is not marked as an aggregation")
	}
	abs, _ := LookupFunction("ABS")
	if abs.Aggregate {
		t.Errorf("ABS is marked as an aggregation")
	}
	if len(FunctionsByCategory(CategoryFinancial)) == 0 {
		t.Errorf("no financial functions registered")
	}
}

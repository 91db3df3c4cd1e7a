package calc

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/hashicorp/go-hclog"

	"github.com/mollendorff-ai/forge-sub003/internal/ctxlog"
)

type ModelTestCase struct {
	t      *testing.T
	name   string
	model  *Model
	result *Model
	opts   []Option
	err    error
}

func NewModelTestCase(t *testing.T, name string, opts ...Option) *ModelTestCase {
	return &ModelTestCase{
		t:     t,
		name:  name,
		model: NewModel(),
		opts:  opts,
	}
}

func (tc *ModelTestCase) Scalar(name string, value float64) *ModelTestCase {
	tc.model.AddScalar(Literal(name, value))
	return tc
}

func (tc *ModelTestCase) Formula(name, formula string) *ModelTestCase {
	tc.model.AddScalar(Formula(name, formula))
	return tc
}

func (tc *ModelTestCase) Table(table *Table) *ModelTestCase {
	tc.model.AddTable(table)
	return tc
}

func (tc *ModelTestCase) Scenario(name string, overrides map[string]float64) *ModelTestCase {
	tc.model.AddScenario(name, overrides)
	return tc
}

func (tc *ModelTestCase) calculate() {
	tc.result, tc.err = NewArrayCalculator(tc.model, tc.opts...).CalculateAll(context.Background())
}

func (tc *ModelTestCase) Run() *ModelTestCase {
	tc.calculate()
	if tc.err != nil {
		tc.t.Errorf("%s: CalculateAll() failed: %v", tc.name, tc.err)
	}
	return tc
}

// RunExpectError calculates and checks the error kind and that the message
// contains every fragment.
func (tc *ModelTestCase) RunExpectError(kind ErrorKind, fragments ...string) *ModelTestCase {
	tc.calculate()
	if tc.err == nil {
		tc.t.Errorf("%s: expected %v error, got none", tc.name, kind)
		return tc
	}
	if got, ok := KindOf(tc.err); !ok || got != kind {
		tc.t.Errorf("%s: got error %q of kind %v, want %v", tc.name, tc.err, got, kind)
	}
	for _, fragment := range fragments {
		if !strings.Contains(tc.err.Error(), fragment) {
			tc.t.Errorf("%s: error %q does not contain %q", tc.name, tc.err, fragment)
		}
	}
	if tc.result != nil {
		tc.t.Errorf("%s: expected no result on error", tc.name)
	}
	return tc
}

func (tc *ModelTestCase) AssertScalarEq(name string, expected float64) *ModelTestCase {
	if tc.err != nil || tc.result == nil {
		return tc
	}
	v, err := tc.result.Scalar(name)
	if err != nil {
		tc.t.Errorf("%s: %v", tc.name, err)
		return tc
	}
	actual, err := v.Float()
	if err != nil {
		tc.t.Errorf("%s: %v", tc.name, err)
		return tc
	}
	if math.Abs(actual-expected) > 1e-10 {
		tc.t.Errorf("%s: Scalar %s = %v, want %v", tc.name, name, actual, expected)
	}
	return tc
}

func (tc *ModelTestCase) AssertColumnEq(table, column string, expected ColumnValue) *ModelTestCase {
	if tc.err != nil || tc.result == nil {
		return tc
	}
	t, err := tc.result.Table(table)
	if err != nil {
		tc.t.Errorf("%s: %v", tc.name, err)
		return tc
	}
	col, err := t.Column(column)
	if err != nil {
		tc.t.Errorf("%s: %v", tc.name, err)
		return tc
	}
	if diff := cmp.Diff(expected, col.Values, floatComparer, cmpopts.EquateEmpty()); diff != "" {
		tc.t.Errorf("%s: Column %s.%s mismatch (-want +got):\n%s", tc.name, table, column, diff)
	}
	return tc
}

func (tc *ModelTestCase) End() {
}

var floatComparer = cmp.Comparer(func(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9
})

func salesTable() *Table {
	return NewTable("sales").
		AddColumn("price", NumberColumn(10, 20, 30)).
		AddColumn("qty", NumberColumn(1, 2, 3)).
		AddRowFormula("revenue", "=price * qty")
}

func TestScalarFormulas(t *testing.T) {
	NewModelTestCase(t, "Literal chain").
		Scalar("base", 100).
		Formula("doubled", "=base * 2").
		Formula("total", "=doubled + base").
		Run().
		AssertScalarEq("base", 100).
		AssertScalarEq("doubled", 200).
		AssertScalarEq("total", 300).
		End()

	NewModelTestCase(t, "Formula without leading equals").
		Scalar("a", 4).
		Formula("b", "a ^ 2 - 1").
		Run().
		AssertScalarEq("b", 15).
		End()

	NewModelTestCase(t, "Section scalars").
		Scalar("assumptions.growth", 0.1).
		Scalar("revenue", 1000).
		Formula("forecast.revenue", "=revenue * (1 + assumptions.growth)").
		Formula("check", "=forecast.revenue - revenue").
		Run().
		AssertScalarEq("forecast.revenue", 1100).
		AssertScalarEq("check", 100).
		End()

	NewModelTestCase(t, "Boolean results are stored as 1 and 0").
		Scalar("x", 5).
		Formula("positive", "=x > 0").
		Formula("negative", "=x < 0").
		Run().
		AssertScalarEq("positive", 1).
		AssertScalarEq("negative", 0).
		End()

	NewModelTestCase(t, "IF does not evaluate the untaken branch").
		Scalar("divisor", 0).
		Formula("safe", "=IF(divisor = 0, -1, 10 / divisor)").
		Run().
		AssertScalarEq("safe", -1).
		End()

	NewModelTestCase(t, "IFERROR substitutes").
		Formula("fallback", "=IFERROR(1/0, 999)").
		Run().
		AssertScalarEq("fallback", 999).
		End()

	NewModelTestCase(t, "LET locals are not references").
		Scalar("rate", 0.05).
		Formula("growth", "=LET(r, rate, years, 2, (1 + r) ^ years)").
		Run().
		AssertScalarEq("growth", 1.1025).
		End()

	NewModelTestCase(t, "ISFORMULA").
		Scalar("input", 1).
		Formula("derived", "=input + 1").
		Formula("derivedIsFormula", "=ISFORMULA(derived)").
		Formula("inputIsFormula", "=ISFORMULA(input)").
		Run().
		AssertScalarEq("derivedIsFormula", 1).
		AssertScalarEq("inputIsFormula", 0).
		End()

	NewModelTestCase(t, "ISREF tolerates unknown names").
		Formula("known", "=1").
		Formula("probe", "=IF(ISREF(missing), 1, 2)").
		Run().
		AssertScalarEq("probe", 2).
		End()

	NewModelTestCase(t, "Date text is stored as its serial").
		Formula("start", `=DATE(2024, 1, 15)`).
		Formula("later", `=EDATE("2024-01-15", 1)`).
		Formula("gap", "=later - start").
		Run().
		AssertScalarEq("gap", 31).
		End()
}

func TestScenarios(t *testing.T) {
	NewModelTestCase(t, "Scenario override").
		Scalar("growth", 0.02).
		Scenario("bull", map[string]float64{"growth": 0.08}).
		Formula("bullGrowth", `=SCENARIO("bull", "growth")`).
		Formula("spread", `=SCENARIO("bull", "growth") - growth`).
		Run().
		AssertScalarEq("bullGrowth", 0.08).
		AssertScalarEq("spread", 0.06).
		End()

	NewModelTestCase(t, "Unknown scenario").
		Scenario("bull", map[string]float64{"growth": 0.08}).
		Formula("x", `=SCENARIO("bul", "growth")`).
		RunExpectError(ErrorKindUnknownReference, "Scenario 'bul' not found", `did you mean "bull"`).
		End()

	NewModelTestCase(t, "Unknown scenario variable").
		Scenario("bull", map[string]float64{"growth": 0.08}).
		Formula("x", `=SCENARIO("bull", "churn")`).
		RunExpectError(ErrorKindUnknownReference, "Variable 'churn' not found in scenario 'bull'").
		End()
}

func TestRowFormulas(t *testing.T) {
	NewModelTestCase(t, "Row-wise product").
		Table(salesTable()).
		Run().
		AssertColumnEq("sales", "revenue", NumberColumn(10, 40, 90)).
		AssertColumnEq("sales", "price", NumberColumn(10, 20, 30)).
		End()

	NewModelTestCase(t, "Row formulas see scalars").
		Scalar("tax", 0.5).
		Table(salesTable().AddRowFormula("gross", "=revenue * (1 + tax)")).
		Run().
		AssertColumnEq("sales", "gross", NumberColumn(15, 60, 135)).
		End()

	NewModelTestCase(t, "LAMBDA parameters shadow nothing outside the call").
		Table(salesTable().AddRowFormula("viaLambda", "=LAMBDA(p, p * qty)(price)")).
		Run().
		AssertColumnEq("sales", "viaLambda", NumberColumn(10, 40, 90)).
		End()

	NewModelTestCase(t, "Row formulas are ordered by their dependencies").
		Table(NewTable("t").
			AddColumn("x", NumberColumn(1, 2)).
			AddRowFormula("a", "=c + 1").
			AddRowFormula("b", "=x * 10").
			AddRowFormula("c", "=b + x")).
		Run().
		AssertColumnEq("t", "c", NumberColumn(11, 22)).
		AssertColumnEq("t", "a", NumberColumn(12, 23)).
		End()

	NewModelTestCase(t, "Qualified reference to own column").
		Table(NewTable("t").
			AddColumn("x", NumberColumn(1, 2, 3)).
			AddRowFormula("y", "=t.x * 2")).
		Run().
		AssertColumnEq("t", "y", NumberColumn(2, 4, 6)).
		End()

	NewModelTestCase(t, "Row formula replaces a data column").
		Table(NewTable("t").
			AddColumn("x", NumberColumn(1, 2)).
			AddColumn("y", NumberColumn(0, 0)).
			AddRowFormula("y", "=x + 100")).
		Run().
		AssertColumnEq("t", "y", NumberColumn(101, 102)).
		End()

	NewModelTestCase(t, "Typed result columns").
		Table(NewTable("t").
			AddColumn("start", DateColumn("2024-01-31", "2024-02-15")).
			AddColumn("amount", NumberColumn(5, 50)).
			AddRowFormula("label", `=IF(amount > 10, "large", "small")`).
			AddRowFormula("flag", "=amount > 10").
			AddRowFormula("renewal", "=EDATE(start, 1)")).
		Run().
		AssertColumnEq("t", "label", TextColumn("small", "large")).
		AssertColumnEq("t", "flag", BooleanColumn(false, true)).
		AssertColumnEq("t", "renewal", DateColumn("2024-02-29", "2024-03-15")).
		End()

	NewModelTestCase(t, "Array access mixes array and row context").
		Table(NewTable("t").
			AddColumn("x", NumberColumn(5, 6, 7)).
			AddRowFormula("first", "=x - t.x[0]").
			AddRowFormula("lookup", "=INDEX(t.x, MATCH(x, t.x, 0))")).
		Run().
		AssertColumnEq("t", "first", NumberColumn(0, 1, 2)).
		AssertColumnEq("t", "lookup", NumberColumn(5, 6, 7)).
		End()

	NewModelTestCase(t, "ROW numbers rows from 1").
		Table(NewTable("t").
			AddColumn("x", NumberColumn(5, 6, 7)).
			AddRowFormula("n", "=ROW()").
			AddRowFormula("prev", "=IF(ROW() = 1, 0, OFFSET(t.x, ROW() - 2, 0))")).
		Run().
		AssertColumnEq("t", "n", NumberColumn(1, 2, 3)).
		AssertColumnEq("t", "prev", NumberColumn(0, 5, 6)).
		End()

	NewModelTestCase(t, "Mixed result types").
		Table(NewTable("t").
			AddColumn("x", NumberColumn(1, 2)).
			AddRowFormula("y", `=IF(x > 1, "big", 0)`)).
		RunExpectError(ErrorKindTypeMismatch, `table "t" column "y"`).
		End()
}

func TestCrossTableReferences(t *testing.T) {
	NewModelTestCase(t, "Table reads another table's formula column").
		Table(salesTable()).
		Table(NewTable("costs").
			AddColumn("unit", NumberColumn(4, 5, 6)).
			AddRowFormula("margin", "=sales.revenue - unit * sales.qty")).
		Run().
		AssertColumnEq("costs", "margin", NumberColumn(6, 30, 72)).
		End()

	NewModelTestCase(t, "Tables are ordered regardless of name").
		Table(NewTable("a").
			AddColumn("k", NumberColumn(1, 2)).
			AddRowFormula("v", "=z.w + k")).
		Table(NewTable("z").
			AddColumn("base", NumberColumn(10, 20)).
			AddRowFormula("w", "=base * 2")).
		Run().
		AssertColumnEq("a", "v", NumberColumn(21, 42)).
		End()

	NewModelTestCase(t, "Mismatched row counts").
		Table(NewTable("a").AddColumn("v", NumberColumn(1, 2, 3))).
		Table(NewTable("b").
			AddColumn("w", NumberColumn(1, 2)).
			AddRowFormula("x", "=a.v * w")).
		RunExpectError(ErrorKindDimensionMismatch, "Row count mismatch", "a.v has 3 rows but expected 2").
		End()
}

func TestScalarsOverTables(t *testing.T) {
	NewModelTestCase(t, "Aggregation over a formula column").
		Table(salesTable()).
		Formula("total", "=SUM(sales.revenue)").
		Formula("average", "=AVERAGE(sales.revenue)").
		Formula("share", "=total / 280").
		Run().
		AssertScalarEq("total", 140).
		AssertScalarEq("average", 140.0/3).
		AssertScalarEq("share", 0.5).
		End()

	NewModelTestCase(t, "Order statistics and INDIRECT over data columns").
		Table(salesTable()).
		Formula("prices", `=SUM(INDIRECT("sales.price"))`).
		Formula("second", "=LARGE(sales.price, 2)").
		Formula("rank", "=RANK.EQ(10, sales.price)").
		Run().
		AssertScalarEq("prices", 60).
		AssertScalarEq("second", 20).
		AssertScalarEq("rank", 3).
		End()

	NewModelTestCase(t, "Late scalar feeds a later table").
		Table(salesTable()).
		Formula("total", "=SUM(sales.revenue)").
		Table(NewTable("report").
			AddColumn("id", NumberColumn(1, 2, 3)).
			AddRowFormula("pct", "=sales.revenue / total")).
		Run().
		AssertColumnEq("report", "pct", NumberColumn(10.0/140, 40.0/140, 90.0/140)).
		End()

	NewModelTestCase(t, "Scalar over a data column is available early").
		Formula("units", "=SUM(sales.qty)").
		Table(salesTable().AddRowFormula("weight", "=qty / units")).
		Run().
		AssertScalarEq("units", 6).
		AssertColumnEq("sales", "weight", NumberColumn(1.0/6, 2.0/6, 3.0/6)).
		End()

	NewModelTestCase(t, "ROWS and COLUMNS of a table").
		Table(salesTable()).
		Formula("rows", "=ROWS(sales)").
		Formula("columns", "=COLUMNS(sales)").
		Run().
		AssertScalarEq("rows", 3).
		AssertScalarEq("columns", 3).
		End()

	NewModelTestCase(t, "Scalar reading a table through its own table").
		Table(salesTable().AddRowFormula("share", "=revenue / total")).
		Formula("total", "=SUM(sales.revenue)").
		RunExpectError(ErrorKindCircularDependency, "sales → total → sales").
		End()
}

func TestAggregationInRowFormula(t *testing.T) {
	NewModelTestCase(t, "SUM as a row formula").
		Table(NewTable("t").
			AddColumn("col", NumberColumn(1, 2, 3)).
			AddRowFormula("bad", "=SUM(col)")).
		RunExpectError(ErrorKindAggregationContext, "aggregation", "SUM", "t.bad").
		End()

	NewModelTestCase(t, "LARGE as a row formula").
		Table(NewTable("t").
			AddColumn("col", NumberColumn(1, 2, 3)).
			AddRowFormula("bad", "=LARGE(col, 1)")).
		RunExpectError(ErrorKindAggregationContext, "LARGE", "t.bad").
		End()

	NewModelTestCase(t, "Nested aggregation").
		Table(NewTable("t").
			AddColumn("col", NumberColumn(1, 2, 3)).
			AddRowFormula("bad", "=col / max(col)")).
		RunExpectError(ErrorKindAggregationContext, "MAX").
		End()
}

func TestCircularDependencies(t *testing.T) {
	NewModelTestCase(t, "Two scalars").
		Formula("a", "=b + 1").
		Formula("b", "=a + 1").
		RunExpectError(ErrorKindCircularDependency, "a → b → a").
		End()

	NewModelTestCase(t, "Self reference").
		Formula("x", "=x + 1").
		RunExpectError(ErrorKindCircularDependency, "x → x").
		End()

	NewModelTestCase(t, "Three scalars").
		Scalar("seed", 1).
		Formula("a", "=c + seed").
		Formula("b", "=a * 2").
		Formula("c", "=b - 1").
		RunExpectError(ErrorKindCircularDependency, "a → c → b → a").
		End()

	NewModelTestCase(t, "Row formula columns").
		Table(NewTable("t").
			AddColumn("x", NumberColumn(1)).
			AddRowFormula("a", "=b + x").
			AddRowFormula("b", "=a + x")).
		RunExpectError(ErrorKindCircularDependency, "t.a → t.b → t.a").
		End()

	NewModelTestCase(t, "Tables").
		Table(NewTable("t1").
			AddColumn("x", NumberColumn(1)).
			AddRowFormula("y", "=t2.w + x")).
		Table(NewTable("t2").
			AddColumn("v", NumberColumn(1)).
			AddRowFormula("w", "=t1.y + v")).
		RunExpectError(ErrorKindCircularDependency, "t1 → t2 → t1").
		End()
}

// chainModel builds n scalars in a chain s0 <- s1 <- ... and optionally
// closes it with a back edge from s0 to the last one.
func chainModel(n int, closed bool) *Model {
	m := NewModel()
	m.AddScalar(Literal("seed", 1))
	for i := 0; i < n; i++ {
		formula := "=seed"
		if i > 0 {
			formula = fmt.Sprintf("=s%03d + 1", i-1)
		}
		if i == 0 && closed {
			formula = fmt.Sprintf("=s%03d + seed", n-1)
		}
		m.AddScalar(Formula(fmt.Sprintf("s%03d", i), formula))
	}
	return m
}

func TestCycleCompleteness(t *testing.T) {
	for _, n := range []int{1, 2, 5, 17, 64} {
		t.Run(fmt.Sprintf("acyclic_%d", n), func(t *testing.T) {
			out, err := NewArrayCalculator(chainModel(n, false)).CalculateAll(context.Background())
			if err != nil {
				t.Fatalf("CalculateAll() failed: %v", err)
			}
			last, _ := out.Scalar(fmt.Sprintf("s%03d", n-1))
			if got, _ := last.Float(); got != float64(n) {
				t.Errorf("last = %v, want %d", got, n)
			}
		})
		t.Run(fmt.Sprintf("cyclic_%d", n), func(t *testing.T) {
			_, err := NewArrayCalculator(chainModel(n, true)).CalculateAll(context.Background())
			if !IsKind(err, ErrorKindCircularDependency) {
				t.Errorf("got %v, want CircularDependency", err)
			}
		})
	}
}

func TestOrderIndependence(t *testing.T) {
	// Each model defines the same dependencies with different names, so
	// the tie-breaking insertion order differs.
	build := func(prefix [3]string) *Model {
		return NewModel().
			AddScalar(Literal(prefix[0], 3)).
			AddScalar(Formula(prefix[1], fmt.Sprintf("=%s * 2", prefix[0]))).
			AddScalar(Formula(prefix[2], fmt.Sprintf("=%s + %s", prefix[1], prefix[0])))
	}
	for _, names := range [][3]string{{"a", "b", "c"}, {"c", "b", "a"}, {"b", "c", "a"}, {"z", "a", "m"}} {
		out, err := NewArrayCalculator(build(names)).CalculateAll(context.Background())
		if err != nil {
			t.Fatalf("%v: CalculateAll() failed: %v", names, err)
		}
		v, _ := out.Scalar(names[2])
		if got, _ := v.Float(); got != 9 {
			t.Errorf("%v: %s = %v, want 9", names, names[2], got)
		}
	}
}

func TestUnknownReferences(t *testing.T) {
	NewModelTestCase(t, "Unknown variable with suggestion").
		Scalar("revenue", 10).
		Formula("x", "=revnue * 2").
		RunExpectError(ErrorKindUnknownReference, `Unknown variable: revnue (did you mean "revenue"?)`).
		End()

	NewModelTestCase(t, "Unknown table").
		Table(salesTable()).
		Formula("x", "=SUM(sale.revenue)").
		RunExpectError(ErrorKindUnknownReference, "Unknown table: sale", `did you mean "sales"`).
		End()

	NewModelTestCase(t, "Unknown column").
		Table(salesTable()).
		Formula("x", "=SUM(sales.revenu)").
		RunExpectError(ErrorKindUnknownReference, "Unknown column: sales.revenu", `did you mean "revenue"`).
		End()

	NewModelTestCase(t, "Bare column in a scalar formula").
		Table(salesTable()).
		Formula("x", "=SUM(price)").
		RunExpectError(ErrorKindUnknownReference, "Unknown variable: price").
		End()

	NewModelTestCase(t, "Unknown name in a row formula").
		Table(salesTable().AddRowFormula("bad", "=prise * 2")).
		RunExpectError(ErrorKindUnknownReference, `Unknown variable: prise (did you mean "price"?)`).
		End()

	NewModelTestCase(t, "Unknown function").
		Formula("x", "=SUMM(1, 2)").
		RunExpectError(ErrorKindUnknownReference, "Unknown function: SUMM").
		End()

	NewModelTestCase(t, "Parse error").
		Formula("x", "=1 +").
		RunExpectError(ErrorKindParse).
		End()
}

func TestErrorPropagation(t *testing.T) {
	NewModelTestCase(t, "Division by zero names the scalar").
		Scalar("zero", 0).
		Formula("ratio", "=1 / zero").
		Formula("dependent", "=ratio + 1").
		RunExpectError(ErrorKindDivisionByZero, `scalar "ratio"`, "Division by zero").
		End()

	NewModelTestCase(t, "Domain error").
		Formula("root", "=SQRT(-1)").
		RunExpectError(ErrorKindDomain).
		End()

	NewModelTestCase(t, "Row error names table, column and row").
		Table(NewTable("t").
			AddColumn("d", NumberColumn(1, 0, 2)).
			AddRowFormula("inv", "=1 / d")).
		RunExpectError(ErrorKindDivisionByZero, `table "t" column "inv" row 1`).
		End()

	NewModelTestCase(t, "Array in a scalar slot").
		Table(salesTable()).
		Formula("raw", "=sales.price").
		RunExpectError(ErrorKindTypeMismatch, "reduce it with an aggregation").
		End()

	NewModelTestCase(t, "Text in a scalar slot").
		Formula("name", `="acme"`).
		RunExpectError(ErrorKindTypeMismatch, "got text").
		End()
}

func TestNilModel(t *testing.T) {
	_, err := NewArrayCalculator(nil).CalculateAll(context.Background())
	appErr, ok := err.(*AppError)
	if !ok || appErr.Code != InvalidArgument {
		t.Errorf("got %v, want InvalidArgument AppError", err)
	}
}

func TestModelValidation(t *testing.T) {
	NewModelTestCase(t, "Unequal column lengths").
		Table(NewTable("t").
			AddColumn("a", NumberColumn(1, 2, 3)).
			AddColumn("b", NumberColumn(1, 2))).
		RunExpectError(ErrorKindDimensionMismatch, "Table t: column b has 2 rows but a has 3").
		End()

	NewModelTestCase(t, "Empty table").
		Table(NewTable("t")).
		RunExpectError(ErrorKindInvalidArgument, "Table t has no data columns").
		End()

	NewModelTestCase(t, "Table without rows").
		Table(NewTable("t").AddColumn("a", NumberColumn())).
		RunExpectError(ErrorKindInvalidArgument, "Table t has no rows").
		End()

	nilColumn := NewTable("t").AddColumn("a", NumberColumn(1, 2))
	nilColumn.Columns["b"] = nil
	NewModelTestCase(t, "Nil column").
		Table(nilColumn).
		RunExpectError(ErrorKindInvalidArgument, "Table t: column b is missing or misnamed").
		End()

	t.Run("nil columns count as empty", func(t *testing.T) {
		table := NewTable("t").AddColumn("a", NumberColumn(1, 2, 3))
		table.Columns["b"] = nil
		if rows := table.RowCount(); rows != 3 {
			t.Errorf("RowCount() = %d, want 3", rows)
		}
		if err := table.checkRows(); err != nil {
			t.Errorf("checkRows() = %v, want nil", err)
		}
	})

	t.Run("collects every problem", func(t *testing.T) {
		m := NewModel()
		m.Scalars["empty"] = &Variable{Name: "empty"}
		m.Scalars["key"] = Literal("other", 1)
		m.AddTable(NewTable("t").AddColumn("a", NumberColumn(1)).AddColumn("b", NumberColumn(1, 2)))
		err := m.Validate()
		if err == nil {
			t.Fatal("expected validation errors")
		}
		for _, fragment := range []string{
			"Scalar empty has neither a value nor a formula",
			"Scalar other is stored under key key",
			"Table t: column b has 2 rows but a has 1",
		} {
			if !strings.Contains(err.Error(), fragment) {
				t.Errorf("validation error %q does not mention %q", err, fragment)
			}
		}
		if kind, ok := KindOf(err); !ok || kind != ErrorKindInvalidArgument {
			t.Errorf("KindOf = %v, %v; want first problem's kind InvalidArgument", kind, ok)
		}
	})
}

func TestInputIsNotMutated(t *testing.T) {
	m := NewModel().
		AddScalar(Literal("a", 2)).
		AddScalar(Formula("b", "=a * 3")).
		AddTable(salesTable())

	out, err := NewArrayCalculator(m).CalculateAll(context.Background())
	if err != nil {
		t.Fatalf("CalculateAll() failed: %v", err)
	}
	if m.Scalars["b"].Value != nil {
		t.Errorf("input scalar b was given a value")
	}
	if _, ok := m.Tables["sales"].Columns["revenue"]; ok {
		t.Errorf("input table gained a computed column")
	}
	if out.Scalars["b"].Formula != "=a * 3" {
		t.Errorf("output lost the formula of b")
	}
	if _, err := m.Scalars["b"].Float(); err == nil {
		t.Errorf("Float() on an uncalculated scalar should fail")
	}
}

func TestIdempotence(t *testing.T) {
	m := NewModel().
		AddScalar(Literal("tax", 0.2)).
		AddScalar(Formula("total", "=SUM(sales.revenue) * (1 + tax)")).
		AddTable(salesTable()).
		AddTable(NewTable("report").
			AddColumn("id", NumberColumn(1, 2, 3)).
			AddRowFormula("pct", "=sales.revenue / total"))

	first, err := NewArrayCalculator(m).CalculateAll(context.Background())
	if err != nil {
		t.Fatalf("first CalculateAll() failed: %v", err)
	}
	second, err := NewArrayCalculator(first).CalculateAll(context.Background())
	if err != nil {
		t.Fatalf("second CalculateAll() failed: %v", err)
	}
	if diff := cmp.Diff(first, second, floatComparer, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("recalculating a resolved model changed it (-first +second):\n%s", diff)
	}
}

func TestCalculatorLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{
		Level:  hclog.Trace,
		Output: &buf,
	})

	ctx := ctxlog.WithLogger(context.Background(), logger)
	m := NewModel().AddScalar(Literal("a", 1)).AddScalar(Formula("b", "=a + 1")).AddTable(salesTable())
	if _, err := NewArrayCalculator(m).CalculateAll(ctx); err != nil {
		t.Fatalf("CalculateAll() failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"calc: calculation phase",
		"phase=parse",
		"phase=evaluate_tables",
		"run_id=",
		"scalar evaluated",
		"table evaluated",
		"calculation complete",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output does not contain %q:\n%s", want, out)
		}
	}
}

func TestCalculatorLoggingOption(t *testing.T) {
	var buf bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{Level: hclog.Debug, Output: &buf})

	m := NewModel().AddScalar(Formula("x", "=1/0"))
	_, err := NewArrayCalculator(m, WithLogger(logger)).CalculateAll(context.Background())
	if !IsKind(err, ErrorKindDivisionByZero) {
		t.Fatalf("got %v, want DivisionByZero", err)
	}
	if out := buf.String(); !strings.Contains(out, "calculation failed") || !strings.Contains(out, "phase=evaluate_scalars") {
		t.Errorf("failure was not logged with its phase:\n%s", out)
	}
}

func TestRunnableModel(t *testing.T) {
	r := NewRunnableModel().
		Literal("units", 4).
		Formula("cost", "=units * 2.5").
		Table(salesTable()).
		Calculate(context.Background())
	if got := r.Value("cost"); got != 10 {
		t.Errorf("cost = %v, want 10", got)
	}
	if r.Error() != nil {
		t.Fatalf("unexpected error: %v", r.Error())
	}

	r.Value("missing")
	appErr, ok := r.Error().(*AppError)
	if !ok || appErr.Code != NotFound {
		t.Errorf("got %v, want NotFound AppError", r.Error())
	}

	_, err := NewRunnableModel().Formula("x", "=y").Run(context.Background())
	if !IsKind(err, ErrorKindUnknownReference) {
		t.Errorf("got %v, want UnknownReference", err)
	}

	skipped := NewRunnableModel().Table(nil).Literal("a", 1)
	if skipped.Error() == nil || len(skipped.Model().Scalars) != 0 {
		t.Errorf("steps after an error should be no-ops")
	}
}

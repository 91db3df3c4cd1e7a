package calc

import (
	"context"
	"fmt"
	"testing"
)

func BenchmarkScalarDependencyChain(b *testing.B) {
	m := NewModel().AddScalar(Literal("s0", 1))
	for i := 1; i <= 100; i++ {
		m.AddScalar(Formula(fmt.Sprintf("s%d", i), fmt.Sprintf("=s%d+1", i-1)))
	}
	calc := NewArrayCalculator(m)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := calc.CalculateAll(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkWideDependencyFanOut(b *testing.B) {
	m := NewModel().AddScalar(Literal("base", 100))
	for i := 0; i < 500; i++ {
		m.AddScalar(Formula(fmt.Sprintf("out%d", i), "=base*2"))
	}
	calc := NewArrayCalculator(m)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := calc.CalculateAll(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLargeColumnSUM(b *testing.B) {
	values := make([]float64, 10000)
	for i := range values {
		values[i] = float64(i + 1)
	}
	m := NewModel().
		AddTable(NewTable("data").AddColumn("v", NumberColumn(values...))).
		AddScalar(Formula("total", "=SUM(data.v)"))
	calc := NewArrayCalculator(m)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := calc.CalculateAll(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRowFormulas(b *testing.B) {
	const rows = 1000
	price := make([]float64, rows)
	qty := make([]float64, rows)
	for i := range price {
		price[i] = float64(i%50) + 0.5
		qty[i] = float64(i % 7)
	}
	m := NewModel().
		AddScalar(Literal("tax", 0.2)).
		AddTable(NewTable("orders").
			AddColumn("price", NumberColumn(price...)).
			AddColumn("qty", NumberColumn(qty...)).
			AddRowFormula("net", "=price * qty").
			AddRowFormula("gross", "=net * (1 + tax)").
			AddRowFormula("band", `=IF(gross > 100, "large", "small")`)).
		AddScalar(Formula("revenue", "=SUM(orders.gross)"))
	calc := NewArrayCalculator(m)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := calc.CalculateAll(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkComplexNestedFormulas(b *testing.B) {
	ctx := fixtureContext()
	e := NewEvaluator()
	formula := "=IF(SUM(nums) > 10, ROUND(AVERAGE(nums) * MAX(tens), 2), MIN(tens)) + NPV(rate, flows)"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Evaluate(formula, ctx); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkXIRR(b *testing.B) {
	ctx := fixtureContext()
	e := NewEvaluator()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Evaluate("=XIRR(flows, flow_dates)", ctx); err != nil {
			b.Fatal(err)
		}
	}
}

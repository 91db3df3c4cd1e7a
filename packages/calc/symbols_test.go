package calc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSymbolTable(t *testing.T) {
	st := NewSymbolTable()
	revenue := st.Define(SymbolScalar, "revenue")
	sales := st.Define(SymbolTableName, "sales")
	price := st.Define(SymbolColumn, "sales.price")
	st.Define(SymbolFormulaColumn, "sales.total")

	if revenue == 0 || sales == 0 || price == 0 {
		t.Fatalf("Define returned the reserved id")
	}
	if again := st.Define(SymbolScalar, "revenue"); again != revenue {
		t.Errorf("redefining revenue gave %d, want %d", again, revenue)
	}
	if st.Define(SymbolTableName, "revenue") == revenue {
		t.Errorf("kinds do not have separate namespaces")
	}
	if st.Count() != 5 {
		t.Errorf("Count() = %d, want 5", st.Count())
	}
	if !st.Has(SymbolColumn, "sales.price") || st.Has(SymbolFormulaColumn, "sales.price") {
		t.Errorf("Has() does not respect kinds")
	}
	if name, ok := st.Name(price); !ok || name != "sales.price" {
		t.Errorf("Name(%d) = %q, %v", price, name, ok)
	}

	st.AddReference(revenue)
	st.AddReference(revenue)
	st.AddReference(price)
	if st.AddReference(SymbolID(999)) {
		t.Errorf("AddReference accepted an unknown id")
	}
	if st.GetReferenceCount(revenue) != 2 || st.TotalReferences() != 3 {
		t.Errorf("GetReferenceCount(revenue) = %d, TotalReferences() = %d", st.GetReferenceCount(revenue), st.TotalReferences())
	}

	if diff := cmp.Diff([]string{"revenue", "sales"}, st.Names(SymbolTableName)); diff != "" {
		t.Errorf("Names(SymbolTableName) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"sales.total"}, st.Unreferenced(SymbolFormulaColumn)); diff != "" {
		t.Errorf("Unreferenced(SymbolFormulaColumn) mismatch (-want +got):\n%s", diff)
	}
}

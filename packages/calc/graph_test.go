package calc

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func indexOf(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestCalculationOrder(t *testing.T) {
	dg := NewDependencyGraph()
	dg.AddNode("a")
	dg.AddDependency("c", "b")
	dg.AddDependency("b", "a")
	dg.AddDependency("d", "a")
	dg.AddDependency("d", "c")

	order, err := dg.GetCalculationOrder()
	if err != nil {
		t.Fatalf("GetCalculationOrder: %v", err)
	}
	if len(order) != 4 {
		t.Fatalf("order %v has %d nodes, want 4", order, len(order))
	}
	for _, edge := range [][2]string{{"c", "b"}, {"b", "a"}, {"d", "a"}, {"d", "c"}} {
		if indexOf(order, edge[0]) < indexOf(order, edge[1]) {
			t.Errorf("%s is ordered before its precedent %s in %v", edge[0], edge[1], order)
		}
	}
}

func TestCalculationOrderIsDeterministic(t *testing.T) {
	build := func() *DependencyGraph {
		dg := NewDependencyGraph()
		for _, name := range []string{"a", "b", "c", "d", "e"} {
			dg.AddNode(name)
		}
		dg.AddDependency("e", "a")
		dg.AddDependency("c", "b")
		return dg
	}
	first, _ := build().GetCalculationOrder()
	for i := 0; i < 10; i++ {
		again, _ := build().GetCalculationOrder()
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("order changed between builds (-first +again):\n%s", diff)
		}
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "d", "e"}, first); diff != "" {
		t.Errorf("independent nodes should keep insertion order (-want +got):\n%s", diff)
	}
}

func TestCycleDetection(t *testing.T) {
	tests := []struct {
		name  string
		edges [][2]string
		cycle string
	}{
		{"self", [][2]string{{"x", "x"}}, "x → x"},
		{"pair", [][2]string{{"a", "b"}, {"b", "a"}}, "a → b → a"},
		{"triangle", [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}}, "a → b → c → a"},
		{"tail into cycle", [][2]string{{"root", "p"}, {"p", "q"}, {"q", "p"}}, "p → q → p"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dg := NewDependencyGraph()
			for _, edge := range test.edges {
				dg.AddDependency(edge[0], edge[1])
			}
			if !dg.HasCycle() {
				t.Fatalf("HasCycle() = false")
			}
			_, err := dg.GetCalculationOrder()
			if !IsKind(err, ErrorKindCircularDependency) {
				t.Fatalf("got %v, want a circular dependency", err)
			}
			if !strings.Contains(err.Error(), test.cycle) {
				t.Errorf("error %q does not name cycle %q", err, test.cycle)
			}
		})
	}
}

func TestGraphNeighbours(t *testing.T) {
	dg := NewDependencyGraph()
	dg.AddDependency("total", "revenue")
	dg.AddDependency("total", "costs")
	dg.AddDependency("total", "costs")
	dg.AddDependency("revenue", "price")
	dg.AddDependency("margin", "revenue")

	if diff := cmp.Diff([]string{"revenue", "costs"}, dg.GetDirectPrecedents("total")); diff != "" {
		t.Errorf("precedents of total (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"total", "margin"}, dg.GetDirectDependents("revenue")); diff != "" {
		t.Errorf("dependents of revenue (-want +got):\n%s", diff)
	}
	all := dg.GetAllPrecedents("total")
	if len(all) != 3 || indexOf(all, "price") < 0 {
		t.Errorf("all precedents of total = %v, want revenue, costs and price", all)
	}
	if dg.GetDirectPrecedents("missing") != nil {
		t.Errorf("unknown node has precedents")
	}
	if dg.NodeCount() != 5 {
		t.Errorf("NodeCount() = %d, want 5", dg.NodeCount())
	}
	id, ok := dg.Lookup("price")
	if !ok || dg.Name(id) != "price" {
		t.Errorf("Lookup(price) = %v, %v", id, ok)
	}
}

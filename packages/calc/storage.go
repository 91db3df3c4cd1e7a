package calc

// storage holds the tables built while preparing a calculation run.
type storage struct {
	formulas *FormulaTable
	symbols  *SymbolTable

	scalarGraph  *DependencyGraph            // scalar -> scalars it reads
	tableGraph   *DependencyGraph            // table -> tables it must follow
	columnGraphs map[string]*DependencyGraph // per table, "t.c" -> formula columns it reads

	scalarASTs map[string]ASTNode
	rowASTs    map[string]map[string]ASTNode

	scalarRefs map[string][]reference
	rowRefs    map[string]map[string][]reference
}

func newStorage() *storage {
	return &storage{
		formulas:     NewFormulaTable(),
		symbols:      NewSymbolTable(),
		scalarGraph:  NewDependencyGraph(),
		tableGraph:   NewDependencyGraph(),
		columnGraphs: make(map[string]*DependencyGraph),
		scalarASTs:   make(map[string]ASTNode),
		rowASTs:      make(map[string]map[string]ASTNode),
		scalarRefs:   make(map[string][]reference),
		rowRefs:      make(map[string]map[string][]reference),
	}
}

// columnGraph returns the row formula graph of a table, creating it if
// needed.
func (s *storage) columnGraph(table string) *DependencyGraph {
	graph, ok := s.columnGraphs[table]
	if !ok {
		graph = NewDependencyGraph()
		s.columnGraphs[table] = graph
	}
	return graph
}

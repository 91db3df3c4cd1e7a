package calc

// refKind is what a formula reference resolved to.
type refKind uint8

const (
	refScalar refKind = iota
	refColumn         // table.name
	refTable          // a whole table, as passed to ROWS or COLUMNS
)

// reference is a reference made by a formula, already resolved against
// the model the way the evaluator will resolve it.
type reference struct {
	kind  refKind
	table string
	name  string
}

// resolver extracts references from parsed formulas, checks that they
// exist and builds the scalar, table and column dependency graphs.
type resolver struct {
	model *Model
	store *storage

	// lateNeeds maps each scalar that reads row formula columns, directly
	// or through other scalars, to the tables that must be evaluated first.
	lateNeeds map[string][]string
	// tableScalars lists, per table, the late scalars its row formulas read.
	tableScalars map[string][]string
}

func newResolver(model *Model, store *storage) *resolver {
	return &resolver{
		model:        model,
		store:        store,
		lateNeeds:    make(map[string][]string),
		tableScalars: make(map[string][]string),
	}
}

// defineSymbols registers every name the model defines.
func (r *resolver) defineSymbols() {
	for _, name := range sortedKeys(r.model.Scalars) {
		r.store.symbols.Define(SymbolScalar, name)
	}
	for _, name := range sortedKeys(r.model.Tables) {
		t := r.model.Tables[name]
		r.store.symbols.Define(SymbolTableName, name)
		for _, column := range t.ColumnNames() {
			r.store.symbols.Define(SymbolColumn, name+"."+column)
		}
		for _, column := range sortedKeys(t.RowFormulas) {
			r.store.symbols.Define(SymbolFormulaColumn, name+"."+column)
		}
	}
}

// parse parses every formula of the model once, rejects aggregations used
// as row formulas and resolves every reference.
func (r *resolver) parse() error {
	r.defineSymbols()
	for _, name := range sortedKeys(r.model.Scalars) {
		v := r.model.Scalars[name]
		if !v.HasFormula() {
			continue
		}
		owner := FormulaOwner{Name: name}
		_, ast, err := r.store.formulas.Parse(v.Formula, owner)
		if err != nil {
			return err
		}
		refs, err := r.references(ast, nil)
		if err != nil {
			return err
		}
		r.store.scalarASTs[name] = ast
		r.store.scalarRefs[name] = refs
	}
	for _, tableName := range sortedKeys(r.model.Tables) {
		t := r.model.Tables[tableName]
		asts := make(map[string]ASTNode, len(t.RowFormulas))
		refs := make(map[string][]reference, len(t.RowFormulas))
		for _, column := range sortedKeys(t.RowFormulas) {
			owner := FormulaOwner{Table: tableName, Name: column}
			_, ast, err := r.store.formulas.Parse(t.RowFormulas[column], owner)
			if err != nil {
				return err
			}
			if err := checkRowFormula(ast, owner); err != nil {
				return err
			}
			columnRefs, err := r.references(ast, t)
			if err != nil {
				return err
			}
			asts[column] = ast
			refs[column] = columnRefs
		}
		r.store.rowASTs[tableName] = asts
		r.store.rowRefs[tableName] = refs
	}
	return nil
}

// checkRowFormula rejects aggregation functions anywhere in a row formula.
func checkRowFormula(ast ASTNode, owner FormulaOwner) error {
	var err error
	Walk(ast, func(node ASTNode) bool {
		call, ok := node.(*FunctionCallNode)
		if ok && call.Func.Aggregate && err == nil {
			err = NewEvalError(ErrorKindAggregationContext,
				"Aggregation function %s cannot be used in row formula %s; aggregation is only allowed in scalar formulas",
				call.Func.Name, owner)
		}
		return err == nil
	})
	return err
}

// references collects the references of a formula. table is the table
// whose row formulas bare names resolve against, nil for scalar formulas.
func (r *resolver) references(ast ASTNode, table *Table) ([]reference, error) {
	var refs []reference
	err := r.collect(ast, table, nil, false, &refs)
	return refs, err
}

func (r *resolver) collect(node ASTNode, table *Table, locals *binding, optional bool, refs *[]reference) error {
	switch n := node.(type) {
	case *ReferenceNode:
		ref, err := r.resolve(n, table, locals)
		if err != nil {
			if optional {
				return nil
			}
			return err
		}
		if ref != nil {
			*refs = append(*refs, *ref)
		}
		return nil
	case *FunctionCallNode:
		switch n.Func.ID {
		case FnLet:
			return r.collectLet(n, table, locals, optional, refs)
		case FnLambda:
			return r.collectLambda(n, table, locals, optional, refs)
		case FnIsref:
			optional = true
		case FnRows, FnColumns:
			if len(n.Args) == 1 {
				if name, ok := r.wholeTable(n.Args[0], locals); ok {
					*refs = append(*refs, r.tableRef(name))
					return nil
				}
			}
		}
	}
	for _, child := range node.Children() {
		if err := r.collect(child, table, locals, optional, refs); err != nil {
			return err
		}
	}
	return nil
}

// collectLet binds each LET name after its value, so later values and the
// calculation see it and earlier ones do not.
func (r *resolver) collectLet(n *FunctionCallNode, table *Table, locals *binding, optional bool, refs *[]reference) error {
	scope := locals
	for i := 0; i+1 < len(n.Args); i += 2 {
		if err := r.collect(n.Args[i+1], table, scope, optional, refs); err != nil {
			return err
		}
		if name, ok := letName(n.Args[i]); ok {
			scope = &binding{name: name, next: scope}
		}
	}
	if len(n.Args)%2 == 1 {
		return r.collect(n.Args[len(n.Args)-1], table, scope, optional, refs)
	}
	return nil
}

// collectLambda binds the parameters before collecting the body.
func (r *resolver) collectLambda(n *FunctionCallNode, table *Table, locals *binding, optional bool, refs *[]reference) error {
	if len(n.Args) == 0 {
		return nil
	}
	scope := locals
	for _, arg := range n.Args[:len(n.Args)-1] {
		if name, ok := letName(arg); ok {
			scope = &binding{name: name, next: scope}
		}
	}
	return r.collect(n.Args[len(n.Args)-1], table, scope, optional, refs)
}

// wholeTable reports whether arg is a bare table name that is not shadowed
// by a local or a scalar.
func (r *resolver) wholeTable(arg ASTNode, locals *binding) (string, bool) {
	ref, ok := arg.(*ReferenceNode)
	if !ok || ref.Qualified() || bound(locals, ref.Name) {
		return "", false
	}
	if _, scalar := r.model.Scalars[ref.Name]; scalar {
		return "", false
	}
	_, ok = r.model.Tables[ref.Name]
	return ref.Name, ok
}

func bound(locals *binding, name string) bool {
	for b := locals; b != nil; b = b.next {
		if b.name == name {
			return true
		}
	}
	return false
}

// resolve resolves a single reference. LET locals resolve to nil.
func (r *resolver) resolve(n *ReferenceNode, table *Table, locals *binding) (*reference, error) {
	if n.Qualified() {
		return r.resolveQualified(n.Table, n.Name)
	}
	if bound(locals, n.Name) {
		return nil, nil
	}
	if table != nil && table.hasColumn(n.Name) {
		return r.columnRef(table.Name, n.Name), nil
	}
	if _, ok := r.model.Scalars[n.Name]; ok {
		return r.scalarRef(n.Name), nil
	}
	var candidates []string
	for b := locals; b != nil; b = b.next {
		candidates = append(candidates, b.name)
	}
	if table != nil {
		candidates = append(candidates, table.allColumnNames()...)
	}
	candidates = append(candidates, r.store.symbols.Names(SymbolScalar)...)
	return nil, NewEvalError(ErrorKindUnknownReference, "Unknown variable: %s%s", n.Name, suggestion(n.Name, candidates))
}

// resolveQualified resolves a.b as the scalar "a.b" first and as column b
// of table a otherwise.
func (r *resolver) resolveQualified(tableName, name string) (*reference, error) {
	if _, ok := r.model.Scalars[tableName+"."+name]; ok {
		return r.scalarRef(tableName + "." + name), nil
	}
	t, ok := r.model.Tables[tableName]
	if !ok {
		return nil, NewEvalError(ErrorKindUnknownReference, "Unknown table: %s%s",
			tableName, suggestion(tableName, r.store.symbols.Names(SymbolTableName)))
	}
	if !t.hasColumn(name) {
		return nil, NewEvalError(ErrorKindUnknownReference, "Unknown column: %s.%s%s",
			tableName, name, suggestion(name, t.allColumnNames()))
	}
	return r.columnRef(tableName, name), nil
}

func (r *resolver) scalarRef(name string) *reference {
	r.count(SymbolScalar, name)
	return &reference{kind: refScalar, name: name}
}

func (r *resolver) columnRef(table, name string) *reference {
	kind := SymbolColumn
	if r.model.Tables[table].isFormulaColumn(name) {
		kind = SymbolFormulaColumn
	}
	r.count(kind, table+"."+name)
	return &reference{kind: refColumn, table: table, name: name}
}

func (r *resolver) tableRef(name string) reference {
	r.count(SymbolTableName, name)
	return reference{kind: refTable, table: name}
}

func (r *resolver) count(kind SymbolKind, name string) {
	if id, ok := r.store.symbols.Lookup(kind, name); ok {
		r.store.symbols.AddReference(id)
	}
}

// needsTable returns the table whose row formulas must run before ref can
// be read, if any. Data columns are available from the start.
func (r *resolver) needsTable(ref reference) (string, bool) {
	switch ref.kind {
	case refColumn:
		return ref.table, r.model.Tables[ref.table].isFormulaColumn(ref.name)
	case refTable:
		return ref.table, len(r.model.Tables[ref.table].RowFormulas) > 0
	}
	return "", false
}

// resolveScalarOrder orders the formula scalars and works out which of
// them have to wait for tables.
func (r *resolver) resolveScalarOrder() ([]string, error) {
	graph := r.store.scalarGraph
	direct := make(map[string]map[string]struct{})
	for _, name := range sortedKeys(r.store.scalarASTs) {
		graph.AddNode(name)
		for _, ref := range r.store.scalarRefs[name] {
			if ref.kind == refScalar {
				if _, computed := r.store.scalarASTs[ref.name]; computed {
					graph.AddDependency(name, ref.name)
				}
				continue
			}
			if table, ok := r.needsTable(ref); ok {
				if direct[name] == nil {
					direct[name] = make(map[string]struct{})
				}
				direct[name][table] = struct{}{}
			}
		}
	}
	order, err := graph.GetCalculationOrder()
	if err != nil {
		return nil, err
	}
	needs := make(map[string]map[string]struct{}, len(order))
	for _, name := range order {
		set := make(map[string]struct{})
		for table := range direct[name] {
			set[table] = struct{}{}
		}
		for _, precedent := range graph.GetDirectPrecedents(name) {
			for table := range needs[precedent] {
				set[table] = struct{}{}
			}
		}
		needs[name] = set
		if len(set) > 0 {
			r.lateNeeds[name] = sortedKeys(set)
		}
	}
	return order, nil
}

// isLate reports whether a scalar has to wait for table evaluation.
func (r *resolver) isLate(name string) bool {
	_, ok := r.lateNeeds[name]
	return ok
}

// resolveTableOrder orders the tables and, per table, its row formulas.
// A table follows every table whose formula columns it reads, directly
// or through a late scalar.
func (r *resolver) resolveTableOrder() ([]string, map[string][]string, error) {
	tables := r.store.tableGraph
	for _, tableName := range sortedKeys(r.model.Tables) {
		tables.AddNode(tableName)
		columns := r.store.columnGraph(tableName)
		for _, column := range sortedKeys(r.store.rowASTs[tableName]) {
			columns.AddNode(tableName + "." + column)
		}
		late := make(map[string]struct{})
		for _, column := range sortedKeys(r.store.rowASTs[tableName]) {
			for _, ref := range r.store.rowRefs[tableName][column] {
				switch {
				case ref.kind == refScalar:
					for _, needed := range r.lateNeeds[ref.name] {
						if needed == tableName {
							return nil, nil, NewEvalError(ErrorKindCircularDependency,
								"Circular dependency detected: %s → %s → %s", tableName, ref.name, tableName)
						}
						tables.AddDependency(tableName, needed)
					}
					if r.isLate(ref.name) {
						late[ref.name] = struct{}{}
					}
				case ref.table == tableName:
					if ref.kind == refColumn && r.model.Tables[tableName].isFormulaColumn(ref.name) {
						columns.AddDependency(tableName+"."+column, tableName+"."+ref.name)
					}
				default:
					if needed, ok := r.needsTable(ref); ok {
						tables.AddDependency(tableName, needed)
					}
				}
			}
		}
		r.tableScalars[tableName] = r.withLatePrecedents(late)
	}
	order, err := tables.GetCalculationOrder()
	if err != nil {
		return nil, nil, err
	}
	columnOrders := make(map[string][]string, len(order))
	for _, tableName := range order {
		columnOrder, err := r.store.columnGraph(tableName).GetCalculationOrder()
		if err != nil {
			return nil, nil, err
		}
		names := make([]string, len(columnOrder))
		for i, qualified := range columnOrder {
			names[i] = qualified[len(tableName)+1:]
		}
		columnOrders[tableName] = names
	}
	return order, columnOrders, nil
}

// withLatePrecedents adds the late scalars the given ones read. The
// calculator evaluates them in scalar order.
func (r *resolver) withLatePrecedents(scalars map[string]struct{}) []string {
	all := make(map[string]struct{}, len(scalars))
	for name := range scalars {
		all[name] = struct{}{}
		for _, precedent := range r.store.scalarGraph.GetAllPrecedents(name) {
			if r.isLate(precedent) {
				all[precedent] = struct{}{}
			}
		}
	}
	return sortedKeys(all)
}

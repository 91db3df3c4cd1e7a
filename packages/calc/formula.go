package calc

// ASTKey represents a normalized AST used as a key for formula
// deduplication. Two formulas with the same structure (ignoring whitespace,
// case of function names and the optional leading '=') have the same key.
type ASTKey string

// FormulaOwner identifies the slot a formula belongs to. Table is empty for
// scalar formulas.
type FormulaOwner struct {
	Table string
	Name  string
}

func (o FormulaOwner) String() string {
	if o.Table == "" {
		return o.Name
	}
	return o.Table + "." + o.Name
}

// FormulaTable parses formulas once and stores them centrally. Row formulas
// are evaluated once per row, so the parse result is shared by every row of
// a table and by every slot whose formula normalizes to the same AST.
type FormulaTable struct {
	sourceIndex map[string]uint32  // raw formula text -> formula ID
	astIndex    map[ASTKey]uint32  // normalized AST -> formula ID
	astCache    map[uint32]ASTNode // formula ID -> cached parsed AST
	refCounts   map[uint32]int     // formula ID -> reference count
	owners      map[uint32][]FormulaOwner

	nextID uint32
}

// NewFormulaTable creates a new formula table
func NewFormulaTable() *FormulaTable {
	return &FormulaTable{
		sourceIndex: make(map[string]uint32),
		astIndex:    make(map[ASTKey]uint32),
		astCache:    make(map[uint32]ASTNode),
		refCounts:   make(map[uint32]int),
		owners:      make(map[uint32][]FormulaOwner),
		nextID:      1, // reserve 0 for no formula
	}
}

// normalizeAST converts an AST to its normalized string representation
func (ft *FormulaTable) normalizeAST(ast ASTNode) ASTKey {
	if ast == nil {
		return ""
	}
	return ASTKey(ast.ToString())
}

// Parse returns the formula ID and AST for a formula string, parsing it only
// the first time the exact text is seen.
func (ft *FormulaTable) Parse(formula string, owner FormulaOwner) (uint32, ASTNode, error) {
	if id, exists := ft.sourceIndex[formula]; exists {
		ft.addOwner(id, owner)
		return id, ft.astCache[id], nil
	}
	ast, err := ParseFormula(formula)
	if err != nil {
		return 0, nil, err
	}
	id := ft.InternFormula(ast, owner)
	ft.sourceIndex[formula] = id
	return id, ft.astCache[id], nil
}

// InternFormula adds a formula or increments its reference count if an
// equivalent one already exists. Returns the formula ID.
func (ft *FormulaTable) InternFormula(ast ASTNode, owner FormulaOwner) uint32 {
	key := ft.normalizeAST(ast)

	if id, exists := ft.astIndex[key]; exists {
		ft.addOwner(id, owner)
		return id
	}

	id := ft.nextID
	ft.astIndex[key] = id
	ft.astCache[id] = ast
	ft.addOwner(id, owner)
	ft.nextID++

	return id
}

// addOwner counts a use of the formula. The zero owner marks ad-hoc
// evaluations, which are counted but not tracked.
func (ft *FormulaTable) addOwner(id uint32, owner FormulaOwner) {
	ft.refCounts[id]++
	if owner != (FormulaOwner{}) {
		ft.owners[id] = append(ft.owners[id], owner)
	}
}

// GetAST retrieves the cached AST for a formula ID
func (ft *FormulaTable) GetAST(id uint32) (ASTNode, bool) {
	ast, exists := ft.astCache[id]
	return ast, exists
}

// GetFormulaID returns the ID for a normalized AST
func (ft *FormulaTable) GetFormulaID(ast ASTNode) (uint32, bool) {
	id, exists := ft.astIndex[ft.normalizeAST(ast)]
	return id, exists
}

// GetOwners returns the slots using a formula, in the order they were added.
func (ft *FormulaTable) GetOwners(id uint32) []FormulaOwner {
	return ft.owners[id]
}

// GetReferenceCount returns how many slots use a formula.
func (ft *FormulaTable) GetReferenceCount(id uint32) int {
	return ft.refCounts[id]
}

// Count returns the number of distinct formulas.
func (ft *FormulaTable) Count() int {
	return len(ft.astCache)
}

// TotalReferences returns the number of slots across all formulas.
func (ft *FormulaTable) TotalReferences() int {
	total := 0
	for _, count := range ft.refCounts {
		total += count
	}
	return total
}

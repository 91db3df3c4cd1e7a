package calc

import "sort"

// SymbolKind is the namespace a symbol lives in.
type SymbolKind uint8

const (
	SymbolScalar SymbolKind = iota + 1
	SymbolTableName
	SymbolColumn        // data column, named "table.column"
	SymbolFormulaColumn // row formula column, named "table.column"
)

// SymbolID identifies an interned symbol. Zero is never assigned.
type SymbolID uint32

type symbolKey struct {
	kind SymbolKind
	name string
}

// SymbolTable indexes the names a model defines. The resolver defines a
// symbol for every scalar, table and column and counts each reference a
// formula makes to it.
type SymbolTable struct {
	nameToID map[symbolKey]SymbolID
	idToKey  map[SymbolID]symbolKey

	refCounts map[SymbolID]int
	nextID    SymbolID
}

// NewSymbolTable creates an empty symbol table
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		nameToID:  make(map[symbolKey]SymbolID),
		idToKey:   make(map[SymbolID]symbolKey),
		refCounts: make(map[SymbolID]int),
		nextID:    1, // reserve 0 for no symbol
	}
}

// Define adds a symbol, returning the existing ID if it is already known.
func (st *SymbolTable) Define(kind SymbolKind, name string) SymbolID {
	key := symbolKey{kind: kind, name: name}
	if id, exists := st.nameToID[key]; exists {
		return id
	}
	id := st.nextID
	st.nameToID[key] = id
	st.idToKey[id] = key
	st.nextID++
	return id
}

// Lookup returns the ID of a defined symbol.
func (st *SymbolTable) Lookup(kind SymbolKind, name string) (SymbolID, bool) {
	id, exists := st.nameToID[symbolKey{kind: kind, name: name}]
	return id, exists
}

// Has reports whether a symbol is defined.
func (st *SymbolTable) Has(kind SymbolKind, name string) bool {
	_, exists := st.Lookup(kind, name)
	return exists
}

// Name returns the name of a symbol.
func (st *SymbolTable) Name(id SymbolID) (string, bool) {
	key, exists := st.idToKey[id]
	return key.name, exists
}

// AddReference counts a use of a symbol. It returns false for unknown IDs.
func (st *SymbolTable) AddReference(id SymbolID) bool {
	if _, exists := st.idToKey[id]; !exists {
		return false
	}
	st.refCounts[id]++
	return true
}

// GetReferenceCount returns how many formula references a symbol has.
func (st *SymbolTable) GetReferenceCount(id SymbolID) int {
	return st.refCounts[id]
}

// Names returns the sorted names of every symbol of a kind.
func (st *SymbolTable) Names(kind SymbolKind) []string {
	var names []string
	for key := range st.nameToID {
		if key.kind == kind {
			names = append(names, key.name)
		}
	}
	sort.Strings(names)
	return names
}

// Unreferenced returns the sorted names of the symbols of a kind that no
// formula refers to.
func (st *SymbolTable) Unreferenced(kind SymbolKind) []string {
	var names []string
	for key, id := range st.nameToID {
		if key.kind == kind && st.refCounts[id] == 0 {
			names = append(names, key.name)
		}
	}
	sort.Strings(names)
	return names
}

// Count returns the number of defined symbols.
func (st *SymbolTable) Count() int {
	return len(st.nameToID)
}

// TotalReferences returns the number of references across all symbols.
func (st *SymbolTable) TotalReferences() int {
	total := 0
	for _, count := range st.refCounts {
		total += count
	}
	return total
}

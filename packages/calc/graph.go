package calc

import (
	"strings"
)

// NodeID indexes a node in a DependencyGraph arena.
type NodeID int32

// DependencyGraph is a directed graph over named nodes. Nodes live in an
// arena and are addressed by NodeID; edges point from a node to the nodes
// it depends on (its precedents). The resolver builds one graph for
// scalars, one for tables and one per table for its row formulas.
type DependencyGraph struct {
	names      []string
	index      map[string]NodeID
	precedents [][]NodeID
	dependents [][]NodeID
}

// NewDependencyGraph creates an empty dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		index: make(map[string]NodeID),
	}
}

// AddNode returns the node for name, creating it if needed. Nodes keep
// their insertion order, which is the order ties are broken in.
func (dg *DependencyGraph) AddNode(name string) NodeID {
	if id, exists := dg.index[name]; exists {
		return id
	}
	id := NodeID(len(dg.names))
	dg.names = append(dg.names, name)
	dg.precedents = append(dg.precedents, nil)
	dg.dependents = append(dg.dependents, nil)
	dg.index[name] = id
	return id
}

// AddDependency records that from depends on to. Both nodes are created
// if they do not exist yet. Duplicate edges are ignored.
func (dg *DependencyGraph) AddDependency(from, to string) {
	fromID := dg.AddNode(from)
	toID := dg.AddNode(to)
	for _, existing := range dg.precedents[fromID] {
		if existing == toID {
			return
		}
	}
	dg.precedents[fromID] = append(dg.precedents[fromID], toID)
	dg.dependents[toID] = append(dg.dependents[toID], fromID)
}

// Lookup returns the id of the named node.
func (dg *DependencyGraph) Lookup(name string) (NodeID, bool) {
	id, ok := dg.index[name]
	return id, ok
}

// Name returns the name of a node.
func (dg *DependencyGraph) Name(id NodeID) string {
	return dg.names[id]
}

// NodeCount returns the number of nodes in the graph.
func (dg *DependencyGraph) NodeCount() int {
	return len(dg.names)
}

// GetDirectPrecedents returns the names a node depends on directly.
func (dg *DependencyGraph) GetDirectPrecedents(name string) []string {
	id, ok := dg.index[name]
	if !ok {
		return nil
	}
	return dg.namesOf(dg.precedents[id])
}

// GetDirectDependents returns the names that depend on a node directly.
func (dg *DependencyGraph) GetDirectDependents(name string) []string {
	id, ok := dg.index[name]
	if !ok {
		return nil
	}
	return dg.namesOf(dg.dependents[id])
}

// GetAllPrecedents returns every node reachable from name through
// precedent edges, excluding name itself.
func (dg *DependencyGraph) GetAllPrecedents(name string) []string {
	id, ok := dg.index[name]
	if !ok {
		return nil
	}
	visited := make([]bool, len(dg.names))
	visited[id] = true
	var result []NodeID
	stack := append([]NodeID(nil), dg.precedents[id]...)
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[next] {
			continue
		}
		visited[next] = true
		result = append(result, next)
		stack = append(stack, dg.precedents[next]...)
	}
	return dg.namesOf(result)
}

func (dg *DependencyGraph) namesOf(ids []NodeID) []string {
	result := make([]string, len(ids))
	for i, id := range ids {
		result[i] = dg.names[id]
	}
	return result
}

// visit states
const (
	unvisited uint8 = iota
	visiting
	visited
)

// GetCalculationOrder returns the node names ordered so that every node
// comes after all of its precedents. A cycle is reported as a
// CircularDependency error naming its members, e.g. "a → b → a".
func (dg *DependencyGraph) GetCalculationOrder() ([]string, error) {
	state := make([]uint8, len(dg.names))
	order := make([]string, 0, len(dg.names))
	var path []NodeID

	var visit func(id NodeID) error
	visit = func(id NodeID) error {
		switch state[id] {
		case visited:
			return nil
		case visiting:
			return dg.cycleError(path, id)
		}

		state[id] = visiting
		path = append(path, id)
		for _, precedent := range dg.precedents[id] {
			if err := visit(precedent); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[id] = visited
		order = append(order, dg.names[id])
		return nil
	}

	for id := range dg.names {
		if state[id] == unvisited {
			if err := visit(NodeID(id)); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

// HasCycle checks if there are circular dependencies
func (dg *DependencyGraph) HasCycle() bool {
	_, err := dg.GetCalculationOrder()
	return err != nil
}

// cycleError builds the error for a back edge to closing. The path holds
// the current visiting chain; the cycle is its suffix starting at closing.
func (dg *DependencyGraph) cycleError(path []NodeID, closing NodeID) error {
	start := 0
	for i, id := range path {
		if id == closing {
			start = i
			break
		}
	}
	members := make([]string, 0, len(path)-start+1)
	for _, id := range path[start:] {
		members = append(members, dg.names[id])
	}
	members = append(members, dg.names[closing])
	return NewEvalError(ErrorKindCircularDependency, "Circular dependency detected: %s", strings.Join(members, " → "))
}

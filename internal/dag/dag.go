package dag

import (
	"errors"
	"fmt"
)

var (
	// ErrCycleDetected is wrapped by every CycleError.
	ErrCycleDetected = errors.New("cycle detected")
	// ErrGraphFrozen is returned when a frozen graph is modified.
	ErrGraphFrozen = errors.New("graph is frozen")
	// ErrNodeNotFound is returned for ids that are not in the graph.
	ErrNodeNotFound = errors.New("node not found")
)

// CycleError names the node at which a cycle was found.
type CycleError struct {
	NodeID string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected involving node '%s'", e.NodeID)
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		vertices: make(map[string]*vertex),
	}
}

// AddNode adds a node to the graph. The first node added becomes the root.
// Adding an id that already exists is an error.
func (g *Graph) AddNode(n Node) error {
	if n == nil {
		return errors.New("nil node")
	}
	id := n.Info().ID
	if id == "" {
		return errors.New("node id must not be empty")
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.frozen {
		return ErrGraphFrozen
	}
	if _, ok := g.vertices[id]; ok {
		return fmt.Errorf("duplicate node id: %s", id)
	}

	g.vertices[id] = newVertex(n)
	g.order = append(g.order, id)
	if g.rootID == "" {
		g.rootID = id
	}
	return nil
}

// AddEdge records that `toID` depends on `fromID`. Both sides of the
// relation are updated under one lock. Re-adding an existing edge is a no-op.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.frozen {
		return ErrGraphFrozen
	}

	fromNode, ok := g.vertices[fromID]
	if !ok {
		return fmt.Errorf("source %w: %s", ErrNodeNotFound, fromID)
	}
	toNode, ok := g.vertices[toID]
	if !ok {
		return fmt.Errorf("destination %w: %s", ErrNodeNotFound, toID)
	}

	toNode.deps.Set(fromID, struct{}{})
	fromNode.dependents.Set(toID, struct{}{})
	return nil
}

// Root returns the root node, or nil for an empty graph.
func (g *Graph) Root() Node {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	if g.rootID == "" {
		return nil
	}
	return g.vertices[g.rootID].node
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.vertices[id]
	if !ok {
		return nil, false
	}
	return v.node, true
}

// Nodes returns every node in insertion (recording) order.
func (g *Graph) Nodes() []Node {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	nodes := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.vertices[id].node)
	}
	return nodes
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.order)
}

// Frozen reports whether Freeze has succeeded on this graph.
func (g *Graph) Frozen() bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.frozen
}

// Dependencies returns the ids the given node depends on, in the order the
// edges were added.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.vertices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return keys(v.deps), nil
}

// Dependents returns the ids that depend on the given node, in the order the
// edges were added.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.vertices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return keys(v.dependents), nil
}

// Validate checks the graph for cycles. It returns a *CycleError naming the
// first node found on a cycle.
func (g *Graph) Validate() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.detectCycles()
}

// detectCycles is a depth-first search with two sets of nodes:
// permanent nodes are fully explored, temporary nodes are on the current
// recursion stack. Callers must hold the lock.
func (g *Graph) detectCycles() error {
	permanent := make(map[string]bool, len(g.vertices))
	temporary := make(map[string]bool)

	var visit func(id string) error
	visit = func(id string) error {
		if permanent[id] {
			return nil
		}
		if temporary[id] {
			return &CycleError{NodeID: id}
		}

		temporary[id] = true
		for pair := g.vertices[id].dependents.Oldest(); pair != nil; pair = pair.Next() {
			if err := visit(pair.Key); err != nil {
				return err
			}
		}
		delete(temporary, id)
		permanent[id] = true
		return nil
	}

	for _, id := range g.order {
		if !permanent[id] {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Freeze validates the graph and makes it read-only. Every node must be
// reachable from the root through dependent edges.
func (g *Graph) Freeze() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.frozen {
		return nil
	}
	if g.rootID == "" {
		return errors.New("graph has no root node")
	}
	if err := g.detectCycles(); err != nil {
		return fmt.Errorf("error validating dependency graph: %w", err)
	}

	reached := make(map[string]bool, len(g.vertices))
	stack := []string{g.rootID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reached[id] {
			continue
		}
		reached[id] = true
		for pair := g.vertices[id].dependents.Oldest(); pair != nil; pair = pair.Next() {
			stack = append(stack, pair.Key)
		}
	}
	for _, id := range g.order {
		if !reached[id] {
			return fmt.Errorf("node '%s' is not reachable from root '%s'", id, g.rootID)
		}
	}

	g.frozen = true
	return nil
}

func keys(s *idSet) []string {
	out := make([]string, 0, s.Len())
	for pair := s.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

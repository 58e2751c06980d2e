package dag

import (
	"container/heap"
	"fmt"
)

// TopologicalOrder returns every node such that each one appears after all
// of its dependencies. Among nodes that are ready at the same time the one
// recorded first comes first, so the order is stable across runs.
func (g *Graph) TopologicalOrder() ([]Node, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.topologicalOrder()
}

func (g *Graph) topologicalOrder() ([]Node, error) {
	inDegree := make(map[string]int, len(g.vertices))
	ready := &readyQueue{}
	for _, id := range g.order {
		v := g.vertices[id]
		inDegree[id] = v.deps.Len()
		if inDegree[id] == 0 {
			heap.Push(ready, v.node)
		}
	}

	sorted := make([]Node, 0, len(g.order))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(Node)
		sorted = append(sorted, n)
		for pair := g.vertices[n.Info().ID].dependents.Oldest(); pair != nil; pair = pair.Next() {
			inDegree[pair.Key]--
			if inDegree[pair.Key] == 0 {
				heap.Push(ready, g.vertices[pair.Key].node)
			}
		}
	}

	if len(sorted) != len(g.order) {
		// Anything left with unmet dependencies sits on or behind a cycle.
		for _, id := range g.order {
			if inDegree[id] > 0 {
				return nil, &CycleError{NodeID: id}
			}
		}
	}
	return sorted, nil
}

// Traverse calls fn for every node in topological order and stops at the
// first error.
func (g *Graph) Traverse(fn func(Node) error) error {
	nodes, err := g.TopologicalOrder()
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a new frozen graph with the same ids, recording order and
// edges. When transform is non-nil it is applied to every node payload; it
// may change a node's attributes but not its id or variant.
func (g *Graph) Clone(transform func(Node) Node) (*Graph, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	clone := New()
	for _, id := range g.order {
		n := g.vertices[id].node
		if transform != nil {
			replaced := transform(n)
			if replaced == nil {
				return nil, fmt.Errorf("transform returned nil for node '%s'", id)
			}
			if replaced.Info().ID != id || replaced.Kind() != n.Kind() {
				return nil, fmt.Errorf("transform must keep id and kind of node '%s'", id)
			}
			n = replaced
		}
		clone.vertices[id] = newVertex(n)
		clone.order = append(clone.order, id)
	}
	clone.rootID = g.rootID

	for _, id := range g.order {
		src := g.vertices[id]
		dst := clone.vertices[id]
		for pair := src.deps.Oldest(); pair != nil; pair = pair.Next() {
			dst.deps.Set(pair.Key, struct{}{})
		}
		for pair := src.dependents.Oldest(); pair != nil; pair = pair.Next() {
			dst.dependents.Set(pair.Key, struct{}{})
		}
	}

	if g.frozen {
		clone.frozen = true
		return clone, nil
	}
	if err := clone.Freeze(); err != nil {
		return nil, err
	}
	return clone, nil
}

// readyQueue is a min-heap of nodes ordered by recording order.
type readyQueue []Node

func (q readyQueue) Len() int { return len(q) }
func (q readyQueue) Less(i, j int) bool {
	a, b := q[i].Info(), q[j].Info()
	if a.Order != b.Order {
		return a.Order < b.Order
	}
	return a.ID < b.ID
}
func (q readyQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *readyQueue) Push(x any)   { *q = append(*q, x.(Node)) }
func (q *readyQueue) Pop() any {
	old := *q
	n := old[len(old)-1]
	*q = old[:len(old)-1]
	return n
}

package dag

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func netNode(id string, order int) NetworkNode {
	return NetworkNode{
		Base:         Base{ID: id, Duration: 10 * time.Millisecond, Order: order},
		URL:          "https://example.com/" + id,
		AffinityKey:  "https://example.com",
		TransferSize: 1000,
	}
}

func cpuNode(id string, order int) ComputeNode {
	return ComputeNode{Base: Base{ID: id, Duration: 5 * time.Millisecond, Order: order}}
}

// buildGraph adds the given nodes in order and links each "a->b" pair.
func buildGraph(t *testing.T, nodes []Node, edges ...string) *Graph {
	t.Helper()
	g := New()
	for _, n := range nodes {
		require.NoError(t, g.AddNode(n))
	}
	for _, e := range edges {
		from, to, ok := strings.Cut(e, " -> ")
		require.True(t, ok, "bad edge %q", e)
		require.NoError(t, g.AddEdge(from, to))
	}
	return g
}

func ids(nodes []Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Info().ID)
	}
	return out
}

func TestNew(t *testing.T) {
	g := New()
	require.NotNil(t, g)
	assert.NotNil(t, g.vertices)
	assert.Equal(t, 0, g.Len())
	assert.Nil(t, g.Root())
}

func TestAddNode(t *testing.T) {
	g := New()

	require.NoError(t, g.AddNode(netNode("a", 0)))
	assert.Equal(t, 1, g.Len())
	nodeA, ok := g.Node("a")
	require.True(t, ok)
	assert.Equal(t, "a", nodeA.Info().ID)
	assert.Equal(t, KindNetwork, nodeA.Kind())
	assert.Equal(t, "a", g.Root().Info().ID, "first node added becomes the root")

	err := g.AddNode(cpuNode("a", 1))
	assert.ErrorContains(t, err, "duplicate node id")
	assert.Equal(t, 1, g.Len())

	require.NoError(t, g.AddNode(cpuNode("b", 1)))
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, []string{"a", "b"}, ids(g.Nodes()))

	assert.Error(t, g.AddNode(nil))
	assert.Error(t, g.AddNode(cpuNode("", 2)))
}

func TestAddEdge(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := buildGraph(t, []Node{netNode("a", 0), netNode("b", 1)})

		err := g.AddEdge("a", "b") // b depends on a
		require.NoError(t, err)

		deps, err := g.Dependencies("b")
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, deps)

		dependents, err := g.Dependents("a")
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, dependents)

		// Re-adding an edge is a no-op.
		require.NoError(t, g.AddEdge("a", "b"))
		deps, _ = g.Dependencies("b")
		assert.Len(t, deps, 1)
	})

	t.Run("dependency sets keep insertion order", func(t *testing.T) {
		g := buildGraph(t, []Node{netNode("root", 0), netNode("z", 1), netNode("m", 2), netNode("a", 3)},
			"root -> a", "root -> z", "root -> m")

		dependents, err := g.Dependents("root")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "z", "m"}, dependents)
	})

	t.Run("error cases", func(t *testing.T) {
		g := buildGraph(t, []Node{netNode("a", 0), netNode("b", 1)})

		err := g.AddEdge("dne", "a")
		assert.ErrorContains(t, err, "source node not found")
		assert.ErrorIs(t, err, ErrNodeNotFound)

		err = g.AddEdge("a", "dne")
		assert.ErrorContains(t, err, "destination node not found")

		err = g.AddEdge("a", "a")
		assert.ErrorContains(t, err, "self-referential edge")

		_, err = g.Dependencies("dne")
		assert.ErrorIs(t, err, ErrNodeNotFound)
		_, err = g.Dependents("dne")
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})
}

func TestValidate(t *testing.T) {
	t.Run("empty graph has no cycles", func(t *testing.T) {
		assert.NoError(t, New().Validate())
	})

	t.Run("graph with nodes but no edges has no cycles", func(t *testing.T) {
		g := buildGraph(t, []Node{netNode("a", 0), netNode("b", 1), cpuNode("c", 2)})
		assert.NoError(t, g.Validate())
	})

	t.Run("valid dag has no cycles", func(t *testing.T) {
		g := buildGraph(t, []Node{netNode("a", 0), netNode("b", 1), cpuNode("c", 2), netNode("d", 3)},
			"a -> b", "b -> c", "a -> c", "c -> d")
		assert.NoError(t, g.Validate())
	})

	t.Run("simple direct cycle is detected", func(t *testing.T) {
		g := buildGraph(t, []Node{netNode("a", 0), netNode("b", 1)}, "a -> b", "b -> a")
		err := g.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCycleDetected)
		assert.ErrorContains(t, err, "cycle detected involving node")
	})

	t.Run("longer cycle is detected", func(t *testing.T) {
		g := buildGraph(t, []Node{netNode("a", 0), netNode("b", 1), netNode("c", 2), netNode("d", 3)},
			"a -> b", "b -> c", "c -> d", "d -> a")
		err := g.Validate()
		var cycleErr *CycleError
		require.True(t, errors.As(err, &cycleErr))
		assert.Contains(t, []string{"a", "b", "c", "d"}, cycleErr.NodeID)
	})
}

func TestTopologicalOrder(t *testing.T) {
	t.Run("dependencies come first and ties follow recording order", func(t *testing.T) {
		// root fans out to c, b, a (recorded in that order), a feeds d.
		g := buildGraph(t, []Node{netNode("root", 0), netNode("c", 1), netNode("b", 2), netNode("a", 3), cpuNode("d", 4)},
			"root -> a", "root -> b", "root -> c", "a -> d")

		order, err := g.TopologicalOrder()
		require.NoError(t, err)
		if diff := cmp.Diff([]string{"root", "c", "b", "a", "d"}, ids(order)); diff != "" {
			t.Errorf("topological order mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("a later-recorded node waits for its dependency", func(t *testing.T) {
		g := buildGraph(t, []Node{netNode("root", 0), cpuNode("x", 1), netNode("y", 2)},
			"root -> y", "y -> x")

		order, err := g.TopologicalOrder()
		require.NoError(t, err)
		assert.Equal(t, []string{"root", "y", "x"}, ids(order))
	})

	t.Run("cycle fails", func(t *testing.T) {
		g := buildGraph(t, []Node{netNode("root", 0), netNode("a", 1), netNode("b", 2)},
			"root -> a", "a -> b", "b -> a")

		_, err := g.TopologicalOrder()
		assert.ErrorIs(t, err, ErrCycleDetected)
	})
}

func TestFreeze(t *testing.T) {
	t.Run("frozen graph rejects changes", func(t *testing.T) {
		g := buildGraph(t, []Node{netNode("root", 0), netNode("a", 1)}, "root -> a")
		require.NoError(t, g.Freeze())
		assert.True(t, g.Frozen())

		assert.ErrorIs(t, g.AddNode(netNode("b", 2)), ErrGraphFrozen)
		assert.ErrorIs(t, g.AddEdge("a", "root"), ErrGraphFrozen)
		assert.NoError(t, g.Freeze(), "freezing twice is harmless")
	})

	t.Run("cycle blocks freeze", func(t *testing.T) {
		g := buildGraph(t, []Node{netNode("root", 0), netNode("a", 1), netNode("b", 2)},
			"root -> a", "a -> b", "b -> a")
		err := g.Freeze()
		assert.ErrorIs(t, err, ErrCycleDetected)
		assert.False(t, g.Frozen())
	})

	t.Run("unreachable node blocks freeze", func(t *testing.T) {
		g := buildGraph(t, []Node{netNode("root", 0), netNode("a", 1), netNode("orphan", 2)}, "root -> a")
		err := g.Freeze()
		assert.ErrorContains(t, err, "node 'orphan' is not reachable from root 'root'")
	})

	t.Run("empty graph cannot be frozen", func(t *testing.T) {
		assert.Error(t, New().Freeze())
	})
}

func TestClone(t *testing.T) {
	g := buildGraph(t, []Node{netNode("root", 0), netNode("a", 1), cpuNode("b", 2)},
		"root -> a", "a -> b", "root -> b")
	require.NoError(t, g.Freeze())

	t.Run("identity clone preserves topology", func(t *testing.T) {
		clone, err := g.Clone(nil)
		require.NoError(t, err)
		assert.True(t, clone.Frozen())
		assert.Equal(t, ids(g.Nodes()), ids(clone.Nodes()))
		assert.Equal(t, "root", clone.Root().Info().ID)

		for _, id := range []string{"root", "a", "b"} {
			want, _ := g.Dependencies(id)
			got, _ := clone.Dependencies(id)
			assert.Equal(t, want, got, "dependencies of %s", id)
			want, _ = g.Dependents(id)
			got, _ = clone.Dependents(id)
			assert.Equal(t, want, got, "dependents of %s", id)
		}
	})

	t.Run("transform swaps payloads without touching the source", func(t *testing.T) {
		clone, err := g.Clone(func(n Node) Node {
			if n.Info().ID == "a" {
				return n.WithDuration(0)
			}
			return n
		})
		require.NoError(t, err)

		changed, _ := clone.Node("a")
		original, _ := g.Node("a")
		assert.Equal(t, time.Duration(0), changed.Info().Duration)
		assert.Equal(t, 10*time.Millisecond, original.Info().Duration)
		assert.Equal(t, "https://example.com/a", changed.(NetworkNode).URL)
	})

	t.Run("transform may not change id or kind", func(t *testing.T) {
		_, err := g.Clone(func(n Node) Node {
			if n.Info().ID == "a" {
				return cpuNode("a", 1)
			}
			return n
		})
		assert.ErrorContains(t, err, "must keep id and kind")

		_, err = g.Clone(func(n Node) Node { return nil })
		assert.Error(t, err)
	})

	t.Run("cloning an unfrozen graph validates it", func(t *testing.T) {
		bad := buildGraph(t, []Node{netNode("root", 0), netNode("a", 1), netNode("b", 2)},
			"root -> a", "a -> b", "b -> a")
		_, err := bad.Clone(nil)
		assert.ErrorIs(t, err, ErrCycleDetected)
	})
}

func TestTraverse(t *testing.T) {
	g := buildGraph(t, []Node{netNode("root", 0), cpuNode("a", 1), netNode("b", 2)}, "root -> b", "b -> a")

	var visited []string
	require.NoError(t, g.Traverse(func(n Node) error {
		visited = append(visited, n.Info().ID)
		return nil
	}))
	assert.Equal(t, []string{"root", "b", "a"}, visited)

	stop := errors.New("stop")
	err := g.Traverse(func(n Node) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestGraphConcurrentAccess(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(netNode("root", 0)))

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("n%d", i)
			assert.NoError(t, g.AddNode(netNode(id, i)))
			assert.NoError(t, g.AddEdge("root", id))
			_, _ = g.Dependencies(id)
			_ = g.Len()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 101, g.Len())
	require.NoError(t, g.Freeze())
	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, "root", order[0].Info().ID)
	assert.Equal(t, "n1", order[1].Info().ID)
	assert.Equal(t, "n100", order[100].Info().ID)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "network", KindNetwork.String())
	assert.Equal(t, "compute", KindCompute.String())
	assert.Equal(t, "unknown", Kind(9).String())
}

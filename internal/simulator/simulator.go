package simulator

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vk/pagecost/internal/ctxlog"
	"github.com/vk/pagecost/internal/dag"
)

// DefaultMaxConnectionsPerKey matches the per-origin connection limit of
// common browsers.
const DefaultMaxConnectionsPerKey = 6

const computeKey = "cpu"

var (
	// ErrUnknownTarget is returned when Policy.TargetID names no node.
	ErrUnknownTarget = errors.New("unknown target node")
	// ErrNilGraph is returned when Run is given no graph.
	ErrNilGraph = errors.New("nil graph")
)

// Policy controls contention during a run.
type Policy struct {
	// MaxConnectionsPerKey caps concurrent network nodes per affinity key.
	// Zero or less means DefaultMaxConnectionsPerKey.
	MaxConnectionsPerKey int
	// TargetID, when set, makes the completion time that node's end time
	// instead of the end of the whole graph.
	TargetID string
}

// Timing is the simulated start and end of one node, relative to the start
// of the page load.
type Timing struct {
	Start time.Duration
	End   time.Duration
}

// Duration returns End - Start.
func (t Timing) Duration() time.Duration { return t.End - t.Start }

// Result is the outcome of one simulation.
type Result struct {
	Timings    map[string]Timing
	Completion time.Duration
	// Target is the node whose end defined Completion, empty for the whole graph.
	Target string
}

// Observer receives a sample for every finished run.
type Observer interface {
	ObserveSimulation(nodes int, completion, elapsed time.Duration)
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithObserver attaches an observer, typically the metrics collector.
func WithObserver(o Observer) Option {
	return func(s *Simulator) { s.observer = o }
}

// Simulator runs contention simulations. It holds no per-run state and is
// safe for concurrent use.
type Simulator struct {
	policy   Policy
	observer Observer
}

// New creates a Simulator for the given policy.
func New(policy Policy, opts ...Option) *Simulator {
	if policy.MaxConnectionsPerKey <= 0 {
		policy.MaxConnectionsPerKey = DefaultMaxConnectionsPerKey
	}
	s := &Simulator{policy: policy}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the effective policy.
func (s *Simulator) Policy() Policy { return s.policy }

// WithTarget returns a copy of the simulator that reports the completion of
// the given node.
func (s *Simulator) WithTarget(id string) *Simulator {
	clone := *s
	clone.policy.TargetID = id
	return &clone
}

// run holds the mutable state of a single simulation.
type run struct {
	graph     *dag.Graph
	tasks     map[string]*task
	remaining map[string]int
	pools     map[string]*pool
	poolOrder []*pool
	running   runQueue
	timings   map[string]Timing
	finished  int
}

// Run simulates the graph and returns the timing of every node.
func (s *Simulator) Run(ctx context.Context, g *dag.Graph) (*Result, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	logger := ctxlog.FromContext(ctx)
	wallStart := time.Now()

	if s.policy.TargetID != "" {
		if _, ok := g.Node(s.policy.TargetID); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, s.policy.TargetID)
		}
	}

	nodes, err := g.TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("cannot simulate graph: %w", err)
	}

	r := &run{
		graph:     g,
		tasks:     make(map[string]*task, len(nodes)),
		remaining: make(map[string]int, len(nodes)),
		pools:     make(map[string]*pool),
		timings:   make(map[string]Timing, len(nodes)),
	}
	for _, n := range nodes {
		if err := r.add(n, s.policy.MaxConnectionsPerKey); err != nil {
			return nil, err
		}
	}

	var now time.Duration
	for r.finished < len(nodes) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r.startReady(now)
		if r.running.Len() == 0 {
			return nil, fmt.Errorf("simulation stalled with %d of %d nodes finished", r.finished, len(nodes))
		}

		next := heap.Pop(&r.running).(*task)
		now = next.end
		if err := r.finish(next); err != nil {
			return nil, err
		}
		for r.running.Len() > 0 && r.running[0].end == now {
			if err := r.finish(heap.Pop(&r.running).(*task)); err != nil {
				return nil, err
			}
		}
	}

	res := &Result{Timings: r.timings, Target: s.policy.TargetID}
	if res.Target != "" {
		res.Completion = r.timings[res.Target].End
	} else {
		for _, t := range r.timings {
			res.Completion = max(res.Completion, t.End)
		}
	}

	elapsed := time.Since(wallStart)
	if s.observer != nil {
		s.observer.ObserveSimulation(len(nodes), res.Completion, elapsed)
	}
	logger.Debug("Simulation complete.", "nodes", len(nodes), "completion", res.Completion, "target", res.Target, "elapsed", elapsed)
	return res, nil
}

func (r *run) add(n dag.Node, maxConns int) error {
	info := n.Info()
	deps, err := r.graph.Dependencies(info.ID)
	if err != nil {
		return err
	}

	key, capacity := slotKey(n, maxConns)
	p, ok := r.pools[key]
	if !ok {
		p = &pool{key: key, capacity: capacity}
		r.pools[key] = p
		r.poolOrder = append(r.poolOrder, p)
	}

	t := &task{
		id:       info.ID,
		key:      key,
		order:    info.Order,
		duration: max(info.Duration, 0),
	}
	r.tasks[info.ID] = t
	r.remaining[info.ID] = len(deps)
	if len(deps) == 0 {
		p.push(t)
	}
	return nil
}

// slotKey returns the pool a node competes in and that pool's capacity.
func slotKey(n dag.Node, maxConns int) (string, int) {
	switch node := n.(type) {
	case dag.NetworkNode:
		if node.AffinityKey == "" {
			// Nothing to contend with.
			return "net:" + node.ID, 1
		}
		return "net:" + node.AffinityKey, maxConns
	case dag.ComputeNode:
		return computeKey, 1
	default:
		panic(fmt.Sprintf("simulator: unhandled node type %T", n))
	}
}

// startReady fills every free slot with the best waiting task.
func (r *run) startReady(now time.Duration) {
	for _, p := range r.poolOrder {
		for {
			t, ok := p.take()
			if !ok {
				break
			}
			t.end = now + t.duration
			r.timings[t.id] = Timing{Start: now}
			heap.Push(&r.running, t)
		}
	}
}

// finish releases the task's slot and makes dependents eligible once all of
// their dependencies are done.
func (r *run) finish(t *task) error {
	r.pools[t.key].running--
	timing := r.timings[t.id]
	timing.End = t.end
	r.timings[t.id] = timing
	r.finished++

	dependents, err := r.graph.Dependents(t.id)
	if err != nil {
		return err
	}
	for _, id := range dependents {
		next := r.tasks[id]
		next.eligibleAt = max(next.eligibleAt, t.end)
		r.remaining[id]--
		if r.remaining[id] == 0 {
			r.pools[next.key].push(next)
		}
	}
	return nil
}

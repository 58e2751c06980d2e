package savings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vk/pagecost/internal/ctxlog"
	"github.com/vk/pagecost/internal/dag"
	"github.com/vk/pagecost/internal/simulator"
)

var (
	// ErrUnknownNode is returned for an override whose node is not in the graph.
	ErrUnknownNode = errors.New("override references unknown node")
	// ErrNoByteTotal is returned when neither the override nor the node
	// gives a byte total to scale against.
	ErrNoByteTotal = errors.New("override has no byte total")
)

// Override says that WastedBytes of a node's bytes could be removed.
type Override struct {
	NodeID      string
	WastedBytes int64
	// TotalBytes is the size the waste is measured against. Zero means the
	// network node's transfer size.
	TotalBytes int64
}

// Estimate compares the baseline and the what-if scenario.
type Estimate struct {
	Baseline time.Duration
	Scenario time.Duration
	// Delta is Baseline - Scenario, never negative.
	Delta time.Duration
}

// Estimator runs what-if simulations.
type Estimator struct {
	sim *simulator.Simulator
}

// NewEstimator returns an Estimator that simulates with sim.
func NewEstimator(sim *simulator.Simulator) *Estimator {
	return &Estimator{sim: sim}
}

// Estimate simulates g as recorded and with every override applied, and
// returns both completion times.
func (e *Estimator) Estimate(ctx context.Context, g *dag.Graph, overrides []Override) (*Estimate, error) {
	baseline, err := e.sim.Run(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("baseline simulation failed: %w", err)
	}
	return e.EstimateFrom(ctx, g, baseline, overrides)
}

// EstimateFrom is Estimate with a baseline result that was already computed
// for g, typically taken from the artifact cache.
func (e *Estimator) EstimateFrom(ctx context.Context, g *dag.Graph, baseline *simulator.Result, overrides []Override) (*Estimate, error) {
	if g == nil {
		return nil, simulator.ErrNilGraph
	}
	if baseline == nil {
		return e.Estimate(ctx, g, overrides)
	}

	scenarioGraph, err := Apply(g, overrides)
	if err != nil {
		return nil, err
	}
	scenario, err := e.sim.Run(ctx, scenarioGraph)
	if err != nil {
		return nil, fmt.Errorf("scenario simulation failed: %w", err)
	}

	est := &Estimate{
		Baseline: baseline.Completion,
		Scenario: scenario.Completion,
		Delta:    max(baseline.Completion-scenario.Completion, 0),
	}
	ctxlog.FromContext(ctx).Debug("Savings estimated.",
		"overrides", len(overrides), "baseline", est.Baseline, "scenario", est.Scenario, "delta", est.Delta)
	return est, nil
}

// reduction is the combined waste for one node.
type reduction struct {
	wasted int64
	total  int64
}

// Apply returns a clone of g with each overridden node's duration scaled by
// the fraction of its bytes that remain. Overrides on the same node add up;
// when several give a TotalBytes the largest is used.
func Apply(g *dag.Graph, overrides []Override) (*dag.Graph, error) {
	reductions := make(map[string]*reduction, len(overrides))
	for _, o := range overrides {
		n, ok := g.Node(o.NodeID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNode, o.NodeID)
		}

		r, ok := reductions[o.NodeID]
		if !ok {
			r = &reduction{}
			reductions[o.NodeID] = r
		}
		r.wasted += o.WastedBytes
		total := o.TotalBytes
		if total <= 0 {
			if fetch, isFetch := n.(dag.NetworkNode); isFetch {
				total = fetch.TransferSize
			}
		}
		r.total = max(r.total, total)
	}
	for id, r := range reductions {
		if r.total <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoByteTotal, id)
		}
	}

	return g.Clone(func(n dag.Node) dag.Node {
		r, ok := reductions[n.Info().ID]
		if !ok {
			return n
		}
		return n.WithDuration(ScaleDuration(n.Info().Duration, r.wasted, r.total))
	})
}

// ScaleDuration returns d × (1 − wasted/total) with wasted clamped to
// [0, total]. Removing every byte gives zero.
func ScaleDuration(d time.Duration, wasted, total int64) time.Duration {
	if total <= 0 {
		return d
	}
	wasted = min(max(wasted, 0), total)
	if wasted == total {
		return 0
	}
	remaining := 1 - float64(wasted)/float64(total)
	return time.Duration(float64(d) * remaining)
}

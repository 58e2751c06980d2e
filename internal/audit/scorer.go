package audit

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/vk/pagecost/internal/ctxlog"
	"github.com/vk/pagecost/internal/dag"
	"github.com/vk/pagecost/internal/savings"
	"github.com/vk/pagecost/internal/simulator"
)

// ErrInvalidGraph is returned when a result is requested without a graph.
var ErrInvalidGraph = errors.New("invalid dependency graph")

// Scorer builds audit results.
type Scorer struct {
	estimator *savings.Estimator
	curve     Curve
}

// NewScorer returns a Scorer that estimates savings with est and scores
// them on curve.
func NewScorer(est *savings.Estimator, curve Curve) *Scorer {
	if !curve.valid() {
		curve = DefaultCurve()
	}
	return &Scorer{estimator: est, curve: curve}
}

// CreateResult scores cfg's items against graph.
func (s *Scorer) CreateResult(ctx context.Context, cfg Config, graph *dag.Graph) (*Result, error) {
	return s.CreateResultFrom(ctx, cfg, graph, nil)
}

// CreateResultFrom is CreateResult with a precomputed baseline simulation of
// graph. A nil baseline is simulated on demand.
func (s *Scorer) CreateResultFrom(ctx context.Context, cfg Config, graph *dag.Graph, baseline *simulator.Result) (*Result, error) {
	if graph == nil {
		return nil, ErrInvalidGraph
	}
	logger := ctxlog.FromContext(ctx)

	items := make([]Item, len(cfg.Results))
	copy(items, cfg.Results)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].WastedBytes > items[j].WastedBytes
	})

	var totalWasted int64
	for i := range items {
		item := &items[i]
		item.WastedPercent = WastedPercent(item.WastedBytes, item.TotalBytes)
		item.WastedKb = FormatKB(item.WastedBytes)
		item.TotalKb = FormatKB(item.TotalBytes)
		item.PotentialSavings = PotentialSavings(item.WastedBytes, item.TotalBytes)
		totalWasted += item.WastedBytes
	}

	overrides, unmatched := overridesFor(graph, items)
	if unmatched > 0 {
		logger.Debug("Some items did not match a graph node.", "audit", cfg.ID, "unmatched", unmatched)
	}

	var rawValue float64
	if len(overrides) > 0 {
		est, err := s.estimator.EstimateFrom(ctx, graph, baseline, overrides)
		if err != nil {
			return nil, fmt.Errorf("failed to estimate savings: %w", err)
		}
		rawValue = roundTo10Ms(est.Delta)
	}

	displayValue := cfg.DisplayValue
	if displayValue == "" && totalWasted > 0 {
		displayValue = fmt.Sprintf("Potential savings of %s (~%s)", FormatKB(totalWasted), FormatMs(rawValue))
	}

	return &Result{
		ID:           cfg.ID,
		Title:        cfg.Title,
		Headings:     cfg.Headings,
		Results:      items,
		RawValue:     rawValue,
		Score:        s.curve.Score(rawValue),
		DisplayValue: displayValue,
		ExtendedInfo: ExtendedInfo{
			WastedMs: rawValue,
			WastedKb: roundKB(totalWasted),
			Results:  items,
		},
	}, nil
}

// overridesFor maps items onto graph nodes: by NodeID when set, otherwise
// onto every network node fetched from the item's URL. Nodes without a byte
// size to scale against are not matched.
func overridesFor(graph *dag.Graph, items []Item) ([]savings.Override, int) {
	byURL := map[string][]string{}
	for _, n := range graph.Nodes() {
		if fetch, ok := n.(dag.NetworkNode); ok && fetch.TransferSize > 0 {
			byURL[fetch.URL] = append(byURL[fetch.URL], fetch.ID)
		}
	}

	var overrides []savings.Override
	unmatched := 0
	for _, item := range items {
		if item.WastedBytes <= 0 {
			continue
		}
		if item.NodeID != "" {
			n, ok := graph.Node(item.NodeID)
			if !ok {
				unmatched++
				continue
			}
			o := savings.Override{NodeID: item.NodeID, WastedBytes: item.WastedBytes}
			if fetch, ok := n.(dag.NetworkNode); !ok || fetch.TransferSize <= 0 {
				if item.TotalBytes <= 0 {
					unmatched++
					continue
				}
				o.TotalBytes = item.TotalBytes
			}
			overrides = append(overrides, o)
			continue
		}

		ids := byURL[item.URL]
		if item.URL == "" || len(ids) == 0 {
			unmatched++
			continue
		}
		for _, id := range ids {
			overrides = append(overrides, savings.Override{NodeID: id, WastedBytes: item.WastedBytes})
		}
	}
	return overrides, unmatched
}

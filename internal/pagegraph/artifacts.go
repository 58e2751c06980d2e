package pagegraph

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/vk/pagecost/internal/artifacts"
	"github.com/vk/pagecost/internal/dag"
	"github.com/vk/pagecost/internal/recording"
	"github.com/vk/pagecost/internal/simulator"
)

// Names of the standard artifacts. Each is resolved with the
// *recording.Recording as its only input.
const (
	NetworkRecordsArtifact  = "network-records"
	MainThreadTasksArtifact = "main-thread-tasks"
	PageGraphArtifact       = "page-dependency-graph"
	BaselineArtifact        = "baseline-simulation"
)

var errNoRecording = errors.New("artifact input must be a recording")

// Definitions returns the standard artifact definitions.
func Definitions(opts Options, sim *simulator.Simulator) []artifacts.Definition {
	return []artifacts.Definition{
		{
			Name: NetworkRecordsArtifact,
			Compute: func(ctx context.Context, _ artifacts.Resolver, inputs []artifacts.Input) (any, error) {
				rec, err := recordingFrom(inputs)
				if err != nil {
					return nil, err
				}
				records := slices.Clone(rec.Records)
				slices.SortStableFunc(records, func(a, b *recording.NetworkRecord) int {
					switch {
					case a.StartTime < b.StartTime:
						return -1
					case a.StartTime > b.StartTime:
						return 1
					default:
						return 0
					}
				})
				return records, nil
			},
		},
		{
			Name: MainThreadTasksArtifact,
			Compute: func(ctx context.Context, _ artifacts.Resolver, inputs []artifacts.Input) (any, error) {
				rec, err := recordingFrom(inputs)
				if err != nil {
					return nil, err
				}
				return rec.Trace.MainThreadTasks(opts.withDefaults().MinTaskDuration), nil
			},
		},
		{
			Name:     PageGraphArtifact,
			Requires: []string{NetworkRecordsArtifact, MainThreadTasksArtifact},
			Compute: func(ctx context.Context, r artifacts.Resolver, inputs []artifacts.Input) (any, error) {
				records, err := artifacts.ResolveAs[[]*recording.NetworkRecord](ctx, r, NetworkRecordsArtifact, inputs...)
				if err != nil {
					return nil, err
				}
				tasks, err := artifacts.ResolveAs[[]recording.Task](ctx, r, MainThreadTasksArtifact, inputs...)
				if err != nil {
					return nil, err
				}
				return Build(records, tasks, opts)
			},
		},
		{
			Name:     BaselineArtifact,
			Requires: []string{PageGraphArtifact},
			Compute: func(ctx context.Context, r artifacts.Resolver, inputs []artifacts.Input) (any, error) {
				g, err := artifacts.ResolveAs[*dag.Graph](ctx, r, PageGraphArtifact, inputs...)
				if err != nil {
					return nil, err
				}
				return sim.Run(ctx, g)
			},
		},
	}
}

func recordingFrom(inputs []artifacts.Input) (*recording.Recording, error) {
	if len(inputs) == 0 {
		return nil, errNoRecording
	}
	rec, ok := inputs[0].(*recording.Recording)
	if !ok || rec == nil {
		return nil, fmt.Errorf("%w, got %T", errNoRecording, inputs[0])
	}
	return rec, nil
}

// Graph resolves the page dependency graph of rec.
func Graph(ctx context.Context, r artifacts.Resolver, rec *recording.Recording) (*dag.Graph, error) {
	return artifacts.ResolveAs[*dag.Graph](ctx, r, PageGraphArtifact, rec)
}

// Baseline resolves the baseline simulation of rec's graph.
func Baseline(ctx context.Context, r artifacts.Resolver, rec *recording.Recording) (*simulator.Result, error) {
	return artifacts.ResolveAs[*simulator.Result](ctx, r, BaselineArtifact, rec)
}

// Records resolves rec's network records in start order.
func Records(ctx context.Context, r artifacts.Resolver, rec *recording.Recording) ([]*recording.NetworkRecord, error) {
	return artifacts.ResolveAs[[]*recording.NetworkRecord](ctx, r, NetworkRecordsArtifact, rec)
}

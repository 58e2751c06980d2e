package audit

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vk/pagecost/internal/artifacts"
	"github.com/vk/pagecost/internal/ctxlog"
	"github.com/vk/pagecost/internal/dag"
	"github.com/vk/pagecost/internal/pagegraph"
	"github.com/vk/pagecost/internal/recording"
	"github.com/vk/pagecost/internal/simulator"
)

// Input is everything an audit may look at.
type Input struct {
	Recording *recording.Recording
	Graph     *dag.Graph
	Baseline  *simulator.Result
	// Artifacts resolves shared derived data.
	Artifacts artifacts.Resolver
	Scorer    *Scorer
}

// Audit inspects one recording.
type Audit interface {
	ID() string
	Title() string
	Audit(ctx context.Context, in *Input) (*Result, error)
}

// Observer receives one sample per finished audit.
type Observer interface {
	ObserveAudit(id string, score int, failed bool, d time.Duration)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithAuditObserver attaches an observer, typically the metrics collector.
func WithAuditObserver(o Observer) RunnerOption {
	return func(r *Runner) { r.observer = o }
}

// Runner executes audits concurrently against one recording.
type Runner struct {
	cache    *artifacts.Cache
	scorer   *Scorer
	workers  int
	observer Observer
}

// NewRunner returns a Runner that resolves shared artifacts through cache.
// workers bounds how many audits run at once; zero or less means one per CPU.
func NewRunner(cache *artifacts.Cache, scorer *Scorer, workers int, opts ...RunnerOption) *Runner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	r := &Runner{cache: cache, scorer: scorer, workers: workers}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every audit and returns their results in the order given.
// An audit that fails, panics, or cannot get the page graph yields a
// degraded result; the other audits are unaffected. The returned error is
// only set when ctx ends before all audits finished.
func (r *Runner) Run(ctx context.Context, rec *recording.Recording, audits []Audit) ([]*Result, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Info("▶️ Running audits.", "count", len(audits), "workers", r.workers)

	in := &Input{Recording: rec, Artifacts: r.cache, Scorer: r.scorer}
	var setupErr error
	if rec == nil {
		setupErr = fmt.Errorf("no recording")
	} else if g, err := pagegraph.Graph(ctx, r.cache, rec); err != nil {
		setupErr = fmt.Errorf("page dependency graph unavailable: %w", err)
	} else if baseline, err := pagegraph.Baseline(ctx, r.cache, rec); err != nil {
		setupErr = fmt.Errorf("baseline simulation unavailable: %w", err)
	} else {
		in.Graph, in.Baseline = g, baseline
	}
	if setupErr != nil {
		logger.Error("Audits cannot use the page graph.", "error", setupErr)
	}

	results := make([]*Result, len(audits))
	var eg errgroup.Group
	eg.SetLimit(r.workers)
	for i, a := range audits {
		eg.Go(func() error {
			results[i] = r.runOne(ctx, a, in, setupErr)
			return nil
		})
	}
	_ = eg.Wait()

	failed := 0
	for _, res := range results {
		if res.Failed {
			failed++
		}
	}
	logger.Info("✅ Audits finished.", "count", len(audits), "failed", failed)
	return results, ctx.Err()
}

func (r *Runner) runOne(ctx context.Context, a Audit, in *Input, setupErr error) (res *Result) {
	start := time.Now()
	ctx = ctxlog.With(ctx, "audit", a.ID())
	logger := ctxlog.FromContext(ctx)

	defer func() {
		if p := recover(); p != nil {
			logger.Error("Audit panicked.", "panic", p)
			res = degraded(a, fmt.Errorf("panic: %v", p))
		}
		if r.observer != nil {
			r.observer.ObserveAudit(a.ID(), res.Score, res.Failed, time.Since(start))
		}
	}()

	if setupErr != nil {
		return degraded(a, setupErr)
	}
	if err := ctx.Err(); err != nil {
		return degraded(a, err)
	}

	logger.Debug("Audit started.")
	res, err := a.Audit(ctx, in)
	if err == nil && res == nil {
		err = fmt.Errorf("audit returned no result")
	}
	if err != nil {
		logger.Warn("Audit failed.", "error", err)
		return degraded(a, err)
	}
	if res.ID == "" {
		res.ID = a.ID()
	}
	if res.Title == "" {
		res.Title = a.Title()
	}
	logger.Debug("Audit finished.", "score", res.Score, "rawValue", res.RawValue)
	return res
}

func degraded(a Audit, err error) *Result {
	return &Result{
		ID:          a.ID(),
		Title:       a.Title(),
		Results:     []Item{},
		Score:       0,
		DebugString: fmt.Sprintf("Audit error: %v", err),
		Failed:      true,
		ExtendedInfo: ExtendedInfo{
			Results: []Item{},
		},
	}
}

package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/pagecost/internal/ctxlog"
)

// Resolver resolves artifacts. Compute functions receive one so they can
// depend on other artifacts.
type Resolver interface {
	Resolve(ctx context.Context, name string, inputs ...Input) (any, error)
}

// ComputeFunc derives an artifact value from the inputs it was resolved with.
type ComputeFunc func(ctx context.Context, r Resolver, inputs []Input) (any, error)

// Definition describes a named artifact.
type Definition struct {
	Name string
	// Requires lists the artifacts Compute resolves. It is checked for
	// cycles before anything is computed.
	Requires []string
	Compute  ComputeFunc
}

// Outcome labels an observed resolution.
type Outcome string

const (
	OutcomeComputed Outcome = "computed"
	OutcomeFailed   Outcome = "failed"
	OutcomeHit      Outcome = "hit"
)

// Observer receives one sample per Resolve call.
type Observer interface {
	ObserveArtifact(name string, outcome Outcome, d time.Duration)
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Entries      int
	Computations int64
	Hits         int64
	// SharedWaits counts hits that had to wait for an in-flight computation.
	SharedWaits int64
	// Callers counts Resolve calls answered by an entry, including the one
	// that computed it.
	Callers int64
}

type entryKey struct {
	name        string
	fingerprint uint64
}

// entry is a shared future. done is closed once value or err is set; both
// are read-only afterwards.
type entry struct {
	done    chan struct{}
	value   any
	err     error
	callers atomic.Int64
}

func (e *entry) resolved() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Option configures a Cache.
type Option func(*Cache)

// WithObserver attaches an observer, typically the metrics collector.
func WithObserver(o Observer) Option {
	return func(c *Cache) { c.observer = o }
}

// Cache is the per-run artifact store. It is safe for concurrent use.
type Cache struct {
	// mutex guards defs, entries and closed. It is never held while a
	// compute function runs.
	mutex   sync.Mutex
	defs    map[string]Definition
	entries map[entryKey]*entry
	closed  bool

	computations atomic.Int64
	hits         atomic.Int64
	sharedWaits  atomic.Int64

	observer Observer
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		defs:    make(map[string]Definition),
		entries: make(map[entryKey]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds an artifact definition.
func (c *Cache) Register(def Definition) error {
	if def.Name == "" {
		return errors.New("artifact name must not be empty")
	}
	if def.Compute == nil {
		return fmt.Errorf("artifact '%s' has no compute function", def.Name)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return ErrCacheClosed
	}
	if _, ok := c.defs[def.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateArtifact, def.Name)
	}
	def.Requires = slices.Clone(def.Requires)
	c.defs[def.Name] = def
	return nil
}

// Names returns the registered artifact names, sorted.
func (c *Cache) Names() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// pathKey carries the names being resolved on the current call chain.
type pathKey struct{}

func resolutionPath(ctx context.Context) []string {
	path, _ := ctx.Value(pathKey{}).([]string)
	return path
}

// Resolve returns the artifact value for name and inputs, computing it if
// this is the first request for that key. Callers that arrive while the
// value is being computed wait for the same result. A failed computation is
// returned to every caller as a *ComputationError and is not retried.
func (c *Cache) Resolve(ctx context.Context, name string, inputs ...Input) (any, error) {
	start := time.Now()
	path := resolutionPath(ctx)
	if slices.Contains(path, name) {
		return nil, fmt.Errorf("%w: %s", ErrCyclicArtifactDependency, formatCycle(append(slices.Clone(path), name)))
	}

	key := entryKey{name: name, fingerprint: Fingerprint(inputs...)}

	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return nil, ErrCacheClosed
	}
	def, ok := c.defs[name]
	if !ok {
		c.mutex.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownArtifact, name)
	}
	if e, ok := c.entries[key]; ok {
		c.mutex.Unlock()
		return c.wait(ctx, name, e, start)
	}
	if err := c.checkRequires(name); err != nil {
		c.mutex.Unlock()
		return nil, err
	}
	e := &entry{done: make(chan struct{})}
	e.callers.Add(1)
	c.entries[key] = e
	c.mutex.Unlock()

	c.compute(ctx, def, e, path, inputs)

	outcome := OutcomeComputed
	if e.err != nil {
		outcome = OutcomeFailed
	}
	c.observe(name, outcome, time.Since(start))
	return e.value, e.err
}

// compute runs the definition and completes the entry. Cancelling the first
// caller's context does not cancel the computation.
func (c *Cache) compute(ctx context.Context, def Definition, e *entry, path []string, inputs []Input) {
	logger := ctxlog.FromContext(ctx)
	c.computations.Add(1)

	computeCtx := context.WithValue(context.WithoutCancel(ctx), pathKey{}, append(slices.Clone(path), def.Name))
	defer close(e.done)
	defer func() {
		if r := recover(); r != nil {
			e.value = nil
			e.err = &ComputationError{Name: def.Name, Err: fmt.Errorf("panic: %v", r)}
			logger.Error("Artifact computation panicked.", "artifact", def.Name, "panic", r)
		}
	}()

	value, err := def.Compute(computeCtx, c, inputs)
	if err != nil {
		var compErr *ComputationError
		if !errors.As(err, &compErr) || compErr.Name != def.Name {
			err = &ComputationError{Name: def.Name, Err: err}
		}
		e.err = err
		logger.Debug("Artifact computation failed.", "artifact", def.Name, "error", err)
		return
	}
	e.value = value
	logger.Debug("Artifact computed.", "artifact", def.Name)
}

func (c *Cache) wait(ctx context.Context, name string, e *entry, start time.Time) (any, error) {
	e.callers.Add(1)
	c.hits.Add(1)
	if !e.resolved() {
		c.sharedWaits.Add(1)
		select {
		case <-e.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c.observe(name, OutcomeHit, time.Since(start))
	return e.value, e.err
}

func (c *Cache) observe(name string, outcome Outcome, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveArtifact(name, outcome, d)
	}
}

// checkRequires walks the declared requirements of name depth-first.
// Callers must hold the mutex.
func (c *Cache) checkRequires(name string) error {
	permanent := make(map[string]bool)
	var stack []string

	var visit func(n string) error
	visit = func(n string) error {
		if permanent[n] {
			return nil
		}
		if i := slices.Index(stack, n); i >= 0 {
			return fmt.Errorf("%w: %s", ErrCyclicArtifactDependency, formatCycle(append(slices.Clone(stack[i:]), n)))
		}
		def, ok := c.defs[n]
		if !ok {
			return fmt.Errorf("%w: %s (required by '%s')", ErrUnknownArtifact, n, stack[len(stack)-1])
		}

		stack = append(stack, n)
		for _, req := range def.Requires {
			if err := visit(req); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		permanent[n] = true
		return nil
	}
	return visit(name)
}

func formatCycle(path []string) string {
	return strings.Join(path, " -> ")
}

// Stats returns a snapshot of cache activity.
func (c *Cache) Stats() Stats {
	c.mutex.Lock()
	entries := len(c.entries)
	var callers int64
	for _, e := range c.entries {
		callers += e.callers.Load()
	}
	c.mutex.Unlock()

	return Stats{
		Entries:      entries,
		Computations: c.computations.Load(),
		Hits:         c.hits.Load(),
		SharedWaits:  c.sharedWaits.Load(),
		Callers:      callers,
	}
}

// Close ends the run. Resolved values that implement io.Closer are closed
// and every entry is dropped. Entries still being computed are left to
// their callers. Later calls to Resolve return ErrCacheClosed.
func (c *Cache) Close() error {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return nil
	}
	c.closed = true
	entries := c.entries
	c.entries = make(map[entryKey]*entry)
	c.mutex.Unlock()

	var errs []error
	for key, e := range entries {
		if !e.resolved() || e.err != nil {
			continue
		}
		if closer, ok := e.value.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing artifact '%s': %w", key.name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// ResolveAs resolves an artifact and asserts its type.
func ResolveAs[T any](ctx context.Context, r Resolver, name string, inputs ...Input) (T, error) {
	var zero T
	v, err := r.Resolve(ctx, name, inputs...)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("artifact '%s' has type %T, want %T", name, v, zero)
	}
	return typed, nil
}

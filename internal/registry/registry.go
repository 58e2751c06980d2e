package registry

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/vk/pagecost/internal/artifacts"
	"github.com/vk/pagecost/internal/audit"
	"github.com/vk/pagecost/internal/config"
	"github.com/vk/pagecost/internal/ctxlog"
)

// Module is the interface that all modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Configurable is implemented by audits that accept options from an
// `audit` block.
type Configurable interface {
	Configure(ctx context.Context, conv config.Converter, opts map[string]hcl.Expression) error
}

// Definitions registers a fixed set of artifact definitions.
type Definitions []artifacts.Definition

// Register implements Module.
func (d Definitions) Register(r *Registry) {
	for _, def := range d {
		r.RegisterArtifact(def)
	}
}

// Registry holds the audits and artifact definitions of a single
// application instance, in registration order.
type Registry struct {
	audits    *orderedmap.OrderedMap[string, audit.Audit]
	artifacts *orderedmap.OrderedMap[string, artifacts.Definition]
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		audits:    orderedmap.New[string, audit.Audit](),
		artifacts: orderedmap.New[string, artifacts.Definition](),
	}
}

// RegisterAudit registers an audit under its id.
func (r *Registry) RegisterAudit(a audit.Audit) {
	if _, exists := r.audits.Get(a.ID()); exists {
		panic(fmt.Sprintf("audit with id '%s' already registered", a.ID()))
	}
	slog.Debug("Registering audit.", "id", a.ID())
	r.audits.Set(a.ID(), a)
}

// RegisterArtifact registers an artifact definition under its name.
func (r *Registry) RegisterArtifact(def artifacts.Definition) {
	if _, exists := r.artifacts.Get(def.Name); exists {
		panic(fmt.Sprintf("artifact with name '%s' already registered", def.Name))
	}
	slog.Debug("Registering artifact.", "name", def.Name, "requires", def.Requires)
	r.artifacts.Set(def.Name, def)
}

// Audit returns the audit registered under id.
func (r *Registry) Audit(id string) (audit.Audit, bool) {
	return r.audits.Get(id)
}

// Audits returns every registered audit in registration order.
func (r *Registry) Audits() []audit.Audit {
	out := make([]audit.Audit, 0, r.audits.Len())
	for pair := r.audits.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Enabled returns the audits model leaves enabled, in registration order.
func (r *Registry) Enabled(model *config.Model) []audit.Audit {
	var out []audit.Audit
	for pair := r.audits.Oldest(); pair != nil; pair = pair.Next() {
		if model == nil || model.AuditEnabled(pair.Key) {
			out = append(out, pair.Value)
		}
	}
	return out
}

// ArtifactNames returns the registered artifact names in registration order.
func (r *Registry) ArtifactNames() []string {
	out := make([]string, 0, r.artifacts.Len())
	for pair := r.artifacts.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Install registers every artifact definition with c.
func (r *Registry) Install(c *artifacts.Cache) error {
	for pair := r.artifacts.Oldest(); pair != nil; pair = pair.Next() {
		if err := c.Register(pair.Value); err != nil {
			return fmt.Errorf("failed to install artifact '%s': %w", pair.Key, err)
		}
	}
	return nil
}

// Configure checks model against the registered audits and hands each
// configurable audit its options. Every problem is reported at once.
func (r *Registry) Configure(ctx context.Context, model *config.Model, conv config.Converter) error {
	if model == nil {
		return nil
	}
	logger := ctxlog.FromContext(ctx)
	var errs []string

	ids := make([]string, 0, len(model.Audits))
	for id := range model.Audits {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		cfg := model.Audits[id]
		a, ok := r.audits.Get(id)
		if !ok {
			errs = append(errs, fmt.Sprintf("audit '%s' is configured but not registered", id))
			continue
		}
		if len(cfg.Options) == 0 {
			continue
		}
		c, ok := a.(Configurable)
		if !ok {
			errs = append(errs, fmt.Sprintf("audit '%s' does not accept options", id))
			continue
		}
		if err := c.Configure(ctx, conv, cfg.Options); err != nil {
			errs = append(errs, fmt.Sprintf("audit '%s': %v", id, err))
			continue
		}
		logger.Debug("Configured audit.", "id", id, "options", len(cfg.Options))
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

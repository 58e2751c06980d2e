// Package removable audits resources that could be dropped from the page
// altogether, such as third-party trackers. Every fetch whose URL contains
// one of the configured patterns is counted as fully wasted.
package removable

import (
	"context"
	"errors"
	"strings"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/pagecost/internal/audit"
	"github.com/vk/pagecost/internal/config"
	"github.com/vk/pagecost/internal/ctxlog"
	"github.com/vk/pagecost/internal/pagegraph"
	"github.com/vk/pagecost/internal/registry"
)

// ID identifies the audit in configuration and results.
const ID = "removable-resources"

// DefaultPatterns are well-known analytics and advertising hosts.
var DefaultPatterns = []string{
	"google-analytics.com",
	"googletagmanager.com",
	"doubleclick.net",
	"connect.facebook.net",
	"hotjar.com",
}

// Options are read from the audit's `options` block.
type Options struct {
	Patterns []string `cfg:"patterns"`
	// ResourceTypes limits matches to these types when set.
	ResourceTypes []string `cfg:"resource_types"`
}

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the audit with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAudit(New(Options{Patterns: DefaultPatterns}))
}

// Audit flags fetches matching a URL pattern.
type Audit struct {
	opts Options
}

// New returns the audit with the given options.
func New(opts Options) *Audit {
	return &Audit{opts: opts}
}

// ID implements audit.Audit.
func (a *Audit) ID() string { return ID }

// Title implements audit.Audit.
func (a *Audit) Title() string { return "Remove unneeded third-party resources" }

// Options returns the current options.
func (a *Audit) Options() Options { return a.opts }

// Configure implements registry.Configurable.
func (a *Audit) Configure(ctx context.Context, conv config.Converter, opts map[string]hcl.Expression) error {
	next := a.opts
	if err := conv.DecodeOptions(ctx, &next, opts); err != nil {
		return err
	}
	for _, p := range next.Patterns {
		if strings.TrimSpace(p) == "" {
			return errors.New("patterns must not be empty strings")
		}
	}
	a.opts = next
	return nil
}

// Audit implements audit.Audit.
func (a *Audit) Audit(ctx context.Context, in *audit.Input) (*audit.Result, error) {
	logger := ctxlog.FromContext(ctx)

	records, err := pagegraph.Records(ctx, in.Artifacts, in.Recording)
	if err != nil {
		return nil, err
	}
	rootID := in.Graph.Root().Info().ID

	var items []audit.Item
	for _, rec := range records {
		nodeID := pagegraph.NetworkNodeID(rec.RequestID)
		if nodeID == rootID || rec.TransferSize <= 0 || !a.typeAllowed(rec.ResourceType) {
			continue
		}
		pattern, ok := a.match(rec.URL)
		if !ok {
			continue
		}
		items = append(items, audit.Item{
			URL:         rec.URL,
			Label:       pattern,
			NodeID:      nodeID,
			WastedBytes: rec.TransferSize,
			TotalBytes:  rec.TransferSize,
		})
	}
	logger.Debug("Removable resources found.", "patterns", len(a.opts.Patterns), "flagged", len(items))

	return in.Scorer.CreateResultFrom(ctx, audit.Config{
		ID:    a.ID(),
		Title: a.Title(),
		Headings: []audit.Heading{
			{Key: "url", ItemType: "url", Text: "URL"},
			{Key: "label", ItemType: "text", Text: "Matched"},
			{Key: "totalKb", ItemType: "text", Text: "Size"},
		},
		Results: items,
	}, in.Graph, in.Baseline)
}

func (a *Audit) match(url string) (string, bool) {
	for _, p := range a.opts.Patterns {
		if strings.Contains(url, p) {
			return p, true
		}
	}
	return "", false
}

func (a *Audit) typeAllowed(resourceType string) bool {
	if len(a.opts.ResourceTypes) == 0 {
		return true
	}
	for _, t := range a.opts.ResourceTypes {
		if strings.EqualFold(t, resourceType) {
			return true
		}
	}
	return false
}

// Package textcompression audits text resources served without compression.
//
// A resource's compressed size is estimated by brotli-compressing its
// captured body; the difference to the bytes actually transferred is the
// waste. Compression ratios are computed once per recording and shared
// through the artifact cache.
package textcompression

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/pagecost/internal/artifacts"
	"github.com/vk/pagecost/internal/audit"
	"github.com/vk/pagecost/internal/config"
	"github.com/vk/pagecost/internal/ctxlog"
	"github.com/vk/pagecost/internal/pagegraph"
	"github.com/vk/pagecost/internal/recording"
	"github.com/vk/pagecost/internal/registry"
	"github.com/vk/pagecost/internal/savings"
)

const (
	// ID identifies the audit in configuration and results.
	ID = "uses-text-compression"
	// RatiosArtifact maps request ids to estimated compression ratios.
	RatiosArtifact = "compression-ratios"

	// DefaultMinSavingsBytes ignores savings smaller than roughly one TCP
	// packet.
	DefaultMinSavingsBytes = 1400
	// DefaultMinSavingsPercent ignores resources that would shrink by less
	// than a tenth.
	DefaultMinSavingsPercent = 10.0
)

var textTypes = map[string]bool{
	"document":   true,
	"script":     true,
	"stylesheet": true,
	"xhr":        true,
	"fetch":      true,
	"manifest":   true,
}

var textExtensions = map[string]bool{
	".html": true, ".htm": true, ".js": true, ".mjs": true, ".css": true,
	".json": true, ".xml": true, ".svg": true, ".txt": true, ".map": true,
}

// Options are read from the audit's `options` block.
type Options struct {
	MinSavingsBytes   int64   `cfg:"min_savings_bytes"`
	MinSavingsPercent float64 `cfg:"min_savings_percent"`
	Quality           int     `cfg:"quality"`
}

// DefaultOptions returns the options used without configuration.
func DefaultOptions() Options {
	return Options{
		MinSavingsBytes:   DefaultMinSavingsBytes,
		MinSavingsPercent: DefaultMinSavingsPercent,
		Quality:           savings.DefaultCompressionQuality,
	}
}

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the audit and its ratio artifact.
func (m *Module) Register(r *registry.Registry) {
	a := New(DefaultOptions())
	r.RegisterArtifact(a.RatiosDefinition())
	r.RegisterAudit(a)
}

// Audit flags compressible text resources.
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
func (a *Audit) Title() string { return "Enable text compression" }

// Options returns the current options.
func (a *Audit) Options() Options { return a.opts }

// Configure implements registry.Configurable.
func (a *Audit) Configure(ctx context.Context, conv config.Converter, opts map[string]hcl.Expression) error {
	next := a.opts
	if err := conv.DecodeOptions(ctx, &next, opts); err != nil {
		return err
	}
	if next.MinSavingsBytes < 0 || next.MinSavingsPercent < 0 {
		return fmt.Errorf("savings thresholds must not be negative")
	}
	a.opts = next
	return nil
}

// RatiosDefinition returns the artifact that estimates the compression
// ratio of every text record with a captured body.
func (a *Audit) RatiosDefinition() artifacts.Definition {
	return artifacts.Definition{
		Name:     RatiosArtifact,
		Requires: []string{pagegraph.NetworkRecordsArtifact},
		Compute: func(ctx context.Context, r artifacts.Resolver, inputs []artifacts.Input) (any, error) {
			records, err := artifacts.ResolveAs[[]*recording.NetworkRecord](ctx, r, pagegraph.NetworkRecordsArtifact, inputs...)
			if err != nil {
				return nil, err
			}
			ratios := make(map[recording.RequestID]float64)
			for _, rec := range records {
				if rec.Body == "" || !isText(rec) {
					continue
				}
				ratio, err := savings.EstimateCompressionRatio([]byte(rec.Body), a.opts.Quality)
				if err != nil {
					return nil, fmt.Errorf("request %s: %w", rec.RequestID, err)
				}
				ratios[rec.RequestID] = ratio
			}
			return ratios, nil
		},
	}
}

// Audit implements audit.Audit.
func (a *Audit) Audit(ctx context.Context, in *audit.Input) (*audit.Result, error) {
	logger := ctxlog.FromContext(ctx)

	records, err := pagegraph.Records(ctx, in.Artifacts, in.Recording)
	if err != nil {
		return nil, err
	}
	ratios, err := artifacts.ResolveAs[map[recording.RequestID]float64](ctx, in.Artifacts, RatiosArtifact, in.Recording)
	if err != nil {
		return nil, err
	}

	var items []audit.Item
	for _, rec := range records {
		ratio, ok := ratios[rec.RequestID]
		if !ok || rec.TransferSize <= 0 {
			continue
		}
		size := rec.ResourceSize
		if size <= 0 {
			size = int64(len(rec.Body))
		}
		compressed := int64(savings.EstimateTransferSize(nil, size, rec.ResourceType, ratio))
		wasted := rec.TransferSize - compressed
		if wasted < a.opts.MinSavingsBytes || float64(wasted)*100 < a.opts.MinSavingsPercent*float64(rec.TransferSize) {
			continue
		}
		items = append(items, audit.Item{
			URL:         rec.URL,
			NodeID:      pagegraph.NetworkNodeID(rec.RequestID),
			WastedBytes: wasted,
			TotalBytes:  rec.TransferSize,
		})
	}
	logger.Debug("Compressible resources found.", "candidates", len(ratios), "flagged", len(items))

	return in.Scorer.CreateResultFrom(ctx, audit.Config{
		ID:    a.ID(),
		Title: a.Title(),
		Headings: []audit.Heading{
			{Key: "url", ItemType: "url", Text: "URL"},
			{Key: "totalKb", ItemType: "text", Text: "Original"},
			{Key: "potentialSavings", ItemType: "text", Text: "Potential Savings"},
		},
		Results: items,
	}, in.Graph, in.Baseline)
}

func isText(rec *recording.NetworkRecord) bool {
	if textTypes[strings.ToLower(rec.ResourceType)] {
		return true
	}
	p := rec.URL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return textExtensions[strings.ToLower(path.Ext(p))]
}

package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/vk/pagecost/internal/artifacts"
	"github.com/vk/pagecost/internal/audit"
	"github.com/vk/pagecost/internal/ctxlog"
	"github.com/vk/pagecost/internal/recording"
)

// Run audits the configured recording and writes the results to the
// output writer as a JSON array.
func (a *App) Run(ctx context.Context) error {
	runID := uuid.NewString()
	logger := a.logger.With("run_id", runID)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("App.Run method started.")

	if a.appConfig.MetricsPort > 0 {
		if _, err := a.startServer(ctx, a.appConfig.MetricsPort); err != nil {
			return err
		}
		defer func() { _ = a.closeServer(ctx) }()
	} else {
		logger.Debug("Health check server not started: disabled")
	}

	loader := recording.NewLoader(a.appConfig.FetchTimeout)
	defer loader.Close()
	rec, err := loader.Load(ctx, a.appConfig.TracePath, a.appConfig.NetlogPath)
	if err != nil {
		return fmt.Errorf("failed to load recording: %w", err)
	}
	logger.Info("Recording loaded.", "requests", len(rec.Records), "fingerprint", rec.Fingerprint())

	cache := artifacts.New(artifacts.WithObserver(a.metrics))
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Warn("Artifact cache teardown failed.", "error", err)
		}
	}()
	if err := a.registry.Install(cache); err != nil {
		return err
	}

	audits := a.registry.Enabled(a.config)
	if len(audits) == 0 {
		logger.Warn("No audits enabled, nothing to run.")
	}
	runner := audit.NewRunner(cache, a.scorer, a.appConfig.WorkerCount, audit.WithAuditObserver(a.metrics))
	results, err := runner.Run(ctx, rec, audits)
	if err != nil {
		return fmt.Errorf("audit run interrupted: %w", err)
	}

	stats := cache.Stats()
	logger.Debug("Artifact cache stats.", "entries", stats.Entries, "computations", stats.Computations, "hits", stats.Hits, "shared_waits", stats.SharedWaits)

	enc := json.NewEncoder(a.outW)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	logger.Debug("App.Run method finished.")
	return nil
}

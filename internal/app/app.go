package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vk/pagecost/internal/audit"
	"github.com/vk/pagecost/internal/config"
	"github.com/vk/pagecost/internal/ctxlog"
	"github.com/vk/pagecost/internal/metrics"
	"github.com/vk/pagecost/internal/pagegraph"
	"github.com/vk/pagecost/internal/registry"
	"github.com/vk/pagecost/internal/savings"
	"github.com/vk/pagecost/internal/simulator"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	appConfig  *Config
	config     *config.Model
	registry   *registry.Registry
	metrics    *metrics.Registry
	simulator  *simulator.Simulator
	scorer     *audit.Scorer
	httpServer *http.Server
}

// NewApp is the constructor for the main application. Results are written
// to outW and logs to logW. Without modules the core modules are used.
func NewApp(outW, logW io.Writer, appConfig *Config, loader config.Loader, modules ...registry.Module) (*App, error) {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	var configPaths []string
	if appConfig.ConfigPath != "" {
		configPaths = append(configPaths, appConfig.ConfigPath)
	}
	cfgModel, converter, err := loader.Load(ctx, configPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Debug("Configuration loaded.", "audits_configured", len(cfgModel.Audits))

	m := metrics.NewRegistry()
	sim := simulator.New(simulator.Policy{
		MaxConnectionsPerKey: cfgModel.Simulation.MaxConnectionsPerOrigin,
	}, simulator.WithObserver(m))

	reg := registry.New()
	registry.Definitions(pagegraph.Definitions(pagegraph.Options{
		Throughput:      cfgModel.Network.Throughput,
		RTT:             cfgModel.Network.RTT,
		MinTaskDuration: cfgModel.Network.MinTaskDuration,
	}, sim)).Register(reg)
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules), "artifacts", reg.ArtifactNames())

	if err := reg.Configure(ctx, cfgModel, converter); err != nil {
		return nil, err
	}
	logger.Debug("Registry validation passed.")

	curve := audit.Curve{Median: cfgModel.Scoring.Median, PODR: cfgModel.Scoring.PODR}
	return &App{
		outW:      outW,
		logger:    logger,
		appConfig: appConfig,
		config:    cfgModel,
		registry:  reg,
		metrics:   m,
		simulator: sim,
		scorer:    audit.NewScorer(savings.NewEstimator(sim), curve),
	}, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Metrics returns the application's metrics registry.
func (a *App) Metrics() *metrics.Registry {
	return a.metrics
}

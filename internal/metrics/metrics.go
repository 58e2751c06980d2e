package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vk/pagecost/internal/artifacts"
)

// Registry holds every collector of a run.
type Registry struct {
	// Simulator
	SimulationsTotal    prometheus.Counter
	SimulationDuration  prometheus.Histogram
	SimulatedCompletion prometheus.Histogram
	SimulatedGraphNodes prometheus.Histogram

	// Artifact cache
	ArtifactResolutionsTotal *prometheus.CounterVec
	ArtifactDuration         *prometheus.HistogramVec

	// Audits
	AuditsTotal   *prometheus.CounterVec
	AuditDuration *prometheus.HistogramVec
	AuditScore    *prometheus.GaugeVec

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry with all collectors initialized.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.initSimulationMetrics()
	r.initArtifactMetrics()
	r.initAuditMetrics()
	return r
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Registry) initSimulationMetrics() {
	r.SimulationsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "pagecost_simulations_total",
			Help: "Total number of completed simulations",
		},
	)

	r.SimulationDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pagecost_simulation_duration_seconds",
			Help:    "Wall time spent simulating one graph",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	r.SimulatedCompletion = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pagecost_simulated_completion_seconds",
			Help:    "Simulated completion time of a graph",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	r.SimulatedGraphNodes = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pagecost_simulated_graph_nodes",
			Help:    "Number of nodes in simulated graphs",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
		},
	)
}

func (r *Registry) initArtifactMetrics() {
	r.ArtifactResolutionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagecost_artifact_resolutions_total",
			Help: "Total number of artifact resolutions",
		},
		[]string{"artifact", "outcome"}, // computed, failed, hit
	)

	r.ArtifactDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagecost_artifact_duration_seconds",
			Help:    "Time to resolve an artifact, including waits on shared computations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"artifact", "outcome"},
	)
}

func (r *Registry) initAuditMetrics() {
	r.AuditsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagecost_audits_total",
			Help: "Total number of audits run",
		},
		[]string{"audit", "status"}, // ok, failed
	)

	r.AuditDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagecost_audit_duration_seconds",
			Help:    "Audit execution time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"audit"},
	)

	r.AuditScore = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pagecost_audit_score",
			Help: "Score of the most recent run of an audit (0-100)",
		},
		[]string{"audit"},
	)
}

// ObserveSimulation records one finished simulation.
func (r *Registry) ObserveSimulation(nodes int, completion, elapsed time.Duration) {
	r.SimulationsTotal.Inc()
	r.SimulationDuration.Observe(elapsed.Seconds())
	r.SimulatedCompletion.Observe(completion.Seconds())
	r.SimulatedGraphNodes.Observe(float64(nodes))
}

// ObserveArtifact records one artifact resolution.
func (r *Registry) ObserveArtifact(name string, outcome artifacts.Outcome, d time.Duration) {
	r.ArtifactResolutionsTotal.WithLabelValues(name, string(outcome)).Inc()
	r.ArtifactDuration.WithLabelValues(name, string(outcome)).Observe(d.Seconds())
}

// ObserveAudit records one finished audit.
func (r *Registry) ObserveAudit(id string, score int, failed bool, d time.Duration) {
	r.AuditsTotal.WithLabelValues(id, status(failed)).Inc()
	r.AuditDuration.WithLabelValues(id).Observe(d.Seconds())
	r.AuditScore.WithLabelValues(id).Set(float64(score))
}

func status(failed bool) string {
	if failed {
		return "failed"
	}
	return "ok"
}

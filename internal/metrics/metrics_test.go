package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pagecost/internal/artifacts"
	"github.com/vk/pagecost/internal/audit"
	"github.com/vk/pagecost/internal/dag"
	"github.com/vk/pagecost/internal/simulator"
)

var (
	_ simulator.Observer = (*Registry)(nil)
	_ artifacts.Observer = (*Registry)(nil)
	_ audit.Observer     = (*Registry)(nil)
)

type collector interface {
	Write(*dto.Metric) error
}

func value(t *testing.T, c collector) *dto.Metric {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return &m
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r)
	assert.NotNil(t, r.SimulationsTotal)
	assert.NotNil(t, r.ArtifactResolutionsTotal)
	assert.NotNil(t, r.AuditsTotal)
	assert.NotNil(t, r.PrometheusRegistry())
	assert.NotSame(t, r, NewRegistry(), "each registry is independent")
}

func TestDefaultRegistry(t *testing.T) {
	assert.Same(t, DefaultRegistry(), DefaultRegistry())
}

func TestObserveSimulation(t *testing.T) {
	r := NewRegistry()
	g := dag.New()
	require.NoError(t, g.AddNode(dag.NetworkNode{Base: dag.Base{ID: "a", Duration: 40 * time.Millisecond}}))
	require.NoError(t, g.Freeze())

	sim := simulator.New(simulator.Policy{}, simulator.WithObserver(r))
	for i := 0; i < 3; i++ {
		_, err := sim.Run(context.Background(), g)
		require.NoError(t, err)
	}

	assert.Equal(t, 3.0, value(t, r.SimulationsTotal).GetCounter().GetValue())
	completion := value(t, r.SimulatedCompletion).GetHistogram()
	assert.Equal(t, uint64(3), completion.GetSampleCount())
	assert.InDelta(t, 0.12, completion.GetSampleSum(), 1e-9)
}

func TestObserveArtifact(t *testing.T) {
	r := NewRegistry()
	c := artifacts.New(artifacts.WithObserver(r))
	require.NoError(t, c.Register(artifacts.Definition{
		Name: "answer",
		Compute: func(context.Context, artifacts.Resolver, []artifacts.Input) (any, error) {
			return 42, nil
		},
	}))
	for i := 0; i < 3; i++ {
		_, err := c.Resolve(context.Background(), "answer")
		require.NoError(t, err)
	}

	computed, err := r.ArtifactResolutionsTotal.GetMetricWithLabelValues("answer", "computed")
	require.NoError(t, err)
	assert.Equal(t, 1.0, value(t, computed).GetCounter().GetValue())

	hits, err := r.ArtifactResolutionsTotal.GetMetricWithLabelValues("answer", "hit")
	require.NoError(t, err)
	assert.Equal(t, 2.0, value(t, hits).GetCounter().GetValue())
}

func TestObserveAudit(t *testing.T) {
	r := NewRegistry()
	r.ObserveAudit("uses-text-compression", 67, false, 10*time.Millisecond)
	r.ObserveAudit("uses-text-compression", 80, false, 10*time.Millisecond)
	r.ObserveAudit("removable-resources", 0, true, time.Millisecond)

	ok, err := r.AuditsTotal.GetMetricWithLabelValues("uses-text-compression", "ok")
	require.NoError(t, err)
	assert.Equal(t, 2.0, value(t, ok).GetCounter().GetValue())

	failed, err := r.AuditsTotal.GetMetricWithLabelValues("removable-resources", "failed")
	require.NoError(t, err)
	assert.Equal(t, 1.0, value(t, failed).GetCounter().GetValue())

	score, err := r.AuditScore.GetMetricWithLabelValues("uses-text-compression")
	require.NoError(t, err)
	assert.Equal(t, 80.0, value(t, score).GetGauge().GetValue(), "gauge keeps the latest score")
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.ObserveAudit("a", 100, false, time.Millisecond)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `pagecost_audits_total{audit="a",status="ok"} 1`)
	assert.Contains(t, string(body), "pagecost_audit_score")
}

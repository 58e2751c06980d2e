package savings

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pagecost/internal/dag"
	"github.com/vk/pagecost/internal/recording"
	"github.com/vk/pagecost/internal/simulator"
)

const ms = time.Millisecond

// fixtureGraph is a 400 KB document that takes one second to fetch, with a
// 50 ms main-thread task after it.
func fixtureGraph(t *testing.T) *dag.Graph {
	t.Helper()
	g := dag.New()
	require.NoError(t, g.AddNode(dag.NetworkNode{
		Base:         dag.Base{ID: "net:1", Duration: time.Second},
		URL:          "http://example.com/",
		AffinityKey:  "http://example.com",
		TransferSize: 400000,
	}))
	require.NoError(t, g.AddNode(dag.ComputeNode{Base: dag.Base{ID: "cpu:0", Duration: 50 * ms, Order: 1}}))
	require.NoError(t, g.AddEdge("net:1", "cpu:0"))
	require.NoError(t, g.Freeze())
	return g
}

func TestEstimate(t *testing.T) {
	ctx := context.Background()
	est := NewEstimator(simulator.New(simulator.Policy{}))
	g := fixtureGraph(t)

	t.Run("half the bytes saves half the fetch", func(t *testing.T) {
		res, err := est.Estimate(ctx, g, []Override{{NodeID: "net:1", WastedBytes: 200000}})
		require.NoError(t, err)
		assert.Equal(t, 1050*ms, res.Baseline)
		assert.Equal(t, 550*ms, res.Scenario)
		assert.Equal(t, 500*ms, res.Delta)
	})

	t.Run("overrides on the same node add up", func(t *testing.T) {
		res, err := est.Estimate(ctx, g, []Override{
			{NodeID: "net:1", WastedBytes: 100000},
			{NodeID: "net:1", WastedBytes: 100000},
		})
		require.NoError(t, err)
		assert.Equal(t, 500*ms, res.Delta)
	})

	t.Run("full removal leaves only the task", func(t *testing.T) {
		res, err := est.Estimate(ctx, g, []Override{{NodeID: "net:1", WastedBytes: 900000}})
		require.NoError(t, err)
		assert.Equal(t, 50*ms, res.Scenario)
		assert.Equal(t, time.Second, res.Delta)
	})

	t.Run("compute nodes need an explicit total", func(t *testing.T) {
		_, err := est.Estimate(ctx, g, []Override{{NodeID: "cpu:0", WastedBytes: 10}})
		assert.ErrorIs(t, err, ErrNoByteTotal)

		res, err := est.Estimate(ctx, g, []Override{{NodeID: "cpu:0", WastedBytes: 10, TotalBytes: 20}})
		require.NoError(t, err)
		assert.Equal(t, 25*ms, res.Delta)
	})

	t.Run("no overrides saves nothing", func(t *testing.T) {
		res, err := est.Estimate(ctx, g, nil)
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), res.Delta)
	})

	t.Run("unknown node", func(t *testing.T) {
		_, err := est.Estimate(ctx, g, []Override{{NodeID: "net:404", WastedBytes: 1}})
		assert.ErrorIs(t, err, ErrUnknownNode)
	})

	t.Run("nil graph", func(t *testing.T) {
		_, err := est.Estimate(ctx, nil, nil)
		assert.ErrorIs(t, err, simulator.ErrNilGraph)
	})

	t.Run("cached baseline is reused", func(t *testing.T) {
		baseline := &simulator.Result{Completion: 2 * time.Second}
		res, err := est.EstimateFrom(ctx, g, baseline, []Override{{NodeID: "net:1", WastedBytes: 200000}})
		require.NoError(t, err)
		assert.Equal(t, 2*time.Second, res.Baseline)
		assert.Equal(t, 1450*ms, res.Delta)
	})

	t.Run("source graph is untouched", func(t *testing.T) {
		_, err := est.Estimate(ctx, g, []Override{{NodeID: "net:1", WastedBytes: 400000}})
		require.NoError(t, err)
		n, _ := g.Node("net:1")
		assert.Equal(t, time.Second, n.Info().Duration)
	})
}

func TestScaleDuration(t *testing.T) {
	testCases := []struct {
		name          string
		wasted, total int64
		want          time.Duration
	}{
		{"nothing wasted", 0, 100, time.Second},
		{"quarter wasted", 25, 100, 750 * ms},
		{"all wasted", 100, 100, 0},
		{"more than all wasted", 500, 100, 0},
		{"negative waste", -5, 100, time.Second},
		{"no total", 10, 0, time.Second},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ScaleDuration(time.Second, tc.wasted, tc.total))
		})
	}
}

func TestEstimateTransferSize(t *testing.T) {
	t.Run("should estimate by compression ratio when no network record available", func(t *testing.T) {
		assert.InDelta(t, 345, EstimateTransferSize(nil, 1000, "", 0.345), 1e-9)
		assert.InDelta(t, 1000, EstimateTransferSize(nil, 1000, "", 0), 1e-9)
	})

	t.Run("should return transferSize when asset matches", func(t *testing.T) {
		rec := &recording.NetworkRecord{TransferSize: 1234, ResourceType: "stylesheet"}
		assert.InDelta(t, 1234, EstimateTransferSize(rec, 10000, "stylesheet", 0), 1e-9)
	})

	t.Run("should estimate by network compression ratio when asset does not match", func(t *testing.T) {
		rec := &recording.NetworkRecord{ResourceSize: 2000, TransferSize: 1000, ResourceType: "other"}
		assert.InDelta(t, 50, EstimateTransferSize(rec, 100, "", 0), 1e-9)
	})

	t.Run("should not error when missing resource size", func(t *testing.T) {
		rec := &recording.NetworkRecord{TransferSize: 1000, ResourceType: "other"}
		assert.InDelta(t, 100, EstimateTransferSize(rec, 100, "", 0), 1e-9)
	})

	t.Run("negative sizes estimate zero bytes", func(t *testing.T) {
		assert.Equal(t, 0.0, EstimateTransferSize(nil, -1000, "", 0.5))
		rec := &recording.NetworkRecord{ResourceSize: 2000, TransferSize: 1000, ResourceType: "other"}
		assert.Equal(t, 0.0, EstimateTransferSize(rec, -100, "", 0))
		assert.Equal(t, 0.0, EstimateTransferSize(&recording.NetworkRecord{ResourceType: "other"}, -100, "", 0))
		assert.Equal(t, 0.0, EstimateTransferSize(&recording.NetworkRecord{TransferSize: -5, ResourceType: "script"}, 10, "script", 0))
	})
}

func TestEstimateCompressionRatio(t *testing.T) {
	t.Run("repetitive text compresses well", func(t *testing.T) {
		body := []byte(strings.Repeat("function add(a, b) { return a + b; }\n", 500))
		ratio, err := EstimateCompressionRatio(body, DefaultCompressionQuality)
		require.NoError(t, err)
		assert.Greater(t, ratio, 0.0)
		assert.Less(t, ratio, 0.1)
	})

	t.Run("random bytes barely compress", func(t *testing.T) {
		body := make([]byte, 4096)
		rand.New(rand.NewSource(1)).Read(body)
		ratio, err := EstimateCompressionRatio(body, 99)
		require.NoError(t, err)
		assert.Greater(t, ratio, 0.95)
	})

	t.Run("empty body", func(t *testing.T) {
		ratio, err := EstimateCompressionRatio(nil, DefaultCompressionQuality)
		require.NoError(t, err)
		assert.Equal(t, 1.0, ratio)
	})
}

func TestEstimateProperties(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	est := NewEstimator(simulator.New(simulator.Policy{MaxConnectionsPerKey: 2}))
	ctx := context.Background()

	properties.Property("delta is never negative and matches the two completions", prop.ForAll(
		func(seed int64, n int) bool {
			rng := rand.New(rand.NewSource(seed))
			g := dag.New()
			var overrides []Override
			for i := 0; i < n; i++ {
				id := fmt.Sprintf("net:%d", i)
				size := int64(1 + rng.Intn(100000))
				_ = g.AddNode(dag.NetworkNode{
					Base:         dag.Base{ID: id, Duration: time.Duration(rng.Intn(800)) * ms, Order: i},
					AffinityKey:  fmt.Sprintf("https://o%d.test", rng.Intn(2)),
					TransferSize: size,
				})
				if i > 0 {
					_ = g.AddEdge(fmt.Sprintf("net:%d", rng.Intn(i)), id)
				}
				if rng.Intn(2) == 0 {
					overrides = append(overrides, Override{NodeID: id, WastedBytes: rng.Int63n(2 * size)})
				}
			}
			if err := g.Freeze(); err != nil {
				return false
			}

			res, err := est.Estimate(ctx, g, overrides)
			if err != nil {
				return false
			}
			return res.Delta >= 0 && res.Delta == max(res.Baseline-res.Scenario, 0)
		},
		gen.Int64(),
		gen.IntRange(1, 25),
	))

	properties.TestingRun(t)
}

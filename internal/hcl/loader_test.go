package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pagecost/internal/config"
)

var (
	_ config.Loader    = (*Loader)(nil)
	_ config.Converter = (*Converter)(nil)
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("no files gives defaults", func(t *testing.T) {
		model, conv, err := NewLoader().Load(ctx, filepath.Join(t.TempDir(), "missing.hcl"))
		require.NoError(t, err)
		assert.Equal(t, config.Default(), model)
		assert.NotNil(t, conv)
	})

	t.Run("full file", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "pagecost.hcl", `
simulation {
  max_connections_per_origin = 4
}

network {
  throughput        = 10 * mb
  rtt               = "40ms"
  min_task_duration = "5ms"
}

scoring {
  median_ms = 1000
  podr_ms   = 100
}

audit "uses-text-compression" {
  options {
    min_savings_bytes = 2 * kb
  }
}

audit "removable-resources" {
  enabled = false
}
`)
		model, _, err := NewLoader().Load(ctx, path)
		require.NoError(t, err)

		assert.Equal(t, 4, model.Simulation.MaxConnectionsPerOrigin)
		assert.Equal(t, float64(10*1024*1024), model.Network.Throughput)
		assert.Equal(t, 40*time.Millisecond, model.Network.RTT)
		assert.Equal(t, 5*time.Millisecond, model.Network.MinTaskDuration)
		assert.Equal(t, 1000.0, model.Scoring.Median)
		assert.Equal(t, 100.0, model.Scoring.PODR)

		require.Contains(t, model.Audits, "uses-text-compression")
		assert.True(t, model.AuditEnabled("uses-text-compression"))
		assert.Contains(t, model.AuditOptions("uses-text-compression"), "min_savings_bytes")
		assert.False(t, model.AuditEnabled("removable-resources"))
	})

	t.Run("directories merge in walk order", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "a.hcl", `
scoring {
  median_ms = 2000
}
audit "x" {
  options {
    a = 1
  }
}
`)
		writeFile(t, dir, "nested/b.hcl", `
scoring {
  podr_ms = 80
}
audit "x" {
  options {
    b = 2
  }
}
`)
		writeFile(t, dir, "notes.txt", "not hcl")

		model, _, err := NewLoader().Load(ctx, dir, filepath.Join(dir, "a.hcl"))
		require.NoError(t, err)
		assert.Equal(t, 2000.0, model.Scoring.Median)
		assert.Equal(t, 80.0, model.Scoring.PODR)
		assert.Len(t, model.AuditOptions("x"), 2)
	})

	t.Run("env variables", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "env.hcl", `
network {
  rtt = env.PAGECOST_RTT
}
`)
		model, _, err := NewLoader(WithEnviron([]string{"PAGECOST_RTT=75ms", "BROKEN"})).Load(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 75*time.Millisecond, model.Network.RTT)
	})

	errorCases := []struct {
		name    string
		content string
		wantErr string
	}{
		{"syntax error", `scoring {`, "failed to parse HCL file"},
		{"unknown block", `cache {}`, "failed to decode HCL file"},
		{"unknown attribute", "scoring {\n  mean = 1\n}\n", "failed to decode HCL file"},
		{"bad duration", "network {\n  rtt = \"soon\"\n}\n", "network.rtt"},
		{"invalid values", "simulation {\n  max_connections_per_origin = 0\n}\n", "must be at least 1"},
		{"undefined variable", "network {\n  throughput = gb\n}\n", "failed to decode HCL file"},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "bad.hcl", tc.content)
			_, _, err := NewLoader().Load(ctx, path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

type compressionOptions struct {
	MinSavingsBytes int64    `cfg:"min_savings_bytes"`
	Patterns        []string `cfg:"patterns"`
	Quality         int      `cfg:"quality"`
	Ignored         string
}

func TestDecodeOptions(t *testing.T) {
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "opts.hcl", `
audit "a" {
  options {
    min_savings_bytes = 1.5 * kb
    patterns          = concat(["ads"], split(",", "tracker,beacon"))
    quality           = "9"
  }
}

audit "unknown" {
  options {
    nope = true
  }
}

audit "wrong-type" {
  options {
    quality = "high"
  }
}
`)
	model, conv, err := NewLoader().Load(ctx, path)
	require.NoError(t, err)

	t.Run("decodes with conversion", func(t *testing.T) {
		opts := compressionOptions{Quality: 11, Ignored: "kept"}
		require.NoError(t, conv.DecodeOptions(ctx, &opts, model.AuditOptions("a")))
		assert.Equal(t, int64(1536), opts.MinSavingsBytes)
		assert.Equal(t, []string{"ads", "tracker", "beacon"}, opts.Patterns)
		assert.Equal(t, 9, opts.Quality)
		assert.Equal(t, "kept", opts.Ignored)
	})

	t.Run("no options keeps defaults", func(t *testing.T) {
		opts := compressionOptions{Quality: 11}
		require.NoError(t, conv.DecodeOptions(ctx, &opts, model.AuditOptions("missing")))
		assert.Equal(t, 11, opts.Quality)
	})

	t.Run("unknown option", func(t *testing.T) {
		var opts compressionOptions
		err := conv.DecodeOptions(ctx, &opts, model.AuditOptions("unknown"))
		assert.ErrorContains(t, err, "unknown option 'nope'")
	})

	t.Run("wrong type", func(t *testing.T) {
		var opts compressionOptions
		err := conv.DecodeOptions(ctx, &opts, model.AuditOptions("wrong-type"))
		assert.ErrorContains(t, err, "failed to decode option 'quality'")
	})

	t.Run("target must be a struct pointer", func(t *testing.T) {
		var opts compressionOptions
		assert.Error(t, conv.DecodeOptions(ctx, opts, nil))
		assert.Error(t, conv.DecodeOptions(ctx, (*compressionOptions)(nil), nil))
		n := 3
		assert.Error(t, conv.DecodeOptions(ctx, &n, nil))
	})

	t.Run("default converter", func(t *testing.T) {
		opts := compressionOptions{}
		require.NoError(t, NewConverter(nil).DecodeOptions(ctx, &opts, model.AuditOptions("a")))
		assert.Equal(t, int64(1536), opts.MinSavingsBytes)
	})
}

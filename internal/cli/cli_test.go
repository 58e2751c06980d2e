package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("full flag set", func(t *testing.T) {
		out := &bytes.Buffer{}
		cfg, exit, err := Parse([]string{
			"-trace", "t.json", "-netlog", "https://example.com/n.json",
			"-config", "conf.d", "-metrics-port", "9090", "-log-format", "JSON",
			"-log-level", "Debug", "-workers", "3", "-fetch-timeout", "5s",
		}, out)
		require.NoError(t, err)
		assert.False(t, exit)
		assert.Equal(t, "t.json", cfg.TracePath)
		assert.Equal(t, "https://example.com/n.json", cfg.NetlogPath)
		assert.Equal(t, "conf.d", cfg.ConfigPath)
		assert.Equal(t, 9090, cfg.MetricsPort)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 3, cfg.WorkerCount)
		assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
		assert.Empty(t, out.String())
	})

	t.Run("help", func(t *testing.T) {
		out := &bytes.Buffer{}
		cfg, exit, err := Parse([]string{"-h"}, out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
	})

	t.Run("no arguments prints usage", func(t *testing.T) {
		out := &bytes.Buffer{}
		_, exit, err := Parse(nil, out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Contains(t, out.String(), "-netlog")
	})

	errorCases := []struct {
		name string
		args []string
		want string
	}{
		{"unknown flag", []string{"-nope"}, "flag provided but not defined: -nope"},
		{"missing netlog", []string{"-trace", "t.json"}, "NetlogPath"},
		{"stray argument", []string{"-trace", "t.json", "-netlog", "n.json", "extra"}, "unexpected arguments: extra"},
		{"bad format", []string{"-trace", "t", "-netlog", "n", "-log-format", "xml"}, "invalid log-format"},
		{"bad level", []string{"-trace", "t", "-netlog", "n", "-log-level", "loud"}, "invalid log-level"},
		{"negative workers", []string{"-trace", "t", "-netlog", "n", "-workers", "-1"}, "invalid workers"},
		{"bad port", []string{"-trace", "t", "-netlog", "n", "-metrics-port", "99999"}, "MetricsPort"},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			_, exit, err := Parse(tc.args, &bytes.Buffer{})
			assert.False(t, exit)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.want)
		})
	}
}

package app

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/pagecost/internal/hcl"
	"github.com/vk/pagecost/internal/recording"
	"github.com/vk/pagecost/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// WriteRecording stores a trace and a network log in dir and returns their
// paths.
func WriteRecording(t *testing.T, dir string, trace *recording.Trace, records []*recording.NetworkRecord) (string, string) {
	t.Helper()
	tracePath := filepath.Join(dir, "trace.json")
	netlogPath := filepath.Join(dir, "netlog.json")

	data, err := json.Marshal(trace)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(tracePath, data, 0o600))

	data, err = json.Marshal(records)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(netlogPath, data, 0o600))
	return tracePath, netlogPath
}

// SetupAppTest creates a new app instance for system testing. It returns
// the app together with its result and log buffers.
func SetupAppTest(t *testing.T, appConfig *Config, modules ...registry.Module) (*App, *SafeBuffer, *SafeBuffer) {
	t.Helper()

	out, logs := &SafeBuffer{}, &SafeBuffer{}
	appConfig.LogLevel = "debug"
	testApp, err := NewApp(out, logs, appConfig, hcl.NewLoader(), modules...)
	require.NoError(t, err)

	t.Cleanup(func() {
		if os.Getenv("PAGECOST_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})

	return testApp, out, logs
}

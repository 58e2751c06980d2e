package recording

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/vk/pagecost/internal/ctxlog"
)

// DefaultFetchTimeout bounds a single HTTP download of a recording file.
const DefaultFetchTimeout = 30 * time.Second

// Loader reads recording files from local paths or http(s) URLs.
type Loader struct {
	client *http.Client
}

// NewLoader returns a Loader whose HTTP client uses the given timeout.
// A zero timeout means DefaultFetchTimeout.
func NewLoader(timeout time.Duration) *Loader {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Loader{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Close releases idle HTTP connections.
func (l *Loader) Close() error {
	l.client.CloseIdleConnections()
	return nil
}

// Load reads and parses both files of a recording.
func (l *Loader) Load(ctx context.Context, traceLocation, netlogLocation string) (*Recording, error) {
	logger := ctxlog.FromContext(ctx)

	traceFile, err := l.Open(ctx, traceLocation)
	if err != nil {
		return nil, err
	}
	defer traceFile.Close()
	trace, err := ParseTrace(traceFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", traceLocation, err)
	}

	logFile, err := l.Open(ctx, netlogLocation)
	if err != nil {
		return nil, err
	}
	defer logFile.Close()
	records, err := ParseNetworkLog(logFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", netlogLocation, err)
	}

	rec, err := New(trace, records)
	if err != nil {
		return nil, err
	}
	logger.Debug("Recording loaded.", "trace", traceLocation, "netlog", netlogLocation,
		"events", len(trace.Events), "requests", len(records), "fingerprint", rec.Fingerprint())
	return rec, nil
}

// Open returns a reader for a local path or an http(s) URL.
func (l *Loader) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("failed to open recording file: %w", err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch %s: unexpected status %s", location, resp.Status)
	}
	ctxlog.FromContext(ctx).Debug("Fetched recording file.", "url", location, "status", resp.Status)
	return resp.Body, nil
}

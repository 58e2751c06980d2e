package app

import (
	"errors"
	"time"

	"github.com/vk/pagecost/internal/recording"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	TracePath  string // file or http(s) URL
	NetlogPath string // file or http(s) URL
	ConfigPath string // hcl file or directory, optional

	LogFormat    string
	LogLevel     string
	MetricsPort  int
	WorkerCount  int
	FetchTimeout time.Duration
}

// NewConfig validates cfg and fills defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.TracePath == "" {
		return nil, errors.New("TracePath is a required configuration field and cannot be empty")
	}
	if cfg.NetlogPath == "" {
		return nil, errors.New("NetlogPath is a required configuration field and cannot be empty")
	}
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return nil, errors.New("MetricsPort must be between 0 and 65535")
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = recording.DefaultFetchTimeout
	}
	return &cfg, nil
}

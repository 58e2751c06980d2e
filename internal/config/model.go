package config

import (
	"time"

	"github.com/hashicorp/hcl/v2"
)

// Default values used when no configuration file is given.
const (
	DefaultMaxConnectionsPerOrigin = 6
	DefaultThroughput              = 1.6 * 1024 * 1024 / 8
	DefaultRTT                     = 150 * time.Millisecond
	DefaultMinTaskDuration         = 10 * time.Millisecond
	DefaultScoreMedian             = 750.0
	DefaultScorePODR               = 50.0
)

// Model is the unified, format-agnostic representation of a run's
// configuration.
type Model struct {
	Simulation Simulation
	Network    Network
	Scoring    Scoring
	// Audits is keyed by audit id. Audits without an entry run with their
	// default options.
	Audits map[string]*Audit `validate:"dive"`
}

// Simulation holds the contention policy.
type Simulation struct {
	MaxConnectionsPerOrigin int `validate:"min=1,max=64"`
}

// Network describes how fetch durations are estimated when a recording
// lacks timing.
type Network struct {
	// Throughput is in bytes per second.
	Throughput      float64       `validate:"gt=0"`
	RTT             time.Duration `validate:"min=0"`
	MinTaskDuration time.Duration `validate:"min=0"`
}

// Scoring holds the log-normal curve parameters, both in milliseconds.
type Scoring struct {
	Median float64 `validate:"gt=0"`
	PODR   float64 `validate:"gt=0,ltfield=Median"`
}

// Audit is the format-agnostic representation of an `audit` block.
type Audit struct {
	ID      string `validate:"required"`
	Enabled bool
	// Options are evaluated lazily by a Converter.
	Options map[string]hcl.Expression
}

// Default returns the configuration used when no file is given.
func Default() *Model {
	return &Model{
		Simulation: Simulation{MaxConnectionsPerOrigin: DefaultMaxConnectionsPerOrigin},
		Network: Network{
			Throughput:      DefaultThroughput,
			RTT:             DefaultRTT,
			MinTaskDuration: DefaultMinTaskDuration,
		},
		Scoring: Scoring{Median: DefaultScoreMedian, PODR: DefaultScorePODR},
		Audits:  map[string]*Audit{},
	}
}

// AuditEnabled reports whether the audit with the given id should run.
func (m *Model) AuditEnabled(id string) bool {
	a, ok := m.Audits[id]
	return !ok || a.Enabled
}

// AuditOptions returns the raw options of an audit, or nil.
func (m *Model) AuditOptions(id string) map[string]hcl.Expression {
	if a, ok := m.Audits[id]; ok {
		return a.Options
	}
	return nil
}

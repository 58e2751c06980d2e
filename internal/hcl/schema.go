package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level block a configuration file may hold.
type fileRoot struct {
	Simulation *simulationBlock `hcl:"simulation,block"`
	Network    *networkBlock    `hcl:"network,block"`
	Scoring    *scoringBlock    `hcl:"scoring,block"`
	Audits     []*auditBlock    `hcl:"audit,block"`
}

type simulationBlock struct {
	MaxConnectionsPerOrigin *int `hcl:"max_connections_per_origin,optional"`
}

type networkBlock struct {
	Throughput      *float64 `hcl:"throughput,optional"`
	RTT             *string  `hcl:"rtt,optional"`
	MinTaskDuration *string  `hcl:"min_task_duration,optional"`
}

type scoringBlock struct {
	Median *float64 `hcl:"median_ms,optional"`
	PODR   *float64 `hcl:"podr_ms,optional"`
}

type auditBlock struct {
	ID      string        `hcl:"id,label"`
	Enabled *bool         `hcl:"enabled,optional"`
	Options *optionsBlock `hcl:"options,block"`
}

// optionsBlock keeps audit options unevaluated until an audit decodes them.
type optionsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

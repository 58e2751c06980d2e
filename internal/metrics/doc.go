// Package metrics exposes Prometheus collectors for the simulator, the
// artifact cache and the audit runner.
//
// A Registry satisfies simulator.Observer, artifacts.Observer and
// audit.Observer, so the app wires one instance into all three.
package metrics

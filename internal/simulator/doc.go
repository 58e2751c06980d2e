// Package simulator estimates when every node of a page dependency graph
// finishes under resource contention.
//
// The simulation is discrete-event and deterministic. Network nodes sharing
// an affinity key (normally the URL origin) compete for a bounded number of
// connections; compute nodes share a single main thread. Whenever a slot is
// free the earliest-eligible waiting node takes it, with recording order as
// the tie-break. No wall-clock time is involved.
package simulator

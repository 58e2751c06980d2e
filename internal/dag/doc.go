// Package dag is the graph model of a page load. A Graph holds one root node
// plus every network fetch and main-thread task reachable from it, connected
// by "must finish before" edges.
//
// Nodes form a closed union of two variants, NetworkNode and ComputeNode.
// Edges are owned by the Graph rather than the node payloads, so a what-if
// scenario can swap a node's payload through Clone without touching the
// topology. A graph is mutable while it is being built and read-only once
// Freeze has validated it; every transformation produces a new graph.
package dag

// Package pagegraph derives the page dependency graph from a recording and
// defines the standard artifacts every audit builds on: the network records,
// the main-thread tasks, the graph itself and its baseline simulation.
package pagegraph

// Package audit turns byte-waste findings into scored audit results.
//
// A byte-efficiency audit reports items (resources with wasted bytes). The
// Scorer maps those items onto the page dependency graph, estimates the time
// the page would save without the waste, and scores that saving on a
// log-normal curve. The Runner executes a set of audits concurrently against
// one recording; an audit that fails yields a degraded result and never
// affects its siblings.
package audit

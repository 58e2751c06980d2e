// Package savings estimates how much earlier a page would finish if some
// resources were smaller. Byte reductions are turned into proportionally
// shorter node durations on a cloned graph, and both graphs are simulated
// under the same contention policy.
package savings

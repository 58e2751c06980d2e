// Package recording is the input boundary of a run. It parses a performance
// trace and a network activity log captured by an external browser driver,
// and fingerprints them so derived artifacts can be cached per recording.
package recording

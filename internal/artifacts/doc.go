// Package artifacts memoizes values derived from a run's inputs.
//
// An artifact is registered by name together with the names it requires and
// a compute function. Resolving a name with a set of inputs computes the
// value once per (name, input fingerprint); concurrent callers for the same
// key share a single in-flight computation. Failures are memoized as well.
// Entries live until the Cache is closed at the end of the run.
package artifacts

// Package config defines the format-agnostic run configuration, along with
// the interfaces (Loader, Converter) for reading it from a concrete format.
//
// A Model holds the simulation policy, the network model used to estimate
// fetch times, the score curve and per-audit settings. Audit options stay
// unevaluated until the audit that owns them decodes them into its own
// struct through a Converter. The HCL implementation lives in internal/hcl.
package config

// Package registry provides the central "glue" for the module system.
//
// Modules register the audits they implement and the artifact definitions
// those audits share. At startup the registry is checked against the loaded
// configuration, so an `audit` block that names no registered audit, or
// options an audit does not understand, fail before any recording is read.
package registry

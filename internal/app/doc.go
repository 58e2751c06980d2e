// Package app contains the core application logic. It defines the App
// struct, its configuration, and the audit lifecycle: load a recording,
// resolve the page graph through the artifact cache, run every enabled
// audit and write the results. It is decoupled from any specific
// entrypoint like a CLI.
package app

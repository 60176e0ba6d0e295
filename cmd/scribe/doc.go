// Package main hosts the scribe CLI entrypoint and command graph.
//
// `scribe transcribe` runs the pipeline once and prints exactly one payload
// on stdout; logs and helper chatter go to stderr. `scribe serve` exposes the
// same pipeline over HTTP. The remaining commands inspect dependencies, job
// history, and configuration.
package main

// Package logging assembles structured slog loggers for the CLI and the HTTP
// server.
//
// It owns the console and JSON handlers, parses levels, fans output out to a
// persistent log file, and exposes context-aware helpers so pipeline code can
// tag log lines with job and request identifiers. A no-op logger is provided
// for tests and wiring code that cannot fail.
package logging

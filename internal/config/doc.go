// Package config loads, normalizes, and validates Scribe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SCRIBE_WHISPER_COMMAND. Always obtain settings through this package so the
// CLI and HTTP server agree on model names, directories, and log formats.
package config

// Package services defines shared utilities consumed by the pipeline and the
// external tool integrations (ffmpeg, whisper).
//
// Key responsibilities:
//   - Context helpers that stamp correlation identifiers and job IDs for
//     logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures with errors.Is (not found, model load, recognition, render).
//
// Use these helpers when wiring new integrations so failure classification
// stays uniform across the CLI and the HTTP server.
package services

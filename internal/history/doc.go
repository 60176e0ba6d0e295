// Package history persists transcription jobs and cached transcripts in
// SQLite.
//
// Every pipeline call appends a Job row. When caching is enabled, successful
// timestamped transcripts are stored under a key derived from the audio
// content hash, model, and language hint, so repeating a request skips
// normalization and recognition. Failed transcripts are never cached.
package history

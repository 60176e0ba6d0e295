// Package pipeline composes normalization, recognition, and rendering into the
// two public operations: Transcribe and GenerateSubtitles.
//
// Only missing input (services.ErrNotFound) and recognizer load failures
// (services.ErrModelLoad) are returned as errors. Every other fault comes back
// as a failed Result so callers only inspect a success flag. The normalizer's
// scoped temp directory is released on every exit path, and a failed
// transcription never reaches the renderer.
package pipeline

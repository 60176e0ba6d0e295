// Package audio converts arbitrary input media into the canonical PCM layout
// the recognizer expects.
//
// Normalize runs ffmpeg into a scoped temporary directory and verifies the
// result with a WAV header check. When conversion fails the original path is
// returned with Fallback set, so recognition can still be attempted on the
// source file. Callers own the returned Canonical and must Close it.
package audio

// Package ffprobe inspects input media before it reaches the normalizer.
//
// Inspect runs ffprobe and decodes its JSON report; Summary reduces that to
// the facts transcription cares about (audio streams, duration, container).
// BinaryFor locates ffprobe next to the configured ffmpeg binary.
package ffprobe

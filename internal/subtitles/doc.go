// Package subtitles renders transcripts into SRT, WebVTT, and JSON documents.
//
// Rendering is a pure function of a transcript and a Format: the same inputs
// always produce byte-identical content. Timestamps are truncated to whole
// milliseconds, never rounded, so a cue can not spill into the next second.
package subtitles

package pipeline

import (
	"encoding/json"
	"time"

	"scribe/internal/history"
	"scribe/internal/subtitles"
	"scribe/internal/transcript"
)

// Options carries per-call overrides. Empty fields use configured defaults.
type Options struct {
	Model    string
	Language string
}

// Result is the outcome of one pipeline call.
type Result struct {
	JobID      string
	Mode       history.Mode
	Transcript transcript.Transcript
	// Document is set only when subtitle rendering succeeded.
	Document *subtitles.Document
	// Error describes a failure after transcription, such as a render error.
	Error          string
	Fallback       bool
	FallbackReason string
	CacheHit       bool
	Elapsed        time.Duration
}

// Success reports whether the call produced its primary payload.
func (r Result) Success() bool {
	if r.Error != "" || !r.Transcript.Success {
		return false
	}
	if r.Mode == history.ModeSubtitles {
		return r.Document != nil
	}
	return true
}

// ErrorMessage returns the failure description, or "" on success.
func (r Result) ErrorMessage() string {
	if r.Error != "" {
		return r.Error
	}
	if !r.Transcript.Success {
		return r.Transcript.Error
	}
	return ""
}

type failurePayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// MarshalJSON emits exactly one payload: the subtitle document, the
// transcript, or a failure object.
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Success() {
		return json.Marshal(failurePayload{Success: false, Error: r.ErrorMessage()})
	}
	if r.Document != nil {
		return json.Marshal(r.Document)
	}
	return json.Marshal(r.Transcript)
}

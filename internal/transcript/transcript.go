package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// UnknownLanguage is reported when the recognizer cannot determine a language.
const UnknownLanguage = "unknown"

// Segment is a single timed span of recognized text, in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// NewSegment trims text and keeps timings untouched. Empty text is preserved so
// segment count and numbering stay aligned with the recognizer.
func NewSegment(start, end float64, text string) Segment {
	return Segment{Start: start, End: end, Text: strings.TrimSpace(text)}
}

// Transcript is the full recognition result for one audio input.
//
// Segments are only meaningful when Timestamped is true; a plain transcription
// call may skip them. A failed transcript carries Error and no segment data.
type Transcript struct {
	Text        string
	Language    string
	Segments    []Segment
	Timestamped bool
	Success     bool
	Error       string
}

// New builds a successful transcript. When timestamped is false the segments
// argument is ignored.
func New(text, language string, segments []Segment, timestamped bool) Transcript {
	language = strings.TrimSpace(language)
	if language == "" {
		language = UnknownLanguage
	}
	t := Transcript{
		Text:        strings.TrimSpace(text),
		Language:    language,
		Timestamped: timestamped,
		Success:     true,
	}
	if timestamped {
		t.Segments = make([]Segment, len(segments))
		copy(t.Segments, segments)
	}
	return t
}

// Failed builds a failed transcript from err.
func Failed(err error) Transcript {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Transcript{Language: UnknownLanguage, Error: msg}
}

// HasSegments reports whether the transcript succeeded and carries timestamps.
func (t Transcript) HasSegments() bool {
	return t.Success && t.Timestamped
}

// SegmentCount returns the number of segments (zero without timestamps).
func (t Transcript) SegmentCount() int {
	if !t.Timestamped {
		return 0
	}
	return len(t.Segments)
}

// JoinSegmentText concatenates non-empty segment texts with single spaces.
func JoinSegmentText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

type wirePayload struct {
	Text     string     `json:"text"`
	Language string     `json:"language"`
	Success  bool       `json:"success"`
	Segments *[]Segment `json:"segments,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// MarshalJSON emits the self-describing document used by the json subtitle
// format and the CLI. Segments appear (possibly empty) only when timestamped.
func (t Transcript) MarshalJSON() ([]byte, error) {
	payload := wirePayload{
		Text:     t.Text,
		Language: t.Language,
		Success:  t.Success,
		Error:    t.Error,
	}
	if t.Success && t.Timestamped {
		segments := t.Segments
		if segments == nil {
			segments = []Segment{}
		}
		payload.Segments = &segments
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalJSON restores a transcript written by MarshalJSON.
func (t *Transcript) UnmarshalJSON(data []byte) error {
	var payload wirePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode transcript: %w", err)
	}
	*t = Transcript{
		Text:     payload.Text,
		Language: payload.Language,
		Success:  payload.Success,
		Error:    payload.Error,
	}
	if payload.Segments != nil {
		t.Timestamped = true
		t.Segments = *payload.Segments
	}
	return nil
}

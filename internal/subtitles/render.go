package subtitles

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"scribe/internal/services"
	"scribe/internal/transcript"
)

// Document is a rendered subtitle body plus denormalized transcript facts.
type Document struct {
	Format        Format
	Content       string
	SegmentsCount int
	Language      string
}

// MarshalJSON emits the subtitle-mode result payload.
func (d Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Success       bool   `json:"success"`
		Format        string `json:"format"`
		Content       string `json:"content"`
		SegmentsCount int    `json:"segments_count"`
		Language      string `json:"language"`
	}{
		Success:       true,
		Format:        d.Format.String(),
		Content:       d.Content,
		SegmentsCount: d.SegmentsCount,
		Language:      d.Language,
	})
}

// Render converts a transcript into the requested format.
//
// SRT and VTT require a successful transcript with timestamps; JSON accepts any
// successful transcript.
func Render(t transcript.Transcript, format Format) (Document, error) {
	if !format.Valid() {
		return Document{}, services.Wrap(services.ErrUnsupportedFormat, "subtitles", "render", fmt.Sprintf("unsupported subtitle format: %s", format), nil)
	}
	if !t.Success {
		return Document{}, services.Wrap(services.ErrInvalidState, "subtitles", "render", "cannot render subtitles from a failed or timestamp-less transcript", nil)
	}

	var (
		content string
		err     error
	)
	switch format {
	case FormatSRT:
		if !t.Timestamped {
			return Document{}, invalidStateError()
		}
		content = renderSRT(t.Segments)
	case FormatVTT:
		if !t.Timestamped {
			return Document{}, invalidStateError()
		}
		content = renderVTT(t.Segments)
	case FormatJSON:
		content, err = renderJSON(t)
		if err != nil {
			return Document{}, err
		}
	}

	return Document{
		Format:        format,
		Content:       content,
		SegmentsCount: t.SegmentCount(),
		Language:      t.Language,
	}, nil
}

func invalidStateError() error {
	return services.Wrap(services.ErrInvalidState, "subtitles", "render", "cannot render subtitles from a failed or timestamp-less transcript", nil)
}

// renderSRT writes index, timing, text, and a blank line per cue. Each line is
// newline terminated so N cues yield exactly 4N lines.
func renderSRT(segments []transcript.Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteByte('\n')
		b.WriteString(FormatSRTTime(seg.Start))
		b.WriteString(" --> ")
		b.WriteString(FormatSRTTime(seg.End))
		b.WriteByte('\n')
		b.WriteString(strings.TrimSpace(seg.Text))
		b.WriteString("\n\n")
	}
	return b.String()
}

func renderVTT(segments []transcript.Segment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, seg := range segments {
		b.WriteString(FormatVTTTime(seg.Start))
		b.WriteString(" --> ")
		b.WriteString(FormatVTTTime(seg.End))
		b.WriteByte('\n')
		b.WriteString(strings.TrimSpace(seg.Text))
		b.WriteString("\n\n")
	}
	return b.String()
}

func renderJSON(t transcript.Transcript) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return "", fmt.Errorf("encode transcript: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

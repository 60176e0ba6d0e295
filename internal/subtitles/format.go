package subtitles

import (
	"fmt"
	"strings"

	"scribe/internal/services"
)

// Format selects a subtitle rendering variant.
type Format int

const (
	FormatSRT Format = iota + 1
	FormatVTT
	FormatJSON
)

// Formats lists every supported format in display order.
var Formats = []Format{FormatJSON, FormatSRT, FormatVTT}

// ParseFormat maps a selector such as "srt" to a Format.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "srt":
		return FormatSRT, nil
	case "vtt", "webvtt":
		return FormatVTT, nil
	case "json":
		return FormatJSON, nil
	default:
		return 0, services.Wrap(services.ErrUnsupportedFormat, "subtitles", "parse format", fmt.Sprintf("unsupported subtitle format: %s", value), nil)
	}
}

// Valid reports whether f is one of the declared variants.
func (f Format) Valid() bool {
	switch f {
	case FormatSRT, FormatVTT, FormatJSON:
		return true
	}
	return false
}

func (f Format) String() string {
	switch f {
	case FormatSRT:
		return "srt"
	case FormatVTT:
		return "vtt"
	case FormatJSON:
		return "json"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// Extension returns the file extension including the leading dot.
func (f Format) Extension() string {
	return "." + f.String()
}

// ContentType returns the HTTP media type used when serving raw content.
func (f Format) ContentType() string {
	switch f {
	case FormatSRT:
		return "text/plain; charset=utf-8"
	case FormatVTT:
		return "text/vtt; charset=utf-8"
	default:
		return "application/json"
	}
}

// MarshalText lets Format appear as its selector in JSON and TOML.
func (f Format) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, services.Wrap(services.ErrUnsupportedFormat, "subtitles", "marshal format", f.String(), nil)
	}
	return []byte(f.String()), nil
}

func (f *Format) UnmarshalText(data []byte) error {
	parsed, err := ParseFormat(string(data))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

package whisper

import (
	"fmt"
	"strings"
	"time"

	"scribe/internal/language"
)

// Config selects one loaded model instance.
type Config struct {
	Model string
	// Language is a forced language hint, or "auto".
	Language string
	Device   string
	// FP16 enables the half-precision path. Off by default.
	FP16           bool
	WordTimestamps bool
	// Command launches the helper interpreter, e.g. "python3" or "uv run python".
	Command     string
	LoadTimeout time.Duration
	// StateDir holds the helper script and cross-process load locks.
	StateDir string
}

// Defaults used when Config fields are zero.
const (
	DefaultModel       = "tiny"
	DefaultDevice      = "cpu"
	DefaultCommand     = "python3"
	DefaultLoadTimeout = 10 * time.Minute
)

func (c Config) withDefaults() Config {
	c.Model = strings.ToLower(strings.TrimSpace(c.Model))
	if c.Model == "" {
		c.Model = DefaultModel
	}
	c.Language = strings.TrimSpace(c.Language)
	if c.Language == "" {
		c.Language = language.Auto
	}
	c.Device = strings.ToLower(strings.TrimSpace(c.Device))
	if c.Device == "" {
		c.Device = DefaultDevice
	}
	c.Command = strings.TrimSpace(c.Command)
	if c.Command == "" {
		c.Command = DefaultCommand
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = DefaultLoadTimeout
	}
	return c
}

// Key identifies the configuration for registry caching.
func (c Config) Key() string {
	c = c.withDefaults()
	lang := c.Language
	if normalized, err := language.NormalizeHint(lang); err == nil {
		lang = normalized
	}
	return fmt.Sprintf("%s|%s|%s|fp16=%t", c.Model, lang, c.Device, c.FP16)
}

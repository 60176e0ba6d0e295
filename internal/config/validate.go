package config

import (
	"errors"
	"fmt"
	"strings"

	"scribe/internal/language"
	"scribe/internal/subtitles"
)

var supportedModels = map[string]struct{}{
	"tiny": {}, "tiny.en": {},
	"base": {}, "base.en": {},
	"small": {}, "small.en": {},
	"medium": {}, "medium.en": {},
	"large": {}, "large-v1": {}, "large-v2": {}, "large-v3": {},
	"turbo": {}, "large-v3-turbo": {},
}

// IsSupportedModel reports whether name is a Whisper model size the helper can load.
func IsSupportedModel(name string) bool {
	_, ok := supportedModels[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRecognizer(); err != nil {
		return err
	}
	if err := c.validateNormalizer(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateRecognizer() error {
	if !IsSupportedModel(c.Recognizer.Model) {
		return fmt.Errorf("recognizer.model %q is not a supported whisper model", c.Recognizer.Model)
	}
	if _, err := language.NormalizeHint(c.Recognizer.Language); err != nil {
		return fmt.Errorf("recognizer.language: %w", err)
	}
	switch c.Recognizer.Device {
	case "cpu", "cuda", "mps":
	default:
		return fmt.Errorf("recognizer.device must be cpu, cuda, or mps (got %q)", c.Recognizer.Device)
	}
	if c.Recognizer.LoadTimeoutSeconds < 0 {
		return errors.New("recognizer.load_timeout_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateNormalizer() error {
	if c.Normalizer.SampleRate <= 0 {
		return errors.New("normalizer.sample_rate must be positive")
	}
	if c.Normalizer.Channels < 1 {
		return errors.New("normalizer.channels must be at least 1")
	}
	return nil
}

func (c *Config) validateSubtitles() error {
	if _, err := subtitles.ParseFormat(c.Subtitles.DefaultFormat); err != nil {
		return fmt.Errorf("subtitles.default_format: %w", err)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("server.max_upload_mb must be positive")
	}
	if c.Server.MaxConcurrent < 1 {
		return errors.New("server.max_concurrent must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRecognizer()
	c.normalizeNormalizer()
	c.normalizeSubtitles()
	c.normalizeServer()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRecognizer() {
	if value, ok := os.LookupEnv("SCRIBE_WHISPER_COMMAND"); ok && strings.TrimSpace(value) != "" {
		c.Recognizer.Command = value
	}
	c.Recognizer.Command = strings.TrimSpace(c.Recognizer.Command)
	if c.Recognizer.Command == "" {
		c.Recognizer.Command = defaultRecognizerCommand
	}
	c.Recognizer.Model = strings.ToLower(strings.TrimSpace(c.Recognizer.Model))
	if c.Recognizer.Model == "" {
		c.Recognizer.Model = defaultModel
	}
	c.Recognizer.Language = strings.ToLower(strings.TrimSpace(c.Recognizer.Language))
	if c.Recognizer.Language == "" {
		c.Recognizer.Language = defaultLanguage
	}
	c.Recognizer.Device = strings.ToLower(strings.TrimSpace(c.Recognizer.Device))
	if c.Recognizer.Device == "" {
		c.Recognizer.Device = defaultDevice
	}
	if c.Recognizer.LoadTimeoutSeconds == 0 {
		c.Recognizer.LoadTimeoutSeconds = defaultLoadTimeoutSeconds
	}
}

func (c *Config) normalizeNormalizer() {
	c.Normalizer.FFmpegBinary = strings.TrimSpace(c.Normalizer.FFmpegBinary)
	if c.Normalizer.FFmpegBinary == "" {
		c.Normalizer.FFmpegBinary = defaultFFmpegBinary
	}
}

func (c *Config) normalizeSubtitles() {
	c.Subtitles.DefaultFormat = strings.ToLower(strings.TrimSpace(c.Subtitles.DefaultFormat))
	if c.Subtitles.DefaultFormat == "" {
		c.Subtitles.DefaultFormat = defaultSubtitleFormat
	}
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	if value, ok := os.LookupEnv("SCRIBE_API_TOKEN"); ok && strings.TrimSpace(value) != "" {
		c.Server.Token = value
	}
	c.Server.Token = strings.TrimSpace(c.Server.Token)
}

func (c *Config) normalizeLogging() {
	if value, ok := os.LookupEnv("SCRIBE_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

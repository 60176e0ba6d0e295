package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/history"
	"scribe/internal/logging"
	"scribe/internal/pipeline"
	"scribe/internal/services/whisper"
)

// launchRecognizer starts the recognizer engine. Tests replace it.
var launchRecognizer whisper.Launcher = whisper.LaunchHelper

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// newLogger builds the side-channel logger writing to w plus the optional
// log file.
func (c *commandContext) newLogger(w io.Writer) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg, w)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// appRuntime bundles the long-lived pieces a pipeline command needs.
type appRuntime struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *whisper.Registry
	history  *history.Store
	pipeline *pipeline.Service
}

func (r *appRuntime) Close() {
	if r.registry != nil {
		if err := r.registry.Close(); err != nil {
			r.logger.Warn("failed to stop recognizer", logging.Error(err))
		}
	}
	if r.history != nil {
		_ = r.history.Close()
	}
}

func (c *commandContext) newRuntime(cmd *cobra.Command, opts ...pipeline.Option) (*appRuntime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.newLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	rt := &appRuntime{cfg: cfg, logger: logger}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		logging.WarnWithContext(logger, "job history unavailable", "history_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on paths.state_dir"),
			logging.String(logging.FieldImpact, "jobs are not recorded and the transcript cache is disabled"),
			logging.Alert("history_disabled"),
		)
	} else {
		rt.history = store
		opts = append([]pipeline.Option{pipeline.WithHistory(store)}, opts...)
	}

	rt.registry = whisper.NewRegistry(launchRecognizer, logger)
	rt.pipeline = pipeline.NewService(cfg, pipeline.RegistryProvider(rt.registry), logger, opts...)
	return rt, nil
}

func (c *commandContext) openHistory() (*history.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return history.Open(cfg.HistoryPath())
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

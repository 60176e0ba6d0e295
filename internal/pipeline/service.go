package pipeline

import (
	"context"
	"log/slog"
	"time"

	"scribe/internal/config"
	"scribe/internal/history"
	"scribe/internal/logging"
	"scribe/internal/media/audio"
	"scribe/internal/services/whisper"
	"scribe/internal/subtitles"
	"scribe/internal/transcript"
)

// Recognizer produces transcripts from canonical audio.
type Recognizer interface {
	Recognize(ctx context.Context, audioPath string, wantTimestamps bool) transcript.Transcript
}

// ModelProvider hands out loaded recognizers per configuration.
type ModelProvider interface {
	Model(ctx context.Context, cfg whisper.Config) (Recognizer, error)
}

// AudioNormalizer converts input media into canonical audio.
type AudioNormalizer interface {
	Normalize(ctx context.Context, input string) (*audio.Canonical, error)
}

// Renderer converts a transcript into a subtitle document.
type Renderer func(t transcript.Transcript, format subtitles.Format) (subtitles.Document, error)

type registryProvider struct {
	registry *whisper.Registry
}

// RegistryProvider adapts a whisper.Registry to ModelProvider.
func RegistryProvider(registry *whisper.Registry) ModelProvider {
	return registryProvider{registry: registry}
}

func (p registryProvider) Model(ctx context.Context, cfg whisper.Config) (Recognizer, error) {
	model, err := p.registry.Get(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return model, nil
}

// Service runs pipeline calls.
type Service struct {
	config     *config.Config
	models     ModelProvider
	normalizer AudioNormalizer
	render     Renderer
	history    *history.Store
	cache      bool
	hook       func(Event)
	logger     *slog.Logger
	now        func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithNormalizer injects a custom normalizer (used in tests).
func WithNormalizer(n AudioNormalizer) Option {
	return func(s *Service) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// WithRenderer injects a custom renderer (used in tests).
func WithRenderer(r Renderer) Option {
	return func(s *Service) {
		if r != nil {
			s.render = r
		}
	}
}

// WithHistory records every call in store and enables the transcript cache
// when the configuration allows it.
func WithHistory(store *history.Store) Option {
	return func(s *Service) {
		s.history = store
	}
}

// WithEventHook registers a callback for side-channel events such as
// normalization fallback.
func WithEventHook(hook func(Event)) Option {
	return func(s *Service) {
		s.hook = hook
	}
}

// NewService constructs a pipeline service.
func NewService(cfg *config.Config, models ModelProvider, logger *slog.Logger, opts ...Option) *Service {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	svc := &Service{
		config: cfg,
		models: models,
		render: subtitles.Render,
		cache:  cfg.Cache.Enabled,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		now:    time.Now,
	}
	svc.normalizer = audio.NewNormalizer(audio.Options{
		FFmpegBinary: cfg.Normalizer.FFmpegBinary,
		SampleRate:   cfg.Normalizer.SampleRate,
		Channels:     cfg.Normalizer.Channels,
		TempRoot:     cfg.Paths.WorkDir,
		KeepTemp:     cfg.Normalizer.KeepTemp,
	}, logger)
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// ModelConfig builds the recognizer configuration for a call, applying
// per-call overrides on top of the configured defaults.
func ModelConfig(cfg *config.Config, opts Options) whisper.Config {
	out := whisper.Config{
		Model:          cfg.Recognizer.Model,
		Language:       cfg.Recognizer.Language,
		Device:         cfg.Recognizer.Device,
		FP16:           cfg.Recognizer.FP16,
		WordTimestamps: cfg.Recognizer.WordTimestamps,
		Command:        cfg.Recognizer.Command,
		LoadTimeout:    time.Duration(cfg.Recognizer.LoadTimeoutSeconds) * time.Second,
		StateDir:       cfg.Paths.StateDir,
	}
	if opts.Model != "" {
		out.Model = opts.Model
	}
	if opts.Language != "" {
		out.Language = opts.Language
	}
	return out
}

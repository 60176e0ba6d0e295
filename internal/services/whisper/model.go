package whisper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"scribe/internal/language"
	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/textutil"
	"scribe/internal/transcript"
)

const lockRetryDelay = 250 * time.Millisecond

// Model is one loaded recognizer instance. Recognize calls are serialized.
type Model struct {
	cfg      Config
	hint     string
	engine   Engine
	logger   *slog.Logger
	loadedAt time.Time

	mu      sync.Mutex
	healthy atomic.Bool
}

// Load starts an engine for cfg. Failures are tagged ErrModelLoad. When
// cfg.StateDir is set, a file lock serializes loads of the same model size
// across processes so weights are downloaded once.
func Load(ctx context.Context, cfg Config, launcher Launcher, logger *slog.Logger) (*Model, error) {
	cfg = cfg.withDefaults()
	logger = logging.NewComponentLogger(logger, "whisper").With(
		logging.String(logging.FieldModel, cfg.Model),
		logging.String("device", cfg.Device),
	)
	if launcher == nil {
		launcher = LaunchHelper
	}

	hint, err := language.NormalizeHint(cfg.Language)
	if err != nil {
		return nil, services.Wrap(services.ErrModelLoad, "whisper", "load", "invalid language hint", err)
	}
	if hint == language.Auto {
		hint = ""
	}

	loadCtx, cancel := context.WithTimeout(ctx, cfg.LoadTimeout)
	defer cancel()

	if cfg.StateDir != "" {
		unlock, err := acquireLoadLock(loadCtx, cfg)
		if err != nil {
			return nil, services.Wrap(services.ErrModelLoad, "whisper", "lock", fmt.Sprintf("model %s", cfg.Model), err)
		}
		defer unlock()
	}

	logger.Info("loading whisper model",
		logging.String(logging.FieldLanguage, cfg.Language),
		logging.Bool("fp16", cfg.FP16),
	)
	started := time.Now()
	engine, err := launcher(loadCtx, cfg, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "whisper model failed to load", "model_load_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check recognizer.command and that openai-whisper is installed"),
		)
		return nil, services.Wrap(services.ErrModelLoad, "whisper", "load", fmt.Sprintf("model %s", cfg.Model), err)
	}
	logger.Info("whisper model loaded", logging.Duration("elapsed", time.Since(started)))

	m := &Model{
		cfg:      cfg,
		hint:     hint,
		engine:   engine,
		logger:   logger,
		loadedAt: time.Now(),
	}
	m.healthy.Store(true)
	return m, nil
}

func acquireLoadLock(ctx context.Context, cfg Config) (func(), error) {
	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure state dir: %w", err)
	}
	lockPath := filepath.Join(cfg.StateDir, "model-"+textutil.SanitizeToken(cfg.Model)+".lock")
	lock := flock.New(lockPath)
	ok, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", lockPath, err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire %s: lock busy", lockPath)
	}
	return func() { _ = lock.Unlock() }, nil
}

// Config returns the configuration the model was loaded with.
func (m *Model) Config() Config {
	return m.cfg
}

// LoadedAt reports when the engine became ready.
func (m *Model) LoadedAt() time.Time {
	return m.loadedAt
}

// Healthy reports whether the engine can accept requests. A cancelled
// request or an ErrEngineBroken failure tears the engine down and clears
// this flag.
func (m *Model) Healthy() bool {
	return m.healthy.Load()
}

// Recognize transcribes canonical audio. It never returns an error: failures
// and engine panics become a failed transcript. Segment timings are passed
// through unchanged; contract violations are logged, not corrected.
func (m *Model) Recognize(ctx context.Context, audioPath string, wantTimestamps bool) (out transcript.Transcript) {
	m.mu.Lock()
	defer m.mu.Unlock()

	logger := logging.WithContext(ctx, m.logger)
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "recognizer panicked", "recognizer_panic",
				logging.String("panic", fmt.Sprint(r)),
			)
			out = transcript.Failed(services.Wrap(services.ErrRecognition, "whisper", "recognize", fmt.Sprintf("recognizer panic: %v", r), nil))
		}
	}()

	if !m.healthy.Load() {
		return transcript.Failed(services.Wrap(services.ErrRecognition, "whisper", "recognize", "model is not loaded", nil))
	}

	started := time.Now()
	raw, err := m.engine.Recognize(ctx, Request{
		AudioPath:      audioPath,
		Language:       m.hint,
		WordTimestamps: wantTimestamps && m.cfg.WordTimestamps,
		FP16:           m.cfg.FP16,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			m.markUnhealthy(logger, ctxErr)
			err = ctxErr
		} else if errors.Is(err, ErrEngineBroken) {
			m.markUnhealthy(logger, err)
		}
		logging.WarnWithContext(logger, "recognition failed", "recognition_failed",
			logging.Error(err),
			logging.String(logging.FieldAudioPath, audioPath),
			logging.String(logging.FieldImpact, "request returns a failed transcript"),
		)
		return transcript.Failed(services.Wrap(services.ErrRecognition, "whisper", "recognize", "", err))
	}

	segments := make([]transcript.Segment, 0, len(raw.Segments))
	for _, seg := range raw.Segments {
		segments = append(segments, transcript.NewSegment(seg.Start, seg.End, seg.Text))
	}
	if violations := transcript.CheckSegments(segments); len(violations) > 0 {
		reasons := make([]string, 0, len(violations))
		for _, v := range violations {
			reasons = append(reasons, v.String())
		}
		logging.WarnWithContext(logger, "recognizer returned segments that break the timing contract", "segment_contract_violation",
			logging.Int("violations", len(violations)),
			logging.Any("details", reasons),
			logging.String(logging.FieldImpact, "subtitle cues may have negative duration or overlap"),
			logging.String(logging.FieldErrorHint, "segments are passed through unchanged"),
		)
	}

	text := raw.Text
	if text == "" {
		text = transcript.JoinSegmentText(segments)
	}
	detected := raw.Language
	if detected == "" && m.hint != "" {
		detected = m.hint
	}
	out = transcript.New(text, detected, segments, wantTimestamps)

	logger.Debug("recognition complete",
		logging.String(logging.FieldLanguage, out.Language),
		logging.Int("segments", len(segments)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return out
}

func (m *Model) markUnhealthy(logger *slog.Logger, cause error) {
	if !m.healthy.CompareAndSwap(true, false) {
		return
	}
	logging.WarnWithContext(logger, "recognizer engine unusable; unloading model", "model_unloaded",
		logging.Error(cause),
		logging.String(logging.FieldImpact, "the next request reloads the model"),
	)
	if err := m.engine.Close(); err != nil {
		logger.Debug("engine close after unload failed", logging.Error(err))
	}
}

// Close releases the engine.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wasHealthy := m.healthy.Swap(false)
	if !wasHealthy {
		return nil
	}
	if err := m.engine.Close(); err != nil {
		return fmt.Errorf("close whisper engine: %w", err)
	}
	return nil
}

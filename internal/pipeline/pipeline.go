package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"scribe/internal/config"
	"scribe/internal/fileutil"
	"scribe/internal/history"
	"scribe/internal/language"
	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/services/whisper"
	"scribe/internal/subtitles"
	"scribe/internal/transcript"
)

// Transcribe recognizes audio without timestamps.
func (s *Service) Transcribe(ctx context.Context, audioPath string, opts Options) (Result, error) {
	return s.run(ctx, audioPath, opts, history.ModeTranscribe, subtitles.FormatJSON)
}

// TranscribeWithTimestamps recognizes audio and keeps segment timings.
func (s *Service) TranscribeWithTimestamps(ctx context.Context, audioPath string, opts Options) (Result, error) {
	return s.run(ctx, audioPath, opts, history.ModeTranscribe, subtitles.FormatJSON, withTimestamps())
}

// GenerateSubtitles transcribes with timestamps and renders format. A failed
// transcription is returned as-is; the renderer is not invoked.
func (s *Service) GenerateSubtitles(ctx context.Context, audioPath string, format subtitles.Format, opts Options) (Result, error) {
	return s.run(ctx, audioPath, opts, history.ModeSubtitles, format)
}

type runOption func(*runState)

type runState struct {
	wantTimestamps bool
}

func withTimestamps() runOption {
	return func(r *runState) { r.wantTimestamps = true }
}

func (s *Service) run(ctx context.Context, audioPath string, opts Options, mode history.Mode, format subtitles.Format, extra ...runOption) (Result, error) {
	state := runState{wantTimestamps: mode == history.ModeSubtitles}
	for _, fn := range extra {
		fn(&state)
	}

	jobID := uuid.NewString()
	ctx = services.WithJobID(ctx, jobID)
	logger := logging.WithContext(ctx, s.logger)
	started := s.now()

	cfg := ModelConfig(s.config, opts)
	res := Result{JobID: jobID, Mode: mode}
	job := history.Job{
		ID:           jobID,
		CreatedAt:    started,
		SourcePath:   audioPath,
		Model:        strings.ToLower(strings.TrimSpace(cfg.Model)),
		LanguageHint: cfg.Language,
		Mode:         mode,
	}
	if mode == history.ModeSubtitles {
		job.Format = format.String()
	}

	finish := func(err error) (Result, error) {
		res.Elapsed = s.now().Sub(started)
		job.Elapsed = res.Elapsed
		job.Success = err == nil && res.Success()
		job.Fallback = res.Fallback
		job.CacheHit = res.CacheHit
		if err != nil {
			job.ErrorMessage = err.Error()
		} else {
			job.ErrorMessage = res.ErrorMessage()
			job.DetectedLanguage = res.Transcript.Language
			job.SegmentCount = res.Transcript.SegmentCount()
		}
		s.record(ctx, logger, job)
		if err != nil {
			return res, err
		}
		logger.Info("pipeline call finished",
			logging.String("mode", string(mode)),
			logging.Bool("success", res.Success()),
			logging.Bool("cache_hit", res.CacheHit),
			logging.Bool("normalization_fallback", res.Fallback),
			logging.Duration("elapsed", res.Elapsed),
		)
		return res, nil
	}

	if mode == history.ModeSubtitles && !format.Valid() {
		res.Transcript = transcript.Failed(nil)
		res.Error = services.Wrap(services.ErrUnsupportedFormat, "pipeline", "generate subtitles", fmt.Sprintf("unsupported subtitle format: %s", format), nil).Error()
		return finish(nil)
	}

	if !config.IsSupportedModel(cfg.Model) {
		return finish(services.Wrap(services.ErrModelLoad, "pipeline", "select model", fmt.Sprintf("unsupported model %q", cfg.Model), nil))
	}

	hash, err := fileutil.HashFile(audioPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || strings.TrimSpace(audioPath) == "" {
			return finish(services.Wrap(services.ErrNotFound, "pipeline", "open input", fmt.Sprintf("audio file not found: %s", audioPath), err))
		}
		logger.Debug("hash input failed; cache disabled for this call", logging.Error(err))
		hash = ""
	}
	job.SourceHash = hash

	cacheKey := ""
	if s.cacheEnabled() && hash != "" {
		if hint, hintErr := language.NormalizeHint(cfg.Language); hintErr == nil {
			cacheKey = history.CacheKey(hash, history.CacheSettings{
				Model:          cfg.Model,
				LanguageHint:   hint,
				Device:         cfg.Device,
				FP16:           cfg.FP16,
				WordTimestamps: cfg.WordTimestamps,
			})
		}
	}

	tr, hit := s.lookupCache(ctx, logger, cacheKey)
	if hit {
		res.CacheHit = true
		s.emit(Event{Kind: EventCacheHit, JobID: jobID, Source: audioPath})
		logger.Info("transcript served from cache", logging.String("source_hash", hash))
		if !state.wantTimestamps {
			tr = transcript.New(tr.Text, tr.Language, nil, false)
		}
	} else {
		recognizer, err := s.models.Model(ctx, cfg)
		if err != nil {
			if !errors.Is(err, services.ErrModelLoad) {
				err = services.Wrap(services.ErrModelLoad, "pipeline", "load model", cfg.Model, err)
			}
			return finish(err)
		}

		canonical, err := s.normalizer.Normalize(ctx, audioPath)
		if err != nil {
			if services.IsFatal(err) {
				return finish(err)
			}
			res.Transcript = transcript.Failed(services.Wrap(services.ErrRecognition, "pipeline", "normalize", "", err))
			s.emit(Event{Kind: EventRecognitionFailed, JobID: jobID, Source: audioPath, Detail: res.Transcript.Error})
			return finish(nil)
		}
		defer func() {
			if closeErr := canonical.Close(); closeErr != nil {
				logger.Warn("failed to remove normalized audio",
					logging.Error(closeErr),
					logging.String(logging.FieldEventType, "temp_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "remove the scribe-audio-* directory under paths.work_dir"),
					logging.String(logging.FieldImpact, "temporary audio remains on disk"),
				)
			}
		}()
		if canonical.Fallback {
			res.Fallback = true
			res.FallbackReason = canonical.FallbackReason
			s.emit(Event{Kind: EventNormalizationFallback, JobID: jobID, Source: audioPath, Detail: canonical.FallbackReason})
		}

		tr = recognizer.Recognize(ctx, canonical.Path, state.wantTimestamps)
		if !tr.Success {
			s.emit(Event{Kind: EventRecognitionFailed, JobID: jobID, Source: audioPath, Detail: tr.Error})
		} else if cacheKey != "" && tr.HasSegments() {
			s.storeCache(ctx, logger, cacheKey, hash, cfg, tr)
		}
	}
	res.Transcript = tr

	if mode != history.ModeSubtitles || !tr.Success {
		return finish(nil)
	}

	doc, err := s.render(tr, format)
	if err != nil {
		logging.WarnWithContext(logger, "subtitle rendering failed", "render_failed",
			logging.Error(err),
			logging.String(logging.FieldFormat, format.String()),
			logging.String(logging.FieldImpact, "no subtitle content returned"),
		)
		res.Error = err.Error()
		return finish(nil)
	}
	if doc.Format != subtitles.FormatJSON {
		first, last, _ := subtitles.Bounds(doc.Content)
		logger.Debug("subtitles rendered",
			logging.String(logging.FieldFormat, doc.Format.String()),
			logging.Int("cues", subtitles.CountCues(doc.Content)),
			logging.Float64("first_cue_start", first),
			logging.Float64("last_cue_end", last),
		)
	}
	res.Document = &doc
	return finish(nil)
}

func (s *Service) cacheEnabled() bool {
	return s.cache && s.history != nil
}

func (s *Service) lookupCache(ctx context.Context, logger *slog.Logger, key string) (transcript.Transcript, bool) {
	if key == "" {
		return transcript.Transcript{}, false
	}
	tr, ok, err := s.history.LookupTranscript(ctx, key)
	if err != nil {
		logger.Warn("transcript cache lookup failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "cache_lookup_failed"),
			logging.String(logging.FieldErrorHint, "delete the history database to reset the cache"),
			logging.String(logging.FieldImpact, "audio is transcribed again"),
		)
		return transcript.Transcript{}, false
	}
	if ok && !tr.HasSegments() {
		return transcript.Transcript{}, false
	}
	return tr, ok
}

func (s *Service) storeCache(ctx context.Context, logger *slog.Logger, key, hash string, cfg whisper.Config, tr transcript.Transcript) {
	if err := s.history.StoreTranscript(ctx, key, hash, cfg.Model, cfg.Language, tr); err != nil {
		logger.Warn("transcript cache store failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "cache_store_failed"),
			logging.String(logging.FieldErrorHint, "check permissions on paths.state_dir"),
			logging.String(logging.FieldImpact, "next identical request is transcribed again"),
		)
	}
}

func (s *Service) record(ctx context.Context, logger *slog.Logger, job history.Job) {
	if s.history == nil {
		return
	}
	// History must outlive a cancelled request.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.history.Record(recordCtx, job); err != nil {
		logger.Warn("failed to record job history",
			logging.Error(err),
			logging.String(logging.FieldEventType, "history_record_failed"),
			logging.String(logging.FieldErrorHint, "check permissions on paths.state_dir"),
			logging.String(logging.FieldImpact, "job missing from scribe history"),
		)
	}
}

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"scribe/internal/config"
	"scribe/internal/language"
	"scribe/internal/logging"
	"scribe/internal/pipeline"
	"scribe/internal/services"
	"scribe/internal/services/whisper"
	"scribe/internal/subtitles"
)

const (
	endpointTranscribe = "transcribe"
	endpointSubtitles  = "generate_subtitles"
)

type jobRequest struct {
	id        string
	audioPath string
	size      int64
	opts      pipeline.Options
	format    subtitles.Format
	subtitles bool
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	outcome := "error"
	defer func() { s.observe(endpointTranscribe, outcome, started) }()

	req, cleanup, ok := s.prepare(w, r, "json", true)
	if !ok {
		outcome = "bad_request"
		return
	}
	defer cleanup()
	ctx := services.WithRequestID(r.Context(), req.id)

	res, runErr := s.dispatch(ctx, req, func(ctx context.Context) (pipeline.Result, error) {
		if req.subtitles {
			return s.pipeline.GenerateSubtitles(ctx, req.audioPath, req.format, req.opts)
		}
		return s.pipeline.TranscribeWithTimestamps(ctx, req.audioPath, req.opts)
	})
	if runErr != nil {
		s.writeRunError(w, "Failed to transcribe audio", runErr)
		return
	}
	if !res.Success() {
		outcome = "failure"
		s.writeError(w, http.StatusInternalServerError, "Failed to transcribe audio", res.ErrorMessage())
		return
	}
	outcome = "success"
	s.writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: res})
}

func (s *Server) handleGenerateSubtitles(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	outcome := "error"
	defer func() { s.observe(endpointSubtitles, outcome, started) }()

	req, cleanup, ok := s.prepare(w, r, s.cfg.Subtitles.DefaultFormat, false)
	if !ok {
		outcome = "bad_request"
		return
	}
	defer cleanup()
	ctx := services.WithRequestID(r.Context(), req.id)

	res, runErr := s.dispatch(ctx, req, func(ctx context.Context) (pipeline.Result, error) {
		return s.pipeline.GenerateSubtitles(ctx, req.audioPath, req.format, req.opts)
	})
	if runErr != nil {
		s.writeRunError(w, "Failed to generate subtitles", runErr)
		return
	}
	if !res.Success() {
		outcome = "failure"
		s.writeError(w, http.StatusInternalServerError, "Failed to generate subtitles", res.ErrorMessage())
		return
	}
	outcome = "success"

	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="subtitles%s"`, req.format.Extension()))
	if req.format == subtitles.FormatJSON {
		s.writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: res})
		return
	}
	w.Header().Set("Content-Type", req.format.ContentType())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(res.Document.Content)); err != nil {
		s.logger.Warn("failed to write subtitle response", logging.Error(err))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	payload := StatusResponse{
		Dispatcher:   s.dispatcher.Status(),
		LoadedModels: []whisper.LoadedModel{},
		Dependencies: convertDependencies(s.deps()),
	}
	if s.models != nil {
		if loaded := s.models(); loaded != nil {
			payload.LoadedModels = loaded
		}
	}
	if s.history != nil {
		stats, err := s.history.Stats(r.Context())
		if err != nil {
			s.logger.Warn("failed to read history stats", logging.Error(err))
		} else {
			payload.History = &stats
		}
	}
	s.writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: payload})
}

// prepare validates the request, stores the upload, and returns a cleanup
// that removes every temp file. On failure it has already written a 4xx.
func (s *Server) prepare(w http.ResponseWriter, r *http.Request, defaultFormat string, subtitleFlag bool) (jobRequest, func(), bool) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return jobRequest{}, nil, false
	}
	req := jobRequest{id: uuid.NewString()}
	w.Header().Set("X-Request-ID", req.id)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes())
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.writeError(w, http.StatusRequestEntityTooLarge, "Audio file too large",
				fmt.Sprintf("limit is %d MB", s.cfg.Server.MaxUploadMB))
			return jobRequest{}, nil, false
		}
		s.writeError(w, http.StatusBadRequest, "No audio file provided", err.Error())
		return jobRequest{}, nil, false
	}
	removeForm := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	probe, _, err := r.FormFile(uploadField)
	if err != nil {
		removeForm()
		s.writeError(w, http.StatusBadRequest, "No audio file provided", "")
		return jobRequest{}, nil, false
	}
	_ = probe.Close()

	if err := s.parseOptions(r, &req, defaultFormat, subtitleFlag); err != nil {
		removeForm()
		s.writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return jobRequest{}, nil, false
	}

	if err := os.MkdirAll(s.cfg.Paths.WorkDir, 0o755); err != nil {
		removeForm()
		s.writeError(w, http.StatusInternalServerError, "Failed to store upload", err.Error())
		return jobRequest{}, nil, false
	}
	dir, err := os.MkdirTemp(s.cfg.Paths.WorkDir, "scribe-upload-")
	if err != nil {
		removeForm()
		s.writeError(w, http.StatusInternalServerError, "Failed to store upload", err.Error())
		return jobRequest{}, nil, false
	}
	cleanup := func() {
		removeForm()
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("failed to remove upload directory",
				logging.Error(err),
				logging.String(logging.FieldEventType, "upload_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "remove scribe-upload-* under paths.work_dir"),
				logging.String(logging.FieldImpact, "uploaded audio remains on disk"),
			)
		}
	}

	path, size, err := saveUpload(r, dir)
	if err != nil {
		cleanup()
		s.writeError(w, http.StatusInternalServerError, "Failed to store upload", err.Error())
		return jobRequest{}, nil, false
	}
	req.audioPath = path
	req.size = size
	s.metrics.UploadBytes.Add(float64(size))
	return req, cleanup, true
}

func (s *Server) parseOptions(r *http.Request, req *jobRequest, defaultFormat string, subtitleFlag bool) error {
	formatValue := strings.TrimSpace(r.FormValue("format"))
	if formatValue == "" {
		formatValue = defaultFormat
	}
	format, err := subtitles.ParseFormat(formatValue)
	if err != nil {
		return err
	}
	req.format = format

	model := strings.ToLower(strings.TrimSpace(r.FormValue("model")))
	if model != "" && !config.IsSupportedModel(model) {
		return fmt.Errorf("unsupported model %q", model)
	}
	req.opts.Model = model

	lang := strings.TrimSpace(r.FormValue("language"))
	if lang == "" {
		lang = language.Auto
	}
	if _, err := language.NormalizeHint(lang); err != nil {
		return err
	}
	req.opts.Language = lang

	if subtitleFlag {
		if raw := strings.TrimSpace(r.FormValue("subtitles")); raw != "" {
			flag, err := strconv.ParseBool(raw)
			if err != nil {
				return fmt.Errorf("subtitles must be true or false: %w", err)
			}
			req.subtitles = flag
		}
	}
	return nil
}

// dispatch runs fn through the dispatcher. A non-nil error means no usable
// result exists: the call was fatal or never ran.
func (s *Server) dispatch(ctx context.Context, req jobRequest, fn func(context.Context) (pipeline.Result, error)) (pipeline.Result, error) {
	var (
		res    pipeline.Result
		runErr error
		ran    bool
	)
	err := s.dispatcher.Do(ctx, req.id, func(ctx context.Context) error {
		ran = true
		res, runErr = fn(ctx)
		if runErr != nil {
			return runErr
		}
		if !res.Success() {
			return errors.New(res.ErrorMessage())
		}
		return nil
	})
	if runErr != nil {
		return res, runErr
	}
	if !ran {
		return res, err
	}
	return res, nil
}

func (s *Server) writeRunError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusServiceUnavailable
	}
	s.logger.Warn("pipeline call aborted",
		logging.Error(err),
		logging.String(logging.FieldEventType, "request_aborted"),
		logging.String(logging.FieldErrorHint, "check recognizer.command and model availability"),
		logging.String(logging.FieldImpact, "request returned an error"),
	)
	s.writeError(w, status, message, err.Error())
}

func (s *Server) observe(endpoint, outcome string, started time.Time) {
	s.metrics.Requests.WithLabelValues(endpoint, outcome).Inc()
	s.metrics.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"scribe/internal/config"
	"scribe/internal/deps"
	"scribe/internal/dispatch"
	"scribe/internal/history"
	"scribe/internal/logging"
	"scribe/internal/pipeline"
	"scribe/internal/services/whisper"
	"scribe/internal/subtitles"
)

// Pipeline is the subset of pipeline.Service the server drives.
type Pipeline interface {
	TranscribeWithTimestamps(ctx context.Context, audioPath string, opts pipeline.Options) (pipeline.Result, error)
	GenerateSubtitles(ctx context.Context, audioPath string, format subtitles.Format, opts pipeline.Options) (pipeline.Result, error)
}

// Server is the HTTP front end.
type Server struct {
	cfg        *config.Config
	pipeline   Pipeline
	dispatcher *dispatch.Dispatcher
	metrics    *Metrics
	history    *history.Store
	models     func() []whisper.LoadedModel
	deps       func() []deps.Status
	logger     *slog.Logger

	handler  http.Handler
	server   *http.Server
	listener net.Listener
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics uses m instead of a fresh collector set.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithHistory adds job statistics to /api/status.
func WithHistory(store *history.Store) Option {
	return func(s *Server) {
		s.history = store
	}
}

// WithLoadedModels reports loaded recognizers on /api/status.
func WithLoadedModels(fn func() []whisper.LoadedModel) Option {
	return func(s *Server) {
		s.models = fn
	}
}

// WithDependencyCheck overrides the dependency probe (used in tests).
func WithDependencyCheck(fn func() []deps.Status) Option {
	return func(s *Server) {
		if fn != nil {
			s.deps = fn
		}
	}
}

// New constructs a server. A nil dispatcher gets one sized by
// server.max_concurrent.
func New(cfg *config.Config, p Pipeline, d *dispatch.Dispatcher, logger *slog.Logger, opts ...Option) *Server {
	if d == nil {
		d = dispatch.New(cfg.Server.MaxConcurrent, logger)
	}
	s := &Server{
		cfg:        cfg,
		pipeline:   p,
		dispatcher: d,
		logger:     logging.NewComponentLogger(logger, "api-server"),
		deps:       func() []deps.Status { return deps.Report(cfg) },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	s.metrics.observeDispatcher(d)

	token := cfg.Server.Token
	mux := http.NewServeMux()
	mux.HandleFunc("/api/transcribe", s.authMiddleware(token, s.handleTranscribe))
	mux.HandleFunc("/api/generate-subtitles", s.authMiddleware(token, s.handleGenerateSubtitles))
	mux.HandleFunc("/api/status", s.authMiddleware(token, s.handleStatus))
	mux.HandleFunc("/api/queue/concurrency", s.authMiddleware(token, s.handleQueueConcurrency))
	mux.HandleFunc("/api/queue/reset-stats", s.authMiddleware(token, s.handleQueueResetStats))
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.handler = mux

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on server.bind and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Server.Bind)
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once Start succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight handlers.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message, details string) {
	s.writeJSON(w, status, ErrorResponse{Success: false, Error: message, Details: details})
}

package whisper

import (
	"context"
	"errors"
	"log/slog"
)

// ErrEngineBroken marks engine failures after which the engine can no longer
// serve requests. Model unloads itself when it sees one.
var ErrEngineBroken = errors.New("recognizer engine is not usable")

// Request is one recognition call sent to an engine.
type Request struct {
	AudioPath string
	// Language is an ISO code; empty requests auto-detection.
	Language       string
	WordTimestamps bool
	FP16           bool
}

// RawSegment mirrors the recognizer's native segment structure.
type RawSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the recognizer's native output before mapping.
type Result struct {
	Text     string       `json:"text"`
	Language string       `json:"language"`
	Segments []RawSegment `json:"segments"`
}

// Engine is a loaded recognizer. Implementations are not required to be
// safe for concurrent use; Model serializes calls.
type Engine interface {
	Recognize(ctx context.Context, req Request) (Result, error)
	Close() error
}

// Launcher loads an engine for cfg. It returns once the engine is ready.
type Launcher func(ctx context.Context, cfg Config, logger *slog.Logger) (Engine, error)

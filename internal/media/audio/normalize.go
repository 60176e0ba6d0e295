package audio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-audio/wav"

	"scribe/internal/logging"
	"scribe/internal/services"
)

const (
	// DefaultSampleRate is the rate Whisper models are trained on.
	DefaultSampleRate = 16000
	// DefaultChannels is mono.
	DefaultChannels = 1

	canonicalBitDepth = 16
	canonicalName     = "canonical.wav"
)

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Options configures a Normalizer.
type Options struct {
	FFmpegBinary string
	SampleRate   int
	Channels     int
	// TempRoot is the parent for scoped temp dirs; empty uses os.TempDir.
	TempRoot string
	// KeepTemp leaves converted files on disk after Close.
	KeepTemp bool
}

// Normalizer converts media files into canonical PCM WAV.
type Normalizer struct {
	opts   Options
	logger *slog.Logger
	run    CommandRunner
}

// NewNormalizer constructs a normalizer, filling zero options with defaults.
func NewNormalizer(opts Options, logger *slog.Logger) *Normalizer {
	if strings.TrimSpace(opts.FFmpegBinary) == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultSampleRate
	}
	if opts.Channels <= 0 {
		opts.Channels = DefaultChannels
	}
	n := &Normalizer{
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "normalizer"),
	}
	n.run = n.execCommand
	return n
}

// WithCommandRunner sets a custom command runner (for testing).
func (n *Normalizer) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		n.run = runner
	}
}

// Canonical is an owned handle on normalized audio.
type Canonical struct {
	// Path is the file the recognizer should read.
	Path string
	// Source is the caller's original input.
	Source string
	// Fallback is set when conversion failed and Path equals Source.
	Fallback       bool
	FallbackReason string
	// Duration is read from the verified WAV header; zero on fallback.
	Duration time.Duration

	dir       string
	keep      bool
	closeOnce sync.Once
	closeErr  error
}

// Dir returns the scoped temp directory, or "" on fallback.
func (c *Canonical) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

// Close removes the scoped temp directory. It is safe to call more than once.
func (c *Canonical) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		if c.dir == "" || c.keep {
			return
		}
		c.closeErr = os.RemoveAll(c.dir)
	})
	return c.closeErr
}

// Normalize converts input to canonical PCM. A missing input is ErrNotFound;
// conversion failures fall back to the original path and are logged.
func (n *Normalizer) Normalize(ctx context.Context, input string) (*Canonical, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, services.Wrap(services.ErrNotFound, "normalizer", "stat input", "audio path is empty", nil)
	}
	info, err := os.Stat(input)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "normalizer", "stat input", fmt.Sprintf("audio file not found: %s", input), err)
		}
		return nil, services.Wrap(services.ErrNotFound, "normalizer", "stat input", fmt.Sprintf("audio file not readable: %s", input), err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrNotFound, "normalizer", "stat input", fmt.Sprintf("audio path is a directory: %s", input), nil)
	}

	logger := logging.WithContext(ctx, n.logger)

	if root := n.opts.TempRoot; root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return n.fallback(logger, input, "", fmt.Errorf("create temp root: %w", err)), nil
		}
	}
	dir, err := os.MkdirTemp(n.opts.TempRoot, "scribe-audio-")
	if err != nil {
		return n.fallback(logger, input, "", fmt.Errorf("create temp dir: %w", err)), nil
	}
	dest := filepath.Join(dir, canonicalName)

	started := time.Now()
	if err := n.run(ctx, n.opts.FFmpegBinary, n.buildArgs(input, dest)...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			_ = os.RemoveAll(dir)
			return nil, ctxErr
		}
		return n.fallback(logger, input, dir, err), nil
	}

	duration, err := n.verify(dest)
	if err != nil {
		return n.fallback(logger, input, dir, err), nil
	}

	logger.Debug("audio normalized",
		logging.String(logging.FieldAudioPath, input),
		logging.String("canonical_path", dest),
		logging.Duration("audio_duration", duration),
		logging.Duration("elapsed", time.Since(started)),
	)
	return &Canonical{
		Path:     dest,
		Source:   input,
		Duration: duration,
		dir:      dir,
		keep:     n.opts.KeepTemp,
	}, nil
}

func (n *Normalizer) fallback(logger *slog.Logger, input, dir string, cause error) *Canonical {
	if dir != "" && !n.opts.KeepTemp {
		_ = os.RemoveAll(dir)
	}
	reason := "conversion failed"
	if cause != nil {
		reason = cause.Error()
	}
	logging.WarnWithContext(logger, "audio normalization failed; using original file", "normalization_fallback",
		logging.String(logging.FieldAudioPath, input),
		logging.String("reason", reason),
		logging.String(logging.FieldErrorHint, "check that ffmpeg is installed and can decode the input"),
		logging.String(logging.FieldImpact, "recognizer reads the original file; accuracy may suffer"),
	)
	return &Canonical{
		Path:           input,
		Source:         input,
		Fallback:       true,
		FallbackReason: reason,
	}
}

func (n *Normalizer) buildArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", strconv.Itoa(n.opts.Channels),
		"-ar", strconv.Itoa(n.opts.SampleRate),
		"-c:a", "pcm_s16le",
		dest,
	}
}

// verify checks the WAV header matches the requested layout and returns the duration.
func (n *Normalizer) verify(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open converted audio: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, errors.New("converted audio is not a valid wav file")
	}
	if int(dec.SampleRate) != n.opts.SampleRate {
		return 0, fmt.Errorf("converted audio sample rate %d, want %d", dec.SampleRate, n.opts.SampleRate)
	}
	if int(dec.NumChans) != n.opts.Channels {
		return 0, fmt.Errorf("converted audio has %d channels, want %d", dec.NumChans, n.opts.Channels)
	}
	if dec.BitDepth != canonicalBitDepth {
		return 0, fmt.Errorf("converted audio bit depth %d, want %d", dec.BitDepth, canonicalBitDepth)
	}
	duration, err := dec.Duration()
	if err != nil {
		return 0, fmt.Errorf("read converted audio duration: %w", err)
	}
	return duration, nil
}

func (n *Normalizer) execCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", filepath.Base(name), err, strings.TrimSpace(string(output)))
	}
	return nil
}

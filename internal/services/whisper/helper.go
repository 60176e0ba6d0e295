package whisper

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mattn/go-shellwords"
	"golang.org/x/sys/unix"

	"scribe/internal/logging"
)

//go:embed assets/whisper_helper.py
var helperScript []byte

const helperCloseGrace = 5 * time.Second

type readyLine struct {
	Ready bool   `json:"ready"`
	Error string `json:"error"`
}

type requestLine struct {
	ID             int64  `json:"id"`
	Audio          string `json:"audio"`
	Language       string `json:"language,omitempty"`
	WordTimestamps bool   `json:"word_timestamps"`
	FP16           bool   `json:"fp16"`
}

type responseLine struct {
	ID    int64  `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Result
}

// helperEngine drives the embedded Python helper over stdin/stdout.
type helperEngine struct {
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	lines      chan []byte
	done       chan struct{}
	stop       chan struct{}
	scriptPath string
	logger     *slog.Logger

	nextID    int64
	closeOnce sync.Once
	stopOnce  sync.Once
}

// LaunchHelper is the default Launcher. It starts the helper interpreter and
// blocks until the readiness line arrives, ctx ends, or the load timeout hits.
func LaunchHelper(ctx context.Context, cfg Config, logger *slog.Logger) (Engine, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}
	words, err := shellwords.NewParser().Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse recognizer command: %w", err)
	}
	if len(words) == 0 {
		return nil, errors.New("recognizer command is empty")
	}

	scriptPath, err := writeHelperScript(cfg.StateDir)
	if err != nil {
		return nil, err
	}

	args := append(append([]string{}, words[1:]...), scriptPath, "--model", cfg.Model, "--device", cfg.Device)
	cmd := exec.Command(words[0], args...) //nolint:gosec
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		_ = os.Remove(scriptPath)
		return nil, fmt.Errorf("helper stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = os.Remove(scriptPath)
		return nil, fmt.Errorf("helper stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = os.Remove(scriptPath)
		return nil, fmt.Errorf("helper stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		_ = os.Remove(scriptPath)
		return nil, fmt.Errorf("start recognizer helper: %w", err)
	}

	e := &helperEngine{
		cmd:        cmd,
		stdin:      stdin,
		lines:      make(chan []byte, 1),
		done:       make(chan struct{}),
		stop:       make(chan struct{}),
		scriptPath: scriptPath,
		logger:     logger,
	}

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		e.pumpStdout(stdout)
	}()
	go func() {
		defer readers.Done()
		e.pumpStderr(stderr)
	}()
	go func() {
		readers.Wait()
		_ = cmd.Wait()
		close(e.done)
	}()

	timer := time.NewTimer(cfg.LoadTimeout)
	defer timer.Stop()
	select {
	case line, ok := <-e.lines:
		if !ok {
			e.abort()
			return nil, errors.New("recognizer helper exited before reporting readiness")
		}
		var ready readyLine
		if err := json.Unmarshal(line, &ready); err != nil {
			e.abort()
			return nil, fmt.Errorf("decode readiness line: %w", err)
		}
		if !ready.Ready {
			e.abort()
			msg := strings.TrimSpace(ready.Error)
			if msg == "" {
				msg = "helper reported not ready"
			}
			return nil, errors.New(msg)
		}
	case <-timer.C:
		e.abort()
		return nil, fmt.Errorf("recognizer helper not ready after %s", cfg.LoadTimeout)
	case <-ctx.Done():
		e.abort()
		return nil, ctx.Err()
	}
	return e, nil
}

func writeHelperScript(dir string) (string, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("ensure state dir: %w", err)
		}
	}
	f, err := os.CreateTemp(dir, "whisper_helper-*.py")
	if err != nil {
		return "", fmt.Errorf("create helper script: %w", err)
	}
	if _, err := f.Write(helperScript); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write helper script: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close helper script: %w", err)
	}
	return f.Name(), nil
}

func (e *helperEngine) pumpStdout(r io.Reader) {
	defer close(e.lines)
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadBytes('\n')
		if trimmed := strings.TrimSpace(string(line)); trimmed != "" {
			select {
			case e.lines <- []byte(trimmed):
			case <-e.stop:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (e *helperEngine) pumpStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if text := strings.TrimSpace(scanner.Text()); text != "" {
			e.logger.Debug("recognizer helper output", logging.String("line", text))
		}
	}
}

// Recognize sends one request and waits for the matching response. A
// cancelled ctx kills the helper; the engine is unusable afterwards. Transport
// failures (exit, broken pipe, undecodable or out-of-order reply) also kill the
// helper and wrap ErrEngineBroken. An ok:false reply is an ordinary failure.
func (e *helperEngine) Recognize(ctx context.Context, req Request) (Result, error) {
	e.nextID++
	payload, err := json.Marshal(requestLine{
		ID:             e.nextID,
		Audio:          req.AudioPath,
		Language:       req.Language,
		WordTimestamps: req.WordTimestamps,
		FP16:           req.FP16,
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}
	if _, err := e.stdin.Write(append(payload, '\n')); err != nil {
		e.kill()
		return Result{}, fmt.Errorf("%w: send request: %w", ErrEngineBroken, err)
	}

	select {
	case line, ok := <-e.lines:
		if !ok {
			return Result{}, fmt.Errorf("%w: helper exited unexpectedly", ErrEngineBroken)
		}
		var resp responseLine
		if err := json.Unmarshal(line, &resp); err != nil {
			e.kill()
			return Result{}, fmt.Errorf("%w: decode helper response %q: %w", ErrEngineBroken, truncateLine(line), err)
		}
		if resp.ID != e.nextID {
			e.kill()
			return Result{}, fmt.Errorf("%w: helper response id %d does not match request %d", ErrEngineBroken, resp.ID, e.nextID)
		}
		if !resp.OK {
			msg := strings.TrimSpace(resp.Error)
			if msg == "" {
				msg = "recognizer reported failure"
			}
			return Result{}, errors.New(msg)
		}
		return resp.Result, nil
	case <-ctx.Done():
		e.kill()
		return Result{}, ctx.Err()
	}
}

func truncateLine(line []byte) string {
	const limit = 120
	if len(line) > limit {
		return string(line[:limit]) + "..."
	}
	return string(line)
}

// Close asks the helper to exit by closing stdin, then kills it after a grace period.
func (e *helperEngine) Close() error {
	e.closeOnce.Do(func() {
		_ = e.stdin.Close()
		select {
		case <-e.done:
		case <-time.After(helperCloseGrace):
			e.kill()
			<-e.done
		}
		_ = os.Remove(e.scriptPath)
	})
	return nil
}

func (e *helperEngine) kill() {
	e.stopOnce.Do(func() { close(e.stop) })
	if e.cmd.Process == nil {
		return
	}
	// The helper runs in its own process group so interpreter wrappers and
	// their children go down together.
	if err := unix.Kill(-e.cmd.Process.Pid, unix.SIGKILL); err != nil {
		_ = e.cmd.Process.Kill()
	}
}

// abort kills the helper during load and releases everything it holds.
func (e *helperEngine) abort() {
	e.kill()
	<-e.done
	_ = os.Remove(e.scriptPath)
}

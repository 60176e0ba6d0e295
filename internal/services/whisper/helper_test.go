package whisper

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scribe/internal/logging"
	"scribe/internal/testsupport"
)

const echoHelper = `echo '{"ready":true}'
echo "downloading weights" >&2
while IFS= read -r line; do
  id=$(echo "$line" | sed -n 's/.*"id":\([0-9]*\).*/\1/p')
  case "$line" in
    *missing*) echo "{\"id\":$id,\"ok\":false,\"error\":\"FileNotFoundError: missing.wav\"}" ;;
    *) echo "{\"id\":$id,\"ok\":true,\"text\":\" hello\",\"language\":\"en\",\"segments\":[{\"start\":0,\"end\":1.2,\"text\":\" hello\"}]}" ;;
  esac
done
`

func stubHelper(t *testing.T, body string) (Config, string) {
	t.Helper()
	stateDir := t.TempDir()
	stub := filepath.Join(t.TempDir(), "fake-python")
	testsupport.WriteScript(t, stub, body)
	return Config{Command: stub, StateDir: stateDir, LoadTimeout: 5 * time.Second, WordTimestamps: true}, stateDir
}

func helperScripts(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "whisper_helper-*.py"))
	if err != nil {
		t.Fatal(err)
	}
	return matches
}

func TestHelperRoundTrip(t *testing.T) {
	cfg, stateDir := stubHelper(t, echoHelper)
	engine, err := LaunchHelper(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("LaunchHelper: %v", err)
	}
	if scripts := helperScripts(t, stateDir); len(scripts) != 1 {
		t.Fatalf("expected helper script written to state dir, got %v", scripts)
	}

	for i := 0; i < 2; i++ {
		res, err := engine.Recognize(context.Background(), Request{AudioPath: "/tmp/a.wav"})
		if err != nil {
			t.Fatalf("Recognize #%d: %v", i, err)
		}
		if res.Language != "en" || len(res.Segments) != 1 || res.Segments[0].End != 1.2 {
			t.Fatalf("unexpected result: %+v", res)
		}
	}

	_, err = engine.Recognize(context.Background(), Request{AudioPath: "/tmp/missing.wav"})
	if err == nil || !strings.Contains(err.Error(), "FileNotFoundError") {
		t.Fatalf("expected helper error, got %v", err)
	}

	if err := engine.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if scripts := helperScripts(t, stateDir); len(scripts) != 0 {
		t.Fatalf("expected helper script removed, got %v", scripts)
	}
}

func TestHelperNotReady(t *testing.T) {
	cfg, stateDir := stubHelper(t, `echo '{"ready":false,"error":"ModuleNotFoundError: No module named whisper"}'
exit 1
`)
	_, err := LaunchHelper(context.Background(), cfg, nil)
	if err == nil || !strings.Contains(err.Error(), "No module named whisper") {
		t.Fatalf("expected readiness error, got %v", err)
	}
	if scripts := helperScripts(t, stateDir); len(scripts) != 0 {
		t.Fatalf("expected helper script removed after failed load, got %v", scripts)
	}
}

func TestHelperExitsBeforeReady(t *testing.T) {
	cfg, _ := stubHelper(t, "exit 3\n")
	if _, err := LaunchHelper(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error when helper exits silently")
	}
}

func TestHelperLoadTimeout(t *testing.T) {
	cfg, _ := stubHelper(t, "sleep 30\n")
	cfg.LoadTimeout = 100 * time.Millisecond
	started := time.Now()
	_, err := LaunchHelper(context.Background(), cfg, nil)
	if err == nil || !strings.Contains(err.Error(), "not ready") {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if time.Since(started) > 10*time.Second {
		t.Fatal("load timeout did not kill the helper promptly")
	}
}

func TestHelperCancelKillsProcess(t *testing.T) {
	cfg, _ := stubHelper(t, `echo '{"ready":true}'
while IFS= read -r line; do sleep 30; done
`)
	engine, err := LaunchHelper(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("LaunchHelper: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := engine.Recognize(ctx, Request{AudioPath: "a.wav"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	closed := make(chan struct{})
	go func() {
		_ = engine.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(10 * time.Second):
		t.Fatal("Close hung after cancellation")
	}
}

func TestHelperEmptyCommand(t *testing.T) {
	if _, err := LaunchHelper(context.Background(), Config{Command: "''"}, nil); err == nil {
		t.Fatal("expected empty command error")
	}
}

func TestLoadWithHelperStub(t *testing.T) {
	cfg, _ := stubHelper(t, echoHelper)
	model, err := Load(context.Background(), cfg, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer model.Close()

	got := model.Recognize(context.Background(), "/tmp/a.wav", true)
	if !got.Success || got.Text != "hello" || got.Segments[0].Text != "hello" {
		t.Fatalf("unexpected transcript: %+v", got)
	}
	if _, err := os.Stat(filepath.Join(cfg.StateDir, "model-tiny.lock")); err != nil {
		t.Fatalf("expected lock file in state dir: %v", err)
	}
}

const crashingHelper = `echo '{"ready":true}'
IFS= read -r line
exit 3
`

const chattyHelper = `echo '{"ready":true}'
while IFS= read -r line; do
  id=$(echo "$line" | sed -n 's/.*"id":\([0-9]*\).*/\1/p')
  echo "progress 100%"
  echo "{\"id\":$id,\"ok\":true,\"text\":\" hi\",\"language\":\"en\",\"segments\":[]}"
done
`

func TestHelperExitMidRequestBreaksEngine(t *testing.T) {
	cfg, _ := stubHelper(t, crashingHelper)
	engine, err := LaunchHelper(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("LaunchHelper: %v", err)
	}
	defer engine.Close()
	if _, err := engine.Recognize(context.Background(), Request{AudioPath: "a.wav"}); !errors.Is(err, ErrEngineBroken) {
		t.Fatalf("expected ErrEngineBroken, got %v", err)
	}
}

func TestHelperStrayStdoutLineBreaksEngine(t *testing.T) {
	cfg, _ := stubHelper(t, chattyHelper)
	engine, err := LaunchHelper(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("LaunchHelper: %v", err)
	}
	defer engine.Close()
	_, err = engine.Recognize(context.Background(), Request{AudioPath: "a.wav"})
	if !errors.Is(err, ErrEngineBroken) {
		t.Fatalf("expected ErrEngineBroken, got %v", err)
	}
	if !strings.Contains(err.Error(), "progress 100%") {
		t.Fatalf("expected offending line in error, got %v", err)
	}
	if _, err := engine.Recognize(context.Background(), Request{AudioPath: "b.wav"}); !errors.Is(err, ErrEngineBroken) {
		t.Fatalf("expected killed engine to stay broken, got %v", err)
	}
}

func TestHelperFailureReplyKeepsEngine(t *testing.T) {
	cfg, _ := stubHelper(t, echoHelper)
	model, err := Load(context.Background(), cfg, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer model.Close()
	if got := model.Recognize(context.Background(), "/tmp/missing.wav", true); got.Success {
		t.Fatal("expected failed transcript")
	}
	if !model.Healthy() {
		t.Fatal("an ok:false reply must not unload the model")
	}
	if got := model.Recognize(context.Background(), "/tmp/a.wav", true); !got.Success {
		t.Fatalf("expected next request to succeed: %+v", got)
	}
}

func TestRegistryReloadsAfterHelperTransportFailure(t *testing.T) {
	for name, body := range map[string]string{
		"exit":       crashingHelper,
		"stray_line": chattyHelper,
	} {
		t.Run(name, func(t *testing.T) {
			cfg, _ := stubHelper(t, body)
			var launches int
			launcher := func(ctx context.Context, cfg Config, logger *slog.Logger) (Engine, error) {
				launches++
				return LaunchHelper(ctx, cfg, logger)
			}
			reg := NewRegistry(launcher, logging.NewNop())
			defer reg.Close()

			first, err := reg.Get(context.Background(), cfg)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got := first.Recognize(context.Background(), "a.wav", true); got.Success {
				t.Fatalf("expected failed transcript, got %+v", got)
			}
			if first.Healthy() {
				t.Fatal("expected model unloaded after transport failure")
			}

			second, err := reg.Get(context.Background(), cfg)
			if err != nil {
				t.Fatalf("Get after failure: %v", err)
			}
			if second == first || !second.Healthy() {
				t.Fatal("expected a freshly loaded model")
			}
			if launches != 2 {
				t.Fatalf("expected helper relaunched, got %d launches", launches)
			}
		})
	}
}

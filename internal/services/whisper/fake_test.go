package whisper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// fakeEngine is an in-memory recognizer for tests.
type fakeEngine struct {
	mu       sync.Mutex
	result   Result
	err      error
	panicVal any
	block    bool
	requests []Request
	closed   atomic.Bool
}

func (f *fakeEngine) Recognize(ctx context.Context, req Request) (Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	result, err, panicVal, block := f.result, f.err, f.panicVal, f.block
	f.mu.Unlock()

	if panicVal != nil {
		panic(panicVal)
	}
	if block {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}
	return result, err
}

func (f *fakeEngine) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeEngine) lastRequest() Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return Request{}
	}
	return f.requests[len(f.requests)-1]
}

// fakeLauncher counts launches and returns engines produced by next.
type fakeLauncher struct {
	launches atomic.Int32
	err      error
	next     func() *fakeEngine
	configs  []Config
	mu       sync.Mutex
}

func (l *fakeLauncher) launch(_ context.Context, cfg Config, _ *slog.Logger) (Engine, error) {
	l.launches.Add(1)
	l.mu.Lock()
	l.configs = append(l.configs, cfg)
	l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	if l.next == nil {
		return &fakeEngine{}, nil
	}
	return l.next(), nil
}

var errBoom = errors.New("boom")

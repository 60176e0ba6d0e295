package whisper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRegistryLoadsOncePerConfiguration(t *testing.T) {
	launcher := &fakeLauncher{}
	reg := NewRegistry(launcher.launch, nil)
	defer reg.Close()

	var wg sync.WaitGroup
	models := make([]*Model, 8)
	for i := range models {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := reg.Get(context.Background(), Config{Model: "tiny"})
			if err != nil {
				t.Errorf("Get returned error: %v", err)
				return
			}
			models[i] = m
		}(i)
	}
	wg.Wait()

	if got := launcher.launches.Load(); got != 1 {
		t.Fatalf("expected exactly one load, got %d", got)
	}
	for _, m := range models[1:] {
		if m != models[0] {
			t.Fatal("expected every caller to share the same model")
		}
	}

	if _, err := reg.Get(context.Background(), Config{Model: "base"}); err != nil {
		t.Fatalf("Get base: %v", err)
	}
	if got := launcher.launches.Load(); got != 2 {
		t.Fatalf("expected a second load for a new configuration, got %d", got)
	}
	loaded := reg.Loaded()
	if len(loaded) != 2 {
		t.Fatalf("expected two loaded models, got %v", loaded)
	}
	if loaded[0].Key >= loaded[1].Key {
		t.Fatalf("expected models sorted by key, got %v", loaded)
	}
	for _, m := range loaded {
		if m.LoadedAt.IsZero() {
			t.Fatalf("expected load time for %s", m.Key)
		}
	}
}

func TestRegistryReloadsUnhealthyModel(t *testing.T) {
	launcher := &fakeLauncher{next: func() *fakeEngine { return &fakeEngine{block: true} }}
	reg := NewRegistry(launcher.launch, nil)
	defer reg.Close()

	first, err := reg.Get(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	first.Recognize(ctx, "a.wav", true)
	if first.Healthy() {
		t.Fatal("expected first model unhealthy")
	}

	second, err := reg.Get(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Get after cancel: %v", err)
	}
	if second == first {
		t.Fatal("expected a fresh model after unhealthy one")
	}
	if got := launcher.launches.Load(); got != 2 {
		t.Fatalf("expected reload, got %d launches", got)
	}
}

func TestRegistryDoesNotCacheLoadFailures(t *testing.T) {
	launcher := &fakeLauncher{err: errBoom}
	reg := NewRegistry(launcher.launch, nil)
	defer reg.Close()

	if _, err := reg.Get(context.Background(), Config{}); err == nil {
		t.Fatal("expected load error")
	}
	launcher.err = nil
	if _, err := reg.Get(context.Background(), Config{}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestRegistryClose(t *testing.T) {
	engine := &fakeEngine{}
	launcher := &fakeLauncher{next: func() *fakeEngine { return engine }}
	reg := NewRegistry(launcher.launch, nil)

	if _, err := reg.Get(context.Background(), Config{}); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !engine.closed.Load() {
		t.Fatal("expected engine closed")
	}
	if _, err := reg.Get(context.Background(), Config{}); !errors.Is(err, ErrRegistryClosed) {
		t.Fatalf("expected ErrRegistryClosed, got %v", err)
	}
}

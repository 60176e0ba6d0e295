package whisper

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"scribe/internal/logging"
)

// Registry loads each configuration at most once and hands out the shared
// Model. Unhealthy models are replaced on the next Get.
type Registry struct {
	launcher Launcher
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]*registryEntry
	closed  bool
}

type registryEntry struct {
	mu    sync.Mutex
	model *Model
}

// NewRegistry constructs a registry. A nil launcher uses LaunchHelper.
func NewRegistry(launcher Launcher, logger *slog.Logger) *Registry {
	if launcher == nil {
		launcher = LaunchHelper
	}
	return &Registry{
		launcher: launcher,
		logger:   logging.NewComponentLogger(logger, "whisper-registry"),
		entries:  make(map[string]*registryEntry),
	}
}

// ErrRegistryClosed is returned by Get after Close.
var ErrRegistryClosed = errors.New("whisper registry closed")

// Get returns the loaded model for cfg, loading it if needed. Concurrent
// callers for the same configuration wait for a single load.
func (r *Registry) Get(ctx context.Context, cfg Config) (*Model, error) {
	key := cfg.Key()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	entry, ok := r.entries[key]
	if !ok {
		entry = &registryEntry{}
		r.entries[key] = entry
	}
	r.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.model != nil && entry.model.Healthy() {
		return entry.model, nil
	}
	if entry.model != nil {
		r.logger.Info("reloading unhealthy whisper model", logging.String("key", key))
		_ = entry.model.Close()
		entry.model = nil
	}

	model, err := Load(ctx, cfg, r.launcher, r.logger)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		_ = model.Close()
		return nil, ErrRegistryClosed
	}
	entry.model = model
	return model, nil
}

// LoadedModel describes one healthy loaded model.
type LoadedModel struct {
	Key      string    `json:"key"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Loaded lists the healthy loaded models sorted by key. Entries still loading
// are skipped.
func (r *Registry) Loaded() []LoadedModel {
	r.mu.Lock()
	entries := make(map[string]*registryEntry, len(r.entries))
	for k, v := range r.entries {
		entries[k] = v
	}
	r.mu.Unlock()

	loaded := make([]LoadedModel, 0, len(entries))
	for key, entry := range entries {
		if !entry.mu.TryLock() {
			continue
		}
		if entry.model != nil && entry.model.Healthy() {
			loaded = append(loaded, LoadedModel{Key: key, LoadedAt: entry.model.LoadedAt()})
		}
		entry.mu.Unlock()
	}
	sort.Slice(loaded, func(i, j int) bool { return loaded[i].Key < loaded[j].Key })
	return loaded
}

// Close unloads every model. Further Get calls fail.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	entries := r.entries
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()

	var errs []error
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.model != nil {
			if err := entry.model.Close(); err != nil {
				errs = append(errs, err)
			}
			entry.model = nil
		}
		entry.mu.Unlock()
	}
	return errors.Join(errs...)
}

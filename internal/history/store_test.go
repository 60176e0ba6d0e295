package history_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"scribe/internal/history"
	"scribe/internal/testsupport"
	"scribe/internal/transcript"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	if store.Path() != cfg.HistoryPath() {
		t.Fatalf("Path = %q, want %q", store.Path(), cfg.HistoryPath())
	}
	// Reopening an existing database must pass the version check.
	again, err := history.Open(cfg.HistoryPath())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	again.Close()
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := history.Open(path); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestRecordAndList(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	jobs := []history.Job{
		{ID: "a", CreatedAt: base, SourcePath: "/in/a.wav", Model: "tiny", LanguageHint: "auto", Mode: history.ModeTranscribe, Success: true, DetectedLanguage: "en", Elapsed: 1500 * time.Millisecond},
		{ID: "b", CreatedAt: base.Add(time.Minute), SourcePath: "/in/b.wav", Model: "tiny", LanguageHint: "en", Mode: history.ModeSubtitles, Format: "srt", ErrorMessage: "boom"},
		{ID: "c", CreatedAt: base.Add(2 * time.Minute), SourcePath: "/in/c.wav", SourceHash: "abc", Model: "base", LanguageHint: "fr", Mode: history.ModeSubtitles, Format: "vtt", Success: true, SegmentCount: 3, Fallback: true, CacheHit: true},
	}
	for _, job := range jobs {
		if err := store.Record(ctx, job); err != nil {
			t.Fatalf("Record %s: %v", job.ID, err)
		}
	}

	listed, err := store.List(ctx, history.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 3 || listed[0].ID != "c" || listed[2].ID != "a" {
		t.Fatalf("unexpected order: %+v", listed)
	}
	if !listed[0].Fallback || !listed[0].CacheHit || listed[0].SegmentCount != 3 || listed[0].Format != "vtt" {
		t.Fatalf("fields not round-tripped: %+v", listed[0])
	}
	if listed[2].Elapsed != 1500*time.Millisecond {
		t.Fatalf("elapsed = %v", listed[2].Elapsed)
	}

	limited, err := store.List(ctx, history.ListOptions{Limit: 1})
	if err != nil || len(limited) != 1 {
		t.Fatalf("limited list = %v, %v", limited, err)
	}
	failed, err := store.List(ctx, history.ListOptions{FailedOnly: true})
	if err != nil {
		t.Fatalf("failed list: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "b" || failed[0].ErrorMessage != "boom" {
		t.Fatalf("failed list = %+v", failed)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := history.Stats{Total: 3, Succeeded: 2, Failed: 1, CacheHits: 1, Fallbacks: 1}
	if stats != want {
		t.Fatalf("Stats = %+v, want %+v", stats, want)
	}
}

func TestGetMissingJob(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	job, err := store.Get(context.Background(), "nope")
	if err != nil || job != nil {
		t.Fatalf("Get = %v, %v; want nil, nil", job, err)
	}
}

func TestRecordRequiresID(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	if err := store.Record(context.Background(), history.Job{Model: "tiny"}); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestPrune(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)
	if err := store.Record(ctx, history.Job{ID: "old", CreatedAt: old, SourcePath: "x", Model: "tiny", LanguageHint: "auto", Mode: history.ModeTranscribe}); err != nil {
		t.Fatal(err)
	}
	if err := store.Record(ctx, history.Job{ID: "new", SourcePath: "y", Model: "tiny", LanguageHint: "auto", Mode: history.ModeTranscribe}); err != nil {
		t.Fatal(err)
	}
	removed, err := store.Prune(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if job, _ := store.Get(ctx, "new"); job == nil {
		t.Fatal("recent job was pruned")
	}
}

func TestCacheKeySeparatesRecognizerSettings(t *testing.T) {
	base := history.CacheSettings{Model: "tiny", LanguageHint: "auto", Device: "cpu"}
	variants := map[string]history.CacheSettings{
		"model":           {Model: "base", LanguageHint: "auto", Device: "cpu"},
		"language":        {Model: "tiny", LanguageHint: "en", Device: "cpu"},
		"device":          {Model: "tiny", LanguageHint: "auto", Device: "cuda"},
		"fp16":            {Model: "tiny", LanguageHint: "auto", Device: "cpu", FP16: true},
		"word_timestamps": {Model: "tiny", LanguageHint: "auto", Device: "cpu", WordTimestamps: true},
	}
	want := history.CacheKey("hash", base)
	for name, settings := range variants {
		if got := history.CacheKey("hash", settings); got == want {
			t.Fatalf("%s: expected a distinct key, both are %q", name, got)
		}
	}
	if got := history.CacheKey(" hash ", history.CacheSettings{Model: " TINY", LanguageHint: "Auto", Device: "CPU "}); got != want {
		t.Fatalf("expected case and space insensitive key, got %q want %q", got, want)
	}
}

func TestTranscriptCache(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()
	key := history.CacheKey("hash", history.CacheSettings{Model: "Tiny", LanguageHint: "AUTO", Device: "CPU", WordTimestamps: true})
	if key != "hash|tiny|auto|cpu|fp16=false|words=true" {
		t.Fatalf("CacheKey = %q", key)
	}

	if _, ok, err := store.LookupTranscript(ctx, key); err != nil || ok {
		t.Fatalf("empty lookup = %v, %v", ok, err)
	}

	tr := transcript.New("hello world", "en", []transcript.Segment{
		transcript.NewSegment(0, 1.25, "hello"),
		transcript.NewSegment(1.25, 2.5, "world"),
	}, true)
	if err := store.StoreTranscript(ctx, key, "hash", "tiny", "auto", tr); err != nil {
		t.Fatalf("StoreTranscript: %v", err)
	}
	got, ok, err := store.LookupTranscript(ctx, key)
	if err != nil || !ok {
		t.Fatalf("lookup = %v, %v", ok, err)
	}
	if got.Text != "hello world" || got.Language != "en" || !got.HasSegments() || len(got.Segments) != 2 {
		t.Fatalf("cached transcript = %+v", got)
	}
	if got.Segments[1].Start != 1.25 || got.Segments[1].Text != "world" {
		t.Fatalf("segment mismatch: %+v", got.Segments[1])
	}

	// Overwrite replaces the payload.
	tr2 := transcript.New("bye", "en", []transcript.Segment{transcript.NewSegment(0, 1, "bye")}, true)
	if err := store.StoreTranscript(ctx, key, "hash", "tiny", "auto", tr2); err != nil {
		t.Fatalf("StoreTranscript overwrite: %v", err)
	}
	got, _, _ = store.LookupTranscript(ctx, key)
	if got.Text != "bye" {
		t.Fatalf("overwrite not applied: %+v", got)
	}

	n, err := store.ClearCache(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ClearCache = %d, %v", n, err)
	}
}

func TestStoreTranscriptRejectsFailures(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()
	failed := transcript.Failed(errors.New("boom"))
	if err := store.StoreTranscript(ctx, "k", "h", "tiny", "auto", failed); !errors.Is(err, history.ErrNotCacheable) {
		t.Fatalf("expected ErrNotCacheable, got %v", err)
	}
	plain := transcript.New("text", "en", nil, false)
	if err := store.StoreTranscript(ctx, "k", "h", "tiny", "auto", plain); !errors.Is(err, history.ErrNotCacheable) {
		t.Fatalf("expected ErrNotCacheable for untimestamped, got %v", err)
	}
}

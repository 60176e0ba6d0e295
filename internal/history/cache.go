package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"scribe/internal/transcript"
)

// CacheSettings are the recognizer settings that change a transcript's content.
type CacheSettings struct {
	Model          string
	LanguageHint   string
	Device         string
	FP16           bool
	WordTimestamps bool
}

// CacheKey combines the audio content hash with every setting that affects
// the recognizer's output, so a hit never crosses configurations.
func CacheKey(sourceHash string, settings CacheSettings) string {
	return strings.Join([]string{
		strings.TrimSpace(sourceHash),
		strings.ToLower(strings.TrimSpace(settings.Model)),
		strings.ToLower(strings.TrimSpace(settings.LanguageHint)),
		strings.ToLower(strings.TrimSpace(settings.Device)),
		fmt.Sprintf("fp16=%t", settings.FP16),
		fmt.Sprintf("words=%t", settings.WordTimestamps),
	}, "|")
}

// ErrNotCacheable is returned when storing a failed or timestamp-less transcript.
var ErrNotCacheable = errors.New("transcript is not cacheable")

// StoreTranscript caches a successful timestamped transcript, replacing any
// previous entry for key.
func (s *Store) StoreTranscript(ctx context.Context, key, sourceHash, model, languageHint string, t transcript.Transcript) error {
	if !t.HasSegments() {
		return ErrNotCacheable
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO transcripts (cache_key, source_hash, model, language_hint, payload, created_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		key, sourceHash, model, languageHint, string(payload), time.Now().UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("store transcript: %w", err)
	}
	return nil
}

// LookupTranscript returns the cached transcript for key, if any.
func (s *Store) LookupTranscript(ctx context.Context, key string) (transcript.Transcript, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM transcripts WHERE cache_key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return transcript.Transcript{}, false, nil
	}
	if err != nil {
		return transcript.Transcript{}, false, fmt.Errorf("lookup transcript: %w", err)
	}
	var t transcript.Transcript
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		return transcript.Transcript{}, false, fmt.Errorf("decode cached transcript: %w", err)
	}
	return t, true, nil
}

// ClearCache removes every cached transcript.
func (s *Store) ClearCache(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcripts`)
	if err != nil {
		return 0, fmt.Errorf("clear transcript cache: %w", err)
	}
	return res.RowsAffected()
}

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mode distinguishes plain transcription from subtitle generation.
type Mode string

const (
	ModeTranscribe Mode = "transcribe"
	ModeSubtitles  Mode = "subtitles"
)

// Job is one recorded pipeline call.
type Job struct {
	ID               string        `json:"id"`
	CreatedAt        time.Time     `json:"created_at"`
	SourcePath       string        `json:"source_path"`
	SourceHash       string        `json:"source_hash,omitempty"`
	Model            string        `json:"model"`
	LanguageHint     string        `json:"language_hint"`
	Mode             Mode          `json:"mode"`
	Format           string        `json:"format,omitempty"`
	Success          bool          `json:"success"`
	ErrorMessage     string        `json:"error,omitempty"`
	DetectedLanguage string        `json:"detected_language,omitempty"`
	SegmentCount     int           `json:"segment_count"`
	Fallback         bool          `json:"normalization_fallback"`
	CacheHit         bool          `json:"cache_hit"`
	Elapsed          time.Duration `json:"elapsed_ns"`
}

const jobColumns = "id, created_at, source_path, source_hash, model, language_hint, mode, format, success, error_message, detected_language, segment_count, fallback, cache_hit, elapsed_ms"

// Record inserts a job row. CreatedAt defaults to now.
func (s *Store) Record(ctx context.Context, job Job) error {
	if strings.TrimSpace(job.ID) == "" {
		return errors.New("job id is required")
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.CreatedAt.UTC().Format(timestampLayout),
		job.SourcePath,
		nullableString(job.SourceHash),
		job.Model,
		job.LanguageHint,
		string(job.Mode),
		nullableString(job.Format),
		boolToInt(job.Success),
		nullableString(job.ErrorMessage),
		nullableString(job.DetectedLanguage),
		job.SegmentCount,
		boolToInt(job.Fallback),
		boolToInt(job.CacheHit),
		job.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get fetches a job by id. It returns nil, nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListOptions filters List.
type ListOptions struct {
	Limit      int
	FailedOnly bool
}

// List returns jobs newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := []any{}
	if opts.FailedOnly {
		query += ` WHERE success = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// Stats summarizes recorded jobs.
type Stats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	CacheHits int `json:"cache_hits"`
	Fallbacks int `json:"fallbacks"`
}

// Stats counts jobs by outcome.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `SELECT
        COUNT(1),
        COALESCE(SUM(success), 0),
        COALESCE(SUM(1 - success), 0),
        COALESCE(SUM(cache_hit), 0),
        COALESCE(SUM(fallback), 0)
        FROM jobs`).Scan(&st.Total, &st.Succeeded, &st.Failed, &st.CacheHits, &st.Fallbacks)
	if err != nil {
		return Stats{}, fmt.Errorf("job stats: %w", err)
	}
	return st, nil
}

// Prune deletes jobs older than cutoff and returns the number removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE created_at < ?`, cutoff.UTC().Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return res.RowsAffected()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job          Job
		createdRaw   string
		sourceHash   sql.NullString
		mode         string
		format       sql.NullString
		success      int
		errorMessage sql.NullString
		detected     sql.NullString
		fallback     int
		cacheHit     int
		elapsedMS    int64
	)
	if err := scanner.Scan(
		&job.ID,
		&createdRaw,
		&job.SourcePath,
		&sourceHash,
		&job.Model,
		&job.LanguageHint,
		&mode,
		&format,
		&success,
		&errorMessage,
		&detected,
		&job.SegmentCount,
		&fallback,
		&cacheHit,
		&elapsedMS,
	); err != nil {
		return nil, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		job.CreatedAt = ts
	}
	job.SourceHash = sourceHash.String
	job.Mode = Mode(mode)
	job.Format = format.String
	job.Success = success != 0
	job.ErrorMessage = errorMessage.String
	job.DetectedLanguage = detected.String
	job.Fallback = fallback != 0
	job.CacheHit = cacheHit != 0
	job.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	return &job, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"minutes/internal/config"
	"minutes/internal/turns"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when no job matches the lookup.
var ErrNotFound = errors.New("job not found")

// Store manages run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the history database under the configured state dir.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.HistoryPath())
}

// OpenPath opens or creates the database at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts job, replacing any existing row with the same ID.
func (s *Store) Record(ctx context.Context, job *Job) error {
	if job == nil || job.ID == "" {
		return errors.New("record job: id required")
	}
	sentences := job.Sentences
	if sentences == nil {
		sentences = []turns.LabeledSentence{}
	}
	sentencesJSON, err := json.Marshal(sentences)
	if err != nil {
		return fmt.Errorf("encode sentences: %w", err)
	}
	timings := job.Timings
	if timings == nil {
		timings = []StageTiming{}
	}
	timingsJSON, err := json.Marshal(timings)
	if err != nil {
		return fmt.Errorf("encode timings: %w", err)
	}
	created := job.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO jobs (
		id, source_name, content_hash, size_bytes, status, failed_stage, error_message,
		backend, transcript, sentences_json, segment_count, timings_json, created_at, completed_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.SourceName,
		nullableString(job.ContentHash),
		job.SizeBytes,
		string(job.Status),
		nullableString(job.FailedStage),
		nullableString(job.ErrorMessage),
		nullableString(job.Backend),
		job.Transcript,
		string(sentencesJSON),
		job.SegmentCount,
		string(timingsJSON),
		created.UTC().Format(timeLayout),
		nullableTime(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get fetches a job by ID.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns the newest jobs first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// FindByHash returns the newest successful job for the given content hash.
func (s *Store) FindByHash(ctx context.Context, hash string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE content_hash = ? AND status = ? ORDER BY created_at DESC LIMIT 1`,
		hash, string(StatusSucceeded),
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: hash %s", ErrNotFound, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("find job by hash: %w", err)
	}
	return job, nil
}

// Remove deletes a job by ID, reporting whether a row existed.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const jobColumns = "id, source_name, content_hash, size_bytes, status, failed_stage, error_message, backend, transcript, sentences_json, segment_count, timings_json, created_at, completed_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job           Job
		contentHash   sql.NullString
		status        string
		failedStage   sql.NullString
		errorMessage  sql.NullString
		backend       sql.NullString
		sentencesJSON string
		timingsJSON   string
		createdRaw    string
		completedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&job.ID,
		&job.SourceName,
		&contentHash,
		&job.SizeBytes,
		&status,
		&failedStage,
		&errorMessage,
		&backend,
		&job.Transcript,
		&sentencesJSON,
		&job.SegmentCount,
		&timingsJSON,
		&createdRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}
	job.ContentHash = contentHash.String
	job.Status = Status(status)
	job.FailedStage = failedStage.String
	job.ErrorMessage = errorMessage.String
	job.Backend = backend.String

	if err := json.Unmarshal([]byte(sentencesJSON), &job.Sentences); err != nil {
		return nil, fmt.Errorf("decode sentences for %s: %w", job.ID, err)
	}
	if err := json.Unmarshal([]byte(timingsJSON), &job.Timings); err != nil {
		return nil, fmt.Errorf("decode timings for %s: %w", job.ID, err)
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		job.CreatedAt = created
	}
	if completedRaw.Valid {
		if completed, err := time.Parse(time.RFC3339Nano, completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return &job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(timeLayout)
}

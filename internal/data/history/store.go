package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
	// Fixed width keeps lexical order equal to time order in ORDER BY.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	if busyTimeout <= 0 {
		busyTimeout = 2 * time.Second
	}
	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun inserts the run or updates its counters and finish time.
func (s *Store) RecordRun(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("run id must not be empty")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	query := `
INSERT INTO runs (
  id, mode, tool_version, started_at_utc, finished_at_utc,
  unit_count, translated_count, cached_count, failed_count
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  finished_at_utc=excluded.finished_at_utc,
  unit_count=excluded.unit_count,
  translated_count=excluded.translated_count,
  cached_count=excluded.cached_count,
  failed_count=excluded.failed_count
`
	return s.withRetry("record run", func() error {
		_, err := s.db.Exec(
			query,
			run.ID,
			run.Mode,
			run.ToolVersion,
			formatTime(run.StartedAt),
			formatTime(run.FinishedAt),
			run.Units,
			run.Translated,
			run.Cached,
			run.Failed,
		)
		return err
	})
}

func (s *Store) RecordTranslation(t Translation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}

	query := `
INSERT INTO translations (
  run_id, unit_path, content_hash, tool_version, status, header_path, source_path,
  error_code, error_message, construct_count, duration_ms, ts_utc
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	return s.withRetry("record translation", func() error {
		_, err := s.db.Exec(
			query,
			t.RunID,
			t.UnitPath,
			t.ContentHash,
			t.ToolVersion,
			t.Status,
			t.HeaderPath,
			t.SourcePath,
			t.ErrorCode,
			t.ErrorMessage,
			t.Constructs,
			t.Duration.Milliseconds(),
			formatTime(t.Timestamp),
		)
		return err
	})
}

// Forget deletes every record of unitPath.
func (s *Store) Forget(unitPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry("forget unit", func() error {
		_, err := s.db.Exec(`DELETE FROM translations WHERE unit_path = ?`, unitPath)
		return err
	})
}

const translationColumns = `
  run_id, unit_path, content_hash, tool_version, status, header_path, source_path,
  error_code, error_message, construct_count, duration_ms, ts_utc
`

// Lookup returns the most recent record of unitPath, if any.
func (s *Store) Lookup(unitPath string) (Translation, bool, error) {
	rows, err := s.queryTranslations(
		"lookup translation",
		`SELECT`+translationColumns+`FROM translations WHERE unit_path = ? ORDER BY ts_utc DESC, id DESC LIMIT 1`,
		unitPath,
	)
	if err != nil {
		return Translation{}, false, err
	}
	if len(rows) == 0 {
		return Translation{}, false, nil
	}
	return rows[0], true, nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(limit int) ([]Translation, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryTranslations(
		"load recent translations",
		`SELECT`+translationColumns+`FROM translations ORDER BY ts_utc DESC, id DESC LIMIT ?`,
		limit,
	)
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}

	var rows *sql.Rows
	err := s.withRetry("load recent runs", func() error {
		var qErr error
		rows, qErr = s.db.Query(`
SELECT id, mode, tool_version, started_at_utc, finished_at_utc,
  unit_count, translated_count, cached_count, failed_count
FROM runs ORDER BY started_at_utc DESC LIMIT ?`, limit)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			run                 Run
			startRaw, finishRaw string
		)
		if err := rows.Scan(&run.ID, &run.Mode, &run.ToolVersion, &startRaw, &finishRaw,
			&run.Units, &run.Translated, &run.Cached, &run.Failed); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		if run.StartedAt, err = parseTime(startRaw); err != nil {
			return nil, err
		}
		if run.FinishedAt, err = parseTime(finishRaw); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

func (s *Store) queryTranslations(op, query string, args ...any) ([]Translation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry(op, func() error {
		var qErr error
		rows, qErr = s.db.Query(query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Translation, 0)
	for rows.Next() {
		var (
			t          Translation
			durationMS int64
			tsRaw      string
		)
		if err := rows.Scan(
			&t.RunID,
			&t.UnitPath,
			&t.ContentHash,
			&t.ToolVersion,
			&t.Status,
			&t.HeaderPath,
			&t.SourcePath,
			&t.ErrorCode,
			&t.ErrorMessage,
			&t.Constructs,
			&durationMS,
			&tsRaw,
		); err != nil {
			return nil, fmt.Errorf("scan translation row: %w", err)
		}
		t.Duration = time.Duration(durationMS) * time.Millisecond
		if t.Timestamp, err = parseTime(tsRaw); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate translation rows: %w", err)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return ts.UTC(), nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}

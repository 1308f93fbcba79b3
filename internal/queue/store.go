package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"adreact/internal/config"
)

// ErrNotRetryable is returned when Retry targets a job that is not failed.
var ErrNotRetryable = errors.New("job is not in a retryable state")

// Store manages queue persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the queue database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.QueueDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
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

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the on-disk database location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// DB exposes the shared database handle so sibling stores can reuse the
// same connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Enqueue appends a job in pending state and returns the persisted record.
func (s *Store) Enqueue(ctx context.Context, jobType Type, payload string) (*Job, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_jobs (type, status, payload, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		string(jobType),
		string(StatusPending),
		payload,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a queue job by identifier. A nil job without error means
// the identifier is unknown.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM queue_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// NextPending returns the oldest pending job, or nil when the queue is drained.
func (s *Store) NextPending(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM queue_jobs WHERE status = ? ORDER BY id LIMIT 1`,
		string(StatusPending),
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending job: %w", err)
	}
	return job, nil
}

// MarkProcessing transitions a pending job to processing and stamps started_at.
// The guard on the current status keeps terminal jobs immutable.
func (s *Store) MarkProcessing(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_jobs SET status = ?, started_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		string(StatusProcessing), now, now, id, string(StatusPending),
	)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	return requireRowChanged(res, id)
}

// MarkCompleted transitions a processing job to completed and stamps finished_at.
func (s *Store) MarkCompleted(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_jobs SET status = ?, finished_at = ?, error_kind = NULL, error_message = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		string(StatusCompleted), now, now, id, string(StatusProcessing),
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return requireRowChanged(res, id)
}

// MarkFailed transitions a processing job to failed with the classified error.
func (s *Store) MarkFailed(ctx context.Context, id int64, kind, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_jobs SET status = ?, finished_at = ?, error_kind = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		string(StatusFailed), now, kind, message, now, id, string(StatusProcessing),
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return requireRowChanged(res, id)
}

// Retry moves a failed job back to pending and increments its retry count.
// Jobs in any other state return ErrNotRetryable.
func (s *Store) Retry(ctx context.Context, id int64) (*Job, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_jobs
         SET status = ?, retry_count = retry_count + 1,
             error_kind = NULL, error_message = NULL,
             started_at = NULL, finished_at = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		string(StatusPending), now, id, string(StatusFailed),
	)
	if err != nil {
		return nil, fmt.Errorf("retry job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("retry rows affected: %w", err)
	}
	if affected == 0 {
		job, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if job == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: job %d is %s", ErrNotRetryable, id, job.Status)
	}
	return s.GetByID(ctx, id)
}

// ResetProcessing returns jobs stuck in processing to pending so a fresh
// worker can resume them. Used once during worker startup.
func (s *Store) ResetProcessing(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_jobs SET status = ?, started_at = NULL, updated_at = ?
         WHERE status = ?`,
		string(StatusPending), now, string(StatusProcessing),
	)
	if err != nil {
		return 0, fmt.Errorf("reset processing jobs: %w", err)
	}
	return res.RowsAffected()
}

// CountResumable reports how many jobs a restarted worker will pick up.
func (s *Store) CountResumable(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM queue_jobs WHERE status IN (?, ?)`,
		string(StatusPending), string(StatusProcessing),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count resumable jobs: %w", err)
	}
	return count, nil
}

// List returns jobs filtered by the provided statuses; with no filter it
// returns every job, newest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM queue_jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// Health aggregates queue counts per lifecycle state.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM queue_jobs GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("queue health: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, fmt.Errorf("scan health row: %w", err)
		}
		summary.Total += count
		switch Status(status) {
		case StatusPending:
			summary.Pending = count
		case StatusProcessing:
			summary.Processing = count
		case StatusCompleted:
			summary.Completed = count
		case StatusFailed:
			summary.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return HealthSummary{}, fmt.Errorf("iterate health rows: %w", err)
	}
	return summary, nil
}

// ClearCompleted removes completed jobs, returning the number deleted.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_jobs WHERE status = ?`, string(StatusCompleted))
	if err != nil {
		return 0, fmt.Errorf("clear completed jobs: %w", err)
	}
	return res.RowsAffected()
}

const jobColumns = `id, type, status, payload, retry_count, error_kind, error_message,
    created_at, updated_at, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job          Job
		jobType      string
		status       string
		errorKind    sql.NullString
		errorMessage sql.NullString
		createdAt    string
		updatedAt    string
		startedAt    sql.NullString
		finishedAt   sql.NullString
	)
	if err := row.Scan(
		&job.ID, &jobType, &status, &job.Payload, &job.RetryCount,
		&errorKind, &errorMessage, &createdAt, &updatedAt, &startedAt, &finishedAt,
	); err != nil {
		return nil, err
	}
	job.Type = Type(jobType)
	job.Status = Status(status)
	job.ErrorKind = errorKind.String
	job.Error = errorMessage.String
	job.CreatedAt = parseTimestamp(createdAt)
	job.UpdatedAt = parseTimestamp(updatedAt)
	if startedAt.Valid {
		t := parseTimestamp(startedAt.String)
		job.StartedAt = &t
	}
	if finishedAt.Valid {
		t := parseTimestamp(finishedAt.String)
		job.FinishedAt = &t
	}
	return &job, nil
}

func parseTimestamp(value string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

func requireRowChanged(res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %d not in expected state", id)
	}
	return nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

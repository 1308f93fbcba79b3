package reactions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store manages reaction job persistence. It shares the queue database so a
// single connection pool serves both tables.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle. The schema is owned by the queue
// package; callers hand over queue.Store.DB().
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateOptions controls how a new reaction record is seeded.
type CreateOptions struct {
	RecordingPath string
	QueueJobID    *int64
	Fallback      bool
}

// Create inserts a new reaction job. Fallback reactions start in
// processing_fallback with no queue job; queued reactions reference the
// queue job that will process them.
func (s *Store) Create(ctx context.Context, opts CreateOptions) (*Reaction, error) {
	status := StatusQueued
	if opts.Fallback {
		status = StatusProcessingFallback
	}
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var queueJobID any
	if opts.QueueJobID != nil {
		queueJobID = *opts.QueueJobID
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO reaction_jobs (reaction_id, status, queue_job_id, recording_path, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(status), queueJobID, opts.RecordingPath, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reaction: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a reaction job. A nil reaction without error means the
// identifier is unknown.
func (s *Store) GetByID(ctx context.Context, reactionID string) (*Reaction, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+reactionColumns+` FROM reaction_jobs WHERE reaction_id = ?`,
		reactionID,
	)
	reaction, err := scanReaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reaction: %w", err)
	}
	return reaction, nil
}

// MarkProcessing moves a queued reaction into processing. Reactions already
// in processing_fallback keep that status so clients can render the
// fallback message; terminal reactions are left untouched.
func (s *Store) MarkProcessing(ctx context.Context, reactionID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE reaction_jobs SET status = ?, updated_at = ?
         WHERE reaction_id = ? AND status = ?`,
		string(StatusProcessing), now, reactionID, string(StatusQueued),
	)
	if err != nil {
		return fmt.Errorf("mark reaction processing: %w", err)
	}
	return nil
}

// Complete moves an in-flight reaction to completed with its summary.
func (s *Store) Complete(ctx context.Context, reactionID, summaryJSON string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE reaction_jobs
         SET status = ?, summary_json = ?, error_message = NULL, error_user_message = NULL, updated_at = ?
         WHERE reaction_id = ? AND status IN (?, ?)`,
		string(StatusCompleted), summaryJSON, now,
		reactionID, string(StatusProcessing), string(StatusProcessingFallback),
	)
	if err != nil {
		return fmt.Errorf("complete reaction: %w", err)
	}
	return requireReactionChanged(res, reactionID)
}

// Fail moves an in-flight reaction to failed with internal and user-facing
// error messages.
func (s *Store) Fail(ctx context.Context, reactionID, message, userMessage string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE reaction_jobs
         SET status = ?, error_message = ?, error_user_message = ?, updated_at = ?
         WHERE reaction_id = ? AND status IN (?, ?, ?)`,
		string(StatusFailed), message, userMessage, now,
		reactionID, string(StatusQueued), string(StatusProcessing), string(StatusProcessingFallback),
	)
	if err != nil {
		return fmt.Errorf("fail reaction: %w", err)
	}
	return requireReactionChanged(res, reactionID)
}

// Requeue returns a failed reaction to queued and binds it to a fresh queue
// job. Used when a backing queue job is retried.
func (s *Store) Requeue(ctx context.Context, reactionID string, queueJobID int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE reaction_jobs
         SET status = ?, queue_job_id = ?, error_message = NULL, error_user_message = NULL, updated_at = ?
         WHERE reaction_id = ? AND status = ?`,
		string(StatusQueued), queueJobID, now, reactionID, string(StatusFailed),
	)
	if err != nil {
		return fmt.Errorf("requeue reaction: %w", err)
	}
	return requireReactionChanged(res, reactionID)
}

// MarkFallback reroutes a queued reaction to fallback execution, clearing
// any queue job binding. Used when the worker dies between the upload's
// health check and the enqueue.
func (s *Store) MarkFallback(ctx context.Context, reactionID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE reaction_jobs SET status = ?, queue_job_id = NULL, updated_at = ?
         WHERE reaction_id = ? AND status = ?`,
		string(StatusProcessingFallback), now, reactionID, string(StatusQueued),
	)
	if err != nil {
		return fmt.Errorf("mark reaction fallback: %w", err)
	}
	return requireReactionChanged(res, reactionID)
}

// BindQueueJob records the queue job backing a reaction. The reaction row
// is created before the job so the job payload can carry the reaction
// identifier, and the worker may pop the job before the bind lands, so any
// status except processing_fallback accepts it; fallback reactions never
// reference a queue job.
func (s *Store) BindQueueJob(ctx context.Context, reactionID string, queueJobID int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE reaction_jobs SET queue_job_id = ?, updated_at = ?
         WHERE reaction_id = ? AND status <> ?`,
		queueJobID, now, reactionID, string(StatusProcessingFallback),
	)
	if err != nil {
		return fmt.Errorf("bind reaction queue job: %w", err)
	}
	return requireReactionChanged(res, reactionID)
}

// FindByQueueJob returns the reaction backed by the given queue job, if any.
func (s *Store) FindByQueueJob(ctx context.Context, queueJobID int64) (*Reaction, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+reactionColumns+` FROM reaction_jobs WHERE queue_job_id = ?`,
		queueJobID,
	)
	reaction, err := scanReaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find reaction by queue job: %w", err)
	}
	return reaction, nil
}

// List returns reactions newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Reaction, error) {
	query := `SELECT ` + reactionColumns + ` FROM reaction_jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (`
		for i, status := range statuses {
			if i > 0 {
				query += ", "
			}
			query += "?"
			args = append(args, string(status))
		}
		query += `)`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer rows.Close()

	var result []*Reaction
	for rows.Next() {
		reaction, scanErr := scanReaction(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan reaction: %w", scanErr)
		}
		result = append(result, reaction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reactions: %w", err)
	}
	return result, nil
}

const reactionColumns = `reaction_id, status, queue_job_id, recording_path,
    summary_json, error_message, error_user_message, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReaction(row rowScanner) (*Reaction, error) {
	var (
		reaction    Reaction
		status      string
		queueJobID  sql.NullInt64
		summaryJSON sql.NullString
		errMessage  sql.NullString
		userMessage sql.NullString
		createdAt   string
		updatedAt   string
	)
	if err := row.Scan(
		&reaction.ReactionID, &status, &queueJobID, &reaction.RecordingPath,
		&summaryJSON, &errMessage, &userMessage, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	reaction.Status = Status(status)
	if queueJobID.Valid {
		id := queueJobID.Int64
		reaction.QueueJobID = &id
	}
	reaction.SummaryJSON = summaryJSON.String
	reaction.Error = errMessage.String
	reaction.ErrorUserMessage = userMessage.String
	reaction.CreatedAt = parseTimestamp(createdAt)
	reaction.UpdatedAt = parseTimestamp(updatedAt)
	return &reaction, nil
}

func parseTimestamp(value string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

func requireReactionChanged(res sql.Result, reactionID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("reaction %s not in expected state", reactionID)
	}
	return nil
}

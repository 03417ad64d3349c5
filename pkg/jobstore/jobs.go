package jobstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const jobColumns = `job_id, status, action, target_path, source_ref, owner_id,
	created_at, started_at, completed_at, error_message, chunks_done, chunks_total`

// Insert validates the job and writes the initial pending row.
//
// The store assigns job_id and created_at; both are immutable afterwards.
// Returns the assigned job_id.
func Insert(ctx context.Context, db *sql.DB, job *JobRecord) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if job == nil {
		return "", fmt.Errorf("job is nil: %w", ErrValidation)
	}
	if _, err := ParseAction(string(job.Action)); err != nil {
		return "", fmt.Errorf("unrecognized action %q: %w", job.Action, ErrValidation)
	}
	if strings.TrimSpace(job.TargetPath) == "" {
		return "", fmt.Errorf("target_path is required: %w", ErrValidation)
	}
	if strings.TrimSpace(job.OwnerID) == "" {
		return "", fmt.Errorf("owner_id is required: %w", ErrValidation)
	}
	if job.Action == ActionUpload && strings.TrimSpace(job.SourceRef) == "" {
		return "", fmt.Errorf("source_ref is required for upload: %w", ErrValidation)
	}

	jobID := uuid.New().String()
	now := time.Now().UTC()

	_, err := db.ExecContext(ctx,
		`INSERT INTO jobs
		 (job_id, status, action, target_path, source_ref, owner_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		jobID, StatusPending, job.Action, job.TargetPath, job.SourceRef, job.OwnerID, now)
	if err != nil {
		return "", fmt.Errorf("insert job: %w", err)
	}

	job.JobID = jobID
	job.Status = StatusPending
	job.CreatedAt = now
	return jobID, nil
}

// Get retrieves a job by ID. Returns ErrNotFound when no row exists.
func Get(ctx context.Context, db *sql.DB, jobID string) (*JobRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(jobID) == "" {
		return nil, fmt.Errorf("job_id is required: %w", ErrValidation)
	}

	row := db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`, jobID)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns all jobs, newest first.
func List(ctx context.Context, db *sql.DB) ([]JobRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, job_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []JobRecord
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

// ClaimNextPending atomically transitions the oldest pending job to
// processing and sets started_at, returning the claimed record.
//
// The claim is a single conditional update, so concurrently running worker
// processes never observe the same job: exactly one claimant wins each row.
// Returns (nil, nil) when no pending work exists.
func ClaimNextPending(ctx context.Context, db *sql.DB) (*JobRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC()
	row := db.QueryRowContext(ctx,
		`UPDATE jobs SET status = ?, started_at = ?
		 WHERE job_id = (
		 	SELECT job_id FROM jobs WHERE status = ?
		 	ORDER BY created_at ASC, job_id ASC LIMIT 1
		 ) AND status = ?
		 RETURNING `+jobColumns,
		StatusProcessing, now, StatusPending, StatusPending)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim pending job: %w", err)
	}
	return job, nil
}

// Claim atomically transitions a specific pending job to processing and sets
// started_at. Used by the synchronous submission path, which executes the job
// inline instead of handing it to a worker. Returns ErrTerminal when the job
// exists but is no longer pending.
func Claim(ctx context.Context, db *sql.DB, jobID string) (*JobRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(jobID) == "" {
		return nil, fmt.Errorf("job_id is required: %w", ErrValidation)
	}

	now := time.Now().UTC()
	row := db.QueryRowContext(ctx,
		`UPDATE jobs SET status = ?, started_at = ?
		 WHERE job_id = ? AND status = ?
		 RETURNING `+jobColumns,
		StatusProcessing, now, jobID, StatusPending)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		if _, getErr := Get(ctx, db, jobID); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("job %s: %w", jobID, ErrTerminal)
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// MarkComplete transitions a processing job to complete and sets completed_at.
func MarkComplete(ctx context.Context, db *sql.DB, jobID string) error {
	return finish(ctx, db, jobID, StatusComplete, nil)
}

// MarkFailed transitions a processing job to failed, setting completed_at and
// the diagnostic error message.
func MarkFailed(ctx context.Context, db *sql.DB, jobID string, message string) error {
	if strings.TrimSpace(message) == "" {
		message = "job failed"
	}
	return finish(ctx, db, jobID, StatusFailed, &message)
}

func finish(ctx context.Context, db *sql.DB, jobID string, status Status, message *string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC()
	res, err := db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, completed_at = ?, error_message = ?
		 WHERE job_id = ? AND status = ?`,
		status, now, message, jobID, StatusProcessing)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	if n == 0 {
		// Distinguish a missing job from an illegal transition.
		if _, err := Get(ctx, db, jobID); err != nil {
			return err
		}
		return fmt.Errorf("job %s: %w", jobID, ErrTerminal)
	}
	return nil
}

// SetChunkProgress records executor-maintained chunk counters for a
// processing job. Counters are a derived view only; the status contract does
// not depend on them.
func SetChunkProgress(ctx context.Context, db *sql.DB, jobID string, done, total int) error {
	if ctx == nil {
		ctx = context.Background()
	}

	_, err := db.ExecContext(ctx,
		`UPDATE jobs SET chunks_done = ?, chunks_total = ?
		 WHERE job_id = ? AND status = ?`,
		done, total, jobID, StatusProcessing)
	if err != nil {
		return fmt.Errorf("set chunk progress: %w", err)
	}
	return nil
}

// SweepStale fails processing jobs whose claim is older than maxAge.
//
// A worker that died mid-job leaves its claim in processing forever; the
// sweep converts those to failed with a diagnostic so operators can resubmit.
// Transitions stay monotonic: stale claims never return to pending.
// Returns the number of jobs swept.
func SweepStale(ctx context.Context, db *sql.DB, maxAge time.Duration) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if maxAge <= 0 {
		return 0, fmt.Errorf("sweep max age must be positive")
	}

	now := time.Now().UTC()
	cutoff := now.Add(-maxAge)
	res, err := db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, completed_at = ?, error_message = ?
		 WHERE status = ? AND started_at < ?`,
		StatusFailed, now, "worker claim expired", StatusProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep stale claims: %w", err)
	}
	return res.RowsAffected()
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*JobRecord, error) {
	var job JobRecord
	var sourceRef, errorMessage sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&job.JobID, &job.Status, &job.Action, &job.TargetPath, &sourceRef,
		&job.OwnerID, &job.CreatedAt, &startedAt, &completedAt, &errorMessage,
		&job.ChunksDone, &job.ChunksTotal)
	if err != nil {
		return nil, err
	}

	if sourceRef.Valid {
		job.SourceRef = sourceRef.String
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	if errorMessage.Valid {
		job.ErrorMessage = &errorMessage.String
	}

	return &job, nil
}

package sqlite

import (
	"context"
	"fmt"
	"time"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/id"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
)

// CreateJob persists a new job.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	args, err := jobArgs(j)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO formauto_jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return formauto.ErrJobAlreadyExists
		}
		return fmt.Errorf("store/sqlite: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM formauto_jobs WHERE id = ?`, jobID)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, formauto.ErrJobNotFound
		}
		return nil, fmt.Errorf("store/sqlite: get job: %w", err)
	}
	return j, nil
}

// UpdateJob persists changes to an existing job. Jobs already in a
// terminal status are immutable and reject further writes.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	args, err := jobArgs(j)
	if err != nil {
		return err
	}
	// Reorder so the WHERE id comes last.
	args = append(args[1:], args[0])
	res, err := s.db.ExecContext(ctx, `
		UPDATE formauto_jobs SET
			submission_ref = ?, owner_ref = ?, status = ?, embassy = ?,
			priority = ?, idempotency_key = ?, field_map = ?, metadata = ?,
			error_code = ?, error_message = ?, worker_id = ?,
			started_at = ?, finished_at = ?, heartbeat_at = ?,
			created_at = ?, updated_at = ?
		WHERE id = ?
		  AND status NOT IN ('completed', 'failed', 'cancelled')`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("store/sqlite: update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store/sqlite: update job: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing row from a terminal one.
		var status string
		err := s.db.QueryRowContext(ctx,
			`SELECT status FROM formauto_jobs WHERE id = ?`, j.ID).Scan(&status)
		if isNoRows(err) {
			return formauto.ErrJobNotFound
		}
		if err != nil {
			return fmt.Errorf("store/sqlite: update job: %w", err)
		}
		return formauto.ErrJobNotActive
	}
	return nil
}

// GetActiveJob returns the active job for a (submission, owner) pair.
func (s *Store) GetActiveJob(ctx context.Context, submissionRef, ownerRef string) (*job.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM formauto_jobs
		WHERE submission_ref = ? AND owner_ref = ?
		  AND status IN ('queued', 'running', 'waiting_for_captcha')
		ORDER BY created_at DESC
		LIMIT 1`,
		submissionRef, ownerRef,
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, formauto.ErrJobNotFound
		}
		return nil, fmt.Errorf("store/sqlite: get active job: %w", err)
	}
	return j, nil
}

// ClaimQueuedJobs atomically claims up to limit queued jobs. SQLite has
// no SKIP LOCKED; the single-statement UPDATE with a subquery is atomic
// under SQLite's writer lock.
func (s *Store) ClaimQueuedJobs(ctx context.Context, workerID id.WorkerID, limit int) ([]*job.Job, error) {
	now := time.Now().UTC()
	rows, err := s.db.QueryContext(ctx, `
		UPDATE formauto_jobs
		SET status = 'running', worker_id = ?,
		    started_at = ?, heartbeat_at = ?, updated_at = ?
		WHERE id IN (
			SELECT id FROM formauto_jobs
			WHERE status = 'queued'
			ORDER BY priority DESC, created_at ASC
			LIMIT ?
		)
		RETURNING `+jobColumns,
		workerID, now, now, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: claim queued jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListJobsByOwner returns an owner's jobs, newest first.
func (s *Store) ListJobsByOwner(ctx context.Context, ownerRef string, opts job.ListOpts) ([]*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM formauto_jobs WHERE owner_ref = ?`
	args := []any{ownerRef}

	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, string(opts.Status))
	}
	if opts.Embassy != "" {
		query += " AND embassy = ?"
		args = append(args, opts.Embassy)
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: list jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// HeartbeatJob refreshes the heartbeat for an actively claimed job.
func (s *Store) HeartbeatJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE formauto_jobs
		SET heartbeat_at = ?, updated_at = ?
		WHERE id = ? AND worker_id = ?
		  AND status IN ('running', 'waiting_for_captcha')`,
		now, now, jobID, workerID,
	)
	if err != nil {
		return fmt.Errorf("store/sqlite: heartbeat job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store/sqlite: heartbeat job: %w", err)
	}
	if affected == 0 {
		return formauto.ErrJobNotFound
	}
	return nil
}

// ReapStaleJobs returns active claimed jobs whose heartbeat went stale.
func (s *Store) ReapStaleJobs(ctx context.Context, threshold time.Duration) ([]*job.Job, error) {
	cutoff := time.Now().UTC().Add(-threshold)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM formauto_jobs
		WHERE status IN ('running', 'waiting_for_captcha')
		  AND heartbeat_at IS NOT NULL AND heartbeat_at < ?
		ORDER BY heartbeat_at ASC`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: reap stale jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// CountJobs returns the number of jobs matching the options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	query := `SELECT COUNT(*) FROM formauto_jobs WHERE 1 = 1`
	args := []any{}

	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, string(opts.Status))
	}
	if opts.OwnerRef != "" {
		query += " AND owner_ref = ?"
		args = append(args, opts.OwnerRef)
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("store/sqlite: count jobs: %w", err)
	}
	return count, nil
}

// PurgeTerminalJobs removes terminal jobs finished before the given
// time, along with their progress history and challenges.
func (s *Store) PurgeTerminalJobs(ctx context.Context, before time.Time) ([]id.JobID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: purge begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	rows, err := tx.QueryContext(ctx, `
		DELETE FROM formauto_jobs
		WHERE status IN ('completed', 'failed', 'cancelled')
		  AND finished_at IS NOT NULL AND finished_at < ?
		RETURNING id`,
		before,
	)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: purge jobs: %w", err)
	}
	var purged []id.JobID
	for rows.Next() {
		var jobID id.JobID
		if err := rows.Scan(&jobID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store/sqlite: purge scan: %w", err)
		}
		purged = append(purged, jobID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("store/sqlite: purge iterate: %w", err)
	}
	rows.Close()

	for _, jobID := range purged {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM formauto_progress_updates WHERE job_id = ?`, jobID,
		); err != nil {
			return nil, fmt.Errorf("store/sqlite: purge updates: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM formauto_challenges WHERE job_id = ?`, jobID,
		); err != nil {
			return nil, fmt.Errorf("store/sqlite: purge challenges: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store/sqlite: purge commit: %w", err)
	}
	return purged, nil
}

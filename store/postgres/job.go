package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/id"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
)

// isDuplicateKey checks for a PostgreSQL unique_violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// CreateJob persists a new job.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	args, err := jobArgs(j)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO formauto_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		args...,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return formauto.ErrJobAlreadyExists
		}
		return fmt.Errorf("store/postgres: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM formauto_jobs WHERE id = $1`, jobID)

	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, formauto.ErrJobNotFound
		}
		return nil, fmt.Errorf("store/postgres: get job: %w", err)
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
	tag, err := s.pool.Exec(ctx, `
		UPDATE formauto_jobs SET
			submission_ref = $2, owner_ref = $3, status = $4, embassy = $5,
			priority = $6, idempotency_key = $7, field_map = $8, metadata = $9,
			error_code = $10, error_message = $11, worker_id = $12,
			started_at = $13, finished_at = $14, heartbeat_at = $15,
			created_at = $16, updated_at = $17
		WHERE id = $1
		  AND status NOT IN ('completed', 'failed', 'cancelled')`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("store/postgres: update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a terminal one.
		var status string
		err := s.pool.QueryRow(ctx,
			`SELECT status FROM formauto_jobs WHERE id = $1`, j.ID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return formauto.ErrJobNotFound
		}
		if err != nil {
			return fmt.Errorf("store/postgres: update job: %w", err)
		}
		return formauto.ErrJobNotActive
	}
	return nil
}

// GetActiveJob returns the active job for a (submission, owner) pair.
func (s *Store) GetActiveJob(ctx context.Context, submissionRef, ownerRef string) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+jobColumns+` FROM formauto_jobs
		WHERE submission_ref = $1 AND owner_ref = $2
		  AND status IN ('queued', 'running', 'waiting_for_captcha')
		ORDER BY created_at DESC
		LIMIT 1`,
		submissionRef, ownerRef,
	)

	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, formauto.ErrJobNotFound
		}
		return nil, fmt.Errorf("store/postgres: get active job: %w", err)
	}
	return j, nil
}

// ClaimQueuedJobs atomically claims up to limit queued jobs for the
// given worker using FOR UPDATE SKIP LOCKED.
func (s *Store) ClaimQueuedJobs(ctx context.Context, workerID id.WorkerID, limit int) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx, `
		WITH claimed AS (
			UPDATE formauto_jobs
			SET status = 'running', worker_id = $1,
			    started_at = NOW(), heartbeat_at = NOW(), updated_at = NOW()
			WHERE id IN (
				SELECT id FROM formauto_jobs
				WHERE status = 'queued'
				ORDER BY priority DESC, created_at ASC
				FOR UPDATE SKIP LOCKED
				LIMIT $2
			)
			RETURNING `+jobColumns+`
		)
		SELECT * FROM claimed ORDER BY priority DESC, created_at ASC`,
		workerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: claim queued jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListJobsByOwner returns an owner's jobs, newest first.
func (s *Store) ListJobsByOwner(ctx context.Context, ownerRef string, opts job.ListOpts) ([]*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM formauto_jobs WHERE owner_ref = $1`
	args := []any{ownerRef}

	if opts.Status != "" {
		args = append(args, string(opts.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if opts.Embassy != "" {
		args = append(args, opts.Embassy)
		query += fmt.Sprintf(" AND embassy = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// HeartbeatJob refreshes the heartbeat for an actively claimed job.
func (s *Store) HeartbeatJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE formauto_jobs
		SET heartbeat_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND worker_id = $2
		  AND status IN ('running', 'waiting_for_captcha')`,
		jobID, workerID,
	)
	if err != nil {
		return fmt.Errorf("store/postgres: heartbeat job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return formauto.ErrJobNotFound
	}
	return nil
}

// ReapStaleJobs returns active claimed jobs whose heartbeat went stale.
func (s *Store) ReapStaleJobs(ctx context.Context, threshold time.Duration) ([]*job.Job, error) {
	cutoff := time.Now().UTC().Add(-threshold)
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM formauto_jobs
		WHERE status IN ('running', 'waiting_for_captcha')
		  AND heartbeat_at IS NOT NULL AND heartbeat_at < $1
		ORDER BY heartbeat_at ASC`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: reap stale jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// CountJobs returns the number of jobs matching the options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	query := `SELECT COUNT(*) FROM formauto_jobs WHERE TRUE`
	args := []any{}

	if opts.Status != "" {
		args = append(args, string(opts.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if opts.OwnerRef != "" {
		args = append(args, opts.OwnerRef)
		query += fmt.Sprintf(" AND owner_ref = $%d", len(args))
	}

	var count int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("store/postgres: count jobs: %w", err)
	}
	return count, nil
}

// PurgeTerminalJobs removes terminal jobs finished before the given
// time, along with their progress history.
func (s *Store) PurgeTerminalJobs(ctx context.Context, before time.Time) ([]id.JobID, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: purge begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	rows, err := tx.Query(ctx, `
		DELETE FROM formauto_jobs
		WHERE status IN ('completed', 'failed', 'cancelled')
		  AND finished_at IS NOT NULL AND finished_at < $1
		RETURNING id`,
		before,
	)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: purge jobs: %w", err)
	}
	purged, err := pgx.CollectRows(rows, pgx.RowTo[id.JobID])
	if err != nil {
		return nil, fmt.Errorf("store/postgres: purge collect: %w", err)
	}
	if len(purged) > 0 {
		ids := make([]string, len(purged))
		for i, jobID := range purged {
			ids[i] = jobID.String()
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM formauto_progress_updates WHERE job_id = ANY($1)`, ids,
		); err != nil {
			return nil, fmt.Errorf("store/postgres: purge updates: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM formauto_challenges WHERE job_id = ANY($1)`, ids,
		); err != nil {
			return nil, fmt.Errorf("store/postgres: purge challenges: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("store/postgres: purge commit: %w", err)
	}
	return purged, nil
}

func collectJobs(rows pgx.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("store/postgres: scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store/postgres: iterate jobs: %w", err)
	}
	return jobs, nil
}

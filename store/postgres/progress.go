package postgres

import (
	"context"
	"fmt"

	"github.com/Safi643133/ai-immigration-services-sub003/id"
	"github.com/Safi643133/ai-immigration-services-sub003/progress"
)

// AppendUpdate persists one update at the end of its job's feed. The
// sequence number is assigned in the insert itself; the UNIQUE
// (job_id, seq) constraint turns a lost race into an error instead of
// a gap.
func (s *Store) AppendUpdate(ctx context.Context, u *progress.Update) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO formauto_progress_updates (
			id, job_id, kind, seq, step_name, step_number, total_steps,
			percent, message, challenge_id, error_code, created_at, updated_at
		)
		SELECT $1, $2, $3, COALESCE(MAX(seq), 0) + 1, $4, $5, $6,
		       $7, $8, $9, $10, $11, $12
		FROM formauto_progress_updates WHERE job_id = $2
		RETURNING seq`,
		u.ID, u.JobID, string(u.Kind), u.StepName, u.StepNumber, u.TotalSteps,
		u.Percent, u.Message, u.ChallengeID, u.ErrorCode, u.CreatedAt, u.UpdatedAt,
	).Scan(&u.Seq)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("store/postgres: append update: concurrent append on job %s", u.JobID)
		}
		return fmt.Errorf("store/postgres: append update: %w", err)
	}
	return nil
}

// ListUpdates returns a job's feed ordered oldest first, skipping
// entries at or below afterSeq.
func (s *Store) ListUpdates(ctx context.Context, jobID id.JobID, afterSeq int64) ([]*progress.Update, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+updateColumns+` FROM formauto_progress_updates
		WHERE job_id = $1 AND seq > $2
		ORDER BY seq ASC`,
		jobID, afterSeq,
	)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list updates: %w", err)
	}
	defer rows.Close()

	var updates []*progress.Update
	for rows.Next() {
		u, err := scanUpdate(rows)
		if err != nil {
			return nil, fmt.Errorf("store/postgres: scan update: %w", err)
		}
		updates = append(updates, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store/postgres: iterate updates: %w", err)
	}
	return updates, nil
}

// LatestPercent returns the highest percent recorded for the job.
func (s *Store) LatestPercent(ctx context.Context, jobID id.JobID) (int, error) {
	var percent int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(percent), 0) FROM formauto_progress_updates WHERE job_id = $1`,
		jobID,
	).Scan(&percent)
	if err != nil {
		return 0, fmt.Errorf("store/postgres: latest percent: %w", err)
	}
	return percent, nil
}

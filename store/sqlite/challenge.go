package sqlite

import (
	"context"
	"fmt"
	"time"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/challenge"
	"github.com/Safi643133/ai-immigration-services-sub003/id"
)

// CreateChallenge persists a new challenge.
func (s *Store) CreateChallenge(ctx context.Context, c *challenge.Challenge) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO formauto_challenges (`+challengeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.JobID, c.StepName, c.ImageArtifactID, c.ExpiresAt,
		c.Solved, c.SolvedAt, c.Attempts, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store/sqlite: create challenge: %w", err)
	}
	return nil
}

// GetChallenge retrieves a challenge by ID.
func (s *Store) GetChallenge(ctx context.Context, challengeID id.ChallengeID) (*challenge.Challenge, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM formauto_challenges WHERE id = ?`, challengeID)

	c, err := scanChallenge(row)
	if err != nil {
		if isNoRows(err) {
			return nil, formauto.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("store/sqlite: get challenge: %w", err)
	}
	return c, nil
}

// GetActiveChallenge returns the job's unsolved, unexpired challenge.
func (s *Store) GetActiveChallenge(ctx context.Context, jobID id.JobID) (*challenge.Challenge, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+challengeColumns+` FROM formauto_challenges
		WHERE job_id = ? AND solved = 0 AND expires_at > ?
		ORDER BY created_at DESC
		LIMIT 1`,
		jobID, time.Now().UTC(),
	)

	c, err := scanChallenge(row)
	if err != nil {
		if isNoRows(err) {
			return nil, formauto.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("store/sqlite: get active challenge: %w", err)
	}
	return c, nil
}

// GetLatestChallenge returns the job's newest challenge regardless of
// its solved or expiry state.
func (s *Store) GetLatestChallenge(ctx context.Context, jobID id.JobID) (*challenge.Challenge, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+challengeColumns+` FROM formauto_challenges
		WHERE job_id = ?
		ORDER BY created_at DESC
		LIMIT 1`,
		jobID,
	)

	c, err := scanChallenge(row)
	if err != nil {
		if isNoRows(err) {
			return nil, formauto.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("store/sqlite: get latest challenge: %w", err)
	}
	return c, nil
}

// UpdateChallenge persists changes to an existing challenge.
func (s *Store) UpdateChallenge(ctx context.Context, c *challenge.Challenge) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE formauto_challenges SET
			job_id = ?, step_name = ?, image_artifact_id = ?,
			expires_at = ?, solved = ?, solved_at = ?, attempts = ?,
			created_at = ?, updated_at = ?
		WHERE id = ?`,
		c.JobID, c.StepName, c.ImageArtifactID, c.ExpiresAt,
		c.Solved, c.SolvedAt, c.Attempts, c.CreatedAt, c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("store/sqlite: update challenge: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store/sqlite: update challenge: %w", err)
	}
	if affected == 0 {
		return formauto.ErrChallengeNotFound
	}
	return nil
}

// ListExpiredChallenges returns unsolved challenges whose deadline
// passed before now.
func (s *Store) ListExpiredChallenges(ctx context.Context, now time.Time) ([]*challenge.Challenge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+challengeColumns+` FROM formauto_challenges
		WHERE solved = 0 AND expires_at < ?
		ORDER BY expires_at ASC`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: list expired challenges: %w", err)
	}
	defer rows.Close()

	var expired []*challenge.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("store/sqlite: scan challenge: %w", err)
		}
		expired = append(expired, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store/sqlite: iterate challenges: %w", err)
	}
	return expired, nil
}

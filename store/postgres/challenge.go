package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/challenge"
	"github.com/Safi643133/ai-immigration-services-sub003/id"
)

// CreateChallenge persists a new challenge.
func (s *Store) CreateChallenge(ctx context.Context, c *challenge.Challenge) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO formauto_challenges (`+challengeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.JobID, c.StepName, c.ImageArtifactID, c.ExpiresAt,
		c.Solved, c.SolvedAt, c.Attempts, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store/postgres: create challenge: %w", err)
	}
	return nil
}

// GetChallenge retrieves a challenge by ID.
func (s *Store) GetChallenge(ctx context.Context, challengeID id.ChallengeID) (*challenge.Challenge, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+challengeColumns+` FROM formauto_challenges WHERE id = $1`, challengeID)

	c, err := scanChallenge(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, formauto.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("store/postgres: get challenge: %w", err)
	}
	return c, nil
}

// GetActiveChallenge returns the job's unsolved, unexpired challenge.
func (s *Store) GetActiveChallenge(ctx context.Context, jobID id.JobID) (*challenge.Challenge, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+challengeColumns+` FROM formauto_challenges
		WHERE job_id = $1 AND solved = FALSE AND expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT 1`,
		jobID,
	)

	c, err := scanChallenge(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, formauto.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("store/postgres: get active challenge: %w", err)
	}
	return c, nil
}

// GetLatestChallenge returns the job's newest challenge regardless of
// its solved or expiry state.
func (s *Store) GetLatestChallenge(ctx context.Context, jobID id.JobID) (*challenge.Challenge, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+challengeColumns+` FROM formauto_challenges
		WHERE job_id = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		jobID,
	)

	c, err := scanChallenge(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, formauto.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("store/postgres: get latest challenge: %w", err)
	}
	return c, nil
}

// UpdateChallenge persists changes to an existing challenge.
func (s *Store) UpdateChallenge(ctx context.Context, c *challenge.Challenge) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE formauto_challenges SET
			job_id = $2, step_name = $3, image_artifact_id = $4,
			expires_at = $5, solved = $6, solved_at = $7, attempts = $8,
			created_at = $9, updated_at = $10
		WHERE id = $1`,
		c.ID, c.JobID, c.StepName, c.ImageArtifactID, c.ExpiresAt,
		c.Solved, c.SolvedAt, c.Attempts, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store/postgres: update challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return formauto.ErrChallengeNotFound
	}
	return nil
}

// ListExpiredChallenges returns unsolved challenges whose deadline
// passed before now.
func (s *Store) ListExpiredChallenges(ctx context.Context, now time.Time) ([]*challenge.Challenge, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+challengeColumns+` FROM formauto_challenges
		WHERE solved = FALSE AND expires_at < $1
		ORDER BY expires_at ASC`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list expired challenges: %w", err)
	}
	defer rows.Close()

	var expired []*challenge.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("store/postgres: scan challenge: %w", err)
		}
		expired = append(expired, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store/postgres: iterate challenges: %w", err)
	}
	return expired, nil
}

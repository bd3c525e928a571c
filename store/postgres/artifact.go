package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/artifact"
	"github.com/Safi643133/ai-immigration-services-sub003/id"
)

// CreateArtifact persists a new artifact record.
func (s *Store) CreateArtifact(ctx context.Context, a *artifact.Artifact) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO formauto_artifacts (`+artifactColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.JobID, string(a.Kind), a.Label, a.SHA256, a.ContentType, a.Size,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store/postgres: create artifact: %w", err)
	}
	return nil
}

// GetArtifact retrieves an artifact record by ID.
func (s *Store) GetArtifact(ctx context.Context, artifactID id.ArtifactID) (*artifact.Artifact, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+artifactColumns+` FROM formauto_artifacts WHERE id = $1`, artifactID)

	a, err := scanArtifact(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, formauto.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("store/postgres: get artifact: %w", err)
	}
	return a, nil
}

// ListArtifactsByJob returns a job's artifact records, oldest first.
func (s *Store) ListArtifactsByJob(ctx context.Context, jobID id.JobID) ([]*artifact.Artifact, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+artifactColumns+` FROM formauto_artifacts
		WHERE job_id = $1
		ORDER BY created_at ASC`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list artifacts: %w", err)
	}
	defer rows.Close()

	return collectArtifacts(rows)
}

// DeleteArtifactsByJob removes a job's artifact records, returning the
// removed records so callers can drop the blobs too.
func (s *Store) DeleteArtifactsByJob(ctx context.Context, jobID id.JobID) ([]*artifact.Artifact, error) {
	rows, err := s.pool.Query(ctx, `
		DELETE FROM formauto_artifacts
		WHERE job_id = $1
		RETURNING `+artifactColumns,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: delete artifacts: %w", err)
	}
	defer rows.Close()

	return collectArtifacts(rows)
}

func collectArtifacts(rows pgx.Rows) ([]*artifact.Artifact, error) {
	var artifacts []*artifact.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("store/postgres: scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store/postgres: iterate artifacts: %w", err)
	}
	return artifacts, nil
}

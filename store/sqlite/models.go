package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Safi643133/ai-immigration-services-sub003/artifact"
	"github.com/Safi643133/ai-immigration-services-sub003/challenge"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
	"github.com/Safi643133/ai-immigration-services-sub003/progress"
)

// rowScanner is the common slice of sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

// ── Job mapping ─────────────────────────────────────

const jobColumns = `
	id, submission_ref, owner_ref, status, embassy, priority,
	idempotency_key, field_map, metadata, error_code, error_message,
	worker_id, started_at, finished_at, heartbeat_at,
	created_at, updated_at`

func jobArgs(j *job.Job) ([]any, error) {
	fieldMap, err := json.Marshal(j.FieldMap)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: marshal field map: %w", err)
	}
	metadata, err := json.Marshal(j.Metadata)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: marshal metadata: %w", err)
	}
	return []any{
		j.ID, j.SubmissionRef, j.OwnerRef, string(j.Status), j.Embassy, j.Priority,
		j.IdempotencyKey, string(fieldMap), string(metadata), j.ErrorCode, j.ErrorMessage,
		j.WorkerID, j.StartedAt, j.FinishedAt, j.HeartbeatAt,
		j.CreatedAt, j.UpdatedAt,
	}, nil
}

func scanJob(row rowScanner) (*job.Job, error) {
	var (
		j           job.Job
		status      string
		fieldMap    sql.NullString
		metadata    sql.NullString
		startedAt   sql.NullTime
		finishedAt  sql.NullTime
		heartbeatAt sql.NullTime
	)
	err := row.Scan(
		&j.ID, &j.SubmissionRef, &j.OwnerRef, &status, &j.Embassy, &j.Priority,
		&j.IdempotencyKey, &fieldMap, &metadata, &j.ErrorCode, &j.ErrorMessage,
		&j.WorkerID, &startedAt, &finishedAt, &heartbeatAt,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	j.Status = job.Status(status)
	j.StartedAt = nullableTime(startedAt)
	j.FinishedAt = nullableTime(finishedAt)
	j.HeartbeatAt = nullableTime(heartbeatAt)
	if fieldMap.Valid && fieldMap.String != "" {
		if err := json.Unmarshal([]byte(fieldMap.String), &j.FieldMap); err != nil {
			return nil, fmt.Errorf("store/sqlite: unmarshal field map: %w", err)
		}
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &j.Metadata); err != nil {
			return nil, fmt.Errorf("store/sqlite: unmarshal metadata: %w", err)
		}
	}
	return &j, nil
}

func collectJobs(rows *sql.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("store/sqlite: scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store/sqlite: iterate jobs: %w", err)
	}
	return jobs, nil
}

// ── Progress mapping ────────────────────────────────

const updateColumns = `
	id, job_id, kind, seq, step_name, step_number, total_steps,
	percent, message, challenge_id, error_code, created_at, updated_at`

func scanUpdate(row rowScanner) (*progress.Update, error) {
	var (
		u    progress.Update
		kind string
	)
	err := row.Scan(
		&u.ID, &u.JobID, &kind, &u.Seq, &u.StepName, &u.StepNumber, &u.TotalSteps,
		&u.Percent, &u.Message, &u.ChallengeID, &u.ErrorCode, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Kind = progress.Kind(kind)
	return &u, nil
}

// ── Challenge mapping ───────────────────────────────

const challengeColumns = `
	id, job_id, step_name, image_artifact_id, expires_at,
	solved, solved_at, attempts, created_at, updated_at`

func scanChallenge(row rowScanner) (*challenge.Challenge, error) {
	var (
		c        challenge.Challenge
		solvedAt sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.JobID, &c.StepName, &c.ImageArtifactID, &c.ExpiresAt,
		&c.Solved, &solvedAt, &c.Attempts, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.SolvedAt = nullableTime(solvedAt)
	c.ExpiresAt = c.ExpiresAt.UTC()
	return &c, nil
}

// ── Artifact mapping ────────────────────────────────

const artifactColumns = `
	id, job_id, kind, label, sha256, content_type, size,
	created_at, updated_at`

func scanArtifact(row rowScanner) (*artifact.Artifact, error) {
	var (
		a    artifact.Artifact
		kind string
	)
	err := row.Scan(
		&a.ID, &a.JobID, &kind, &a.Label, &a.SHA256, &a.ContentType, &a.Size,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Kind = artifact.Kind(kind)
	return &a, nil
}

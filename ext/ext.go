// Package ext defines the extension system. Extensions are notified of
// lifecycle events (job queued, step completed, challenge issued, etc.)
// and can react to them — streaming, relaying, metrics.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/Safi643133/ai-immigration-services-sub003/challenge"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
	"github.com/Safi643133/ai-immigration-services-sub003/progress"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobQueued is called after a job is accepted and persisted.
type JobQueued interface {
	OnJobQueued(ctx context.Context, j *job.Job) error
}

// JobStarted is called when a worker begins executing a job.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *job.Job) error
}

// JobCompleted is called after a job finishes all steps successfully.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobFailed is called when a job fails terminally.
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, jobErr error) error
}

// JobCancelled is called after a cancellation takes effect.
type JobCancelled interface {
	OnJobCancelled(ctx context.Context, j *job.Job) error
}

// JobSuperseded is called on the OLD job when a newer submission for
// the same applicant replaces it.
type JobSuperseded interface {
	OnJobSuperseded(ctx context.Context, old, replacement *job.Job) error
}

// ──────────────────────────────────────────────────
// Step lifecycle hooks
// ──────────────────────────────────────────────────

// StepStarted is called when the engine begins a form step.
type StepStarted interface {
	OnStepStarted(ctx context.Context, j *job.Job, stepName string, stepNumber int) error
}

// StepCompleted is called after a form step's transition is confirmed.
type StepCompleted interface {
	OnStepCompleted(ctx context.Context, j *job.Job, stepName string, stepNumber int, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Challenge lifecycle hooks
// ──────────────────────────────────────────────────

// ChallengeIssued is called when a human-verification gate suspends a job.
type ChallengeIssued interface {
	OnChallengeIssued(ctx context.Context, c *challenge.Challenge) error
}

// ChallengeSolved is called when the remote site accepts a solution.
type ChallengeSolved interface {
	OnChallengeSolved(ctx context.Context, c *challenge.Challenge) error
}

// ChallengeRejected is called when the remote site rejects a solution.
// The job stays suspended; a fresh challenge may follow.
type ChallengeRejected interface {
	OnChallengeRejected(ctx context.Context, c *challenge.Challenge) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// ProgressRecorded is called after an update is appended to a job's feed.
type ProgressRecorded interface {
	OnProgressRecorded(ctx context.Context, u *progress.Update) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}

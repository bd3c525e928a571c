package job

import (
	"time"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/id"
)

// Status represents the lifecycle status of a job.
type Status string

const (
	// StatusQueued means the job is waiting to be picked up by a worker.
	StatusQueued Status = "queued"
	// StatusRunning means a worker is driving the remote form for this job.
	StatusRunning Status = "running"
	// StatusWaitingForCaptcha means the job is suspended on an unsolved
	// human-verification challenge.
	StatusWaitingForCaptcha Status = "waiting_for_captcha"
	// StatusCompleted means all steps finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed means the job failed terminally. A fresh submission is
	// the only recovery path; failed jobs are never retried.
	StatusFailed Status = "failed"
	// StatusCancelled means the job was explicitly cancelled.
	StatusCancelled Status = "cancelled"
)

// ActiveStatuses are the statuses in which a job occupies its
// (submission, owner) slot. At most one job per pair may hold an
// active status at any time.
var ActiveStatuses = []Status{StatusQueued, StatusRunning, StatusWaitingForCaptcha}

// IsTerminal reports whether s is a terminal status. Terminal jobs are
// immutable; no transition leaves a terminal status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether s is one of the active statuses.
func (s Status) IsActive() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusWaitingForCaptcha:
		return true
	default:
		return false
	}
}

// transitions is the status graph:
//
//	queued → running ⇄ waiting_for_captcha → {completed | failed | cancelled}
var transitions = map[Status][]Status{
	StatusQueued:            {StatusRunning, StatusFailed, StatusCancelled},
	StatusRunning:           {StatusWaitingForCaptcha, StatusCompleted, StatusFailed, StatusCancelled},
	StatusWaitingForCaptcha: {StatusRunning, StatusCompleted, StatusFailed, StatusCancelled},
}

// CanTransition reports whether moving from one status to another is
// legal under the job state machine.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Well-known error codes set on failed jobs.
const (
	// CodeSuperseded marks administrative preemption by a newer submission
	// for the same (submission, owner) pair. Not an automation defect.
	CodeSuperseded = "SUPERSEDED"
	// CodeWorkerLost marks a running job whose worker stopped heartbeating.
	CodeWorkerLost = "WORKER_LOST"
	// CodeCancelled is recorded on cancellation for audit purposes.
	CodeCancelled = "CANCELLED"
	// CodeTransportTimeout marks exhaustion of all three readiness wait
	// tiers on a step.
	CodeTransportTimeout = "TRANSPORT_TIMEOUT"
	// CodeCaptchaTimeout marks a challenge wait that expired unsolved.
	CodeCaptchaTimeout = "CAPTCHA_TIMEOUT"
	// CodeInternal marks infrastructure failures not attributable to a
	// specific form step.
	CodeInternal = "INTERNAL"
)

// Job is one end-to-end attempt to drive the remote multi-step form to
// completion for a logical submission.
type Job struct {
	formauto.Entity

	ID             id.JobID          `json:"id"`
	SubmissionRef  string            `json:"submission_ref"`
	OwnerRef       string            `json:"owner_ref"`
	Status         Status            `json:"status"`
	Embassy        string            `json:"embassy,omitempty"`
	Priority       int               `json:"priority"`
	IdempotencyKey string            `json:"idempotency_key"`
	FieldMap       FieldMap          `json:"field_map,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	ErrorCode      string            `json:"error_code,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	WorkerID       id.WorkerID       `json:"worker_id,omitempty"`
	StartedAt      *time.Time        `json:"started_at,omitempty"`
	FinishedAt     *time.Time        `json:"finished_at,omitempty"`
	HeartbeatAt    *time.Time        `json:"heartbeat_at,omitempty"`
}

// Transition mutates the job status after validating the move.
// Terminal stamping (FinishedAt) is applied for terminal targets.
func (j *Job) Transition(to Status) error {
	if !CanTransition(j.Status, to) {
		return formauto.ErrInvalidTransition
	}
	j.Status = to
	j.Touch()
	if to.IsTerminal() {
		now := time.Now().UTC()
		j.FinishedAt = &now
	}
	return nil
}

// Fail moves the job to failed with the given code and message.
func (j *Job) Fail(code, message string) error {
	if err := j.Transition(StatusFailed); err != nil {
		return err
	}
	j.ErrorCode = code
	j.ErrorMessage = message
	return nil
}

// MergeMetadata merges src into the job's metadata map additively:
// union of keys, new values win per key. The map is never replaced
// wholesale so concurrently written keys survive.
func (j *Job) MergeMetadata(src map[string]string) {
	if len(src) == 0 {
		return
	}
	if j.Metadata == nil {
		j.Metadata = make(map[string]string, len(src))
	}
	for k, v := range src {
		j.Metadata[k] = v
	}
	j.Touch()
}

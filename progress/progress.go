// Package progress records and publishes the append-only update feed
// for a job. Every externally visible state change — creation,
// supersession, step completion, challenge lifecycle, terminal outcome —
// lands here as an immutable update, so a client that replays the feed
// reconstructs the job's history.
package progress

import (
	"time"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/id"
)

// Kind identifies what a progress update reports.
type Kind string

const (
	// KindJobCreated is the first update of every job.
	KindJobCreated Kind = "job_created"
	// KindJobSuperseded is appended to the OLD job when a new submission
	// for the same (submission, owner) pair replaces it.
	KindJobSuperseded Kind = "job_superseded"
	// KindStepProgress reports a completed form step.
	KindStepProgress Kind = "step_progress"
	// KindCaptchaRequired reports that execution is suspended on a
	// human-verification challenge.
	KindCaptchaRequired Kind = "captcha_required"
	// KindNewCaptcha reports that a rejected solution produced a fresh
	// challenge for the same job.
	KindNewCaptcha Kind = "new_captcha"
	// KindCaptchaSolved reports that a solution was accepted and
	// execution resumed.
	KindCaptchaSolved Kind = "captcha_solved"
	// KindJobCompleted, KindJobFailed and KindJobCancelled are terminal:
	// no update follows them.
	KindJobCompleted Kind = "job_completed"
	KindJobFailed    Kind = "job_failed"
	KindJobCancelled Kind = "job_cancelled"
)

// Terminal reports whether the kind closes the job's feed.
func (k Kind) Terminal() bool {
	switch k {
	case KindJobCompleted, KindJobFailed, KindJobCancelled:
		return true
	}
	return false
}

// Update is one immutable entry in a job's progress feed.
type Update struct {
	formauto.Entity

	ID    id.UpdateID `json:"id"`
	JobID id.JobID    `json:"job_id"`
	Kind  Kind        `json:"kind"`

	// Seq is the position in the job's feed, assigned by the store on
	// append, starting at 1. Clients resume streams from a known Seq.
	Seq int64 `json:"seq"`

	// StepName and StepNumber are set for step_progress updates
	// (StepNumber is 1-based). Zero values otherwise.
	StepName   string `json:"step_name,omitempty"`
	StepNumber int    `json:"step_number,omitempty"`
	TotalSteps int    `json:"total_steps,omitempty"`

	// Percent is overall completion, 0..100. Monotonically
	// non-decreasing within a job's feed.
	Percent int `json:"percent"`

	// Message is a short human-readable description.
	Message string `json:"message,omitempty"`

	// ChallengeID links challenge-related updates to the challenge.
	ChallengeID id.ChallengeID `json:"challenge_id,omitzero"`

	// ErrorCode is set on job_failed updates.
	ErrorCode string `json:"error_code,omitempty"`
}

// NewUpdate builds an update with a fresh ID and creation timestamp.
func NewUpdate(jobID id.JobID, kind Kind) *Update {
	return &Update{
		Entity: formauto.NewEntity(),
		ID:     id.NewUpdateID(),
		JobID:  jobID,
		Kind:   kind,
	}
}

// Summary is the derived at-a-glance view of a job's feed.
type Summary struct {
	JobID       id.JobID  `json:"job_id"`
	Percent     int       `json:"percent"`
	CurrentStep string    `json:"current_step,omitempty"`
	StepNumber  int       `json:"step_number,omitempty"`
	TotalSteps  int       `json:"total_steps,omitempty"`
	LastKind    Kind      `json:"last_kind,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
	// NeedsChallenge reports that the job is suspended on an unsolved
	// verification challenge and is waiting for a human.
	NeedsChallenge bool `json:"needs_challenge,omitempty"`
}

// Summarize derives a summary from a feed ordered oldest first.
func Summarize(jobID id.JobID, updates []*Update) Summary {
	s := Summary{JobID: jobID}
	for _, u := range updates {
		if u.Percent > s.Percent {
			s.Percent = u.Percent
		}
		switch u.Kind {
		case KindStepProgress:
			s.CurrentStep = u.StepName
			s.StepNumber = u.StepNumber
			s.TotalSteps = u.TotalSteps
		case KindCaptchaRequired, KindNewCaptcha:
			s.NeedsChallenge = true
		case KindCaptchaSolved:
			s.NeedsChallenge = false
		}
		if u.Kind.Terminal() {
			s.NeedsChallenge = false
		}
		s.LastKind = u.Kind
		s.UpdatedAt = u.CreatedAt
	}
	return s
}

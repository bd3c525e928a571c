// Package challenge manages human-verification gates. When the remote
// form presents a captcha the engine suspends the job, a challenge
// record is issued, and execution resumes only after a human submits a
// solution the remote site accepts — or the challenge expires and the
// job fails.
package challenge

import (
	"time"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/id"
)

// DefaultTTL is how long a challenge stays solvable.
const DefaultTTL = 5 * time.Minute

// Solution length bounds, in runes after trimming. The remote gate
// never issues codes outside this range, so anything else is rejected
// without spending an attempt.
const (
	MinSolutionLength = 3
	MaxSolutionLength = 32
)

// Challenge is one human-verification gate encountered by a job.
type Challenge struct {
	formauto.Entity

	ID    id.ChallengeID `json:"id"`
	JobID id.JobID       `json:"job_id"`

	// StepName is the form step at which the gate appeared.
	StepName string `json:"step_name,omitempty"`

	// ImageArtifactID references the captured challenge image, when a
	// screenshot succeeded. Best effort.
	ImageArtifactID id.ArtifactID `json:"image_artifact_id,omitzero"`

	// ExpiresAt is the solve deadline. A solution after this instant is
	// rejected and the job fails with CAPTCHA_TIMEOUT.
	ExpiresAt time.Time `json:"expires_at"`

	// Solved flips to true exactly once, when the remote site accepts a
	// solution. It never flips back.
	Solved   bool       `json:"solved"`
	SolvedAt *time.Time `json:"solved_at,omitempty"`

	// Attempts counts submitted solutions, accepted or not.
	Attempts int `json:"attempts"`
}

// New issues a challenge for the given job with the given TTL.
func New(jobID id.JobID, stepName string, ttl time.Duration) *Challenge {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	e := formauto.NewEntity()
	return &Challenge{
		Entity:    e,
		ID:        id.NewChallengeID(),
		JobID:     jobID,
		StepName:  stepName,
		ExpiresAt: e.CreatedAt.Add(ttl),
	}
}

// Expired reports whether the solve deadline has passed at the given
// instant.
func (c *Challenge) Expired(now time.Time) bool {
	return !c.Solved && now.After(c.ExpiresAt)
}

// Active reports whether the challenge still accepts solutions.
func (c *Challenge) Active(now time.Time) bool {
	return !c.Solved && !c.Expired(now)
}

// MarkSolved records an accepted solution. The transition is one-way.
func (c *Challenge) MarkSolved(now time.Time) {
	if c.Solved {
		return
	}
	c.Solved = true
	at := now
	c.SolvedAt = &at
	c.Touch()
}

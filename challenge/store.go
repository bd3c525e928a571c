package challenge

import (
	"context"
	"time"

	"github.com/Safi643133/ai-immigration-services-sub003/id"
)

// Store is the persistence contract for challenges. Implementations
// live under store/.
type Store interface {
	CreateChallenge(ctx context.Context, c *Challenge) error
	GetChallenge(ctx context.Context, challengeID id.ChallengeID) (*Challenge, error)

	// GetActiveChallenge returns the job's unsolved, unexpired
	// challenge, or ErrChallengeNotFound when there is none.
	GetActiveChallenge(ctx context.Context, jobID id.JobID) (*Challenge, error)

	// GetLatestChallenge returns the job's newest challenge regardless
	// of its solved or expiry state, or ErrChallengeNotFound when the
	// job never had one. Solving goes through it so a stale challenge
	// reports its actual fate instead of vanishing.
	GetLatestChallenge(ctx context.Context, jobID id.JobID) (*Challenge, error)

	UpdateChallenge(ctx context.Context, c *Challenge) error

	// ListExpiredChallenges returns unsolved challenges whose deadline
	// passed before now. The janitor fails their jobs.
	ListExpiredChallenges(ctx context.Context, now time.Time) ([]*Challenge, error)
}

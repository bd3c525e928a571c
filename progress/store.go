package progress

import (
	"context"

	"github.com/Safi643133/ai-immigration-services-sub003/id"
)

// Store is the persistence contract for progress feeds. Implementations
// live under store/.
type Store interface {
	// AppendUpdate persists one update at the end of its job's feed.
	AppendUpdate(ctx context.Context, u *Update) error

	// ListUpdates returns a job's feed ordered oldest first. afterSeq
	// skips updates already seen; pass zero for the full feed.
	ListUpdates(ctx context.Context, jobID id.JobID, afterSeq int64) ([]*Update, error)

	// LatestPercent returns the highest percent recorded for the job,
	// zero when the feed is empty.
	LatestPercent(ctx context.Context, jobID id.JobID) (int, error)
}

package job

import (
	"context"
	"time"

	"github.com/Safi643133/ai-immigration-services-sub003/id"
)

// ListOpts controls filtering and pagination for job list queries.
type ListOpts struct {
	// Status filters by job status. Empty means all statuses.
	Status Status
	// Embassy filters by embassy/location tag. Empty means all.
	Embassy string
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
}

// CountOpts controls filtering for job count queries.
type CountOpts struct {
	// Status filters by job status. Empty means all statuses.
	Status Status
	// OwnerRef filters by owner. Empty means all owners.
	OwnerRef string
}

// Store defines the persistence contract for jobs.
type Store interface {
	// CreateJob persists a new job in queued status.
	CreateJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// UpdateJob persists changes to an existing job. Implementations
	// reject writes over a row already in a terminal status with
	// ErrJobNotActive, so a stale in-memory copy can never resurrect a
	// finished job.
	UpdateJob(ctx context.Context, j *Job) error

	// GetActiveJob returns the job in an active status for the given
	// (submission, owner) pair, or formauto.ErrJobNotFound if none.
	GetActiveJob(ctx context.Context, submissionRef, ownerRef string) (*Job, error)

	// ClaimQueuedJobs atomically claims up to limit queued jobs, sets
	// them to running with the claiming worker's ID, and returns them.
	// Jobs are ordered by priority (descending) then creation time
	// (ascending).
	ClaimQueuedJobs(ctx context.Context, workerID id.WorkerID, limit int) ([]*Job, error)

	// ListJobsByOwner returns an owner's jobs matching the options,
	// newest first.
	ListJobsByOwner(ctx context.Context, ownerRef string, opts ListOpts) ([]*Job, error)

	// HeartbeatJob updates the heartbeat timestamp for a running or
	// captcha-waiting job, indicating the worker is still alive.
	HeartbeatJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) error

	// ReapStaleJobs returns active claimed jobs whose last heartbeat is
	// older than the given threshold, indicating the worker may have
	// crashed.
	ReapStaleJobs(ctx context.Context, threshold time.Duration) ([]*Job, error)

	// CountJobs returns the number of jobs matching the given options.
	CountJobs(ctx context.Context, opts CountOpts) (int64, error)

	// PurgeTerminalJobs removes terminal jobs that finished before the
	// given time, returning the IDs of the jobs removed so callers can
	// clean up dependent records.
	PurgeTerminalJobs(ctx context.Context, before time.Time) ([]id.JobID, error)
}

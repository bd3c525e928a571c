// Package orchestrator implements the submission lifecycle: accepting
// new submissions, superseding stale active jobs, cancellation, and
// read-side aggregation. It is the layer the API talks to.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/challenge"
	"github.com/Safi643133/ai-immigration-services-sub003/ext"
	"github.com/Safi643133/ai-immigration-services-sub003/id"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
	"github.com/Safi643133/ai-immigration-services-sub003/progress"
	"github.com/Safi643133/ai-immigration-services-sub003/store"
)

// lockStripes is the size of the striped mutex table guarding
// (submission, owner) pairs during submit.
const lockStripes = 64

// PoolCanceller lets the orchestrator reach into the local worker pool
// to stop an in-flight run. The worker.Pool satisfies this.
type PoolCanceller interface {
	CancelJob(ctx context.Context, jobID id.JobID) (acknowledged, found bool)
}

// Solver accepts challenge solutions. The challenge.Coordinator
// satisfies this.
type Solver interface {
	Solve(ctx context.Context, challengeID id.ChallengeID, solution string) (challenge.SolveResult, error)
}

// Service coordinates the job lifecycle against the store.
type Service struct {
	store      store.Store
	pub        *progress.Publisher
	extensions *ext.Registry
	pool       PoolCanceller
	solver     Solver
	logger     *slog.Logger

	locks [lockStripes]sync.Mutex
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPool wires the local worker pool for in-flight cancellation.
// Without it, cancellation still lands in the store; the engine's next
// checkpoint picks it up.
func WithPool(p PoolCanceller) ServiceOption {
	return func(s *Service) { s.pool = p }
}

// WithSolver wires the challenge coordinator for solution submission.
func WithSolver(solver Solver) ServiceOption {
	return func(s *Service) { s.solver = solver }
}

// NewService creates the orchestration service.
func NewService(st store.Store, pub *progress.Publisher, extensions *ext.Registry, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:      st,
		pub:        pub,
		extensions: extensions,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitInput is a request to drive the remote form for a submission.
type SubmitInput struct {
	// SubmissionRef identifies the logical submission being automated.
	SubmissionRef string
	// OwnerRef identifies the account the submission belongs to.
	OwnerRef string
	// Embassy tags the job for per-embassy admission limits.
	Embassy string
	// Priority orders claiming; higher runs first.
	Priority int
	// FieldMap is the flattened key/value answers for the whole form.
	FieldMap job.FieldMap
	// Metadata is opaque caller data carried on the job.
	Metadata map[string]string
}

func (in *SubmitInput) validate() error {
	if in.SubmissionRef == "" {
		return formauto.ErrMissingRef
	}
	if in.OwnerRef == "" {
		return formauto.ErrMissingOwner
	}
	if len(in.FieldMap) == 0 {
		return formauto.ErrEmptyFieldMap
	}
	return nil
}

// Submit accepts a new submission. If an active job already exists for
// the same (submission, owner) pair it is superseded: failed with
// SUPERSEDED and replaced by the new job. Supersession is administrative
// preemption, not an automation defect. The check-and-replace runs
// under a striped per-pair lock so concurrent submits for one pair
// serialize.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*job.Job, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	mu := s.lockFor(in.SubmissionRef, in.OwnerRef)
	mu.Lock()
	defer mu.Unlock()

	replacement := newJob(in)

	old, err := s.store.GetActiveJob(ctx, in.SubmissionRef, in.OwnerRef)
	switch {
	case err == nil:
		if supErr := s.supersede(ctx, old, replacement); supErr != nil {
			return nil, supErr
		}
	case !errors.Is(err, formauto.ErrJobNotFound):
		return nil, fmt.Errorf("orchestrator: active job lookup: %w", err)
	}

	if err := s.store.CreateJob(ctx, replacement); err != nil {
		return nil, fmt.Errorf("orchestrator: create job: %w", err)
	}

	u := progress.NewUpdate(replacement.ID, progress.KindJobCreated)
	u.Message = "submission accepted"
	if err := s.pub.Publish(ctx, u); err != nil {
		s.logger.Warn("publish job_created",
			slog.String("job_id", replacement.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	if old != nil {
		s.extensions.EmitJobSuperseded(ctx, old, replacement)
	}
	s.extensions.EmitJobQueued(ctx, replacement)

	s.logger.Info("job accepted",
		slog.String("job_id", replacement.ID.String()),
		slog.String("submission_ref", in.SubmissionRef),
		slog.String("owner_ref", in.OwnerRef),
		slog.Bool("superseded_previous", old != nil),
	)
	return replacement, nil
}

// supersede fails the old active job and closes its feed. A locally
// running old job also gets its engine run cancelled.
func (s *Service) supersede(ctx context.Context, old, replacement *job.Job) error {
	if err := old.Fail(job.CodeSuperseded, "superseded by "+replacement.ID.String()); err != nil {
		return fmt.Errorf("orchestrator: supersede %s: %w", old.ID, err)
	}
	if err := s.store.UpdateJob(ctx, old); err != nil {
		// The old job reached a terminal status on its own between the
		// active lookup and this write. Nothing to supersede anymore.
		if errors.Is(err, formauto.ErrJobNotActive) {
			s.logger.Info("stale job finished before supersede",
				slog.String("job_id", old.ID.String()),
			)
			return nil
		}
		return fmt.Errorf("orchestrator: persist superseded job: %w", err)
	}

	u := progress.NewUpdate(old.ID, progress.KindJobSuperseded)
	u.Message = "superseded by " + replacement.ID.String()
	u.ErrorCode = job.CodeSuperseded
	if err := s.pub.Publish(ctx, u); err != nil {
		s.logger.Warn("publish job_superseded",
			slog.String("job_id", old.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	if s.pool != nil {
		if _, found := s.pool.CancelJob(ctx, old.ID); found {
			s.logger.Info("cancelled superseded run",
				slog.String("job_id", old.ID.String()),
			)
		}
	}
	return nil
}

// CancelResult reports what a cancellation achieved.
type CancelResult struct {
	Job *job.Job `json:"job"`
	// DriverAcknowledged reports whether the remote session confirmed
	// termination. Best effort; false does not mean the cancel failed.
	DriverAcknowledged bool `json:"driver_acknowledged"`
}

// Cancel stops an active job. Terminal jobs cannot be cancelled and
// return ErrJobNotActive. The terminal transition lands in the store
// first; a locally running engine is then cancelled directly, and a
// remote worker's engine aborts at its next checkpoint.
func (s *Service) Cancel(ctx context.Context, jobID id.JobID, ownerRef string) (*CancelResult, error) {
	j, err := s.ownedJob(ctx, jobID, ownerRef)
	if err != nil {
		return nil, err
	}
	if !j.Status.IsActive() {
		return nil, formauto.ErrJobNotActive
	}

	if err := j.Transition(job.StatusCancelled); err != nil {
		return nil, fmt.Errorf("orchestrator: cancel %s: %w", jobID, err)
	}
	j.ErrorCode = job.CodeCancelled
	if err := s.store.UpdateJob(ctx, j); err != nil {
		if errors.Is(err, formauto.ErrJobNotActive) {
			return nil, err
		}
		return nil, fmt.Errorf("orchestrator: persist cancellation: %w", err)
	}

	var acknowledged bool
	if s.pool != nil {
		acknowledged, _ = s.pool.CancelJob(ctx, jobID)
	}

	u := progress.NewUpdate(jobID, progress.KindJobCancelled)
	u.Message = "cancelled by owner"
	if err := s.pub.Publish(ctx, u); err != nil {
		s.logger.Warn("publish job_cancelled",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()),
		)
	}

	s.extensions.EmitJobCancelled(ctx, j)

	s.logger.Info("job cancelled",
		slog.String("job_id", jobID.String()),
		slog.Bool("driver_acknowledged", acknowledged),
	)
	return &CancelResult{Job: j, DriverAcknowledged: acknowledged}, nil
}

// ownedJob loads a job and enforces owner visibility. A job owned by
// someone else reads as not found. An empty ownerRef skips the check
// (trusted internal callers).
func (s *Service) ownedJob(ctx context.Context, jobID id.JobID, ownerRef string) (*job.Job, error) {
	j, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if ownerRef != "" && j.OwnerRef != ownerRef {
		return nil, formauto.ErrJobNotFound
	}
	return j, nil
}

// newJob builds a queued job from a validated submit input.
func newJob(in SubmitInput) *job.Job {
	meta := make(map[string]string, len(in.Metadata))
	for k, v := range in.Metadata {
		meta[k] = v
	}
	return &job.Job{
		Entity:         formauto.NewEntity(),
		ID:             id.NewJobID(),
		SubmissionRef:  in.SubmissionRef,
		OwnerRef:       in.OwnerRef,
		Status:         job.StatusQueued,
		Embassy:        in.Embassy,
		Priority:       in.Priority,
		IdempotencyKey: uuid.NewString(),
		FieldMap:       in.FieldMap.Clone(),
		Metadata:       meta,
	}
}

// lockFor returns the stripe guarding a (submission, owner) pair.
func (s *Service) lockFor(submissionRef, ownerRef string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(submissionRef)) //nolint:errcheck // fnv never fails
	h.Write([]byte{0})             //nolint:errcheck
	h.Write([]byte(ownerRef))      //nolint:errcheck
	return &s.locks[h.Sum32()%lockStripes]
}

package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/artifact"
	"github.com/Safi643133/ai-immigration-services-sub003/challenge"
	"github.com/Safi643133/ai-immigration-services-sub003/id"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
	"github.com/Safi643133/ai-immigration-services-sub003/progress"
)

// Snapshot aggregates everything a client wants to know about a job.
type Snapshot struct {
	Job       *job.Job             `json:"job"`
	Summary   progress.Summary     `json:"summary"`
	Updates   []*progress.Update   `json:"updates"`
	Challenge *challenge.Challenge `json:"challenge,omitempty"`
	Artifacts []*artifact.Artifact `json:"artifacts,omitempty"`
}

// Get returns a full snapshot of one job: the job record, its progress
// feed and derived summary, the active challenge if any, and captured
// artifacts. The dependent reads run concurrently.
func (s *Service) Get(ctx context.Context, jobID id.JobID, ownerRef string) (*Snapshot, error) {
	j, err := s.ownedJob(ctx, jobID, ownerRef)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Job: j}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		updates, updErr := s.store.ListUpdates(gctx, jobID, 0)
		if updErr != nil {
			return fmt.Errorf("list updates: %w", updErr)
		}
		snap.Updates = updates
		snap.Summary = progress.Summarize(jobID, updates)
		return nil
	})
	g.Go(func() error {
		ch, chErr := s.store.GetActiveChallenge(gctx, jobID)
		if chErr != nil {
			if errors.Is(chErr, formauto.ErrChallengeNotFound) {
				return nil
			}
			return fmt.Errorf("active challenge: %w", chErr)
		}
		snap.Challenge = ch
		return nil
	})
	g.Go(func() error {
		arts, artErr := s.store.ListArtifactsByJob(gctx, jobID)
		if artErr != nil {
			return fmt.Errorf("list artifacts: %w", artErr)
		}
		snap.Artifacts = arts
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("orchestrator: snapshot %s: %w", jobID, err)
	}
	return snap, nil
}

// GetJob loads a single job with owner visibility enforced.
func (s *Service) GetJob(ctx context.Context, jobID id.JobID, ownerRef string) (*job.Job, error) {
	return s.ownedJob(ctx, jobID, ownerRef)
}

// List returns an owner's jobs, newest first.
func (s *Service) List(ctx context.Context, ownerRef string, opts job.ListOpts) ([]*job.Job, error) {
	if ownerRef == "" {
		return nil, formauto.ErrMissingOwner
	}
	return s.store.ListJobsByOwner(ctx, ownerRef, opts)
}

// Progress returns a job's feed after the given sequence number.
// afterSeq zero returns the whole feed.
func (s *Service) Progress(ctx context.Context, jobID id.JobID, ownerRef string, afterSeq int64) ([]*progress.Update, error) {
	if _, err := s.ownedJob(ctx, jobID, ownerRef); err != nil {
		return nil, err
	}
	return s.store.ListUpdates(ctx, jobID, afterSeq)
}

// ActiveChallenge returns the job's unsolved, unexpired challenge.
// ErrChallengeNotFound means execution is not suspended.
func (s *Service) ActiveChallenge(ctx context.Context, jobID id.JobID, ownerRef string) (*challenge.Challenge, error) {
	if _, err := s.ownedJob(ctx, jobID, ownerRef); err != nil {
		return nil, err
	}
	return s.store.GetActiveChallenge(ctx, jobID)
}

// SolveChallenge submits a solution for the job's latest challenge.
// A rejected solution is not an error: the result reports Solved false
// and a fresh challenge image is already in place. Solving targets the
// latest challenge rather than the active one so a submission against
// an expired or already-solved challenge reports its actual fate
// (ErrChallengeExpired, ErrChallengeSolved) instead of not-found.
func (s *Service) SolveChallenge(ctx context.Context, jobID id.JobID, ownerRef, solution string) (challenge.SolveResult, error) {
	if s.solver == nil {
		return challenge.SolveResult{}, fmt.Errorf("orchestrator: challenge solving not configured")
	}
	if _, err := s.ownedJob(ctx, jobID, ownerRef); err != nil {
		return challenge.SolveResult{}, err
	}
	ch, err := s.store.GetLatestChallenge(ctx, jobID)
	if err != nil {
		return challenge.SolveResult{}, err
	}
	return s.solver.Solve(ctx, ch.ID, solution)
}

// ApplyWorkerUpdate merges worker-reported metadata into an active job.
// The merge is additive: union of keys, new values winning per key, so
// concurrent updates touching different keys both survive. Terminal
// jobs are immutable.
func (s *Service) ApplyWorkerUpdate(ctx context.Context, jobID id.JobID, metadata map[string]string) (*job.Job, error) {
	j, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.Status.IsTerminal() {
		return nil, formauto.ErrJobNotActive
	}

	j.MergeMetadata(metadata)
	if err := s.store.UpdateJob(ctx, j); err != nil {
		return nil, fmt.Errorf("orchestrator: persist worker update: %w", err)
	}
	return j, nil
}

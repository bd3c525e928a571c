package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/artifact"
	"github.com/Safi643133/ai-immigration-services-sub003/challenge"
	"github.com/Safi643133/ai-immigration-services-sub003/id"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
	"github.com/Safi643133/ai-immigration-services-sub003/progress"
	"github.com/Safi643133/ai-immigration-services-sub003/store/memory"
)

func newJob(submissionRef, ownerRef string) *job.Job {
	return &job.Job{
		Entity:        formauto.NewEntity(),
		ID:            id.NewJobID(),
		SubmissionRef: submissionRef,
		OwnerRef:      ownerRef,
		Status:        job.StatusQueued,
	}
}

func TestJobCreateGetUpdate(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()
	j := newJob("sub-1", "owner-1")

	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := s.CreateJob(ctx, j); !errors.Is(err, formauto.ErrJobAlreadyExists) {
		t.Errorf("duplicate CreateJob = %v, want ErrJobAlreadyExists", err)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.SubmissionRef != "sub-1" {
		t.Errorf("SubmissionRef = %q", got.SubmissionRef)
	}

	got.Embassy = "LONDON"
	if err := s.UpdateJob(ctx, got); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	again, _ := s.GetJob(ctx, j.ID)
	if again.Embassy != "LONDON" {
		t.Errorf("Embassy after update = %q", again.Embassy)
	}

	if _, err := s.GetJob(ctx, id.NewJobID()); !errors.Is(err, formauto.ErrJobNotFound) {
		t.Errorf("GetJob missing = %v, want ErrJobNotFound", err)
	}
}

func TestUpdateTerminalJobRejected(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()
	j := newJob("sub-1", "owner-1")

	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	// The write that lands the terminal status is allowed.
	j.Status = job.StatusCancelled
	if err := s.UpdateJob(ctx, j); err != nil {
		t.Fatalf("terminal transition: %v", err)
	}

	// Any later write over the terminal row is not.
	stale := newJob("sub-1", "owner-1")
	stale.ID = j.ID
	stale.Status = job.StatusWaitingForCaptcha
	if err := s.UpdateJob(ctx, stale); !errors.Is(err, formauto.ErrJobNotActive) {
		t.Fatalf("update terminal job = %v, want ErrJobNotActive", err)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != job.StatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
}

func TestGetActiveJob(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()

	active := newJob("sub-1", "owner-1")
	if err := s.CreateJob(ctx, active); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	done := newJob("sub-2", "owner-1")
	done.Status = job.StatusCompleted
	if err := s.CreateJob(ctx, done); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	got, err := s.GetActiveJob(ctx, "sub-1", "owner-1")
	if err != nil {
		t.Fatalf("GetActiveJob: %v", err)
	}
	if got.ID != active.ID {
		t.Errorf("GetActiveJob returned wrong job")
	}

	if _, err := s.GetActiveJob(ctx, "sub-2", "owner-1"); !errors.Is(err, formauto.ErrJobNotFound) {
		t.Errorf("terminal job reported active: %v", err)
	}
	if _, err := s.GetActiveJob(ctx, "sub-1", "owner-2"); !errors.Is(err, formauto.ErrJobNotFound) {
		t.Errorf("wrong owner matched: %v", err)
	}
}

func TestClaimQueuedJobsOrdering(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()

	low := newJob("sub-low", "o")
	low.Priority = 1
	high := newJob("sub-high", "o")
	high.Priority = 5
	for _, j := range []*job.Job{low, high} {
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}

	workerID := id.NewWorkerID()
	claimed, err := s.ClaimQueuedJobs(ctx, workerID, 1)
	if err != nil {
		t.Fatalf("ClaimQueuedJobs: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("claimed %d jobs, want 1", len(claimed))
	}
	if claimed[0].ID != high.ID {
		t.Errorf("claimed low-priority job first")
	}
	if claimed[0].Status != job.StatusRunning {
		t.Errorf("claimed job status = %s, want running", claimed[0].Status)
	}
	if claimed[0].WorkerID != workerID {
		t.Errorf("claimed job not stamped with worker ID")
	}

	// The claim must be atomic: a second claim cannot see the same job.
	again, err := s.ClaimQueuedJobs(ctx, id.NewWorkerID(), 10)
	if err != nil {
		t.Fatalf("second ClaimQueuedJobs: %v", err)
	}
	if len(again) != 1 || again[0].ID != low.ID {
		t.Errorf("second claim = %v, want only the low-priority job", again)
	}
}

func TestReapStaleJobs(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()

	j := newJob("sub-1", "o")
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := s.ClaimQueuedJobs(ctx, id.NewWorkerID(), 1); err != nil {
		t.Fatalf("ClaimQueuedJobs: %v", err)
	}

	// Fresh heartbeat: nothing to reap.
	stale, err := s.ReapStaleJobs(ctx, time.Minute)
	if err != nil {
		t.Fatalf("ReapStaleJobs: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("reaped %d fresh jobs", len(stale))
	}

	// A zero threshold makes any heartbeat stale.
	time.Sleep(5 * time.Millisecond)
	stale, err = s.ReapStaleJobs(ctx, 0)
	if err != nil {
		t.Fatalf("ReapStaleJobs: %v", err)
	}
	if len(stale) != 1 {
		t.Errorf("reaped %d jobs, want 1", len(stale))
	}
}

func TestPurgeTerminalJobs(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()

	j := newJob("sub-1", "o")
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	loaded, _ := s.GetJob(ctx, j.ID)
	loaded.Status = job.StatusCompleted
	finished := time.Now().UTC().Add(-48 * time.Hour)
	loaded.FinishedAt = &finished
	if err := s.UpdateJob(ctx, loaded); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	purged, err := s.PurgeTerminalJobs(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeTerminalJobs: %v", err)
	}
	if len(purged) != 1 || purged[0] != j.ID {
		t.Errorf("purged = %v, want [%s]", purged, j.ID)
	}
	if _, err := s.GetJob(ctx, j.ID); !errors.Is(err, formauto.ErrJobNotFound) {
		t.Errorf("purged job still present")
	}
}

func TestProgressFeed(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()
	jobID := id.NewJobID()

	for i, kind := range []progress.Kind{progress.KindJobCreated, progress.KindStepProgress, progress.KindJobCompleted} {
		u := progress.NewUpdate(jobID, kind)
		u.Percent = i * 50
		if err := s.AppendUpdate(ctx, u); err != nil {
			t.Fatalf("AppendUpdate: %v", err)
		}
		if u.Seq != int64(i+1) {
			t.Errorf("Seq = %d, want %d", u.Seq, i+1)
		}
	}

	feed, err := s.ListUpdates(ctx, jobID, 0)
	if err != nil {
		t.Fatalf("ListUpdates: %v", err)
	}
	if len(feed) != 3 {
		t.Fatalf("feed len = %d, want 3", len(feed))
	}
	if feed[0].Kind != progress.KindJobCreated || feed[2].Kind != progress.KindJobCompleted {
		t.Errorf("feed out of order: %v %v", feed[0].Kind, feed[2].Kind)
	}

	tail, err := s.ListUpdates(ctx, jobID, 2)
	if err != nil {
		t.Fatalf("ListUpdates after seq: %v", err)
	}
	if len(tail) != 1 || tail[0].Seq != 3 {
		t.Errorf("tail = %v, want only seq 3", tail)
	}

	high, err := s.LatestPercent(ctx, jobID)
	if err != nil {
		t.Fatalf("LatestPercent: %v", err)
	}
	if high != 100 {
		t.Errorf("LatestPercent = %d, want 100", high)
	}
}

func TestChallengeLifecycle(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()
	jobID := id.NewJobID()

	c := challenge.New(jobID, "PERSONAL_1", time.Minute)
	if err := s.CreateChallenge(ctx, c); err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}

	// Only one active challenge per job.
	dup := challenge.New(jobID, "PERSONAL_1", time.Minute)
	if err := s.CreateChallenge(ctx, dup); !errors.Is(err, formauto.ErrChallengeActive) {
		t.Errorf("second active challenge = %v, want ErrChallengeActive", err)
	}

	got, err := s.GetActiveChallenge(ctx, jobID)
	if err != nil {
		t.Fatalf("GetActiveChallenge: %v", err)
	}
	if got.ID != c.ID {
		t.Errorf("GetActiveChallenge returned wrong challenge")
	}

	got.MarkSolved(time.Now().UTC())
	if err := s.UpdateChallenge(ctx, got); err != nil {
		t.Fatalf("UpdateChallenge: %v", err)
	}
	if _, err := s.GetActiveChallenge(ctx, jobID); !errors.Is(err, formauto.ErrChallengeNotFound) {
		t.Errorf("solved challenge still active")
	}
}

func TestListExpiredChallenges(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()

	c := challenge.New(id.NewJobID(), "TRAVEL", time.Minute)
	if err := s.CreateChallenge(ctx, c); err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}

	expired, err := s.ListExpiredChallenges(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("ListExpiredChallenges: %v", err)
	}
	if len(expired) != 0 {
		t.Errorf("fresh challenge reported expired")
	}

	expired, err = s.ListExpiredChallenges(ctx, time.Now().UTC().Add(2*time.Minute))
	if err != nil {
		t.Fatalf("ListExpiredChallenges: %v", err)
	}
	if len(expired) != 1 {
		t.Errorf("expired len = %d, want 1", len(expired))
	}
}

func TestArtifacts(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()
	jobID := id.NewJobID()

	a := artifact.New(jobID, artifact.KindScreenshot, "validation_PASSPORT")
	a.SHA256 = "abc123"
	if err := s.CreateArtifact(ctx, a); err != nil {
		t.Fatalf("CreateArtifact: %v", err)
	}

	got, err := s.GetArtifact(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetArtifact: %v", err)
	}
	if got.Label != "validation_PASSPORT" {
		t.Errorf("Label = %q", got.Label)
	}

	list, err := s.ListArtifactsByJob(ctx, jobID)
	if err != nil {
		t.Fatalf("ListArtifactsByJob: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list len = %d, want 1", len(list))
	}

	removed, err := s.DeleteArtifactsByJob(ctx, jobID)
	if err != nil {
		t.Fatalf("DeleteArtifactsByJob: %v", err)
	}
	if len(removed) != 1 {
		t.Errorf("removed %d, want 1", len(removed))
	}
	if _, err := s.GetArtifact(ctx, a.ID); !errors.Is(err, formauto.ErrArtifactNotFound) {
		t.Errorf("deleted artifact still present")
	}
}

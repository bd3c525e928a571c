// Package janitor runs scheduled maintenance: failing jobs whose
// verification challenge expired while no worker was watching, and
// purging terminal jobs past the retention window.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/blob"
	"github.com/Safi643133/ai-immigration-services-sub003/ext"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
	"github.com/Safi643133/ai-immigration-services-sub003/progress"
	"github.com/Safi643133/ai-immigration-services-sub003/store"
)

// DefaultRetention is how long terminal jobs are kept before purging.
const DefaultRetention = 30 * 24 * time.Hour

// Janitor owns the maintenance schedules. The engine already fails a
// watched challenge at expiry; the sweep here covers jobs orphaned in
// waiting_for_captcha by a dead worker, and runs before the reaper's
// heartbeat threshold would catch them.
type Janitor struct {
	store      store.Store
	pub        *progress.Publisher
	extensions *ext.Registry
	blobs      blob.Store
	logger     *slog.Logger

	retention time.Duration
	sweepSpec string
	purgeSpec string

	cron *cron.Cron
	now  func() time.Time
}

// Option configures a Janitor.
type Option func(*Janitor)

// WithRetention sets how long terminal jobs are kept.
func WithRetention(d time.Duration) Option {
	return func(j *Janitor) { j.retention = d }
}

// WithSweepSchedule overrides the challenge sweep cron spec.
func WithSweepSchedule(spec string) Option {
	return func(j *Janitor) { j.sweepSpec = spec }
}

// WithPurgeSchedule overrides the terminal purge cron spec.
func WithPurgeSchedule(spec string) Option {
	return func(j *Janitor) { j.purgeSpec = spec }
}

// WithBlobs wires the blob store so purged artifacts drop their bytes.
func WithBlobs(b blob.Store) Option {
	return func(j *Janitor) { j.blobs = b }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(j *Janitor) { j.now = now }
}

// New creates a Janitor. Default schedules: sweep every minute, purge
// hourly.
func New(st store.Store, pub *progress.Publisher, extensions *ext.Registry, logger *slog.Logger, opts ...Option) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	j := &Janitor{
		store:      st,
		pub:        pub,
		extensions: extensions,
		logger:     logger,
		retention:  DefaultRetention,
		sweepSpec:  "* * * * *",
		purgeSpec:  "0 * * * *",
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start registers the schedules and launches the cron runner.
func (j *Janitor) Start(_ context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(j.sweepSpec, func() { j.SweepExpiredChallenges(context.Background()) }); err != nil {
		return fmt.Errorf("janitor: sweep schedule %q: %w", j.sweepSpec, err)
	}
	if _, err := c.AddFunc(j.purgeSpec, func() { j.PurgeTerminalJobs(context.Background()) }); err != nil {
		return fmt.Errorf("janitor: purge schedule %q: %w", j.purgeSpec, err)
	}
	j.cron = c
	c.Start()

	j.logger.Info("janitor started",
		slog.String("sweep", j.sweepSpec),
		slog.String("purge", j.purgeSpec),
		slog.Duration("retention", j.retention),
	)
	return nil
}

// Stop halts the schedules and waits for a running sweep to finish,
// bounded by the passed context.
func (j *Janitor) Stop(ctx context.Context) error {
	if j.cron == nil {
		return nil
	}
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// SweepExpiredChallenges fails jobs still suspended on a challenge
// whose deadline passed. It returns how many jobs it settled.
func (j *Janitor) SweepExpiredChallenges(ctx context.Context) int {
	expired, err := j.store.ListExpiredChallenges(ctx, j.now())
	if err != nil {
		j.logger.Error("challenge sweep failed", slog.String("error", err.Error()))
		return 0
	}

	settled := 0
	for _, ch := range expired {
		jb, getErr := j.store.GetJob(ctx, ch.JobID)
		if getErr != nil {
			continue
		}
		// A live worker may have settled the job already.
		if jb.Status != job.StatusWaitingForCaptcha {
			continue
		}

		if failErr := jb.Fail(job.CodeCaptchaTimeout, "verification challenge expired unsolved"); failErr != nil {
			continue
		}
		if updErr := j.store.UpdateJob(ctx, jb); updErr != nil {
			// ErrJobNotActive means a worker finalized the job between
			// the status check and the write. Nothing left to sweep.
			if !errors.Is(updErr, formauto.ErrJobNotActive) {
				j.logger.Error("sweep: failed to persist job failure",
					slog.String("job_id", jb.ID.String()),
					slog.String("error", updErr.Error()),
				)
			}
			continue
		}

		u := progress.NewUpdate(jb.ID, progress.KindJobFailed)
		u.ErrorCode = job.CodeCaptchaTimeout
		u.Message = "verification challenge expired unsolved"
		u.ChallengeID = ch.ID
		if pubErr := j.pub.Publish(ctx, u); pubErr != nil {
			j.logger.Warn("sweep: publish failure update",
				slog.String("job_id", jb.ID.String()),
				slog.String("error", pubErr.Error()),
			)
		}

		j.extensions.EmitJobFailed(ctx, jb, fmt.Errorf("challenge %s expired", ch.ID))

		j.logger.Info("swept expired challenge",
			slog.String("job_id", jb.ID.String()),
			slog.String("challenge_id", ch.ID.String()),
			slog.String("step", ch.StepName),
		)
		settled++
	}
	return settled
}

// PurgeTerminalJobs removes terminal jobs that finished before the
// retention cutoff, along with their progress history, artifact records
// and blobs. It returns how many jobs were purged.
func (j *Janitor) PurgeTerminalJobs(ctx context.Context) int {
	cutoff := j.now().Add(-j.retention)
	purged, err := j.store.PurgeTerminalJobs(ctx, cutoff)
	if err != nil {
		j.logger.Error("terminal purge failed", slog.String("error", err.Error()))
		return 0
	}

	for _, jobID := range purged {
		arts, delErr := j.store.DeleteArtifactsByJob(ctx, jobID)
		if delErr != nil {
			j.logger.Warn("purge: artifact cleanup failed",
				slog.String("job_id", jobID.String()),
				slog.String("error", delErr.Error()),
			)
			continue
		}
		if j.blobs == nil {
			continue
		}
		for _, a := range arts {
			if a.SHA256 == "" {
				continue
			}
			if blobErr := j.blobs.Delete(ctx, a.SHA256); blobErr != nil {
				j.logger.Warn("purge: blob delete failed",
					slog.String("key", a.SHA256),
					slog.String("error", blobErr.Error()),
				)
			}
		}
	}

	if len(purged) > 0 {
		j.logger.Info("purged terminal jobs", slog.Int("count", len(purged)))
	}
	return len(purged)
}

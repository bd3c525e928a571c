// Package worker provides the execution side of the system: an Executor
// that drives one claimed job through middleware and the engine, and a
// Pool that manages concurrent workers polling the store for queued jobs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/driver"
	"github.com/Safi643133/ai-immigration-services-sub003/engine"
	"github.com/Safi643133/ai-immigration-services-sub003/ext"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
	"github.com/Safi643133/ai-immigration-services-sub003/middleware"
	"github.com/Safi643133/ai-immigration-services-sub003/progress"
)

// Executor runs a single claimed job through the middleware chain and
// the engine, then owns the terminal transition: store update, terminal
// progress update, and lifecycle events.
type Executor struct {
	jobs       job.Store
	runner     *engine.Runner
	pub        *progress.Publisher
	extensions *ext.Registry
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	jobs job.Store,
	runner *engine.Runner,
	pub *progress.Publisher,
	extensions *ext.Registry,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		jobs:       jobs,
		runner:     runner,
		pub:        pub,
		extensions: extensions,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// Execute drives the job's form sequence over the given session.
// On success the job is marked completed. Step failures mark it failed
// with the step's code. ErrRunCancelled means the run was interrupted:
// either the job turned terminal in the store (nothing left to do), the
// execution ceiling expired, or the pool is shutting down.
func (e *Executor) Execute(ctx context.Context, j *job.Job, d driver.Driver) error {
	start := time.Now()

	terminal := func(ctx context.Context) error {
		return e.runner.Run(ctx, j, d)
	}

	execErr := e.mw(ctx, j, terminal)
	elapsed := time.Since(start)

	// Finalization must survive a cancelled or expired run context.
	fin := context.WithoutCancel(ctx)

	if execErr == nil {
		return e.completeJob(fin, j, elapsed)
	}

	var stepErr *engine.StepError
	switch {
	case ctx.Err() != nil || errors.Is(execErr, engine.ErrRunCancelled):
		// A dead run context can surface as a step error mid-wait; the
		// store, not the error shape, decides what happened.
		e.resolveInterrupted(fin, ctx, j, execErr)
	case errors.As(execErr, &stepErr):
		if failErr := e.FailJob(fin, j, stepErr.Code, stepErr.Message, stepErr); failErr != nil {
			return failErr
		}
	default:
		if failErr := e.FailJob(fin, j, job.CodeInternal, execErr.Error(), execErr); failErr != nil {
			return failErr
		}
	}
	return execErr
}

// completeJob records the successful terminal state.
func (e *Executor) completeJob(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	if err := j.Transition(job.StatusCompleted); err != nil {
		return fmt.Errorf("worker: complete job %s: %w", j.ID, err)
	}
	if err := e.jobs.UpdateJob(ctx, j); err != nil {
		if errors.Is(err, formauto.ErrJobNotActive) {
			// Cancellation or supersession won the race. The persisted
			// terminal state stands and its owner already emitted.
			e.logger.Info("job finalized elsewhere, dropping completion",
				slog.String("job_id", j.ID.String()),
			)
			return nil
		}
		e.logger.Error("failed to persist completed job",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return err
	}

	u := progress.NewUpdate(j.ID, progress.KindJobCompleted)
	u.Percent = 100
	u.Message = "application submitted"
	if err := e.pub.Publish(ctx, u); err != nil {
		e.logger.Warn("publish completion update",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	e.extensions.EmitJobCompleted(ctx, j, elapsed)

	e.logger.Info("job completed",
		slog.String("job_id", j.ID.String()),
		slog.String("submission_ref", j.SubmissionRef),
		slog.Duration("elapsed", elapsed),
	)
	return nil
}

// FailJob records a terminal failure: status, error code and message,
// the job_failed feed update, and the JobFailed lifecycle event. The
// pool's reaper uses it for worker-lost jobs; session-open failures go
// through it too.
func (e *Executor) FailJob(ctx context.Context, j *job.Job, code, message string, cause error) error {
	if err := j.Fail(code, message); err != nil {
		return fmt.Errorf("worker: fail job %s: %w", j.ID, err)
	}
	if err := e.jobs.UpdateJob(ctx, j); err != nil {
		if errors.Is(err, formauto.ErrJobNotActive) {
			e.logger.Info("job finalized elsewhere, dropping failure",
				slog.String("job_id", j.ID.String()),
				slog.String("error_code", code),
			)
			return nil
		}
		e.logger.Error("failed to persist failed job",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return err
	}

	u := progress.NewUpdate(j.ID, progress.KindJobFailed)
	u.ErrorCode = code
	u.Message = message
	if err := e.pub.Publish(ctx, u); err != nil {
		e.logger.Warn("publish failure update",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	if cause == nil {
		cause = errors.New(message)
	}
	e.extensions.EmitJobFailed(ctx, j, cause)

	e.logger.Warn("job failed",
		slog.String("job_id", j.ID.String()),
		slog.String("error_code", code),
		slog.String("message", message),
	)
	return nil
}

// resolveInterrupted decides what an ErrRunCancelled means. A terminal
// store status means cancellation or supersession already finalized the
// job elsewhere. A dead run deadline means the execution ceiling fired.
// Anything else is pool shutdown: the claim is left in place and a
// reaper will mark the job worker-lost.
func (e *Executor) resolveInterrupted(ctx, runCtx context.Context, j *job.Job, execErr error) {
	fresh, err := e.jobs.GetJob(ctx, j.ID)
	if err != nil {
		e.logger.Error("failed to reload interrupted job",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	if fresh.Status.IsTerminal() {
		e.logger.Info("run stopped by external terminal transition",
			slog.String("job_id", j.ID.String()),
			slog.String("status", string(fresh.Status)),
		)
		return
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		if failErr := e.FailJob(ctx, fresh, job.CodeInternal, "execution ceiling exceeded", execErr); failErr != nil {
			e.logger.Error("failed to finalize timed out job",
				slog.String("job_id", j.ID.String()),
				slog.String("error", failErr.Error()),
			)
		}
		return
	}

	e.logger.Info("run interrupted by shutdown, leaving claim for the reaper",
		slog.String("job_id", j.ID.String()),
	)
}

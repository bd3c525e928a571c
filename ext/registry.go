package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/Safi643133/ai-immigration-services-sub003/challenge"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
	"github.com/Safi643133/ai-immigration-services-sub003/progress"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type jobQueuedEntry struct {
	name string
	hook JobQueued
}

type jobStartedEntry struct {
	name string
	hook JobStarted
}

type jobCompletedEntry struct {
	name string
	hook JobCompleted
}

type jobFailedEntry struct {
	name string
	hook JobFailed
}

type jobCancelledEntry struct {
	name string
	hook JobCancelled
}

type jobSupersededEntry struct {
	name string
	hook JobSuperseded
}

type stepStartedEntry struct {
	name string
	hook StepStarted
}

type stepCompletedEntry struct {
	name string
	hook StepCompleted
}

type challengeIssuedEntry struct {
	name string
	hook ChallengeIssued
}

type challengeSolvedEntry struct {
	name string
	hook ChallengeSolved
}

type challengeRejectedEntry struct {
	name string
	hook ChallengeRejected
}

type progressRecordedEntry struct {
	name string
	hook ProgressRecorded
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	jobQueued         []jobQueuedEntry
	jobStarted        []jobStartedEntry
	jobCompleted      []jobCompletedEntry
	jobFailed         []jobFailedEntry
	jobCancelled      []jobCancelledEntry
	jobSuperseded     []jobSupersededEntry
	stepStarted       []stepStartedEntry
	stepCompleted     []stepCompletedEntry
	challengeIssued   []challengeIssuedEntry
	challengeSolved   []challengeSolvedEntry
	challengeRejected []challengeRejectedEntry
	progressRecorded  []progressRecordedEntry
	shutdown          []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobQueued); ok {
		r.jobQueued = append(r.jobQueued, jobQueuedEntry{name, h})
	}
	if h, ok := e.(JobStarted); ok {
		r.jobStarted = append(r.jobStarted, jobStartedEntry{name, h})
	}
	if h, ok := e.(JobCompleted); ok {
		r.jobCompleted = append(r.jobCompleted, jobCompletedEntry{name, h})
	}
	if h, ok := e.(JobFailed); ok {
		r.jobFailed = append(r.jobFailed, jobFailedEntry{name, h})
	}
	if h, ok := e.(JobCancelled); ok {
		r.jobCancelled = append(r.jobCancelled, jobCancelledEntry{name, h})
	}
	if h, ok := e.(JobSuperseded); ok {
		r.jobSuperseded = append(r.jobSuperseded, jobSupersededEntry{name, h})
	}
	if h, ok := e.(StepStarted); ok {
		r.stepStarted = append(r.stepStarted, stepStartedEntry{name, h})
	}
	if h, ok := e.(StepCompleted); ok {
		r.stepCompleted = append(r.stepCompleted, stepCompletedEntry{name, h})
	}
	if h, ok := e.(ChallengeIssued); ok {
		r.challengeIssued = append(r.challengeIssued, challengeIssuedEntry{name, h})
	}
	if h, ok := e.(ChallengeSolved); ok {
		r.challengeSolved = append(r.challengeSolved, challengeSolvedEntry{name, h})
	}
	if h, ok := e.(ChallengeRejected); ok {
		r.challengeRejected = append(r.challengeRejected, challengeRejectedEntry{name, h})
	}
	if h, ok := e.(ProgressRecorded); ok {
		r.progressRecorded = append(r.progressRecorded, progressRecordedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Job event emitters
// ──────────────────────────────────────────────────

// EmitJobQueued notifies all extensions that implement JobQueued.
func (r *Registry) EmitJobQueued(ctx context.Context, j *job.Job) {
	for _, e := range r.jobQueued {
		if err := e.hook.OnJobQueued(ctx, j); err != nil {
			r.logHookError("OnJobQueued", e.name, err)
		}
	}
}

// EmitJobStarted notifies all extensions that implement JobStarted.
func (r *Registry) EmitJobStarted(ctx context.Context, j *job.Job) {
	for _, e := range r.jobStarted {
		if err := e.hook.OnJobStarted(ctx, j); err != nil {
			r.logHookError("OnJobStarted", e.name, err)
		}
	}
}

// EmitJobCompleted notifies all extensions that implement JobCompleted.
func (r *Registry) EmitJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) {
	for _, e := range r.jobCompleted {
		if err := e.hook.OnJobCompleted(ctx, j, elapsed); err != nil {
			r.logHookError("OnJobCompleted", e.name, err)
		}
	}
}

// EmitJobFailed notifies all extensions that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, j *job.Job, jobErr error) {
	for _, e := range r.jobFailed {
		if err := e.hook.OnJobFailed(ctx, j, jobErr); err != nil {
			r.logHookError("OnJobFailed", e.name, err)
		}
	}
}

// EmitJobCancelled notifies all extensions that implement JobCancelled.
func (r *Registry) EmitJobCancelled(ctx context.Context, j *job.Job) {
	for _, e := range r.jobCancelled {
		if err := e.hook.OnJobCancelled(ctx, j); err != nil {
			r.logHookError("OnJobCancelled", e.name, err)
		}
	}
}

// EmitJobSuperseded notifies all extensions that implement JobSuperseded.
func (r *Registry) EmitJobSuperseded(ctx context.Context, old, replacement *job.Job) {
	for _, e := range r.jobSuperseded {
		if err := e.hook.OnJobSuperseded(ctx, old, replacement); err != nil {
			r.logHookError("OnJobSuperseded", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Step event emitters
// ──────────────────────────────────────────────────

// EmitStepStarted notifies all extensions that implement StepStarted.
func (r *Registry) EmitStepStarted(ctx context.Context, j *job.Job, stepName string, stepNumber int) {
	for _, e := range r.stepStarted {
		if err := e.hook.OnStepStarted(ctx, j, stepName, stepNumber); err != nil {
			r.logHookError("OnStepStarted", e.name, err)
		}
	}
}

// EmitStepCompleted notifies all extensions that implement StepCompleted.
func (r *Registry) EmitStepCompleted(ctx context.Context, j *job.Job, stepName string, stepNumber int, elapsed time.Duration) {
	for _, e := range r.stepCompleted {
		if err := e.hook.OnStepCompleted(ctx, j, stepName, stepNumber, elapsed); err != nil {
			r.logHookError("OnStepCompleted", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Challenge event emitters
// ──────────────────────────────────────────────────

// EmitChallengeIssued notifies all extensions that implement ChallengeIssued.
func (r *Registry) EmitChallengeIssued(ctx context.Context, c *challenge.Challenge) {
	for _, e := range r.challengeIssued {
		if err := e.hook.OnChallengeIssued(ctx, c); err != nil {
			r.logHookError("OnChallengeIssued", e.name, err)
		}
	}
}

// EmitChallengeSolved notifies all extensions that implement ChallengeSolved.
func (r *Registry) EmitChallengeSolved(ctx context.Context, c *challenge.Challenge) {
	for _, e := range r.challengeSolved {
		if err := e.hook.OnChallengeSolved(ctx, c); err != nil {
			r.logHookError("OnChallengeSolved", e.name, err)
		}
	}
}

// EmitChallengeRejected notifies all extensions that implement ChallengeRejected.
func (r *Registry) EmitChallengeRejected(ctx context.Context, c *challenge.Challenge) {
	for _, e := range r.challengeRejected {
		if err := e.hook.OnChallengeRejected(ctx, c); err != nil {
			r.logHookError("OnChallengeRejected", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitProgressRecorded notifies all extensions that implement ProgressRecorded.
func (r *Registry) EmitProgressRecorded(ctx context.Context, u *progress.Update) {
	for _, e := range r.progressRecorded {
		if err := e.hook.OnProgressRecorded(ctx, u); err != nil {
			r.logHookError("OnProgressRecorded", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the pipeline.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}

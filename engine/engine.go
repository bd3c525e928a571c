// Package engine drives the remote multi-step form for one job at a
// time. It owns the execution semantics: page readiness escalation,
// field application, conditional sub-fields, human-verification
// suspension, remote validation handling, and progress emission.
//
// The engine never retries a failed step. The remote site keeps
// server-side session state that a blind retry would corrupt, so any
// step failure abandons the job; a fresh submission is the recovery
// path.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/artifact"
	"github.com/Safi643133/ai-immigration-services-sub003/challenge"
	"github.com/Safi643133/ai-immigration-services-sub003/driver"
	"github.com/Safi643133/ai-immigration-services-sub003/form"
	"github.com/Safi643133/ai-immigration-services-sub003/form/refdata"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
	"github.com/Safi643133/ai-immigration-services-sub003/progress"
)

// ErrRunCancelled is returned when a cancellation checkpoint observes
// that the job is no longer active.
var ErrRunCancelled = errors.New("engine: run cancelled")

// StepError is a terminal failure attributed to a specific form step.
type StepError struct {
	Step    string
	Code    string
	Message string
	Err     error
}

func (e *StepError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("step %s (%s): %s: %v", e.Step, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("step %s (%s): %s", e.Step, e.Code, e.Message)
}

func (e *StepError) Unwrap() error { return e.Err }

// ValidationCode builds the error code for a remote validation failure
// on the named step.
func ValidationCode(step string) string { return "STEP_" + step + "_VALIDATION" }

// Waits configures the three-tier page readiness ladder.
type Waits struct {
	// Primary is the wait on the step's own readiness signal.
	Primary time.Duration
	// Secondary is the wait on the looser fallback signal.
	Secondary time.Duration
	// Grace is the final fixed delay before the last probe.
	Grace time.Duration
	// Subfield is the wait for trigger-revealed elements.
	Subfield time.Duration
}

// Challenger is the coordinator surface the engine needs. The real
// implementation lives in the challenge package.
type Challenger interface {
	Detect(ctx context.Context, d driver.Driver) (bool, error)
	Issue(ctx context.Context, j *job.Job, d driver.Driver, stepName string) (*challenge.Challenge, error)
	Wait(ctx context.Context, ch *challenge.Challenge) challenge.Outcome
}

// Emitter receives step lifecycle events. The extension registry
// satisfies this.
type Emitter interface {
	EmitStepStarted(ctx context.Context, j *job.Job, stepName string, stepNumber int)
	EmitStepCompleted(ctx context.Context, j *job.Job, stepName string, stepNumber int, elapsed time.Duration)
}

type nopEmitter struct{}

func (nopEmitter) EmitStepStarted(context.Context, *job.Job, string, int)                  {}
func (nopEmitter) EmitStepCompleted(context.Context, *job.Job, string, int, time.Duration) {}

// Runner executes one job's form sequence over a driver session.
type Runner struct {
	jobs    job.Store
	pub     *progress.Publisher
	coord   Challenger
	capture *artifact.Capture
	emitter Emitter
	logger  *slog.Logger

	seq    *form.Sequence
	waits  Waits
	banner string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithSequence overrides the form sequence. Default is
// form.DefaultSequence.
func WithSequence(seq *form.Sequence) RunnerOption {
	return func(r *Runner) { r.seq = seq }
}

// WithWaits overrides the readiness ladder timings.
func WithWaits(w Waits) RunnerOption {
	return func(r *Runner) { r.waits = w }
}

// WithBannerTarget overrides the remote validation banner element.
func WithBannerTarget(target string) RunnerOption {
	return func(r *Runner) { r.banner = target }
}

// WithCapture wires best-effort evidence capture.
func WithCapture(c *artifact.Capture) RunnerOption {
	return func(r *Runner) { r.capture = c }
}

// NewRunner creates an engine runner.
func NewRunner(jobs job.Store, pub *progress.Publisher, coord Challenger, logger *slog.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		jobs:    jobs,
		pub:     pub,
		coord:   coord,
		emitter: nopEmitter{},
		logger:  logger,
		seq:     form.DefaultSequence(),
		waits: Waits{
			Primary:   15 * time.Second,
			Secondary: 10 * time.Second,
			Grace:     3 * time.Second,
			Subfield:  5 * time.Second,
		},
		banner: form.ValidationSummary,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetEmitter wires the downstream emitter. Must be called before Run.
func (r *Runner) SetEmitter(e Emitter) {
	if e != nil {
		r.emitter = e
	}
}

// Run drives every step of the sequence for the given running job.
// It returns nil when the whole form was submitted, ErrRunCancelled
// when a checkpoint observed cancellation, and a *StepError for
// terminal step failures. The caller owns the job's terminal
// transition.
func (r *Runner) Run(ctx context.Context, j *job.Job, d driver.Driver) error {
	for i := range r.seq.Len() {
		step := r.seq.Step(i)

		// Cancellation checkpoint: only between steps, never mid-step.
		if err := r.checkpoint(ctx, j); err != nil {
			return err
		}

		start := time.Now()
		r.emitter.EmitStepStarted(ctx, j, step.Name, i+1)
		r.logger.Info("step started",
			slog.String("job_id", j.ID.String()),
			slog.String("step", step.Name),
			slog.Int("step_number", i+1),
		)

		if err := r.awaitReady(ctx, d, step); err != nil {
			return err
		}

		// The verification gate can front any page.
		if err := r.passGate(ctx, j, d, step.Name); err != nil {
			return err
		}

		for _, warning := range step.Warnings(j.FieldMap) {
			r.logger.Warn("field map incomplete",
				slog.String("job_id", j.ID.String()),
				slog.String("warning", warning),
			)
		}

		if step.Hooks.PreStep != nil {
			if err := step.Hooks.PreStep(ctx, d, j.FieldMap); err != nil {
				return r.stepFailure(ctx, j, d, step.Name, "STEP_"+step.Name+"_ERROR", "pre-step hook failed", err)
			}
		}

		for _, f := range step.Fields {
			if err := r.applyField(ctx, d, j.FieldMap, step, f); err != nil {
				return r.stepFailure(ctx, j, d, step.Name, "STEP_"+step.Name+"_ERROR", "field application failed", err)
			}
		}

		if err := d.Click(ctx, step.Next); err != nil {
			return r.stepFailure(ctx, j, d, step.Name, "STEP_"+step.Name+"_ERROR", "transition failed", err)
		}

		if err := r.afterTransition(ctx, j, d, i, step); err != nil {
			return err
		}

		elapsed := time.Since(start)
		r.emitter.EmitStepCompleted(ctx, j, step.Name, i+1, elapsed)

		u := progress.NewUpdate(j.ID, progress.KindStepProgress)
		u.StepName = step.Name
		u.StepNumber = i + 1
		u.TotalSteps = r.seq.Len()
		u.Percent = r.seq.Percent(i)
		u.Message = step.Title
		if err := r.pub.Publish(ctx, u); err != nil {
			r.logger.Warn("publish step update",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// checkpoint aborts the run if the job was cancelled or superseded
// since the last step.
func (r *Runner) checkpoint(ctx context.Context, j *job.Job) error {
	if err := ctx.Err(); err != nil {
		return ErrRunCancelled
	}
	fresh, err := r.jobs.GetJob(ctx, j.ID)
	if err != nil {
		return fmt.Errorf("engine: reload job: %w", err)
	}
	if fresh.Status.IsTerminal() {
		return ErrRunCancelled
	}
	j.MergeMetadata(fresh.Metadata)
	return nil
}

// errNeverReady reports readiness ladder exhaustion before it is
// attributed to a step.
var errNeverReady = errors.New("engine: page never became ready")

// climb runs the three-tier readiness ladder: the primary signal, then
// the looser secondary, then one grace delay and a final probe. An
// empty primary skips straight to the grace delay and reports success.
func (r *Runner) climb(ctx context.Context, d driver.Driver, primary, secondary driver.Condition) error {
	if primary.Target != "" {
		if err := d.WaitFor(ctx, primary, r.waits.Primary); err == nil {
			return nil
		} else if !errors.Is(err, driver.ErrTimeout) {
			return err
		}
		if secondary.Target != "" {
			if err := d.WaitFor(ctx, secondary, r.waits.Secondary); err != nil && !errors.Is(err, driver.ErrTimeout) {
				return err
			}
		}
	}

	// Grace tier: the page may be mid-render.
	select {
	case <-time.After(r.waits.Grace):
	case <-ctx.Done():
		return ErrRunCancelled
	}
	if primary.Target == "" {
		return nil
	}
	if err := d.Locate(ctx, primary.Target); err == nil {
		return nil
	}
	return errNeverReady
}

// awaitReady climbs the readiness ladder against the step's own
// signals. Exhaustion is a transport failure and terminal.
func (r *Runner) awaitReady(ctx context.Context, d driver.Driver, step form.Step) error {
	err := r.climb(ctx, d, step.Ready, step.ReadyFallback)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRunCancelled):
		return err
	case errors.Is(err, errNeverReady):
		return &StepError{
			Step:    step.Name,
			Code:    job.CodeTransportTimeout,
			Message: "page never became ready",
		}
	default:
		return r.readyFailure(step.Name, err)
	}
}

// afterTransition settles the page that a Next click navigated to
// before inspecting the validation banner. A rejected step can surface
// its banner after an arbitrary render delay, so probing immediately
// after the click would race the remote site; instead the run waits on
// the destination page's readiness signals first. The banner check is
// authoritative and runs even when the settle ladder gives up.
func (r *Runner) afterTransition(ctx context.Context, j *job.Job, d driver.Driver, i int, step form.Step) error {
	var settleErr error
	if i+1 < r.seq.Len() {
		next := r.seq.Step(i + 1)
		settleErr = r.climb(ctx, d, next.Ready, next.ReadyFallback)
	} else {
		// The final click lands on a page outside the sequence, so the
		// only settle signal is the shared chrome, when the step names
		// one.
		settleErr = r.climb(ctx, d, step.ReadyFallback, driver.Condition{})
	}
	if errors.Is(settleErr, ErrRunCancelled) {
		return ErrRunCancelled
	}

	if err := r.checkBanner(ctx, j, d, step.Name); err != nil {
		return err
	}

	// A clean banner with an unsettled page is a transport failure,
	// except after the last step: the destination there is not part of
	// the sequence and its readiness is not ours to judge.
	if settleErr != nil && i+1 < r.seq.Len() {
		return r.stepFailure(ctx, j, d, step.Name, job.CodeTransportTimeout, "page never settled after transition", settleErr)
	}
	return nil
}

func (r *Runner) readyFailure(stepName string, err error) error {
	return &StepError{
		Step:    stepName,
		Code:    job.CodeTransportTimeout,
		Message: "readiness probe failed",
		Err:     err,
	}
}

// passGate suspends the job on a verification gate if one is present
// and blocks until it resolves.
func (r *Runner) passGate(ctx context.Context, j *job.Job, d driver.Driver, stepName string) error {
	present, err := r.coord.Detect(ctx, d)
	if err != nil {
		return r.stepFailure(ctx, j, d, stepName, "STEP_"+stepName+"_ERROR", "gate probe failed", err)
	}
	if !present {
		return nil
	}

	if err := j.Transition(job.StatusWaitingForCaptcha); err != nil {
		return fmt.Errorf("engine: suspend: %w", err)
	}
	if err := r.jobs.UpdateJob(ctx, j); err != nil {
		// A terminal row means the job was cancelled or superseded
		// while the gate was being probed. The persisted outcome wins.
		if errors.Is(err, formauto.ErrJobNotActive) {
			return ErrRunCancelled
		}
		return fmt.Errorf("engine: persist suspension: %w", err)
	}

	ch, err := r.coord.Issue(ctx, j, d, stepName)
	if err != nil {
		return fmt.Errorf("engine: issue challenge: %w", err)
	}

	switch r.coord.Wait(ctx, ch) {
	case challenge.OutcomeSolved:
		if err := j.Transition(job.StatusRunning); err != nil {
			return fmt.Errorf("engine: resume: %w", err)
		}
		if err := r.jobs.UpdateJob(ctx, j); err != nil {
			if errors.Is(err, formauto.ErrJobNotActive) {
				return ErrRunCancelled
			}
			return fmt.Errorf("engine: persist resume: %w", err)
		}
		return nil
	case challenge.OutcomeExpired:
		return &StepError{
			Step:    stepName,
			Code:    job.CodeCaptchaTimeout,
			Message: "verification challenge expired unsolved",
		}
	default:
		return ErrRunCancelled
	}
}

// applyField writes one field-map value to the page, following
// conditional sub-fields when the value triggers them. An absent or
// empty value skips the field entirely.
func (r *Runner) applyField(ctx context.Context, d driver.Driver, fm job.FieldMap, step form.Step, f form.Field) error {
	raw := fm.Get(f.Key)
	if raw == "" {
		return nil
	}

	if err := r.write(ctx, d, f, f.Resolve(raw)); err != nil {
		return fmt.Errorf("apply %s: %w", f.Key, err)
	}

	if step.Hooks.PostField != nil {
		if err := step.Hooks.PostField(ctx, d, f, raw); err != nil {
			return fmt.Errorf("post-field hook %s: %w", f.Key, err)
		}
	}

	if f.Trigger != nil && f.Trigger.Fires(raw) {
		await := driver.Condition{Target: f.Trigger.AwaitTarget(), Describe: "sub-fields for " + f.Key}
		if err := d.WaitFor(ctx, await, r.waits.Subfield); err != nil {
			return fmt.Errorf("sub-fields for %s never appeared: %w", f.Key, err)
		}
		for _, sub := range f.Trigger.Subfields {
			if err := r.applyField(ctx, d, fm, step, sub); err != nil {
				return err
			}
		}
	}
	return nil
}

// write performs the kind-specific driver interaction.
func (r *Runner) write(ctx context.Context, d driver.Driver, f form.Field, value string) error {
	switch f.Kind {
	case form.KindText:
		return d.Fill(ctx, f.Target, value)
	case form.KindSelect:
		return d.Select(ctx, f.Target, value)
	case form.KindRadio:
		// Radio groups expose one element per option, suffixed with the
		// option value.
		return d.SetChecked(ctx, f.Target+"_"+value, true)
	case form.KindCheckbox:
		return d.SetChecked(ctx, f.Target, value == "Y" || value == "true")
	case form.KindSplitDate:
		return r.writeSplitDate(ctx, d, f, value)
	default:
		return fmt.Errorf("unknown field kind %q", f.Kind)
	}
}

// writeSplitDate fans an ISO date (2006-01-02) out over day, month and
// year controls. Day is numeric without a leading zero, month is the
// remote site's three-letter abbreviation.
func (r *Runner) writeSplitDate(ctx context.Context, d driver.Driver, f form.Field, value string) error {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return fmt.Errorf("split date %s: %w", f.Key, err)
	}
	if err := d.Select(ctx, f.DayTarget, strconv.Itoa(t.Day())); err != nil {
		return err
	}
	if err := d.Select(ctx, f.MonthTarget, refdata.MonthAbbrev(int(t.Month()))); err != nil {
		return err
	}
	return d.Fill(ctx, f.YearTarget, strconv.Itoa(t.Year()))
}

// checkBanner inspects the remote validation banner after a
// transition. A present banner means the remote site rejected the
// step's data: the failure is terminal and evidence is captured.
func (r *Runner) checkBanner(ctx context.Context, j *job.Job, d driver.Driver, stepName string) error {
	err := d.Locate(ctx, r.banner)
	if errors.Is(err, driver.ErrNotFound) {
		return nil
	}
	if err != nil {
		return r.stepFailure(ctx, j, d, stepName, "STEP_"+stepName+"_ERROR", "banner probe failed", err)
	}

	message, readErr := d.Read(ctx, r.banner)
	if readErr != nil || strings.TrimSpace(message) == "" {
		message = "remote validation failed"
	}
	return r.stepFailure(ctx, j, d, stepName, ValidationCode(stepName), message, nil)
}

// stepFailure captures evidence and wraps the failure. Capture is best
// effort and can never mask the original error.
func (r *Runner) stepFailure(ctx context.Context, j *job.Job, d driver.Driver, stepName, code, message string, err error) error {
	if r.capture != nil {
		r.capture.Screenshot(ctx, d, j.ID, artifact.KindScreenshot, "failure_"+stepName)
	}
	return &StepError{Step: stepName, Code: code, Message: message, Err: err}
}

package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/driver"
	"github.com/Safi643133/ai-immigration-services-sub003/id"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
	"github.com/Safi643133/ai-immigration-services-sub003/progress"
)

// Emitter receives challenge lifecycle events. The extension registry
// satisfies this.
type Emitter interface {
	EmitChallengeIssued(ctx context.Context, c *Challenge)
	EmitChallengeSolved(ctx context.Context, c *Challenge)
	EmitChallengeRejected(ctx context.Context, c *Challenge)
}

type nopEmitter struct{}

func (nopEmitter) EmitChallengeIssued(context.Context, *Challenge)   {}
func (nopEmitter) EmitChallengeSolved(context.Context, *Challenge)   {}
func (nopEmitter) EmitChallengeRejected(context.Context, *Challenge) {}

// Capturer snapshots the remote page for a challenge image. Capture is
// best effort: ok is false when no image could be taken.
type Capturer interface {
	CaptureImage(ctx context.Context, d driver.Driver, jobID id.JobID, label string) (id.ArtifactID, bool)
}

// Targets names the remote elements of the human-verification gate.
type Targets struct {
	// Image is the challenge picture. Its presence signals the gate;
	// its disappearance after a submit signals acceptance.
	Image string
	// Input receives the typed solution.
	Input string
	// Submit forwards the solution to the remote site.
	Submit string
}

// Outcome is how a suspended job's wait ended.
type Outcome int

const (
	// OutcomeSolved resumes execution.
	OutcomeSolved Outcome = iota
	// OutcomeExpired fails the job with CAPTCHA_TIMEOUT.
	OutcomeExpired
	// OutcomeCancelled aborts the wait because the job was cancelled.
	OutcomeCancelled
)

// SolveResult reports what the remote site did with a solution.
// Solved false is not an error: the gate stays up and the client may
// try again against the fresh image.
type SolveResult struct {
	ChallengeID id.ChallengeID `json:"challenge_id"`
	Solved      bool           `json:"solved"`
	Attempts    int            `json:"attempts"`
	Message     string         `json:"message,omitempty"`
}

// session is the in-memory bridge between the engine goroutine blocked
// in Wait and the API goroutine calling Solve. The engine does not
// touch the driver while suspended, which is what makes it safe for
// Solve to drive the same session.
type session struct {
	challengeID id.ChallengeID
	drv         driver.Driver
	gate        chan Outcome
}

// Coordinator issues challenges, parks suspended jobs, applies
// solutions through the job's own driver session, and releases jobs
// when the remote site accepts.
type Coordinator struct {
	store   Store
	pub     *progress.Publisher
	capture Capturer
	emitter Emitter
	logger  *slog.Logger

	targets Targets
	ttl     time.Duration
	settle  time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[id.JobID]*session
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithTargets overrides the gate element identifiers.
func WithTargets(t Targets) CoordinatorOption {
	return func(c *Coordinator) { c.targets = t }
}

// WithTTL overrides the solve deadline window.
func WithTTL(ttl time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.ttl = ttl }
}

// WithSettle overrides how long a submitted solution is given to take
// effect before the gate is re-inspected.
func WithSettle(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.settle = d }
}

// WithCapturer wires best-effort challenge image capture.
func WithCapturer(cp Capturer) CoordinatorOption {
	return func(c *Coordinator) { c.capture = cp }
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a challenge coordinator.
func NewCoordinator(store Store, pub *progress.Publisher, logger *slog.Logger, opts ...CoordinatorOption) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		store:    store,
		pub:      pub,
		emitter:  nopEmitter{},
		logger:   logger,
		ttl:      DefaultTTL,
		settle:   2 * time.Second,
		now:      time.Now,
		sessions: make(map[id.JobID]*session),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetEmitter wires the downstream emitter. Must be called before the
// coordinator is used concurrently.
func (c *Coordinator) SetEmitter(e Emitter) {
	if e != nil {
		c.emitter = e
	}
}

// Detect reports whether the gate is currently present on the page.
func (c *Coordinator) Detect(ctx context.Context, d driver.Driver) (bool, error) {
	err := d.Locate(ctx, c.targets.Image)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, driver.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("challenge: probe gate: %w", err)
	}
}

// Issue creates and persists a challenge for a suspended job, captures
// the gate image when possible, and registers the job's driver session
// so Solve can drive it. The caller must follow with Wait.
func (c *Coordinator) Issue(ctx context.Context, j *job.Job, d driver.Driver, stepName string) (*Challenge, error) {
	ch := New(j.ID, stepName, c.ttl)
	ch.ExpiresAt = c.now().Add(c.ttl)

	if c.capture != nil {
		if artID, ok := c.capture.CaptureImage(ctx, d, j.ID, "captcha_"+strings.ToLower(stepName)); ok {
			ch.ImageArtifactID = artID
		}
	}

	if err := c.store.CreateChallenge(ctx, ch); err != nil {
		return nil, fmt.Errorf("challenge: create: %w", err)
	}

	c.mu.Lock()
	c.sessions[j.ID] = &session{
		challengeID: ch.ID,
		drv:         d,
		gate:        make(chan Outcome, 1),
	}
	c.mu.Unlock()

	c.emitter.EmitChallengeIssued(ctx, ch)

	u := progress.NewUpdate(j.ID, progress.KindCaptchaRequired)
	u.ChallengeID = ch.ID
	u.StepName = stepName
	u.Message = "human verification required"
	if err := c.pub.Publish(ctx, u); err != nil {
		c.logger.Warn("publish captcha_required update",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	return ch, nil
}

// Wait blocks the engine goroutine until the challenge is solved, the
// deadline passes, or ctx is cancelled. The session is released before
// returning.
func (c *Coordinator) Wait(ctx context.Context, ch *Challenge) Outcome {
	c.mu.Lock()
	s := c.sessions[ch.JobID]
	c.mu.Unlock()
	if s == nil {
		// Issue was never called or the session was already released.
		return OutcomeCancelled
	}
	defer c.release(ch.JobID)

	deadline := time.NewTimer(ch.ExpiresAt.Sub(c.now()))
	defer deadline.Stop()

	select {
	case out := <-s.gate:
		return out
	case <-deadline.C:
		return OutcomeExpired
	case <-ctx.Done():
		return OutcomeCancelled
	}
}

// Solve applies a human-provided solution through the suspended job's
// driver session and inspects the result.
//
// A rejected solution is a normal outcome, not an error: the attempt
// counter advances, a fresh gate image is captured, and the challenge
// stays active until its original deadline.
func (c *Coordinator) Solve(ctx context.Context, challengeID id.ChallengeID, solution string) (SolveResult, error) {
	solution = strings.TrimSpace(solution)
	if n := utf8.RuneCountInString(solution); n < MinSolutionLength || n > MaxSolutionLength {
		return SolveResult{}, formauto.ErrInvalidSolution
	}

	ch, err := c.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return SolveResult{}, err
	}
	now := c.now()
	if ch.Solved {
		return SolveResult{}, formauto.ErrChallengeSolved
	}
	if ch.Expired(now) {
		return SolveResult{}, formauto.ErrChallengeExpired
	}

	c.mu.Lock()
	s := c.sessions[ch.JobID]
	c.mu.Unlock()
	if s == nil || s.challengeID != ch.ID {
		// No live session: the worker died or the wait already ended.
		return SolveResult{}, formauto.ErrChallengeNotFound
	}

	accepted, err := c.submit(ctx, s.drv, solution)
	if err != nil {
		return SolveResult{}, err
	}

	ch.Attempts++
	if accepted {
		ch.MarkSolved(now)
	} else {
		ch.Touch()
	}
	if err := c.store.UpdateChallenge(ctx, ch); err != nil {
		return SolveResult{}, fmt.Errorf("challenge: update: %w", err)
	}

	if accepted {
		c.emitter.EmitChallengeSolved(ctx, ch)
		u := progress.NewUpdate(ch.JobID, progress.KindCaptchaSolved)
		u.ChallengeID = ch.ID
		u.Message = "verification accepted"
		if err := c.pub.Publish(ctx, u); err != nil {
			c.logger.Warn("publish captcha_solved update",
				slog.String("job_id", ch.JobID.String()),
				slog.String("error", err.Error()),
			)
		}

		// Signal the parked engine goroutine. Buffered, never blocks.
		s.gate <- OutcomeSolved

		return SolveResult{ChallengeID: ch.ID, Solved: true, Attempts: ch.Attempts}, nil
	}

	// Rejected: the remote site served a fresh image behind the same gate.
	if c.capture != nil {
		if artID, ok := c.capture.CaptureImage(ctx, s.drv, ch.JobID, "captcha_retry"); ok {
			ch.ImageArtifactID = artID
			if err := c.store.UpdateChallenge(ctx, ch); err != nil {
				c.logger.Warn("record fresh challenge image",
					slog.String("challenge_id", ch.ID.String()),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	c.emitter.EmitChallengeRejected(ctx, ch)

	u := progress.NewUpdate(ch.JobID, progress.KindNewCaptcha)
	u.ChallengeID = ch.ID
	u.Message = "solution rejected, new image issued"
	if err := c.pub.Publish(ctx, u); err != nil {
		c.logger.Warn("publish new_captcha update",
			slog.String("job_id", ch.JobID.String()),
			slog.String("error", err.Error()),
		)
	}

	return SolveResult{
		ChallengeID: ch.ID,
		Solved:      false,
		Attempts:    ch.Attempts,
		Message:     "solution rejected",
	}, nil
}

// submit types the solution, clicks through, lets the page settle and
// reports whether the gate cleared.
func (c *Coordinator) submit(ctx context.Context, d driver.Driver, solution string) (bool, error) {
	if err := d.Fill(ctx, c.targets.Input, solution); err != nil {
		return false, fmt.Errorf("challenge: fill solution: %w", err)
	}
	if err := d.Click(ctx, c.targets.Submit); err != nil {
		return false, fmt.Errorf("challenge: submit solution: %w", err)
	}

	if c.settle > 0 {
		t := time.NewTimer(c.settle)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return false, ctx.Err()
		}
	}

	present, err := c.Detect(ctx, d)
	if err != nil {
		return false, err
	}
	return !present, nil
}

// release drops the in-memory session for a job.
func (c *Coordinator) release(jobID id.JobID) {
	c.mu.Lock()
	delete(c.sessions, jobID)
	c.mu.Unlock()
}

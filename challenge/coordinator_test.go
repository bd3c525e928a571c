package challenge_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/challenge"
	"github.com/Safi643133/ai-immigration-services-sub003/driver/drivertest"
	"github.com/Safi643133/ai-immigration-services-sub003/id"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
	"github.com/Safi643133/ai-immigration-services-sub003/progress"
	"github.com/Safi643133/ai-immigration-services-sub003/store/memory"
)

var gate = challenge.Targets{
	Image:  "captcha_image",
	Input:  "captcha_input",
	Submit: "captcha_submit",
}

type fixture struct {
	store *memory.Store
	coord *challenge.Coordinator
	drv   *drivertest.Fake
	job   *job.Job
}

// newFixture wires a coordinator over the memory store with a fake
// driver showing the gate. answer is the solution the remote accepts.
func newFixture(t *testing.T, answer string, opts ...challenge.CoordinatorOption) *fixture {
	t.Helper()

	st := memory.New()
	pub := progress.NewPublisher(st, slog.Default())

	drv := drivertest.New(gate.Image, gate.Input, gate.Submit)
	drv.OnClick = func(f *drivertest.Fake, target string) {
		if target == gate.Submit && f.Value(gate.Input) == answer {
			f.Remove(gate.Image)
		}
	}

	opts = append([]challenge.CoordinatorOption{
		challenge.WithTargets(gate),
		challenge.WithSettle(0),
	}, opts...)

	j := &job.Job{
		Entity:        formauto.NewEntity(),
		ID:            id.NewJobID(),
		SubmissionRef: "sub-1",
		OwnerRef:      "owner-1",
		Status:        job.StatusWaitingForCaptcha,
	}

	return &fixture{
		store: st,
		coord: challenge.NewCoordinator(st, pub, slog.Default(), opts...),
		drv:   drv,
		job:   j,
	}
}

func (fx *fixture) updates(t *testing.T) []*progress.Update {
	t.Helper()
	feed, err := fx.store.ListUpdates(context.Background(), fx.job.ID, 0)
	if err != nil {
		t.Fatalf("ListUpdates: %v", err)
	}
	return feed
}

func lastKind(t *testing.T, feed []*progress.Update) progress.Kind {
	t.Helper()
	if len(feed) == 0 {
		t.Fatal("empty feed")
	}
	return feed[len(feed)-1].Kind
}

func TestDetect(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "abc")
	ctx := context.Background()

	present, err := fx.coord.Detect(ctx, fx.drv)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !present {
		t.Error("gate not detected")
	}

	fx.drv.Remove(gate.Image)
	present, err = fx.coord.Detect(ctx, fx.drv)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if present {
		t.Error("gate detected after removal")
	}
}

func TestIssuePersistsAndPublishes(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "abc")
	ctx := context.Background()

	ch, err := fx.coord.Issue(ctx, fx.job, fx.drv, "PERSONAL_1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if ch.JobID != fx.job.ID || ch.StepName != "PERSONAL_1" {
		t.Errorf("challenge fields wrong: %+v", ch)
	}

	active, err := fx.store.GetActiveChallenge(ctx, fx.job.ID)
	if err != nil {
		t.Fatalf("GetActiveChallenge: %v", err)
	}
	if active.ID != ch.ID {
		t.Errorf("stored challenge mismatch")
	}

	if got := lastKind(t, fx.updates(t)); got != progress.KindCaptchaRequired {
		t.Errorf("last update kind = %s, want captcha_required", got)
	}
}

func TestSolveAccepted(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "xk4p9")
	ctx := context.Background()

	ch, err := fx.coord.Issue(ctx, fx.job, fx.drv, "TRAVEL")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	waitDone := make(chan challenge.Outcome, 1)
	go func() {
		waitDone <- fx.coord.Wait(ctx, ch)
	}()

	res, err := fx.coord.Solve(ctx, ch.ID, "xk4p9")
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !res.Solved {
		t.Fatalf("Solved = false, want true")
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}

	select {
	case out := <-waitDone:
		if out != challenge.OutcomeSolved {
			t.Errorf("Wait outcome = %v, want solved", out)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after solve")
	}

	stored, err := fx.store.GetChallenge(ctx, ch.ID)
	if err != nil {
		t.Fatalf("GetChallenge: %v", err)
	}
	if !stored.Solved || stored.SolvedAt == nil {
		t.Errorf("stored challenge not marked solved")
	}

	if got := lastKind(t, fx.updates(t)); got != progress.KindCaptchaSolved {
		t.Errorf("last update kind = %s, want captcha_solved", got)
	}

	// A solved challenge never accepts another solution.
	if _, err := fx.coord.Solve(ctx, ch.ID, "xk4p9"); !errors.Is(err, formauto.ErrChallengeSolved) {
		t.Errorf("re-solve = %v, want ErrChallengeSolved", err)
	}
}

func TestSolveRejected(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "right")
	ctx := context.Background()

	ch, err := fx.coord.Issue(ctx, fx.job, fx.drv, "PASSPORT")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// A wrong answer is a normal outcome, not an error.
	res, err := fx.coord.Solve(ctx, ch.ID, "wrong")
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Solved {
		t.Fatal("wrong answer accepted")
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}

	if got := lastKind(t, fx.updates(t)); got != progress.KindNewCaptcha {
		t.Errorf("last update kind = %s, want new_captcha", got)
	}

	// The challenge stays active; the right answer still works.
	res, err = fx.coord.Solve(ctx, ch.ID, "right")
	if err != nil {
		t.Fatalf("second Solve: %v", err)
	}
	if !res.Solved || res.Attempts != 2 {
		t.Errorf("second solve = %+v, want solved with 2 attempts", res)
	}
}

func TestSolveExpired(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	clock := func() time.Time { return now }
	fx := newFixture(t, "abc", challenge.WithTTL(time.Minute), challenge.WithClock(func() time.Time { return clock() }))
	ctx := context.Background()

	ch, err := fx.coord.Issue(ctx, fx.job, fx.drv, "TRAVEL")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clock = func() time.Time { return now.Add(2 * time.Minute) }
	if _, err := fx.coord.Solve(ctx, ch.ID, "abc"); !errors.Is(err, formauto.ErrChallengeExpired) {
		t.Errorf("Solve after deadline = %v, want ErrChallengeExpired", err)
	}
}

func TestSolveValidation(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "abc")
	ctx := context.Background()

	if _, err := fx.coord.Solve(ctx, id.NewChallengeID(), "abc"); !errors.Is(err, formauto.ErrChallengeNotFound) {
		t.Errorf("unknown challenge = %v, want ErrChallengeNotFound", err)
	}

	ch, err := fx.coord.Issue(ctx, fx.job, fx.drv, "TRAVEL")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := fx.coord.Solve(ctx, ch.ID, "   "); !errors.Is(err, formauto.ErrInvalidSolution) {
		t.Errorf("blank solution = %v, want ErrInvalidSolution", err)
	}
	if _, err := fx.coord.Solve(ctx, ch.ID, "xy"); !errors.Is(err, formauto.ErrInvalidSolution) {
		t.Errorf("short solution = %v, want ErrInvalidSolution", err)
	}
	long := strings.Repeat("k", challenge.MaxSolutionLength+1)
	if _, err := fx.coord.Solve(ctx, ch.ID, long); !errors.Is(err, formauto.ErrInvalidSolution) {
		t.Errorf("oversized solution = %v, want ErrInvalidSolution", err)
	}
}

func TestWaitExpires(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "abc", challenge.WithTTL(20*time.Millisecond))
	ctx := context.Background()

	ch, err := fx.coord.Issue(ctx, fx.job, fx.drv, "TRAVEL")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if out := fx.coord.Wait(ctx, ch); out != challenge.OutcomeExpired {
		t.Errorf("Wait = %v, want expired", out)
	}
}

func TestWaitCancelled(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "abc")
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := fx.coord.Issue(ctx, fx.job, fx.drv, "TRAVEL")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	done := make(chan challenge.Outcome, 1)
	go func() { done <- fx.coord.Wait(ctx, ch) }()
	cancel()

	select {
	case out := <-done:
		if out != challenge.OutcomeCancelled {
			t.Errorf("Wait = %v, want cancelled", out)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return on cancellation")
	}
}

func TestSolveAfterWaitEnds(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "abc", challenge.WithTTL(10*time.Millisecond))
	ctx := context.Background()

	ch, err := fx.coord.Issue(ctx, fx.job, fx.drv, "TRAVEL")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	// Wait times out and releases the driver session.
	if out := fx.coord.Wait(ctx, ch); out != challenge.OutcomeExpired {
		t.Fatalf("Wait = %v, want expired", out)
	}

	if _, err := fx.coord.Solve(ctx, ch.ID, "abc"); err == nil {
		t.Error("Solve after wait ended should fail")
	}
}

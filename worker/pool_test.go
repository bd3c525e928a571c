package worker_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/backoff"
	"github.com/Safi643133/ai-immigration-services-sub003/challenge"
	"github.com/Safi643133/ai-immigration-services-sub003/driver"
	"github.com/Safi643133/ai-immigration-services-sub003/driver/drivertest"
	"github.com/Safi643133/ai-immigration-services-sub003/engine"
	"github.com/Safi643133/ai-immigration-services-sub003/ext"
	"github.com/Safi643133/ai-immigration-services-sub003/form"
	"github.com/Safi643133/ai-immigration-services-sub003/id"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
	"github.com/Safi643133/ai-immigration-services-sub003/middleware"
	"github.com/Safi643133/ai-immigration-services-sub003/progress"
	"github.com/Safi643133/ai-immigration-services-sub003/queue"
	"github.com/Safi643133/ai-immigration-services-sub003/store/memory"
	"github.com/Safi643133/ai-immigration-services-sub003/worker"
)

// onlySequence is a single-step flow for pool tests.
func onlySequence() *form.Sequence {
	return form.NewSequence(form.Step{
		Name:  "ONLY",
		Title: "Only",
		Ready: driver.Condition{Target: "only_ready"},
		Next:  "only_next",
		Fields: []form.Field{
			{Key: "only.name", Target: "only_name", Kind: form.KindText},
		},
	})
}

var fastWaits = engine.Waits{
	Primary:   100 * time.Millisecond,
	Secondary: 50 * time.Millisecond,
	Grace:     10 * time.Millisecond,
	Subfield:  100 * time.Millisecond,
}

// onlyPageFactory hands each job a fresh page that completes normally.
func onlyPageFactory() driver.Factory {
	return driver.FactoryFunc(func(context.Context) (driver.Driver, error) {
		f := drivertest.New("only_ready", "only_name", "only_next")
		f.OnClick = func(f *drivertest.Fake, target string) {
			if target == "only_next" {
				f.Remove("only_ready", "only_name", "only_next")
			}
		}
		return f, nil
	})
}

type harness struct {
	store *memory.Store
	pool  *worker.Pool
	track *trackingExt
}

func newHarness(t *testing.T, factory driver.Factory, opts ...worker.PoolOption) *harness {
	t.Helper()

	logger := slog.Default()
	st := memory.New()
	pub := progress.NewPublisher(st, logger)
	coord := challenge.NewCoordinator(st, pub, logger, challenge.WithSettle(0))

	runner := engine.NewRunner(st, pub, coord, logger,
		engine.WithSequence(onlySequence()),
		engine.WithWaits(fastWaits),
	)

	extensions := ext.NewRegistry(logger)
	track := &trackingExt{}
	extensions.Register(track)
	runner.SetEmitter(extensions)

	executor := worker.NewExecutor(st, runner, pub, extensions, logger,
		middleware.Recover(logger),
	)

	opts = append([]worker.PoolOption{
		worker.WithPoolConcurrency(1),
		worker.WithIdleBackoff(backoff.NewConstant(10 * time.Millisecond)),
	}, opts...)

	return &harness{
		store: st,
		pool:  worker.NewPool(st, factory, executor, extensions, logger, opts...),
		track: track,
	}
}

func (h *harness) queueJob(t *testing.T, embassy string) *job.Job {
	t.Helper()
	j := &job.Job{
		Entity:        formauto.NewEntity(),
		ID:            id.NewJobID(),
		SubmissionRef: "sub-1",
		OwnerRef:      "owner-1",
		Status:        job.StatusQueued,
		Embassy:       embassy,
		FieldMap:      job.FieldMap{"only.name": "PATEL"},
	}
	if err := h.store.CreateJob(context.Background(), j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return j
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.pool.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

// waitUntil polls cond until it holds or the deadline passes.
func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (h *harness) status(t *testing.T, jobID id.JobID) job.Status {
	t.Helper()
	j, err := h.store.GetJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	return j.Status
}

func TestPool_StartStop(t *testing.T) {
	h := newHarness(t, onlyPageFactory())

	if err := h.pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Double start is a no-op.
	if err := h.pool.Start(context.Background()); err != nil {
		t.Fatalf("double Start: %v", err)
	}

	h.stop(t)
	h.stop(t) // double stop is a no-op too
}

func TestPool_CompletesQueuedJob(t *testing.T) {
	h := newHarness(t, onlyPageFactory())
	j := h.queueJob(t, "")

	if err := h.pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitUntil(t, "job completion", func() bool {
		return h.status(t, j.ID) == job.StatusCompleted
	})
	h.stop(t)

	got, err := h.store.GetJob(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.FinishedAt == nil {
		t.Error("expected FinishedAt to be set")
	}
	if got.WorkerID != h.pool.WorkerID() {
		t.Errorf("worker_id = %s, want %s", got.WorkerID, h.pool.WorkerID())
	}

	feed, err := h.store.ListUpdates(context.Background(), j.ID, 0)
	if err != nil {
		t.Fatalf("ListUpdates: %v", err)
	}
	if len(feed) == 0 {
		t.Fatal("empty progress feed")
	}
	last := feed[len(feed)-1]
	if last.Kind != progress.KindJobCompleted || last.Percent != 100 {
		t.Errorf("last update = %s/%d, want job_completed/100", last.Kind, last.Percent)
	}

	if !h.track.started.Load() || !h.track.completed.Load() {
		t.Error("expected JobStarted and JobCompleted hooks to fire")
	}
}

func TestPool_FailsJobOnTransportTimeout(t *testing.T) {
	// The readiness target never appears.
	factory := driver.FactoryFunc(func(context.Context) (driver.Driver, error) {
		return drivertest.New("only_name", "only_next"), nil
	})
	h := newHarness(t, factory)
	j := h.queueJob(t, "")

	if err := h.pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitUntil(t, "job failure", func() bool {
		return h.status(t, j.ID) == job.StatusFailed
	})
	h.stop(t)

	got, _ := h.store.GetJob(context.Background(), j.ID)
	if got.ErrorCode != job.CodeTransportTimeout {
		t.Errorf("error code = %s, want TRANSPORT_TIMEOUT", got.ErrorCode)
	}

	feed, _ := h.store.ListUpdates(context.Background(), j.ID, 0)
	if len(feed) == 0 || feed[len(feed)-1].Kind != progress.KindJobFailed {
		t.Errorf("feed does not end with job_failed")
	}
	if !h.track.failed.Load() {
		t.Error("expected JobFailed hook to fire")
	}
}

func TestPool_FailsJobWhenSessionOpenFails(t *testing.T) {
	factory := driver.FactoryFunc(func(context.Context) (driver.Driver, error) {
		return nil, errors.New("browser crashed")
	})
	h := newHarness(t, factory)
	j := h.queueJob(t, "")

	if err := h.pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitUntil(t, "job failure", func() bool {
		return h.status(t, j.ID) == job.StatusFailed
	})
	h.stop(t)

	got, _ := h.store.GetJob(context.Background(), j.ID)
	if got.ErrorCode != job.CodeTransportTimeout {
		t.Errorf("error code = %s, want TRANSPORT_TIMEOUT", got.ErrorCode)
	}
	if got.ErrorMessage != "could not open remote session" {
		t.Errorf("error message = %q", got.ErrorMessage)
	}
}

func TestPool_RateLimitedJobReturnsToQueue(t *testing.T) {
	manager := queue.NewManager(queue.Config{
		Embassy:   "LONDON",
		RateLimit: 0.001,
		RateBurst: 1,
	})
	manager.Acquire("LONDON") // drain the only token

	h := newHarness(t, onlyPageFactory(), worker.WithQueueManager(manager))
	j := h.queueJob(t, "LONDON")

	if err := h.pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(150 * time.Millisecond)
	h.stop(t)

	got, err := h.store.GetJob(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != job.StatusQueued {
		t.Errorf("status = %s, want queued after admission refusal", got.Status)
	}
	if !got.WorkerID.IsNil() {
		t.Errorf("worker_id = %s, want cleared", got.WorkerID)
	}
}

func TestPool_CancelJobTerminatesRun(t *testing.T) {
	// A page that never becomes ready, with a long primary wait so the
	// engine sits inside WaitFor until cancelled.
	var drv atomic.Pointer[drivertest.Fake]
	factory := driver.FactoryFunc(func(context.Context) (driver.Driver, error) {
		f := drivertest.New("only_name", "only_next")
		drv.Store(f)
		return f, nil
	})

	logger := slog.Default()
	st := memory.New()
	pub := progress.NewPublisher(st, logger)
	coord := challenge.NewCoordinator(st, pub, logger, challenge.WithSettle(0))
	runner := engine.NewRunner(st, pub, coord, logger,
		engine.WithSequence(onlySequence()),
		engine.WithWaits(engine.Waits{Primary: 30 * time.Second}),
	)
	extensions := ext.NewRegistry(logger)
	executor := worker.NewExecutor(st, runner, pub, extensions, logger)
	pool := worker.NewPool(st, factory, executor, extensions, logger,
		worker.WithPoolConcurrency(1),
		worker.WithIdleBackoff(backoff.NewConstant(10*time.Millisecond)),
	)

	j := &job.Job{
		Entity:        formauto.NewEntity(),
		ID:            id.NewJobID(),
		SubmissionRef: "sub-1",
		OwnerRef:      "owner-1",
		Status:        job.StatusQueued,
		FieldMap:      job.FieldMap{"only.name": "PATEL"},
	}
	if err := st.CreateJob(context.Background(), j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Cancel as soon as the run is tracked.
	var ack bool
	waitUntil(t, "job to become cancellable", func() bool {
		var found bool
		ack, found = pool.CancelJob(context.Background(), j.ID)
		return found
	})
	if !ack {
		t.Error("expected the driver to acknowledge the cancel")
	}

	// The run unwinds and the session is released.
	waitUntil(t, "session teardown", func() bool {
		f := drv.Load()
		return f != nil && f.Closed()
	})
	if !drv.Load().Cancelled() {
		t.Error("expected the session cancel to reach the driver")
	}

	// The pool does not finalize a cancelled run itself; the store row
	// keeps its claim until an orchestrator or reaper settles it.
	got, _ := st.GetJob(context.Background(), j.ID)
	if got.Status != job.StatusRunning {
		t.Errorf("status = %s, want running (claim left in place)", got.Status)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestPool_ReaperFailsWorkerLostJobs(t *testing.T) {
	h := newHarness(t, onlyPageFactory(), worker.WithStaleJobThreshold(30*time.Millisecond))

	// A claim from a worker that died an hour ago.
	stale := time.Now().UTC().Add(-time.Hour)
	j := &job.Job{
		Entity:        formauto.NewEntity(),
		ID:            id.NewJobID(),
		SubmissionRef: "sub-9",
		OwnerRef:      "owner-9",
		Status:        job.StatusRunning,
		WorkerID:      id.NewWorkerID(),
		StartedAt:     &stale,
		HeartbeatAt:   &stale,
		FieldMap:      job.FieldMap{"only.name": "PATEL"},
	}
	if err := h.store.CreateJob(context.Background(), j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	if err := h.pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitUntil(t, "stale job to be reaped", func() bool {
		return h.status(t, j.ID) == job.StatusFailed
	})
	h.stop(t)

	got, _ := h.store.GetJob(context.Background(), j.ID)
	if got.ErrorCode != job.CodeWorkerLost {
		t.Errorf("error code = %s, want WORKER_LOST", got.ErrorCode)
	}

	feed, _ := h.store.ListUpdates(context.Background(), j.ID, 0)
	if len(feed) != 1 || feed[0].Kind != progress.KindJobFailed {
		t.Errorf("feed = %v, want a single job_failed update", feed)
	}
	if !h.track.failed.Load() {
		t.Error("expected JobFailed hook to fire")
	}
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// trackingExt records which lifecycle hooks fired.
type trackingExt struct {
	started   atomic.Bool
	completed atomic.Bool
	failed    atomic.Bool
}

func (e *trackingExt) Name() string { return "tracker" }

func (e *trackingExt) OnJobStarted(_ context.Context, _ *job.Job) error {
	e.started.Store(true)
	return nil
}

func (e *trackingExt) OnJobCompleted(_ context.Context, _ *job.Job, _ time.Duration) error {
	e.completed.Store(true)
	return nil
}

func (e *trackingExt) OnJobFailed(_ context.Context, _ *job.Job, _ error) error {
	e.failed.Store(true)
	return nil
}

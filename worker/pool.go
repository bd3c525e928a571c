package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Safi643133/ai-immigration-services-sub003/backoff"
	"github.com/Safi643133/ai-immigration-services-sub003/driver"
	"github.com/Safi643133/ai-immigration-services-sub003/ext"
	"github.com/Safi643133/ai-immigration-services-sub003/id"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
	"github.com/Safi643133/ai-immigration-services-sub003/queue"
)

// Pool manages a set of concurrent worker goroutines that claim queued
// jobs and execute them through the Executor. Each claimed job gets its
// own remote session for its whole lifetime.
type Pool struct {
	jobs       job.Store
	sessions   driver.Factory
	executor   *Executor
	extensions *ext.Registry
	logger     *slog.Logger

	concurrency int
	idle        backoff.Strategy
	workerID    id.WorkerID

	// Heartbeat / reaper configuration.
	heartbeatInterval time.Duration
	staleJobThreshold time.Duration

	// Per-embassy admission (optional).
	queues *queue.Manager

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	active   map[id.JobID]*activeRun
	activeMu sync.Mutex
}

// activeRun tracks one in-flight job so it can be cancelled and its
// remote session terminated.
type activeRun struct {
	cancel context.CancelFunc
	drv    driver.Driver
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of concurrent worker goroutines.
// Each worker holds at most one remote session at a time.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithIdleBackoff sets the delay strategy applied between empty polls.
func WithIdleBackoff(s backoff.Strategy) PoolOption {
	return func(p *Pool) { p.idle = s }
}

// WithHeartbeatInterval sets how often the pool sends heartbeats for
// active jobs. A zero value disables heartbeats.
func WithHeartbeatInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.heartbeatInterval = d }
}

// WithStaleJobThreshold sets the threshold after which claimed jobs
// without a heartbeat are considered worker-lost and failed. A zero
// value disables reaping.
func WithStaleJobThreshold(d time.Duration) PoolOption {
	return func(p *Pool) { p.staleJobThreshold = d }
}

// WithQueueManager sets the per-embassy admission manager.
func WithQueueManager(m *queue.Manager) PoolOption {
	return func(p *Pool) { p.queues = m }
}

// NewPool creates a worker pool.
func NewPool(
	jobs job.Store,
	sessions driver.Factory,
	executor *Executor,
	extensions *ext.Registry,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	p := &Pool{
		jobs:        jobs,
		sessions:    sessions,
		executor:    executor,
		extensions:  extensions,
		logger:      logger,
		concurrency: 4,
		idle:        backoff.DefaultStrategy(),
		workerID:    id.NewWorkerID(),
		stopCh:      make(chan struct{}),
		active:      make(map[id.JobID]*activeRun),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.dequeueLoop()
	}

	if p.heartbeatInterval > 0 {
		p.wg.Add(1)
		go p.heartbeatLoop()
	}

	if p.staleJobThreshold > 0 {
		p.wg.Add(1)
		go p.reaperLoop()
	}

	return nil
}

// Stop signals all workers to stop and waits for them to finish.
// If the context has a deadline, active runs are cancelled when time
// runs out; their claims stay in the store for a reaper to pick up.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active runs")
		p.cancelActiveRuns()
		p.wg.Wait()
	}

	return nil
}

// CancelJob cancels a job running in this pool: the run context is
// cancelled so the engine unwinds at its next driver call, then the
// remote session is asked to terminate. It reports whether the remote
// side acknowledged the termination and whether the job was running
// here at all.
func (p *Pool) CancelJob(ctx context.Context, jobID id.JobID) (acknowledged, found bool) {
	p.activeMu.Lock()
	run, ok := p.active[jobID]
	p.activeMu.Unlock()
	if !ok {
		return false, false
	}

	run.cancel()
	return run.drv.Cancel(ctx), true
}

// dequeueLoop is run by each worker goroutine.
func (p *Pool) dequeueLoop() {
	defer p.wg.Done()

	idle := 0
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		claimed, err := p.jobs.ClaimQueuedJobs(context.Background(), p.workerID, 1)
		if err != nil {
			p.logger.Error("claim error", slog.String("error", err.Error()))
			idle++
			p.sleep(idle)
			continue
		}

		if len(claimed) == 0 {
			idle++
			p.sleep(idle)
			continue
		}
		idle = 0

		j := claimed[0]

		if p.queues != nil && !p.queues.Acquire(j.Embassy) {
			p.requeue(j)
			p.sleep(1)
			continue
		}

		p.extensions.EmitJobStarted(context.Background(), j)
		p.runClaimed(j)

		if p.queues != nil {
			p.queues.Release(j.Embassy)
		}
	}
}

// runClaimed opens a session for the job and executes it.
func (p *Pool) runClaimed(j *job.Job) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := p.sessions.Open(ctx)
	if err != nil {
		p.logger.Error("failed to open remote session",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		if failErr := p.executor.FailJob(ctx, j, job.CodeTransportTimeout, "could not open remote session", err); failErr != nil {
			p.logger.Error("failed to finalize sessionless job",
				slog.String("job_id", j.ID.String()),
				slog.String("error", failErr.Error()),
			)
		}
		return
	}

	p.trackJob(j.ID, cancel, d)
	if execErr := p.executor.Execute(ctx, j, d); execErr != nil {
		p.logger.Debug("job execution ended with error",
			slog.String("job_id", j.ID.String()),
			slog.String("error", execErr.Error()),
		)
	}
	p.untrackJob(j.ID)

	if closeErr := d.Close(); closeErr != nil {
		p.logger.Warn("session close error",
			slog.String("job_id", j.ID.String()),
			slog.String("error", closeErr.Error()),
		)
	}
}

// requeue rolls a claim back after an admission refusal. The job was
// never observed running externally, so the claim fields are reset
// directly rather than transitioned.
func (p *Pool) requeue(j *job.Job) {
	j.Status = job.StatusQueued
	j.WorkerID = id.Nil
	j.StartedAt = nil
	j.HeartbeatAt = nil
	j.Touch()

	if err := p.jobs.UpdateJob(context.Background(), j); err != nil {
		p.logger.Error("failed to roll back rate-limited claim",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// heartbeatLoop periodically sends heartbeats for all active jobs.
// Jobs suspended on a challenge heartbeat too; waiting on a human is
// not the same as losing the worker.
func (p *Pool) heartbeatLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.sendHeartbeats()
		}
	}
}

func (p *Pool) sendHeartbeats() {
	p.activeMu.Lock()
	jobIDs := make([]id.JobID, 0, len(p.active))
	for jobID := range p.active {
		jobIDs = append(jobIDs, jobID)
	}
	p.activeMu.Unlock()

	for _, jobID := range jobIDs {
		if err := p.jobs.HeartbeatJob(context.Background(), jobID, p.workerID); err != nil {
			p.logger.Warn("heartbeat failed",
				slog.String("job_id", jobID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// reaperLoop periodically fails claimed jobs whose heartbeat expired.
func (p *Pool) reaperLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.staleJobThreshold)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapStaleJobs()
		}
	}
}

// reapStaleJobs finalizes worker-lost jobs. A lost worker may have
// driven the remote form arbitrarily far, so the job is failed rather
// than requeued: replaying steps against the remote session state is
// not safe.
func (p *Pool) reapStaleJobs() {
	stale, err := p.jobs.ReapStaleJobs(context.Background(), p.staleJobThreshold)
	if err != nil {
		p.logger.Error("reap stale jobs error", slog.String("error", err.Error()))
		return
	}

	for _, j := range stale {
		if p.isLocallyActive(j.ID) {
			continue
		}

		if failErr := p.executor.FailJob(context.Background(), j, job.CodeWorkerLost, "worker stopped heartbeating", nil); failErr != nil {
			p.logger.Error("reap: failed to finalize stale job",
				slog.String("job_id", j.ID.String()),
				slog.String("error", failErr.Error()),
			)
			continue
		}

		p.logger.Info("reaped worker-lost job",
			slog.String("job_id", j.ID.String()),
			slog.String("worker_id", j.WorkerID.String()),
		)
	}
}

func (p *Pool) sleep(idle int) {
	select {
	case <-time.After(p.idle.Delay(idle)):
	case <-p.stopCh:
	}
}

func (p *Pool) trackJob(jobID id.JobID, cancel context.CancelFunc, d driver.Driver) {
	p.activeMu.Lock()
	p.active[jobID] = &activeRun{cancel: cancel, drv: d}
	p.activeMu.Unlock()
}

func (p *Pool) untrackJob(jobID id.JobID) {
	p.activeMu.Lock()
	delete(p.active, jobID)
	p.activeMu.Unlock()
}

func (p *Pool) isLocallyActive(jobID id.JobID) bool {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	_, ok := p.active[jobID]
	return ok
}

func (p *Pool) cancelActiveRuns() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for jobID, run := range p.active {
		p.logger.Warn("cancelling active run", slog.String("job_id", jobID.String()))
		run.cancel()
	}
}

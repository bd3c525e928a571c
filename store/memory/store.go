// Package memory provides a fully in-memory store backend. Safe for
// concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/artifact"
	"github.com/Safi643133/ai-immigration-services-sub003/challenge"
	"github.com/Safi643133/ai-immigration-services-sub003/id"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
	"github.com/Safi643133/ai-immigration-services-sub003/progress"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ job.Store       = (*Store)(nil)
	_ progress.Store  = (*Store)(nil)
	_ challenge.Store = (*Store)(nil)
	_ artifact.Store  = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	jobs       map[string]*job.Job
	updates    map[string][]*progress.Update // key: job ID, ordered by seq
	challenges map[string]*challenge.Challenge
	artifacts  map[string]*artifact.Artifact
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs:       make(map[string]*job.Job),
		updates:    make(map[string][]*progress.Update),
		challenges: make(map[string]*challenge.Challenge),
		artifacts:  make(map[string]*artifact.Artifact),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

// CreateJob persists a new job in queued status.
func (m *Store) CreateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return formauto.ErrJobAlreadyExists
	}
	cp := cloneJob(j)
	m.jobs[key] = cp
	return nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, formauto.ErrJobNotFound
	}
	return cloneJob(j), nil
}

// UpdateJob persists changes to an existing job. Jobs already in a
// terminal status are immutable and reject further writes.
func (m *Store) UpdateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	stored, ok := m.jobs[key]
	if !ok {
		return formauto.ErrJobNotFound
	}
	if stored.Status.IsTerminal() {
		return formauto.ErrJobNotActive
	}
	cp := cloneJob(j)
	cp.UpdatedAt = time.Now().UTC()
	m.jobs[key] = cp
	return nil
}

// GetActiveJob returns the active job for a (submission, owner) pair.
func (m *Store) GetActiveJob(_ context.Context, submissionRef, ownerRef string) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, j := range m.jobs {
		if j.SubmissionRef == submissionRef && j.OwnerRef == ownerRef && j.Status.IsActive() {
			return cloneJob(j), nil
		}
	}
	return nil, formauto.ErrJobNotFound
}

// ClaimQueuedJobs atomically claims up to limit queued jobs for the
// given worker, ordered by priority descending then creation time.
func (m *Store) ClaimQueuedJobs(_ context.Context, workerID id.WorkerID, limit int) ([]*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.Status == job.StatusQueued {
			candidates = append(candidates, j)
		}
	}

	sort.Slice(candidates, func(i, k int) bool {
		if candidates[i].Priority != candidates[k].Priority {
			return candidates[i].Priority > candidates[k].Priority
		}
		return candidates[i].CreatedAt.Before(candidates[k].CreatedAt)
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	now := time.Now().UTC()
	result := make([]*job.Job, len(candidates))
	for i, j := range candidates {
		j.Status = job.StatusRunning
		j.WorkerID = workerID
		n := now
		j.StartedAt = &n
		h := now
		j.HeartbeatAt = &h
		result[i] = cloneJob(j)
	}
	return result, nil
}

// ListJobsByOwner returns an owner's jobs matching the options, newest
// first.
func (m *Store) ListJobsByOwner(_ context.Context, ownerRef string, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.OwnerRef != ownerRef {
			continue
		}
		if opts.Status != "" && j.Status != opts.Status {
			continue
		}
		if opts.Embassy != "" && j.Embassy != opts.Embassy {
			continue
		}
		result = append(result, cloneJob(j))
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// HeartbeatJob updates the heartbeat timestamp for a claimed job.
func (m *Store) HeartbeatJob(_ context.Context, jobID id.JobID, _ id.WorkerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return formauto.ErrJobNotFound
	}
	now := time.Now().UTC()
	j.HeartbeatAt = &now
	return nil
}

// ReapStaleJobs returns claimed jobs whose last heartbeat is older than
// the given threshold.
func (m *Store) ReapStaleJobs(_ context.Context, threshold time.Duration) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-threshold)
	var stale []*job.Job
	for _, j := range m.jobs {
		if j.Status != job.StatusRunning && j.Status != job.StatusWaitingForCaptcha {
			continue
		}
		if j.HeartbeatAt != nil && j.HeartbeatAt.Before(cutoff) {
			stale = append(stale, cloneJob(j))
		}
	}
	return stale, nil
}

// CountJobs returns the number of jobs matching the given options.
func (m *Store) CountJobs(_ context.Context, opts job.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, j := range m.jobs {
		if opts.Status != "" && j.Status != opts.Status {
			continue
		}
		if opts.OwnerRef != "" && j.OwnerRef != opts.OwnerRef {
			continue
		}
		count++
	}
	return count, nil
}

// PurgeTerminalJobs removes terminal jobs finished before the given
// time, along with their progress feeds and challenges.
func (m *Store) PurgeTerminalJobs(_ context.Context, before time.Time) ([]id.JobID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var purged []id.JobID
	for key, j := range m.jobs {
		if !j.Status.IsTerminal() {
			continue
		}
		if j.FinishedAt == nil || !j.FinishedAt.Before(before) {
			continue
		}
		delete(m.jobs, key)
		delete(m.updates, key)
		for chKey, ch := range m.challenges {
			if ch.JobID == j.ID {
				delete(m.challenges, chKey)
			}
		}
		purged = append(purged, j.ID)
	}
	return purged, nil
}

// ──────────────────────────────────────────────────
// Progress Store
// ──────────────────────────────────────────────────

// AppendUpdate persists one update at the end of its job's feed.
func (m *Store) AppendUpdate(_ context.Context, u *progress.Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := u.JobID.String()
	cp := *u
	cp.Seq = int64(len(m.updates[key]) + 1)
	u.Seq = cp.Seq
	m.updates[key] = append(m.updates[key], &cp)
	return nil
}

// ListUpdates returns a job's feed ordered oldest first, skipping
// entries at or below afterSeq.
func (m *Store) ListUpdates(_ context.Context, jobID id.JobID, afterSeq int64) ([]*progress.Update, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	feed := m.updates[jobID.String()]
	result := make([]*progress.Update, 0, len(feed))
	for _, u := range feed {
		if u.Seq <= afterSeq {
			continue
		}
		cp := *u
		result = append(result, &cp)
	}
	return result, nil
}

// LatestPercent returns the highest percent recorded for the job.
func (m *Store) LatestPercent(_ context.Context, jobID id.JobID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var high int
	for _, u := range m.updates[jobID.String()] {
		if u.Percent > high {
			high = u.Percent
		}
	}
	return high, nil
}

// ──────────────────────────────────────────────────
// Challenge Store
// ──────────────────────────────────────────────────

// CreateChallenge persists a new challenge.
func (m *Store) CreateChallenge(_ context.Context, c *challenge.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// One active challenge per job at a time.
	now := time.Now().UTC()
	for _, existing := range m.challenges {
		if existing.JobID == c.JobID && existing.Active(now) {
			return formauto.ErrChallengeActive
		}
	}
	cp := *c
	m.challenges[c.ID.String()] = &cp
	return nil
}

// GetChallenge retrieves a challenge by ID.
func (m *Store) GetChallenge(_ context.Context, challengeID id.ChallengeID) (*challenge.Challenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.challenges[challengeID.String()]
	if !ok {
		return nil, formauto.ErrChallengeNotFound
	}
	cp := *c
	return &cp, nil
}

// GetActiveChallenge returns the job's unsolved, unexpired challenge.
func (m *Store) GetActiveChallenge(_ context.Context, jobID id.JobID) (*challenge.Challenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now().UTC()
	for _, c := range m.challenges {
		if c.JobID == jobID && c.Active(now) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, formauto.ErrChallengeNotFound
}

// GetLatestChallenge returns the job's newest challenge regardless of
// its solved or expiry state.
func (m *Store) GetLatestChallenge(_ context.Context, jobID id.JobID) (*challenge.Challenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *challenge.Challenge
	for _, c := range m.challenges {
		if c.JobID != jobID {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, formauto.ErrChallengeNotFound
	}
	cp := *latest
	return &cp, nil
}

// UpdateChallenge persists changes to an existing challenge.
func (m *Store) UpdateChallenge(_ context.Context, c *challenge.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := c.ID.String()
	if _, ok := m.challenges[key]; !ok {
		return formauto.ErrChallengeNotFound
	}
	cp := *c
	cp.UpdatedAt = time.Now().UTC()
	m.challenges[key] = &cp
	return nil
}

// ListExpiredChallenges returns unsolved challenges whose deadline
// passed before now.
func (m *Store) ListExpiredChallenges(_ context.Context, now time.Time) ([]*challenge.Challenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var expired []*challenge.Challenge
	for _, c := range m.challenges {
		if c.Expired(now) {
			cp := *c
			expired = append(expired, &cp)
		}
	}
	return expired, nil
}

// ──────────────────────────────────────────────────
// Artifact Store
// ──────────────────────────────────────────────────

// CreateArtifact persists a new artifact record.
func (m *Store) CreateArtifact(_ context.Context, a *artifact.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *a
	m.artifacts[a.ID.String()] = &cp
	return nil
}

// GetArtifact retrieves an artifact record by ID.
func (m *Store) GetArtifact(_ context.Context, artifactID id.ArtifactID) (*artifact.Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.artifacts[artifactID.String()]
	if !ok {
		return nil, formauto.ErrArtifactNotFound
	}
	cp := *a
	return &cp, nil
}

// ListArtifactsByJob returns a job's artifact records, oldest first.
func (m *Store) ListArtifactsByJob(_ context.Context, jobID id.JobID) ([]*artifact.Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*artifact.Artifact
	for _, a := range m.artifacts {
		if a.JobID == jobID {
			cp := *a
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})
	return result, nil
}

// DeleteArtifactsByJob removes a job's artifact records.
func (m *Store) DeleteArtifactsByJob(_ context.Context, jobID id.JobID) ([]*artifact.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []*artifact.Artifact
	for key, a := range m.artifacts {
		if a.JobID == jobID {
			removed = append(removed, a)
			delete(m.artifacts, key)
		}
	}
	return removed, nil
}

// cloneJob deep-copies a job so callers can mutate without racing with
// the store.
func cloneJob(j *job.Job) *job.Job {
	cp := *j
	if j.FieldMap != nil {
		cp.FieldMap = j.FieldMap.Clone()
	}
	if j.Metadata != nil {
		meta := make(map[string]string, len(j.Metadata))
		for k, v := range j.Metadata {
			meta[k] = v
		}
		cp.Metadata = meta
	}
	return &cp
}

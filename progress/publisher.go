package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Safi643133/ai-immigration-services-sub003/id"
)

// Emitter receives updates after they are persisted. The extension
// registry satisfies this; the indirection keeps this package free of a
// dependency on it.
type Emitter interface {
	EmitProgressRecorded(ctx context.Context, u *Update)
}

// nopEmitter is used when no emitter is wired.
type nopEmitter struct{}

func (nopEmitter) EmitProgressRecorded(context.Context, *Update) {}

// Publisher appends updates to a job's feed and fans them out to the
// emitter. It enforces the feed's one invariant the store cannot:
// percent never decreases within a job. A regressing percent is clamped
// to the previous high-water mark, not rejected — the update itself
// still carries information.
type Publisher struct {
	store   Store
	emitter Emitter
	logger  *slog.Logger

	mu   sync.Mutex
	high map[id.JobID]int
}

// NewPublisher creates a publisher over the given store.
func NewPublisher(store Store, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		store:   store,
		emitter: nopEmitter{},
		logger:  logger,
		high:    make(map[id.JobID]int),
	}
}

// SetEmitter wires the downstream emitter. Must be called before the
// publisher is used concurrently.
func (p *Publisher) SetEmitter(e Emitter) {
	if e != nil {
		p.emitter = e
	}
}

// Publish persists the update and notifies the emitter. The update's
// Percent is clamped so the feed stays monotonic; Seq is assigned by
// the store.
func (p *Publisher) Publish(ctx context.Context, u *Update) error {
	if u.ID.IsNil() {
		u.ID = id.NewUpdateID()
	}

	p.mu.Lock()
	prev, ok := p.high[u.JobID]
	if !ok {
		// Publisher may have restarted since the feed began.
		p.mu.Unlock()
		stored, err := p.store.LatestPercent(ctx, u.JobID)
		if err != nil {
			return fmt.Errorf("progress: load high-water mark: %w", err)
		}
		p.mu.Lock()
		if cur, reloaded := p.high[u.JobID]; !reloaded || stored > cur {
			p.high[u.JobID] = stored
		}
		prev = p.high[u.JobID]
	}
	if u.Percent < prev {
		p.logger.Debug("clamping regressing percent",
			slog.String("job_id", u.JobID.String()),
			slog.Int("got", u.Percent),
			slog.Int("floor", prev),
		)
		u.Percent = prev
	}
	p.high[u.JobID] = u.Percent
	p.mu.Unlock()

	if err := p.store.AppendUpdate(ctx, u); err != nil {
		return fmt.Errorf("progress: append update: %w", err)
	}

	p.emitter.EmitProgressRecorded(ctx, u)

	if u.Kind.Terminal() {
		p.forget(u.JobID)
	}
	return nil
}

// forget drops the in-memory high-water mark once a feed closes.
func (p *Publisher) forget(jobID id.JobID) {
	p.mu.Lock()
	delete(p.high, jobID)
	p.mu.Unlock()
}

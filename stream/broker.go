package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Safi643133/ai-immigration-services-sub003/challenge"
	"github.com/Safi643133/ai-immigration-services-sub003/ext"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
	"github.com/Safi643133/ai-immigration-services-sub003/progress"
)

// Compile-time interface checks.
var (
	_ ext.Extension         = (*Broker)(nil)
	_ ext.JobQueued         = (*Broker)(nil)
	_ ext.JobStarted        = (*Broker)(nil)
	_ ext.JobCompleted      = (*Broker)(nil)
	_ ext.JobFailed         = (*Broker)(nil)
	_ ext.JobCancelled      = (*Broker)(nil)
	_ ext.JobSuperseded     = (*Broker)(nil)
	_ ext.StepStarted       = (*Broker)(nil)
	_ ext.StepCompleted     = (*Broker)(nil)
	_ ext.ChallengeIssued   = (*Broker)(nil)
	_ ext.ChallengeSolved   = (*Broker)(nil)
	_ ext.ChallengeRejected = (*Broker)(nil)
	_ ext.ProgressRecorded  = (*Broker)(nil)
	_ ext.Shutdown          = (*Broker)(nil)
)

// DefaultBufferSize is the default per-subscriber event buffer.
const DefaultBufferSize = 256

// DefaultCredits is the default initial credits for new subscribers.
const DefaultCredits int64 = 1000

// Broker is the real-time stream broker. It implements the ext hook
// interfaces to receive lifecycle events and fans them out to
// subscribers via topic-based pub/sub.
type Broker struct {
	topics *TopicRegistry
	logger *slog.Logger

	// Subscriber management.
	subscribers sync.Map // subscriberID → *Subscriber

	// Metrics.
	totalPublished atomic.Int64

	// Config.
	bufferSize     int
	defaultCredits int64
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBufferSize sets the per-subscriber event buffer size.
func WithBufferSize(size int) BrokerOption {
	return func(b *Broker) { b.bufferSize = size }
}

// WithDefaultCredits sets the initial credits for new subscribers.
func WithDefaultCredits(credits int64) BrokerOption {
	return func(b *Broker) { b.defaultCredits = credits }
}

// NewBroker creates a new stream broker.
func NewBroker(logger *slog.Logger, opts ...BrokerOption) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Broker{
		topics:         NewTopicRegistry(),
		logger:         logger,
		bufferSize:     DefaultBufferSize,
		defaultCredits: DefaultCredits,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements ext.Extension.
func (b *Broker) Name() string { return "stream-broker" }

// Topics returns the topic registry for transport servers.
func (b *Broker) Topics() *TopicRegistry { return b.topics }

// Subscribe creates a new subscriber on the given topics.
func (b *Broker) Subscribe(subscriberID string, topics ...string) *Subscriber {
	sub := newSubscriber(subscriberID, b.bufferSize, b.defaultCredits)
	b.subscribers.Store(subscriberID, sub)
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
	return sub
}

// SubscribeTo adds an existing subscriber to additional topics.
func (b *Broker) SubscribeTo(subscriberID string, topics ...string) {
	val, ok := b.subscribers.Load(subscriberID)
	if !ok {
		return
	}
	sub := val.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
}

// Unsubscribe removes a subscriber from specific topics.
func (b *Broker) Unsubscribe(subscriberID string, topics ...string) {
	for _, topic := range topics {
		b.topics.Unsubscribe(topic, subscriberID)
	}
}

// RemoveSubscriber removes a subscriber from all topics and closes it.
func (b *Broker) RemoveSubscriber(subscriberID string) {
	b.topics.UnsubscribeAll(subscriberID)
	if val, ok := b.subscribers.LoadAndDelete(subscriberID); ok {
		val.(*Subscriber).Close() //nolint:errcheck // sync.Map always stores *Subscriber
	}
}

// GetSubscriber returns a subscriber by ID.
func (b *Broker) GetSubscriber(subscriberID string) (*Subscriber, bool) {
	val, ok := b.subscribers.Load(subscriberID)
	if !ok {
		return nil, false
	}
	return val.(*Subscriber), true //nolint:errcheck // sync.Map always stores *Subscriber
}

// Stats returns broker statistics.
func (b *Broker) Stats() BrokerStats {
	count := 0
	b.subscribers.Range(func(_, _ any) bool {
		count++
		return true
	})
	return BrokerStats{
		TopicCount:      b.topics.TopicCount(),
		SubscriberCount: count,
		TotalPublished:  b.totalPublished.Load(),
	}
}

// BrokerStats contains broker metrics.
type BrokerStats struct {
	TopicCount      int   `json:"topic_count"`
	SubscriberCount int   `json:"subscriber_count"`
	TotalPublished  int64 `json:"total_published"`
}

// publish broadcasts an event to all matching topics. After a final
// event the subscribers that follow nothing but the finished job's
// topic are closed; the final event is already buffered on their
// channels at that point.
func (b *Broker) publish(evt *Event) {
	topics := resolveTopics(evt)
	delivered := b.topics.Broadcast(topics, evt)
	b.totalPublished.Add(int64(delivered))

	if evt.Final && evt.Topic != "" {
		b.closeExclusive(evt.Topic)
	}
}

// closeExclusive closes subscribers whose only topic is the given one.
// Subscribers also following broader topics stay open.
func (b *Broker) closeExclusive(topic string) {
	b.subscribers.Range(func(key, value any) bool {
		sub := value.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
		topics := sub.Topics()
		if len(topics) == 1 && topics[0] == topic {
			b.topics.UnsubscribeAll(sub.ID())
			b.subscribers.Delete(key)
			sub.Close()
		}
		return true
	})
}

// mustMarshal marshals data to JSON, panicking on error (programming
// error).
func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("stream: marshal event data: " + err.Error())
	}
	return data
}

func jobData(j *job.Job) JobEventData {
	return JobEventData{
		JobID:         j.ID.String(),
		SubmissionRef: j.SubmissionRef,
		OwnerRef:      j.OwnerRef,
		Embassy:       j.Embassy,
	}
}

func challengeData(c *challenge.Challenge) ChallengeEventData {
	return ChallengeEventData{
		ChallengeID: c.ID.String(),
		JobID:       c.JobID.String(),
		StepName:    c.StepName,
		ExpiresAt:   c.ExpiresAt.Format(time.RFC3339),
		Attempts:    c.Attempts,
	}
}

// ── Job lifecycle hooks ─────────────────────────────

func (b *Broker) OnJobQueued(_ context.Context, j *job.Job) error {
	b.publish(&Event{
		Type:      EventJobQueued,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Data:      mustMarshal(jobData(j)),
	})
	return nil
}

func (b *Broker) OnJobStarted(_ context.Context, j *job.Job) error {
	b.publish(&Event{
		Type:      EventJobStarted,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Data:      mustMarshal(jobData(j)),
	})
	return nil
}

func (b *Broker) OnJobCompleted(_ context.Context, j *job.Job, elapsed time.Duration) error {
	data := jobData(j)
	data.ElapsedMs = elapsed.Milliseconds()
	b.publish(&Event{
		Type:      EventJobCompleted,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Final:     true,
		Data:      mustMarshal(data),
	})
	return nil
}

func (b *Broker) OnJobFailed(_ context.Context, j *job.Job, jobErr error) error {
	data := jobData(j)
	data.Error = jobErr.Error()
	data.ErrorCode = j.ErrorCode
	b.publish(&Event{
		Type:      EventJobFailed,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Final:     true,
		Data:      mustMarshal(data),
	})
	return nil
}

func (b *Broker) OnJobCancelled(_ context.Context, j *job.Job) error {
	b.publish(&Event{
		Type:      EventJobCancelled,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Final:     true,
		Data:      mustMarshal(jobData(j)),
	})
	return nil
}

func (b *Broker) OnJobSuperseded(_ context.Context, old, replacement *job.Job) error {
	data := jobData(old)
	data.ReplacedBy = replacement.ID.String()
	b.publish(&Event{
		Type:      EventJobSuperseded,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(old.ID.String()),
		Final:     true,
		Data:      mustMarshal(data),
	})
	return nil
}

// ── Step lifecycle hooks ────────────────────────────

func (b *Broker) OnStepStarted(_ context.Context, j *job.Job, stepName string, stepNumber int) error {
	b.publish(&Event{
		Type:      EventStepStarted,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Data: mustMarshal(StepEventData{
			JobID:      j.ID.String(),
			StepName:   stepName,
			StepNumber: stepNumber,
		}),
	})
	return nil
}

func (b *Broker) OnStepCompleted(_ context.Context, j *job.Job, stepName string, stepNumber int, elapsed time.Duration) error {
	b.publish(&Event{
		Type:      EventStepCompleted,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Data: mustMarshal(StepEventData{
			JobID:      j.ID.String(),
			StepName:   stepName,
			StepNumber: stepNumber,
			ElapsedMs:  elapsed.Milliseconds(),
		}),
	})
	return nil
}

// ── Challenge lifecycle hooks ───────────────────────

func (b *Broker) OnChallengeIssued(_ context.Context, c *challenge.Challenge) error {
	b.publish(&Event{
		Type:      EventChallengeIssued,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(c.JobID.String()),
		Data:      mustMarshal(challengeData(c)),
	})
	return nil
}

func (b *Broker) OnChallengeSolved(_ context.Context, c *challenge.Challenge) error {
	b.publish(&Event{
		Type:      EventChallengeSolved,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(c.JobID.String()),
		Data:      mustMarshal(challengeData(c)),
	})
	return nil
}

func (b *Broker) OnChallengeRejected(_ context.Context, c *challenge.Challenge) error {
	b.publish(&Event{
		Type:      EventChallengeRejected,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(c.JobID.String()),
		Data:      mustMarshal(challengeData(c)),
	})
	return nil
}

// ── Progress feed ───────────────────────────────────

// OnProgressRecorded mirrors every persisted feed update onto the
// stream, so a client following job:<id> sees exactly what a poll of
// the feed would return, in the same order.
func (b *Broker) OnProgressRecorded(_ context.Context, u *progress.Update) error {
	b.publish(&Event{
		Type:      EventProgress,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(u.JobID.String()),
		Final:     u.Kind.Terminal(),
		Data:      mustMarshal(u),
	})
	return nil
}

// ── Shutdown ────────────────────────────────────────

func (b *Broker) OnShutdown(_ context.Context) error {
	b.subscribers.Range(func(key, value any) bool {
		sub := value.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
		sub.Close()
		b.subscribers.Delete(key)
		return true
	})
	b.logger.Info("stream broker shut down")
	return nil
}

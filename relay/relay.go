// Package relay mirrors the progress feed onto Redis pub/sub so
// out-of-process consumers (dashboards, notification workers) follow
// jobs without polling the record store. Delivery is fire-and-forget:
// the persisted feed remains the source of truth, Redis is a mirror.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/Safi643133/ai-immigration-services-sub003/ext"
	"github.com/Safi643133/ai-immigration-services-sub003/progress"
)

// Compile-time interface checks.
var (
	_ ext.Extension        = (*Relay)(nil)
	_ ext.ProgressRecorded = (*Relay)(nil)
	_ ext.Shutdown         = (*Relay)(nil)
)

// DefaultChannelPrefix namespaces the pub/sub channels.
const DefaultChannelPrefix = "formauto"

// Publisher is the slice of the Redis client the relay uses.
// *redis.Client and *redis.ClusterClient both satisfy it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Close() error
}

// Relay is an extension that republishes every recorded progress
// update to two Redis channels: a per-job channel and a global one.
type Relay struct {
	client Publisher
	logger *slog.Logger
	prefix string
}

// Option configures a Relay.
type Option func(*Relay)

// WithChannelPrefix overrides the channel namespace.
func WithChannelPrefix(prefix string) Option {
	return func(r *Relay) { r.prefix = prefix }
}

// New creates a Relay publishing through the given client.
func New(client Publisher, logger *slog.Logger, opts ...Option) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Relay{
		client: client,
		logger: logger,
		prefix: DefaultChannelPrefix,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name implements ext.Extension.
func (r *Relay) Name() string { return "redis-relay" }

// JobChannel returns the per-job channel name.
func (r *Relay) JobChannel(jobID string) string {
	return fmt.Sprintf("%s:job:%s", r.prefix, jobID)
}

// FeedChannel returns the global channel carrying every update.
func (r *Relay) FeedChannel() string {
	return r.prefix + ":progress"
}

// OnProgressRecorded implements ext.ProgressRecorded. Publish failures
// are logged, never propagated: a Redis outage must not fail jobs.
func (r *Relay) OnProgressRecorded(ctx context.Context, u *progress.Update) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("relay: marshal update %s: %w", u.ID, err)
	}

	for _, channel := range []string{r.JobChannel(u.JobID.String()), r.FeedChannel()} {
		if pubErr := r.client.Publish(ctx, channel, payload).Err(); pubErr != nil {
			r.logger.Warn("relay publish failed",
				slog.String("channel", channel),
				slog.String("job_id", u.JobID.String()),
				slog.String("error", pubErr.Error()),
			)
		}
	}
	return nil
}

// OnShutdown implements ext.Shutdown.
func (r *Relay) OnShutdown(_ context.Context) error {
	return r.client.Close()
}

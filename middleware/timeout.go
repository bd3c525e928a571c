package middleware

import (
	"context"
	"time"

	"github.com/Safi643133/ai-immigration-services-sub003/job"
)

// Timeout returns middleware that enforces an overall execution ceiling
// per job. Zero disables the ceiling. The challenge wait counts against
// it, so the ceiling should comfortably exceed the challenge TTL.
func Timeout(limit time.Duration) Middleware {
	return func(ctx context.Context, _ *job.Job, next Handler) error {
		if limit > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, limit)
			defer cancel()
		}
		return next(ctx)
	}
}

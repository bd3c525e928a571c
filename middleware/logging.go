package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/Safi643133/ai-immigration-services-sub003/job"
)

// Logging returns middleware that logs job start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		logger.Info("job execution started",
			slog.String("job_id", j.ID.String()),
			slog.String("submission_ref", j.SubmissionRef),
			slog.String("embassy", j.Embassy),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("job execution failed",
				slog.String("job_id", j.ID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("job execution finished",
				slog.String("job_id", j.ID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}

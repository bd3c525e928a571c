package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/Safi643133/ai-immigration-services-sub003/blob"
	"github.com/Safi643133/ai-immigration-services-sub003/driver"
	"github.com/Safi643133/ai-immigration-services-sub003/id"
)

// Capture snapshots the remote page through a job's driver session and
// persists bytes plus record. Capture is strictly best effort: a failed
// capture is logged and swallowed so it can never mask the condition
// that prompted it.
type Capture struct {
	store  Store
	blobs  blob.Store
	logger *slog.Logger
}

// NewCapture wires a capture pipeline over the given stores.
func NewCapture(store Store, blobs blob.Store, logger *slog.Logger) *Capture {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capture{store: store, blobs: blobs, logger: logger}
}

// Screenshot captures the current page. It returns the record on
// success and nil when anything along the way failed.
func (c *Capture) Screenshot(ctx context.Context, d driver.Driver, jobID id.JobID, kind Kind, label string) *Artifact {
	a, err := c.screenshot(ctx, d, jobID, kind, label)
	if err != nil {
		c.logger.Warn("artifact capture failed",
			slog.String("job_id", jobID.String()),
			slog.String("label", label),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return a
}

func (c *Capture) screenshot(ctx context.Context, d driver.Driver, jobID id.JobID, kind Kind, label string) (*Artifact, error) {
	data, err := d.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("screenshot: empty capture")
	}

	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])

	if err := c.blobs.Put(ctx, key, data); err != nil {
		return nil, err
	}

	a := New(jobID, kind, label)
	a.SHA256 = key
	a.ContentType = "image/png"
	a.Size = int64(len(data))
	if err := c.store.CreateArtifact(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// CaptureImage satisfies the challenge coordinator's capturer contract.
func (c *Capture) CaptureImage(ctx context.Context, d driver.Driver, jobID id.JobID, label string) (id.ArtifactID, bool) {
	a := c.Screenshot(ctx, d, jobID, KindChallengeImage, label)
	if a == nil {
		return id.Nil, false
	}
	return a.ID, true
}

// Package artifact records captured evidence for jobs: screenshots of
// validation failures, challenge images, and final confirmation pages.
// Records live in the relational store; bytes live in a blob store,
// keyed by content hash.
package artifact

import (
	"context"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/id"
)

// Kind classifies what an artifact captured.
type Kind string

const (
	// KindScreenshot is a full-page capture.
	KindScreenshot Kind = "screenshot"
	// KindChallengeImage is the human-verification picture.
	KindChallengeImage Kind = "challenge_image"
	// KindConfirmation is the final confirmation page.
	KindConfirmation Kind = "confirmation"
)

// Artifact is one captured piece of evidence.
type Artifact struct {
	formauto.Entity

	ID    id.ArtifactID `json:"id"`
	JobID id.JobID      `json:"job_id"`
	Kind  Kind          `json:"kind"`

	// Label says what moment the capture belongs to, e.g.
	// "validation_PASSPORT" or "captcha_personal_1".
	Label string `json:"label"`

	// SHA256 is the hex content hash; it doubles as the blob key.
	SHA256 string `json:"sha256"`

	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// New builds an artifact record with a fresh ID and creation timestamp.
func New(jobID id.JobID, kind Kind, label string) *Artifact {
	return &Artifact{
		Entity: formauto.NewEntity(),
		ID:     id.NewArtifactID(),
		JobID:  jobID,
		Kind:   kind,
		Label:  label,
	}
}

// Store is the persistence contract for artifact records.
// Implementations live under store/.
type Store interface {
	CreateArtifact(ctx context.Context, a *Artifact) error
	GetArtifact(ctx context.Context, artifactID id.ArtifactID) (*Artifact, error)
	ListArtifactsByJob(ctx context.Context, jobID id.JobID) ([]*Artifact, error)

	// DeleteArtifactsByJob removes a job's artifact records, returning
	// them so the caller can also drop the blobs.
	DeleteArtifactsByJob(ctx context.Context, jobID id.JobID) ([]*Artifact, error)
}

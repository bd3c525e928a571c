package artifact_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"testing"

	"github.com/Safi643133/ai-immigration-services-sub003/artifact"
	"github.com/Safi643133/ai-immigration-services-sub003/blob"
	"github.com/Safi643133/ai-immigration-services-sub003/driver/drivertest"
	"github.com/Safi643133/ai-immigration-services-sub003/id"
	"github.com/Safi643133/ai-immigration-services-sub003/store/memory"
)

func newCapture(t *testing.T) (*artifact.Capture, *memory.Store, *blob.LocalFS) {
	t.Helper()
	st := memory.New()
	blobs, err := blob.NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return artifact.NewCapture(st, blobs, logger), st, blobs
}

func TestScreenshotPersistsBytesAndRecord(t *testing.T) {
	t.Parallel()

	capture, st, blobs := newCapture(t)
	d := drivertest.New()
	d.ScreenshotData = []byte("fake-png-bytes")
	jobID := id.NewJobID()

	a := capture.Screenshot(context.Background(), d, jobID, artifact.KindScreenshot, "validation_PASSPORT")
	if a == nil {
		t.Fatal("Screenshot returned nil")
	}

	wantSum := sha256.Sum256(d.ScreenshotData)
	if a.SHA256 != hex.EncodeToString(wantSum[:]) {
		t.Errorf("SHA256 = %q, want content hash", a.SHA256)
	}
	if a.Size != int64(len(d.ScreenshotData)) || a.Label != "validation_PASSPORT" {
		t.Errorf("got size %d label %q", a.Size, a.Label)
	}

	got, err := st.GetArtifact(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetArtifact: %v", err)
	}
	if got.JobID != jobID || got.Kind != artifact.KindScreenshot {
		t.Errorf("record = job %s kind %s", got.JobID, got.Kind)
	}

	data, err := blobs.Get(context.Background(), a.SHA256)
	if err != nil {
		t.Fatalf("blob Get: %v", err)
	}
	if string(data) != "fake-png-bytes" {
		t.Errorf("blob bytes = %q", data)
	}
}

func TestScreenshotFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	capture, st, _ := newCapture(t)
	d := drivertest.New()
	d.ScreenshotData = nil // driver refuses the capture
	jobID := id.NewJobID()

	if a := capture.Screenshot(context.Background(), d, jobID, artifact.KindScreenshot, "step_fail"); a != nil {
		t.Errorf("Screenshot = %+v, want nil on driver failure", a)
	}
	list, err := st.ListArtifactsByJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("ListArtifactsByJob: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("failed capture left %d records", len(list))
	}
}

func TestCaptureImageReportsOutcome(t *testing.T) {
	t.Parallel()

	capture, st, _ := newCapture(t)
	d := drivertest.New()
	d.ScreenshotData = []byte("captcha-image")
	jobID := id.NewJobID()

	artID, ok := capture.CaptureImage(context.Background(), d, jobID, "captcha_personal_1")
	if !ok || artID == id.Nil {
		t.Fatalf("CaptureImage = (%v, %v), want id and true", artID, ok)
	}
	got, err := st.GetArtifact(context.Background(), artID)
	if err != nil {
		t.Fatalf("GetArtifact: %v", err)
	}
	if got.Kind != artifact.KindChallengeImage {
		t.Errorf("Kind = %s, want %s", got.Kind, artifact.KindChallengeImage)
	}

	d.ScreenshotData = nil
	if _, ok := capture.CaptureImage(context.Background(), d, jobID, "captcha_personal_1"); ok {
		t.Error("CaptureImage reported success for failed capture")
	}
}

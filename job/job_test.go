package job_test

import (
	"errors"
	"testing"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/id"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
)

// ── Status machine ───────────────────────────────────

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from job.Status
		to   job.Status
		want bool
	}{
		{"queued to running", job.StatusQueued, job.StatusRunning, true},
		{"queued to failed", job.StatusQueued, job.StatusFailed, true},
		{"queued to cancelled", job.StatusQueued, job.StatusCancelled, true},
		{"queued skips to completed", job.StatusQueued, job.StatusCompleted, false},
		{"queued to waiting", job.StatusQueued, job.StatusWaitingForCaptcha, false},
		{"running suspends", job.StatusRunning, job.StatusWaitingForCaptcha, true},
		{"running completes", job.StatusRunning, job.StatusCompleted, true},
		{"waiting resumes", job.StatusWaitingForCaptcha, job.StatusRunning, true},
		{"waiting fails", job.StatusWaitingForCaptcha, job.StatusFailed, true},
		{"completed is terminal", job.StatusCompleted, job.StatusRunning, false},
		{"failed is terminal", job.StatusFailed, job.StatusQueued, false},
		{"cancelled is terminal", job.StatusCancelled, job.StatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := job.CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestStatusClasses(t *testing.T) {
	t.Parallel()

	for _, s := range []job.Status{job.StatusQueued, job.StatusRunning, job.StatusWaitingForCaptcha} {
		if !s.IsActive() || s.IsTerminal() {
			t.Errorf("%s: IsActive = %v, IsTerminal = %v, want active", s, s.IsActive(), s.IsTerminal())
		}
	}
	for _, s := range []job.Status{job.StatusCompleted, job.StatusFailed, job.StatusCancelled} {
		if s.IsActive() || !s.IsTerminal() {
			t.Errorf("%s: IsActive = %v, IsTerminal = %v, want terminal", s, s.IsActive(), s.IsTerminal())
		}
	}
}

func TestTransitionStampsTerminal(t *testing.T) {
	t.Parallel()

	j := &job.Job{ID: id.NewJobID(), Status: job.StatusRunning}
	if err := j.Transition(job.StatusCompleted); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if j.FinishedAt == nil {
		t.Error("FinishedAt not set on terminal transition")
	}

	if err := j.Transition(job.StatusRunning); !errors.Is(err, formauto.ErrInvalidTransition) {
		t.Errorf("Transition out of terminal = %v, want ErrInvalidTransition", err)
	}
}

func TestFail(t *testing.T) {
	t.Parallel()

	j := &job.Job{ID: id.NewJobID(), Status: job.StatusWaitingForCaptcha}
	if err := j.Fail(job.CodeCaptchaTimeout, "challenge expired"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if j.Status != job.StatusFailed || j.ErrorCode != job.CodeCaptchaTimeout {
		t.Errorf("got status %s code %q", j.Status, j.ErrorCode)
	}

	if err := j.Fail(job.CodeInternal, "again"); !errors.Is(err, formauto.ErrInvalidTransition) {
		t.Errorf("second Fail = %v, want ErrInvalidTransition", err)
	}
	if j.ErrorCode != job.CodeCaptchaTimeout {
		t.Errorf("ErrorCode overwritten to %q after rejected Fail", j.ErrorCode)
	}
}

func TestMergeMetadata(t *testing.T) {
	t.Parallel()

	j := &job.Job{ID: id.NewJobID(), Status: job.StatusRunning}
	j.MergeMetadata(map[string]string{"application_id": "AA001", "barcode": "b1"})
	j.MergeMetadata(map[string]string{"barcode": "b2"})
	j.MergeMetadata(nil)

	if j.Metadata["application_id"] != "AA001" {
		t.Errorf("application_id = %q, want AA001", j.Metadata["application_id"])
	}
	if j.Metadata["barcode"] != "b2" {
		t.Errorf("barcode = %q, want b2 (new value wins)", j.Metadata["barcode"])
	}
	if len(j.Metadata) != 2 {
		t.Errorf("len(Metadata) = %d, want 2", len(j.Metadata))
	}
}

// ── FieldMap ─────────────────────────────────────────

func TestFieldMap(t *testing.T) {
	t.Parallel()

	fm := job.FieldMap{
		"personal.surname":     "DOE",
		"personal.given_names": "",
		"travel.purpose":       "B1/B2",
	}

	if !fm.Has("personal.surname") {
		t.Error("Has(personal.surname) = false")
	}
	if fm.Has("personal.given_names") {
		t.Error("Has should treat empty value as absent")
	}
	if fm.Has("passport.number") {
		t.Error("Has(passport.number) = true for missing key")
	}

	section := fm.Section("personal")
	if len(section) != 1 || section["surname"] != "DOE" {
		t.Errorf("Section(personal) = %v, want only surname", section)
	}

	clone := fm.Clone()
	clone["travel.purpose"] = "F1"
	if fm.Get("travel.purpose") != "B1/B2" {
		t.Error("Clone shares storage with original")
	}
	if job.FieldMap(nil).Clone() != nil {
		t.Error("nil Clone should stay nil")
	}
}

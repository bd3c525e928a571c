package form_test

import (
	"strings"
	"testing"

	"github.com/Safi643133/ai-immigration-services-sub003/form"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
)

// ── Field ────────────────────────────────────────────

func TestFieldResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		field form.Field
		raw   string
		want  string
	}{
		{
			name:  "no table passes through",
			field: form.Field{Key: "a.b"},
			raw:   "INDIA",
			want:  "INDIA",
		},
		{
			name:  "mapped value",
			field: form.Field{Key: "a.b", Translate: map[string]string{"INDIA": "IND"}},
			raw:   "INDIA",
			want:  "IND",
		},
		{
			name:  "unmapped value passes through",
			field: form.Field{Key: "a.b", Translate: map[string]string{"INDIA": "IND"}},
			raw:   "ATLANTIS",
			want:  "ATLANTIS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.field.Resolve(tt.raw); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

// ── Trigger ──────────────────────────────────────────

func TestTriggerFires(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		trigger form.Trigger
		value   string
		want    bool
	}{
		{"matching value", form.Trigger{When: "Y"}, "Y", true},
		{"non-matching value", form.Trigger{When: "Y"}, "N", false},
		{"empty value never fires", form.Trigger{When: "Y"}, "", false},
		{"empty When fires on any non-empty", form.Trigger{}, "anything", true},
		{"empty When empty value", form.Trigger{}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.trigger.Fires(tt.value); got != tt.want {
				t.Errorf("Fires(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestTriggerAwaitTarget(t *testing.T) {
	t.Parallel()

	explicit := form.Trigger{Await: "el_confirm", Subfields: []form.Field{{Target: "el_first"}}}
	if got := explicit.AwaitTarget(); got != "el_confirm" {
		t.Errorf("AwaitTarget() = %q, want el_confirm", got)
	}

	implicit := form.Trigger{Subfields: []form.Field{{Target: "el_first"}}}
	if got := implicit.AwaitTarget(); got != "el_first" {
		t.Errorf("AwaitTarget() = %q, want el_first", got)
	}

	empty := form.Trigger{}
	if got := empty.AwaitTarget(); got != "" {
		t.Errorf("AwaitTarget() = %q, want empty", got)
	}
}

// ── Step warnings ────────────────────────────────────

func TestStepWarnings(t *testing.T) {
	t.Parallel()

	step := form.Step{
		Name: "PERSONAL_1",
		Fields: []form.Field{
			{Key: "personal.surname", Kind: form.KindText},
			{Key: "personal.full_name_native", Kind: form.KindText, Optional: true},
		},
	}

	t.Run("missing required field warns", func(t *testing.T) {
		t.Parallel()
		warnings := step.Warnings(job.FieldMap{})
		if len(warnings) != 1 {
			t.Fatalf("got %d warnings, want 1: %v", len(warnings), warnings)
		}
		if !strings.Contains(warnings[0], "personal.surname") {
			t.Errorf("warning %q does not name the missing key", warnings[0])
		}
	})

	t.Run("missing optional field is silent", func(t *testing.T) {
		t.Parallel()
		fm := job.FieldMap{"personal.surname": "SHARMA"}
		if warnings := step.Warnings(fm); len(warnings) != 0 {
			t.Errorf("got warnings %v, want none", warnings)
		}
	})

	t.Run("validate hook replaces default", func(t *testing.T) {
		t.Parallel()
		hooked := form.Step{
			Name:   "FAMILY_SPOUSE",
			Fields: []form.Field{{Key: "spouse.surname", Kind: form.KindText}},
			Hooks: form.Hooks{
				Validate: func(fm job.FieldMap) []string { return nil },
			},
		}
		if warnings := hooked.Warnings(job.FieldMap{}); warnings != nil {
			t.Errorf("got warnings %v, want nil from hook", warnings)
		}
	})
}

// ── Sequence ─────────────────────────────────────────

func TestSequencePercent(t *testing.T) {
	t.Parallel()

	seq := form.NewSequence(
		form.Step{Name: "A"},
		form.Step{Name: "B"},
		form.Step{Name: "C"},
		form.Step{Name: "D"},
	)

	tests := []struct {
		index int
		want  int
	}{
		{0, 25},
		{1, 50},
		{2, 75},
		{3, 100},
		{9, 100}, // past the end clamps
	}
	for _, tt := range tests {
		if got := seq.Percent(tt.index); got != tt.want {
			t.Errorf("Percent(%d) = %d, want %d", tt.index, got, tt.want)
		}
	}

	if got := form.NewSequence().Percent(0); got != 0 {
		t.Errorf("empty sequence Percent(0) = %d, want 0", got)
	}
}

func TestDefaultSequence(t *testing.T) {
	t.Parallel()

	seq := form.DefaultSequence()
	if seq.Len() != 17 {
		t.Fatalf("Len() = %d, want 17", seq.Len())
	}

	seen := make(map[string]bool)
	for _, s := range seq.Steps() {
		if s.Name == "" {
			t.Fatal("step with empty name")
		}
		if seen[s.Name] {
			t.Fatalf("duplicate step name %q", s.Name)
		}
		seen[s.Name] = true

		if s.Ready.Target == "" {
			t.Errorf("step %s: no readiness target", s.Name)
		}
		if s.Next == "" {
			t.Errorf("step %s: no next action", s.Name)
		}
		for _, f := range s.Fields {
			assertFieldWellFormed(t, s.Name, f)
			if f.Trigger != nil {
				if f.Trigger.AwaitTarget() == "" {
					t.Errorf("step %s field %s: trigger with no await target", s.Name, f.Key)
				}
				for _, sub := range f.Trigger.Subfields {
					assertFieldWellFormed(t, s.Name, sub)
				}
			}
		}
	}

	if !seen["PERSONAL_1"] || !seen["SECURITY_3"] || !seen["LOCATION"] {
		t.Error("expected well-known steps missing from sequence")
	}
	if last := seq.Step(seq.Len() - 1); last.Name != "LOCATION" {
		t.Errorf("last step = %s, want LOCATION", last.Name)
	}
}

func assertFieldWellFormed(t *testing.T, step string, f form.Field) {
	t.Helper()
	if f.Key == "" {
		t.Errorf("step %s: field with empty key", step)
		return
	}
	if !strings.Contains(f.Key, ".") {
		t.Errorf("step %s field %s: key is not dotted section.field form", step, f.Key)
	}
	if f.Kind == form.KindSplitDate {
		if f.DayTarget == "" || f.MonthTarget == "" || f.YearTarget == "" {
			t.Errorf("step %s field %s: split date missing sub-targets", step, f.Key)
		}
		return
	}
	if f.Target == "" {
		t.Errorf("step %s field %s: no target", step, f.Key)
	}
}

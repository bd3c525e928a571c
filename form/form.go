// Package form defines the declarative step descriptors the engine
// executes. A step describes one page of the remote form: its readiness
// signals, its field mappings, and the action that moves to the next
// page. Step definitions are static configuration; the engine never
// infers remote form behavior dynamically.
package form

import (
	"context"
	"fmt"

	"github.com/Safi643133/ai-immigration-services-sub003/driver"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
)

// FieldKind identifies how a field's value is applied to the remote form.
type FieldKind string

const (
	// KindText fills a text input.
	KindText FieldKind = "text"
	// KindSelect chooses an option in a select element.
	KindSelect FieldKind = "select"
	// KindRadio checks a radio button resolved from the value.
	KindRadio FieldKind = "radio"
	// KindCheckbox checks or unchecks a checkbox ("Y"/"N" semantics).
	KindCheckbox FieldKind = "checkbox"
	// KindSplitDate fills a date across day/month/year sub-targets.
	// Values are expected in ISO form (2006-01-02).
	KindSplitDate FieldKind = "split_date"
)

// Field maps one field-map entry onto a remote form element.
type Field struct {
	// Key is the dotted "section.field_name" path into the field map.
	Key string `json:"key"`

	// Target is the remote element identifier. For KindRadio the value
	// (after translation) is appended to select the concrete option.
	Target string `json:"target"`

	// Kind selects the fill strategy.
	Kind FieldKind `json:"kind"`

	// Translate maps field-map values onto remote option values.
	// A value missing from the table is applied verbatim.
	Translate map[string]string `json:"translate,omitempty"`

	// Optional fields do not produce completeness warnings when absent.
	Optional bool `json:"optional,omitempty"`

	// Day/Month/Year targets for KindSplitDate.
	DayTarget   string `json:"day_target,omitempty"`
	MonthTarget string `json:"month_target,omitempty"`
	YearTarget  string `json:"year_target,omitempty"`

	// Trigger, when set, declares that applying this field with a
	// matching value makes conditional sub-fields materialize.
	Trigger *Trigger `json:"trigger,omitempty"`
}

// Trigger declares conditional sub-fields revealed by a parent value.
type Trigger struct {
	// When is the field-map value (before translation) that reveals
	// the sub-fields. Empty means any non-empty value triggers.
	When string `json:"when,omitempty"`

	// Await is the element whose appearance confirms the sub-fields
	// have materialized. Defaults to the first sub-field's target.
	Await string `json:"await,omitempty"`

	// Subfields are filled after the trigger, in order.
	Subfields []Field `json:"subfields"`
}

// Fires reports whether the given raw field-map value reveals the
// sub-fields.
func (t *Trigger) Fires(value string) bool {
	if value == "" {
		return false
	}
	return t.When == "" || t.When == value
}

// AwaitTarget returns the element to wait on before filling sub-fields.
func (t *Trigger) AwaitTarget() string {
	if t.Await != "" {
		return t.Await
	}
	if len(t.Subfields) > 0 {
		return t.Subfields[0].Target
	}
	return ""
}

// Resolve translates a raw field-map value through the translation
// table. Values missing from the table pass through verbatim.
func (f *Field) Resolve(raw string) string {
	if f.Translate == nil {
		return raw
	}
	if mapped, ok := f.Translate[raw]; ok {
		return mapped
	}
	return raw
}

// Hooks are narrow per-step overrides. Most steps need none; the
// hook set exists so a step with one quirk does not need a bespoke
// implementation of the whole fill loop.
type Hooks struct {
	// PreStep runs after readiness and before any field is applied.
	PreStep func(ctx context.Context, d driver.Driver, fm job.FieldMap) error

	// PostField runs after each field application.
	PostField func(ctx context.Context, d driver.Driver, f Field, value string) error

	// Validate replaces the default completeness check. It returns
	// warnings only; local validation is never fatal.
	Validate func(fm job.FieldMap) []string
}

// Step describes one page of the remote form.
type Step struct {
	// Name is the stable step identifier used in progress updates and
	// error codes (upper-snake, e.g. "PERSONAL_1").
	Name string `json:"name"`

	// Title is the human-readable page title.
	Title string `json:"title"`

	// Ready is the primary readiness signal for the page.
	Ready driver.Condition `json:"ready"`

	// ReadyFallback is the looser secondary signal tried when the
	// primary signal times out. Zero value disables the second tier.
	ReadyFallback driver.Condition `json:"ready_fallback,omitzero"`

	// Fields are applied in order.
	Fields []Field `json:"fields"`

	// Next is the element that advances to the following page.
	Next string `json:"next"`

	// Hooks are optional per-step overrides.
	Hooks Hooks `json:"-"`
}

// Warnings runs the step's local completeness check: required fields
// absent from the field map. Warnings are logged by the engine, never
// fatal — the remote site's own validation is authoritative.
func (s *Step) Warnings(fm job.FieldMap) []string {
	if s.Hooks.Validate != nil {
		return s.Hooks.Validate(fm)
	}
	var warnings []string
	for _, f := range s.Fields {
		if f.Optional {
			continue
		}
		if !fm.Has(f.Key) {
			warnings = append(warnings, fmt.Sprintf("step %s: missing value for %q", s.Name, f.Key))
		}
	}
	return warnings
}

// Sequence is the ordered set of steps for one form flavor.
type Sequence struct {
	steps []Step
}

// NewSequence builds a sequence from ordered steps.
func NewSequence(steps ...Step) *Sequence {
	return &Sequence{steps: steps}
}

// Len returns the number of steps.
func (s *Sequence) Len() int { return len(s.steps) }

// Steps returns the ordered steps.
func (s *Sequence) Steps() []Step { return s.steps }

// Step returns the step at index i.
func (s *Sequence) Step(i int) Step { return s.steps[i] }

// Percent returns the completion percentage after finishing step i
// (0-indexed). The last step yields 100.
func (s *Sequence) Percent(i int) int {
	if len(s.steps) == 0 {
		return 0
	}
	if i >= len(s.steps)-1 {
		return 100
	}
	return (i + 1) * 100 / len(s.steps)
}

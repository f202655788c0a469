package wizard

import (
	"slices"
	"strings"

	"skillwizard/internal/types"
)

// Tracker holds the intake form position and the values typed so far.
// It is stored inside the session, so every field is exported for encoding.
type Tracker struct {
	Current int               `json:"current"`
	Values  map[string]string `json:"values"`
	Invalid []string          `json:"invalid,omitempty"`
}

// NewTracker returns a tracker positioned on the first step
func NewTracker() *Tracker {
	return &Tracker{Values: make(map[string]string)}
}

// Total is the number of intake steps
func (t *Tracker) Total() int {
	return len(Steps)
}

// IsLast reports whether the tracker is on the final step
func (t *Tracker) IsLast() bool {
	return t.Current == t.Total()-1
}

// Merge records posted values for known fields. Values for fields that were
// not posted are kept, so moving between steps never loses input.
func (t *Tracker) Merge(values map[string]string) {
	if t.Values == nil {
		t.Values = make(map[string]string)
	}
	for _, name := range FieldNames() {
		if v, ok := values[name]; ok {
			t.Values[name] = v
		}
	}
}

// Validate checks a single step against the current values
func (t *Tracker) Validate(step int) *ValidationError {
	if step < 0 || step >= t.Total() {
		return &ValidationError{Step: step, Message: MsgMissingRequired}
	}
	return validateStep(step, t.Values)
}

// ValidateAll returns the first failing step, if any
func (t *Tracker) ValidateAll() *ValidationError {
	for step := range t.Total() {
		if verr := t.Validate(step); verr != nil {
			return verr
		}
	}
	return nil
}

// Advance merges values, validates the current step and moves forward when
// it passes. On failure Current is unchanged and the offending fields are
// marked invalid.
func (t *Tracker) Advance(values map[string]string) error {
	t.Merge(values)
	if verr := t.Validate(t.Current); verr != nil {
		t.Invalid = verr.Fields
		return verr
	}
	t.Invalid = nil
	if !t.IsLast() {
		t.Current++
	}
	return nil
}

// Retreat moves back one step without validation
func (t *Tracker) Retreat(values map[string]string) bool {
	t.Merge(values)
	t.Invalid = nil
	if t.Current == 0 {
		return false
	}
	t.Current--
	return true
}

// Show jumps to step, keeping the entered values. Used when a submission
// finds an earlier step invalid.
func (t *Tracker) Show(step int, invalid []string) {
	if step < 0 || step >= t.Total() {
		return
	}
	t.Current = step
	t.Invalid = invalid
}

// Reset returns to the first step with an empty form
func (t *Tracker) Reset() {
	t.Current = 0
	t.Values = make(map[string]string)
	t.Invalid = nil
}

// Progress is the completion percentage: 0 on the first step, 100 on the last
func (t *Tracker) Progress() float64 {
	if t.Total() < 2 {
		return 100
	}
	return float64(t.Current) / float64(t.Total()-1) * 100
}

// Dots reports, per step, whether its indicator is active
func (t *Tracker) Dots() []bool {
	dots := make([]bool, t.Total())
	for i := range dots {
		dots[i] = i <= t.Current
	}
	return dots
}

// Value returns the entered value for a field
func (t *Tracker) Value(name string) string {
	return t.Values[name]
}

// IsInvalid reports whether a field failed the last validation
func (t *Tracker) IsInvalid(name string) bool {
	return slices.Contains(t.Invalid, name)
}

// Profile builds the resume profile from the entered values. Callers are
// expected to have validated every step first.
func (t *Tracker) Profile() types.ResumeProfile {
	years, _ := ParseYears(t.Values[FieldExperienceYears])
	return types.ResumeProfile{
		Name:            strings.TrimSpace(t.Values[FieldName]),
		Email:           strings.TrimSpace(t.Values[FieldEmail]),
		ExperienceYears: years,
		Experience:      strings.TrimSpace(t.Values[FieldExperience]),
		Education:       strings.TrimSpace(t.Values[FieldEducation]),
		Skills:          ParseSkills(t.Values[FieldSkills]),
	}
}

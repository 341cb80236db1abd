// Package surveyform implements the callback survey form: its field state, the
// Editing/Submitted lifecycle and the single outbound submission.
package surveyform

import (
	"errors"
	"fmt"
)

// Field names one of the fixed survey inputs
type Field string

const (
	FieldName        Field = "name"
	FieldPhone       Field = "phone"
	FieldCallTime    Field = "call_time"
	FieldMaxAttempts Field = "max_attempts"
	FieldNotes       Field = "notes"
)

// Fields lists every survey field in display order
var Fields = []Field{FieldName, FieldPhone, FieldCallTime, FieldMaxAttempts, FieldNotes}

var (
	ErrUnknownField     = errors.New("unknown survey field")
	ErrSubmitInFlight   = errors.New("a submission for this form is already in flight")
	ErrAlreadySubmitted = errors.New("form has already been submitted")
)

// ParseField maps a wire name onto a Field
func ParseField(name string) (Field, error) {
	for _, f := range Fields {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// FormState holds the current value of every survey field. The key set is fixed
// by the struct; values are free-form text. Field order in the JSON encoding is
// the order the backend and the original form use.
type FormState struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	CallTime    string `json:"call_time"`
	MaxAttempts string `json:"max_attempts"`
	Notes       string `json:"notes"`
}

// Get returns the value of a field
func (s FormState) Get(f Field) string {
	switch f {
	case FieldName:
		return s.Name
	case FieldPhone:
		return s.Phone
	case FieldCallTime:
		return s.CallTime
	case FieldMaxAttempts:
		return s.MaxAttempts
	case FieldNotes:
		return s.Notes
	}
	return ""
}

// With returns a copy of s with one field replaced
func (s FormState) With(f Field, value string) (FormState, error) {
	switch f {
	case FieldName:
		s.Name = value
	case FieldPhone:
		s.Phone = value
	case FieldCallTime:
		s.CallTime = value
	case FieldMaxAttempts:
		s.MaxAttempts = value
	case FieldNotes:
		s.Notes = value
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownField, string(f))
	}
	return s, nil
}

// Phase is the lifecycle position of a form
type Phase int

const (
	PhaseEditing Phase = iota
	PhaseSubmitted
)

func (p Phase) String() string {
	switch p {
	case PhaseEditing:
		return "editing"
	case PhaseSubmitted:
		return "submitted"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Rejection records that the backend answered the last submission with a non-2xx status
type Rejection struct {
	StatusCode int
}

// State is the complete, immutable-per-update value of a form.
//
// Generation counts dispatched submissions. InFlight is the generation of the
// outstanding submission, or zero when none is pending.
type State struct {
	Phase      Phase
	Form       FormState
	Generation uint64
	InFlight   uint64
	Rejection  *Rejection
}

// Submitting reports whether a submission is outstanding
func (s State) Submitting() bool {
	return s.InFlight != 0
}

// Submitted reports whether the form reached its terminal phase
func (s State) Submitted() bool {
	return s.Phase == PhaseSubmitted
}

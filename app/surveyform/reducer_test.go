package surveyform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduceFieldChanged(t *testing.T) {
	t.Run("replaces only the named field", func(t *testing.T) {
		s := Reduce(State{}, FieldChanged{Field: FieldName, Value: "Alice"})
		s = Reduce(s, FieldChanged{Field: FieldPhone, Value: "555"})

		assert.Equal(t, FormState{Name: "Alice", Phone: "555"}, s.Form)
		assert.Equal(t, PhaseEditing, s.Phase)
	})

	t.Run("last write wins", func(t *testing.T) {
		s := Reduce(State{}, FieldChanged{Field: FieldNotes, Value: "first"})
		s = Reduce(s, FieldChanged{Field: FieldNotes, Value: "second"})

		assert.Equal(t, "second", s.Form.Notes)
	})

	t.Run("accepts arbitrary text", func(t *testing.T) {
		s := Reduce(State{}, FieldChanged{Field: FieldMaxAttempts, Value: "abc"})
		assert.Equal(t, "abc", s.Form.MaxAttempts)

		s = Reduce(s, FieldChanged{Field: FieldMaxAttempts, Value: ""})
		assert.Equal(t, "", s.Form.MaxAttempts)
	})

	t.Run("unknown field is ignored", func(t *testing.T) {
		before := State{Form: FormState{Name: "Bob"}}
		after := Reduce(before, FieldChanged{Field: Field("email"), Value: "x"})
		assert.Equal(t, before, after)
	})

	t.Run("does not mutate the input", func(t *testing.T) {
		before := State{Form: FormState{Name: "Bob"}}
		_ = Reduce(before, FieldChanged{Field: FieldName, Value: "Carol"})
		assert.Equal(t, "Bob", before.Form.Name)
	})
}

func TestReduceSubmissionLifecycle(t *testing.T) {
	filled := State{Form: FormState{Name: "Alice", Phone: "555", CallTime: "morning", MaxAttempts: "3", Notes: "n/a"}}

	tests := []struct {
		name          string
		completion    Event
		wantPhase     Phase
		wantRejection *Rejection
	}{
		{
			name:       "accepted moves to submitted",
			completion: SubmitAccepted{Generation: 1},
			wantPhase:  PhaseSubmitted,
		},
		{
			name:          "rejected stays editing with notice",
			completion:    SubmitRejected{Generation: 1, StatusCode: 500},
			wantPhase:     PhaseEditing,
			wantRejection: &Rejection{StatusCode: 500},
		},
		{
			name:       "network failure stays editing",
			completion: SubmitFailed{Generation: 1, Err: errors.New("connection refused")},
			wantPhase:  PhaseEditing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Reduce(filled, SubmitStarted{Generation: 1})
			require.True(t, s.Submitting())

			s = Reduce(s, tt.completion)

			assert.Equal(t, tt.wantPhase, s.Phase)
			assert.False(t, s.Submitting())
			assert.Equal(t, tt.wantRejection, s.Rejection)
			assert.Equal(t, filled.Form, s.Form)
		})
	}
}

func TestReduceInFlightGuard(t *testing.T) {
	t.Run("second start while in flight is ignored", func(t *testing.T) {
		s := Reduce(State{}, SubmitStarted{Generation: 1})
		again := Reduce(s, SubmitStarted{Generation: 2})

		assert.Equal(t, s, again)
		assert.Equal(t, uint64(1), again.InFlight)
	})

	t.Run("stale generation is not restarted", func(t *testing.T) {
		s := Reduce(State{}, SubmitStarted{Generation: 1})
		s = Reduce(s, SubmitFailed{Generation: 1})

		assert.Equal(t, s, Reduce(s, SubmitStarted{Generation: 1}))
	})

	t.Run("late completion of superseded request is dropped", func(t *testing.T) {
		s := Reduce(State{}, SubmitStarted{Generation: 1})
		s = Reduce(s, SubmitFailed{Generation: 1})
		s = Reduce(s, SubmitStarted{Generation: 2})

		s = Reduce(s, SubmitAccepted{Generation: 1})
		assert.Equal(t, PhaseEditing, s.Phase)
		assert.True(t, s.Submitting())

		s = Reduce(s, SubmitAccepted{Generation: 2})
		assert.Equal(t, PhaseSubmitted, s.Phase)
	})

	t.Run("completion without a start is dropped", func(t *testing.T) {
		assert.Equal(t, State{}, Reduce(State{}, SubmitAccepted{Generation: 0}))
		assert.Equal(t, State{}, Reduce(State{}, SubmitRejected{Generation: 1, StatusCode: 400}))
	})

	t.Run("new start clears rejection", func(t *testing.T) {
		s := Reduce(State{}, SubmitStarted{Generation: 1})
		s = Reduce(s, SubmitRejected{Generation: 1, StatusCode: 503})
		require.NotNil(t, s.Rejection)

		s = Reduce(s, SubmitStarted{Generation: 2})
		assert.Nil(t, s.Rejection)
	})

	t.Run("edits are allowed while in flight", func(t *testing.T) {
		s := Reduce(State{}, SubmitStarted{Generation: 1})
		s = Reduce(s, FieldChanged{Field: FieldNotes, Value: "typed later"})

		assert.Equal(t, "typed later", s.Form.Notes)
		assert.True(t, s.Submitting())
	})
}

func TestReduceSubmittedIsTerminal(t *testing.T) {
	s := Reduce(State{}, SubmitStarted{Generation: 1})
	s = Reduce(s, SubmitAccepted{Generation: 1})
	require.True(t, s.Submitted())

	events := []Event{
		FieldChanged{Field: FieldName, Value: "changed"},
		SubmitStarted{Generation: 2},
		SubmitAccepted{Generation: 2},
		SubmitRejected{Generation: 2, StatusCode: 500},
		SubmitFailed{Generation: 2},
	}
	for _, ev := range events {
		assert.Equal(t, s, Reduce(s, ev))
	}
}

func TestParseField(t *testing.T) {
	for _, f := range Fields {
		got, err := ParseField(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	_, err := ParseField("email")
	assert.ErrorIs(t, err, ErrUnknownField)
}

package surveyform

// Event is an input to Reduce
type Event interface {
	event()
}

// FieldChanged replaces a single field value
type FieldChanged struct {
	Field Field
	Value string
}

// SubmitStarted marks dispatch of submission number Generation
type SubmitStarted struct {
	Generation uint64
}

// SubmitAccepted reports a 2xx answer for submission Generation
type SubmitAccepted struct {
	Generation uint64
}

// SubmitRejected reports a completed submission with a non-2xx status
type SubmitRejected struct {
	Generation uint64
	StatusCode int
}

// SubmitFailed reports a submission that could not complete
type SubmitFailed struct {
	Generation uint64
	Err        error
}

func (FieldChanged) event()   {}
func (SubmitStarted) event()  {}
func (SubmitAccepted) event() {}
func (SubmitRejected) event() {}
func (SubmitFailed) event()   {}

// Reduce is the form's transition function. It never mutates s; events that do
// not apply in the current state return s unchanged.
//
// Submitted is terminal. A new submission may only start when none is in
// flight, and a completion is applied only when its generation matches the
// in-flight one, so late answers to superseded requests are dropped.
func Reduce(s State, ev Event) State {
	if s.Phase == PhaseSubmitted {
		return s
	}

	switch e := ev.(type) {
	case FieldChanged:
		form, err := s.Form.With(e.Field, e.Value)
		if err != nil {
			return s
		}
		s.Form = form
		return s

	case SubmitStarted:
		if s.InFlight != 0 || e.Generation <= s.Generation {
			return s
		}
		s.Generation = e.Generation
		s.InFlight = e.Generation
		s.Rejection = nil
		return s

	case SubmitAccepted:
		if !s.awaiting(e.Generation) {
			return s
		}
		s.InFlight = 0
		s.Phase = PhaseSubmitted
		return s

	case SubmitRejected:
		if !s.awaiting(e.Generation) {
			return s
		}
		s.InFlight = 0
		s.Rejection = &Rejection{StatusCode: e.StatusCode}
		return s

	case SubmitFailed:
		if !s.awaiting(e.Generation) {
			return s
		}
		s.InFlight = 0
		return s
	}

	return s
}

func (s State) awaiting(generation uint64) bool {
	return s.InFlight != 0 && s.InFlight == generation
}

package surveyform

import (
	"context"
	"sync"

	"github.com/amirphl/callback-survey/app/logger"
	"github.com/sirupsen/logrus"
)

// AlertMessage is shown when a submission cannot reach the backend
const AlertMessage = "Error submitting form"

// Alerter presents a blocking notification to the user
type Alerter interface {
	Alert(message string)
}

// AlerterFunc adapts a function to Alerter
type AlerterFunc func(message string)

func (f AlerterFunc) Alert(message string) { f(message) }

// Form is a live survey form. All methods are safe for concurrent use; the
// network call runs outside the lock so edits are never blocked by a submission.
type Form struct {
	id        string
	submitter Submitter
	alerter   Alerter
	log       logrus.FieldLogger

	mu    sync.Mutex
	state State
}

// Option configures a Form
type Option func(*Form)

// WithLogger sets the logger used for submission outcomes
func WithLogger(l logrus.FieldLogger) Option {
	return func(f *Form) {
		f.log = l
	}
}

// New creates a form in the Editing phase with every field empty
func New(id string, submitter Submitter, alerter Alerter, opts ...Option) *Form {
	f := &Form{
		id:        id,
		submitter: submitter,
		alerter:   alerter,
		log:       logger.Log,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.alerter == nil {
		f.alerter = AlerterFunc(func(string) {})
	}
	return f
}

// ID returns the form identifier sent as the idempotency key
func (f *Form) ID() string {
	return f.id
}

// State returns a snapshot of the current state
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// UpdateField replaces one field value. Any string is accepted; edits after
// the form was submitted are ignored.
func (f *Form) UpdateField(field Field, value string) error {
	if _, err := ParseField(string(field)); err != nil {
		return err
	}
	f.dispatch(FieldChanged{Field: field, Value: value})
	return nil
}

// Submit posts the current field values. It returns ErrSubmitInFlight without
// sending anything while an earlier submission is outstanding, and
// ErrAlreadySubmitted once the form is terminal. A network failure raises
// exactly one alert and leaves the field values untouched.
func (f *Form) Submit(ctx context.Context) (SubmissionResult, error) {
	f.mu.Lock()
	switch {
	case f.state.Submitted():
		f.mu.Unlock()
		return SubmissionResult{}, ErrAlreadySubmitted
	case f.state.Submitting():
		f.mu.Unlock()
		return SubmissionResult{}, ErrSubmitInFlight
	}
	generation := f.state.Generation + 1
	f.state = Reduce(f.state, SubmitStarted{Generation: generation})
	form := f.state.Form
	f.mu.Unlock()

	result := f.submitter.Submit(ctx, f.id, form)
	f.dispatch(result.event(generation))

	entry := f.log.WithFields(logrus.Fields{
		"form_id":    f.id,
		"generation": generation,
		"outcome":    result.Outcome.String(),
	})
	switch result.Outcome {
	case OutcomeAccepted:
		entry.WithField("status", result.StatusCode).Info("Survey submission accepted")
	case OutcomeRejected:
		entry.WithField("status", result.StatusCode).Warn("Survey submission rejected by backend")
	default:
		entry.WithError(result.Err).Error("Survey submission failed")
		f.alerter.Alert(AlertMessage)
	}

	return result, nil
}

func (f *Form) dispatch(ev Event) {
	f.mu.Lock()
	f.state = Reduce(f.state, ev)
	f.mu.Unlock()
}

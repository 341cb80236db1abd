package surveyform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestRegistry(sub Submitter, ttl time.Duration, capacity int) (*Registry, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := NewRegistry(sub, ttl, capacity, WithLogger(quietLogger()))
	r.now = clock.Now
	return r, clock
}

func TestRegistryOpen(t *testing.T) {
	sub := &recordingSubmitter{result: SubmissionResult{Outcome: OutcomeAccepted}}

	t.Run("same id returns same session", func(t *testing.T) {
		r, _ := newTestRegistry(sub, time.Minute, 10)
		id := NewID()

		a := r.Open(id)
		b := r.Open(id)
		assert.Same(t, a, b)
		assert.Equal(t, id, a.Form.ID())
		assert.Equal(t, 1, r.Len())
	})

	t.Run("invalid id is replaced", func(t *testing.T) {
		r, _ := newTestRegistry(sub, time.Minute, 10)

		s := r.Open("not-a-uuid")
		assert.NotEqual(t, "not-a-uuid", s.Form.ID())
		assert.Len(t, s.Form.ID(), 36)
	})

	t.Run("expired session is replaced", func(t *testing.T) {
		r, clock := newTestRegistry(sub, time.Minute, 10)
		id := NewID()

		a := r.Open(id)
		require.NoError(t, a.Form.UpdateField(FieldName, "Alice"))
		clock.Advance(2 * time.Minute)

		b := r.Open(id)
		assert.NotSame(t, a, b)
		assert.Equal(t, "", b.Form.State().Form.Name)
	})

	t.Run("capacity evicts oldest", func(t *testing.T) {
		r, clock := newTestRegistry(sub, time.Hour, 2)
		firstID := NewID()
		first := r.Open(firstID)
		clock.Advance(time.Second)
		secondID := NewID()
		second := r.Open(secondID)
		clock.Advance(time.Second)

		r.Open(NewID())
		assert.Equal(t, 2, r.Len())
		assert.Same(t, second, r.Open(secondID))
		assert.NotSame(t, first, r.Open(firstID))
	})
}

func TestRegistryAlertsAreCaptured(t *testing.T) {
	sub := &recordingSubmitter{result: SubmissionResult{Outcome: OutcomeNetworkFailure}}
	r, _ := newTestRegistry(sub, time.Minute, 10)

	s := r.Open(NewID())
	_, err := s.Form.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{AlertMessage}, s.Alerts.Drain())
	assert.Empty(t, s.Alerts.Drain())
}

func TestRegistrySweep(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	blocking := SubmitterFunc(func(ctx context.Context, formID string, form FormState) SubmissionResult {
		close(started)
		<-release
		return SubmissionResult{Outcome: OutcomeAccepted}
	})

	r, clock := newTestRegistry(blocking, time.Minute, 10)
	r.Open(NewID())
	busy := r.Open(NewID())

	done := make(chan struct{})
	go func() {
		_, _ = busy.Form.Submit(context.Background())
		close(done)
	}()
	<-started

	clock.Advance(5 * time.Minute)
	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 1, r.Len())

	close(release)
	<-done
	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 0, r.Len())
}

// Package scheduler runs the periodic background jobs of the survey service
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/callback-survey/app/logger"
	"github.com/amirphl/callback-survey/utils"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const digestTimeout = 2 * time.Minute

// SubmissionCounter counts stored submissions created at or after since
type SubmissionCounter interface {
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

// DigestSender is the part of the notification service the digest needs
type DigestSender interface {
	SendDigest(ctx context.Context, recipient string, count int64, from, to time.Time) error
}

// DigestScheduler mails a summary of recent submissions on a cron schedule
type DigestScheduler struct {
	cronEngine *cron.Cron
	counter    SubmissionCounter
	sender     DigestSender
	spec       string
	recipient  string
	window     time.Duration
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewDigestScheduler(counter SubmissionCounter, sender DigestSender, spec, recipient string, window time.Duration) *DigestScheduler {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &DigestScheduler{
		cronEngine: cron.New(cron.WithLocation(time.UTC)),
		counter:    counter,
		sender:     sender,
		spec:       spec,
		recipient:  recipient,
		window:     window,
		log:        logger.Log.WithField("component", "digest_scheduler"),
		now:        utils.UTCNow,
	}
}

// Start registers the digest job and starts the cron engine. The returned
// function stops the engine and waits for a running digest to finish.
func (s *DigestScheduler) Start() (func(), error) {
	if s.spec == "" {
		return nil, errors.New("digest cron spec is empty")
	}
	if s.recipient == "" {
		return nil, errors.New("digest recipient is empty")
	}

	if _, err := s.cronEngine.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), digestTimeout)
		defer cancel()
		if err := s.RunOnce(ctx); err != nil {
			s.log.WithError(err).Error("Digest run failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid digest cron spec %q: %w", s.spec, err)
	}

	s.cronEngine.Start()
	s.log.WithFields(logrus.Fields{"spec": s.spec, "window": s.window.String()}).Info("Digest scheduler started")

	return func() {
		<-s.cronEngine.Stop().Done()
		s.log.Info("Digest scheduler stopped")
	}, nil
}

// RunOnce counts the submissions of the last window and mails the total
func (s *DigestScheduler) RunOnce(ctx context.Context) error {
	to := s.now()
	from := to.Add(-s.window)

	count, err := s.counter.CountSince(ctx, from)
	if err != nil {
		return fmt.Errorf("failed to count submissions: %w", err)
	}

	if err := s.sender.SendDigest(ctx, s.recipient, count, from, to); err != nil {
		return fmt.Errorf("failed to send digest: %w", err)
	}

	s.log.WithField("count", count).Info("Digest sent")
	return nil
}

package testing

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/amirphl/callback-survey/models"
	"github.com/amirphl/callback-survey/utils"
	"github.com/google/uuid"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// SubmissionOption tweaks a fixture submission before it is stored
type SubmissionOption func(*models.SurveySubmission)

// WithIdempotencyKey stores the submission under key
func WithIdempotencyKey(key string) SubmissionOption {
	return func(s *models.SurveySubmission) { s.IdempotencyKey = &key }
}

// WithCreatedAt backdates the submission
func WithCreatedAt(at time.Time) SubmissionOption {
	return func(s *models.SurveySubmission) {
		s.CreatedAt = at
		s.UpdatedAt = at
	}
}

// CreateTestSubmission stores a submission with plausible random answers
func (tf *TestFixtures) CreateTestSubmission(opts ...SubmissionOption) (*models.SurveySubmission, error) {
	digits := fmt.Sprintf("%07d", rand.Intn(9000000)+1000000)
	submission := &models.SurveySubmission{
		Name:        "Jane Doe",
		Phone:       "+1 555 " + digits,
		CallTime:    "weekdays after 5pm",
		MaxAttempts: "3",
		Notes:       "",
		IPAddress:   utils.ToPtr("127.0.0.1"),
	}
	for _, opt := range opts {
		opt(submission)
	}

	if err := tf.DB.DB.Create(submission).Error; err != nil {
		return nil, fmt.Errorf("failed to create test submission: %w", err)
	}
	return submission, nil
}

// CreateTestAuditLog stores an audit entry for actor
func (tf *TestFixtures) CreateTestAuditLog(actor, action string, success bool) (*models.AuditLog, error) {
	metadata, err := json.Marshal(map[string]string{"fixture": "true"})
	if err != nil {
		return nil, err
	}
	entry := &models.AuditLog{
		Actor:     &actor,
		Action:    action,
		IPAddress: utils.ToPtr("127.0.0.1"),
		RequestID: utils.ToPtr(uuid.NewString()),
		Metadata:  metadata,
		Success:   &success,
	}
	if !success {
		entry.ErrorMessage = utils.ToPtr("invalid credentials")
	}

	if err := tf.DB.DB.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create test audit log: %w", err)
	}
	return entry, nil
}

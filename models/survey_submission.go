// Package models contains the persisted entities of the survey service
package models

import (
	"time"

	"github.com/amirphl/callback-survey/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SurveySubmission is one accepted callback survey.
// Table: survey_submissions
// Indices: uuid, idempotency_key (unique, nullable), created_at
// Answers are stored verbatim; the form never validates them
type SurveySubmission struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID           uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`
	Name           string    `gorm:"type:varchar(255);not null;default:''" json:"name"`
	Phone          string    `gorm:"type:varchar(255);not null;default:''" json:"phone"`
	CallTime       string    `gorm:"type:varchar(255);not null;default:''" json:"call_time"`
	MaxAttempts    string    `gorm:"type:varchar(255);not null;default:''" json:"max_attempts"`
	Notes          string    `gorm:"type:text;not null;default:''" json:"notes"`
	IdempotencyKey *string   `gorm:"type:varchar(255);uniqueIndex" json:"idempotency_key,omitempty"`
	IPAddress      *string   `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	UserAgent      *string   `gorm:"type:text" json:"user_agent,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (SurveySubmission) TableName() string { return "survey_submissions" }

// BeforeCreate ensures UUID and timestamps are set
func (s *SurveySubmission) BeforeCreate(tx *gorm.DB) error {
	if s.UUID == uuid.Nil {
		s.UUID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = utils.UTCNow()
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = s.CreatedAt
	}
	return nil
}

// SurveySubmissionFilter represents filter criteria for submission queries
type SurveySubmissionFilter struct {
	ID             *uint      `json:"id,omitempty"`
	UUID           *uuid.UUID `json:"uuid,omitempty"`
	Name           *string    `json:"name,omitempty"`
	Phone          *string    `json:"phone,omitempty"`
	IdempotencyKey *string    `json:"idempotency_key,omitempty"`
	CreatedAfter   *time.Time `json:"created_after,omitempty"`
	CreatedBefore  *time.Time `json:"created_before,omitempty"`
}

package models

import (
	"encoding/json"
	"time"
)

// AuditLog records security relevant admin activity
type AuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Actor        *string         `gorm:"size:255;index:idx_audit_actor" json:"actor,omitempty"`
	Action       string          `gorm:"size:64;not null;index:idx_audit_action" json:"action"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string         `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent    *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string         `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

const (
	AuditActionAdminLoginSuccess   = "admin_login_success"
	AuditActionAdminLoginFailed    = "admin_login_failed"
	AuditActionSubmissionsListed   = "submissions_listed"
	AuditActionSubmissionsExported = "submissions_exported"
	AuditActionSubmissionViewed    = "submission_viewed"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	Actor         *string
	Action        *string
	Success       *bool
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}

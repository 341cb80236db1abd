package businessflow

import (
	"context"
	"time"

	"github.com/amirphl/callback-survey/app/dto"
	"github.com/amirphl/callback-survey/models"
	"github.com/amirphl/callback-survey/utils"
)

// ClientMetadata holds client information recorded with submissions and audit entries
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// clientMetadataFromContext rebuilds the caller's metadata from a request context
func clientMetadataFromContext(ctx context.Context) *ClientMetadata {
	ip, _ := ctx.Value(utils.IPAddressKey).(string)
	ua, _ := ctx.Value(utils.UserAgentKey).(string)
	md := NewClientMetadata(ip, ua)
	if id, ok := ctx.Value(utils.RequestIDKey).(string); ok {
		md.SetRequestID(id)
	}
	return md
}

func adminFromContext(ctx context.Context) string {
	admin, _ := ctx.Value(utils.AdminKey).(string)
	return admin
}

// ToSurveySubmissionItem converts a stored submission into its listing shape
func ToSurveySubmissionItem(s models.SurveySubmission) dto.SurveySubmissionItem {
	return dto.SurveySubmissionItem{
		ID:          s.ID,
		UUID:        s.UUID.String(),
		Name:        s.Name,
		Phone:       s.Phone,
		CallTime:    s.CallTime,
		MaxAttempts: s.MaxAttempts,
		Notes:       s.Notes,
		CreatedAt:   s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

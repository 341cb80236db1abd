package businessflow

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"time"

	"github.com/amirphl/callback-survey/app/dto"
	"github.com/amirphl/callback-survey/app/logger"
	"github.com/amirphl/callback-survey/app/services"
	"github.com/amirphl/callback-survey/models"
	"github.com/amirphl/callback-survey/repository"
	"github.com/amirphl/callback-survey/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuthFlow verifies operator credentials and issues access tokens
type AdminAuthFlow interface {
	Login(ctx context.Context, req *dto.AdminLoginRequest, metadata *ClientMetadata) (*dto.AdminLoginResponse, error)
}

// AdminCredentials is the single configured operator account
type AdminCredentials struct {
	Username     string
	PasswordHash string // bcrypt
}

// AdminAuthFlowImpl implements AdminAuthFlow
type AdminAuthFlowImpl struct {
	creds        AdminCredentials
	tokenService services.TokenService
	auditRepo    repository.AuditLogRepository
	log          logrus.FieldLogger
}

func NewAdminAuthFlow(creds AdminCredentials, tokenService services.TokenService, auditRepo repository.AuditLogRepository) AdminAuthFlow {
	return &AdminAuthFlowImpl{
		creds:        creds,
		tokenService: tokenService,
		auditRepo:    auditRepo,
		log:          logger.Log.WithField("component", "admin_auth_flow"),
	}
}

func (af *AdminAuthFlowImpl) Login(ctx context.Context, req *dto.AdminLoginRequest, metadata *ClientMetadata) (*dto.AdminLoginResponse, error) {
	if req == nil || req.Username == "" || req.Password == "" {
		return nil, NewBusinessError("ADMIN_LOGIN_VALIDATION_FAILED", "Admin login validation failed", ErrInvalidCredentials)
	}
	if af.creds.Username == "" || af.creds.PasswordHash == "" {
		return nil, NewBusinessError("ADMIN_NOT_CONFIGURED", "Admin account is not configured", ErrAdminNotConfigured)
	}

	// Always run bcrypt so a wrong username costs the same as a wrong password
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(af.creds.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(af.creds.PasswordHash), []byte(req.Password))
	if !userOK || passErr != nil {
		af.audit(ctx, req.Username, models.AuditActionAdminLoginFailed, false, "invalid credentials", metadata)
		return nil, NewBusinessError("ADMIN_INVALID_CREDENTIALS", "Invalid username or password", ErrInvalidCredentials)
	}

	token, expiresAt, err := af.tokenService.GenerateAdminToken(af.creds.Username)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate token", err)
	}

	af.audit(ctx, af.creds.Username, models.AuditActionAdminLoginSuccess, true, "", metadata)

	return &dto.AdminLoginResponse{
		Username: af.creds.Username,
		Session: dto.AdminSessionDTO{
			AccessToken: token,
			ExpiresIn:   int(time.Until(expiresAt).Seconds()),
			TokenType:   "Bearer",
			ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
		},
	}, nil
}

func (af *AdminAuthFlowImpl) audit(ctx context.Context, actor, action string, success bool, errMsg string, metadata *ClientMetadata) {
	recordAudit(ctx, af.auditRepo, af.log, actor, action, success, errMsg, metadata, nil)
}

// recordAudit writes an audit entry; failures are logged and never fail the caller
func recordAudit(ctx context.Context, repo repository.AuditLogRepository, log logrus.FieldLogger, actor, action string, success bool, errMsg string, metadata *ClientMetadata, extra map[string]any) {
	if repo == nil {
		return
	}
	entry := &models.AuditLog{
		Actor:        optionalString(utils.Truncate(actor, 255)),
		Action:       action,
		Success:      utils.ToPtr(success),
		ErrorMessage: optionalString(errMsg),
	}
	if metadata != nil {
		entry.IPAddress = optionalString(metadata.IPAddress)
		entry.UserAgent = optionalString(metadata.UserAgent)
		entry.RequestID = optionalString(metadata.RequestID)
	}
	if len(extra) > 0 {
		if raw, err := json.Marshal(extra); err == nil {
			entry.Metadata = raw
		}
	}
	if err := repo.Save(ctx, entry); err != nil {
		log.WithError(err).WithField("action", action).Warn("Failed to write audit log")
	}
}

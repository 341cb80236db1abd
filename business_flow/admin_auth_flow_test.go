package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/callback-survey/app/dto"
	"github.com/amirphl/callback-survey/app/services"
	"github.com/amirphl/callback-survey/models"
	"github.com/amirphl/callback-survey/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func emptyFilter() models.SurveySubmissionFilter { return models.SurveySubmissionFilter{} }

func newTestAdminFlow(t *testing.T, creds AdminCredentials) (AdminAuthFlow, services.TokenService, *memoryAuditRepo) {
	t.Helper()
	tokens, err := services.NewTokenService(time.Hour, "survey", "survey-admin", "test-secret-key-for-jwt-signing")
	require.NoError(t, err)
	audit := &memoryAuditRepo{}
	return NewAdminAuthFlow(creds, tokens, audit), tokens, audit
}

func TestAdminLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	creds := AdminCredentials{Username: "operator", PasswordHash: string(hash)}
	meta := NewClientMetadata("127.0.0.1", "test")

	t.Run("valid credentials issue a token", func(t *testing.T) {
		flow, tokens, audit := newTestAdminFlow(t, creds)

		resp, err := flow.Login(context.Background(), &dto.AdminLoginRequest{Username: "operator", Password: "correct-horse"}, meta)
		require.NoError(t, err)
		assert.Equal(t, "operator", resp.Username)
		assert.Equal(t, "Bearer", resp.Session.TokenType)
		assert.Greater(t, resp.Session.ExpiresIn, 0)

		claims, err := tokens.ValidateAdminToken(resp.Session.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "operator", claims.Username)
		assert.Equal(t, []string{models.AuditActionAdminLoginSuccess}, audit.actions())
	})

	tests := []struct {
		name string
		req  *dto.AdminLoginRequest
	}{
		{name: "wrong password", req: &dto.AdminLoginRequest{Username: "operator", Password: "battery-staple"}},
		{name: "wrong username", req: &dto.AdminLoginRequest{Username: "intruder", Password: "correct-horse"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow, _, audit := newTestAdminFlow(t, creds)

			resp, err := flow.Login(context.Background(), tt.req, meta)
			assert.Nil(t, resp)
			assert.True(t, IsInvalidCredentials(err))
			require.Len(t, audit.entries, 1)
			assert.Equal(t, models.AuditActionAdminLoginFailed, audit.entries[0].Action)
			assert.False(t, utils.IsTrue(audit.entries[0].Success))
		})
	}

	t.Run("empty request", func(t *testing.T) {
		flow, _, _ := newTestAdminFlow(t, creds)
		_, err := flow.Login(context.Background(), &dto.AdminLoginRequest{}, meta)
		assert.True(t, IsInvalidCredentials(err))
	})

	t.Run("unconfigured admin", func(t *testing.T) {
		flow, _, _ := newTestAdminFlow(t, AdminCredentials{})
		_, err := flow.Login(context.Background(), &dto.AdminLoginRequest{Username: "operator", Password: "correct-horse"}, meta)
		assert.True(t, IsAdminNotConfigured(err))
	})
}

package repository

import (
	"context"
	"time"

	"github.com/amirphl/callback-survey/models"
)

type contextKey string

// TxContextKey is the context key holding an open *gorm.DB transaction
const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
}

// SurveySubmissionRepository defines operations for stored surveys
type SurveySubmissionRepository interface {
	Repository[models.SurveySubmission, models.SurveySubmissionFilter]
	ByUUID(ctx context.Context, uuid string) (*models.SurveySubmission, error)
	ByIdempotencyKey(ctx context.Context, key string) (*models.SurveySubmission, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
}

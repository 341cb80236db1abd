package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/callback-survey/models"
	"github.com/amirphl/callback-survey/utils"
	"gorm.io/gorm"
)

// SurveySubmissionRepositoryImpl implements SurveySubmissionRepository
type SurveySubmissionRepositoryImpl struct {
	*BaseRepository[models.SurveySubmission, models.SurveySubmissionFilter]
}

// NewSurveySubmissionRepository creates a new survey submission repository
func NewSurveySubmissionRepository(db *gorm.DB) SurveySubmissionRepository {
	return &SurveySubmissionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SurveySubmission, models.SurveySubmissionFilter](db),
	}
}

// ByUUID retrieves a submission by UUID
func (r *SurveySubmissionRepositoryImpl) ByUUID(ctx context.Context, uuidStr string) (*models.SurveySubmission, error) {
	parsed, err := utils.ParseUUID(uuidStr)
	if err != nil {
		return nil, err
	}
	return r.first(ctx, models.SurveySubmissionFilter{UUID: &parsed})
}

// ByIdempotencyKey retrieves the submission stored under an idempotency key
func (r *SurveySubmissionRepositoryImpl) ByIdempotencyKey(ctx context.Context, key string) (*models.SurveySubmission, error) {
	if key == "" {
		return nil, nil
	}
	return r.first(ctx, models.SurveySubmissionFilter{IdempotencyKey: &key})
}

// CountSince counts submissions created at or after since
func (r *SurveySubmissionRepositoryImpl) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.getDB(ctx).Model(&models.SurveySubmission{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count submissions since %s: %w", since.Format(time.RFC3339), err)
	}
	return count, nil
}

func (r *SurveySubmissionRepositoryImpl) first(ctx context.Context, filter models.SurveySubmissionFilter) (*models.SurveySubmission, error) {
	var row models.SurveySubmission
	err := r.applyFilter(r.getDB(ctx).Model(&models.SurveySubmission{}), filter).
		Order("id ASC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *SurveySubmissionRepositoryImpl) applyFilter(query *gorm.DB, filter models.SurveySubmissionFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	if filter.Phone != nil {
		query = query.Where("phone = ?", *filter.Phone)
	}
	if filter.IdempotencyKey != nil {
		query = query.Where("idempotency_key = ?", *filter.IdempotencyKey)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves submissions, newest first unless orderBy says otherwise
func (r *SurveySubmissionRepositoryImpl) ByFilter(ctx context.Context, filter models.SurveySubmissionFilter, orderBy string, limit, offset int) ([]*models.SurveySubmission, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.SurveySubmission{}), filter)
	query = page(query, orderBy, "id DESC", limit, offset)

	var rows []*models.SurveySubmission
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return rows, nil
}

// Count returns number of submissions matching filter
func (r *SurveySubmissionRepositoryImpl) Count(ctx context.Context, filter models.SurveySubmissionFilter) (int64, error) {
	var count int64
	query := r.applyFilter(r.getDB(ctx).Model(&models.SurveySubmission{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return count, nil
}

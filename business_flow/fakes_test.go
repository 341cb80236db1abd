package businessflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/amirphl/callback-survey/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// memorySubmissionRepo is an in-memory SurveySubmissionRepository
type memorySubmissionRepo struct {
	mu      sync.Mutex
	rows    []*models.SurveySubmission
	nextID  uint
	saveErr error
	saves   int
}

func (r *memorySubmissionRepo) ByID(ctx context.Context, id uint) (*models.SurveySubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memorySubmissionRepo) ByUUID(ctx context.Context, id string) (*models.SurveySubmission, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	rows, _ := r.ByFilter(ctx, models.SurveySubmissionFilter{UUID: &parsed}, "", 1, 0)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *memorySubmissionRepo) ByIdempotencyKey(ctx context.Context, key string) (*models.SurveySubmission, error) {
	rows, _ := r.ByFilter(ctx, models.SurveySubmissionFilter{IdempotencyKey: &key}, "", 1, 0)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *memorySubmissionRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	return r.Count(ctx, models.SurveySubmissionFilter{CreatedAfter: &since})
}

func (r *memorySubmissionRepo) match(row *models.SurveySubmission, f models.SurveySubmissionFilter) bool {
	switch {
	case f.ID != nil && row.ID != *f.ID,
		f.UUID != nil && row.UUID != *f.UUID,
		f.Name != nil && row.Name != *f.Name,
		f.Phone != nil && row.Phone != *f.Phone,
		f.IdempotencyKey != nil && (row.IdempotencyKey == nil || *row.IdempotencyKey != *f.IdempotencyKey),
		f.CreatedAfter != nil && row.CreatedAt.Before(*f.CreatedAfter),
		f.CreatedBefore != nil && !row.CreatedAt.Before(*f.CreatedBefore):
		return false
	}
	return true
}

func (r *memorySubmissionRepo) ByFilter(ctx context.Context, filter models.SurveySubmissionFilter, orderBy string, limit, offset int) ([]*models.SurveySubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SurveySubmission
	for _, row := range r.rows {
		if r.match(row, filter) {
			cp := *row
			out = append(out, &cp)
		}
	}
	if orderBy == "id ASC" {
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	}
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memorySubmissionRepo) Save(ctx context.Context, row *models.SurveySubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.saveErr != nil {
		return r.saveErr
	}
	if row.IdempotencyKey != nil {
		for _, existing := range r.rows {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *row.IdempotencyKey {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	r.nextID++
	row.ID = r.nextID
	row.UUID = uuid.New()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	cp := *row
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memorySubmissionRepo) Count(ctx context.Context, filter models.SurveySubmissionFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), err
}

// memoryAuditRepo records audit entries
type memoryAuditRepo struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (r *memoryAuditRepo) ByID(ctx context.Context, id uint) (*models.AuditLog, error) {
	return nil, nil
}

func (r *memoryAuditRepo) ByFilter(ctx context.Context, filter models.AuditLogFilter, orderBy string, limit, offset int) ([]*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditLog
	for _, e := range r.entries {
		if filter.Action != nil && e.Action != *filter.Action {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *memoryAuditRepo) Save(ctx context.Context, e *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *memoryAuditRepo) Count(ctx context.Context, filter models.AuditLogFilter) (int64, error) {
	out, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(out)), nil
}

func (r *memoryAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

// failingStore is an IdempotencyStore whose backend is down
type failingStore struct{}

var errStoreDown = errors.New("redis: connection refused")

func (failingStore) Acquire(ctx context.Context, key string) (bool, error) { return false, errStoreDown }
func (failingStore) Complete(ctx context.Context, key string, id uint) error {
	return errStoreDown
}
func (failingStore) Lookup(ctx context.Context, key string) (uint, error) { return 0, errStoreDown }
func (failingStore) Release(ctx context.Context, key string) error { return errStoreDown }

package businessflow

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/callback-survey/app/dto"
	"github.com/amirphl/callback-survey/app/logger"
	"github.com/amirphl/callback-survey/app/services"
	"github.com/amirphl/callback-survey/models"
	"github.com/amirphl/callback-survey/repository"
	"github.com/amirphl/callback-survey/utils"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const (
	notifyTimeout   = 30 * time.Second
	exportBatchSize = 1000
	exportSheetName = "Submissions"
)

// SurveyFlow handles storing and reading callback surveys
type SurveyFlow interface {
	SubmitSurvey(ctx context.Context, req *dto.SubmitSurveyRequest, metadata *ClientMetadata) (*dto.SubmitSurveyResponse, error)
	ListSubmissions(ctx context.Context, req *dto.ListSubmissionsRequest) (*dto.ListSubmissionsResponse, error)
	ExportSubmissions(ctx context.Context) (filename string, data []byte, err error)
	GetSubmission(ctx context.Context, ref string) (*dto.SurveySubmissionItem, error)
}

// SurveyFlowImpl implements SurveyFlow
type SurveyFlowImpl struct {
	repo     repository.SurveySubmissionRepository
	notifier services.NotificationService
	idem     services.IdempotencyStore
	audit    repository.AuditLogRepository
	log      logrus.FieldLogger

	// snapshot runs multi-statement reads against one consistent view
	snapshot func(ctx context.Context, fn func(context.Context) error) error

	// dispatch runs the best-effort email outside the request
	dispatch func(func())
}

// NewSurveyFlow creates a new survey flow
func NewSurveyFlow(
	repo repository.SurveySubmissionRepository,
	notifier services.NotificationService,
	idem services.IdempotencyStore,
) *SurveyFlowImpl {
	return &SurveyFlowImpl{
		repo:     repo,
		notifier: notifier,
		idem:     idem,
		log:      logger.Log.WithField("component", "survey_flow"),
		dispatch: func(f func()) { go f() },
		snapshot: func(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) },
	}
}

// WithSnapshotReads runs exports inside a read-only repeatable-read transaction on db
func (f *SurveyFlowImpl) WithSnapshotReads(db *gorm.DB) *SurveyFlowImpl {
	f.snapshot = func(ctx context.Context, fn func(context.Context) error) error {
		return repository.WithTransaction(ctx, db, fn, repository.SnapshotTxOptions)
	}
	return f
}

// WithAuditLog records admin reads of the submissions in the audit log
func (f *SurveyFlowImpl) WithAuditLog(repo repository.AuditLogRepository) *SurveyFlowImpl {
	f.audit = repo
	return f
}

// SubmitSurvey persists a submission and notifies the operator. A repeated
// idempotency key returns the id stored for it instead of a new row.
func (f *SurveyFlowImpl) SubmitSurvey(ctx context.Context, req *dto.SubmitSurveyRequest, metadata *ClientMetadata) (*dto.SubmitSurveyResponse, error) {
	if req == nil {
		return nil, NewBusinessError("VALIDATION_ERROR", "Request body is required", nil)
	}

	key := req.IdempotencyKey
	if key != "" {
		if resp, err := f.replay(ctx, key); resp != nil || err != nil {
			return resp, err
		}

		claimed, err := f.idem.Acquire(ctx, key)
		if err != nil {
			// the unique index still guards duplicates
			f.log.WithError(err).Warn("Idempotency store unavailable")
			claimed = true
		}
		if !claimed {
			id, err := f.idem.Lookup(ctx, key)
			if err == nil && id != 0 {
				return &dto.SubmitSurveyResponse{Status: "ok", ID: id, Replayed: true}, nil
			}
			return nil, NewBusinessError("SUBMISSION_IN_PROGRESS", "A submission with this key is already being processed", ErrSubmissionInProgress)
		}
	}

	row := &models.SurveySubmission{
		Name:        deref(req.Name),
		Phone:       deref(req.Phone),
		CallTime:    deref(req.CallTime),
		MaxAttempts: deref(req.MaxAttempts),
		Notes:       deref(req.Notes),
	}
	if key != "" {
		row.IdempotencyKey = &key
	}
	if metadata != nil {
		row.IPAddress = optionalString(metadata.IPAddress)
		row.UserAgent = optionalString(utils.Truncate(metadata.UserAgent, 1024))
	}

	if err := f.repo.Save(ctx, row); err != nil {
		if key != "" && isUniqueViolation(err) {
			if resp, rerr := f.replay(ctx, key); resp != nil || rerr != nil {
				return resp, rerr
			}
		}
		if key != "" {
			_ = f.idem.Release(context.WithoutCancel(ctx), key)
		}
		return nil, NewBusinessError("SUBMISSION_SAVE_FAILED", "Failed to save submission", err)
	}

	if key != "" {
		if err := f.idem.Complete(ctx, key, row.ID); err != nil {
			f.log.WithError(err).Warn("Failed to record idempotency key")
		}
	}

	f.log.WithFields(logrus.Fields{"submission_id": row.ID, "name": row.Name}).Info("Saved survey submission")
	f.notify(row)

	return &dto.SubmitSurveyResponse{Status: "ok", ID: row.ID}, nil
}

func (f *SurveyFlowImpl) replay(ctx context.Context, key string) (*dto.SubmitSurveyResponse, error) {
	existing, err := f.repo.ByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, NewBusinessError("SUBMISSION_LOOKUP_FAILED", "Failed to look up submission", err)
	}
	if existing == nil {
		return nil, nil
	}
	return &dto.SubmitSurveyResponse{Status: "ok", ID: existing.ID, Replayed: true}, nil
}

func (f *SurveyFlowImpl) notify(row *models.SurveySubmission) {
	if f.notifier == nil {
		return
	}
	notice := services.SubmissionNotice{
		ID:          row.ID,
		Name:        row.Name,
		Phone:       row.Phone,
		CallTime:    row.CallTime,
		MaxAttempts: row.MaxAttempts,
		Notes:       row.Notes,
	}
	f.dispatch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := f.notifier.NotifySubmission(ctx, notice); err != nil {
			f.log.WithError(err).WithField("submission_id", notice.ID).Error("Failed to send submission notification")
		}
	})
}

// ListSubmissions returns one page of submissions, newest first
func (f *SurveyFlowImpl) ListSubmissions(ctx context.Context, req *dto.ListSubmissionsRequest) (*dto.ListSubmissionsResponse, error) {
	if req.Page < 1 {
		return nil, NewBusinessError("INVALID_PAGE", "Page must be at least 1", ErrInvalidPage)
	}
	if req.PageSize < 1 || req.PageSize > utils.MaxPageSize {
		return nil, NewBusinessError("INVALID_PAGE_SIZE", "Page size must be between 1 and 100", ErrInvalidPageSize)
	}

	filter := models.SurveySubmissionFilter{}
	total, err := f.repo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_SUBMISSIONS_FAILED", "Failed to count submissions", err)
	}

	rows, err := f.repo.ByFilter(ctx, filter, "id DESC", req.PageSize, (req.Page-1)*req.PageSize)
	if err != nil {
		return nil, NewBusinessError("LIST_SUBMISSIONS_FAILED", "Failed to list submissions", err)
	}

	items := make([]dto.SurveySubmissionItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, ToSurveySubmissionItem(*r))
	}

	recordAudit(ctx, f.audit, f.log, adminFromContext(ctx), models.AuditActionSubmissionsListed, true, "",
		clientMetadataFromContext(ctx), map[string]any{"page": req.Page, "page_size": req.PageSize})

	totalPages := int((total + int64(req.PageSize) - 1) / int64(req.PageSize))
	return &dto.ListSubmissionsResponse{
		Items: items,
		Pagination: dto.PaginationInfo{
			Total:      total,
			Page:       req.Page,
			PageSize:   req.PageSize,
			TotalPages: totalPages,
		},
	}, nil
}

// ExportSubmissions renders every submission, oldest first, into an XLSX workbook
func (f *SurveyFlowImpl) ExportSubmissions(ctx context.Context) (string, []byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	xl.SetSheetName(xl.GetSheetName(0), exportSheetName)
	header := []string{"id", "uuid", "name", "phone", "call_time", "max_attempts", "notes", "created_at"}
	if err := xl.SetSheetRow(exportSheetName, "A1", &header); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel header", err)
	}

	// batches share one snapshot so concurrent inserts cannot shift the offsets
	rowIndex := 2
	err := f.snapshot(ctx, func(txCtx context.Context) error {
		for offset := 0; ; offset += exportBatchSize {
			rows, err := f.repo.ByFilter(txCtx, models.SurveySubmissionFilter{}, "id ASC", exportBatchSize, offset)
			if err != nil {
				return NewBusinessError("EXPORT_SUBMISSIONS_FAILED", "Failed to fetch submissions", err)
			}
			for _, r := range rows {
				record := []string{
					strconv.FormatUint(uint64(r.ID), 10),
					r.UUID.String(),
					r.Name,
					r.Phone,
					r.CallTime,
					r.MaxAttempts,
					r.Notes,
					r.CreatedAt.UTC().Format(time.RFC3339),
				}
				cellRef, _ := excelize.CoordinatesToCellName(1, rowIndex)
				if err := xl.SetSheetRow(exportSheetName, cellRef, &record); err != nil {
					return NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel row", err)
				}
				rowIndex++
			}
			if len(rows) < exportBatchSize {
				return nil
			}
		}
	})
	if err != nil {
		var be *BusinessError
		if errors.As(err, &be) {
			return "", nil, be
		}
		return "", nil, NewBusinessError("EXPORT_SUBMISSIONS_FAILED", "Failed to read submissions", err)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	recordAudit(ctx, f.audit, f.log, adminFromContext(ctx), models.AuditActionSubmissionsExported, true, "",
		clientMetadataFromContext(ctx), map[string]any{"rows": rowIndex - 2})

	filename := "survey_submissions_" + utils.UTCNow().Format("20060102") + ".xlsx"
	return filename, buf.Bytes(), nil
}

// GetSubmission looks one submission up by numeric id or uuid
func (f *SurveyFlowImpl) GetSubmission(ctx context.Context, ref string) (*dto.SurveySubmissionItem, error) {
	ref = strings.TrimSpace(ref)

	var (
		row *models.SurveySubmission
		err error
	)
	if id, perr := strconv.ParseUint(ref, 10, 64); perr == nil && id > 0 {
		row, err = f.repo.ByID(ctx, uint(id))
	} else if _, perr := utils.ParseUUID(ref); perr == nil {
		row, err = f.repo.ByUUID(ctx, ref)
	} else {
		return nil, NewBusinessError("INVALID_SUBMISSION_REF", "Submission reference must be a numeric id or a uuid", ErrInvalidSubmissionRef)
	}
	if err != nil {
		return nil, NewBusinessError("GET_SUBMISSION_FAILED", "Failed to look up submission", err)
	}
	if row == nil {
		return nil, NewBusinessError("SUBMISSION_NOT_FOUND", "Submission not found", ErrSubmissionNotFound)
	}

	recordAudit(ctx, f.audit, f.log, adminFromContext(ctx), models.AuditActionSubmissionViewed, true, "",
		clientMetadataFromContext(ctx), map[string]any{"submission_id": row.ID})

	item := ToSurveySubmissionItem(*row)
	return &item, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

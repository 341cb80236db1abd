package handlers

import (
	"strconv"
	"strings"

	"github.com/amirphl/callback-survey/app/dto"
	"github.com/amirphl/callback-survey/app/logger"
	"github.com/amirphl/callback-survey/app/middleware"
	businessflow "github.com/amirphl/callback-survey/business_flow"
	"github.com/amirphl/callback-survey/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// SurveyHandlerInterface defines the contract for the survey API handlers
type SurveyHandlerInterface interface {
	Submit(c fiber.Ctx) error
	ListSubmissions(c fiber.Ctx) error
	ExportSubmissions(c fiber.Ctx) error
	GetSubmission(c fiber.Ctx) error
}

// SurveyHandler serves the JSON survey API
type SurveyHandler struct {
	flow      businessflow.SurveyFlow
	validator *validator.Validate
}

func NewSurveyHandler(flow businessflow.SurveyFlow) SurveyHandlerInterface {
	return &SurveyHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

// Submit stores one survey
// @Summary Submit survey
// @Description Store a callback survey. A repeated Idempotency-Key returns the stored id.
// @Tags Survey
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Form id"
// @Param request body dto.SubmitSurveyRequest true "Survey fields"
// @Success 201 {object} dto.APIResponse{data=dto.SubmitSurveyResponse} "Stored"
// @Success 200 {object} dto.APIResponse{data=dto.SubmitSurveyResponse} "Already stored"
// @Failure 400 {object} dto.APIResponse "Invalid request"
// @Failure 409 {object} dto.APIResponse "Same key still being processed"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/submit [post]
func (h *SurveyHandler) Submit(c fiber.Ctx) error {
	var req dto.SubmitSurveyRequest
	if err := c.Bind().JSON(&req); err != nil {
		middleware.RecordSubmission("invalid")
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		middleware.RecordSubmission("invalid")
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	req.IdempotencyKey = strings.TrimSpace(c.Get(utils.IdempotencyKeyHeader))
	if len(req.IdempotencyKey) > utils.MaxShortFieldLen {
		middleware.RecordSubmission("invalid")
		return errorResponse(c, fiber.StatusBadRequest, "Idempotency key is too long", "INVALID_IDEMPOTENCY_KEY", nil)
	}

	ctx, cancel := createRequestContext(c, utils.SubmitPath, requestTimeout)
	defer cancel()

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(requestID(c))

	resp, err := h.flow.SubmitSurvey(ctx, &req, metadata)
	if err != nil {
		if businessflow.IsSubmissionInProgress(err) {
			middleware.RecordSubmission("in_progress")
			return errorResponse(c, fiber.StatusConflict, "A submission with this key is already being processed", "SUBMISSION_IN_PROGRESS", nil)
		}
		middleware.RecordSubmission("failed")
		logger.Log.WithError(err).WithField("request_id", metadata.RequestID).Error("Survey submission failed")
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to store submission", "SUBMISSION_FAILED", nil)
	}

	if resp.Replayed {
		middleware.RecordSubmission("replayed")
		return successResponse(c, fiber.StatusOK, "Submission already stored", resp)
	}
	middleware.RecordSubmission("created")
	return successResponse(c, fiber.StatusCreated, "Submission stored", resp)
}

// ListSubmissions returns stored surveys, newest first
// @Summary List submissions
// @Tags Survey Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} dto.APIResponse{data=dto.ListSubmissionsResponse}
// @Failure 400 {object} dto.APIResponse "Invalid paging"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/submissions [get]
func (h *SurveyHandler) ListSubmissions(c fiber.Ctx) error {
	req := dto.ListSubmissionsRequest{Page: 1, PageSize: utils.DefaultPageSize}
	if s := c.Query("page"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "Invalid page", "INVALID_PAGE", nil)
		}
		req.Page = v
	}
	if s := c.Query("page_size"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "Invalid page size", "INVALID_PAGE_SIZE", nil)
		}
		req.PageSize = v
	}

	ctx, cancel := createRequestContext(c, "/api/submissions", requestTimeout)
	defer cancel()

	resp, err := h.flow.ListSubmissions(ctx, &req)
	if err != nil {
		switch {
		case businessflow.IsInvalidPage(err):
			return errorResponse(c, fiber.StatusBadRequest, "Page must be at least 1", "INVALID_PAGE", nil)
		case businessflow.IsInvalidPageSize(err):
			return errorResponse(c, fiber.StatusBadRequest, "Page size must be between 1 and 100", "INVALID_PAGE_SIZE", nil)
		}
		logger.Log.WithError(err).Error("List submissions failed")
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to list submissions", "LIST_SUBMISSIONS_FAILED", nil)
	}

	return successResponse(c, fiber.StatusOK, "Submissions retrieved successfully", resp)
}

// ExportSubmissions streams every stored survey as an XLSX workbook
// @Summary Export submissions
// @Tags Survey Admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Success 200 {file} file "XLSX workbook"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/submissions/export [get]
func (h *SurveyHandler) ExportSubmissions(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/submissions/export", 2*requestTimeout)
	defer cancel()

	filename, data, err := h.flow.ExportSubmissions(ctx)
	if err != nil {
		logger.Log.WithError(err).Error("Export submissions failed")
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to generate export", "EXPORT_FAILED", nil)
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(data)
}

// GetSubmission returns one stored survey
// @Summary Get submission
// @Tags Survey Admin
// @Produce json
// @Security BearerAuth
// @Param ref path string true "Numeric id or uuid"
// @Success 200 {object} dto.APIResponse{data=dto.SurveySubmissionItem}
// @Failure 400 {object} dto.APIResponse "Malformed reference"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/submissions/{ref} [get]
func (h *SurveyHandler) GetSubmission(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/submissions/:ref", requestTimeout)
	defer cancel()

	item, err := h.flow.GetSubmission(ctx, c.Params("ref"))
	if err != nil {
		switch {
		case businessflow.IsInvalidSubmissionRef(err):
			return errorResponse(c, fiber.StatusBadRequest, "Submission reference must be a numeric id or a uuid", "INVALID_SUBMISSION_REF", nil)
		case businessflow.IsSubmissionNotFound(err):
			return errorResponse(c, fiber.StatusNotFound, "Submission not found", "SUBMISSION_NOT_FOUND", nil)
		}
		logger.Log.WithError(err).Error("Get submission failed")
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to look up submission", "GET_SUBMISSION_FAILED", nil)
	}

	return successResponse(c, fiber.StatusOK, "Submission retrieved successfully", item)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amirphl/callback-survey/app/dto"
	businessflow "github.com/amirphl/callback-survey/business_flow"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSurveyFlow struct {
	submitResp *dto.SubmitSurveyResponse
	submitErr  error
	lastSubmit *dto.SubmitSurveyRequest
	lastList   *dto.ListSubmissionsRequest
	listErr    error
	lastRef    string
	getItem    *dto.SurveySubmissionItem
	getErr     error
}

func (s *stubSurveyFlow) SubmitSurvey(ctx context.Context, req *dto.SubmitSurveyRequest, metadata *businessflow.ClientMetadata) (*dto.SubmitSurveyResponse, error) {
	s.lastSubmit = req
	return s.submitResp, s.submitErr
}

func (s *stubSurveyFlow) ListSubmissions(ctx context.Context, req *dto.ListSubmissionsRequest) (*dto.ListSubmissionsResponse, error) {
	s.lastList = req
	if s.listErr != nil {
		return nil, s.listErr
	}
	return &dto.ListSubmissionsResponse{Items: []dto.SurveySubmissionItem{}, Pagination: dto.PaginationInfo{Page: req.Page, PageSize: req.PageSize}}, nil
}

func (s *stubSurveyFlow) ExportSubmissions(ctx context.Context) (string, []byte, error) {
	return "survey_submissions_20250101.xlsx", []byte("PK"), nil
}

func (s *stubSurveyFlow) GetSubmission(ctx context.Context, ref string) (*dto.SurveySubmissionItem, error) {
	s.lastRef = ref
	return s.getItem, s.getErr
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newSurveyApp(flow businessflow.SurveyFlow) *fiber.App {
	h := NewSurveyHandler(flow)
	app := fiber.New()
	app.Post("/api/submit", h.Submit)
	app.Get("/api/submissions", h.ListSubmissions)
	app.Get("/api/submissions/export", h.ExportSubmissions)
	app.Get("/api/submissions/:ref", h.GetSubmission)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target, body string, headers map[string]string) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp, env
}

const validBody = `{"name":"Alice","phone":"555","call_time":"noon","max_attempts":"3","notes":""}`

func TestSurveyHandlerSubmit(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		headers    map[string]string
		flow       *stubSurveyFlow
		wantStatus int
		wantCode   string
		wantData   string
	}{
		{
			name:       "created",
			body:       validBody,
			flow:       &stubSurveyFlow{submitResp: &dto.SubmitSurveyResponse{Status: "ok", ID: 7}},
			wantStatus: http.StatusCreated,
			wantData:   `{"status":"ok","id":7}`,
		},
		{
			name:       "replayed",
			body:       validBody,
			headers:    map[string]string{"Idempotency-Key": "abc"},
			flow:       &stubSurveyFlow{submitResp: &dto.SubmitSurveyResponse{Status: "ok", ID: 7, Replayed: true}},
			wantStatus: http.StatusOK,
			wantData:   `{"status":"ok","id":7}`,
		},
		{
			name:       "all fields empty",
			body:       `{"name":"","phone":"","call_time":"","max_attempts":"","notes":""}`,
			flow:       &stubSurveyFlow{submitResp: &dto.SubmitSurveyResponse{Status: "ok", ID: 8}},
			wantStatus: http.StatusCreated,
			wantData:   `{"status":"ok","id":8}`,
		},
		{
			name:       "missing key",
			body:       `{"name":"Alice","phone":"555","call_time":"noon","max_attempts":"3"}`,
			flow:       &stubSurveyFlow{},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "notes too long",
			body:       `{"name":"A","phone":"5","call_time":"n","max_attempts":"3","notes":"` + strings.Repeat("x", 2001) + `"}`,
			flow:       &stubSurveyFlow{},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "malformed json",
			body:       `{"name":`,
			flow:       &stubSurveyFlow{},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "key in progress",
			body:       validBody,
			headers:    map[string]string{"Idempotency-Key": "abc"},
			flow:       &stubSurveyFlow{submitErr: businessflow.NewBusinessError("SUBMISSION_IN_PROGRESS", "busy", businessflow.ErrSubmissionInProgress)},
			wantStatus: http.StatusConflict,
			wantCode:   "SUBMISSION_IN_PROGRESS",
		},
		{
			name:       "storage failure",
			body:       validBody,
			flow:       &stubSurveyFlow{submitErr: errors.New("db down")},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "SUBMISSION_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := doJSON(t, newSurveyApp(tt.flow), http.MethodPost, "/api/submit", tt.body, tt.headers)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantCode != "" {
				assert.False(t, env.Success)
				assert.Equal(t, tt.wantCode, env.Error.Code)
			}
			if tt.wantData != "" {
				assert.True(t, env.Success)
				assert.JSONEq(t, tt.wantData, string(env.Data))
			}
		})
	}
}

func TestSurveyHandlerSubmitPassesIdempotencyKey(t *testing.T) {
	flow := &stubSurveyFlow{submitResp: &dto.SubmitSurveyResponse{Status: "ok", ID: 1}}
	_, _ = doJSON(t, newSurveyApp(flow), http.MethodPost, "/api/submit", validBody, map[string]string{"Idempotency-Key": " form-9 "})

	require.NotNil(t, flow.lastSubmit)
	assert.Equal(t, "form-9", flow.lastSubmit.IdempotencyKey)
	assert.Equal(t, "", *flow.lastSubmit.Notes)
}

func TestSurveyHandlerList(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		flow := &stubSurveyFlow{}
		resp, env := doJSON(t, newSurveyApp(flow), http.MethodGet, "/api/submissions", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, env.Success)
		assert.Equal(t, 1, flow.lastList.Page)
		assert.Equal(t, 20, flow.lastList.PageSize)
	})

	t.Run("explicit paging", func(t *testing.T) {
		flow := &stubSurveyFlow{}
		_, _ = doJSON(t, newSurveyApp(flow), http.MethodGet, "/api/submissions?page=3&page_size=50", "", nil)
		assert.Equal(t, 3, flow.lastList.Page)
		assert.Equal(t, 50, flow.lastList.PageSize)
	})

	t.Run("non numeric page", func(t *testing.T) {
		resp, env := doJSON(t, newSurveyApp(&stubSurveyFlow{}), http.MethodGet, "/api/submissions?page=x", "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_PAGE", env.Error.Code)
	})

	t.Run("page size out of range", func(t *testing.T) {
		flow := &stubSurveyFlow{listErr: businessflow.NewBusinessError("INVALID_PAGE_SIZE", "bad", businessflow.ErrInvalidPageSize)}
		resp, env := doJSON(t, newSurveyApp(flow), http.MethodGet, "/api/submissions?page_size=500", "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_PAGE_SIZE", env.Error.Code)
	})
}

func TestSurveyHandlerExport(t *testing.T) {
	resp, _ := doJSON(t, newSurveyApp(&stubSurveyFlow{}), http.MethodGet, "/api/submissions/export", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="survey_submissions_20250101.xlsx"`, resp.Header.Get("Content-Disposition"))
}

func TestSurveyHandlerGetSubmission(t *testing.T) {
	tests := []struct {
		name       string
		flow       *stubSurveyFlow
		wantStatus int
		wantCode   string
	}{
		{
			name:       "found",
			flow:       &stubSurveyFlow{getItem: &dto.SurveySubmissionItem{ID: 3, Name: "Alice"}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "not found",
			flow:       &stubSurveyFlow{getErr: businessflow.NewBusinessError("SUBMISSION_NOT_FOUND", "missing", businessflow.ErrSubmissionNotFound)},
			wantStatus: http.StatusNotFound,
			wantCode:   "SUBMISSION_NOT_FOUND",
		},
		{
			name:       "malformed reference",
			flow:       &stubSurveyFlow{getErr: businessflow.NewBusinessError("INVALID_SUBMISSION_REF", "bad", businessflow.ErrInvalidSubmissionRef)},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_SUBMISSION_REF",
		},
		{
			name:       "storage failure",
			flow:       &stubSurveyFlow{getErr: errors.New("db down")},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "GET_SUBMISSION_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := doJSON(t, newSurveyApp(tt.flow), http.MethodGet, "/api/submissions/3", "", nil)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, "3", tt.flow.lastRef)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, env.Error.Code)
				return
			}
			assert.JSONEq(t, `{"id":3,"uuid":"","name":"Alice","phone":"","call_time":"","max_attempts":"","notes":"","created_at":""}`, string(env.Data))
		})
	}
}

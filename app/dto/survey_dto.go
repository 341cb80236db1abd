package dto

// SubmitSurveyRequest is the JSON body of POST /api/submit.
// All five keys must be present; values are free text and may be empty.
type SubmitSurveyRequest struct {
	Name        *string `json:"name" validate:"required,max=255" example:"Jane Doe"`
	Phone       *string `json:"phone" validate:"required,max=255" example:"+1 555 0100"`
	CallTime    *string `json:"call_time" validate:"required,max=255" example:"weekdays after 5pm"`
	MaxAttempts *string `json:"max_attempts" validate:"required,max=255" example:"3"`
	Notes       *string `json:"notes" validate:"required,max=2000" example:"Prefers text first"`

	// Populated by the handler from the Idempotency-Key header
	IdempotencyKey string `json:"-" validate:"omitempty,max=255"`
}

// SubmitSurveyResponse mirrors the original backend acknowledgment
type SubmitSurveyResponse struct {
	Status string `json:"status" example:"ok"`
	ID     uint   `json:"id" example:"1"`

	// Replayed is set when an idempotency key matched an earlier submission
	Replayed bool `json:"-"`
}

// SurveySubmissionItem represents a stored submission in listings
type SurveySubmissionItem struct {
	ID          uint   `json:"id"`
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	CallTime    string `json:"call_time"`
	MaxAttempts string `json:"max_attempts"`
	Notes       string `json:"notes"`
	CreatedAt   string `json:"created_at"`
}

// ListSubmissionsRequest carries paging for GET /api/submissions
type ListSubmissionsRequest struct {
	Page     int `json:"page" validate:"min=1"`
	PageSize int `json:"page_size" validate:"min=1,max=100"`
}

// ListSubmissionsResponse is a page of submissions, newest first
type ListSubmissionsResponse struct {
	Items      []SurveySubmissionItem `json:"items"`
	Pagination PaginationInfo         `json:"pagination"`
}

// PaginationInfo describes the returned page
type PaginationInfo struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

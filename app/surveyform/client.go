package surveyform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/amirphl/callback-survey/utils"
)

// Outcome classifies a finished submission
type Outcome int

const (
	OutcomeAccepted Outcome = iota + 1
	OutcomeRejected
	OutcomeNetworkFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeNetworkFailure:
		return "network_failure"
	}
	return "unknown"
}

// SubmissionResult is the transient result of one POST
type SubmissionResult struct {
	Outcome    Outcome
	StatusCode int
	Err        error
}

// event converts the result into the matching completion event
func (r SubmissionResult) event(generation uint64) Event {
	switch r.Outcome {
	case OutcomeAccepted:
		return SubmitAccepted{Generation: generation}
	case OutcomeRejected:
		return SubmitRejected{Generation: generation, StatusCode: r.StatusCode}
	default:
		return SubmitFailed{Generation: generation, Err: r.Err}
	}
}

// Submitter delivers a form to the backend
type Submitter interface {
	Submit(ctx context.Context, formID string, form FormState) SubmissionResult
}

// SubmitterFunc adapts a function to Submitter
type SubmitterFunc func(ctx context.Context, formID string, form FormState) SubmissionResult

func (f SubmitterFunc) Submit(ctx context.Context, formID string, form FormState) SubmissionResult {
	return f(ctx, formID, form)
}

// EncodeBody returns the exact JSON body posted for a form
func EncodeBody(form FormState) ([]byte, error) {
	return json.Marshal(form)
}

// Client posts forms to <baseURL>/api/submit
type Client struct {
	baseURL string
	pageKey string
	client  *http.Client
}

// NewClient creates a submission client for the given origin. A zero timeout
// leaves requests bounded only by the caller's context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithPageKey makes every request carry key in the page key header
func (c *Client) WithPageKey(key string) *Client {
	c.pageKey = key
	return c
}

// Submit sends the form as JSON. Any 2xx status is Accepted, any other
// completed response is Rejected, and transport errors are NetworkFailure.
// The response body is discarded unread.
func (c *Client) Submit(ctx context.Context, formID string, form FormState) SubmissionResult {
	body, err := EncodeBody(form)
	if err != nil {
		return SubmissionResult{Outcome: OutcomeNetworkFailure, Err: fmt.Errorf("failed to marshal survey form: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+utils.SubmitPath, bytes.NewReader(body))
	if err != nil {
		return SubmissionResult{Outcome: OutcomeNetworkFailure, Err: fmt.Errorf("failed to create HTTP request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if formID != "" {
		req.Header.Set(utils.IdempotencyKeyHeader, formID)
	}
	if c.pageKey != "" {
		req.Header.Set(utils.PageKeyHeader, c.pageKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return SubmissionResult{Outcome: OutcomeNetworkFailure, Err: fmt.Errorf("failed to send survey submission: %w", err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return SubmissionResult{Outcome: OutcomeAccepted, StatusCode: resp.StatusCode}
	}
	return SubmissionResult{Outcome: OutcomeRejected, StatusCode: resp.StatusCode}
}

package utils

import (
	"time"
)

type contextKey string

// Request context keys populated by handlers
const (
	RequestIDKey contextKey = "request_id"
	UserAgentKey contextKey = "user_agent"
	IPAddressKey contextKey = "ip_address"
	EndpointKey  contextKey = "endpoint"
	TimeoutKey   contextKey = "timeout"
	AdminKey     contextKey = "admin_username"
)

// Token time constants
const (
	// AccessTokenTTL is the time-to-live for admin access tokens (12 hours)
	AccessTokenTTL = 12 * time.Hour
)

// Survey constants
const (
	// SubmitPath is the relative endpoint survey forms post to
	SubmitPath = "/api/submit"

	// IdempotencyKeyHeader carries the form id so repeated submits of one form store a single row
	IdempotencyKeyHeader = "Idempotency-Key"

	// PageKeyHeader carries the per-process key the survey page sends with its own API calls
	PageKeyHeader = "X-Survey-Page-Key"

	// MaxShortFieldLen caps name, phone, call_time and max_attempts
	MaxShortFieldLen = 255

	// DefaultPageSize is used when a listing request omits page_size
	DefaultPageSize = 20

	// MaxPageSize bounds listing requests
	MaxPageSize = 100
)

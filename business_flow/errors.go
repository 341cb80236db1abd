// Package businessflow contains the use cases behind the survey API
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Submission errors
	ErrSubmissionInProgress = errors.New("a submission with this idempotency key is being processed")
	ErrSubmissionNotFound   = errors.New("submission not found")
	ErrInvalidSubmissionRef = errors.New("submission reference must be a numeric id or a uuid")

	// Admin errors
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAdminNotConfigured = errors.New("admin account is not configured")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsSubmissionInProgress(err error) bool {
	return errors.Is(err, ErrSubmissionInProgress)
}

func IsSubmissionNotFound(err error) bool {
	return errors.Is(err, ErrSubmissionNotFound)
}

func IsInvalidSubmissionRef(err error) bool {
	return errors.Is(err, ErrInvalidSubmissionRef)
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsAdminNotConfigured(err error) bool {
	return errors.Is(err, ErrAdminNotConfigured)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}

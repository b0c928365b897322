package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes
const (
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeInsufficientData = "INSUFFICIENT_DATA"
	CodeInProgress       = "IN_PROGRESS"
	CodeAuthRejected     = "AUTH_REJECTED"
	CodeDelivery         = "DELIVERY_ERROR"
	CodeDuplicate        = "DUPLICATE"
	CodeValidation       = "VALIDATION_ERROR"
	CodeStore            = "STORE_ERROR"
)

type ScrapeError struct {
	Message    string
	Code       string
	StatusCode int
	Context    map[string]any
	Cause      error
}

func (e *ScrapeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ScrapeError) Unwrap() error {
	return e.Cause
}

func New(message, code string) *ScrapeError {
	return &ScrapeError{
		Message: message,
		Code:    code,
	}
}

func (e *ScrapeError) WithCause(cause error) *ScrapeError {
	e.Cause = cause
	return e
}

func (e *ScrapeError) WithStatus(statusCode int) *ScrapeError {
	e.StatusCode = statusCode
	return e
}

func (e *ScrapeError) WithContext(key string, value any) *ScrapeError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func NewUnauthenticated() *ScrapeError {
	return New("Please login first. Set up credentials before extracting.", CodeUnauthenticated)
}

func NewInsufficientData() *ScrapeError {
	return New("Insufficient profile data extracted", CodeInsufficientData)
}

func NewInProgress() *ScrapeError {
	return New("Extraction in progress", CodeInProgress)
}

func NewAuthRejected(statusCode int) *ScrapeError {
	return New("Authentication failed. Please login again.", CodeAuthRejected).WithStatus(statusCode)
}

func NewDeliveryError(attempts int, cause error) *ScrapeError {
	return New(fmt.Sprintf("Failed to save profile after %d attempts", attempts), CodeDelivery).
		WithContext("attempts", attempts).
		WithCause(cause)
}

func NewDuplicate(profileURL string) *ScrapeError {
	return New("Profile already saved", CodeDuplicate).WithContext("profile_url", profileURL)
}

func NewValidationError(message, field string, value any) *ScrapeError {
	return New(message, CodeValidation).
		WithStatus(400).
		WithContext("field", field).
		WithContext("value", value)
}

func NewStoreError(message, operation string, cause error) *ScrapeError {
	return New(message, CodeStore).
		WithContext("operation", operation).
		WithCause(cause)
}

// CodeOf returns the code of the first ScrapeError in err's chain, or "".
func CodeOf(err error) string {
	var se *ScrapeError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// HasCode reports whether err's chain carries a ScrapeError with code.
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

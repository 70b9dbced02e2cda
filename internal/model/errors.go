package model

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// Sentinel errors for common cases.
// Use errors.Is() to check against these.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUpstreamError      = errors.New("upstream error")
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// BackendError is returned by every gateway operation when the commerce API
// answers with a non-success status. Body is kept verbatim; Code and Message
// are best-effort extractions for logging.
type BackendError struct {
	Operation  string
	StatusCode int
	Code       string
	Message    string
	Body       []byte
}

func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: backend status %d: %s - %s", e.Operation, e.StatusCode, e.Code, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: backend status %d: %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: backend status %d", e.Operation, e.StatusCode)
}

// Unwrap maps the status onto a sentinel so callers can use errors.Is.
func (e *BackendError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return ErrInvalidRequest
	default:
		return ErrUpstreamError
	}
}

// IsAuthorization reports whether the backend rejected the admin credential.
func (e *BackendError) IsAuthorization() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// NewBackendError builds a BackendError from a raw error response.
// The commerce API answers errors in FastAPI form:
//
//	{"detail": {"code": "...", "message": "..."}}
//	{"detail": "..."}
//	{"detail": [{"loc": [...], "msg": "...", "type": "..."}]}
func NewBackendError(operation string, statusCode int, body []byte) *BackendError {
	e := &BackendError{
		Operation:  operation,
		StatusCode: statusCode,
		Body:       body,
	}
	if !gjson.ValidBytes(body) {
		return e
	}

	detail := gjson.GetBytes(body, "detail")
	switch {
	case detail.IsObject():
		e.Code = detail.Get("code").String()
		e.Message = detail.Get("message").String()
	case detail.IsArray():
		e.Code = "VALIDATION_ERROR"
		e.Message = detail.Get("0.msg").String()
	case detail.Type == gjson.String:
		e.Message = detail.String()
	default:
		e.Code = gjson.GetBytes(body, "code").String()
		e.Message = gjson.GetBytes(body, "message").String()
	}
	return e
}

// IsAuthorizationFailure reports whether err carries a 401/403 backend response.
func IsAuthorizationFailure(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.IsAuthorization()
	}
	return false
}

// StatusCode returns the backend status carried by err, or 0 when the error
// did not come from a backend response (transport failure, parse failure).
func StatusCode(err error) int {
	var be *BackendError
	if errors.As(err, &be) {
		return be.StatusCode
	}
	return 0
}

// NewUnavailableError wraps a transport-level failure for the given operation.
func NewUnavailableError(operation string, err error) error {
	return fmt.Errorf("%s: %w: %v", operation, ErrBackendUnavailable, err)
}

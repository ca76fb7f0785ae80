package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidAppData     = errors.New("invalid app data")
	ErrSessionUnavailable = errors.New("session store unavailable")
	ErrSessionNotFound    = errors.New("session not found")
	ErrLoggingUnavailable = errors.New("diagnostic logging unavailable")
	ErrInvalidState       = errors.New("invalid auth state")

	ErrAPI    = errors.New("api request failed")
	ErrDecode = errors.New("failed to decode api response")
)

// APIError is returned when the backend answers with a 4xx or 5xx status.
// The raw body is kept so callers can tell an expired session from a bad
// request.
type APIError struct {
	StatusCode int
	Body       []byte
	Method     string
	Path       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d %s: %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), truncate(e.Body, 200))
}

func (e *APIError) Is(target error) bool {
	return target == ErrAPI
}

// IsServerError reports whether the backend classified the failure as its own.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// IsClientError reports a 4xx, which ends the session.
func (e *APIError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// DecodeError carries a response body that is not valid JSON.
type DecodeError struct {
	Body  []byte
	Cause error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%v: %v", ErrDecode, e.Cause)
	}
	return ErrDecode.Error()
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// AuthError provides context for a failed authentication flow.
type AuthError struct {
	Flow      string
	Operation string
	Cause     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("[%s] %s failed: %v", e.Flow, e.Operation, e.Cause)
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

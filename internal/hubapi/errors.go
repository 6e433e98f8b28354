package hubapi

import (
	"errors"
	"fmt"
)

// ErrMalformedCount is returned when the unread-count endpoint answers
// with something that is not a number.
var ErrMalformedCount = errors.New("hubapi: malformed unread count")

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d on %s %s", e.StatusCode, e.Method, e.Path)
	}
	return fmt.Sprintf("work hub API error (%d) on %s %s: %s", e.StatusCode, e.Method, e.Path, e.Message)
}

// IsStatus reports whether err (or any error in its chain) is an APIError
// with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// AuthError indicates that the API token was rejected.
// It is returned when a 401 response is received.
type AuthError struct {
	BaseURL string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.BaseURL, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// EnvelopeError is returned when the backend wraps its answer in an
// envelope with success set to false.
type EnvelopeError struct {
	Message string
}

func (e *EnvelopeError) Error() string {
	if e.Message == "" {
		return "work hub request failed"
	}
	return e.Message
}

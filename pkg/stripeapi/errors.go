package stripeapi

import (
	"errors"
	"fmt"
)

// AuthError indicates the API key was rejected (401/403). The call will
// keep failing until the credential is rotated; the scheduler logs it
// and keeps serving the last good snapshot.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("stripe: authentication failed (status %d): %s", e.StatusCode, e.Message)
}

// RetryableError indicates a transient failure (rate limit, server
// error, or transport problem) that the next scheduled cycle may not hit.
type RetryableError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *RetryableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stripe: transient failure: %v", e.Err)
	}
	return fmt.Sprintf("stripe: transient failure (status %d): %s", e.StatusCode, e.Message)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// ParseError indicates a response was missing a required field or could
// not be decoded at all.
type ParseError struct {
	Resource string
	Field    string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stripe: malformed %s response: %v", e.Resource, e.Err)
	}
	return fmt.Sprintf("stripe: %s response missing required field %q", e.Resource, e.Field)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err is (or wraps) an AuthError
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsRetryable reports whether err is (or wraps) a RetryableError
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// classifyStatus maps a non-2xx HTTP status to a typed error
func classifyStatus(status int, body string) error {
	switch {
	case status == 401 || status == 403:
		return &AuthError{StatusCode: status, Message: body}
	case status == 429 || status >= 500:
		return &RetryableError{StatusCode: status, Message: body}
	default:
		return fmt.Errorf("stripe: unexpected status %d: %s", status, body)
	}
}

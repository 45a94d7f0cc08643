package api

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned when a query is attempted before Login,
// or after the server invalidated the session.
var ErrNotAuthenticated = errors.New("not authenticated: login required")

// AuthError reports a rejected login or a session the server no longer accepts.
//
// Expired is true when a query came back 401 or 440. The client has already
// cleared its session; the caller must Login again. The client never retries.
type AuthError struct {
	StatusCode int
	Expired    bool
	Body       string
}

func (e *AuthError) Error() string {
	if e.Expired {
		return fmt.Sprintf("session expired (status %d)", e.StatusCode)
	}
	if e.Body == "" {
		return fmt.Sprintf("authentication failed (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("authentication failed (status %d): %s", e.StatusCode, e.Body)
}

// APIError reports an unexpected HTTP status from the server.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed with status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// ParseError reports a response body that could not be decoded.
type ParseError struct {
	Operation string
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s response: %v", e.Operation, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// InvalidMessageError reports an ingestion message whose positional field
// does not fit inside the message text.
type InvalidMessageError struct {
	Field  string
	Reason string
}

func (e *InvalidMessageError) Error() string {
	return fmt.Sprintf("invalid message field %q: %s", e.Field, e.Reason)
}

// IsAuthError returns true if err is or wraps an *AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsSessionExpired returns true if err reports a session the server rejected.
func IsSessionExpired(err error) bool {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Expired
	}
	return false
}

// IsAPIError returns true if err is or wraps an *APIError.
func IsAPIError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}

// IsParseError returns true if err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsInvalidMessage returns true if err is or wraps an *InvalidMessageError.
func IsInvalidMessage(err error) bool {
	var me *InvalidMessageError
	return errors.As(err, &me)
}

// Package apperrors provides common error types and static errors used throughout the application.
package apperrors

import (
	"errors"
	"fmt"
)

// AuthenticationError indicates the Notion API rejected our credentials (HTTP 401/403).
// It is fatal to the configuration attempt and never retried.
type AuthenticationError struct {
	StatusCode int
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("invalid credentials (HTTP %d)", e.StatusCode)
}

// NewAuthenticationError creates a new AuthenticationError.
func NewAuthenticationError(statusCode int) *AuthenticationError {
	return &AuthenticationError{StatusCode: statusCode}
}

// IsAuthentication reports whether err (possibly wrapped) is an AuthenticationError.
func IsAuthentication(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// CommunicationError indicates a transport-level failure (timeout, DNS, socket).
// The next poll cycle retries naturally; a single call never retries.
type CommunicationError struct {
	Err error
}

// Error implements the error interface.
func (e *CommunicationError) Error() string {
	return fmt.Sprintf("communication error: %v", e.Err)
}

// Unwrap returns the underlying transport error.
func (e *CommunicationError) Unwrap() error {
	return e.Err
}

// NewCommunicationError wraps a transport error.
func NewCommunicationError(err error) *CommunicationError {
	return &CommunicationError{Err: err}
}

// IsCommunication reports whether err (possibly wrapped) is a CommunicationError.
func IsCommunication(err error) bool {
	var commErr *CommunicationError
	return errors.As(err, &commErr)
}

// HTTPError represents a non-2xx HTTP response not covered by a more specific error.
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// NewHTTPError creates a new HTTPError.
func NewHTTPError(statusCode int, body string) *HTTPError {
	return &HTTPError{StatusCode: statusCode, Body: body}
}

// Common static errors used throughout the application.
var (
	// ErrPropertyNotFound is returned when no property with the requested id exists on a page.
	ErrPropertyNotFound = errors.New("property not found")

	// ErrUnsupportedPropertyType is returned when a value cannot be written to a property type.
	ErrUnsupportedPropertyType = errors.New("unsupported property type for write")

	// ErrTokenRequired is returned when a Notion token is required but not provided.
	ErrTokenRequired = errors.New("notion token required (--token or NTODO_TOKEN env var)")

	// ErrDatabaseIDRequired is returned when a database ID is required but not provided.
	ErrDatabaseIDRequired = errors.New("database ID required (--database or NTODO_DATABASE_ID env var)")

	// ErrInvalidDatabaseID is returned when the configured database ID is not a valid Notion ID.
	ErrInvalidDatabaseID = errors.New("invalid database ID (expected a UUID, with or without dashes)")

	// ErrNotPolled is returned when the task list is requested before the first successful poll.
	ErrNotPolled = errors.New("task list not fetched yet")

	// ErrTaskUIDRequired is returned when a task UID is required but not provided.
	ErrTaskUIDRequired = errors.New("task UID required")

	// ErrSummaryRequired is returned when a task summary is required but not provided.
	ErrSummaryRequired = errors.New("task summary required")

	// ErrNoTemplateTitle is returned when the database schema has no title property.
	ErrNoTemplateTitle = errors.New("database schema has no title property")

	// ErrEmptyUpdate is returned when an update contains no fields to change.
	ErrEmptyUpdate = errors.New("nothing to update")
)

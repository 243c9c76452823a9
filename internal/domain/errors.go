package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error codes surfaced to API callers.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeAuthorization = "AUTHORIZATION_ERROR"
	CodeStateConflict = "STATE_CONFLICT"
	CodeNotFound      = "NOT_FOUND"
	CodeAuthenticate  = "AUTHENTICATION_ERROR"
	CodeRateLimit     = "RATE_LIMIT_EXCEEDED"
	CodeInternal      = "INTERNAL_SERVER_ERROR"
)

// ErrNotFound is matched by every NotFoundError via errors.Is.
var ErrNotFound = errors.New("not found")

// Problem is one unmet requirement reported by a ValidationError.
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every unmet requirement found, never just the first.
type ValidationError struct {
	Problems []Problem `json:"problems"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("%s: %s", p.Field, p.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Code returns the stable error code.
func (e *ValidationError) Code() string { return CodeValidation }

// Add records another unmet requirement.
func (e *ValidationError) Add(field, message string) {
	e.Problems = append(e.Problems, Problem{Field: field, Message: message})
}

// OrNil returns e when it holds problems and nil otherwise.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Problems) == 0 {
		return nil
	}
	return e
}

// NewValidationError creates a ValidationError with a single problem.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Problems: []Problem{{Field: field, Message: message}}}
}

// AuthorizationError is returned when the actor's role or ownership does not
// permit the action.
type AuthorizationError struct {
	Action  string
	ActorID string
	Reason  string
}

// Error implements the error interface
func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %s may not %s: %s", e.ActorID, e.Action, e.Reason)
}

// Code returns the stable error code.
func (e *AuthorizationError) Code() string { return CodeAuthorization }

// NewAuthorizationError creates an AuthorizationError.
func NewAuthorizationError(action string, actor Actor, reason string) *AuthorizationError {
	return &AuthorizationError{Action: action, ActorID: actor.ID, Reason: reason}
}

// StateConflictError is returned when the assessment's status does not allow
// the action.
type StateConflictError struct {
	Action string
	Status Status
	Reason string
}

// Error implements the error interface
func (e *StateConflictError) Error() string {
	return fmt.Sprintf("cannot %s assessment in status %s: %s", e.Action, e.Status, e.Reason)
}

// Code returns the stable error code.
func (e *StateConflictError) Code() string { return CodeStateConflict }

// NewStateConflictError creates a StateConflictError.
func NewStateConflictError(action string, status Status, reason string) *StateConflictError {
	return &StateConflictError{Action: action, Status: status, Reason: reason}
}

// NotFoundError is returned for unknown or soft-deleted ids.
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Code returns the stable error code.
func (e *NotFoundError) Code() string { return CodeNotFound }

// Is makes errors.Is(err, ErrNotFound) true.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// CodeOf returns the stable code of err, or CodeInternal for untyped errors.
func CodeOf(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return CodeInternal
}

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Problems  []Problem `json:"problems,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// Package services implements the application operations over workflows and
// automation rules: CRUD with invariant re-checks, transition validation and
// rule definition validation.
package services

import (
	"errors"
	"fmt"

	"github.com/taskloom/taskloom/pkg/persistence"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest       = errors.New("invalid request")
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrInvalidStateCategory = errors.New("invalid state category")
	ErrInvalidTriggerType   = errors.New("invalid trigger type")
	ErrInvalidRuleSchema    = errors.New("rule definition does not match schema")
	ErrGraphInvariantBroken = errors.New("change would break workflow invariants")

	// Business logic conflicts (409 Conflict).
	ErrSystemWorkflowImmutable = errors.New("system workflows cannot be modified")
	ErrWorkflowInUse           = errors.New("workflow is assigned to projects")
	ErrStateInUse              = errors.New("state is referenced by transitions")
	ErrDuplicateName           = persistence.ErrDuplicateName
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrInvalidStateCategory) ||
		errors.Is(err, ErrInvalidTriggerType) ||
		errors.Is(err, ErrInvalidRuleSchema) ||
		errors.Is(err, ErrGraphInvariantBroken)
}

// IsConflictError checks if an error should map to HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrSystemWorkflowImmutable) ||
		errors.Is(err, ErrWorkflowInUse) ||
		errors.Is(err, ErrStateInUse) ||
		errors.Is(err, ErrDuplicateName)
}

// IsNotFoundError checks if an error should map to HTTP 404.
func IsNotFoundError(err error) bool {
	return persistence.IsWorkflowNotFound(err) ||
		persistence.IsStateNotFound(err) ||
		persistence.IsTransitionNotFound(err) ||
		persistence.IsRuleNotFound(err)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrStateNotFound indicates a workflow state was not found by the given identifier.
	ErrStateNotFound = errors.New("workflow state not found")

	// ErrTransitionNotFound indicates a workflow transition was not found by the given identifier.
	ErrTransitionNotFound = errors.New("workflow transition not found")

	// ErrRuleNotFound indicates an automation rule was not found by the given identifier.
	ErrRuleNotFound = errors.New("automation rule not found")

	// ErrDuplicateName indicates a unique name constraint was violated.
	ErrDuplicateName = errors.New("name already in use")
)

// RepositoryError wraps repository errors with operation context.
type RepositoryError struct {
	Op       string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	EntityID string // Entity ID if applicable
	Err      error  // Underlying error
}

func (e *RepositoryError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.EntityID, e.Err)
	}

	return fmt.Sprintf("%s operation failed: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

func (e *RepositoryError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRepositoryError creates a repository error with context.
func NewRepositoryError(op, entityID string, err error) *RepositoryError {
	return &RepositoryError{Op: op, EntityID: entityID, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsStateNotFound checks if an error indicates a workflow state was not found.
func IsStateNotFound(err error) bool {
	return errors.Is(err, ErrStateNotFound)
}

// IsTransitionNotFound checks if an error indicates a workflow transition was not found.
func IsTransitionNotFound(err error) bool {
	return errors.Is(err, ErrTransitionNotFound)
}

// IsRuleNotFound checks if an error indicates an automation rule was not found.
func IsRuleNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}

// IsNotFound checks for any of the not-found sentinels.
func IsNotFound(err error) bool {
	return IsWorkflowNotFound(err) || IsStateNotFound(err) || IsTransitionNotFound(err) || IsRuleNotFound(err)
}

// IsDuplicateName checks if an error indicates a unique name violation.
func IsDuplicateName(err error) bool {
	return errors.Is(err, ErrDuplicateName)
}

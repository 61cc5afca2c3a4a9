// Package models defines the core domain models for workflow definitions and task automation.
package models

import "time"

// StateCategory classifies a workflow state for reporting and board grouping.
type StateCategory string

const (
	CategoryTodo       StateCategory = "todo"
	CategoryInProgress StateCategory = "in_progress"
	CategoryDone       StateCategory = "done"
	CategoryCancelled  StateCategory = "cancelled"
)

// Valid reports whether the category is one of the known values.
func (c StateCategory) Valid() bool {
	switch c {
	case CategoryTodo, CategoryInProgress, CategoryDone, CategoryCancelled:
		return true
	default:
		return false
	}
}

// Workflow is a named definition of states and transitions governing task
// status flow. A workflow is either organization-wide (ProjectID nil) or
// scoped to a single project.
type Workflow struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id" validate:"required"`
	ProjectID      *string    `json:"project_id,omitempty"`
	Name           string     `json:"name"            validate:"required,min=3,max=255"`
	Description    string     `json:"description"`
	IsDefault      bool       `json:"is_default"`
	IsSystem       bool       `json:"is_system"`
	IsActive       bool       `json:"is_active"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// WorkflowState is a single status within a workflow.
type WorkflowState struct {
	ID           string        `json:"id"`
	WorkflowID   string        `json:"workflow_id"`
	Name         string        `json:"name"     validate:"required,min=1,max=100"`
	Description  string        `json:"description"`
	Category     StateCategory `json:"category" validate:"required"`
	Color        string        `json:"color"`
	IsInitial    bool          `json:"is_initial"`
	IsFinal      bool          `json:"is_final"`
	DisplayOrder int           `json:"display_order"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// WorkflowTransition is an allowed directed edge between two states of the
// same workflow. Conditions are guard predicates evaluated against the
// {task, actor} snapshot at decision time.
type WorkflowTransition struct {
	ID              string      `json:"id"`
	WorkflowID      string      `json:"workflow_id"`
	FromStateID     string      `json:"from_state_id" validate:"required"`
	ToStateID       string      `json:"to_state_id"   validate:"required"`
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	Conditions      []Condition `json:"conditions,omitempty"`
	RequiresComment bool        `json:"requires_comment"`
	DisplayOrder    int         `json:"display_order"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/taskloom/taskloom/pkg/models"

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	OrganizationID string  `json:"organization_id" validate:"required"`
	ProjectID      *string `json:"project_id,omitempty"`
	Name           string  `json:"name"            validate:"required,min=3,max=255"`
	Description    string  `json:"description"`
	IsDefault      bool    `json:"is_default"`
	CreatedBy      string  `json:"created_by"`
}

// UpdateWorkflowRequest represents the request body for updating an existing
// workflow. All fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=3,max=255"`
	Description *string `json:"description,omitempty"`
	IsDefault   *bool   `json:"is_default,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// DuplicateWorkflowRequest represents the request body for duplicating a workflow.
type DuplicateWorkflowRequest struct {
	Name      string `json:"name,omitempty" validate:"omitempty,min=3,max=255"`
	CreatedBy string `json:"created_by"`
}

// CreateStateRequest represents the request body for adding a workflow state.
type CreateStateRequest struct {
	Name         string `json:"name"          validate:"required,min=1,max=100"`
	Description  string `json:"description"`
	Category     string `json:"category"      validate:"required,oneof=todo in_progress done cancelled"`
	Color        string `json:"color"`
	IsInitial    bool   `json:"is_initial"`
	IsFinal      bool   `json:"is_final"`
	DisplayOrder int    `json:"display_order"`
}

// UpdateStateRequest represents the request body for updating a workflow state.
type UpdateStateRequest struct {
	Name        *string `json:"name,omitempty"     validate:"omitempty,min=1,max=100"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty" validate:"omitempty,oneof=todo in_progress done cancelled"`
	Color       *string `json:"color,omitempty"`
	IsInitial   *bool   `json:"is_initial,omitempty"`
	IsFinal     *bool   `json:"is_final,omitempty"`
}

// ReorderStatesRequest represents the request body for reordering states.
// StateIDs must contain exactly the workflow's state IDs in the new order.
type ReorderStatesRequest struct {
	StateIDs []string `json:"state_ids" validate:"required,min=1"`
}

// CreateTransitionRequest represents the request body for adding a transition.
type CreateTransitionRequest struct {
	FromStateID     string             `json:"from_state_id" validate:"required"`
	ToStateID       string             `json:"to_state_id"   validate:"required"`
	Name            string             `json:"name"`
	Description     string             `json:"description"`
	Conditions      []models.Condition `json:"conditions,omitempty"`
	RequiresComment bool               `json:"requires_comment"`
	DisplayOrder    int                `json:"display_order"`
}

// UpdateTransitionRequest represents the request body for updating a
// transition. Endpoints are immutable; delete and recreate to rewire.
type UpdateTransitionRequest struct {
	Name            *string            `json:"name,omitempty"`
	Description     *string            `json:"description,omitempty"`
	Conditions      []models.Condition `json:"conditions,omitempty"`
	RequiresComment *bool              `json:"requires_comment,omitempty"`
	DisplayOrder    *int               `json:"display_order,omitempty"`
}

// ValidateTransitionRequest represents the request body for checking whether
// a state change is allowed for a task.
type ValidateTransitionRequest struct {
	OrganizationID string         `json:"organization_id" validate:"required"`
	ProjectID      string         `json:"project_id"`
	FromStateID    string         `json:"from_state_id"   validate:"required"`
	ToStateID      string         `json:"to_state_id"     validate:"required"`
	Snapshot       map[string]any `json:"snapshot"`
	Comment        string         `json:"comment"`
}

// CreateRuleRequest represents the request body for creating an automation rule.
type CreateRuleRequest struct {
	Name          string                    `json:"name"         validate:"required,min=1,max=255"`
	Description   string                    `json:"description"`
	TriggerType   string                    `json:"trigger_type" validate:"required"`
	TriggerConfig map[string]any            `json:"trigger_config,omitempty"`
	Conditions    []models.Condition        `json:"conditions,omitempty"`
	Actions       []models.ActionDescriptor `json:"actions"      validate:"required,min=1"`
	IsActive      bool                      `json:"is_active"`
	Priority      int                       `json:"priority"`
	CreatedBy     string                    `json:"created_by"`
}

// UpdateRuleRequest represents the request body for updating an automation rule.
type UpdateRuleRequest struct {
	Name          *string                   `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description   *string                   `json:"description,omitempty"`
	TriggerType   *string                   `json:"trigger_type,omitempty"`
	TriggerConfig map[string]any            `json:"trigger_config,omitempty"`
	Conditions    []models.Condition        `json:"conditions,omitempty"`
	Actions       []models.ActionDescriptor `json:"actions,omitempty"`
	IsActive      *bool                     `json:"is_active,omitempty"`
	Priority      *int                      `json:"priority,omitempty"`
}

package models

import "time"

// TriggerType is the category of domain event an automation rule listens for.
type TriggerType string

const (
	TriggerTaskCreated        TriggerType = "task_created"
	TriggerTaskUpdated        TriggerType = "task_updated"
	TriggerStatusChanged      TriggerType = "status_changed"
	TriggerTaskAssigned       TriggerType = "task_assigned"
	TriggerCommentAdded       TriggerType = "comment_added"
	TriggerAttachmentAdded    TriggerType = "attachment_added"
	TriggerDueDateApproaching TriggerType = "due_date_approaching"
	TriggerDueDatePassed      TriggerType = "due_date_passed"
)

// TriggerTypes lists all known trigger types in a stable order.
func TriggerTypes() []TriggerType {
	return []TriggerType{
		TriggerTaskCreated,
		TriggerTaskUpdated,
		TriggerStatusChanged,
		TriggerTaskAssigned,
		TriggerCommentAdded,
		TriggerAttachmentAdded,
		TriggerDueDateApproaching,
		TriggerDueDatePassed,
	}
}

// Valid reports whether the trigger type is one of the known values.
func (t TriggerType) Valid() bool {
	for _, known := range TriggerTypes() {
		if t == known {
			return true
		}
	}

	return false
}

// AutomationRule is a trigger + conditions + actions tuple owned by a
// workflow. Execution updates ExecutionCount and LastExecutedAt through
// atomic persistence increments; nothing else on the rule is mutated by the
// engine.
type AutomationRule struct {
	ID            string             `json:"id"`
	WorkflowID    string             `json:"workflow_id"  validate:"required"`
	Name          string             `json:"name"         validate:"required,min=1,max=255"`
	Description   string             `json:"description"`
	TriggerType   TriggerType        `json:"trigger_type" validate:"required"`
	TriggerConfig map[string]any     `json:"trigger_config,omitempty"`
	Conditions    []Condition        `json:"conditions,omitempty"`
	Actions       []ActionDescriptor `json:"actions"`
	IsActive      bool               `json:"is_active"`
	Priority      int                `json:"priority"`
	CreatedBy     string             `json:"created_by"`

	ExecutionCount int64      `json:"execution_count"`
	LastExecutedAt *time.Time `json:"last_executed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

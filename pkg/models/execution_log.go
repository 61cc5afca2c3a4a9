package models

import "time"

// ExecutionStatus is the terminal status of one rule firing or transition
// attempt. Partial success (some actions failed, some succeeded) is a valid
// terminal state distinct from success and failed.
type ExecutionStatus string

const (
	ExecutionStatusFired          ExecutionStatus = "fired"
	ExecutionStatusSkipped        ExecutionStatus = "skipped"
	ExecutionStatusPartial        ExecutionStatus = "partial"
	ExecutionStatusFailed         ExecutionStatus = "failed"
	ExecutionStatusRecursionLimit ExecutionStatus = "recursion_limit_exceeded"
)

// ExecutionLogEntry is an immutable audit record of one rule evaluation.
// Entries are created only by the engine and never updated.
type ExecutionLogEntry struct {
	ID             string          `json:"id"`
	RuleID         string          `json:"rule_id"`
	RuleName       string          `json:"rule_name"`
	WorkflowID     string          `json:"workflow_id"`
	OrganizationID string          `json:"organization_id"`
	TaskID         string          `json:"task_id,omitempty"`
	TriggerType    TriggerType     `json:"trigger_type"`
	Snapshot       map[string]any  `json:"snapshot,omitempty"`
	ConditionsMet  bool            `json:"conditions_met"`
	Status         ExecutionStatus `json:"status"`
	Reason         string          `json:"reason,omitempty"`
	ActionResults  []ActionResult  `json:"action_results,omitempty"`
	Error          string          `json:"error,omitempty"`
	Depth          int             `json:"depth"`
	StartedAt      time.Time       `json:"started_at"`
	DurationMs     int64           `json:"duration_ms"`
}

// Fired reports whether the rule's conditions were met and its actions ran.
func (e *ExecutionLogEntry) Fired() bool {
	return e.Status == ExecutionStatusFired || e.Status == ExecutionStatusPartial || e.Status == ExecutionStatusFailed
}

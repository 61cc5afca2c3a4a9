package models

// ActionType identifies one of the closed set of automation actions.
type ActionType string

const (
	ActionSetField         ActionType = "set_field"
	ActionAddComment       ActionType = "add_comment"
	ActionSendNotification ActionType = "send_notification"
	ActionAssignTo         ActionType = "assign_to"
	ActionTriggerWebhook   ActionType = "trigger_webhook"
)

// ActionDescriptor declares one action of a rule or transition. Only the
// fields relevant to the action's type are consulted; unknown types are
// executed as failures, never as errors that escape the engine.
type ActionDescriptor struct {
	Type ActionType `json:"type"`

	// set_field
	Field string `json:"field,omitempty"`
	Value any    `json:"value,omitempty"`

	// add_comment
	Text string `json:"text,omitempty"`

	// send_notification / assign_to
	UserID   string         `json:"user_id,omitempty"`
	Template string         `json:"template,omitempty"`
	Data     map[string]any `json:"data,omitempty"`

	// trigger_webhook
	WebhookID string `json:"webhook_id,omitempty"`
}

// ActionStatus is the terminal status of a single action execution.
type ActionStatus string

const (
	ActionStatusSuccess ActionStatus = "success"
	ActionStatusFailed  ActionStatus = "failed"
)

// ActionResult records the outcome of dispatching one action descriptor.
type ActionResult struct {
	Type       ActionType   `json:"type"`
	Status     ActionStatus `json:"status"`
	Detail     string       `json:"detail,omitempty"`
	DurationMs int64        `json:"duration_ms"`
}

// Package automation implements the rule engine: trigger dispatch, condition
// evaluation, action execution and audit logging.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskloom/taskloom/pkg/models"
	"github.com/taskloom/taskloom/pkg/protocol"
)

// AutomationActorID is the author recorded for comments created by rules.
const AutomationActorID = "automation"

const defaultActionTimeout = 10 * time.Second

// Collaborators groups the external services actions delegate to.
type Collaborators struct {
	Tasks    protocol.TaskMutator
	Comments protocol.CommentService
	Notifier protocol.Notifier
	Webhooks protocol.WebhookDispatcher
}

// ExecutionContext carries the event data one action executes under.
type ExecutionContext struct {
	OrganizationID string
	ProjectID      string
	TaskID         string
	TriggerType    models.TriggerType
	Snapshot       map[string]any
}

// InducedEvent describes a follow-up domain event produced by a successful
// action, fed back into dispatch under the recursion bound.
type InducedEvent struct {
	Trigger models.TriggerType
	TaskID  string
}

// ActionExecutor dispatches declarative action descriptors to collaborators.
// Failures are returned as results, never as panics or errors that escape
// the engine; a failing action does not abort its siblings.
type ActionExecutor struct {
	collaborators Collaborators
	timeout       time.Duration
	logger        *slog.Logger
}

// NewActionExecutor creates an executor with the default per-action deadline.
func NewActionExecutor(collaborators Collaborators, logger *slog.Logger) *ActionExecutor {
	if logger == nil {
		logger = slog.Default()
	}

	return &ActionExecutor{
		collaborators: collaborators,
		timeout:       defaultActionTimeout,
		logger:        logger.With("module", "action_executor"),
	}
}

// WithTimeout overrides the per-action deadline.
func (x *ActionExecutor) WithTimeout(timeout time.Duration) *ActionExecutor {
	x.timeout = timeout

	return x
}

// Execute runs one action and reports its outcome plus any induced event.
// A timed-out action is recorded as failed and is not retried here; retry
// policy belongs to the collaborator.
func (x *ActionExecutor) Execute(ctx context.Context, action models.ActionDescriptor, execCtx ExecutionContext) (models.ActionResult, *InducedEvent) {
	started := time.Now()

	actionCtx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	induced, err := x.dispatch(actionCtx, action, execCtx)

	result := models.ActionResult{
		Type:       action.Type,
		Status:     models.ActionStatusSuccess,
		DurationMs: time.Since(started).Milliseconds(),
	}

	if err != nil {
		result.Status = models.ActionStatusFailed
		result.Detail = err.Error()

		if errors.Is(err, context.DeadlineExceeded) {
			result.Detail = "timeout"
		}

		x.logger.WarnContext(ctx, "Action failed",
			"action_type", string(action.Type),
			"task_id", execCtx.TaskID,
			"error", err,
		)

		return result, nil
	}

	return result, induced
}

func (x *ActionExecutor) dispatch(ctx context.Context, action models.ActionDescriptor, execCtx ExecutionContext) (*InducedEvent, error) {
	switch action.Type {
	case models.ActionSetField:
		return x.setField(ctx, action, execCtx)
	case models.ActionAddComment:
		return x.addComment(ctx, action, execCtx)
	case models.ActionSendNotification:
		return nil, x.sendNotification(ctx, action, execCtx)
	case models.ActionAssignTo:
		return x.assignTo(ctx, action, execCtx)
	case models.ActionTriggerWebhook:
		return nil, x.triggerWebhook(ctx, action, execCtx)
	default:
		return nil, errors.New("unsupported action type")
	}
}

func (x *ActionExecutor) setField(ctx context.Context, action models.ActionDescriptor, execCtx ExecutionContext) (*InducedEvent, error) {
	if x.collaborators.Tasks == nil {
		return nil, errors.New("task mutator not configured")
	}

	if action.Field == "" {
		return nil, errors.New("set_field requires a field name")
	}

	err := x.collaborators.Tasks.SetField(ctx, execCtx.TaskID, action.Field, action.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to set field %s: %w", action.Field, err)
	}

	induced := &InducedEvent{Trigger: models.TriggerTaskUpdated, TaskID: execCtx.TaskID}
	if action.Field == "status" {
		induced.Trigger = models.TriggerStatusChanged
	}

	return induced, nil
}

func (x *ActionExecutor) addComment(ctx context.Context, action models.ActionDescriptor, execCtx ExecutionContext) (*InducedEvent, error) {
	if x.collaborators.Comments == nil {
		return nil, errors.New("comment service not configured")
	}

	if action.Text == "" {
		return nil, errors.New("add_comment requires text")
	}

	err := x.collaborators.Comments.AddComment(ctx, execCtx.TaskID, AutomationActorID, action.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}

	return &InducedEvent{Trigger: models.TriggerCommentAdded, TaskID: execCtx.TaskID}, nil
}

func (x *ActionExecutor) sendNotification(ctx context.Context, action models.ActionDescriptor, execCtx ExecutionContext) error {
	if x.collaborators.Notifier == nil {
		return errors.New("notifier not configured")
	}

	if action.UserID == "" {
		return errors.New("send_notification requires a user ID")
	}

	data := action.Data
	if data == nil {
		data = execCtx.Snapshot
	}

	err := x.collaborators.Notifier.Notify(ctx, action.UserID, action.Template, data)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	return nil
}

func (x *ActionExecutor) assignTo(ctx context.Context, action models.ActionDescriptor, execCtx ExecutionContext) (*InducedEvent, error) {
	if x.collaborators.Tasks == nil {
		return nil, errors.New("task mutator not configured")
	}

	if action.UserID == "" {
		return nil, errors.New("assign_to requires a user ID")
	}

	err := x.collaborators.Tasks.Assign(ctx, execCtx.TaskID, action.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to assign task: %w", err)
	}

	return &InducedEvent{Trigger: models.TriggerTaskAssigned, TaskID: execCtx.TaskID}, nil
}

func (x *ActionExecutor) triggerWebhook(ctx context.Context, action models.ActionDescriptor, execCtx ExecutionContext) error {
	if x.collaborators.Webhooks == nil {
		return errors.New("webhook dispatcher not configured")
	}

	if action.WebhookID == "" {
		return errors.New("trigger_webhook requires a webhook ID")
	}

	payload := map[string]any{
		"organization_id": execCtx.OrganizationID,
		"task_id":         execCtx.TaskID,
		"trigger_type":    string(execCtx.TriggerType),
		"snapshot":        execCtx.Snapshot,
	}

	if execCtx.ProjectID != "" {
		payload["project_id"] = execCtx.ProjectID
	}

	err := x.collaborators.Webhooks.Enqueue(ctx, action.WebhookID, string(execCtx.TriggerType), payload)
	if err != nil {
		return fmt.Errorf("failed to enqueue webhook delivery: %w", err)
	}

	return nil
}

// Package protocol defines the interfaces between the workflow core and its
// external collaborators. The engine only decides; side effects are carried
// out behind these contracts.
package protocol

import (
	"context"
	"time"
)

// TaskMutator applies field-level changes to tasks and produces the event
// snapshots the engine evaluates against. GetSnapshot returns the full
// evaluation snapshot with the task record under the "task" key.
type TaskMutator interface {
	SetField(ctx context.Context, taskID, field string, value any) error
	Assign(ctx context.Context, taskID, userID string) error
	GetSnapshot(ctx context.Context, taskID string) (map[string]any, error)
}

// CommentService appends comments to tasks.
type CommentService interface {
	AddComment(ctx context.Context, taskID, authorID, text string) error
}

// Notifier delivers templated notifications to users. Delivery channels are
// outside the core.
type Notifier interface {
	Notify(ctx context.Context, userID, template string, data map[string]any) error
}

// WebhookDispatcher enqueues webhook deliveries. The queue consumer owns
// HTTP delivery, retries and backoff.
type WebhookDispatcher interface {
	Enqueue(ctx context.Context, webhookID, eventType string, payload map[string]any) error
}

// TaskQuerier exposes the due-date views the monitor scans. Rows are raw
// task records; the monitor wraps them into event snapshots.
type TaskQuerier interface {
	DueWithin(ctx context.Context, window time.Duration) ([]map[string]any, error)
	Overdue(ctx context.Context) ([]map[string]any, error)
}

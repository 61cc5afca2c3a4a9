// Package events defines the domain events that drive automation rule dispatch.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/taskloom/taskloom/pkg/models"
)

type EventType string

// Topic is the bus topic task events are published on.
const Topic = "taskloom.task.events"

const (
	EventMetadataKey     = "key"
	EventTypeMetadataKey = "event_type"

	// DepthMetadataKey carries the automation dispatch depth when an event
	// was induced by a rule action, so the recursion bound survives
	// asynchronous re-dispatch through the bus.
	DepthMetadataKey = "dispatch_depth"
)

const (
	TaskCreatedEvent        EventType = "task.created"
	TaskUpdatedEvent        EventType = "task.updated"
	TaskStatusChangedEvent  EventType = "task.status_changed"
	TaskAssignedEvent       EventType = "task.assigned"
	CommentAddedEvent       EventType = "task.comment_added"
	AttachmentAddedEvent    EventType = "task.attachment_added"
	DueDateApproachingEvent EventType = "task.due_date.approaching"
	DueDatePassedEvent      EventType = "task.due_date.passed"
)

// TriggerType maps an event type onto the rule trigger it activates.
func (t EventType) TriggerType() (models.TriggerType, bool) {
	switch t {
	case TaskCreatedEvent:
		return models.TriggerTaskCreated, true
	case TaskUpdatedEvent:
		return models.TriggerTaskUpdated, true
	case TaskStatusChangedEvent:
		return models.TriggerStatusChanged, true
	case TaskAssignedEvent:
		return models.TriggerTaskAssigned, true
	case CommentAddedEvent:
		return models.TriggerCommentAdded, true
	case AttachmentAddedEvent:
		return models.TriggerAttachmentAdded, true
	case DueDateApproachingEvent:
		return models.TriggerDueDateApproaching, true
	case DueDatePassedEvent:
		return models.TriggerDueDatePassed, true
	default:
		return "", false
	}
}

// EventTypeFor is the inverse mapping, used when actions induce new events.
func EventTypeFor(trigger models.TriggerType) (EventType, bool) {
	for _, eventType := range []EventType{
		TaskCreatedEvent, TaskUpdatedEvent, TaskStatusChangedEvent,
		TaskAssignedEvent, CommentAddedEvent, AttachmentAddedEvent,
		DueDateApproachingEvent, DueDatePassedEvent,
	} {
		if mapped, ok := eventType.TriggerType(); ok && mapped == trigger {
			return eventType, true
		}
	}

	return "", false
}

type BaseEvent struct {
	ID             string         `json:"id"`
	Type           EventType      `json:"type"`
	Timestamp      time.Time      `json:"timestamp"`
	OrganizationID string         `json:"organization_id"`
	ProjectID      string         `json:"project_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// TaskEvent is a task-scoped domain event. Snapshot carries the task (and,
// when relevant, actor) data rules evaluate against; it is captured at
// publish time and never re-read.
type TaskEvent struct {
	BaseEvent

	TaskID   string         `json:"task_id"`
	Snapshot map[string]any `json:"snapshot,omitempty"`

	// Depth is non-zero for events induced by automation actions.
	Depth int `json:"depth,omitempty"`
}

func (t TaskEvent) GetType() EventType {
	return t.Type
}

// NewTaskEvent builds a task event with a fresh ID and UTC timestamp.
func NewTaskEvent(eventType EventType, organizationID, projectID, taskID string, snapshot map[string]any) TaskEvent {
	return TaskEvent{
		BaseEvent: BaseEvent{
			ID:             uuid.New().String(),
			Type:           eventType,
			Timestamp:      time.Now().UTC(),
			OrganizationID: organizationID,
			ProjectID:      projectID,
			Metadata:       make(map[string]any),
		},
		TaskID:   taskID,
		Snapshot: snapshot,
	}
}

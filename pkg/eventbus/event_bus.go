// Package eventbus provides publish/subscribe transport for task domain events.
package eventbus

import (
	"context"

	"github.com/taskloom/taskloom/pkg/events"
)

// EventHandler processes one task event. Returning an error nacks the
// message so the transport can redeliver (at-least-once).
type EventHandler func(ctx context.Context, event *events.TaskEvent) error

// EventBus publishes and consumes task domain events.
type EventBus interface {
	GenerateID() string
	Publish(ctx context.Context, key string, event events.TaskEvent) error
	Handle(eventType events.EventType, handler EventHandler)
	Subscribe(ctx context.Context) error
	Close() error
}

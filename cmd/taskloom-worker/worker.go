package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/taskloom/taskloom/pkg/automation"
	"github.com/taskloom/taskloom/pkg/duedate"
	"github.com/taskloom/taskloom/pkg/eventbus"
	"github.com/taskloom/taskloom/pkg/events"
	"github.com/taskloom/taskloom/pkg/models"
)

// Worker consumes task domain events off the bus and runs rule dispatch for
// each, keeping automation off the request path of the tracker itself.
type Worker struct {
	id       string
	engine   *automation.Engine
	eventBus eventbus.EventBus
	monitor  *duedate.Monitor
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewWorker creates a worker. monitor may be nil when no task service is
// configured; due-date events then come only from external publishers.
func NewWorker(id string, engine *automation.Engine, bus eventbus.EventBus, monitor *duedate.Monitor, logger *slog.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		id:       id,
		engine:   engine,
		eventBus: bus,
		monitor:  monitor,
		logger:   logger.With("module", "automation_worker", "worker_id", id),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to all task event types and blocks until SIGINT/SIGTERM.
func (w *Worker) Start() error {
	w.logger.Info("Starting worker subscriptions")

	for _, eventType := range []events.EventType{
		events.TaskCreatedEvent,
		events.TaskUpdatedEvent,
		events.TaskStatusChangedEvent,
		events.TaskAssignedEvent,
		events.CommentAddedEvent,
		events.AttachmentAddedEvent,
		events.DueDateApproachingEvent,
		events.DueDatePassedEvent,
	} {
		w.eventBus.Handle(eventType, w.handleTaskEvent)
	}

	err := w.eventBus.Subscribe(w.ctx)
	if err != nil {
		return err
	}

	if w.monitor != nil {
		err = w.monitor.Start(w.ctx)
		if err != nil {
			return err
		}
	}

	w.logger.Info("Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.Info("Shutting down worker")

	if w.monitor != nil {
		err = w.monitor.Stop(w.ctx)
		if err != nil {
			w.logger.Error("Failed to stop due date monitor", "error", err)
		}
	}

	w.cancel()

	return nil
}

// handleTaskEvent runs rule dispatch for one event. Dispatch never returns
// an error; a failing rule is an execution log entry, not a redelivery.
func (w *Worker) handleTaskEvent(ctx context.Context, event *events.TaskEvent) error {
	trigger, ok := event.Type.TriggerType()
	if !ok {
		w.logger.WarnContext(ctx, "Ignoring event with no trigger mapping", "event_type", string(event.Type))

		return nil
	}

	entries := w.engine.DispatchDepth(ctx, event.OrganizationID, event.ProjectID, trigger, event.Snapshot, event.Depth)

	fired := 0

	for _, entry := range entries {
		if entry.Status == models.ExecutionStatusFired || entry.Status == models.ExecutionStatusPartial {
			fired++
		}
	}

	w.logger.InfoContext(ctx, "Event dispatched",
		"event_id", event.ID,
		"event_type", string(event.Type),
		"task_id", event.TaskID,
		"rules_evaluated", len(entries),
		"rules_fired", fired)

	return nil
}

// Package duedate provides the scheduled scanner that turns approaching and
// passed task due dates into automation trigger events.
package duedate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/taskloom/taskloom/pkg/eventbus"
	"github.com/taskloom/taskloom/pkg/events"
	"github.com/taskloom/taskloom/pkg/protocol"
)

// DefaultApproachWindow is how far ahead of the due date the approaching
// event fires.
const DefaultApproachWindow = 24 * time.Hour

// Monitor periodically scans for tasks whose due date is approaching or has
// passed and publishes the corresponding events on the bus. Rules subscribed
// to due_date_approaching / due_date_passed pick them up from there.
type Monitor struct {
	tasks    protocol.TaskQuerier
	eventBus eventbus.EventBus
	cronExpr string
	window   time.Duration
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewMonitor creates a due-date monitor. cronExpr uses the standard 5-field
// syntax; an empty expression defaults to hourly.
func NewMonitor(tasks protocol.TaskQuerier, bus eventbus.EventBus, cronExpr string, logger *slog.Logger) (*Monitor, error) {
	if tasks == nil {
		return nil, errors.New("due date monitor requires a task querier")
	}

	if cronExpr == "" {
		cronExpr = "0 * * * *"
	}

	if _, err := cron.ParseStandard(cronExpr); err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		tasks:    tasks,
		eventBus: bus,
		cronExpr: cronExpr,
		window:   DefaultApproachWindow,
		logger:   logger.With("module", "duedate_monitor", "cron", cronExpr),
	}, nil
}

// WithWindow overrides the approaching-due-date window.
func (m *Monitor) WithWindow(window time.Duration) *Monitor {
	m.window = window

	return m
}

// Start schedules the scan.
func (m *Monitor) Start(ctx context.Context) error {
	m.logger.InfoContext(ctx, "Starting due date monitor")

	m.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := m.cron.AddFunc(m.cronExpr, func() {
		m.Scan(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule due date scan: %w", err)
	}

	m.cron.Start()

	return nil
}

// Scan runs one pass over approaching and overdue tasks, publishing an event
// per task. Publish failures are logged and do not abort the pass.
func (m *Monitor) Scan(ctx context.Context) {
	approaching, err := m.tasks.DueWithin(ctx, m.window)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to query approaching due dates", "error", err)
	} else {
		m.publishAll(ctx, events.DueDateApproachingEvent, approaching)
	}

	overdue, err := m.tasks.Overdue(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to query overdue tasks", "error", err)
	} else {
		m.publishAll(ctx, events.DueDatePassedEvent, overdue)
	}
}

func (m *Monitor) publishAll(ctx context.Context, eventType events.EventType, snapshots []map[string]any) {
	for _, snapshot := range snapshots {
		taskID, _ := snapshot["id"].(string)
		organizationID, _ := snapshot["organization_id"].(string)
		projectID, _ := snapshot["project_id"].(string)

		event := events.NewTaskEvent(eventType, organizationID, projectID, taskID, map[string]any{"task": snapshot})

		err := m.eventBus.Publish(ctx, taskID, event)
		if err != nil {
			m.logger.ErrorContext(ctx, "Failed to publish due date event",
				"event_type", string(eventType), "task_id", taskID, "error", err)

			continue
		}

		m.logger.InfoContext(ctx, "Due date event published",
			"event_type", string(eventType), "task_id", taskID)
	}
}

// Stop halts the schedule. A scan already in flight finishes.
func (m *Monitor) Stop(ctx context.Context) error {
	m.logger.InfoContext(ctx, "Stopping due date monitor")

	if m.cron != nil {
		m.cron.Stop()
	}

	return nil
}

// Package persistence provides the data storage abstraction for workflow
// definitions, automation rules and execution logs.
package persistence

import (
	"context"
	"time"

	"github.com/taskloom/taskloom/pkg/models"
)

// Persistence aggregates the repositories backing the workflow core.
type Persistence interface {
	Workflows() WorkflowRepository
	States() StateRepository
	Transitions() TransitionRepository
	Rules() RuleRepository
	ExecutionLogs() ExecutionLogRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions. Reads exclude soft-deleted
// rows; GetByID of a missing or deleted workflow returns ErrWorkflowNotFound.
type WorkflowRepository interface {
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]*models.Workflow, error)

	// GetProjectWorkflow returns the active workflow scoped to the project,
	// or ErrWorkflowNotFound when the project has none.
	GetProjectWorkflow(ctx context.Context, projectID string) (*models.Workflow, error)

	// GetDefaultWorkflow returns the organization's active default workflow,
	// or ErrWorkflowNotFound when none is configured.
	GetDefaultWorkflow(ctx context.Context, organizationID string) (*models.Workflow, error)

	Save(ctx context.Context, workflow *models.Workflow) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
}

// StateRepository stores the states of workflow graphs.
type StateRepository interface {
	GetByID(ctx context.Context, id string) (*models.WorkflowState, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowState, error)
	Save(ctx context.Context, state *models.WorkflowState) error
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, workflowID string, orderedIDs []string) error
}

// TransitionRepository stores the transitions of workflow graphs.
type TransitionRepository interface {
	GetByID(ctx context.Context, id string) (*models.WorkflowTransition, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowTransition, error)
	Save(ctx context.Context, transition *models.WorkflowTransition) error
	Delete(ctx context.Context, id string) error
}

// RuleRepository stores automation rules.
type RuleRepository interface {
	GetByID(ctx context.Context, id string) (*models.AutomationRule, error)
	ListByWorkflow(ctx context.Context, workflowID string, activeOnly bool) ([]*models.AutomationRule, error)

	// ListByTrigger returns active rules across the given workflows matching
	// the trigger type. Ordering is left to the caller.
	ListByTrigger(ctx context.Context, workflowIDs []string, trigger models.TriggerType) ([]*models.AutomationRule, error)

	Save(ctx context.Context, rule *models.AutomationRule) error
	Delete(ctx context.Context, id string) error

	// IncrementExecution atomically bumps execution_count and records the
	// execution timestamp. Implementations must not read-modify-write.
	IncrementExecution(ctx context.Context, id string, at time.Time) error
}

// ExecutionLogRepository stores append-only rule execution audit records.
type ExecutionLogRepository interface {
	Append(ctx context.Context, entry *models.ExecutionLogEntry) error
	ListByRule(ctx context.Context, ruleID string, status *models.ExecutionStatus, limit int) ([]*models.ExecutionLogEntry, error)
	ListByTask(ctx context.Context, taskID string, limit int) ([]*models.ExecutionLogEntry, error)
}

package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskloom/taskloom/pkg/models"
	"github.com/taskloom/taskloom/pkg/persistence"
	"github.com/taskloom/taskloom/pkg/persistence/postgresql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{"execution_logs", "automation_rules", "workflow_transitions", "workflow_states", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("taskloom_test"),
			postgres.WithUsername("taskloom"),
			postgres.WithPassword("taskloom"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx
}

func seedWorkflow(ctx context.Context, t *testing.T, p *postgresql.Persistence) *models.Workflow {
	t.Helper()

	workflow := &models.Workflow{
		ID:             uuid.New().String(),
		OrganizationID: "org-integration",
		Name:           "Bug Tracking",
		Description:    "States and transitions for bug tickets",
		IsActive:       true,
		CreatedBy:      "user-1",
	}
	require.NoError(t, p.Workflows().Save(ctx, workflow))

	return workflow
}

func TestWorkflowLifecycle(t *testing.T) {
	p, ctx := setupTestDB(t)

	workflow := seedWorkflow(ctx, t, p)

	loaded, err := p.Workflows().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bug Tracking", loaded.Name)
	assert.True(t, loaded.IsActive)

	loaded.Description = "updated"
	require.NoError(t, p.Workflows().Save(ctx, loaded))

	loaded, err = p.Workflows().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", loaded.Description)

	require.NoError(t, p.Workflows().SoftDelete(ctx, workflow.ID, time.Now().UTC()))

	_, err = p.Workflows().GetByID(ctx, workflow.ID)
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	err = p.Workflows().SoftDelete(ctx, workflow.ID, time.Now().UTC())
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestWorkflowDuplicateNameRejected(t *testing.T) {
	p, ctx := setupTestDB(t)

	seedWorkflow(ctx, t, p)

	duplicate := &models.Workflow{
		ID:             uuid.New().String(),
		OrganizationID: "org-integration",
		Name:           "Bug Tracking",
		IsActive:       true,
	}

	err := p.Workflows().Save(ctx, duplicate)
	assert.ErrorIs(t, err, persistence.ErrDuplicateName)
}

func TestWorkflowResolutionLookups(t *testing.T) {
	p, ctx := setupTestDB(t)

	projectID := "proj-1"
	scoped := &models.Workflow{
		ID:             uuid.New().String(),
		OrganizationID: "org-integration",
		ProjectID:      &projectID,
		Name:           "Scoped",
		IsActive:       true,
	}
	fallback := &models.Workflow{
		ID:             uuid.New().String(),
		OrganizationID: "org-integration",
		Name:           "Default",
		IsDefault:      true,
		IsActive:       true,
	}
	require.NoError(t, p.Workflows().Save(ctx, scoped))
	require.NoError(t, p.Workflows().Save(ctx, fallback))

	found, err := p.Workflows().GetProjectWorkflow(ctx, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, scoped.ID, found.ID)

	def, err := p.Workflows().GetDefaultWorkflow(ctx, "org-integration")
	require.NoError(t, err)
	assert.Equal(t, fallback.ID, def.ID)

	_, err = p.Workflows().GetProjectWorkflow(ctx, "proj-none")
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestStateAndTransitionLifecycle(t *testing.T) {
	p, ctx := setupTestDB(t)

	workflow := seedWorkflow(ctx, t, p)

	todo := &models.WorkflowState{
		ID:         uuid.New().String(),
		WorkflowID: workflow.ID,
		Name:       "To Do",
		Category:   models.CategoryTodo,
		IsInitial:  true,
	}
	done := &models.WorkflowState{
		ID:           uuid.New().String(),
		WorkflowID:   workflow.ID,
		Name:         "Done",
		Category:     models.CategoryDone,
		IsFinal:      true,
		DisplayOrder: 1,
	}
	require.NoError(t, p.States().Save(ctx, todo))
	require.NoError(t, p.States().Save(ctx, done))

	transition := &models.WorkflowTransition{
		ID:          uuid.New().String(),
		WorkflowID:  workflow.ID,
		FromStateID: todo.ID,
		ToStateID:   done.ID,
		Name:        "Finish",
		Conditions: []models.Condition{
			{Field: "task.assignee_id", Operator: models.OperatorNotEquals, Value: nil, Description: "task must be assigned"},
		},
		RequiresComment: true,
	}
	require.NoError(t, p.Transitions().Save(ctx, transition))

	states, err := p.States().ListByWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "To Do", states[0].Name)

	require.NoError(t, p.States().Reorder(ctx, workflow.ID, []string{done.ID, todo.ID}))

	states, err = p.States().ListByWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "Done", states[0].Name)

	loaded, err := p.Transitions().GetByID(ctx, transition.ID)
	require.NoError(t, err)
	assert.True(t, loaded.RequiresComment)
	require.Len(t, loaded.Conditions, 1)
	assert.Equal(t, "task must be assigned", loaded.Conditions[0].Description)

	// Duplicate edge between the same pair of states is rejected
	duplicateEdge := &models.WorkflowTransition{
		ID:          uuid.New().String(),
		WorkflowID:  workflow.ID,
		FromStateID: todo.ID,
		ToStateID:   done.ID,
	}
	err = p.Transitions().Save(ctx, duplicateEdge)
	assert.ErrorIs(t, err, persistence.ErrDuplicateName)

	require.NoError(t, p.Transitions().Delete(ctx, transition.ID))
	require.NoError(t, p.States().Delete(ctx, done.ID))

	_, err = p.States().GetByID(ctx, done.ID)
	assert.ErrorIs(t, err, persistence.ErrStateNotFound)
}

func TestRuleLifecycleAndAtomicIncrement(t *testing.T) {
	p, ctx := setupTestDB(t)

	workflow := seedWorkflow(ctx, t, p)

	rule := &models.AutomationRule{
		ID:          uuid.New().String(),
		WorkflowID:  workflow.ID,
		Name:        "escalate urgent bugs",
		TriggerType: models.TriggerTaskCreated,
		Conditions: []models.Condition{
			{Field: "task.priority", Operator: models.OperatorEquals, Value: "urgent"},
		},
		Actions: []models.ActionDescriptor{
			{Type: models.ActionAssignTo, UserID: "user-lead"},
		},
		IsActive: true,
		Priority: 10,
	}
	require.NoError(t, p.Rules().Save(ctx, rule))

	loaded, err := p.Rules().GetByID(ctx, rule.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Actions, 1)
	assert.Equal(t, models.ActionAssignTo, loaded.Actions[0].Type)

	matched, err := p.Rules().ListByTrigger(ctx, []string{workflow.ID}, models.TriggerTaskCreated)
	require.NoError(t, err)
	require.Len(t, matched, 1)

	at := time.Now().UTC()
	require.NoError(t, p.Rules().IncrementExecution(ctx, rule.ID, at))
	require.NoError(t, p.Rules().IncrementExecution(ctx, rule.ID, at))

	loaded, err = p.Rules().GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded.ExecutionCount)
	require.NotNil(t, loaded.LastExecutedAt)

	err = p.Rules().IncrementExecution(ctx, uuid.New().String(), at)
	assert.ErrorIs(t, err, persistence.ErrRuleNotFound)

	require.NoError(t, p.Rules().Delete(ctx, rule.ID))

	_, err = p.Rules().GetByID(ctx, rule.ID)
	assert.ErrorIs(t, err, persistence.ErrRuleNotFound)
}

func TestExecutionLogAppendAndQuery(t *testing.T) {
	p, ctx := setupTestDB(t)

	workflow := seedWorkflow(ctx, t, p)
	ruleID := uuid.New().String()
	base := time.Now().UTC()

	statuses := []models.ExecutionStatus{
		models.ExecutionStatusFired,
		models.ExecutionStatusSkipped,
		models.ExecutionStatusFired,
	}

	for i, status := range statuses {
		entry := &models.ExecutionLogEntry{
			ID:             uuid.New().String(),
			RuleID:         ruleID,
			RuleName:       "audited",
			WorkflowID:     workflow.ID,
			OrganizationID: "org-integration",
			TaskID:         "task-1",
			TriggerType:    models.TriggerTaskCreated,
			Snapshot:       map[string]any{"task": map[string]any{"id": "task-1"}},
			ConditionsMet:  status != models.ExecutionStatusSkipped,
			Status:         status,
			ActionResults: []models.ActionResult{
				{Type: models.ActionAddComment, Status: models.ActionStatusSuccess, DurationMs: 3},
			},
			StartedAt:  base.Add(time.Duration(i) * time.Second),
			DurationMs: 5,
		}
		require.NoError(t, p.ExecutionLogs().Append(ctx, entry))
	}

	all, err := p.ExecutionLogs().ListByRule(ctx, ruleID, nil, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].StartedAt.After(all[2].StartedAt), "newest first")

	fired := models.ExecutionStatusFired
	onlyFired, err := p.ExecutionLogs().ListByRule(ctx, ruleID, &fired, 0)
	require.NoError(t, err)
	assert.Len(t, onlyFired, 2)

	byTask, err := p.ExecutionLogs().ListByTask(ctx, "task-1", 2)
	require.NoError(t, err)
	assert.Len(t, byTask, 2)

	require.Len(t, all[0].ActionResults, 1)
	assert.Equal(t, models.ActionStatusSuccess, all[0].ActionResults[0].Status)
}

func TestHealthCheck(t *testing.T) {
	p, ctx := setupTestDB(t)

	assert.NoError(t, p.HealthCheck(ctx))
}

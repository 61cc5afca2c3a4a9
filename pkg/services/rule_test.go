package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskloom/taskloom/pkg/models"
	"github.com/taskloom/taskloom/pkg/persistence"
	"github.com/taskloom/taskloom/pkg/persistence/file"
	"github.com/taskloom/taskloom/pkg/services"
)

func newRuleService(t *testing.T) (*services.Rule, persistence.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())

	svc, err := services.NewRule(p, nil)
	require.NoError(t, err)

	return svc, p
}

func seedRuleWorkflow(ctx context.Context, t *testing.T, p persistence.Persistence) *models.Workflow {
	t.Helper()

	wf := &models.Workflow{ID: "wf-1", OrganizationID: "org-1", Name: "Flow", IsActive: true}
	require.NoError(t, p.Workflows().Save(ctx, wf))

	return wf
}

func validRule(name string) *models.AutomationRule {
	return &models.AutomationRule{
		Name:        name,
		TriggerType: models.TriggerStatusChanged,
		Conditions: []models.Condition{
			{Field: "task.priority", Operator: models.OperatorEquals, Value: "urgent"},
		},
		Actions: []models.ActionDescriptor{
			{Type: models.ActionAddComment, Text: "escalated"},
		},
		IsActive: true,
		Priority: 10,
	}
}

func TestCreateRuleStoresDefinition(t *testing.T) {
	svc, p := newRuleService(t)
	ctx := context.Background()

	wf := seedRuleWorkflow(ctx, t, p)

	created, err := svc.CreateRule(ctx, wf.ID, validRule("Escalate"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, wf.ID, created.WorkflowID)
	assert.Zero(t, created.ExecutionCount)

	loaded, err := svc.GetRule(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Escalate", loaded.Name)
	assert.Len(t, loaded.Actions, 1)
}

func TestCreateRuleRejectsUnknownTrigger(t *testing.T) {
	svc, p := newRuleService(t)
	ctx := context.Background()

	wf := seedRuleWorkflow(ctx, t, p)

	rule := validRule("Bad Trigger")
	rule.TriggerType = "task_archived"

	_, err := svc.CreateRule(ctx, wf.ID, rule)
	require.ErrorIs(t, err, services.ErrInvalidTriggerType)
	assert.True(t, services.IsValidationError(err))
}

func TestCreateRuleRejectsEmptyActions(t *testing.T) {
	svc, p := newRuleService(t)
	ctx := context.Background()

	wf := seedRuleWorkflow(ctx, t, p)

	rule := validRule("No Actions")
	rule.Actions = nil

	_, err := svc.CreateRule(ctx, wf.ID, rule)
	require.ErrorIs(t, err, services.ErrInvalidRuleSchema)
}

func TestCreateRuleRejectsUnknownActionType(t *testing.T) {
	svc, p := newRuleService(t)
	ctx := context.Background()

	wf := seedRuleWorkflow(ctx, t, p)

	rule := validRule("Bad Action")
	rule.Actions = []models.ActionDescriptor{{Type: "delete_everything"}}

	_, err := svc.CreateRule(ctx, wf.ID, rule)
	require.ErrorIs(t, err, services.ErrInvalidRuleSchema)
}

func TestCreateRuleRejectsMalformedCondition(t *testing.T) {
	svc, p := newRuleService(t)
	ctx := context.Background()

	wf := seedRuleWorkflow(ctx, t, p)

	// Leaf without an operator matches neither the leaf nor the composite shape.
	rule := validRule("Bad Condition")
	rule.Conditions = []models.Condition{{Field: "task.priority"}}

	_, err := svc.CreateRule(ctx, wf.ID, rule)
	require.ErrorIs(t, err, services.ErrInvalidRuleSchema)
}

func TestCreateRuleAcceptsNestedComposites(t *testing.T) {
	svc, p := newRuleService(t)
	ctx := context.Background()

	wf := seedRuleWorkflow(ctx, t, p)

	rule := validRule("Nested")
	rule.Conditions = []models.Condition{
		{
			Op: models.BoolOpOr,
			Children: []models.Condition{
				{Field: "task.priority", Operator: models.OperatorEquals, Value: "urgent"},
				{
					Op: models.BoolOpNot,
					Children: []models.Condition{
						{Field: "task.assignee_id", Operator: models.OperatorIn, Value: []any{"user-1", "user-2"}},
					},
				},
			},
		},
	}

	_, err := svc.CreateRule(ctx, wf.ID, rule)
	require.NoError(t, err)
}

func TestCreateRuleForMissingWorkflow(t *testing.T) {
	svc, _ := newRuleService(t)

	_, err := svc.CreateRule(context.Background(), "wf-missing", validRule("Orphan"))
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestUpdateRuleRevalidates(t *testing.T) {
	svc, p := newRuleService(t)
	ctx := context.Background()

	wf := seedRuleWorkflow(ctx, t, p)

	created, err := svc.CreateRule(ctx, wf.ID, validRule("Escalate"))
	require.NoError(t, err)

	_, err = svc.UpdateRule(ctx, created.ID, services.UpdateRuleRequest{
		Actions: []models.ActionDescriptor{{Type: "explode"}},
	})
	require.ErrorIs(t, err, services.ErrInvalidRuleSchema)

	priority := 42
	inactive := false
	updated, err := svc.UpdateRule(ctx, created.ID, services.UpdateRuleRequest{
		Priority: &priority,
		IsActive: &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, 42, updated.Priority)
	assert.False(t, updated.IsActive)
}

func TestDeleteRuleKeepsExecutionLog(t *testing.T) {
	svc, p := newRuleService(t)
	ctx := context.Background()

	wf := seedRuleWorkflow(ctx, t, p)

	created, err := svc.CreateRule(ctx, wf.ID, validRule("Escalate"))
	require.NoError(t, err)

	entry := &models.ExecutionLogEntry{
		ID:        "entry-1",
		RuleID:    created.ID,
		TaskID:    "task-1",
		Status:    models.ExecutionStatusFired,
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, p.ExecutionLogs().Append(ctx, entry))

	require.NoError(t, svc.DeleteRule(ctx, created.ID))

	_, err = svc.GetRule(ctx, created.ID)
	require.ErrorIs(t, err, persistence.ErrRuleNotFound)

	entries, err := svc.ListTaskExecutions(ctx, "task-1", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestListExecutionsFiltersByStatus(t *testing.T) {
	svc, p := newRuleService(t)
	ctx := context.Background()

	wf := seedRuleWorkflow(ctx, t, p)

	created, err := svc.CreateRule(ctx, wf.ID, validRule("Escalate"))
	require.NoError(t, err)

	statuses := []models.ExecutionStatus{
		models.ExecutionStatusFired,
		models.ExecutionStatusSkipped,
		models.ExecutionStatusFired,
	}
	for i, status := range statuses {
		entry := &models.ExecutionLogEntry{
			ID:        created.ID + "-entry-" + string(rune('a'+i)),
			RuleID:    created.ID,
			Status:    status,
			StartedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, p.ExecutionLogs().Append(ctx, entry))
	}

	all, err := svc.ListExecutions(ctx, created.ID, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	fired, err := svc.ListExecutions(ctx, created.ID, "fired", 0)
	require.NoError(t, err)
	assert.Len(t, fired, 2)

	_, err = svc.ListExecutions(ctx, created.ID, "exploded", 0)
	require.ErrorIs(t, err, services.ErrInvalidRequest)
}

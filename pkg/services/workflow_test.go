package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskloom/taskloom/pkg/models"
	"github.com/taskloom/taskloom/pkg/persistence"
	"github.com/taskloom/taskloom/pkg/persistence/file"
	"github.com/taskloom/taskloom/pkg/services"
	"github.com/taskloom/taskloom/pkg/workflow"
)

func newWorkflowService(t *testing.T) (*services.Workflow, persistence.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())

	return services.NewWorkflow(p, workflow.NewRegistry(p, nil), nil), p
}

// seedValidWorkflow creates an active workflow with a minimal valid graph:
// To Do (initial) -> Done (final).
func seedValidWorkflow(ctx context.Context, t *testing.T, svc *services.Workflow, p persistence.Persistence, organizationID string) *models.Workflow {
	t.Helper()

	wf, err := svc.CreateWorkflow(ctx, services.CreateWorkflowRequest{
		OrganizationID: organizationID,
		Name:           "Engineering Flow",
		CreatedBy:      "user-1",
	})
	require.NoError(t, err)

	todo, err := svc.AddState(ctx, wf.ID, &models.WorkflowState{Name: "To Do", Category: models.CategoryTodo, IsInitial: true, DisplayOrder: 0})
	require.NoError(t, err)

	done, err := svc.AddState(ctx, wf.ID, &models.WorkflowState{Name: "Done", Category: models.CategoryDone, IsFinal: true, DisplayOrder: 1})
	require.NoError(t, err)

	_, err = svc.AddTransition(ctx, wf.ID, &models.WorkflowTransition{FromStateID: todo.ID, ToStateID: done.ID, Name: "Finish"})
	require.NoError(t, err)

	active := true
	wf, err = svc.UpdateWorkflow(ctx, wf.ID, services.UpdateWorkflowRequest{IsActive: &active})
	require.NoError(t, err)
	require.True(t, wf.IsActive)

	return wf
}

func TestCreateWorkflowRequiresName(t *testing.T) {
	svc, _ := newWorkflowService(t)

	_, err := svc.CreateWorkflow(context.Background(), services.CreateWorkflowRequest{
		OrganizationID: "org-1",
		Name:           "   ",
	})
	require.ErrorIs(t, err, services.ErrWorkflowNameRequired)
	assert.True(t, services.IsValidationError(err))
}

func TestCreateWorkflowStartsInactive(t *testing.T) {
	svc, _ := newWorkflowService(t)

	wf, err := svc.CreateWorkflow(context.Background(), services.CreateWorkflowRequest{
		OrganizationID: "org-1",
		Name:           "Flow",
	})
	require.NoError(t, err)
	assert.False(t, wf.IsActive)
	assert.NotEmpty(t, wf.ID)
}

func TestCreateDefaultWorkflowReplacesPreviousDefault(t *testing.T) {
	svc, p := newWorkflowService(t)
	ctx := context.Background()

	first, err := svc.CreateWorkflow(ctx, services.CreateWorkflowRequest{
		OrganizationID: "org-1", Name: "First", IsDefault: true,
	})
	require.NoError(t, err)

	// GetDefaultWorkflow only sees active workflows, so activate manually.
	first.IsActive = true
	require.NoError(t, p.Workflows().Save(ctx, first))

	second, err := svc.CreateWorkflow(ctx, services.CreateWorkflowRequest{
		OrganizationID: "org-1", Name: "Second", IsDefault: true,
	})
	require.NoError(t, err)
	assert.True(t, second.IsDefault)

	reloaded, err := svc.GetWorkflow(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsDefault)
}

func TestActivationRequiresValidGraph(t *testing.T) {
	svc, _ := newWorkflowService(t)
	ctx := context.Background()

	wf, err := svc.CreateWorkflow(ctx, services.CreateWorkflowRequest{OrganizationID: "org-1", Name: "Empty"})
	require.NoError(t, err)

	active := true
	_, err = svc.UpdateWorkflow(ctx, wf.ID, services.UpdateWorkflowRequest{IsActive: &active})
	require.ErrorIs(t, err, services.ErrGraphInvariantBroken)
	assert.True(t, services.IsValidationError(err))
}

func TestSystemWorkflowIsImmutable(t *testing.T) {
	svc, p := newWorkflowService(t)
	ctx := context.Background()

	wf := &models.Workflow{ID: "wf-system", OrganizationID: "org-1", Name: "System", IsSystem: true}
	require.NoError(t, p.Workflows().Save(ctx, wf))

	name := "Renamed"
	_, err := svc.UpdateWorkflow(ctx, "wf-system", services.UpdateWorkflowRequest{Name: &name})
	require.ErrorIs(t, err, services.ErrSystemWorkflowImmutable)
	assert.True(t, services.IsConflictError(err))

	err = svc.DeleteWorkflow(ctx, "wf-system")
	require.ErrorIs(t, err, services.ErrSystemWorkflowImmutable)

	_, err = svc.AddState(ctx, "wf-system", &models.WorkflowState{Name: "X", Category: models.CategoryTodo})
	require.ErrorIs(t, err, services.ErrSystemWorkflowImmutable)
}

func TestDeleteWorkflowBlockedWhenProjectAssigned(t *testing.T) {
	svc, p := newWorkflowService(t)
	ctx := context.Background()

	projectID := "proj-1"
	wf := &models.Workflow{ID: "wf-scoped", OrganizationID: "org-1", ProjectID: &projectID, Name: "Scoped"}
	require.NoError(t, p.Workflows().Save(ctx, wf))

	err := svc.DeleteWorkflow(ctx, "wf-scoped")
	require.ErrorIs(t, err, services.ErrWorkflowInUse)
}

func TestDeleteWorkflowSoftDeletes(t *testing.T) {
	svc, _ := newWorkflowService(t)
	ctx := context.Background()

	wf, err := svc.CreateWorkflow(ctx, services.CreateWorkflowRequest{OrganizationID: "org-1", Name: "Doomed"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteWorkflow(ctx, wf.ID))

	_, err = svc.GetWorkflow(ctx, wf.ID)
	require.ErrorIs(t, err, services.ErrWorkflowNotFound)
	assert.True(t, services.IsNotFoundError(err))
}

func TestAddStateRejectsUnknownCategory(t *testing.T) {
	svc, _ := newWorkflowService(t)
	ctx := context.Background()

	wf, err := svc.CreateWorkflow(ctx, services.CreateWorkflowRequest{OrganizationID: "org-1", Name: "Flow"})
	require.NoError(t, err)

	_, err = svc.AddState(ctx, wf.ID, &models.WorkflowState{Name: "Weird", Category: "parked"})
	require.ErrorIs(t, err, services.ErrInvalidStateCategory)
}

func TestAddStateRejectsDuplicateName(t *testing.T) {
	svc, _ := newWorkflowService(t)
	ctx := context.Background()

	wf, err := svc.CreateWorkflow(ctx, services.CreateWorkflowRequest{OrganizationID: "org-1", Name: "Flow"})
	require.NoError(t, err)

	_, err = svc.AddState(ctx, wf.ID, &models.WorkflowState{Name: "To Do", Category: models.CategoryTodo, IsInitial: true})
	require.NoError(t, err)

	_, err = svc.AddState(ctx, wf.ID, &models.WorkflowState{Name: "To Do", Category: models.CategoryInProgress})
	require.ErrorIs(t, err, services.ErrGraphInvariantBroken)
}

func TestAddTransitionRejectsSelfLoop(t *testing.T) {
	svc, _ := newWorkflowService(t)
	ctx := context.Background()

	wf, err := svc.CreateWorkflow(ctx, services.CreateWorkflowRequest{OrganizationID: "org-1", Name: "Flow"})
	require.NoError(t, err)

	state, err := svc.AddState(ctx, wf.ID, &models.WorkflowState{Name: "To Do", Category: models.CategoryTodo, IsInitial: true})
	require.NoError(t, err)

	_, err = svc.AddTransition(ctx, wf.ID, &models.WorkflowTransition{FromStateID: state.ID, ToStateID: state.ID})
	require.ErrorIs(t, err, services.ErrGraphInvariantBroken)
}

func TestDeleteStateBlockedWhileReferenced(t *testing.T) {
	svc, p := newWorkflowService(t)
	ctx := context.Background()

	wf := seedValidWorkflow(ctx, t, svc, p, "org-1")

	states, err := svc.ListStates(ctx, wf.ID)
	require.NoError(t, err)
	require.Len(t, states, 2)

	err = svc.DeleteState(ctx, wf.ID, states[0].ID)
	require.ErrorIs(t, err, services.ErrStateInUse)
	assert.True(t, services.IsConflictError(err))
}

func TestDeleteTransitionOnActiveWorkflowKeepsGraphValid(t *testing.T) {
	svc, p := newWorkflowService(t)
	ctx := context.Background()

	wf := seedValidWorkflow(ctx, t, svc, p, "org-1")

	transitions, err := svc.ListTransitions(ctx, wf.ID)
	require.NoError(t, err)
	require.Len(t, transitions, 1)

	// The only transition cannot go while the workflow is active.
	err = svc.DeleteTransition(ctx, wf.ID, transitions[0].ID)
	require.ErrorIs(t, err, services.ErrGraphInvariantBroken)

	inactive := false
	_, err = svc.UpdateWorkflow(ctx, wf.ID, services.UpdateWorkflowRequest{IsActive: &inactive})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTransition(ctx, wf.ID, transitions[0].ID))
}

func TestReorderStatesValidatesIDSet(t *testing.T) {
	svc, p := newWorkflowService(t)
	ctx := context.Background()

	wf := seedValidWorkflow(ctx, t, svc, p, "org-1")

	states, err := svc.ListStates(ctx, wf.ID)
	require.NoError(t, err)

	err = svc.ReorderStates(ctx, wf.ID, []string{states[0].ID})
	require.ErrorIs(t, err, services.ErrInvalidRequest)

	err = svc.ReorderStates(ctx, wf.ID, []string{states[1].ID, states[0].ID})
	require.NoError(t, err)

	reordered, err := svc.ListStates(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, states[1].ID, reordered[0].ID)
}

func TestValidateWorkflowReportsIssues(t *testing.T) {
	svc, _ := newWorkflowService(t)
	ctx := context.Background()

	wf, err := svc.CreateWorkflow(ctx, services.CreateWorkflowRequest{OrganizationID: "org-1", Name: "Partial"})
	require.NoError(t, err)

	_, err = svc.AddState(ctx, wf.ID, &models.WorkflowState{Name: "To Do", Category: models.CategoryTodo, IsInitial: true})
	require.NoError(t, err)

	issues, err := svc.ValidateWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.Contains(t, issues, "workflow must have at least one final state")
	assert.Contains(t, issues, "workflow must have at least one transition")
}

func TestDuplicateWorkflowRemapsGraph(t *testing.T) {
	svc, p := newWorkflowService(t)
	ctx := context.Background()

	source := seedValidWorkflow(ctx, t, svc, p, "org-1")

	rule := &models.AutomationRule{
		ID:          "rule-1",
		WorkflowID:  source.ID,
		Name:        "Notify",
		TriggerType: models.TriggerStatusChanged,
		Actions:     []models.ActionDescriptor{{Type: models.ActionAddComment, Text: "done"}},
		IsActive:    true,
	}
	require.NoError(t, p.Rules().Save(ctx, rule))

	copied, err := svc.DuplicateWorkflow(ctx, source.ID, "", "user-2")
	require.NoError(t, err)
	assert.Equal(t, "Copy of Engineering Flow", copied.Name)
	assert.False(t, copied.IsActive)
	assert.False(t, copied.IsDefault)

	states, err := svc.ListStates(ctx, copied.ID)
	require.NoError(t, err)
	require.Len(t, states, 2)

	transitions, err := svc.ListTransitions(ctx, copied.ID)
	require.NoError(t, err)
	require.Len(t, transitions, 1)

	// Transition endpoints point at the copied states, not the originals.
	copiedIDs := map[string]bool{states[0].ID: true, states[1].ID: true}
	assert.True(t, copiedIDs[transitions[0].FromStateID])
	assert.True(t, copiedIDs[transitions[0].ToStateID])

	rules, err := p.Rules().ListByWorkflow(ctx, copied.ID, false)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.NotEqual(t, "rule-1", rules[0].ID)
	assert.Zero(t, rules[0].ExecutionCount)
}

func TestValidateTransitionAgainstResolvedWorkflow(t *testing.T) {
	svc, _ := newWorkflowService(t)
	ctx := context.Background()

	// No stored workflows: the built-in fallback graph governs.
	allowed, reason, err := svc.ValidateTransition(ctx, "org-1", "",
		workflow.FallbackStateTodo, workflow.FallbackStateInProgress, nil, "")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, workflow.ReasonAllowed, reason)

	allowed, reason, err = svc.ValidateTransition(ctx, "org-1", "",
		workflow.FallbackStateDone, workflow.FallbackStateTodo, nil, "")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, workflow.ReasonNoSuchTransition, reason)
}

func TestValidateTransitionHonorsGuardsAndComments(t *testing.T) {
	svc, p := newWorkflowService(t)
	ctx := context.Background()

	wf := seedValidWorkflow(ctx, t, svc, p, "org-1")

	defaultFlag := true
	_, err := svc.UpdateWorkflow(ctx, wf.ID, services.UpdateWorkflowRequest{IsDefault: &defaultFlag})
	require.NoError(t, err)

	transitions, err := svc.ListTransitions(ctx, wf.ID)
	require.NoError(t, err)

	requiresComment := true
	_, err = svc.UpdateTransition(ctx, wf.ID, transitions[0].ID, services.UpdateTransitionRequest{
		RequiresComment: &requiresComment,
		Conditions: []models.Condition{
			{Field: "task.assignee_id", Operator: models.OperatorNotEquals, Value: nil, Description: "task must be assigned"},
		},
	})
	require.NoError(t, err)

	states, err := svc.ListStates(ctx, wf.ID)
	require.NoError(t, err)

	snapshot := map[string]any{"task": map[string]any{"assignee_id": "user-9"}}

	allowed, reason, err := svc.ValidateTransition(ctx, "org-1", "", states[0].ID, states[1].ID, snapshot, "")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, workflow.ReasonCommentRequired, reason)

	allowed, _, err = svc.ValidateTransition(ctx, "org-1", "", states[0].ID, states[1].ID, snapshot, "closing out")
	require.NoError(t, err)
	assert.True(t, allowed)

	unassigned := map[string]any{"task": map[string]any{"assignee_id": nil}}

	allowed, reason, err = svc.ValidateTransition(ctx, "org-1", "", states[0].ID, states[1].ID, unassigned, "closing out")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, "condition not met: task must be assigned", reason)
}

func TestValidateTransitionSeesNewlyActivatedProjectWorkflow(t *testing.T) {
	svc, _ := newWorkflowService(t)
	ctx := context.Background()

	// The project has no workflow yet, so the first validation resolves and
	// caches the fallback graph.
	allowed, _, err := svc.ValidateTransition(ctx, "org-1", "proj-1", workflow.FallbackStateTodo, workflow.FallbackStateInProgress, nil, "")
	require.NoError(t, err)
	assert.True(t, allowed)

	projectID := "proj-1"
	wf, err := svc.CreateWorkflow(ctx, services.CreateWorkflowRequest{
		OrganizationID: "org-1",
		ProjectID:      &projectID,
		Name:           "Project Flow",
		CreatedBy:      "user-1",
	})
	require.NoError(t, err)

	todo, err := svc.AddState(ctx, wf.ID, &models.WorkflowState{Name: "To Do", Category: models.CategoryTodo, IsInitial: true, DisplayOrder: 0})
	require.NoError(t, err)

	done, err := svc.AddState(ctx, wf.ID, &models.WorkflowState{Name: "Done", Category: models.CategoryDone, IsFinal: true, DisplayOrder: 1})
	require.NoError(t, err)

	_, err = svc.AddTransition(ctx, wf.ID, &models.WorkflowTransition{FromStateID: todo.ID, ToStateID: done.ID, Name: "Finish"})
	require.NoError(t, err)

	active := true
	_, err = svc.UpdateWorkflow(ctx, wf.ID, services.UpdateWorkflowRequest{IsActive: &active})
	require.NoError(t, err)

	// Activation invalidates the cached fallback, so the project workflow
	// governs subsequent validations.
	allowed, _, err = svc.ValidateTransition(ctx, "org-1", "proj-1", todo.ID, done.ID, nil, "")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, reason, err := svc.ValidateTransition(ctx, "org-1", "proj-1", workflow.FallbackStateTodo, workflow.FallbackStateInProgress, nil, "")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, workflow.ReasonNoSuchTransition, reason)
}

func TestHealthCheck(t *testing.T) {
	svc, _ := newWorkflowService(t)

	message, healthy := svc.HealthCheck(context.Background())
	assert.True(t, healthy)
	assert.NotEmpty(t, message)
}

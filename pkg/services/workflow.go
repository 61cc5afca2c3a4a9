package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taskloom/taskloom/pkg/models"
	"github.com/taskloom/taskloom/pkg/persistence"
	"github.com/taskloom/taskloom/pkg/workflow"
)

// ErrWorkflowNotFound is returned when a workflow is not found.
var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

// Workflow implements the application operations over workflow definitions:
// CRUD with graph invariant re-checks, duplication, state and transition
// management, and transition validation. Every mutation invalidates the
// registry cache for the touched workflow.
type Workflow struct {
	persistence persistence.Persistence
	registry    *workflow.Registry
	validator   *workflow.TransitionValidator
	logger      *slog.Logger
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(p persistence.Persistence, registry *workflow.Registry, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}

	return &Workflow{
		persistence: p,
		registry:    registry,
		validator:   workflow.NewTransitionValidator(logger),
		logger:      logger.With("module", "workflow_service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// GetWorkflow retrieves a workflow by ID.
func (w *Workflow) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	return w.persistence.Workflows().GetByID(ctx, id)
}

// ListWorkflows retrieves all workflows of an organization.
func (w *Workflow) ListWorkflows(ctx context.Context, organizationID string) ([]*models.Workflow, error) {
	return w.persistence.Workflows().ListByOrganization(ctx, organizationID)
}

// CreateWorkflowRequest contains the fields for creating a workflow.
type CreateWorkflowRequest struct {
	OrganizationID string
	ProjectID      *string
	Name           string
	Description    string
	IsDefault      bool
	CreatedBy      string
}

// CreateWorkflow creates a new workflow. Workflows start inactive; they are
// activated through UpdateWorkflow once the graph passes validation.
func (w *Workflow) CreateWorkflow(ctx context.Context, req CreateWorkflowRequest) (*models.Workflow, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrWorkflowNameRequired
	}

	now := time.Now().UTC()
	wf := &models.Workflow{
		ID:             uuid.New().String(),
		OrganizationID: req.OrganizationID,
		ProjectID:      req.ProjectID,
		Name:           strings.TrimSpace(req.Name),
		Description:    req.Description,
		IsDefault:      req.IsDefault,
		CreatedBy:      req.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if req.IsDefault {
		err := w.clearDefault(ctx, req.OrganizationID)
		if err != nil {
			return nil, err
		}
	}

	err := w.persistence.Workflows().Save(ctx, wf)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "Workflow created", "workflow_id", wf.ID, "organization_id", wf.OrganizationID)

	return wf, nil
}

// UpdateWorkflowRequest contains the mutable workflow fields. Nil fields are
// left unchanged.
type UpdateWorkflowRequest struct {
	Name        *string
	Description *string
	IsDefault   *bool
	IsActive    *bool
}

// UpdateWorkflow applies the request to an existing workflow. Activation
// requires the state graph to pass validation first.
func (w *Workflow) UpdateWorkflow(ctx context.Context, id string, req UpdateWorkflowRequest) (*models.Workflow, error) {
	wf, err := w.persistence.Workflows().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if wf.IsSystem {
		return nil, ErrSystemWorkflowImmutable
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, ErrWorkflowNameRequired
		}

		wf.Name = strings.TrimSpace(*req.Name)
	}

	if req.Description != nil {
		wf.Description = *req.Description
	}

	if req.IsDefault != nil && *req.IsDefault != wf.IsDefault {
		if *req.IsDefault {
			err = w.clearDefault(ctx, wf.OrganizationID)
			if err != nil {
				return nil, err
			}
		}

		wf.IsDefault = *req.IsDefault
	}

	if req.IsActive != nil && *req.IsActive != wf.IsActive {
		if *req.IsActive {
			issues, validateErr := w.ValidateWorkflow(ctx, id)
			if validateErr != nil {
				return nil, validateErr
			}

			if len(issues) > 0 {
				return nil, fmt.Errorf("%w: %s", ErrGraphInvariantBroken, strings.Join(issues, "; "))
			}
		}

		wf.IsActive = *req.IsActive
	}

	wf.UpdatedAt = time.Now().UTC()

	err = w.persistence.Workflows().Save(ctx, wf)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	w.registry.Invalidate(wf)

	return wf, nil
}

// DeleteWorkflow soft-deletes a workflow. System workflows and workflows
// assigned to a project cannot be deleted.
func (w *Workflow) DeleteWorkflow(ctx context.Context, id string) error {
	wf, err := w.persistence.Workflows().GetByID(ctx, id)
	if err != nil {
		return err
	}

	if wf.IsSystem {
		return ErrSystemWorkflowImmutable
	}

	if wf.ProjectID != nil {
		return fmt.Errorf("%w: project %s", ErrWorkflowInUse, *wf.ProjectID)
	}

	err = w.persistence.Workflows().SoftDelete(ctx, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	w.registry.Invalidate(wf)
	w.logger.InfoContext(ctx, "Workflow deleted", "workflow_id", id)

	return nil
}

// DuplicateWorkflow copies a workflow with all its states, transitions and
// rules under fresh IDs. The copy starts inactive and never inherits the
// default or system flags.
func (w *Workflow) DuplicateWorkflow(ctx context.Context, id, name, createdBy string) (*models.Workflow, error) {
	source, states, transitions, err := w.loadGraphParts(ctx, id)
	if err != nil {
		return nil, err
	}

	rules, err := w.persistence.Rules().ListByWorkflow(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules for duplication: %w", err)
	}

	if strings.TrimSpace(name) == "" {
		name = "Copy of " + source.Name
	}

	now := time.Now().UTC()
	copied := &models.Workflow{
		ID:             uuid.New().String(),
		OrganizationID: source.OrganizationID,
		Name:           name,
		Description:    source.Description,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = w.persistence.Workflows().Save(ctx, copied)
	if err != nil {
		return nil, fmt.Errorf("failed to duplicate workflow: %w", err)
	}

	stateIDs := make(map[string]string, len(states))

	for _, state := range states {
		clone := *state
		clone.ID = uuid.New().String()
		clone.WorkflowID = copied.ID
		clone.CreatedAt = now
		clone.UpdatedAt = now
		stateIDs[state.ID] = clone.ID

		err = w.persistence.States().Save(ctx, &clone)
		if err != nil {
			return nil, fmt.Errorf("failed to duplicate state %s: %w", state.ID, err)
		}
	}

	for _, transition := range transitions {
		clone := *transition
		clone.ID = uuid.New().String()
		clone.WorkflowID = copied.ID
		clone.FromStateID = stateIDs[transition.FromStateID]
		clone.ToStateID = stateIDs[transition.ToStateID]
		clone.CreatedAt = now
		clone.UpdatedAt = now

		err = w.persistence.Transitions().Save(ctx, &clone)
		if err != nil {
			return nil, fmt.Errorf("failed to duplicate transition %s: %w", transition.ID, err)
		}
	}

	for _, rule := range rules {
		clone := *rule
		clone.ID = uuid.New().String()
		clone.WorkflowID = copied.ID
		clone.ExecutionCount = 0
		clone.LastExecutedAt = nil
		clone.CreatedAt = now
		clone.UpdatedAt = now

		err = w.persistence.Rules().Save(ctx, &clone)
		if err != nil {
			return nil, fmt.Errorf("failed to duplicate rule %s: %w", rule.ID, err)
		}
	}

	w.logger.InfoContext(ctx, "Workflow duplicated",
		"source_workflow_id", id, "workflow_id", copied.ID,
		"states", len(states), "transitions", len(transitions), "rules", len(rules))

	return copied, nil
}

// ListStates retrieves the states of a workflow in display order.
func (w *Workflow) ListStates(ctx context.Context, workflowID string) ([]*models.WorkflowState, error) {
	if _, err := w.persistence.Workflows().GetByID(ctx, workflowID); err != nil {
		return nil, err
	}

	return w.persistence.States().ListByWorkflow(ctx, workflowID)
}

// AddState adds a state to the workflow after checking it keeps the graph
// consistent.
func (w *Workflow) AddState(ctx context.Context, workflowID string, state *models.WorkflowState) (*models.WorkflowState, error) {
	wf, states, transitions, err := w.mutableGraphParts(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if !state.Category.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStateCategory, state.Category)
	}

	if state.ID == "" {
		state.ID = uuid.New().String()
	}

	state.WorkflowID = workflowID
	now := time.Now().UTC()
	state.CreatedAt = now
	state.UpdatedAt = now

	err = w.checkGraph(wf, append(states, state), transitions)
	if err != nil {
		return nil, err
	}

	err = w.persistence.States().Save(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("failed to save state: %w", err)
	}

	return state, w.touch(ctx, wf)
}

// UpdateStateRequest contains the mutable state fields. Nil fields are left
// unchanged.
type UpdateStateRequest struct {
	Name        *string
	Description *string
	Category    *models.StateCategory
	Color       *string
	IsInitial   *bool
	IsFinal     *bool
}

// UpdateState applies the request to a state, re-checking the graph.
func (w *Workflow) UpdateState(ctx context.Context, workflowID, stateID string, req UpdateStateRequest) (*models.WorkflowState, error) {
	wf, states, transitions, err := w.mutableGraphParts(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	var state *models.WorkflowState

	for _, candidate := range states {
		if candidate.ID == stateID {
			state = candidate

			break
		}
	}

	if state == nil {
		return nil, persistence.ErrStateNotFound
	}

	if req.Name != nil {
		state.Name = *req.Name
	}

	if req.Description != nil {
		state.Description = *req.Description
	}

	if req.Category != nil {
		if !req.Category.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStateCategory, *req.Category)
		}

		state.Category = *req.Category
	}

	if req.Color != nil {
		state.Color = *req.Color
	}

	if req.IsInitial != nil {
		state.IsInitial = *req.IsInitial
	}

	if req.IsFinal != nil {
		state.IsFinal = *req.IsFinal
	}

	state.UpdatedAt = time.Now().UTC()

	err = w.checkGraph(wf, states, transitions)
	if err != nil {
		return nil, err
	}

	err = w.persistence.States().Save(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("failed to save state: %w", err)
	}

	return state, w.touch(ctx, wf)
}

// DeleteState removes a state. Removal fails with ErrStateInUse while
// transitions still reference the state.
func (w *Workflow) DeleteState(ctx context.Context, workflowID, stateID string) error {
	wf, states, transitions, err := w.mutableGraphParts(ctx, workflowID)
	if err != nil {
		return err
	}

	graph, err := workflow.BuildStateGraph(wf, states, transitions)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrGraphInvariantBroken, err)
	}

	reduced, err := graph.WithoutState(stateID)
	if err != nil {
		var inUse *workflow.StateInUseError
		if errors.As(err, &inUse) {
			return fmt.Errorf("%w: %d transitions reference it", ErrStateInUse, inUse.Transitions)
		}

		if errors.Is(err, workflow.ErrStateNotInGraph) {
			return persistence.ErrStateNotFound
		}

		return err
	}

	if wf.IsActive {
		if issues := reduced.Validate(); len(issues) > 0 {
			return fmt.Errorf("%w: %s", ErrGraphInvariantBroken, strings.Join(issues, "; "))
		}
	}

	err = w.persistence.States().Delete(ctx, stateID)
	if err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}

	return w.touch(ctx, wf)
}

// ReorderStates applies the given display order. orderedIDs must contain
// exactly the workflow's state IDs.
func (w *Workflow) ReorderStates(ctx context.Context, workflowID string, orderedIDs []string) error {
	wf, states, _, err := w.mutableGraphParts(ctx, workflowID)
	if err != nil {
		return err
	}

	if len(orderedIDs) != len(states) {
		return fmt.Errorf("%w: expected %d state IDs, got %d", ErrInvalidRequest, len(states), len(orderedIDs))
	}

	known := make(map[string]bool, len(states))
	for _, state := range states {
		known[state.ID] = true
	}

	for _, id := range orderedIDs {
		if !known[id] {
			return fmt.Errorf("%w: unknown state ID %s", ErrInvalidRequest, id)
		}

		delete(known, id)
	}

	err = w.persistence.States().Reorder(ctx, workflowID, orderedIDs)
	if err != nil {
		return fmt.Errorf("failed to reorder states: %w", err)
	}

	return w.touch(ctx, wf)
}

// ListTransitions retrieves the transitions of a workflow.
func (w *Workflow) ListTransitions(ctx context.Context, workflowID string) ([]*models.WorkflowTransition, error) {
	if _, err := w.persistence.Workflows().GetByID(ctx, workflowID); err != nil {
		return nil, err
	}

	return w.persistence.Transitions().ListByWorkflow(ctx, workflowID)
}

// AddTransition adds a transition after checking it keeps the graph
// consistent (no self-loops, no duplicate edges, both endpoints exist).
func (w *Workflow) AddTransition(ctx context.Context, workflowID string, transition *models.WorkflowTransition) (*models.WorkflowTransition, error) {
	wf, states, transitions, err := w.mutableGraphParts(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if transition.ID == "" {
		transition.ID = uuid.New().String()
	}

	transition.WorkflowID = workflowID
	now := time.Now().UTC()
	transition.CreatedAt = now
	transition.UpdatedAt = now

	err = w.checkGraph(wf, states, append(transitions, transition))
	if err != nil {
		return nil, err
	}

	err = w.persistence.Transitions().Save(ctx, transition)
	if err != nil {
		return nil, fmt.Errorf("failed to save transition: %w", err)
	}

	return transition, w.touch(ctx, wf)
}

// UpdateTransitionRequest contains the mutable transition fields. Nil fields
// are left unchanged; endpoints are immutable, delete and recreate instead.
type UpdateTransitionRequest struct {
	Name            *string
	Description     *string
	Conditions      []models.Condition
	RequiresComment *bool
	DisplayOrder    *int
}

// UpdateTransition applies the request to a transition.
func (w *Workflow) UpdateTransition(ctx context.Context, workflowID, transitionID string, req UpdateTransitionRequest) (*models.WorkflowTransition, error) {
	wf, _, transitions, err := w.mutableGraphParts(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	var transition *models.WorkflowTransition

	for _, candidate := range transitions {
		if candidate.ID == transitionID {
			transition = candidate

			break
		}
	}

	if transition == nil {
		return nil, persistence.ErrTransitionNotFound
	}

	if req.Name != nil {
		transition.Name = *req.Name
	}

	if req.Description != nil {
		transition.Description = *req.Description
	}

	if req.Conditions != nil {
		transition.Conditions = req.Conditions
	}

	if req.RequiresComment != nil {
		transition.RequiresComment = *req.RequiresComment
	}

	if req.DisplayOrder != nil {
		transition.DisplayOrder = *req.DisplayOrder
	}

	transition.UpdatedAt = time.Now().UTC()

	err = w.persistence.Transitions().Save(ctx, transition)
	if err != nil {
		return nil, fmt.Errorf("failed to save transition: %w", err)
	}

	return transition, w.touch(ctx, wf)
}

// DeleteTransition removes a transition. On an active workflow the remaining
// graph must still validate.
func (w *Workflow) DeleteTransition(ctx context.Context, workflowID, transitionID string) error {
	wf, states, transitions, err := w.mutableGraphParts(ctx, workflowID)
	if err != nil {
		return err
	}

	remaining := make([]*models.WorkflowTransition, 0, len(transitions))
	found := false

	for _, candidate := range transitions {
		if candidate.ID == transitionID {
			found = true

			continue
		}

		remaining = append(remaining, candidate)
	}

	if !found {
		return persistence.ErrTransitionNotFound
	}

	err = w.checkGraph(wf, states, remaining)
	if err != nil {
		return err
	}

	err = w.persistence.Transitions().Delete(ctx, transitionID)
	if err != nil {
		return fmt.Errorf("failed to delete transition: %w", err)
	}

	return w.touch(ctx, wf)
}

// ValidateWorkflow builds the stored graph and returns the activation
// issues, one message per violation. Empty means activatable.
func (w *Workflow) ValidateWorkflow(ctx context.Context, workflowID string) ([]string, error) {
	wf, states, transitions, err := w.loadGraphParts(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	graph, err := workflow.BuildStateGraph(wf, states, transitions)
	if err != nil {
		return []string{err.Error()}, nil
	}

	return graph.Validate(), nil
}

// ValidateTransition resolves the workflow governing the project and decides
// whether the state change is allowed. The decision is pure; callers apply
// the change themselves.
func (w *Workflow) ValidateTransition(ctx context.Context, organizationID, projectID, fromStateID, toStateID string, snapshot map[string]any, comment string) (bool, string, error) {
	graph, err := w.registry.Resolve(ctx, organizationID, projectID)
	if err != nil {
		return false, "", fmt.Errorf("failed to resolve workflow: %w", err)
	}

	allowed, reason := w.validator.CanTransition(graph, fromStateID, toStateID, snapshot, comment)

	return allowed, reason, nil
}

// clearDefault unsets the organization's current default workflow, if any.
func (w *Workflow) clearDefault(ctx context.Context, organizationID string) error {
	current, err := w.persistence.Workflows().GetDefaultWorkflow(ctx, organizationID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return nil
		}

		return fmt.Errorf("failed to look up default workflow: %w", err)
	}

	current.IsDefault = false
	current.UpdatedAt = time.Now().UTC()

	err = w.persistence.Workflows().Save(ctx, current)
	if err != nil {
		return fmt.Errorf("failed to unset default workflow: %w", err)
	}

	w.registry.Invalidate(current)

	return nil
}

func (w *Workflow) loadGraphParts(ctx context.Context, workflowID string) (*models.Workflow, []*models.WorkflowState, []*models.WorkflowTransition, error) {
	wf, err := w.persistence.Workflows().GetByID(ctx, workflowID)
	if err != nil {
		return nil, nil, nil, err
	}

	states, err := w.persistence.States().ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load states: %w", err)
	}

	transitions, err := w.persistence.Transitions().ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load transitions: %w", err)
	}

	return wf, states, transitions, nil
}

// mutableGraphParts loads the graph parts and rejects system workflows.
func (w *Workflow) mutableGraphParts(ctx context.Context, workflowID string) (*models.Workflow, []*models.WorkflowState, []*models.WorkflowTransition, error) {
	wf, states, transitions, err := w.loadGraphParts(ctx, workflowID)
	if err != nil {
		return nil, nil, nil, err
	}

	if wf.IsSystem {
		return nil, nil, nil, ErrSystemWorkflowImmutable
	}

	return wf, states, transitions, nil
}

// checkGraph rebuilds the graph from the proposed parts. Structural errors
// always reject the change; activation issues reject it only while the
// workflow is active.
func (w *Workflow) checkGraph(wf *models.Workflow, states []*models.WorkflowState, transitions []*models.WorkflowTransition) error {
	graph, err := workflow.BuildStateGraph(wf, states, transitions)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrGraphInvariantBroken, err)
	}

	if wf.IsActive {
		if issues := graph.Validate(); len(issues) > 0 {
			return fmt.Errorf("%w: %s", ErrGraphInvariantBroken, strings.Join(issues, "; "))
		}
	}

	return nil
}

// touch bumps the workflow version and invalidates cached graphs. The
// registry cache is versioned by UpdatedAt, so every graph mutation must
// pass through here.
func (w *Workflow) touch(ctx context.Context, wf *models.Workflow) error {
	wf.UpdatedAt = time.Now().UTC()

	err := w.persistence.Workflows().Save(ctx, wf)
	if err != nil {
		return fmt.Errorf("failed to update workflow version: %w", err)
	}

	w.registry.Invalidate(wf)

	return nil
}

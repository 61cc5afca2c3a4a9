package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/taskloom/taskloom/pkg/models"
	"github.com/taskloom/taskloom/pkg/persistence"
)

// Registry resolves the state graph governing a project. Resolution order:
// project-scoped active workflow, else the organization's default active
// workflow, else a built-in fallback graph, so no project ever runs with an
// undefined workflow.
type Registry struct {
	persistence persistence.Persistence
	logger      *slog.Logger

	mu    sync.RWMutex
	cache map[string]*cacheEntry
}

type cacheEntry struct {
	graph      *StateGraph
	workflowID string
}

// NewRegistry creates a workflow registry backed by the given persistence.
func NewRegistry(p persistence.Persistence, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		persistence: p,
		logger:      logger.With("module", "workflow_registry"),
		cache:       make(map[string]*cacheEntry),
	}
}

// Resolve returns the graph for the project. projectID may be empty for
// organization-level events. Invalid stored graphs are skipped with a log
// line rather than served.
func (r *Registry) Resolve(ctx context.Context, organizationID, projectID string) (*StateGraph, error) {
	key := organizationID + "/" + projectID

	r.mu.RLock()
	entry, cached := r.cache[key]
	r.mu.RUnlock()

	if cached {
		return entry.graph, nil
	}

	graph, err := r.resolve(ctx, organizationID, projectID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[key] = &cacheEntry{graph: graph, workflowID: graph.WorkflowID()}
	r.mu.Unlock()

	return graph, nil
}

func (r *Registry) resolve(ctx context.Context, organizationID, projectID string) (*StateGraph, error) {
	if projectID != "" {
		wf, err := r.persistence.Workflows().GetProjectWorkflow(ctx, projectID)

		switch {
		case err == nil:
			graph, loadErr := r.load(ctx, wf)
			if loadErr == nil {
				return graph, nil
			}

			r.logger.WarnContext(ctx, "Project workflow is invalid, falling back",
				"workflow_id", wf.ID, "project_id", projectID, "error", loadErr)
		case !persistence.IsWorkflowNotFound(err):
			return nil, fmt.Errorf("failed to resolve project workflow: %w", err)
		}
	}

	wf, err := r.persistence.Workflows().GetDefaultWorkflow(ctx, organizationID)

	switch {
	case err == nil:
		graph, loadErr := r.load(ctx, wf)
		if loadErr == nil {
			return graph, nil
		}

		r.logger.WarnContext(ctx, "Default workflow is invalid, falling back",
			"workflow_id", wf.ID, "organization_id", organizationID, "error", loadErr)
	case !persistence.IsWorkflowNotFound(err):
		return nil, fmt.Errorf("failed to resolve default workflow: %w", err)
	}

	return FallbackGraph(), nil
}

func (r *Registry) load(ctx context.Context, wf *models.Workflow) (*StateGraph, error) {
	states, err := r.persistence.States().ListByWorkflow(ctx, wf.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load states for workflow %s: %w", wf.ID, err)
	}

	transitions, err := r.persistence.Transitions().ListByWorkflow(ctx, wf.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transitions for workflow %s: %w", wf.ID, err)
	}

	return NewStateGraph(wf, states, transitions)
}

// Invalidate drops cached graphs affected by a mutation of wf. Services
// call it on every state, transition or workflow mutation. Entries backed
// by the workflow itself go, and so do the scope keys the workflow can now
// win or lose: its own project key for project-scoped workflows, every key
// in the organization for organization-level ones, since those entries may
// still be serving the fallback or a previous default. Correctness over
// hit rate, a stale graph must never allow a removed transition or keep a
// project on the fallback after its workflow activates.
func (r *Registry) Invalidate(wf *models.Workflow) {
	if wf == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, entry := range r.cache {
		switch {
		case entry.workflowID == wf.ID:
			delete(r.cache, key)
		case wf.ProjectID != nil:
			if key == wf.OrganizationID+"/"+*wf.ProjectID {
				delete(r.cache, key)
			}
		case strings.HasPrefix(key, wf.OrganizationID+"/"):
			delete(r.cache, key)
		}
	}
}

// InvalidateAll empties the cache.
func (r *Registry) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache = make(map[string]*cacheEntry)
}

// Fallback graph state IDs, stable so transition decisions are reproducible.
const (
	FallbackStateTodo       = "fallback-todo"
	FallbackStateInProgress = "fallback-in-progress"
	FallbackStateDone       = "fallback-done"
	FallbackStateCancelled  = "fallback-cancelled"
)

// FallbackGraph returns the built-in minimal graph: Todo → In Progress →
// Done with a Cancelled terminal reachable from the non-final states.
func FallbackGraph() *StateGraph {
	states := []*models.WorkflowState{
		{ID: FallbackStateTodo, Name: "To Do", Category: models.CategoryTodo, IsInitial: true, DisplayOrder: 0},
		{ID: FallbackStateInProgress, Name: "In Progress", Category: models.CategoryInProgress, DisplayOrder: 1},
		{ID: FallbackStateDone, Name: "Done", Category: models.CategoryDone, IsFinal: true, DisplayOrder: 2},
		{ID: FallbackStateCancelled, Name: "Cancelled", Category: models.CategoryCancelled, IsFinal: true, DisplayOrder: 3},
	}

	transitions := []*models.WorkflowTransition{
		{ID: "fallback-start", FromStateID: FallbackStateTodo, ToStateID: FallbackStateInProgress, Name: "Start Progress"},
		{ID: "fallback-complete", FromStateID: FallbackStateInProgress, ToStateID: FallbackStateDone, Name: "Complete"},
		{ID: "fallback-cancel-todo", FromStateID: FallbackStateTodo, ToStateID: FallbackStateCancelled, Name: "Cancel"},
		{ID: "fallback-cancel-progress", FromStateID: FallbackStateInProgress, ToStateID: FallbackStateCancelled, Name: "Cancel"},
	}

	graph, err := NewStateGraph(nil, states, transitions)
	if err != nil {
		// The fallback graph is a compile-time constant; failing to build it
		// is a programming error.
		panic(fmt.Sprintf("fallback graph invalid: %v", err))
	}

	return graph
}

package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskloom/taskloom/pkg/models"
)

func bugTrackingStates() []*models.WorkflowState {
	return []*models.WorkflowState{
		{ID: "s-todo", WorkflowID: "wf-1", Name: "Todo", Category: models.CategoryTodo, IsInitial: true, DisplayOrder: 0},
		{ID: "s-progress", WorkflowID: "wf-1", Name: "InProgress", Category: models.CategoryInProgress, DisplayOrder: 1},
		{ID: "s-done", WorkflowID: "wf-1", Name: "Done", Category: models.CategoryDone, IsFinal: true, DisplayOrder: 2},
	}
}

func bugTrackingTransitions() []*models.WorkflowTransition {
	return []*models.WorkflowTransition{
		{ID: "t-start", WorkflowID: "wf-1", FromStateID: "s-todo", ToStateID: "s-progress"},
		{ID: "t-finish", WorkflowID: "wf-1", FromStateID: "s-progress", ToStateID: "s-done"},
	}
}

func TestNewStateGraph_Valid(t *testing.T) {
	graph, err := NewStateGraph(
		&models.Workflow{ID: "wf-1"},
		bugTrackingStates(),
		bugTrackingTransitions(),
	)

	require.NoError(t, err)
	assert.Empty(t, graph.Validate())
	assert.Equal(t, "wf-1", graph.WorkflowID())

	initial, ok := graph.InitialState()
	require.True(t, ok)
	assert.Equal(t, "Todo", initial.Name)

	finals := graph.FinalStates()
	require.Len(t, finals, 1)
	assert.Equal(t, "Done", finals[0].Name)
}

func TestNewStateGraph_Invariants(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(states []*models.WorkflowState)
		issue  string
	}{
		{
			name:   "second initial state",
			mutate: func(states []*models.WorkflowState) { states[1].IsInitial = true; states[1].Category = models.CategoryTodo },
			issue:  "workflow can only have one initial state",
		},
		{
			name:   "no initial state",
			mutate: func(states []*models.WorkflowState) { states[0].IsInitial = false },
			issue:  "workflow must have an initial state",
		},
		{
			name:   "no final state",
			mutate: func(states []*models.WorkflowState) { states[2].IsFinal = false },
			issue:  "workflow must have at least one final state",
		},
		{
			name:   "initial state outside todo",
			mutate: func(states []*models.WorkflowState) { states[0].Category = models.CategoryInProgress },
			issue:  `initial state "Todo" must be in todo category`,
		},
		{
			name:   "final state outside done or cancelled",
			mutate: func(states []*models.WorkflowState) { states[2].Category = models.CategoryInProgress },
			issue:  `final state "Done" must be in done or cancelled category`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			states := bugTrackingStates()
			tc.mutate(states)

			graph, err := BuildStateGraph(&models.Workflow{ID: "wf-1"}, states, bugTrackingTransitions())
			require.NoError(t, err)
			assert.Contains(t, graph.Validate(), tc.issue)

			_, err = NewStateGraph(&models.Workflow{ID: "wf-1"}, states, bugTrackingTransitions())
			assert.ErrorIs(t, err, ErrGraphInvalid)
		})
	}
}

func TestBuildStateGraph_StructuralErrors(t *testing.T) {
	states := bugTrackingStates()

	_, err := BuildStateGraph(nil, states, []*models.WorkflowTransition{
		{ID: "t-self", FromStateID: "s-todo", ToStateID: "s-todo"},
	})
	assert.ErrorIs(t, err, ErrSelfTransition)

	_, err = BuildStateGraph(nil, states, []*models.WorkflowTransition{
		{ID: "t-1", FromStateID: "s-todo", ToStateID: "s-progress"},
		{ID: "t-2", FromStateID: "s-todo", ToStateID: "s-progress"},
	})
	assert.ErrorIs(t, err, ErrDuplicateTransition)

	_, err = BuildStateGraph(nil, states, []*models.WorkflowTransition{
		{ID: "t-1", FromStateID: "s-todo", ToStateID: "s-missing"},
	})
	assert.ErrorIs(t, err, ErrStateNotInGraph)

	duplicated := append(bugTrackingStates(), &models.WorkflowState{
		ID: "s-other", Name: "Todo", Category: models.CategoryTodo,
	})
	_, err = BuildStateGraph(nil, duplicated, nil)
	assert.ErrorIs(t, err, ErrDuplicateStateName)
}

func TestStateGraph_WithState(t *testing.T) {
	graph, err := NewStateGraph(nil, bugTrackingStates(), bugTrackingTransitions())
	require.NoError(t, err)

	// Second initial state is rejected.
	_, err = graph.WithState(&models.WorkflowState{
		ID: "s-new", Name: "Backlog", Category: models.CategoryTodo, IsInitial: true,
	})
	assert.ErrorIs(t, err, ErrGraphInvalid)

	// Regular addition produces a new graph; the original is untouched.
	grown, err := graph.WithState(&models.WorkflowState{
		ID: "s-review", Name: "Review", Category: models.CategoryInProgress,
	})
	require.NoError(t, err)

	_, exists := grown.State("s-review")
	assert.True(t, exists)

	_, exists = graph.State("s-review")
	assert.False(t, exists)
}

func TestStateGraph_RemoveStateRequiresTransitionRemoval(t *testing.T) {
	graph, err := NewStateGraph(nil, bugTrackingStates(), bugTrackingTransitions())
	require.NoError(t, err)

	// Removing a referenced state fails with StateInUseError.
	_, err = graph.WithoutState("s-progress")
	require.Error(t, err)
	assert.True(t, IsStateInUse(err))

	var inUse *StateInUseError
	require.ErrorAs(t, err, &inUse)
	assert.Equal(t, "s-progress", inUse.StateID)
	assert.Equal(t, 2, inUse.Transitions)

	// Removing the transitions first, then the state, succeeds.
	pruned, err := graph.WithoutTransition("s-todo", "s-progress")
	require.NoError(t, err)

	pruned, err = pruned.WithoutTransition("s-progress", "s-done")
	require.NoError(t, err)

	pruned, err = pruned.WithoutState("s-progress")
	require.NoError(t, err)

	_, exists := pruned.State("s-progress")
	assert.False(t, exists)
}

func TestStateGraph_OutgoingTransitions(t *testing.T) {
	transitions := append(bugTrackingTransitions(), &models.WorkflowTransition{
		ID: "t-abort", FromStateID: "s-todo", ToStateID: "s-done", DisplayOrder: -1,
	})

	graph, err := NewStateGraph(nil, bugTrackingStates(), transitions)
	require.NoError(t, err)

	outgoing := graph.OutgoingTransitions("s-todo")
	require.Len(t, outgoing, 2)
	assert.Equal(t, "t-abort", outgoing[0].ID)
	assert.Equal(t, "t-start", outgoing[1].ID)
}

func TestFallbackGraph(t *testing.T) {
	graph := FallbackGraph()

	assert.Empty(t, graph.Validate())

	initial, ok := graph.InitialState()
	require.True(t, ok)
	assert.Equal(t, FallbackStateTodo, initial.ID)

	_, ok = graph.Transition(FallbackStateTodo, FallbackStateInProgress)
	assert.True(t, ok)

	_, ok = graph.Transition(FallbackStateTodo, FallbackStateDone)
	assert.False(t, ok)
}

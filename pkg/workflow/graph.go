// Package workflow implements runtime-defined state graphs: validated
// workflow definitions, transition decisions and workflow resolution.
package workflow

import (
	"fmt"
	"sort"
	"time"

	"github.com/taskloom/taskloom/pkg/models"
)

type transitionKey struct {
	from string
	to   string
}

// StateGraph is an immutable, validated snapshot of one workflow's states
// and transitions. Mutating operations return a new graph and never modify
// the receiver, so a transition decision in flight keeps the graph it
// started with.
type StateGraph struct {
	workflowID  string
	version     time.Time
	states      map[string]*models.WorkflowState
	nameIndex   map[string]string
	transitions map[transitionKey]*models.WorkflowTransition
}

// NewStateGraph builds a graph and checks the full activation invariants.
// Resolution paths use this so the engine never holds an invalid graph.
func NewStateGraph(wf *models.Workflow, states []*models.WorkflowState, transitions []*models.WorkflowTransition) (*StateGraph, error) {
	graph, err := BuildStateGraph(wf, states, transitions)
	if err != nil {
		return nil, err
	}

	if issues := graph.Validate(); len(issues) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrGraphInvalid, issues[0])
	}

	return graph, nil
}

// BuildStateGraph builds a graph with structural checks only (duplicate
// names, duplicate or dangling transitions, self-loops). A graph under
// construction may still be incomplete; Validate reports the remaining
// activation issues.
func BuildStateGraph(wf *models.Workflow, states []*models.WorkflowState, transitions []*models.WorkflowTransition) (*StateGraph, error) {
	graph := &StateGraph{
		states:      make(map[string]*models.WorkflowState, len(states)),
		nameIndex:   make(map[string]string, len(states)),
		transitions: make(map[transitionKey]*models.WorkflowTransition, len(transitions)),
	}

	if wf != nil {
		graph.workflowID = wf.ID
		graph.version = wf.UpdatedAt
	}

	for _, state := range states {
		if _, exists := graph.states[state.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate state ID %s", ErrGraphInvalid, state.ID)
		}

		if _, exists := graph.nameIndex[state.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStateName, state.Name)
		}

		graph.states[state.ID] = state
		graph.nameIndex[state.Name] = state.ID
	}

	for _, transition := range transitions {
		if err := graph.checkTransition(transition); err != nil {
			return nil, err
		}

		graph.transitions[transitionKey{from: transition.FromStateID, to: transition.ToStateID}] = transition
	}

	return graph, nil
}

func (g *StateGraph) checkTransition(transition *models.WorkflowTransition) error {
	if transition.FromStateID == transition.ToStateID {
		return ErrSelfTransition
	}

	if _, exists := g.states[transition.FromStateID]; !exists {
		return fmt.Errorf("%w: %s", ErrStateNotInGraph, transition.FromStateID)
	}

	if _, exists := g.states[transition.ToStateID]; !exists {
		return fmt.Errorf("%w: %s", ErrStateNotInGraph, transition.ToStateID)
	}

	if _, exists := g.transitions[transitionKey{from: transition.FromStateID, to: transition.ToStateID}]; exists {
		return ErrDuplicateTransition
	}

	return nil
}

// Validate checks the structural invariants and returns one message per
// violation. An empty result means the graph is activatable.
func (g *StateGraph) Validate() []string {
	var issues []string

	if len(g.states) == 0 {
		return []string{"workflow must have at least one state"}
	}

	var initial, final int

	for _, state := range g.sortedStates() {
		if state.IsInitial {
			initial++

			if state.Category != models.CategoryTodo {
				issues = append(issues, fmt.Sprintf("initial state %q must be in todo category", state.Name))
			}
		}

		if state.IsFinal {
			final++

			if state.Category != models.CategoryDone && state.Category != models.CategoryCancelled {
				issues = append(issues, fmt.Sprintf("final state %q must be in done or cancelled category", state.Name))
			}
		}

		if state.IsInitial && state.IsFinal {
			issues = append(issues, fmt.Sprintf("state %q cannot be both initial and final", state.Name))
		}

		if !state.Category.Valid() {
			issues = append(issues, fmt.Sprintf("state %q has unknown category %q", state.Name, state.Category))
		}
	}

	switch {
	case initial == 0:
		issues = append(issues, "workflow must have an initial state")
	case initial > 1:
		issues = append(issues, "workflow can only have one initial state")
	}

	if final == 0 {
		issues = append(issues, "workflow must have at least one final state")
	}

	if len(g.transitions) == 0 {
		issues = append(issues, "workflow must have at least one transition")
	}

	return issues
}

// WorkflowID returns the owning workflow's ID, empty for built-in graphs.
func (g *StateGraph) WorkflowID() string {
	return g.workflowID
}

// Version returns the workflow's UpdatedAt captured at construction.
func (g *StateGraph) Version() time.Time {
	return g.version
}

// State returns a state by ID.
func (g *StateGraph) State(id string) (*models.WorkflowState, bool) {
	state, exists := g.states[id]

	return state, exists
}

// StateByName returns a state by its unique name.
func (g *StateGraph) StateByName(name string) (*models.WorkflowState, bool) {
	id, exists := g.nameIndex[name]
	if !exists {
		return nil, false
	}

	return g.states[id], true
}

// InitialState returns the single initial state of a valid graph.
func (g *StateGraph) InitialState() (*models.WorkflowState, bool) {
	for _, state := range g.states {
		if state.IsInitial {
			return state, true
		}
	}

	return nil, false
}

// FinalStates returns all final states sorted by display order.
func (g *StateGraph) FinalStates() []*models.WorkflowState {
	var finals []*models.WorkflowState

	for _, state := range g.sortedStates() {
		if state.IsFinal {
			finals = append(finals, state)
		}
	}

	return finals
}

// States returns all states sorted by display order, then name.
func (g *StateGraph) States() []*models.WorkflowState {
	return g.sortedStates()
}

// Transition returns the transition for the (from, to) pair, if any.
func (g *StateGraph) Transition(fromID, toID string) (*models.WorkflowTransition, bool) {
	transition, exists := g.transitions[transitionKey{from: fromID, to: toID}]

	return transition, exists
}

// OutgoingTransitions returns the transitions leaving a state, sorted by
// display order.
func (g *StateGraph) OutgoingTransitions(fromID string) []*models.WorkflowTransition {
	var outgoing []*models.WorkflowTransition

	for _, transition := range g.transitions {
		if transition.FromStateID == fromID {
			outgoing = append(outgoing, transition)
		}
	}

	sort.Slice(outgoing, func(i, j int) bool {
		if outgoing[i].DisplayOrder != outgoing[j].DisplayOrder {
			return outgoing[i].DisplayOrder < outgoing[j].DisplayOrder
		}

		return outgoing[i].ToStateID < outgoing[j].ToStateID
	})

	return outgoing
}

// WithState returns a new graph containing the additional state. The new
// graph is checked for name collisions but not for full activation
// invariants: a graph under construction may be temporarily incomplete.
func (g *StateGraph) WithState(state *models.WorkflowState) (*StateGraph, error) {
	if _, exists := g.states[state.ID]; exists {
		return nil, fmt.Errorf("%w: duplicate state ID %s", ErrGraphInvalid, state.ID)
	}

	if _, exists := g.nameIndex[state.Name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateStateName, state.Name)
	}

	if state.IsInitial {
		for _, existing := range g.states {
			if existing.IsInitial {
				return nil, fmt.Errorf("%w: workflow already has an initial state", ErrGraphInvalid)
			}
		}
	}

	clone := g.clone()
	clone.states[state.ID] = state
	clone.nameIndex[state.Name] = state.ID

	return clone, nil
}

// WithTransition returns a new graph containing the additional transition.
func (g *StateGraph) WithTransition(transition *models.WorkflowTransition) (*StateGraph, error) {
	if err := g.checkTransition(transition); err != nil {
		return nil, err
	}

	clone := g.clone()
	clone.transitions[transitionKey{from: transition.FromStateID, to: transition.ToStateID}] = transition

	return clone, nil
}

// WithoutState returns a new graph with the state removed. Removal fails
// with StateInUseError while any transition still references the state.
func (g *StateGraph) WithoutState(stateID string) (*StateGraph, error) {
	state, exists := g.states[stateID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStateNotInGraph, stateID)
	}

	var references int

	for key := range g.transitions {
		if key.from == stateID || key.to == stateID {
			references++
		}
	}

	if references > 0 {
		return nil, &StateInUseError{StateID: stateID, Transitions: references}
	}

	clone := g.clone()
	delete(clone.states, stateID)
	delete(clone.nameIndex, state.Name)

	return clone, nil
}

// WithoutTransition returns a new graph with the (from, to) transition removed.
func (g *StateGraph) WithoutTransition(fromID, toID string) (*StateGraph, error) {
	key := transitionKey{from: fromID, to: toID}
	if _, exists := g.transitions[key]; !exists {
		return nil, fmt.Errorf("no transition from %s to %s", fromID, toID)
	}

	clone := g.clone()
	delete(clone.transitions, key)

	return clone, nil
}

func (g *StateGraph) clone() *StateGraph {
	clone := &StateGraph{
		workflowID:  g.workflowID,
		version:     g.version,
		states:      make(map[string]*models.WorkflowState, len(g.states)),
		nameIndex:   make(map[string]string, len(g.nameIndex)),
		transitions: make(map[transitionKey]*models.WorkflowTransition, len(g.transitions)),
	}

	for id, state := range g.states {
		clone.states[id] = state
	}

	for name, id := range g.nameIndex {
		clone.nameIndex[name] = id
	}

	for key, transition := range g.transitions {
		clone.transitions[key] = transition
	}

	return clone
}

func (g *StateGraph) sortedStates() []*models.WorkflowState {
	states := make([]*models.WorkflowState, 0, len(g.states))
	for _, state := range g.states {
		states = append(states, state)
	}

	sort.Slice(states, func(i, j int) bool {
		if states[i].DisplayOrder != states[j].DisplayOrder {
			return states[i].DisplayOrder < states[j].DisplayOrder
		}

		return states[i].Name < states[j].Name
	})

	return states
}

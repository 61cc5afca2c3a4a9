package file

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/taskloom/taskloom/pkg/models"
	"github.com/taskloom/taskloom/pkg/persistence"
)

const (
	statesCollection      = "states"
	transitionsCollection = "transitions"
)

// StateRepository stores workflow states as JSON files.
type StateRepository struct {
	store *store
}

func (sr *StateRepository) GetByID(_ context.Context, id string) (*models.WorkflowState, error) {
	var state models.WorkflowState

	err := sr.store.read(statesCollection, id, &state)
	if err != nil {
		if isNotExist(err) {
			return nil, persistence.ErrStateNotFound
		}

		return nil, &persistence.RepositoryError{Op: "get state", EntityID: id, Err: err}
	}

	return &state, nil
}

func (sr *StateRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.WorkflowState, error) {
	states := make([]*models.WorkflowState, 0)

	err := sr.store.readAll(statesCollection, func(data []byte) error {
		var state models.WorkflowState

		err := json.Unmarshal(data, &state)
		if err != nil {
			return err
		}

		if state.WorkflowID == workflowID {
			states = append(states, &state)
		}

		return nil
	})
	if err != nil {
		return nil, &persistence.RepositoryError{Op: "list states", EntityID: workflowID, Err: err}
	}

	sort.Slice(states, func(i, j int) bool {
		if states[i].DisplayOrder != states[j].DisplayOrder {
			return states[i].DisplayOrder < states[j].DisplayOrder
		}

		return states[i].Name < states[j].Name
	})

	return states, nil
}

func (sr *StateRepository) Save(_ context.Context, state *models.WorkflowState) error {
	err := sr.store.write(statesCollection, state.ID, state)
	if err != nil {
		return &persistence.RepositoryError{Op: "save state", EntityID: state.ID, Err: err}
	}

	return nil
}

func (sr *StateRepository) Delete(_ context.Context, id string) error {
	err := sr.store.remove(statesCollection, id)
	if err != nil {
		if isNotExist(err) {
			return persistence.ErrStateNotFound
		}

		return &persistence.RepositoryError{Op: "delete state", EntityID: id, Err: err}
	}

	return nil
}

func (sr *StateRepository) Reorder(ctx context.Context, workflowID string, orderedIDs []string) error {
	states, err := sr.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}

	position := make(map[string]int, len(orderedIDs))
	for i, id := range orderedIDs {
		position[id] = i
	}

	now := time.Now().UTC()

	for _, state := range states {
		order, listed := position[state.ID]
		if !listed {
			continue
		}

		state.DisplayOrder = order
		state.UpdatedAt = now

		err = sr.Save(ctx, state)
		if err != nil {
			return err
		}
	}

	return nil
}

// TransitionRepository stores workflow transitions as JSON files.
type TransitionRepository struct {
	store *store
}

func (tr *TransitionRepository) GetByID(_ context.Context, id string) (*models.WorkflowTransition, error) {
	var transition models.WorkflowTransition

	err := tr.store.read(transitionsCollection, id, &transition)
	if err != nil {
		if isNotExist(err) {
			return nil, persistence.ErrTransitionNotFound
		}

		return nil, &persistence.RepositoryError{Op: "get transition", EntityID: id, Err: err}
	}

	return &transition, nil
}

func (tr *TransitionRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.WorkflowTransition, error) {
	transitions := make([]*models.WorkflowTransition, 0)

	err := tr.store.readAll(transitionsCollection, func(data []byte) error {
		var transition models.WorkflowTransition

		err := json.Unmarshal(data, &transition)
		if err != nil {
			return err
		}

		if transition.WorkflowID == workflowID {
			transitions = append(transitions, &transition)
		}

		return nil
	})
	if err != nil {
		return nil, &persistence.RepositoryError{Op: "list transitions", EntityID: workflowID, Err: err}
	}

	sort.Slice(transitions, func(i, j int) bool {
		if transitions[i].DisplayOrder != transitions[j].DisplayOrder {
			return transitions[i].DisplayOrder < transitions[j].DisplayOrder
		}

		return transitions[i].ID < transitions[j].ID
	})

	return transitions, nil
}

func (tr *TransitionRepository) Save(_ context.Context, transition *models.WorkflowTransition) error {
	err := tr.store.write(transitionsCollection, transition.ID, transition)
	if err != nil {
		return &persistence.RepositoryError{Op: "save transition", EntityID: transition.ID, Err: err}
	}

	return nil
}

func (tr *TransitionRepository) Delete(_ context.Context, id string) error {
	err := tr.store.remove(transitionsCollection, id)
	if err != nil {
		if isNotExist(err) {
			return persistence.ErrTransitionNotFound
		}

		return &persistence.RepositoryError{Op: "delete transition", EntityID: id, Err: err}
	}

	return nil
}

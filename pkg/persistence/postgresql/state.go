package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/taskloom/taskloom/pkg/models"
	"github.com/taskloom/taskloom/pkg/persistence"
)

// StateRepository handles workflow state database operations.
type StateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const stateColumns = `
	id
  , workflow_id
  , name
  , description
  , category
  , color
  , is_initial
  , is_final
  , display_order
  , created_at
  , updated_at
`

func (r *StateRepository) GetByID(ctx context.Context, id string) (*models.WorkflowState, error) {
	query := `SELECT ` + stateColumns + ` FROM workflow_states WHERE id = $1`

	state, err := scanState(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrStateNotFound
		}

		return nil, fmt.Errorf("failed to scan state: %w", err)
	}

	return state, nil
}

func (r *StateRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowState, error) {
	query := `
		SELECT ` + stateColumns + `
		FROM workflow_states
		WHERE workflow_id = $1
		ORDER BY display_order, name
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query states: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	states := make([]*models.WorkflowState, 0)

	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan state: %w", err)
		}

		states = append(states, state)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating states: %w", err)
	}

	return states, nil
}

func (r *StateRepository) Save(ctx context.Context, state *models.WorkflowState) error {
	now := time.Now().UTC()

	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}

	state.UpdatedAt = now

	if state.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate state ID: %w", err)
		}

		state.ID = id.String()
	}

	query := `
		INSERT INTO workflow_states (
			id, workflow_id, name, description, category, color,
			is_initial, is_final, display_order, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			color = EXCLUDED.color,
			is_initial = EXCLUDED.is_initial,
			is_final = EXCLUDED.is_final,
			display_order = EXCLUDED.display_order,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		state.ID, state.WorkflowID, state.Name, state.Description,
		state.Category, state.Color, state.IsInitial, state.IsFinal,
		state.DisplayOrder, state.CreatedAt, state.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.ErrDuplicateName
		}

		return fmt.Errorf("failed to save state: %w", err)
	}

	return nil
}

func (r *StateRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflow_states WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrStateNotFound
	}

	return nil
}

// Reorder updates display_order for the listed states in one transaction.
func (r *StateRepository) Reorder(ctx context.Context, workflowID string, orderedIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reorder transaction: %w", err)
	}

	now := time.Now().UTC()

	for i, id := range orderedIDs {
		_, err = tx.ExecContext(ctx,
			`UPDATE workflow_states SET display_order = $1, updated_at = $2 WHERE id = $3 AND workflow_id = $4`,
			i, now, id, workflowID,
		)
		if err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("failed to reorder state %s: %w", id, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}

	return nil
}

func scanState(row rowScanner) (*models.WorkflowState, error) {
	var state models.WorkflowState

	err := row.Scan(
		&state.ID, &state.WorkflowID, &state.Name, &state.Description,
		&state.Category, &state.Color, &state.IsInitial, &state.IsFinal,
		&state.DisplayOrder, &state.CreatedAt, &state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &state, nil
}

// TransitionRepository handles workflow transition database operations.
type TransitionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const transitionColumns = `
	id
  , workflow_id
  , from_state_id
  , to_state_id
  , name
  , description
  , conditions
  , requires_comment
  , display_order
  , created_at
  , updated_at
`

func (r *TransitionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowTransition, error) {
	query := `SELECT ` + transitionColumns + ` FROM workflow_transitions WHERE id = $1`

	transition, err := scanTransition(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTransitionNotFound
		}

		return nil, fmt.Errorf("failed to scan transition: %w", err)
	}

	return transition, nil
}

func (r *TransitionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowTransition, error) {
	query := `
		SELECT ` + transitionColumns + `
		FROM workflow_transitions
		WHERE workflow_id = $1
		ORDER BY display_order, id
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	transitions := make([]*models.WorkflowTransition, 0)

	for rows.Next() {
		transition, err := scanTransition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}

		transitions = append(transitions, transition)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating transitions: %w", err)
	}

	return transitions, nil
}

func (r *TransitionRepository) Save(ctx context.Context, transition *models.WorkflowTransition) error {
	now := time.Now().UTC()

	if transition.CreatedAt.IsZero() {
		transition.CreatedAt = now
	}

	transition.UpdatedAt = now

	if transition.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate transition ID: %w", err)
		}

		transition.ID = id.String()
	}

	conditionsJSON, err := json.Marshal(transition.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal conditions: %w", err)
	}

	query := `
		INSERT INTO workflow_transitions (
			id, workflow_id, from_state_id, to_state_id, name, description,
			conditions, requires_comment, display_order, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			from_state_id = EXCLUDED.from_state_id,
			to_state_id = EXCLUDED.to_state_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			conditions = EXCLUDED.conditions,
			requires_comment = EXCLUDED.requires_comment,
			display_order = EXCLUDED.display_order,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		transition.ID, transition.WorkflowID, transition.FromStateID, transition.ToStateID,
		transition.Name, transition.Description, conditionsJSON,
		transition.RequiresComment, transition.DisplayOrder,
		transition.CreatedAt, transition.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.ErrDuplicateName
		}

		return fmt.Errorf("failed to save transition: %w", err)
	}

	return nil
}

func (r *TransitionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflow_transitions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transition: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrTransitionNotFound
	}

	return nil
}

func scanTransition(row rowScanner) (*models.WorkflowTransition, error) {
	var (
		transition     models.WorkflowTransition
		conditionsJSON []byte
	)

	err := row.Scan(
		&transition.ID, &transition.WorkflowID, &transition.FromStateID, &transition.ToStateID,
		&transition.Name, &transition.Description, &conditionsJSON,
		&transition.RequiresComment, &transition.DisplayOrder,
		&transition.CreatedAt, &transition.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(conditionsJSON) > 0 {
		err = json.Unmarshal(conditionsJSON, &transition.Conditions)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal conditions: %w", err)
		}
	}

	return &transition, nil
}

package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/taskloom/taskloom/pkg/models"
)

// ExecutionLogRepository handles execution audit log database operations.
// Rows are append-only; there is no update path.
type ExecutionLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const executionLogColumns = `
	id
  , rule_id
  , rule_name
  , workflow_id
  , organization_id
  , task_id
  , trigger_type
  , snapshot
  , conditions_met
  , status
  , reason
  , action_results
  , error
  , depth
  , started_at
  , duration_ms
`

func (r *ExecutionLogRepository) Append(ctx context.Context, entry *models.ExecutionLogEntry) error {
	snapshotJSON, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	actionResultsJSON, err := json.Marshal(entry.ActionResults)
	if err != nil {
		return fmt.Errorf("failed to marshal action results: %w", err)
	}

	query := `
		INSERT INTO execution_logs (
			id, rule_id, rule_name, workflow_id, organization_id, task_id,
			trigger_type, snapshot, conditions_met, status, reason,
			action_results, error, depth, started_at, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID, entry.RuleID, entry.RuleName, entry.WorkflowID,
		entry.OrganizationID, entry.TaskID, string(entry.TriggerType),
		snapshotJSON, entry.ConditionsMet, string(entry.Status), entry.Reason,
		actionResultsJSON, entry.Error, entry.Depth, entry.StartedAt, entry.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to append execution log: %w", err)
	}

	return nil
}

func (r *ExecutionLogRepository) ListByRule(ctx context.Context, ruleID string, status *models.ExecutionStatus, limit int) ([]*models.ExecutionLogEntry, error) {
	query := `
		SELECT ` + executionLogColumns + `
		FROM execution_logs
		WHERE rule_id = $1 AND ($2::VARCHAR IS NULL OR status = $2)
		ORDER BY started_at DESC
		LIMIT $3
	`

	var statusArg any
	if status != nil {
		statusArg = string(*status)
	}

	return r.queryEntries(ctx, query, ruleID, statusArg, normalizeLimit(limit))
}

func (r *ExecutionLogRepository) ListByTask(ctx context.Context, taskID string, limit int) ([]*models.ExecutionLogEntry, error) {
	query := `
		SELECT ` + executionLogColumns + `
		FROM execution_logs
		WHERE task_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	return r.queryEntries(ctx, query, taskID, normalizeLimit(limit))
}

const defaultLogLimit = 100

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultLogLimit
	}

	return limit
}

func (r *ExecutionLogRepository) queryEntries(ctx context.Context, query string, args ...any) ([]*models.ExecutionLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution logs: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	entries := make([]*models.ExecutionLogEntry, 0)

	for rows.Next() {
		entry, err := scanExecutionLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution log: %w", err)
		}

		entries = append(entries, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating execution logs: %w", err)
	}

	return entries, nil
}

func scanExecutionLog(row rowScanner) (*models.ExecutionLogEntry, error) {
	var (
		entry             models.ExecutionLogEntry
		snapshotJSON      []byte
		actionResultsJSON []byte
	)

	err := row.Scan(
		&entry.ID, &entry.RuleID, &entry.RuleName, &entry.WorkflowID,
		&entry.OrganizationID, &entry.TaskID, &entry.TriggerType,
		&snapshotJSON, &entry.ConditionsMet, &entry.Status, &entry.Reason,
		&actionResultsJSON, &entry.Error, &entry.Depth, &entry.StartedAt, &entry.DurationMs,
	)
	if err != nil {
		return nil, err
	}

	if len(snapshotJSON) > 0 {
		err = json.Unmarshal(snapshotJSON, &entry.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
	}

	if len(actionResultsJSON) > 0 {
		err = json.Unmarshal(actionResultsJSON, &entry.ActionResults)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal action results: %w", err)
		}
	}

	return &entry, nil
}

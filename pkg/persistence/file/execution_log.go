package file

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/taskloom/taskloom/pkg/models"
	"github.com/taskloom/taskloom/pkg/persistence"
)

const executionLogsCollection = "execution_logs"

// ExecutionLogRepository stores rule execution audit records as JSON files.
// Records are append-only.
type ExecutionLogRepository struct {
	store *store
}

func (lr *ExecutionLogRepository) Append(_ context.Context, entry *models.ExecutionLogEntry) error {
	err := lr.store.write(executionLogsCollection, entry.ID, entry)
	if err != nil {
		return &persistence.RepositoryError{Op: "append execution log", EntityID: entry.ID, Err: err}
	}

	return nil
}

func (lr *ExecutionLogRepository) ListByRule(_ context.Context, ruleID string, status *models.ExecutionStatus, limit int) ([]*models.ExecutionLogEntry, error) {
	entries, err := lr.filter(func(entry *models.ExecutionLogEntry) bool {
		if entry.RuleID != ruleID {
			return false
		}

		return status == nil || entry.Status == *status
	}, limit)
	if err != nil {
		return nil, &persistence.RepositoryError{Op: "list execution logs by rule", EntityID: ruleID, Err: err}
	}

	return entries, nil
}

func (lr *ExecutionLogRepository) ListByTask(_ context.Context, taskID string, limit int) ([]*models.ExecutionLogEntry, error) {
	entries, err := lr.filter(func(entry *models.ExecutionLogEntry) bool {
		return entry.TaskID == taskID
	}, limit)
	if err != nil {
		return nil, &persistence.RepositoryError{Op: "list execution logs by task", EntityID: taskID, Err: err}
	}

	return entries, nil
}

// filter returns matching entries newest first, capped at limit when positive.
func (lr *ExecutionLogRepository) filter(keep func(entry *models.ExecutionLogEntry) bool, limit int) ([]*models.ExecutionLogEntry, error) {
	entries := make([]*models.ExecutionLogEntry, 0)

	err := lr.store.readAll(executionLogsCollection, func(data []byte) error {
		var entry models.ExecutionLogEntry

		err := json.Unmarshal(data, &entry)
		if err != nil {
			return err
		}

		if keep(&entry) {
			entries = append(entries, &entry)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].StartedAt.After(entries[j].StartedAt)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

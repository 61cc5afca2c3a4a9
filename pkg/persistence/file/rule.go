package file

import (
	"context"
	"encoding/json"
	"slices"
	"sort"
	"time"

	"github.com/taskloom/taskloom/pkg/models"
	"github.com/taskloom/taskloom/pkg/persistence"
)

const rulesCollection = "rules"

// RuleRepository stores automation rules as JSON files.
type RuleRepository struct {
	store *store
}

func (rr *RuleRepository) GetByID(_ context.Context, id string) (*models.AutomationRule, error) {
	var rule models.AutomationRule

	err := rr.store.read(rulesCollection, id, &rule)
	if err != nil {
		if isNotExist(err) {
			return nil, persistence.ErrRuleNotFound
		}

		return nil, &persistence.RepositoryError{Op: "get rule", EntityID: id, Err: err}
	}

	return &rule, nil
}

func (rr *RuleRepository) ListByWorkflow(_ context.Context, workflowID string, activeOnly bool) ([]*models.AutomationRule, error) {
	rules, err := rr.filter(func(rule *models.AutomationRule) bool {
		if rule.WorkflowID != workflowID {
			return false
		}

		return !activeOnly || rule.IsActive
	})
	if err != nil {
		return nil, &persistence.RepositoryError{Op: "list rules", EntityID: workflowID, Err: err}
	}

	return rules, nil
}

func (rr *RuleRepository) ListByTrigger(_ context.Context, workflowIDs []string, trigger models.TriggerType) ([]*models.AutomationRule, error) {
	rules, err := rr.filter(func(rule *models.AutomationRule) bool {
		return rule.IsActive && rule.TriggerType == trigger && slices.Contains(workflowIDs, rule.WorkflowID)
	})
	if err != nil {
		return nil, &persistence.RepositoryError{Op: "list rules by trigger", Err: err}
	}

	return rules, nil
}

func (rr *RuleRepository) Save(_ context.Context, rule *models.AutomationRule) error {
	err := rr.store.write(rulesCollection, rule.ID, rule)
	if err != nil {
		return &persistence.RepositoryError{Op: "save rule", EntityID: rule.ID, Err: err}
	}

	return nil
}

func (rr *RuleRepository) Delete(_ context.Context, id string) error {
	err := rr.store.remove(rulesCollection, id)
	if err != nil {
		if isNotExist(err) {
			return persistence.ErrRuleNotFound
		}

		return &persistence.RepositoryError{Op: "delete rule", EntityID: id, Err: err}
	}

	return nil
}

func (rr *RuleRepository) IncrementExecution(_ context.Context, id string, at time.Time) error {
	var rule models.AutomationRule

	err := rr.store.update(rulesCollection, id, &rule, func() {
		rule.ExecutionCount++
		rule.LastExecutedAt = &at
	})
	if err != nil {
		if isNotExist(err) {
			return persistence.ErrRuleNotFound
		}

		return &persistence.RepositoryError{Op: "increment rule execution", EntityID: id, Err: err}
	}

	return nil
}

func (rr *RuleRepository) filter(keep func(rule *models.AutomationRule) bool) ([]*models.AutomationRule, error) {
	rules := make([]*models.AutomationRule, 0)

	err := rr.store.readAll(rulesCollection, func(data []byte) error {
		var rule models.AutomationRule

		err := json.Unmarshal(data, &rule)
		if err != nil {
			return err
		}

		if keep(&rule) {
			rules = append(rules, &rule)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}

		return rules[i].Name < rules[j].Name
	})

	return rules, nil
}

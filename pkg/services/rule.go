package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taskloom/taskloom/pkg/models"
	"github.com/taskloom/taskloom/pkg/persistence"
	"github.com/xeipuuv/gojsonschema"
)

// ruleDefinitionSchema constrains a rule's trigger, condition tree and
// action descriptors at write time. The engine still treats unknown action
// types as failed executions, but they never get stored in the first place.
const ruleDefinitionSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["name", "trigger_type", "actions"],
	"properties": {
		"name": {"type": "string", "minLength": 1, "maxLength": 255},
		"trigger_type": {
			"type": "string",
			"enum": [
				"task_created", "task_updated", "status_changed",
				"task_assigned", "comment_added", "attachment_added",
				"due_date_approaching", "due_date_passed"
			]
		},
		"trigger_config": {"type": "object"},
		"priority": {"type": "integer"},
		"conditions": {
			"type": "array",
			"items": {"$ref": "#/definitions/condition"}
		},
		"actions": {
			"type": "array",
			"minItems": 1,
			"items": {"$ref": "#/definitions/action"}
		}
	},
	"definitions": {
		"condition": {
			"type": "object",
			"properties": {
				"op": {"type": "string", "enum": ["and", "or", "not"]},
				"children": {
					"type": "array",
					"items": {"$ref": "#/definitions/condition"}
				},
				"field": {"type": "string", "minLength": 1},
				"operator": {
					"type": "string",
					"enum": ["equals", "not_equals", "in", "not_in", "greater_than", "less_than"]
				},
				"value": {},
				"description": {"type": "string"}
			},
			"oneOf": [
				{"required": ["op", "children"]},
				{"required": ["field", "operator"]}
			]
		},
		"action": {
			"type": "object",
			"required": ["type"],
			"properties": {
				"type": {
					"type": "string",
					"enum": ["set_field", "add_comment", "send_notification", "assign_to", "trigger_webhook"]
				},
				"field": {"type": "string"},
				"value": {},
				"text": {"type": "string"},
				"user_id": {"type": "string"},
				"template": {"type": "string"},
				"data": {"type": "object"},
				"webhook_id": {"type": "string"}
			}
		}
	}
}`

// Rule implements the application operations over automation rules: CRUD
// with schema validation of the definition, and execution log access.
type Rule struct {
	persistence persistence.Persistence
	schema      *gojsonschema.Schema
	logger      *slog.Logger
}

// NewRule creates a new rule service.
func NewRule(p persistence.Persistence, logger *slog.Logger) (*Rule, error) {
	if logger == nil {
		logger = slog.Default()
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(ruleDefinitionSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile rule definition schema: %w", err)
	}

	return &Rule{
		persistence: p,
		schema:      schema,
		logger:      logger.With("module", "rule_service"),
	}, nil
}

// GetRule retrieves a rule by ID. Execution statistics (execution_count,
// last_executed_at) travel on the model.
func (r *Rule) GetRule(ctx context.Context, id string) (*models.AutomationRule, error) {
	return r.persistence.Rules().GetByID(ctx, id)
}

// ListRules retrieves the rules of a workflow, ordered by priority then name.
func (r *Rule) ListRules(ctx context.Context, workflowID string, activeOnly bool) ([]*models.AutomationRule, error) {
	if _, err := r.persistence.Workflows().GetByID(ctx, workflowID); err != nil {
		return nil, err
	}

	return r.persistence.Rules().ListByWorkflow(ctx, workflowID, activeOnly)
}

// CreateRule validates and stores a new rule for the workflow.
func (r *Rule) CreateRule(ctx context.Context, workflowID string, rule *models.AutomationRule) (*models.AutomationRule, error) {
	if _, err := r.persistence.Workflows().GetByID(ctx, workflowID); err != nil {
		return nil, err
	}

	rule.WorkflowID = workflowID

	err := r.validateDefinition(rule)
	if err != nil {
		return nil, err
	}

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	rule.ExecutionCount = 0
	rule.LastExecutedAt = nil

	err = r.persistence.Rules().Save(ctx, rule)
	if err != nil {
		return nil, fmt.Errorf("failed to save rule: %w", err)
	}

	r.logger.InfoContext(ctx, "Rule created",
		"rule_id", rule.ID, "workflow_id", workflowID, "trigger_type", string(rule.TriggerType))

	return rule, nil
}

// UpdateRuleRequest contains the mutable rule fields. Nil fields are left
// unchanged.
type UpdateRuleRequest struct {
	Name          *string
	Description   *string
	TriggerType   *models.TriggerType
	TriggerConfig map[string]any
	Conditions    []models.Condition
	Actions       []models.ActionDescriptor
	IsActive      *bool
	Priority      *int
}

// UpdateRule applies the request to an existing rule and re-validates the
// resulting definition.
func (r *Rule) UpdateRule(ctx context.Context, id string, req UpdateRuleRequest) (*models.AutomationRule, error) {
	rule, err := r.persistence.Rules().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		rule.Name = *req.Name
	}

	if req.Description != nil {
		rule.Description = *req.Description
	}

	if req.TriggerType != nil {
		rule.TriggerType = *req.TriggerType
	}

	if req.TriggerConfig != nil {
		rule.TriggerConfig = req.TriggerConfig
	}

	if req.Conditions != nil {
		rule.Conditions = req.Conditions
	}

	if req.Actions != nil {
		rule.Actions = req.Actions
	}

	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if req.Priority != nil {
		rule.Priority = *req.Priority
	}

	err = r.validateDefinition(rule)
	if err != nil {
		return nil, err
	}

	rule.UpdatedAt = time.Now().UTC()

	err = r.persistence.Rules().Save(ctx, rule)
	if err != nil {
		return nil, fmt.Errorf("failed to save rule: %w", err)
	}

	return rule, nil
}

// DeleteRule removes a rule. Its execution log entries remain.
func (r *Rule) DeleteRule(ctx context.Context, id string) error {
	err := r.persistence.Rules().Delete(ctx, id)
	if err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "Rule deleted", "rule_id", id)

	return nil
}

// ListExecutions retrieves the execution log of a rule, newest first.
// status filters to one terminal status when non-empty.
func (r *Rule) ListExecutions(ctx context.Context, ruleID, status string, limit int) ([]*models.ExecutionLogEntry, error) {
	if _, err := r.persistence.Rules().GetByID(ctx, ruleID); err != nil {
		return nil, err
	}

	var statusFilter *models.ExecutionStatus

	if status != "" {
		parsed := models.ExecutionStatus(status)

		switch parsed {
		case models.ExecutionStatusFired, models.ExecutionStatusSkipped,
			models.ExecutionStatusPartial, models.ExecutionStatusFailed,
			models.ExecutionStatusRecursionLimit:
			statusFilter = &parsed
		default:
			return nil, fmt.Errorf("%w: unknown execution status %q", ErrInvalidRequest, status)
		}
	}

	return r.persistence.ExecutionLogs().ListByRule(ctx, ruleID, statusFilter, limit)
}

// ListTaskExecutions retrieves the execution log entries touching a task,
// newest first, across all rules.
func (r *Rule) ListTaskExecutions(ctx context.Context, taskID string, limit int) ([]*models.ExecutionLogEntry, error) {
	return r.persistence.ExecutionLogs().ListByTask(ctx, taskID, limit)
}

// validateDefinition checks the trigger type and runs the rule document
// through the JSON schema.
func (r *Rule) validateDefinition(rule *models.AutomationRule) error {
	if !rule.TriggerType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTriggerType, rule.TriggerType)
	}

	document, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("failed to marshal rule definition: %w", err)
	}

	result, err := r.schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("failed to validate rule definition: %w", err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, violation := range result.Errors() {
			messages = append(messages, violation.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidRuleSchema, strings.Join(messages, "; "))
	}

	return nil
}

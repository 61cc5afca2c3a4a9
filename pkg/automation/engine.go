package automation

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/taskloom/taskloom/pkg/conditions"
	"github.com/taskloom/taskloom/pkg/models"
	"github.com/taskloom/taskloom/pkg/otelhelper"
	"github.com/taskloom/taskloom/pkg/persistence"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MaxDispatchDepth bounds cascading rule dispatch. The depth counter is
// threaded through dispatch calls (and bus metadata for async re-dispatch)
// rather than relying on call-stack depth.
const MaxDispatchDepth = 3

const tracerName = "github.com/taskloom/taskloom/pkg/automation"

// Engine selects, evaluates and executes automation rules for domain events.
type Engine struct {
	persistence persistence.Persistence
	evaluator   *conditions.Evaluator
	executor    *ActionExecutor
	logger      *slog.Logger
	tracer      trace.Tracer
	maxDepth    int
}

// NewEngine creates a rule engine.
func NewEngine(p persistence.Persistence, executor *ActionExecutor, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		persistence: p,
		evaluator:   conditions.NewEvaluator(logger),
		executor:    executor,
		logger:      logger.With("module", "rule_engine"),
		tracer:      otel.Tracer(tracerName),
		maxDepth:    MaxDispatchDepth,
	}
}

// Dispatch evaluates all matching active rules for the event. It never
// returns an error: a misbehaving rule must not fail the triggering request.
// Outcomes are visible through the returned (and persisted) log entries.
func (e *Engine) Dispatch(ctx context.Context, organizationID, projectID string, trigger models.TriggerType, snapshot map[string]any) []*models.ExecutionLogEntry {
	return e.DispatchDepth(ctx, organizationID, projectID, trigger, snapshot, 0)
}

// DispatchDepth is Dispatch with an explicit starting depth, used when the
// event was induced by an earlier dispatch and re-queued through the bus.
func (e *Engine) DispatchDepth(ctx context.Context, organizationID, projectID string, trigger models.TriggerType, snapshot map[string]any, depth int) []*models.ExecutionLogEntry {
	entries := make([]*models.ExecutionLogEntry, 0)
	e.dispatch(ctx, organizationID, projectID, trigger, snapshot, depth, &entries)

	return entries
}

func (e *Engine) dispatch(ctx context.Context, organizationID, projectID string, trigger models.TriggerType, snapshot map[string]any, depth int, entries *[]*models.ExecutionLogEntry) {
	ctx, span := e.tracer.Start(ctx, "automation.dispatch", trace.WithAttributes(
		attribute.String(otelhelper.OrganizationIDKey, organizationID),
		attribute.String(otelhelper.TriggerTypeKey, string(trigger)),
		attribute.Int(otelhelper.DispatchDepthKey, depth),
	))
	defer span.End()

	logger := e.logger.With(
		"organization_id", organizationID,
		"trigger_type", string(trigger),
		"depth", depth,
	)

	taskID := snapshotTaskID(snapshot)

	if depth >= e.maxDepth {
		logger.WarnContext(ctx, "Dispatch recursion limit reached, branch stopped", "task_id", taskID)

		entry := e.newEntry(organizationID, taskID, trigger, snapshot, depth)
		entry.Status = models.ExecutionStatusRecursionLimit
		entry.Reason = "dispatch depth limit reached"
		e.append(ctx, entry, entries)

		return
	}

	rules, err := e.candidateRules(ctx, organizationID, projectID, trigger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load candidate rules", "error", err)

		return
	}

	if len(rules) == 0 {
		return
	}

	// Priority descending, name ascending: fully deterministic evaluation
	// order, required for reproducible behavior.
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}

		return rules[i].Name < rules[j].Name
	})

	var induced []InducedEvent

	for _, rule := range rules {
		entry, ruleInduced := e.evaluateRule(ctx, rule, organizationID, projectID, trigger, snapshot, depth)
		e.append(ctx, entry, entries)
		induced = append(induced, ruleInduced...)
	}

	for _, event := range induced {
		e.followInduced(ctx, organizationID, projectID, event, snapshot, depth, entries)
	}
}

func (e *Engine) evaluateRule(ctx context.Context, rule *models.AutomationRule, organizationID, projectID string, trigger models.TriggerType, snapshot map[string]any, depth int) (*models.ExecutionLogEntry, []InducedEvent) {
	ctx, span := e.tracer.Start(ctx, "automation.rule", trace.WithAttributes(
		attribute.String(otelhelper.RuleIDKey, rule.ID),
		attribute.String(otelhelper.RuleNameKey, rule.Name),
	))
	defer span.End()

	started := time.Now()

	entry := e.newEntry(organizationID, snapshotTaskID(snapshot), trigger, snapshot, depth)
	entry.RuleID = rule.ID
	entry.RuleName = rule.Name
	entry.WorkflowID = rule.WorkflowID

	conditionsMet, failedCondition := e.evaluator.EvaluateAll(rule.Conditions, snapshot)
	entry.ConditionsMet = conditionsMet

	if !conditionsMet {
		entry.Status = models.ExecutionStatusSkipped
		entry.Reason = "condition not met: " + failedCondition.Describe()
		entry.DurationMs = time.Since(started).Milliseconds()

		return entry, nil
	}

	execCtx := ExecutionContext{
		OrganizationID: organizationID,
		ProjectID:      projectID,
		TaskID:         entry.TaskID,
		TriggerType:    trigger,
		Snapshot:       snapshot,
	}

	var (
		succeeded int
		failed    int
		induced   []InducedEvent
	)

	for _, action := range rule.Actions {
		result, inducedEvent := e.executor.Execute(ctx, action, execCtx)
		entry.ActionResults = append(entry.ActionResults, result)

		if result.Status == models.ActionStatusSuccess {
			succeeded++

			if inducedEvent != nil {
				induced = append(induced, *inducedEvent)
			}
		} else {
			failed++
		}
	}

	switch {
	case failed == 0:
		entry.Status = models.ExecutionStatusFired
	case succeeded == 0:
		entry.Status = models.ExecutionStatusFailed
		entry.Error = "all actions failed"

		otelhelper.SetError(span, errors.New(entry.Error),
			attribute.String(otelhelper.RuleIDKey, rule.ID))
	default:
		entry.Status = models.ExecutionStatusPartial
	}

	entry.DurationMs = time.Since(started).Milliseconds()

	err := e.persistence.Rules().IncrementExecution(ctx, rule.ID, time.Now().UTC())
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to increment rule execution counter",
			"rule_id", rule.ID, "error", err)
	}

	return entry, induced
}

// followInduced re-dispatches an event produced by a rule action within the
// same Dispatch call, with a fresh task snapshot when one can be fetched.
// The refresh overlays the fetched keys on a copy of the prior snapshot, so
// event context like actor survives the cascade.
func (e *Engine) followInduced(ctx context.Context, organizationID, projectID string, event InducedEvent, snapshot map[string]any, depth int, entries *[]*models.ExecutionLogEntry) {
	next := snapshot

	if tasks := e.executor.collaborators.Tasks; tasks != nil && event.TaskID != "" {
		fresh, err := tasks.GetSnapshot(ctx, event.TaskID)
		if err != nil {
			e.logger.WarnContext(ctx, "Failed to refresh snapshot for induced event, reusing previous",
				"task_id", event.TaskID, "error", err)
		} else {
			merged := make(map[string]any, len(snapshot)+len(fresh))
			for key, value := range snapshot {
				merged[key] = value
			}

			for key, value := range fresh {
				merged[key] = value
			}

			next = merged
		}
	}

	e.dispatch(ctx, organizationID, projectID, event.Trigger, next, depth+1, entries)
}

// candidateRules returns active rules matching the trigger across the
// organization's workflows and, when the event carries a project, that
// project's workflow.
func (e *Engine) candidateRules(ctx context.Context, organizationID, projectID string, trigger models.TriggerType) ([]*models.AutomationRule, error) {
	workflows, err := e.persistence.Workflows().ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	workflowIDs := make([]string, 0, len(workflows))

	for _, wf := range workflows {
		if !wf.IsActive {
			continue
		}

		if wf.ProjectID != nil && (projectID == "" || *wf.ProjectID != projectID) {
			continue
		}

		workflowIDs = append(workflowIDs, wf.ID)
	}

	if len(workflowIDs) == 0 {
		return nil, nil
	}

	return e.persistence.Rules().ListByTrigger(ctx, workflowIDs, trigger)
}

func (e *Engine) newEntry(organizationID, taskID string, trigger models.TriggerType, snapshot map[string]any, depth int) *models.ExecutionLogEntry {
	return &models.ExecutionLogEntry{
		ID:             uuid.New().String(),
		OrganizationID: organizationID,
		TaskID:         taskID,
		TriggerType:    trigger,
		Snapshot:       snapshot,
		Depth:          depth,
		StartedAt:      time.Now().UTC(),
	}
}

func (e *Engine) append(ctx context.Context, entry *models.ExecutionLogEntry, entries *[]*models.ExecutionLogEntry) {
	*entries = append(*entries, entry)

	err := e.persistence.ExecutionLogs().Append(ctx, entry)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to persist execution log entry",
			"entry_id", entry.ID, "rule_id", entry.RuleID, "error", err)
	}
}

func snapshotTaskID(snapshot map[string]any) string {
	value, found := conditions.Lookup(snapshot, "task.id")
	if !found {
		return ""
	}

	id, _ := value.(string)

	return id
}

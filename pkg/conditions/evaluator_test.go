package conditions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/taskloom/taskloom/pkg/models"
)

func taskSnapshot(priority string, points float64) map[string]any {
	return map[string]any{
		"task": map[string]any{
			"priority":    priority,
			"points":      points,
			"assignee_id": "user-1",
		},
		"actor": map[string]any{
			"id": "user-1",
		},
	}
}

func TestEvaluate_Equals(t *testing.T) {
	evaluator := NewEvaluator(nil)

	cond := models.Condition{Field: "task.priority", Operator: models.OperatorEquals, Value: "high"}

	assert.True(t, evaluator.Evaluate(cond, taskSnapshot("high", 3)))
	assert.False(t, evaluator.Evaluate(cond, taskSnapshot("low", 3)))
}

func TestEvaluate_NumericComparison(t *testing.T) {
	evaluator := NewEvaluator(nil)

	greater := models.Condition{Field: "task.points", Operator: models.OperatorGreaterThan, Value: 5}
	less := models.Condition{Field: "task.points", Operator: models.OperatorLessThan, Value: 5}

	assert.True(t, evaluator.Evaluate(greater, taskSnapshot("high", 8)))
	assert.False(t, evaluator.Evaluate(greater, taskSnapshot("high", 3)))
	assert.True(t, evaluator.Evaluate(less, taskSnapshot("high", 3)))

	// Mixed int/float values still compare numerically.
	intSnapshot := map[string]any{"task": map[string]any{"points": 8}}
	assert.True(t, evaluator.Evaluate(models.Condition{
		Field: "task.points", Operator: models.OperatorGreaterThan, Value: 5.0,
	}, intSnapshot))
}

func TestEvaluate_InOperators(t *testing.T) {
	evaluator := NewEvaluator(nil)

	in := models.Condition{
		Field:    "task.priority",
		Operator: models.OperatorIn,
		Value:    []any{"high", "urgent"},
	}

	assert.True(t, evaluator.Evaluate(in, taskSnapshot("urgent", 0)))
	assert.False(t, evaluator.Evaluate(in, taskSnapshot("low", 0)))

	notIn := in
	notIn.Operator = models.OperatorNotIn

	assert.True(t, evaluator.Evaluate(notIn, taskSnapshot("low", 0)))
}

func TestEvaluate_Composites(t *testing.T) {
	evaluator := NewEvaluator(nil)
	snapshot := taskSnapshot("high", 8)

	highPriority := models.Condition{Field: "task.priority", Operator: models.OperatorEquals, Value: "high"}
	bigTask := models.Condition{Field: "task.points", Operator: models.OperatorGreaterThan, Value: 5}
	lowPriority := models.Condition{Field: "task.priority", Operator: models.OperatorEquals, Value: "low"}

	and := models.Condition{Op: models.BoolOpAnd, Children: []models.Condition{highPriority, bigTask}}
	or := models.Condition{Op: models.BoolOpOr, Children: []models.Condition{lowPriority, bigTask}}
	not := models.Condition{Op: models.BoolOpNot, Children: []models.Condition{lowPriority}}

	assert.True(t, evaluator.Evaluate(and, snapshot))
	assert.True(t, evaluator.Evaluate(or, snapshot))
	assert.True(t, evaluator.Evaluate(not, snapshot))
}

func TestEvaluate_MalformedNodesAreFalse(t *testing.T) {
	evaluator := NewEvaluator(nil)
	snapshot := taskSnapshot("high", 1)

	// Unknown field.
	assert.False(t, evaluator.Evaluate(models.Condition{
		Field: "task.nonexistent", Operator: models.OperatorEquals, Value: "x",
	}, snapshot))

	// Missing operator.
	assert.False(t, evaluator.Evaluate(models.Condition{Field: "task.priority"}, snapshot))

	// Unknown operator.
	assert.False(t, evaluator.Evaluate(models.Condition{
		Field: "task.priority", Operator: "matches", Value: "h.*",
	}, snapshot))

	// not with wrong arity.
	assert.False(t, evaluator.Evaluate(models.Condition{Op: models.BoolOpNot}, snapshot))

	// Unknown boolean op.
	assert.False(t, evaluator.Evaluate(models.Condition{Op: "xor"}, snapshot))

	// Incomparable types for ordering operators.
	assert.False(t, evaluator.Evaluate(models.Condition{
		Field: "task.priority", Operator: models.OperatorGreaterThan, Value: 5,
	}, snapshot))
}

func TestEvaluateAll_ReportsFirstFailure(t *testing.T) {
	evaluator := NewEvaluator(nil)
	snapshot := taskSnapshot("low", 1)

	conditions := []models.Condition{
		{Field: "task.points", Operator: models.OperatorLessThan, Value: 5},
		{Field: "task.priority", Operator: models.OperatorEquals, Value: "high", Description: "priority must be high"},
	}

	ok, failed := evaluator.EvaluateAll(conditions, snapshot)
	assert.False(t, ok)
	assert.Equal(t, "priority must be high", failed.Describe())

	ok, failed = evaluator.EvaluateAll(nil, snapshot)
	assert.True(t, ok)
	assert.Nil(t, failed)
}

func TestEvaluate_Idempotent(t *testing.T) {
	evaluator := NewEvaluator(nil)
	snapshot := taskSnapshot("high", 2)
	cond := models.Condition{Field: "task.priority", Operator: models.OperatorEquals, Value: "high"}

	first := evaluator.Evaluate(cond, snapshot)
	second := evaluator.Evaluate(cond, snapshot)

	assert.Equal(t, first, second)
}

func TestLookup(t *testing.T) {
	snapshot := taskSnapshot("high", 2)

	value, found := Lookup(snapshot, "actor.id")
	assert.True(t, found)
	assert.Equal(t, "user-1", value)

	_, found = Lookup(snapshot, "task.priority.nested")
	assert.False(t, found)
}

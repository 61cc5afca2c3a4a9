// Package conditions evaluates declarative condition trees against event
// snapshots. Evaluation is pure and total: malformed nodes and unknown
// fields evaluate to false and are logged, they never panic or abort the
// caller's rule batch.
package conditions

import (
	"log/slog"
	"strings"

	"github.com/taskloom/taskloom/pkg/models"
)

// Evaluator resolves condition trees against snapshot maps.
type Evaluator struct {
	logger *slog.Logger
}

// NewEvaluator creates an evaluator. A nil logger falls back to slog.Default.
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Evaluator{logger: logger.With("module", "condition_evaluator")}
}

// EvaluateAll applies the AND-combination used for rule condition lists and
// transition guards: every node must hold. An empty list holds trivially.
// The index and node of the first failing condition are returned for denial
// reasons; ok==true means all conditions held.
func (e *Evaluator) EvaluateAll(nodes []models.Condition, snapshot map[string]any) (ok bool, failed *models.Condition) {
	for i := range nodes {
		if !e.Evaluate(nodes[i], snapshot) {
			return false, &nodes[i]
		}
	}

	return true, nil
}

// Evaluate resolves a single condition node to a boolean.
func (e *Evaluator) Evaluate(node models.Condition, snapshot map[string]any) bool {
	if node.IsComposite() {
		return e.evaluateComposite(node, snapshot)
	}

	return e.evaluateLeaf(node, snapshot)
}

func (e *Evaluator) evaluateComposite(node models.Condition, snapshot map[string]any) bool {
	switch node.Op {
	case models.BoolOpAnd:
		for _, child := range node.Children {
			if !e.Evaluate(child, snapshot) {
				return false
			}
		}

		return true
	case models.BoolOpOr:
		for _, child := range node.Children {
			if e.Evaluate(child, snapshot) {
				return true
			}
		}

		return false
	case models.BoolOpNot:
		if len(node.Children) != 1 {
			e.logger.Warn("Malformed not condition", "children", len(node.Children))

			return false
		}

		return !e.Evaluate(node.Children[0], snapshot)
	default:
		e.logger.Warn("Unknown boolean operator in condition", "op", string(node.Op))

		return false
	}
}

func (e *Evaluator) evaluateLeaf(node models.Condition, snapshot map[string]any) bool {
	if node.Field == "" || node.Operator == "" {
		e.logger.Warn("Malformed leaf condition", "field", node.Field, "operator", string(node.Operator))

		return false
	}

	actual, found := Lookup(snapshot, node.Field)
	if !found {
		e.logger.Debug("Condition field not present in snapshot", "field", node.Field)

		return false
	}

	switch node.Operator {
	case models.OperatorEquals:
		return valuesEqual(actual, node.Value)
	case models.OperatorNotEquals:
		return !valuesEqual(actual, node.Value)
	case models.OperatorIn:
		return valueIn(actual, node.Value)
	case models.OperatorNotIn:
		return !valueIn(actual, node.Value)
	case models.OperatorGreaterThan:
		cmp, comparable := compareValues(actual, node.Value)

		return comparable && cmp > 0
	case models.OperatorLessThan:
		cmp, comparable := compareValues(actual, node.Value)

		return comparable && cmp < 0
	default:
		e.logger.Warn("Unknown condition operator", "operator", string(node.Operator))

		return false
	}
}

// Lookup resolves a dotted path (e.g. "task.priority") inside a nested
// snapshot map.
func Lookup(snapshot map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	current := any(snapshot)

	for _, part := range parts {
		m, isMap := current.(map[string]any)
		if !isMap {
			return nil, false
		}

		value, exists := m[part]
		if !exists {
			return nil, false
		}

		current = value
	}

	return current, true
}

func valuesEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}

		return false
	}

	return a == b
}

func valueIn(actual, set any) bool {
	members, isSlice := set.([]any)
	if !isSlice {
		return false
	}

	for _, member := range members {
		if valuesEqual(actual, member) {
			return true
		}
	}

	return false
}

// compareValues orders two values when both are numeric or both strings.
func compareValues(a, b any) (int, bool) {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		if !bok {
			return 0, false
		}

		switch {
		case af > bf:
			return 1, true
		case af < bf:
			return -1, true
		default:
			return 0, true
		}
	}

	as, aok := a.(string)
	bs, bok := b.(string)

	if aok && bok {
		return strings.Compare(as, bs), true
	}

	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

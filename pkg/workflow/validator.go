package workflow

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/taskloom/taskloom/pkg/conditions"
)

// Denial reasons surfaced by CanTransition. These are normal negative
// decisions, not errors.
const (
	ReasonNoSuchTransition = "no such transition"
	ReasonCommentRequired  = "comment required for this transition"
	ReasonAllowed          = "transition allowed"
)

// TransitionValidator decides whether a state change is permitted. It is a
// pure decision function: the caller mutates task state and writes activity
// records after an allowed decision.
type TransitionValidator struct {
	evaluator *conditions.Evaluator
}

// NewTransitionValidator creates a validator sharing the given condition evaluator.
func NewTransitionValidator(logger *slog.Logger) *TransitionValidator {
	return &TransitionValidator{evaluator: conditions.NewEvaluator(logger)}
}

// CanTransition checks the requested state change against the graph.
// The snapshot carries the task and actor data guard conditions evaluate
// against. Calling it twice with identical inputs yields identical results.
func (v *TransitionValidator) CanTransition(graph *StateGraph, fromStateID, toStateID string, snapshot map[string]any, comment string) (bool, string) {
	transition, exists := graph.Transition(fromStateID, toStateID)
	if !exists {
		return false, ReasonNoSuchTransition
	}

	if transition.RequiresComment && strings.TrimSpace(comment) == "" {
		return false, ReasonCommentRequired
	}

	if ok, failedCondition := v.evaluator.EvaluateAll(transition.Conditions, snapshot); !ok {
		return false, fmt.Sprintf("condition not met: %s", failedCondition.Describe())
	}

	return true, ReasonAllowed
}

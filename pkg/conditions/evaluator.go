// Package conditions evaluates workflow condition lists against a run input.
package conditions

import (
	"github.com/evofitmeals/evoflow/pkg/models"
)

// Predicate decides whether a single condition holds for the resolved field value.
type Predicate func(condition models.Condition, fieldValue any) bool

// Evaluator walks a condition list left to right.
//
// It keeps a running result and a flag that records whether any OR was seen.
// A false result stops the walk only while no OR has been seen and none is
// still ahead, since a later OR can flip the result back to true. There is no
// grouping or precedence: each condition folds into the result so far.
type Evaluator struct {
	predicate Predicate
}

// NewEvaluator returns an evaluator using Match as its predicate.
func NewEvaluator() *Evaluator {
	return &Evaluator{predicate: Match}
}

// NewEvaluatorWithPredicate returns an evaluator that delegates single-condition checks to predicate.
func NewEvaluatorWithPredicate(predicate Predicate) *Evaluator {
	return &Evaluator{predicate: predicate}
}

// Evaluate reports whether the run should proceed. An empty list is always true.
func (e *Evaluator) Evaluate(conditions []models.Condition, input map[string]any) bool {
	result := true
	combineWithOr := false

	lastOr := -1

	for i, condition := range conditions {
		if condition.CombineWith == models.CombineOr {
			lastOr = i
		}
	}

	for i, condition := range conditions {
		fieldValue, _ := Resolve(input, condition.Field)
		met := e.predicate(condition, fieldValue)

		if condition.CombineWith == models.CombineOr {
			combineWithOr = true
			result = result || met
		} else {
			result = result && met
		}

		if !result && !combineWithOr && i > lastOr {
			break
		}
	}

	return result
}

// Evaluate runs the default evaluator.
func Evaluate(conditions []models.Condition, input map[string]any) bool {
	return NewEvaluator().Evaluate(conditions, input)
}

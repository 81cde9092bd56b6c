// Package rules provides the deterministic rule evaluation engine:
// loading and validating rule documents, evaluating conditions against
// scenarios, and executing rule sets with full audit trails.
package rules

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// EvaluateCondition evaluates a single condition against a scenario.
// A feature missing from the scenario fails the condition; it is never
// an error. Only an unrecognized operator produces an error.
func EvaluateCondition(c domain.Condition, scenario domain.Scenario) (bool, error) {
	actual, ok := scenario[c.Feature]
	if !ok {
		// Still reject unknown operators so misconfigured rules
		// surface even on sparse scenarios.
		if !knownOperator(c.Operator) {
			return false, &domain.EvaluationError{Feature: c.Feature, Operator: c.Operator}
		}
		return false, nil
	}

	switch c.Operator {
	case domain.OpEqual:
		return domain.ValuesEqual(actual, c.Value), nil
	case domain.OpNotEqual:
		return !domain.ValuesEqual(actual, c.Value), nil
	case domain.OpGreater:
		return compareNumeric(actual, c.Value, func(a, b float64) bool { return a > b }), nil
	case domain.OpLess:
		return compareNumeric(actual, c.Value, func(a, b float64) bool { return a < b }), nil
	case domain.OpGreaterEqual:
		return compareNumeric(actual, c.Value, func(a, b float64) bool { return a >= b }), nil
	case domain.OpLessEqual:
		return compareNumeric(actual, c.Value, func(a, b float64) bool { return a <= b }), nil
	case domain.OpIn:
		return valueInList(actual, c.Value), nil
	case domain.OpNotIn:
		return !valueInList(actual, c.Value), nil
	case domain.OpBetween:
		return valueBetween(actual, c.Value), nil
	default:
		return false, &domain.EvaluationError{Feature: c.Feature, Operator: c.Operator}
	}
}

// EvaluateRule evaluates every condition of a rule, in order, with no
// short-circuiting: the full trace is needed for explainability even
// once the verdict is settled. The first condition's boolean seeds the
// running result; each later condition is folded in using its own
// Logical connector.
func EvaluateRule(rule domain.Rule, scenario domain.Scenario) (bool, []domain.ConditionResult, error) {
	results := make([]domain.ConditionResult, 0, len(rule.Conditions))
	matched := false

	for i, cond := range rule.Conditions {
		ok, err := EvaluateCondition(cond, scenario)
		if err != nil {
			if evalErr, isEval := err.(*domain.EvaluationError); isEval {
				evalErr.RuleID = rule.ID
			}
			return false, results, err
		}

		results = append(results, domain.ConditionResult{
			Feature:  cond.Feature,
			Operator: cond.Operator,
			Expected: cond.Value,
			Actual:   scenario[cond.Feature],
			Result:   ok,
		})

		if i == 0 {
			matched = ok
			continue
		}
		switch cond.Logical {
		case domain.LogicalOr:
			matched = matched || ok
		default:
			matched = matched && ok
		}
	}

	return matched, results, nil
}

func knownOperator(op domain.Operator) bool {
	switch op {
	case domain.OpEqual, domain.OpNotEqual, domain.OpGreater, domain.OpLess,
		domain.OpGreaterEqual, domain.OpLessEqual, domain.OpIn, domain.OpNotIn,
		domain.OpBetween:
		return true
	}
	return false
}

// compareNumeric applies cmp to two numeric values. Ordering against a
// non-numeric operand fails the condition rather than erroring.
func compareNumeric(actual, expected any, cmp func(a, b float64) bool) bool {
	a, okA := domain.Number(actual)
	b, okB := domain.Number(expected)
	if !okA || !okB {
		if sa, isStr := actual.(string); isStr {
			if sb, isStr2 := expected.(string); isStr2 {
				return cmp(float64(compareStrings(sa, sb)), 0)
			}
		}
		return false
	}
	return cmp(a, b)
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func valueInList(actual, expected any) bool {
	list, ok := expected.([]any)
	if !ok {
		return false
	}
	for _, item := range list {
		if domain.ValuesEqual(actual, item) {
			return true
		}
	}
	return false
}

// valueBetween checks lo <= actual <= hi, inclusive at both ends.
func valueBetween(actual, expected any) bool {
	bounds, ok := expected.([]any)
	if !ok || len(bounds) != 2 {
		return false
	}
	v, okV := domain.Number(actual)
	lo, okLo := domain.Number(bounds[0])
	hi, okHi := domain.Number(bounds[1])
	if !okV || !okLo || !okHi {
		return false
	}
	return lo <= v && v <= hi
}

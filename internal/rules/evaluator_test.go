package rules

import (
	"errors"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestEvaluateConditionOperators(t *testing.T) {
	scenario := domain.Scenario{
		"credit_score": 650.0,
		"state":        "CA",
	}

	cases := []struct {
		name string
		cond domain.Condition
		want bool
	}{
		{"eq true", domain.Condition{Feature: "credit_score", Operator: domain.OpEqual, Value: 650.0}, true},
		{"eq cross-width", domain.Condition{Feature: "credit_score", Operator: domain.OpEqual, Value: 650}, true},
		{"neq", domain.Condition{Feature: "credit_score", Operator: domain.OpNotEqual, Value: 600.0}, true},
		{"gt true", domain.Condition{Feature: "credit_score", Operator: domain.OpGreater, Value: 600.0}, true},
		{"gt false at equality", domain.Condition{Feature: "credit_score", Operator: domain.OpGreater, Value: 650.0}, false},
		{"gte at equality", domain.Condition{Feature: "credit_score", Operator: domain.OpGreaterEqual, Value: 650.0}, true},
		{"lt", domain.Condition{Feature: "credit_score", Operator: domain.OpLess, Value: 700.0}, true},
		{"lte at equality", domain.Condition{Feature: "credit_score", Operator: domain.OpLessEqual, Value: 650.0}, true},
		{"in hit", domain.Condition{Feature: "state", Operator: domain.OpIn, Value: []any{"CA", "NY"}}, true},
		{"in miss", domain.Condition{Feature: "state", Operator: domain.OpIn, Value: []any{"TX", "NY"}}, false},
		{"not_in", domain.Condition{Feature: "state", Operator: domain.OpNotIn, Value: []any{"TX"}}, true},
		{"between inside", domain.Condition{Feature: "credit_score", Operator: domain.OpBetween, Value: []any{600.0, 700.0}}, true},
		{"between at lower bound", domain.Condition{Feature: "credit_score", Operator: domain.OpBetween, Value: []any{650.0, 700.0}}, true},
		{"between at upper bound", domain.Condition{Feature: "credit_score", Operator: domain.OpBetween, Value: []any{600.0, 650.0}}, true},
		{"between outside", domain.Condition{Feature: "credit_score", Operator: domain.OpBetween, Value: []any{651.0, 700.0}}, false},
		{"string ordering", domain.Condition{Feature: "state", Operator: domain.OpGreater, Value: "AZ"}, true},
		{"numeric vs string fails", domain.Condition{Feature: "credit_score", Operator: domain.OpGreater, Value: "600"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EvaluateCondition(tc.cond, scenario)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEvaluateConditionMissingFeature(t *testing.T) {
	cond := domain.Condition{Feature: "income", Operator: domain.OpGreater, Value: 1000.0}

	got, err := EvaluateCondition(cond, domain.Scenario{"credit_score": 650.0})
	if err != nil {
		t.Fatalf("missing feature should not error: %v", err)
	}
	if got {
		t.Error("missing feature should fail the condition")
	}
}

func TestEvaluateConditionUnknownOperator(t *testing.T) {
	cond := domain.Condition{Feature: "credit_score", Operator: "~=", Value: 650.0}

	_, err := EvaluateCondition(cond, domain.Scenario{"credit_score": 650.0})
	var evalErr *domain.EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}

	// Unknown operators must surface even when the feature is absent.
	_, err = EvaluateCondition(cond, domain.Scenario{})
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError on sparse scenario, got %v", err)
	}
}

func TestEvaluateRuleLogicalFold(t *testing.T) {
	scenario := domain.Scenario{"credit_score": 650.0, "income": 30000.0}

	andRule := domain.Rule{
		ID: "and-rule",
		Conditions: []domain.Condition{
			{Feature: "credit_score", Operator: domain.OpGreater, Value: 600.0},
			{Feature: "income", Operator: domain.OpGreater, Value: 50000.0, Logical: domain.LogicalAnd},
		},
	}
	matched, results, err := EvaluateRule(andRule, scenario)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matched {
		t.Error("AND with one failing condition should not match")
	}
	if len(results) != 2 {
		t.Fatalf("expected full trace of 2 conditions, got %d", len(results))
	}

	orRule := domain.Rule{
		ID: "or-rule",
		Conditions: []domain.Condition{
			{Feature: "credit_score", Operator: domain.OpGreater, Value: 700.0},
			{Feature: "income", Operator: domain.OpGreater, Value: 20000.0, Logical: domain.LogicalOr},
		},
	}
	matched, _, err = EvaluateRule(orRule, scenario)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !matched {
		t.Error("OR with one passing condition should match")
	}
}

func TestEvaluateRuleNoShortCircuit(t *testing.T) {
	rule := domain.Rule{
		ID: "trace-rule",
		Conditions: []domain.Condition{
			{Feature: "credit_score", Operator: domain.OpLess, Value: 100.0},
			{Feature: "income", Operator: domain.OpGreater, Value: 0.0, Logical: domain.LogicalAnd},
			{Feature: "age", Operator: domain.OpGreater, Value: 18.0, Logical: domain.LogicalAnd},
		},
	}
	scenario := domain.Scenario{"credit_score": 650.0, "income": 1000.0, "age": 30.0}

	matched, results, err := EvaluateRule(rule, scenario)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matched {
		t.Error("rule should not match")
	}
	// Verdict settles at condition 1, but every condition must still be traced.
	if len(results) != 3 {
		t.Errorf("expected 3 condition results, got %d", len(results))
	}
}

func TestEvaluateRuleErrorCarriesRuleID(t *testing.T) {
	rule := domain.Rule{
		ID: "bad-rule",
		Conditions: []domain.Condition{
			{Feature: "credit_score", Operator: "like", Value: 650.0},
		},
	}

	_, _, err := EvaluateRule(rule, domain.Scenario{"credit_score": 650.0})
	var evalErr *domain.EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
	if evalErr.RuleID != "bad-rule" {
		t.Errorf("RuleID = %q, want bad-rule", evalErr.RuleID)
	}
}

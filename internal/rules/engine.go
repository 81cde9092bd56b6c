package rules

import (
	"context"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Engine executes a rule set against scenarios, in strict ascending
// priority order, producing decision records with complete audit
// trails. Execution is deterministic: identical (rule set, scenario)
// pairs always yield identical decisions.
type Engine struct {
	ruleSet *domain.RuleSet
}

// NewEngine creates an engine over an already-loaded rule set. Pass
// nil to create an empty engine and load rules later.
func NewEngine(rs *domain.RuleSet) *Engine {
	return &Engine{ruleSet: rs}
}

// Load replaces the engine's rule set.
func (e *Engine) Load(rs *domain.RuleSet) {
	e.ruleSet = rs
}

// RuleSet returns the loaded rule set, or nil.
func (e *Engine) RuleSet() *domain.RuleSet {
	return e.ruleSet
}

// Execute runs the rule set against one scenario.
//
// Every rule is evaluated and appended to the audit trail regardless
// of outcome. The first matching rule with StopOnMatch set returns
// immediately. A matching rule with StopOnMatch unset is recorded in
// the trail but its decision is discarded: if no later rule triggers
// an early return, the default decision is what comes back. That
// fallthrough behavior is preserved deliberately; see DESIGN.md before
// "fixing" it, since changing it silently changes scoring semantics.
func (e *Engine) Execute(ctx context.Context, scenario domain.Scenario) (*domain.DecisionRecord, error) {
	if e.ruleSet == nil {
		return nil, domain.ErrNoRuleSet
	}

	trail := make([]domain.RuleTrace, 0, len(e.ruleSet.Rules))

	for i := range e.ruleSet.Rules {
		rule := &e.ruleSet.Rules[i]

		matched, condResults, err := EvaluateRule(*rule, scenario)
		if err != nil {
			return nil, err
		}

		trail = append(trail, domain.RuleTrace{
			RuleID:     rule.ID,
			RuleName:   rule.Name,
			Priority:   rule.Priority,
			Matched:    matched,
			Conditions: condResults,
		})

		if matched && rule.StopOnMatch {
			return &domain.DecisionRecord{
				ID:         uuid.New().String(),
				Scenario:   scenario,
				Decision:   rule.Decision.Outcome,
				RuleID:     rule.ID,
				Confidence: rule.Decision.Confidence,
				Reasoning:  rule.Decision.Reasoning,
				AuditTrail: trail,
			}, nil
		}
	}

	return &domain.DecisionRecord{
		ID:         uuid.New().String(),
		Scenario:   scenario,
		Decision:   e.ruleSet.DefaultDecision.Outcome,
		Confidence: 0.0,
		Reasoning:  e.ruleSet.DefaultDecision.Reasoning,
		AuditTrail: trail,
	}, nil
}

// Summary describes a loaded rule set at a glance.
type Summary struct {
	Name             string   `json:"rule_set_name"`
	Version          string   `json:"version,omitempty"`
	TotalRules       int      `json:"total_rules"`
	UniqueFeatures   int      `json:"unique_features"`
	DecisionOutcomes []string `json:"decision_outcomes"`
}

// Summarize returns summary statistics for the loaded rule set.
func (e *Engine) Summarize() Summary {
	if e.ruleSet == nil {
		return Summary{}
	}
	return Summary{
		Name:             e.ruleSet.Name,
		Version:          e.ruleSet.Version,
		TotalRules:       len(e.ruleSet.Rules),
		UniqueFeatures:   len(e.ruleSet.Features()),
		DecisionOutcomes: e.ruleSet.Outcomes(),
	}
}

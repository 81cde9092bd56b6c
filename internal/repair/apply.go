// Package repair applies sandboxed what-if modifications to rule sets
// and measures their risk impact before deployment.
package repair

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// DefaultRuleTarget addresses the rule set's default decision in a
// modify_decision modification instead of a concrete rule.
const DefaultRuleTarget = "default"

// Apply produces a new rule set with the modification applied. The
// original is deep-cloned first and never mutated; the result is
// re-sorted so the ascending-priority invariant holds.
func Apply(rs *domain.RuleSet, mod domain.Modification) (*domain.RuleSet, error) {
	clone := rs.Clone()

	if mod.Kind == domain.ModModifyDecision && mod.RuleID == DefaultRuleTarget {
		applyDefaultDecision(clone, mod.Parameters)
		clone.Sort()
		return clone, nil
	}

	target := clone.FindRule(mod.RuleID)
	if target == nil {
		return nil, &domain.ModificationError{RuleID: mod.RuleID, Kind: mod.Kind}
	}

	switch mod.Kind {
	case domain.ModAdjustThreshold:
		adjustThreshold(target, mod.Parameters)

	case domain.ModChangePriority:
		target.Priority = mod.Parameters.NewPriority

	case domain.ModAddCondition:
		if mod.Parameters.NewCondition == nil {
			return nil, &domain.ModificationError{
				RuleID: mod.RuleID, Kind: mod.Kind, Detail: "new_condition is required",
			}
		}
		target.Conditions = append(target.Conditions, *mod.Parameters.NewCondition)

	case domain.ModRemoveCondition:
		idx := mod.Parameters.ConditionIndex
		if idx >= 0 && idx < len(target.Conditions) {
			target.Conditions = append(target.Conditions[:idx], target.Conditions[idx+1:]...)
		}

	case domain.ModModifyDecision:
		mergeDecision(&target.Decision, mod.Parameters)

	case domain.ModDisableRule:
		target.Disabled = true
		target.Priority = domain.DisabledPriority

	case domain.ModAddBufferZone:
		addBufferZone(clone, target, mod.Parameters)

	default:
		return nil, &domain.ModificationError{
			RuleID: mod.RuleID, Kind: mod.Kind,
			Detail: fmt.Sprintf("unknown modification kind %q", mod.Kind),
		}
	}

	clone.Sort()
	return clone, nil
}

// adjustThreshold shifts a numeric condition value, or both ends of a
// range, by the given delta. Out-of-range indices and non-numeric
// values are left untouched.
func adjustThreshold(rule *domain.Rule, params domain.ModParams) {
	idx := params.ConditionIndex
	if idx < 0 || idx >= len(rule.Conditions) {
		return
	}
	cond := &rule.Conditions[idx]

	if n, ok := domain.Number(cond.Value); ok {
		cond.Value = n + params.Adjustment
		return
	}
	if bounds, ok := cond.Value.([]any); ok {
		shifted := make([]any, len(bounds))
		for i, b := range bounds {
			if n, isNum := domain.Number(b); isNum {
				shifted[i] = n + params.Adjustment
			} else {
				shifted[i] = b
			}
		}
		cond.Value = shifted
	}
}

func mergeDecision(decision *domain.Decision, params domain.ModParams) {
	if params.Outcome != "" {
		decision.Outcome = params.Outcome
	}
	if params.Confidence != nil {
		decision.Confidence = *params.Confidence
	}
	if params.Reasoning != "" {
		decision.Reasoning = params.Reasoning
	}
}

func applyDefaultDecision(rs *domain.RuleSet, params domain.ModParams) {
	if params.Outcome != "" {
		rs.DefaultDecision.Outcome = params.Outcome
	}
	if params.Reasoning != "" {
		rs.DefaultDecision.Reasoning = params.Reasoning
	}
}

// addBufferZone clones the target rule into an intermediate rule just
// after it in priority order, with each numeric threshold pulled
// toward the decision boundary so the buffer catches the band of
// scenarios that used to flip across it.
func addBufferZone(rs *domain.RuleSet, target *domain.Rule, params domain.ModParams) {
	bufferPercent := params.BufferPercent
	if bufferPercent == 0 {
		bufferPercent = 0.1
	}
	intermediate := params.IntermediateDecision
	if intermediate == "" {
		intermediate = "review"
	}

	buffer := target.Clone()
	buffer.ID = target.ID + "_buffer"
	if target.Name != "" {
		buffer.Name = target.Name + " - Buffer Zone"
	} else {
		buffer.Name = "Buffer Zone"
	}
	buffer.Priority = target.Priority + 0.5

	for i := range buffer.Conditions {
		cond := &buffer.Conditions[i]
		n, ok := domain.Number(cond.Value)
		if !ok {
			continue
		}
		amount := bufferPercent * absFloat(n)
		switch cond.Operator {
		case domain.OpGreater, domain.OpGreaterEqual:
			cond.Value = n - amount
		case domain.OpLess, domain.OpLessEqual:
			cond.Value = n + amount
		}
	}

	buffer.Decision.Outcome = intermediate
	buffer.Decision.Confidence *= 0.8
	buffer.Decision.Reasoning = "Buffer zone - " + buffer.Decision.Reasoning

	rs.Rules = append(rs.Rules, buffer)
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

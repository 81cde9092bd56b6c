// Package domain defines the core types for Kestrel.
package domain

import "sort"

// Operator is a comparison operator usable in a rule condition.
type Operator string

// Supported condition operators.
const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpIn           Operator = "in"
	OpNotIn        Operator = "not_in"
	OpBetween      Operator = "between"
)

// Logical combines a condition's result with the running rule verdict.
type Logical string

// Supported logical connectors.
const (
	LogicalAnd Logical = "AND"
	LogicalOr  Logical = "OR"
)

// Condition is a single feature test inside a rule.
// Value holds a scalar for comparison operators, a list for in/not_in,
// and a two-element range for between.
type Condition struct {
	Feature  string   `json:"feature"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
	// Logical connects this condition to the running result of the
	// conditions before it. Ignored for the first condition in a rule.
	Logical Logical `json:"logical,omitempty"`
}

// Decision is the outcome a rule produces when it matches.
type Decision struct {
	Outcome    string  `json:"outcome"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// DefaultDecision is returned when no rule matches a scenario.
type DefaultDecision struct {
	Outcome   string `json:"outcome"`
	Reasoning string `json:"reasoning,omitempty"`
}

// Rule is an ordered list of conditions plus the decision to apply
// when they hold. Rules are owned by the RuleSet that contains them.
type Rule struct {
	ID       string  `json:"rule_id"`
	Name     string  `json:"name,omitempty"`
	Priority float64 `json:"priority"`

	Conditions []Condition `json:"conditions"`
	Decision   Decision    `json:"decision"`

	// StopOnMatch stops rule iteration when this rule matches.
	StopOnMatch bool `json:"stop_on_match"`

	// Disabled is a soft flag: the rule stays in the set with sentinel
	// priority and is still evaluated, just last.
	Disabled bool `json:"disabled,omitempty"`
}

// DisabledPriority is the sentinel priority assigned to disabled rules
// so they sort after every active rule.
const DisabledPriority = 99999

// RuleSet is a named, versioned collection of rules kept sorted
// ascending by priority. A RuleSet is never mutated after load;
// modifications produce a new RuleSet via Clone.
type RuleSet struct {
	Name            string          `json:"rule_set_name"`
	Version         string          `json:"version,omitempty"`
	Rules           []Rule          `json:"rules"`
	DefaultDecision DefaultDecision `json:"default_decision"`
}

// Sort orders rules ascending by priority, preserving insertion order
// on ties.
func (rs *RuleSet) Sort() {
	sort.SliceStable(rs.Rules, func(i, j int) bool {
		return rs.Rules[i].Priority < rs.Rules[j].Priority
	})
}

// FindRule returns a pointer to the rule with the given id, or nil.
func (rs *RuleSet) FindRule(id string) *Rule {
	for i := range rs.Rules {
		if rs.Rules[i].ID == id {
			return &rs.Rules[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the rule set. Condition values are
// copied recursively so a clone can be modified without aliasing the
// original.
func (rs *RuleSet) Clone() *RuleSet {
	clone := &RuleSet{
		Name:            rs.Name,
		Version:         rs.Version,
		DefaultDecision: rs.DefaultDecision,
		Rules:           make([]Rule, len(rs.Rules)),
	}
	for i, r := range rs.Rules {
		clone.Rules[i] = r.Clone()
	}
	return clone
}

// Clone returns a deep copy of the rule.
func (r Rule) Clone() Rule {
	clone := r
	clone.Conditions = make([]Condition, len(r.Conditions))
	for i, c := range r.Conditions {
		clone.Conditions[i] = c
		clone.Conditions[i].Value = cloneValue(c.Value)
	}
	return clone
}

// cloneValue deep-copies a condition value. Values are scalars,
// []any lists, or nested combinations produced by JSON/YAML decoding.
func cloneValue(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}

// Features returns the distinct feature names referenced by any
// condition in the set.
func (rs *RuleSet) Features() []string {
	seen := make(map[string]struct{})
	var features []string
	for _, r := range rs.Rules {
		for _, c := range r.Conditions {
			if _, ok := seen[c.Feature]; !ok {
				seen[c.Feature] = struct{}{}
				features = append(features, c.Feature)
			}
		}
	}
	return features
}

// Outcomes returns the distinct decision outcomes declared by rules in
// the set, excluding the default decision.
func (rs *RuleSet) Outcomes() []string {
	seen := make(map[string]struct{})
	var outcomes []string
	for _, r := range rs.Rules {
		if _, ok := seen[r.Decision.Outcome]; !ok {
			seen[r.Decision.Outcome] = struct{}{}
			outcomes = append(outcomes, r.Decision.Outcome)
		}
	}
	return outcomes
}

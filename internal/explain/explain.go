// Package explain renders human-readable explanations for detected
// instabilities and decision boundaries. It only inspects audit data;
// all analysis happens upstream.
package explain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// RuleTransition is an (original rule, new rule) pair observed when a
// perturbation flipped a decision.
type RuleTransition struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// InstabilityExplanation narrates one instability report.
type InstabilityExplanation struct {
	BaseDecision     string           `json:"base_decision"`
	InstabilityScore float64          `json:"instability_score"`
	AffectedFeatures []string         `json:"affected_features"`
	RuleTransitions  []RuleTransition `json:"rule_transitions"`
	Summary          string           `json:"summary"`
}

// Instability explains which features and rule transitions drive a
// scenario's decision flips.
func Instability(report domain.InstabilityReport) InstabilityExplanation {
	features := make(map[string]struct{})
	transitions := make(map[RuleTransition]struct{})

	for _, change := range report.Changes {
		for name, baseValue := range report.BaseScenario {
			if !domain.ValuesEqual(baseValue, change.PerturbedScenario[name]) {
				features[name] = struct{}{}
			}
		}
		transitions[RuleTransition{From: change.OriginalRule, To: change.NewRule}] = struct{}{}
	}

	explanation := InstabilityExplanation{
		BaseDecision:     report.BaseDecision,
		InstabilityScore: report.InstabilityScore,
	}
	for f := range features {
		explanation.AffectedFeatures = append(explanation.AffectedFeatures, f)
	}
	sort.Strings(explanation.AffectedFeatures)
	for t := range transitions {
		explanation.RuleTransitions = append(explanation.RuleTransitions, t)
	}
	sort.Slice(explanation.RuleTransitions, func(i, j int) bool {
		a, b := explanation.RuleTransitions[i], explanation.RuleTransitions[j]
		if a.From != b.From {
			return a.From < b.From
		}
		return a.To < b.To
	})

	explanation.Summary = fmt.Sprintf(
		"%.0f%% of perturbations flipped the %q decision; sensitive features: %s",
		report.InstabilityScore*100,
		report.BaseDecision,
		joinOr(explanation.AffectedFeatures, "none isolated"),
	)
	return explanation
}

// Boundary narrates one decision boundary.
func Boundary(b domain.Boundary) string {
	return fmt.Sprintf(
		"%s flips from %q (%s) to %q (%s) between %v and %v (gap %v)",
		b.Feature,
		b.DecisionBefore, ruleOrDefault(b.RuleBefore),
		b.DecisionAfter, ruleOrDefault(b.RuleAfter),
		b.ValueBefore, b.ValueAfter, b.ValueGap,
	)
}

// Conflict narrates one conflicting scenario pair.
func Conflict(c domain.Conflict) string {
	return fmt.Sprintf(
		"scenarios %d and %d are %.0f%% similar yet decided %q (%s) versus %q (%s)",
		c.ScenarioIndex1, c.ScenarioIndex2, c.Similarity*100,
		c.Decision1, ruleOrDefault(c.Rule1),
		c.Decision2, ruleOrDefault(c.Rule2),
	)
}

func ruleOrDefault(ruleID string) string {
	if ruleID == "" {
		return "default decision"
	}
	return "rule " + ruleID
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}

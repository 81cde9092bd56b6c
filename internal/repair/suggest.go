package repair

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// maxInstabilitySuggestions caps how many unstable scenarios generate
// buffer-zone suggestions.
const maxInstabilitySuggestions = 3

// Suggest derives rule modifications from detection results using
// fixed heuristics, no learning:
//
//   - each of the top instability reports with score > 0.3 suggests a
//     buffer zone around the rule that produced the unstable decision;
//   - a coverage gap rate above 0.1 suggests routing unmatched
//     scenarios to manual review via the default decision;
//   - a concentration score above 0.7 suggests loosening the first
//     rule's threshold to diversify outcomes.
//
// A suggestion that later fails to apply (for example the unstable
// decision came from the default fallback, so there is no rule to
// buffer) is an individual ModificationError; the rest still apply.
func Suggest(reports []domain.InstabilityReport, coverage *domain.CoverageRisk, concentration *domain.ConcentrationRisk, rs *domain.RuleSet) []domain.Modification {
	var suggestions []domain.Modification

	taken := 0
	for _, report := range reports {
		if taken >= maxInstabilitySuggestions {
			break
		}
		if report.InstabilityScore <= 0.3 || report.BaseRule == "" {
			continue
		}
		taken++
		suggestions = append(suggestions, domain.Modification{
			RuleID: report.BaseRule,
			Kind:   domain.ModAddBufferZone,
			Parameters: domain.ModParams{
				BufferPercent:        0.1,
				IntermediateDecision: "review",
			},
			Description: fmt.Sprintf("Add buffer zone to reduce instability near %s boundary", report.BaseDecision),
		})
	}

	if coverage != nil && coverage.GapRate > 0.1 {
		suggestions = append(suggestions, domain.Modification{
			RuleID: DefaultRuleTarget,
			Kind:   domain.ModModifyDecision,
			Parameters: domain.ModParams{
				Outcome:   "review",
				Reasoning: "No specific rule matched - requires manual review",
			},
			Description: "Improve default decision handling for uncovered scenarios",
		})
	}

	if concentration != nil && concentration.Score > 0.7 && rs != nil && len(rs.Rules) > 0 {
		suggestions = append(suggestions, domain.Modification{
			RuleID: rs.Rules[0].ID,
			Kind:   domain.ModAdjustThreshold,
			Parameters: domain.ModParams{
				ConditionIndex: 0,
				Adjustment:     5,
			},
			Description: "Adjust thresholds to improve decision diversity",
		})
	}

	return suggestions
}

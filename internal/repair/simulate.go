package repair

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/executor"
	"github.com/opensource-finance/kestrel/internal/risk"
	"github.com/opensource-finance/kestrel/internal/rules"
)

var tracer = otel.Tracer("kestrel-repair")

// Recommendation bands a modification by its risk delta.
type Recommendation string

// Recommendation bands, best to worst.
const (
	RecommendStrongly Recommendation = "strongly_recommended"
	Recommend         Recommendation = "recommended"
	RecommendNeutral  Recommendation = "neutral"
	RecommendCaution  Recommendation = "caution"
	RecommendAgainst  Recommendation = "not_recommended"
)

// SideMetrics captures the scored metrics of one side of a
// baseline-versus-modified comparison.
type SideMetrics struct {
	DecisionDistribution map[string]int  `json:"decision_distribution"`
	CoverageGapRate      float64         `json:"coverage_gap_rate"`
	ConcentrationScore   float64         `json:"concentration_score"`
	CompositeRiskScore   float64         `json:"composite_risk_score"`
	OverallSeverity      domain.Severity `json:"overall_severity"`
}

// DecisionShift is one outcome's count change between runs.
type DecisionShift struct {
	Before int `json:"before"`
	After  int `json:"after"`
	Delta  int `json:"delta"`
}

// Impact compares a rule set before and after a modification.
type Impact struct {
	Modification domain.Modification `json:"modification"`
	Baseline     SideMetrics         `json:"baseline"`
	Modified     SideMetrics         `json:"modified"`

	DecisionShifts      map[string]DecisionShift `json:"decision_shifts"`
	RiskDelta           float64                  `json:"risk_delta"`
	CoverageImprovement float64                  `json:"coverage_improvement"`
	ConcentrationChange float64                  `json:"concentration_change"`

	Recommendation Recommendation `json:"recommendation"`
	Summary        string         `json:"summary"`
}

// SimulateImpact runs the same scenario batch against the original
// rule set and a modified clone, scoring each side with its own
// scorer instance so no state crosses between runs, and reports the
// distribution shifts and risk delta.
func SimulateImpact(ctx context.Context, mod domain.Modification, rs *domain.RuleSet, scenarios []domain.Scenario) (*Impact, error) {
	ctx, span := tracer.Start(ctx, "repair.SimulateImpact",
		trace.WithAttributes(
			attribute.String("modification.kind", string(mod.Kind)),
			attribute.String("modification.rule_id", mod.RuleID),
			attribute.Int("scenarios.count", len(scenarios)),
		))
	defer span.End()

	modified, err := Apply(rs, mod)
	if err != nil {
		return nil, err
	}

	baseline, err := runAndScore(ctx, rs, scenarios)
	if err != nil {
		return nil, fmt.Errorf("baseline run: %w", err)
	}
	after, err := runAndScore(ctx, modified, scenarios)
	if err != nil {
		return nil, fmt.Errorf("modified run: %w", err)
	}

	impact := &Impact{
		Modification:        mod,
		Baseline:            baseline,
		Modified:            after,
		DecisionShifts:      decisionShifts(baseline.DecisionDistribution, after.DecisionDistribution),
		RiskDelta:           after.CompositeRiskScore - baseline.CompositeRiskScore,
		CoverageImprovement: baseline.CoverageGapRate - after.CoverageGapRate,
		ConcentrationChange: after.ConcentrationScore - baseline.ConcentrationScore,
	}
	impact.Recommendation, impact.Summary = recommend(impact.RiskDelta)

	span.SetAttributes(attribute.Float64("risk.delta", impact.RiskDelta))
	return impact, nil
}

// runAndScore executes the batch with a fresh engine, executor, and
// scorer, keeping each side of the comparison fully independent.
func runAndScore(ctx context.Context, rs *domain.RuleSet, scenarios []domain.Scenario) (SideMetrics, error) {
	ex := executor.New(rules.NewEngine(rs))
	records, err := ex.ExecuteBatch(ctx, scenarios)
	if err != nil {
		return SideMetrics{}, err
	}

	scorer := risk.NewScorer()
	coverage := scorer.ScoreCoverageGaps(records)
	concentration := scorer.ScoreDecisionConcentration(records)
	composite := scorer.Composite()

	return SideMetrics{
		DecisionDistribution: ex.DecisionDistribution(),
		CoverageGapRate:      coverage.GapRate,
		ConcentrationScore:   concentration.Score,
		CompositeRiskScore:   composite.Score,
		OverallSeverity:      composite.Severity,
	}, nil
}

func decisionShifts(before, after map[string]int) map[string]DecisionShift {
	shifts := make(map[string]DecisionShift)
	for decision, n := range before {
		shifts[decision] = DecisionShift{Before: n, After: after[decision], Delta: after[decision] - n}
	}
	for decision, n := range after {
		if _, seen := shifts[decision]; !seen {
			shifts[decision] = DecisionShift{Before: 0, After: n, Delta: n}
		}
	}
	return shifts
}

func recommend(delta float64) (Recommendation, string) {
	switch {
	case delta < -0.10:
		return RecommendStrongly, "This modification significantly reduces risk"
	case delta < -0.05:
		return Recommend, "This modification moderately reduces risk"
	case delta < 0.05:
		return RecommendNeutral, "This modification has minimal impact on risk"
	case delta < 0.10:
		return RecommendCaution, "This modification slightly increases risk - review trade-offs"
	default:
		return RecommendAgainst, "This modification significantly increases risk"
	}
}

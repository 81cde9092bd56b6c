// Package detector measures decision instability: how often small
// perturbations of a scenario flip the decision a rule set produces.
package detector

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/rules"
)

var tracer = otel.Tracer("kestrel-detector")

// Perturber produces perturbed variants of a base scenario. The
// expected behavior: continuous features get noise scaled to
// magnitude x feature range and clipped to the range; discrete
// features jitter by one or two steps with some probability;
// categorical features are reassigned to a different value with some
// probability, otherwise left unchanged.
type Perturber interface {
	Perturb(base domain.Scenario, n int, magnitude float64) []domain.Scenario
}

// Analyzer perturbs scenarios and measures decision-flip frequency.
type Analyzer struct {
	engine    *rules.Engine
	perturber Perturber
}

// NewAnalyzer creates an instability analyzer over the given engine
// and perturbation generator.
func NewAnalyzer(engine *rules.Engine, perturber Perturber) *Analyzer {
	return &Analyzer{engine: engine, perturber: perturber}
}

// DetectInstability perturbs each base scenario nPerturbations times
// and records every perturbation that flipped the decision. The
// instability score is exactly flips / nPerturbations; a report is
// produced only when at least one perturbation flipped.
//
// A base scenario that fails evaluation is logged and skipped; the
// remaining scenarios are still analyzed.
func (a *Analyzer) DetectInstability(ctx context.Context, bases []domain.Scenario, nPerturbations int, magnitude float64) ([]domain.InstabilityReport, error) {
	ctx, span := tracer.Start(ctx, "detector.DetectInstability",
		trace.WithAttributes(
			attribute.Int("scenarios.count", len(bases)),
			attribute.Int("perturbations.count", nPerturbations),
			attribute.Float64("perturbations.magnitude", magnitude),
		))
	defer span.End()

	if a.engine.RuleSet() == nil {
		return nil, domain.ErrNoRuleSet
	}
	if nPerturbations <= 0 {
		return nil, nil
	}

	var reports []domain.InstabilityReport

	for i, base := range bases {
		baseRecord, err := a.engine.Execute(ctx, base)
		if err != nil {
			slog.Warn("base scenario evaluation failed", "index", i, "error", err)
			continue
		}

		perturbed := a.perturber.Perturb(base, nPerturbations, magnitude)

		var changes []domain.DecisionChange
		for j, variant := range perturbed {
			record, err := a.engine.Execute(ctx, variant)
			if err != nil {
				slog.Warn("perturbed scenario evaluation failed", "index", i, "perturbation", j, "error", err)
				continue
			}
			if record.Decision == baseRecord.Decision {
				continue
			}
			changes = append(changes, domain.DecisionChange{
				PerturbationIndex: j,
				Distance:          domain.ScenarioDistance(base, variant),
				OriginalDecision:  baseRecord.Decision,
				NewDecision:       record.Decision,
				OriginalRule:      baseRecord.RuleID,
				NewRule:           record.RuleID,
				PerturbedScenario: variant,
			})
		}

		score := float64(len(changes)) / float64(nPerturbations)
		if score > 0 {
			reports = append(reports, domain.InstabilityReport{
				ScenarioIndex:    i,
				BaseScenario:     base,
				BaseDecision:     baseRecord.Decision,
				BaseRule:         baseRecord.RuleID,
				InstabilityScore: score,
				Changes:          changes,
				Perturbations:    nPerturbations,
			})
		}
	}

	span.SetAttributes(attribute.Int("reports.count", len(reports)))
	return reports, nil
}

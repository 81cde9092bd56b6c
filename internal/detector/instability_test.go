package detector

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/rules"
)

func creditRuleSet() *domain.RuleSet {
	rs := &domain.RuleSet{
		Name: "credit_policy",
		Rules: []domain.Rule{
			{
				ID:       "R1",
				Priority: 1,
				Conditions: []domain.Condition{
					{Feature: "credit_score", Operator: domain.OpLess, Value: 600.0},
				},
				Decision:    domain.Decision{Outcome: "reject", Confidence: 0.95},
				StopOnMatch: true,
			},
			{
				ID:       "R2",
				Priority: 2,
				Conditions: []domain.Condition{
					{Feature: "credit_score", Operator: domain.OpGreaterEqual, Value: 600.0},
				},
				Decision:    domain.Decision{Outcome: "approve", Confidence: 0.9},
				StopOnMatch: true,
			},
		},
		DefaultDecision: domain.DefaultDecision{Outcome: "no_decision"},
	}
	rs.Sort()
	return rs
}

// offsetPerturber shifts credit_score by a fixed list of deltas, so
// flip counts are exact.
type offsetPerturber struct {
	deltas []float64
}

func (p offsetPerturber) Perturb(base domain.Scenario, n int, magnitude float64) []domain.Scenario {
	out := make([]domain.Scenario, 0, n)
	for i := 0; i < n; i++ {
		variant := base.Clone()
		if v, ok := domain.Number(base["credit_score"]); ok {
			variant["credit_score"] = v + p.deltas[i%len(p.deltas)]
		}
		out = append(out, variant)
	}
	return out
}

func TestDetectInstabilityScoresFlips(t *testing.T) {
	engine := rules.NewEngine(creditRuleSet())
	// Base 605 (approve): -10 flips to reject, +10 and 0 stay approve.
	analyzer := NewAnalyzer(engine, offsetPerturber{deltas: []float64{-10, 0, 10}})

	reports, err := analyzer.DetectInstability(context.Background(),
		[]domain.Scenario{{"credit_score": 605.0}}, 3, 0.05)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}

	r := reports[0]
	if r.BaseDecision != "approve" || r.BaseRule != "R2" {
		t.Errorf("base = %s via %s", r.BaseDecision, r.BaseRule)
	}
	if math.Abs(r.InstabilityScore-1.0/3.0) > 1e-9 {
		t.Errorf("score = %v, want 1/3", r.InstabilityScore)
	}
	if len(r.Changes) != 1 {
		t.Fatalf("got %d changes, want 1", len(r.Changes))
	}

	change := r.Changes[0]
	if change.OriginalDecision != "approve" || change.NewDecision != "reject" {
		t.Errorf("change = %s -> %s", change.OriginalDecision, change.NewDecision)
	}
	if change.OriginalRule != "R2" || change.NewRule != "R1" {
		t.Errorf("rules = %s -> %s", change.OriginalRule, change.NewRule)
	}
	if change.Distance <= 0 {
		t.Errorf("distance = %v, want > 0", change.Distance)
	}
}

func TestDetectInstabilityStableScenario(t *testing.T) {
	engine := rules.NewEngine(creditRuleSet())
	// Base 700 stays approve under every small offset: no report.
	analyzer := NewAnalyzer(engine, offsetPerturber{deltas: []float64{-10, 0, 10}})

	reports, err := analyzer.DetectInstability(context.Background(),
		[]domain.Scenario{{"credit_score": 700.0}}, 3, 0.05)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reports) != 0 {
		t.Errorf("stable scenario produced %d reports", len(reports))
	}
}

func TestDetectInstabilityNoRuleSet(t *testing.T) {
	analyzer := NewAnalyzer(rules.NewEngine(nil), offsetPerturber{deltas: []float64{0}})

	_, err := analyzer.DetectInstability(context.Background(),
		[]domain.Scenario{{"credit_score": 605.0}}, 3, 0.05)
	if !errors.Is(err, domain.ErrNoRuleSet) {
		t.Fatalf("expected ErrNoRuleSet, got %v", err)
	}
}

func TestDetectInstabilityZeroPerturbations(t *testing.T) {
	analyzer := NewAnalyzer(rules.NewEngine(creditRuleSet()), offsetPerturber{deltas: []float64{0}})

	reports, err := analyzer.DetectInstability(context.Background(),
		[]domain.Scenario{{"credit_score": 605.0}}, 0, 0.05)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reports != nil {
		t.Errorf("expected nil reports, got %v", reports)
	}
}

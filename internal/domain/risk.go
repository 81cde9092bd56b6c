package domain

// Severity grades a risk dimension or the composite score.
type Severity string

// Severity tiers, lowest to highest.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Value maps a severity tier to its numeric contribution weight.
func (s Severity) Value() float64 {
	switch s {
	case SeverityCritical:
		return 1.0
	case SeverityHigh:
		return 0.75
	case SeverityMedium:
		return 0.50
	default:
		return 0.25
	}
}

// Risk dimension names used as keys in composite breakdowns.
const (
	RiskInstability   = "instability"
	RiskConflict      = "conflict"
	RiskCoverage      = "coverage"
	RiskConcentration = "concentration"
	RiskConfidence    = "confidence"
)

// InstabilityRisk scores decision sensitivity to perturbations.
type InstabilityRisk struct {
	OverallRisk       float64  `json:"overall_instability_risk"`
	MaxScore          float64  `json:"max_instability_score"`
	UnstableScenarios int      `json:"unstable_scenario_count"`
	HighRiskScenarios []int    `json:"high_risk_scenarios,omitempty"`
	Severity          Severity `json:"severity"`
}

// ConflictRisk scores decision-boundary density across the batch.
type ConflictRisk struct {
	Density             float64  `json:"conflict_density"`
	TotalBoundaries     int      `json:"total_boundaries"`
	UniqueTransitions   int      `json:"unique_rule_transitions"`
	AvgBoundaryGap      float64  `json:"avg_boundary_gap"`
	BoundaryGapVariance float64  `json:"boundary_gap_variance"`
	Severity            Severity `json:"severity"`
}

// FeatureStats summarizes one numeric feature over a record subset.
type FeatureStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// CoverageRisk scores scenarios that fell through to the default
// decision because no rule matched.
type CoverageRisk struct {
	GapRate         float64                 `json:"coverage_gap_rate"`
	Unmatched       int                     `json:"scenarios_without_match"`
	TotalScenarios  int                     `json:"total_scenarios"`
	GapFeatureStats map[string]FeatureStats `json:"gap_feature_statistics,omitempty"`
	Severity        Severity                `json:"severity"`
}

// ConcentrationRisk scores how unevenly decisions are distributed,
// via the Gini coefficient of outcome proportions.
type ConcentrationRisk struct {
	Score           float64            `json:"concentration_score"`
	Distribution    map[string]float64 `json:"decision_distribution"`
	UniqueDecisions int                `json:"unique_decisions"`
	Severity        Severity           `json:"severity"`
	Interpretation  string             `json:"interpretation,omitempty"`
}

// ConfidenceRisk scores inconsistency in decision confidence.
type ConfidenceRisk struct {
	Mean               float64  `json:"confidence_mean"`
	Std                float64  `json:"confidence_std"`
	Min                float64  `json:"confidence_min"`
	LowConfidenceRate  float64  `json:"low_confidence_rate"`
	LowConfidenceCount int      `json:"low_confidence_count"`
	Severity           Severity `json:"severity"`
}

// RiskContribution is one dimension's share of the composite score.
type RiskContribution struct {
	Severity     Severity `json:"severity"`
	Weight       float64  `json:"weight"`
	Contribution float64  `json:"contribution"`
}

// CompositeRisk is the weighted aggregate of all computed dimensions.
// Dimensions that were never scored contribute nothing; their weights
// are deliberately not redistributed, so a partial analysis
// under-reports risk rather than inventing it.
type CompositeRisk struct {
	Score     float64                     `json:"composite_risk_score"`
	Severity  Severity                    `json:"overall_severity"`
	Breakdown map[string]RiskContribution `json:"risk_breakdown"`
}

// Package risk scores rule-set failure modes along five dimensions
// and combines them into a weighted composite risk score.
package risk

import (
	"math"
	"sort"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Composite weights per dimension. Dimensions that were never scored
// contribute nothing and their weights are not redistributed.
var compositeWeights = map[string]float64{
	domain.RiskInstability:   0.35,
	domain.RiskConflict:      0.25,
	domain.RiskCoverage:      0.20,
	domain.RiskConcentration: 0.10,
	domain.RiskConfidence:    0.10,
}

// Scorer accumulates dimension scores and produces the composite.
// Baseline-versus-modified comparisons must use separate Scorer
// instances so partial state never crosses between runs.
type Scorer struct {
	severities map[string]domain.Severity

	Instability   *domain.InstabilityRisk
	Conflict      *domain.ConflictRisk
	Coverage      *domain.CoverageRisk
	Concentration *domain.ConcentrationRisk
	Confidence    *domain.ConfidenceRisk
}

// NewScorer creates an empty scorer.
func NewScorer() *Scorer {
	return &Scorer{severities: make(map[string]domain.Severity)}
}

// ScoreInstability grades the batch by its worst instability score.
// Zero reports return a zero, low-severity result and leave the
// dimension out of the composite.
func (s *Scorer) ScoreInstability(reports []domain.InstabilityReport) domain.InstabilityRisk {
	result := domain.InstabilityRisk{Severity: domain.SeverityLow}
	if len(reports) == 0 {
		return result
	}

	var sum, maxScore float64
	for _, r := range reports {
		sum += r.InstabilityScore
		if r.InstabilityScore > maxScore {
			maxScore = r.InstabilityScore
		}
		if r.InstabilityScore > 0.3 {
			result.HighRiskScenarios = append(result.HighRiskScenarios, r.ScenarioIndex)
		}
	}
	result.OverallRisk = sum / float64(len(reports))
	result.MaxScore = maxScore
	result.UnstableScenarios = len(reports)

	switch {
	case maxScore > 0.5:
		result.Severity = domain.SeverityCritical
	case maxScore > 0.3:
		result.Severity = domain.SeverityHigh
	case maxScore > 0.1:
		result.Severity = domain.SeverityMedium
	}

	s.Instability = &result
	s.severities[domain.RiskInstability] = result.Severity
	return result
}

// ScoreConflictDensity grades decision-boundary density: boundaries
// per executed scenario.
func (s *Scorer) ScoreConflictDensity(totalScenarios int, boundaries []domain.Boundary) domain.ConflictRisk {
	result := domain.ConflictRisk{Severity: domain.SeverityLow}
	if totalScenarios == 0 {
		return result
	}

	transitions := make(map[[2]string]struct{})
	var gaps []float64
	for _, b := range boundaries {
		if b.RuleBefore != "" && b.RuleAfter != "" {
			pair := [2]string{b.RuleBefore, b.RuleAfter}
			if pair[0] > pair[1] {
				pair[0], pair[1] = pair[1], pair[0]
			}
			transitions[pair] = struct{}{}
		}
		gaps = append(gaps, b.ValueGap)
	}

	result.Density = float64(len(boundaries)) / float64(totalScenarios)
	result.TotalBoundaries = len(boundaries)
	result.UniqueTransitions = len(transitions)
	result.AvgBoundaryGap = mean(gaps)
	result.BoundaryGapVariance = variance(gaps)

	switch {
	case result.Density > 0.3:
		result.Severity = domain.SeverityCritical
	case result.Density > 0.15:
		result.Severity = domain.SeverityHigh
	case result.Density > 0.05:
		result.Severity = domain.SeverityMedium
	}

	s.Conflict = &result
	s.severities[domain.RiskConflict] = result.Severity
	return result
}

// ScoreCoverageGaps grades how often no rule matched and the default
// decision applied.
func (s *Scorer) ScoreCoverageGaps(records []*domain.DecisionRecord) domain.CoverageRisk {
	result := domain.CoverageRisk{Severity: domain.SeverityLow}
	if len(records) == 0 {
		return result
	}

	var unmatched []*domain.DecisionRecord
	for _, r := range records {
		if !r.Matched() {
			unmatched = append(unmatched, r)
		}
	}

	result.TotalScenarios = len(records)
	result.Unmatched = len(unmatched)
	result.GapRate = float64(len(unmatched)) / float64(len(records))
	if len(unmatched) > 0 {
		result.GapFeatureStats = gapFeatureStats(unmatched)
	}

	switch {
	case result.GapRate > 0.2:
		result.Severity = domain.SeverityCritical
	case result.GapRate > 0.1:
		result.Severity = domain.SeverityHigh
	case result.GapRate > 0.05:
		result.Severity = domain.SeverityMedium
	}

	s.Coverage = &result
	s.severities[domain.RiskCoverage] = result.Severity
	return result
}

// ScoreDecisionConcentration grades how unevenly outcomes are
// distributed, via the Gini coefficient of outcome proportions.
// A batch with a single distinct outcome scores exactly 1.0.
func (s *Scorer) ScoreDecisionConcentration(records []*domain.DecisionRecord) domain.ConcentrationRisk {
	result := domain.ConcentrationRisk{
		Severity:       domain.SeverityLow,
		Interpretation: "Well-distributed decisions",
	}
	if len(records) == 0 {
		return result
	}

	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Decision]++
	}
	props := make([]float64, 0, len(counts))
	dist := make(map[string]float64, len(counts))
	for decision, n := range counts {
		p := float64(n) / float64(len(records))
		props = append(props, p)
		dist[decision] = p
	}

	result.Score = gini(props)
	result.Distribution = dist
	result.UniqueDecisions = len(counts)

	switch {
	case result.Score > 0.8:
		result.Severity = domain.SeverityCritical
		result.Interpretation = "Extreme concentration - nearly all scenarios lead to same decision"
	case result.Score > 0.6:
		result.Severity = domain.SeverityHigh
		result.Interpretation = "High concentration - limited decision diversity"
	case result.Score > 0.4:
		result.Severity = domain.SeverityMedium
		result.Interpretation = "Moderate concentration"
	}

	s.Concentration = &result
	s.severities[domain.RiskConcentration] = result.Severity
	return result
}

// ScoreConfidenceVariance grades inconsistency in decision confidence:
// either a wide spread, or a large share of low-confidence decisions.
func (s *Scorer) ScoreConfidenceVariance(records []*domain.DecisionRecord) domain.ConfidenceRisk {
	result := domain.ConfidenceRisk{Severity: domain.SeverityLow}
	if len(records) == 0 {
		return result
	}

	confidences := make([]float64, len(records))
	low := 0
	minConf := math.Inf(1)
	for i, r := range records {
		confidences[i] = r.Confidence
		if r.Confidence < 0.5 {
			low++
		}
		if r.Confidence < minConf {
			minConf = r.Confidence
		}
	}

	result.Mean = mean(confidences)
	result.Std = sampleStd(confidences)
	result.Min = minConf
	result.LowConfidenceCount = low
	result.LowConfidenceRate = float64(low) / float64(len(records))

	switch {
	case result.Std > 0.3 || result.LowConfidenceRate > 0.3:
		result.Severity = domain.SeverityHigh
	case result.Std > 0.2 || result.LowConfidenceRate > 0.15:
		result.Severity = domain.SeverityMedium
	}

	s.Confidence = &result
	s.severities[domain.RiskConfidence] = result.Severity
	return result
}

// Composite combines every dimension scored so far into a weighted
// score in [0,1]. With a single scored dimension the composite equals
// that dimension's weight x tier value; nothing is renormalized, so
// partial analyses under-report rather than overstate risk.
func (s *Scorer) Composite() domain.CompositeRisk {
	composite := domain.CompositeRisk{
		Severity:  domain.SeverityLow,
		Breakdown: make(map[string]domain.RiskContribution),
	}

	for dimension, weight := range compositeWeights {
		severity, ok := s.severities[dimension]
		if !ok {
			continue
		}
		contribution := weight * severity.Value()
		composite.Score += contribution
		composite.Breakdown[dimension] = domain.RiskContribution{
			Severity:     severity,
			Weight:       weight,
			Contribution: contribution,
		}
	}

	switch {
	case composite.Score > 0.75:
		composite.Severity = domain.SeverityCritical
	case composite.Score > 0.50:
		composite.Severity = domain.SeverityHigh
	case composite.Score > 0.25:
		composite.Severity = domain.SeverityMedium
	}
	return composite
}

// gini computes the Gini coefficient of outcome proportions, sorted
// descending. One distinct outcome is complete concentration: 1.0.
func gini(proportions []float64) float64 {
	n := len(proportions)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return 1.0
	}

	sorted := make([]float64, n)
	copy(sorted, proportions)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	cumsum := make([]float64, n)
	running := 0.0
	var cumsumTotal float64
	for i, p := range sorted {
		running += p
		cumsum[i] = running
		cumsumTotal += running
	}
	return (float64(n) + 1 - 2*cumsumTotal/cumsum[n-1]) / float64(n)
}

func gapFeatureStats(records []*domain.DecisionRecord) map[string]domain.FeatureStats {
	byFeature := make(map[string][]float64)
	for _, r := range records {
		for key, v := range r.Scenario {
			if n, ok := domain.Number(v); ok {
				byFeature[key] = append(byFeature[key], n)
			}
		}
	}

	stats := make(map[string]domain.FeatureStats, len(byFeature))
	for key, values := range byFeature {
		minV, maxV := values[0], values[0]
		for _, v := range values[1:] {
			minV = math.Min(minV, v)
			maxV = math.Max(maxV, v)
		}
		stats[key] = domain.FeatureStats{
			Mean: mean(values),
			Std:  sampleStd(values),
			Min:  minV,
			Max:  maxV,
		}
	}
	return stats
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// variance is the population variance.
func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return sum / float64(len(values))
}

// sampleStd is the sample standard deviation (n-1 denominator), zero
// for fewer than two values.
func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

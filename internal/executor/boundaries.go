package executor

import (
	"sort"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// DecisionPair is an unordered pair of decision outcomes used to
// filter boundaries to transitions of interest.
type DecisionPair struct {
	A, B string
}

func (p DecisionPair) matches(before, after string) bool {
	return (p.A == before && p.B == after) || (p.A == after && p.B == before)
}

// FindDecisionBoundaries sorts history records by the named feature
// and emits a Boundary for each adjacent pair whose decisions differ.
// Records whose scenario lacks a numeric value for the feature are
// ignored. With a non-empty allow-list, only boundaries whose
// unordered decision pair matches an allowed pair are kept.
//
// An empty history degrades to an empty result.
func (ex *Executor) FindDecisionBoundaries(feature string, allowed []DecisionPair) []domain.Boundary {
	type point struct {
		value  float64
		record *domain.DecisionRecord
	}

	var points []point
	for _, entry := range ex.History() {
		if v, ok := domain.Number(entry.Scenario[feature]); ok {
			points = append(points, point{value: v, record: entry.Record})
		}
	}
	if len(points) < 2 {
		return nil
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].value < points[j].value })

	var boundaries []domain.Boundary
	for i := 0; i < len(points)-1; i++ {
		curr, next := points[i], points[i+1]
		if curr.record.Decision == next.record.Decision {
			continue
		}
		if len(allowed) > 0 && !pairAllowed(allowed, curr.record.Decision, next.record.Decision) {
			continue
		}
		boundaries = append(boundaries, domain.Boundary{
			Feature:          feature,
			ValueBefore:      curr.value,
			ValueAfter:       next.value,
			ValueGap:         next.value - curr.value,
			DecisionBefore:   curr.record.Decision,
			DecisionAfter:    next.record.Decision,
			RuleBefore:       curr.record.RuleID,
			RuleAfter:        next.record.RuleID,
			ConfidenceBefore: curr.record.Confidence,
			ConfidenceAfter:  next.record.Confidence,
		})
	}
	return boundaries
}

func pairAllowed(allowed []DecisionPair, before, after string) bool {
	for _, p := range allowed {
		if p.matches(before, after) {
			return true
		}
	}
	return false
}

package executor

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// FindConflictingScenarios compares every unordered pair of scenarios
// in history and reports pairs that are similar (mean per-feature
// relative difference at or below threshold) yet produced different
// decisions. Pairwise comparison is O(n^2) in history size; acceptable
// at stress-test batch sizes.
func (ex *Executor) FindConflictingScenarios(threshold float64) []domain.Conflict {
	history := ex.History()
	if len(history) < 2 {
		return nil
	}

	var conflicts []domain.Conflict
	for i := 0; i < len(history); i++ {
		for j := i + 1; j < len(history); j++ {
			a, b := history[i], history[j]
			if !scenariosSimilar(a.Scenario, b.Scenario, threshold) {
				continue
			}
			if a.Record.Decision == b.Record.Decision {
				continue
			}
			conflicts = append(conflicts, domain.Conflict{
				ScenarioIndex1: i,
				ScenarioIndex2: j,
				Scenario1:      a.Scenario,
				Scenario2:      b.Scenario,
				Decision1:      a.Record.Decision,
				Decision2:      b.Record.Decision,
				Rule1:          a.Record.RuleID,
				Rule2:          b.Record.RuleID,
				Similarity:     similarityScore(a.Scenario, b.Scenario),
			})
		}
	}
	return conflicts
}

// scenariosSimilar reports whether the mean relative difference across
// shared features is within threshold. Numeric differences are
// normalized by the first non-zero operand; differing categorical
// values count as a full unit of difference.
func scenariosSimilar(a, b domain.Scenario, threshold float64) bool {
	var totalDiff float64
	var count int

	for key, va := range a {
		vb, ok := b[key]
		if !ok {
			continue
		}
		na, aNum := domain.Number(va)
		nb, bNum := domain.Number(vb)
		switch {
		case aNum && bNum:
			var rel float64
			switch {
			case na != 0:
				rel = absFloat(na-nb) / absFloat(na)
			case nb != 0:
				rel = absFloat(na-nb) / absFloat(nb)
			}
			totalDiff += rel
			count++
		case va == vb:
			count++
		default:
			totalDiff += 1
			count++
		}
	}

	if count == 0 {
		return false
	}
	return totalDiff/float64(count) <= threshold
}

// similarityScore returns a 0-1 similarity over shared features:
// numeric pairs contribute 1 - |a-b|/max(|a|,|b|); equal categorical
// values contribute 1. Mismatched categorical values are excluded
// from the average, mirroring the similarity definition the rest of
// the pipeline is calibrated against.
func similarityScore(a, b domain.Scenario) float64 {
	var total float64
	var count int

	for key, va := range a {
		vb, ok := b[key]
		if !ok {
			continue
		}
		na, aNum := domain.Number(va)
		nb, bNum := domain.Number(vb)
		switch {
		case aNum && bNum:
			maxVal := max(absFloat(na), absFloat(nb))
			if maxVal > 0 {
				total += 1 - absFloat(na-nb)/maxVal
			} else {
				total += 1
			}
			count++
		case va == vb:
			total += 1
			count++
		}
	}

	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

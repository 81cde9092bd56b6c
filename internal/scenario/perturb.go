package scenario

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Perturbation probabilities for non-continuous features.
const (
	discreteJitterProb    = 0.3
	categoricalChangeProb = 0.2
)

// Perturb generates n small variants of a base scenario for
// instability probing:
//
//   - continuous features get gaussian noise with sigma scaled to
//     magnitude x feature range, clipped back into the range;
//   - discrete features jitter by one or two steps with probability
//     0.3, otherwise stay put;
//   - categorical features are reassigned to a different value with
//     probability 0.2, otherwise stay put.
//
// Features absent from the space pass through unchanged.
func (g *Generator) Perturb(base domain.Scenario, n int, magnitude float64) []domain.Scenario {
	variants := make([]domain.Scenario, 0, n)

	for i := 0; i < n; i++ {
		variant := make(domain.Scenario, len(base))
		for name, value := range base {
			spec := g.space.Spec(name)
			if spec == nil {
				variant[name] = value
				continue
			}
			variant[name] = g.perturbValue(*spec, value, magnitude)
		}
		variants = append(variants, variant)
	}
	return variants
}

func (g *Generator) perturbValue(spec FeatureSpec, value any, magnitude float64) any {
	switch spec.Kind {
	case Continuous:
		v, ok := domain.Number(value)
		if !ok {
			return value
		}
		noise := g.rng.NormFloat64() * magnitude * (spec.Max - spec.Min)
		return clip(v+noise, spec.Min, spec.Max)

	case Discrete:
		v, ok := domain.Number(value)
		if !ok {
			return value
		}
		if g.rng.Float64() >= discreteJitterProb {
			return v
		}
		steps := []float64{-2, -1, 1, 2}
		return clip(v+steps[g.rng.Intn(len(steps))], spec.Min, spec.Max)

	case Categorical:
		if len(spec.Values) < 2 || g.rng.Float64() >= categoricalChangeProb {
			return value
		}
		current := fmt.Sprint(value)
		others := make([]string, 0, len(spec.Values)-1)
		for _, candidate := range spec.Values {
			if candidate != current {
				others = append(others, candidate)
			}
		}
		if len(others) == 0 {
			return value
		}
		return others[g.rng.Intn(len(others))]
	}
	return value
}

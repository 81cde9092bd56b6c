package scenario

import (
	"log/slog"
	"math"
	"math/rand"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Type selects a generation strategy.
type Type string

// Generation strategies.
const (
	Normal      Type = "normal"
	Boundary    Type = "boundary"
	Adversarial Type = "adversarial"
	Random      Type = "random"
)

// maxConstraintRetries bounds rejection sampling when a space carries
// constraint expressions.
const maxConstraintRetries = 100

// Generator produces scenarios over a feature space with a seeded,
// deterministic RNG.
type Generator struct {
	space *Space
	rng   *rand.Rand
}

// NewGenerator creates a generator over a space. The same seed always
// reproduces the same scenario stream.
func NewGenerator(space *Space, seed int64) *Generator {
	return &Generator{space: space, rng: rand.New(rand.NewSource(seed))}
}

// Generate produces n scenarios of the given type. Scenarios must
// satisfy the space's constraints; after bounded retries a violating
// scenario is kept so generation always terminates.
func (g *Generator) Generate(n int, t Type) []domain.Scenario {
	scenarios := make([]domain.Scenario, 0, n)
	for i := 0; i < n; i++ {
		scenarios = append(scenarios, g.one(func() domain.Scenario {
			s := make(domain.Scenario, len(g.space.Features))
			for _, spec := range g.space.Features {
				s[spec.Name] = g.value(spec, t)
			}
			return s
		}))
	}
	return scenarios
}

// GenerateMonteCarlo mixes generation strategies per feature: 60%
// normal, 20% boundary, 20% random. The mix surfaces rare feature
// combinations that expose rule conflicts.
func (g *Generator) GenerateMonteCarlo(n int) []domain.Scenario {
	scenarios := make([]domain.Scenario, 0, n)
	for i := 0; i < n; i++ {
		scenarios = append(scenarios, g.one(func() domain.Scenario {
			s := make(domain.Scenario, len(g.space.Features))
			for _, spec := range g.space.Features {
				switch r := g.rng.Float64(); {
				case r < 0.6:
					s[spec.Name] = g.value(spec, Normal)
				case r < 0.8:
					s[spec.Name] = g.value(spec, Boundary)
				default:
					s[spec.Name] = g.value(spec, Random)
				}
			}
			return s
		}))
	}
	return scenarios
}

// GenerateGrid builds a systematic grid with the given resolution per
// dimension. The result has resolution^d points before constraint
// filtering; keep the dimensionality in mind. Constraint-violating
// grid points are dropped, not resampled.
func (g *Generator) GenerateGrid(resolution int) []domain.Scenario {
	if resolution < 2 {
		resolution = 2
	}
	axes := make([][]any, len(g.space.Features))
	for i, spec := range g.space.Features {
		axes[i] = gridAxis(spec, resolution)
	}

	var scenarios []domain.Scenario
	current := make(domain.Scenario, len(g.space.Features))
	g.gridWalk(axes, 0, current, &scenarios)
	return scenarios
}

func (g *Generator) gridWalk(axes [][]any, depth int, current domain.Scenario, out *[]domain.Scenario) {
	if depth == len(axes) {
		if g.space.Satisfies(current) {
			*out = append(*out, current.Clone())
		}
		return
	}
	name := g.space.Features[depth].Name
	for _, v := range axes[depth] {
		current[name] = v
		g.gridWalk(axes, depth+1, current, out)
	}
}

// GenerateEdgeCases produces scenarios that pin one feature at a time
// to an extreme while the rest stay typical.
func (g *Generator) GenerateEdgeCases(nPerFeature int) []domain.Scenario {
	var scenarios []domain.Scenario
	for _, target := range g.space.Features {
		for i := 0; i < nPerFeature; i++ {
			scenarios = append(scenarios, g.one(func() domain.Scenario {
				s := make(domain.Scenario, len(g.space.Features))
				for _, spec := range g.space.Features {
					if spec.Name == target.Name {
						s[spec.Name] = g.extremeValue(spec)
					} else {
						s[spec.Name] = g.value(spec, Normal)
					}
				}
				return s
			}))
		}
	}
	return scenarios
}

// one applies constraint rejection sampling around a build function.
func (g *Generator) one(build func() domain.Scenario) domain.Scenario {
	s := build()
	for attempt := 0; attempt < maxConstraintRetries && !g.space.Satisfies(s); attempt++ {
		s = build()
	}
	if !g.space.Satisfies(s) {
		slog.Warn("constraint retries exhausted, keeping violating scenario")
	}
	return s
}

func (g *Generator) value(spec FeatureSpec, t Type) any {
	switch spec.Kind {
	case Categorical:
		return spec.Values[g.rng.Intn(len(spec.Values))]

	case Continuous:
		switch t {
		case Boundary:
			return g.boundaryValue(spec)
		case Normal:
			return g.distributedValue(spec)
		default:
			return g.uniform(spec.Min, spec.Max)
		}

	case Discrete:
		if t == Boundary {
			points := []float64{spec.Min, spec.Max, math.Floor((spec.Min + spec.Max) / 2)}
			return points[g.rng.Intn(len(points))]
		}
		return g.discreteUniform(spec.Min, spec.Max)
	}
	return nil
}

// boundaryValue samples the edges of a continuous range: the bounds,
// the midpoint, and points just inside each bound.
func (g *Generator) boundaryValue(spec FeatureSpec) float64 {
	epsilon := (spec.Max - spec.Min) * 0.01
	points := []float64{
		spec.Min,
		spec.Max,
		(spec.Min + spec.Max) / 2,
		spec.Min + epsilon,
		spec.Max - epsilon,
	}
	return points[g.rng.Intn(len(points))]
}

func (g *Generator) distributedValue(spec FeatureSpec) float64 {
	switch spec.Distribution {
	case "normal":
		mean := (spec.Min + spec.Max) / 2
		if spec.Mean != nil {
			mean = *spec.Mean
		}
		std := (spec.Max - spec.Min) / 6
		if spec.Std != nil {
			std = *spec.Std
		}
		return clip(g.rng.NormFloat64()*std+mean, spec.Min, spec.Max)
	case "exponential":
		scale := (spec.Max - spec.Min) / 3
		return clip(spec.Min+g.rng.ExpFloat64()*scale, spec.Min, spec.Max)
	default:
		return g.uniform(spec.Min, spec.Max)
	}
}

func (g *Generator) extremeValue(spec FeatureSpec) any {
	if spec.Kind == Categorical {
		if g.rng.Intn(2) == 0 {
			return spec.Values[0]
		}
		return spec.Values[len(spec.Values)-1]
	}
	if g.rng.Intn(2) == 0 {
		return spec.Min
	}
	return spec.Max
}

func (g *Generator) uniform(min, max float64) float64 {
	return min + g.rng.Float64()*(max-min)
}

func (g *Generator) discreteUniform(min, max float64) float64 {
	lo, hi := int(math.Ceil(min)), int(math.Floor(max))
	if hi < lo {
		return math.Round(min)
	}
	return float64(lo + g.rng.Intn(hi-lo+1))
}

func gridAxis(spec FeatureSpec, resolution int) []any {
	if spec.Kind == Categorical {
		n := min(resolution, len(spec.Values))
		axis := make([]any, n)
		for i := 0; i < n; i++ {
			axis[i] = spec.Values[i]
		}
		return axis
	}

	axis := make([]any, resolution)
	step := (spec.Max - spec.Min) / float64(resolution-1)
	for i := 0; i < resolution; i++ {
		v := spec.Min + float64(i)*step
		if spec.Kind == Discrete {
			v = math.Round(v)
		}
		axis[i] = v
	}
	return axis
}

func clip(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

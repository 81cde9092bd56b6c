// Package scenario generates synthetic input scenarios for
// stress-testing rule sets: typical cases, boundary probes,
// adversarial perturbations, and systematic grids over a declared
// feature space.
package scenario

import (
	"fmt"
	"math"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Kind classifies a feature dimension.
type Kind string

// Feature kinds.
const (
	Continuous  Kind = "continuous"
	Discrete    Kind = "discrete"
	Categorical Kind = "categorical"
)

// FeatureSpec describes one dimension of the scenario space.
type FeatureSpec struct {
	Name string `yaml:"name" json:"name" validate:"required"`
	Kind Kind   `yaml:"kind" json:"kind" validate:"required,oneof=continuous discrete categorical"`

	// Range bounds continuous and discrete features.
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`

	// Values enumerates categorical features.
	Values []string `yaml:"values" json:"values"`

	// Distribution shapes normal-case sampling: uniform (default),
	// normal, or exponential.
	Distribution string   `yaml:"distribution" json:"distribution"`
	Mean         *float64 `yaml:"mean" json:"mean"`
	Std          *float64 `yaml:"std" json:"std"`
}

// Space is a validated feature space with optional CEL constraint
// expressions that every generated scenario must satisfy.
type Space struct {
	Features    []FeatureSpec `yaml:"features" json:"features" validate:"required,min=1,dive"`
	Constraints []string      `yaml:"constraints" json:"constraints"`

	programs []cel.Program
}

var validate = validator.New()

// LoadSpace reads a feature-space configuration from a YAML file and
// compiles its constraint expressions.
func LoadSpace(path string) (*Space, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading space config %s: %w", path, err)
	}
	var space Space
	if err := yaml.Unmarshal(data, &space); err != nil {
		return nil, fmt.Errorf("decoding space config: %w", err)
	}
	if err := space.Compile(); err != nil {
		return nil, err
	}
	return &space, nil
}

// NewSpace builds a space from feature specs and compiles any
// constraint expressions.
func NewSpace(features []FeatureSpec, constraints ...string) (*Space, error) {
	space := &Space{Features: features, Constraints: constraints}
	if err := space.Compile(); err != nil {
		return nil, err
	}
	return space, nil
}

// Compile validates the space and compiles its CEL constraints. Each
// feature becomes a CEL variable; constraint expressions must return
// bool.
func (s *Space) Compile() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid feature space: %w", err)
	}
	for _, f := range s.Features {
		switch f.Kind {
		case Categorical:
			if len(f.Values) == 0 {
				return fmt.Errorf("feature %s: categorical requires values", f.Name)
			}
		default:
			if f.Max < f.Min {
				return fmt.Errorf("feature %s: max %v below min %v", f.Name, f.Max, f.Min)
			}
		}
	}

	if len(s.Constraints) == 0 {
		s.programs = nil
		return nil
	}

	opts := make([]cel.EnvOption, 0, len(s.Features))
	for _, f := range s.Features {
		opts = append(opts, cel.Variable(f.Name, cel.DynType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return fmt.Errorf("creating CEL environment: %w", err)
	}

	s.programs = make([]cel.Program, 0, len(s.Constraints))
	for _, expr := range s.Constraints {
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return fmt.Errorf("compiling constraint %q: %w", expr, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return fmt.Errorf("constraint %q: expression must return bool, got %s", expr, ast.OutputType())
		}
		program, err := env.Program(ast)
		if err != nil {
			return fmt.Errorf("building constraint program %q: %w", expr, err)
		}
		s.programs = append(s.programs, program)
	}
	return nil
}

// Satisfies reports whether a scenario passes every compiled
// constraint. Evaluation errors count as a constraint failure.
func (s *Space) Satisfies(scenario domain.Scenario) bool {
	if len(s.programs) == 0 {
		return true
	}
	activation := map[string]any(scenario)
	for _, program := range s.programs {
		out, _, err := program.Eval(activation)
		if err != nil {
			return false
		}
		if out != types.True {
			return false
		}
	}
	return true
}

// Spec returns the spec for a feature name, or nil.
func (s *Space) Spec(name string) *FeatureSpec {
	for i := range s.Features {
		if s.Features[i].Name == name {
			return &s.Features[i]
		}
	}
	return nil
}

// SpaceFromScenario derives a perturbation space from a concrete
// scenario: numeric features get a +/-20% band around their current
// value (fractional values are treated as continuous, integral as
// discrete) and categorical features are pinned to their current
// value.
func SpaceFromScenario(base domain.Scenario) *Space {
	space := &Space{}
	for name, value := range base {
		if n, ok := domain.Number(value); ok {
			lo, hi := n*0.8, n*1.2
			if lo > hi {
				lo, hi = hi, lo
			}
			kind := Discrete
			if n != math.Trunc(n) {
				kind = Continuous
			}
			space.Features = append(space.Features, FeatureSpec{
				Name: name, Kind: kind, Min: lo, Max: hi,
			})
			continue
		}
		space.Features = append(space.Features, FeatureSpec{
			Name: name, Kind: Categorical, Values: []string{fmt.Sprint(value)},
		})
	}
	return space
}

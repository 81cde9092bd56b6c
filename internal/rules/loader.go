package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Rule documents are accepted as JSON or YAML with identical structure.
// Pointer fields distinguish "absent" from zero so defaults can apply.
type ruleDocument struct {
	RuleSetName     string              `json:"rule_set_name" yaml:"rule_set_name" validate:"required"`
	Version         string              `json:"version" yaml:"version"`
	DefaultDecision *defaultDecisionDoc `json:"default_decision" yaml:"default_decision"`
	Rules           []ruleEntry         `json:"rules" yaml:"rules" validate:"required,min=1,dive"`
}

type defaultDecisionDoc struct {
	Outcome   string `json:"outcome" yaml:"outcome" validate:"required"`
	Reasoning string `json:"reasoning" yaml:"reasoning"`
}

type ruleEntry struct {
	RuleID      string         `json:"rule_id" yaml:"rule_id" validate:"required"`
	Name        string         `json:"name" yaml:"name"`
	Priority    *float64       `json:"priority" yaml:"priority" validate:"required"`
	StopOnMatch *bool          `json:"stop_on_match" yaml:"stop_on_match"`
	Disabled    bool           `json:"disabled" yaml:"disabled"`
	Conditions  []conditionDoc `json:"conditions" yaml:"conditions" validate:"required,min=1,dive"`
	Decision    decisionDoc    `json:"decision" yaml:"decision"`
}

type conditionDoc struct {
	Feature  string `json:"feature" yaml:"feature" validate:"required"`
	Operator string `json:"operator" yaml:"operator" validate:"required"`
	Value    any    `json:"value" yaml:"value"`
	Logical  string `json:"logical" yaml:"logical"`
}

type decisionDoc struct {
	Outcome    string   `json:"outcome" yaml:"outcome" validate:"required"`
	Confidence *float64 `json:"confidence" yaml:"confidence"`
	Reasoning  string   `json:"reasoning" yaml:"reasoning"`
}

var validate = validator.New()

// Load reads and validates a rule document from disk. The format is
// chosen by file extension: .json, .yaml, or .yml. Invalid documents
// fail fast with a ConfigurationError.
func Load(path string) (*domain.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigurationError{Detail: fmt.Sprintf("reading %s", path), Err: err}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return Parse(data, "json")
	case ".yaml", ".yml":
		return Parse(data, "yaml")
	default:
		return nil, &domain.ConfigurationError{
			Detail: fmt.Sprintf("unsupported file format %q", filepath.Ext(path)),
		}
	}
}

// Parse decodes, validates, and sorts a rule document. format is
// "json" or "yaml".
func Parse(data []byte, format string) (*domain.RuleSet, error) {
	var doc ruleDocument
	var err error
	switch format {
	case "json":
		err = json.Unmarshal(data, &doc)
	case "yaml":
		err = yaml.Unmarshal(data, &doc)
	default:
		return nil, &domain.ConfigurationError{Detail: fmt.Sprintf("unknown format %q", format)}
	}
	if err != nil {
		return nil, &domain.ConfigurationError{Detail: "decoding rule document", Err: err}
	}

	if err := validate.Struct(&doc); err != nil {
		return nil, &domain.ConfigurationError{Detail: "schema validation failed", Err: err}
	}
	if err := validateSemantics(&doc); err != nil {
		return nil, err
	}

	return buildRuleSet(&doc), nil
}

// validateSemantics checks everything struct tags cannot express:
// operator names, operand shapes, confidence range, id uniqueness.
func validateSemantics(doc *ruleDocument) error {
	seen := make(map[string]struct{}, len(doc.Rules))

	for _, rule := range doc.Rules {
		if _, dup := seen[rule.RuleID]; dup {
			return &domain.ConfigurationError{Detail: fmt.Sprintf("duplicate rule_id %q", rule.RuleID)}
		}
		seen[rule.RuleID] = struct{}{}

		if rule.Decision.Confidence != nil {
			c := *rule.Decision.Confidence
			if c < 0 || c > 1 {
				return &domain.ConfigurationError{
					Detail: fmt.Sprintf("rule %s: confidence %v outside [0,1]", rule.RuleID, c),
				}
			}
		}

		for i, cond := range rule.Conditions {
			op := domain.Operator(cond.Operator)
			if !knownOperator(op) {
				return &domain.ConfigurationError{
					Detail: fmt.Sprintf("rule %s condition %d: unknown operator %q", rule.RuleID, i, cond.Operator),
				}
			}
			switch op {
			case domain.OpIn, domain.OpNotIn:
				if _, ok := cond.Value.([]any); !ok {
					return &domain.ConfigurationError{
						Detail: fmt.Sprintf("rule %s condition %d: %s requires a list value", rule.RuleID, i, op),
					}
				}
			case domain.OpBetween:
				bounds, ok := cond.Value.([]any)
				if !ok || len(bounds) != 2 {
					return &domain.ConfigurationError{
						Detail: fmt.Sprintf("rule %s condition %d: between requires a two-element range", rule.RuleID, i),
					}
				}
				if _, okLo := domain.Number(bounds[0]); !okLo {
					return &domain.ConfigurationError{
						Detail: fmt.Sprintf("rule %s condition %d: between bounds must be numeric", rule.RuleID, i),
					}
				}
				if _, okHi := domain.Number(bounds[1]); !okHi {
					return &domain.ConfigurationError{
						Detail: fmt.Sprintf("rule %s condition %d: between bounds must be numeric", rule.RuleID, i),
					}
				}
			}
			switch cond.Logical {
			case "", string(domain.LogicalAnd), string(domain.LogicalOr):
			default:
				return &domain.ConfigurationError{
					Detail: fmt.Sprintf("rule %s condition %d: unknown logical %q", rule.RuleID, i, cond.Logical),
				}
			}
		}
	}
	return nil
}

func buildRuleSet(doc *ruleDocument) *domain.RuleSet {
	rs := &domain.RuleSet{
		Name:    doc.RuleSetName,
		Version: doc.Version,
		Rules:   make([]domain.Rule, 0, len(doc.Rules)),
		DefaultDecision: domain.DefaultDecision{
			Outcome:   "no_decision",
			Reasoning: "No rules matched",
		},
	}
	if doc.DefaultDecision != nil {
		rs.DefaultDecision.Outcome = doc.DefaultDecision.Outcome
		if doc.DefaultDecision.Reasoning != "" {
			rs.DefaultDecision.Reasoning = doc.DefaultDecision.Reasoning
		}
	}

	for _, entry := range doc.Rules {
		rule := domain.Rule{
			ID:          entry.RuleID,
			Name:        entry.Name,
			Priority:    *entry.Priority,
			StopOnMatch: true,
			Disabled:    entry.Disabled,
			Conditions:  make([]domain.Condition, 0, len(entry.Conditions)),
			Decision: domain.Decision{
				Outcome:    entry.Decision.Outcome,
				Confidence: 1.0,
				Reasoning:  entry.Decision.Reasoning,
			},
		}
		if entry.StopOnMatch != nil {
			rule.StopOnMatch = *entry.StopOnMatch
		}
		if entry.Decision.Confidence != nil {
			rule.Decision.Confidence = *entry.Decision.Confidence
		}
		for _, cond := range entry.Conditions {
			logical := domain.LogicalAnd
			if cond.Logical == string(domain.LogicalOr) {
				logical = domain.LogicalOr
			}
			rule.Conditions = append(rule.Conditions, domain.Condition{
				Feature:  cond.Feature,
				Operator: domain.Operator(cond.Operator),
				Value:    normalizeValue(cond.Value),
				Logical:  logical,
			})
		}
		rs.Rules = append(rs.Rules, rule)
	}

	rs.Sort()
	return rs
}

// normalizeValue converts YAML-decoded list types so condition values
// always carry []any regardless of source format.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	case int:
		return float64(val)
	default:
		return v
	}
}

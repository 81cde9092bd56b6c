package rules

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const jsonDoc = `{
  "rule_set_name": "credit_policy",
  "version": "1.0",
  "default_decision": {"outcome": "manual_review"},
  "rules": [
    {
      "rule_id": "R2",
      "priority": 2,
      "conditions": [
        {"feature": "credit_score", "operator": ">=", "value": 600}
      ],
      "decision": {"outcome": "approve", "confidence": 0.9}
    },
    {
      "rule_id": "R1",
      "priority": 1,
      "conditions": [
        {"feature": "credit_score", "operator": "<", "value": 600}
      ],
      "decision": {"outcome": "reject"}
    }
  ]
}`

const yamlDoc = `
rule_set_name: credit_policy
rules:
  - rule_id: R1
    priority: 1
    conditions:
      - feature: state
        operator: in
        value: [CA, NY]
      - feature: credit_score
        operator: between
        value: [600, 700]
        logical: AND
    decision:
      outcome: approve
`

func TestParseJSONDocument(t *testing.T) {
	rs, err := Parse([]byte(jsonDoc), "json")
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	if rs.Name != "credit_policy" || rs.Version != "1.0" {
		t.Errorf("name/version = %s/%s", rs.Name, rs.Version)
	}
	if rs.DefaultDecision.Outcome != "manual_review" {
		t.Errorf("default outcome = %s", rs.DefaultDecision.Outcome)
	}
	// Rules come back sorted by priority regardless of document order.
	if rs.Rules[0].ID != "R1" || rs.Rules[1].ID != "R2" {
		t.Errorf("rule order = %s, %s; want R1, R2", rs.Rules[0].ID, rs.Rules[1].ID)
	}

	// Defaults: stop_on_match true, confidence 1.0 when absent.
	r1 := rs.FindRule("R1")
	if !r1.StopOnMatch {
		t.Error("stop_on_match should default to true")
	}
	if r1.Decision.Confidence != 1.0 {
		t.Errorf("confidence defaulted to %v, want 1.0", r1.Decision.Confidence)
	}
	r2 := rs.FindRule("R2")
	if r2.Decision.Confidence != 0.9 {
		t.Errorf("explicit confidence = %v, want 0.9", r2.Decision.Confidence)
	}
}

func TestParseYAMLNormalizesNumbers(t *testing.T) {
	rs, err := Parse([]byte(yamlDoc), "yaml")
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	// YAML decodes 600 as int; conditions must carry float64 so the
	// evaluator compares uniformly.
	bounds := rs.Rules[0].Conditions[1].Value.([]any)
	if _, ok := bounds[0].(float64); !ok {
		t.Errorf("between bound decoded as %T, want float64", bounds[0])
	}
	if rs.Rules[0].Conditions[1].Logical != domain.LogicalAnd {
		t.Errorf("logical = %s, want AND", rs.Rules[0].Conditions[1].Logical)
	}
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"duplicate rule ids", `{
			"rule_set_name": "t",
			"rules": [
				{"rule_id": "R1", "priority": 1, "conditions": [{"feature": "a", "operator": ">", "value": 1}], "decision": {"outcome": "x"}},
				{"rule_id": "R1", "priority": 2, "conditions": [{"feature": "a", "operator": ">", "value": 2}], "decision": {"outcome": "y"}}
			]
		}`},
		{"confidence out of range", `{
			"rule_set_name": "t",
			"rules": [
				{"rule_id": "R1", "priority": 1, "conditions": [{"feature": "a", "operator": ">", "value": 1}], "decision": {"outcome": "x", "confidence": 1.5}}
			]
		}`},
		{"unknown operator", `{
			"rule_set_name": "t",
			"rules": [
				{"rule_id": "R1", "priority": 1, "conditions": [{"feature": "a", "operator": "~", "value": 1}], "decision": {"outcome": "x"}}
			]
		}`},
		{"in without list", `{
			"rule_set_name": "t",
			"rules": [
				{"rule_id": "R1", "priority": 1, "conditions": [{"feature": "a", "operator": "in", "value": 1}], "decision": {"outcome": "x"}}
			]
		}`},
		{"between wrong arity", `{
			"rule_set_name": "t",
			"rules": [
				{"rule_id": "R1", "priority": 1, "conditions": [{"feature": "a", "operator": "between", "value": [1]}], "decision": {"outcome": "x"}}
			]
		}`},
		{"between non-numeric bound", `{
			"rule_set_name": "t",
			"rules": [
				{"rule_id": "R1", "priority": 1, "conditions": [{"feature": "a", "operator": "between", "value": [1, "high"]}], "decision": {"outcome": "x"}}
			]
		}`},
		{"unknown logical", `{
			"rule_set_name": "t",
			"rules": [
				{"rule_id": "R1", "priority": 1, "conditions": [
					{"feature": "a", "operator": ">", "value": 1},
					{"feature": "b", "operator": ">", "value": 2, "logical": "XOR"}
				], "decision": {"outcome": "x"}}
			]
		}`},
		{"missing rules", `{"rule_set_name": "t", "rules": []}`},
		{"missing priority", `{
			"rule_set_name": "t",
			"rules": [
				{"rule_id": "R1", "conditions": [{"feature": "a", "operator": ">", "value": 1}], "decision": {"outcome": "x"}}
			]
		}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc), "json")
			var cfgErr *domain.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
		})
	}
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "rules.json")
	if err := os.WriteFile(jsonPath, []byte(jsonDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(jsonPath); err != nil {
		t.Errorf("loading json: %v", err)
	}

	yamlPath := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(yamlPath, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(yamlPath); err != nil {
		t.Errorf("loading yaml: %v", err)
	}

	txtPath := filepath.Join(dir, "rules.txt")
	if err := os.WriteFile(txtPath, []byte(jsonDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(txtPath); err == nil {
		t.Error("expected error for unsupported extension")
	}

	if _, err := Load(filepath.Join(dir, "absent.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

package domain

// ConditionResult is the evaluation trace of a single condition.
// Actual is nil when the scenario does not carry the feature.
type ConditionResult struct {
	Feature  string   `json:"feature"`
	Operator Operator `json:"operator"`
	Expected any      `json:"expected"`
	Actual   any      `json:"actual"`
	Result   bool     `json:"result"`
}

// RuleTrace records the evaluation of one rule against one scenario,
// including the result of every condition. Conditions are always
// evaluated in full so the trace stays complete for explainability.
type RuleTrace struct {
	RuleID     string            `json:"rule_id"`
	RuleName   string            `json:"rule_name,omitempty"`
	Priority   float64           `json:"priority"`
	Matched    bool              `json:"matched"`
	Conditions []ConditionResult `json:"conditions"`
}

// DecisionRecord is the immutable result of executing a rule set
// against one scenario. RuleID is empty when no rule matched and the
// default decision applied.
type DecisionRecord struct {
	ID         string     `json:"id"`
	Scenario   Scenario   `json:"scenario"`
	Decision   string     `json:"decision"`
	RuleID     string     `json:"rule_id,omitempty"`
	Confidence float64    `json:"confidence"`
	Reasoning  string     `json:"reasoning,omitempty"`
	AuditTrail []RuleTrace `json:"audit_trail,omitempty"`
}

// Matched reports whether any rule produced the decision, as opposed
// to the default-decision fallback.
func (r *DecisionRecord) Matched() bool {
	return r.RuleID != ""
}

// Boundary is a pair of records adjacent in a feature's sorted order
// whose decisions differ: a sharp edge in the decision surface.
type Boundary struct {
	Feature          string  `json:"feature"`
	ValueBefore      float64 `json:"value_before"`
	ValueAfter       float64 `json:"value_after"`
	ValueGap         float64 `json:"value_gap"`
	DecisionBefore   string  `json:"decision_before"`
	DecisionAfter    string  `json:"decision_after"`
	RuleBefore       string  `json:"rule_before,omitempty"`
	RuleAfter        string  `json:"rule_after,omitempty"`
	ConfidenceBefore float64 `json:"confidence_before"`
	ConfidenceAfter  float64 `json:"confidence_after"`
}

// Conflict is a pair of near-duplicate scenarios that nonetheless
// produced different decisions.
type Conflict struct {
	ScenarioIndex1 int      `json:"scenario1_id"`
	ScenarioIndex2 int      `json:"scenario2_id"`
	Scenario1      Scenario `json:"scenario1"`
	Scenario2      Scenario `json:"scenario2"`
	Decision1      string   `json:"decision1"`
	Decision2      string   `json:"decision2"`
	Rule1          string   `json:"rule1,omitempty"`
	Rule2          string   `json:"rule2,omitempty"`
	Similarity     float64  `json:"similarity_score"`
}

// DecisionChange records one perturbation that flipped a decision.
type DecisionChange struct {
	PerturbationIndex int      `json:"perturbation_id"`
	Distance          float64  `json:"distance"`
	OriginalDecision  string   `json:"original_decision"`
	NewDecision       string   `json:"new_decision"`
	OriginalRule      string   `json:"original_rule,omitempty"`
	NewRule           string   `json:"new_rule,omitempty"`
	PerturbedScenario Scenario `json:"perturbed_scenario"`
}

// InstabilityReport summarizes how often small perturbations of a
// scenario flip its decision. Reports are only produced when at least
// one perturbation flipped, so InstabilityScore is always > 0.
type InstabilityReport struct {
	ScenarioIndex    int              `json:"scenario_id"`
	BaseScenario     Scenario         `json:"base_scenario"`
	BaseDecision     string           `json:"base_decision"`
	BaseRule         string           `json:"base_rule,omitempty"`
	InstabilityScore float64          `json:"instability_score"`
	Changes          []DecisionChange `json:"decision_changes"`
	Perturbations    int              `json:"num_perturbations"`
}

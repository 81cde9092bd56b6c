package domain

// ModificationKind identifies a structural change to a rule set.
type ModificationKind string

// Supported modification kinds.
const (
	ModAdjustThreshold ModificationKind = "adjust_threshold"
	ModChangePriority  ModificationKind = "change_priority"
	ModAddCondition    ModificationKind = "add_condition"
	ModRemoveCondition ModificationKind = "remove_condition"
	ModModifyDecision  ModificationKind = "modify_decision"
	ModDisableRule     ModificationKind = "disable_rule"
	ModAddBufferZone   ModificationKind = "add_buffer_zone"
)

// Modification describes one sandboxed change to a rule set. Applying
// a modification is a pure function: it clones the rule set and never
// touches the original.
type Modification struct {
	RuleID      string           `json:"rule_id" yaml:"rule_id"`
	Kind        ModificationKind `json:"kind" yaml:"kind"`
	Parameters  ModParams        `json:"parameters" yaml:"parameters"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
}

// ModParams carries the kind-specific parameters of a modification.
// Only the fields relevant to the kind are consulted.
type ModParams struct {
	// adjust_threshold
	ConditionIndex int     `json:"condition_index,omitempty" yaml:"condition_index,omitempty"`
	Adjustment     float64 `json:"adjustment,omitempty" yaml:"adjustment,omitempty"`

	// change_priority
	NewPriority float64 `json:"new_priority,omitempty" yaml:"new_priority,omitempty"`

	// add_condition
	NewCondition *Condition `json:"new_condition,omitempty" yaml:"new_condition,omitempty"`

	// modify_decision: non-zero fields are merged into the decision.
	Outcome    string   `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	Confidence *float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Reasoning  string   `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`

	// add_buffer_zone
	BufferPercent        float64 `json:"buffer_percent,omitempty" yaml:"buffer_percent,omitempty"`
	IntermediateDecision string  `json:"intermediate_decision,omitempty" yaml:"intermediate_decision,omitempty"`
}

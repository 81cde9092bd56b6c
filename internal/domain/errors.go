package domain

import (
	"errors"
	"fmt"
)

// ErrNoRuleSet is returned when execution is attempted before a rule
// set has been loaded.
var ErrNoRuleSet = errors.New("no rule set loaded")

// ConfigurationError reports an invalid rule document or rule
// configuration. It is fatal: a pipeline cannot run on rules that
// failed validation.
type ConfigurationError struct {
	Detail string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rule configuration: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("rule configuration: %s", e.Detail)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// EvaluationError reports a failure while evaluating a rule against a
// scenario, such as an unrecognized operator. It is fatal for that
// scenario only; batch processing continues with the rest.
type EvaluationError struct {
	RuleID   string
	Feature  string
	Operator Operator
}

func (e *EvaluationError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("rule %s: unknown operator %q on feature %q", e.RuleID, e.Operator, e.Feature)
	}
	return fmt.Sprintf("unknown operator %q on feature %q", e.Operator, e.Feature)
}

// ModificationError reports a modification that could not be applied,
// typically because it targets a rule id that does not exist. It is
// scoped to the single modification; suggestion batches continue.
type ModificationError struct {
	RuleID string
	Kind   ModificationKind
	Detail string
}

func (e *ModificationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("modification %s on rule %s: %s", e.Kind, e.RuleID, e.Detail)
	}
	return fmt.Sprintf("modification %s: rule %s not found", e.Kind, e.RuleID)
}

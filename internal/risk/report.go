package risk

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Export is the nested document written when a composite risk score
// is exported.
type Export struct {
	Composite domain.CompositeRisk `json:"composite"`
	Detail    map[string]any       `json:"detailed_scores,omitempty"`
}

// WriteJSON exports the composite score plus every scored dimension's
// raw metrics as an indented JSON document.
func (s *Scorer) WriteJSON(w io.Writer) error {
	export := Export{
		Composite: s.Composite(),
		Detail:    make(map[string]any),
	}
	if s.Instability != nil {
		export.Detail[domain.RiskInstability] = s.Instability
	}
	if s.Conflict != nil {
		export.Detail[domain.RiskConflict] = s.Conflict
	}
	if s.Coverage != nil {
		export.Detail[domain.RiskCoverage] = s.Coverage
	}
	if s.Concentration != nil {
		export.Detail[domain.RiskConcentration] = s.Concentration
	}
	if s.Confidence != nil {
		export.Detail[domain.RiskConfidence] = s.Confidence
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(export); err != nil {
		return fmt.Errorf("encoding risk export: %w", err)
	}
	return nil
}

// Report renders a human-readable risk assessment.
func (s *Scorer) Report() string {
	composite := s.Composite()

	var b strings.Builder
	rule := strings.Repeat("=", 60)
	b.WriteString(rule + "\n")
	b.WriteString("KESTREL - RISK ASSESSMENT REPORT\n")
	b.WriteString(rule + "\n\n")
	fmt.Fprintf(&b, "Overall Risk Level: %s\n", strings.ToUpper(string(composite.Severity)))
	fmt.Fprintf(&b, "Composite Risk Score: %.2f / 1.00\n\n", composite.Score)
	b.WriteString("Risk Factor Breakdown:\n")
	b.WriteString(strings.Repeat("-", 60) + "\n")

	dimensions := make([]string, 0, len(composite.Breakdown))
	for dim := range composite.Breakdown {
		dimensions = append(dimensions, dim)
	}
	sort.Strings(dimensions)

	for _, dim := range dimensions {
		detail := composite.Breakdown[dim]
		fmt.Fprintf(&b, "\n%s:\n", strings.ToUpper(dim))
		fmt.Fprintf(&b, "  Severity: %s\n", detail.Severity)
		fmt.Fprintf(&b, "  Contribution to Overall Risk: %.3f\n", detail.Contribution)
	}

	b.WriteString("\n" + rule + "\n")
	return b.String()
}

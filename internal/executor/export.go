package executor

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// FlatRecord is a decision record flattened for export, with audit
// fields optionally stripped.
type FlatRecord struct {
	ScenarioIndex int                `json:"scenario_id"`
	Decision      string             `json:"decision"`
	RuleID        string             `json:"rule_id,omitempty"`
	Confidence    float64            `json:"confidence"`
	Reasoning     string             `json:"reasoning,omitempty"`
	Features      domain.Scenario    `json:"features"`
	AuditTrail    []domain.RuleTrace `json:"audit_trail,omitempty"`
}

// Flatten converts the execution history into flat export records.
// Audit trails are stripped unless includeAudit is set; they dominate
// record size on large batches.
func (ex *Executor) Flatten(includeAudit bool) []FlatRecord {
	history := ex.History()
	out := make([]FlatRecord, len(history))
	for i, entry := range history {
		out[i] = FlatRecord{
			ScenarioIndex: i,
			Decision:      entry.Record.Decision,
			RuleID:        entry.Record.RuleID,
			Confidence:    entry.Record.Confidence,
			Reasoning:     entry.Record.Reasoning,
			Features:      entry.Scenario,
		}
		if includeAudit {
			out[i].AuditTrail = entry.Record.AuditTrail
		}
	}
	return out
}

// WriteCSV exports the execution history as CSV. Feature columns are
// emitted in sorted order with a feature_ prefix. When includeAudit is
// set, the audit trail is serialized as JSON into a trailing column.
func (ex *Executor) WriteCSV(w io.Writer, includeAudit bool) error {
	history := ex.History()
	features := ex.featureColumns(history)

	header := []string{"scenario_id", "decision", "rule_id", "confidence", "reasoning"}
	for _, f := range features {
		header = append(header, "feature_"+f)
	}
	if includeAudit {
		header = append(header, "audit_trail")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for i, entry := range history {
		row := []string{
			strconv.Itoa(i),
			entry.Record.Decision,
			entry.Record.RuleID,
			strconv.FormatFloat(entry.Record.Confidence, 'g', -1, 64),
			entry.Record.Reasoning,
		}
		for _, f := range features {
			row = append(row, formatValue(entry.Scenario[f]))
		}
		if includeAudit {
			trail, err := json.Marshal(entry.Record.AuditTrail)
			if err != nil {
				return fmt.Errorf("encoding audit trail: %w", err)
			}
			row = append(row, string(trail))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// FeatureMatrix derives the numeric matrix consumed by the external
// statistical analysis component. Rows align with history order;
// categorical columns are label-encoded with codes assigned in sorted
// value order for determinism.
func (ex *Executor) FeatureMatrix() domain.FeatureMatrix {
	history := ex.History()
	columns := ex.featureColumns(history)

	matrix := domain.FeatureMatrix{
		Columns:   columns,
		Rows:      make([][]float64, len(history)),
		Encodings: make(map[string]map[string]int),
	}

	// First pass: collect categorical vocabularies.
	for _, col := range columns {
		values := make(map[string]struct{})
		categorical := false
		for _, entry := range history {
			v, ok := entry.Scenario[col]
			if !ok {
				continue
			}
			if _, isNum := domain.Number(v); !isNum {
				categorical = true
				values[fmt.Sprint(v)] = struct{}{}
			}
		}
		if !categorical {
			continue
		}
		sorted := make([]string, 0, len(values))
		for v := range values {
			sorted = append(sorted, v)
		}
		sort.Strings(sorted)
		codes := make(map[string]int, len(sorted))
		for i, v := range sorted {
			codes[v] = i
		}
		matrix.Encodings[col] = codes
	}

	for i, entry := range history {
		row := make([]float64, len(columns))
		for j, col := range columns {
			v, ok := entry.Scenario[col]
			if !ok {
				continue
			}
			if codes, categorical := matrix.Encodings[col]; categorical {
				row[j] = float64(codes[fmt.Sprint(v)])
			} else if n, isNum := domain.Number(v); isNum {
				row[j] = n
			}
		}
		matrix.Rows[i] = row
	}
	return matrix
}

// featureColumns returns the sorted union of feature names seen in
// the history's scenarios.
func (ex *Executor) featureColumns(history []HistoryEntry) []string {
	seen := make(map[string]struct{})
	for _, entry := range history {
		for k := range entry.Scenario {
			seen[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(seen))
	for k := range seen {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	return columns
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

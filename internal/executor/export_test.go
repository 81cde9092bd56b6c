package executor

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/rules"
)

func TestWriteCSV(t *testing.T) {
	ex := New(rules.NewEngine(creditRuleSet()))
	ex.ExecuteBatch(context.Background(), []domain.Scenario{
		{"credit_score": 550.0, "state": "CA"},
		{"credit_score": 650.0, "state": "NY"},
	})

	var buf bytes.Buffer
	if err := ex.WriteCSV(&buf, false); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading csv back: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}

	header := rows[0]
	want := []string{"scenario_id", "decision", "rule_id", "confidence", "reasoning", "feature_credit_score", "feature_state"}
	if len(header) != len(want) {
		t.Fatalf("header = %v", header)
	}
	for i := range want {
		if header[i] != want[i] {
			t.Errorf("header[%d] = %q, want %q", i, header[i], want[i])
		}
	}
	if rows[1][1] != "reject" || rows[1][5] != "550" || rows[1][6] != "CA" {
		t.Errorf("row 1 = %v", rows[1])
	}
}

func TestWriteCSVWithAudit(t *testing.T) {
	ex := New(rules.NewEngine(creditRuleSet()))
	ex.ExecuteBatch(context.Background(), scoreScenarios(650))

	var buf bytes.Buffer
	if err := ex.WriteCSV(&buf, true); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading csv back: %v", err)
	}
	if rows[0][len(rows[0])-1] != "audit_trail" {
		t.Errorf("last column = %q, want audit_trail", rows[0][len(rows[0])-1])
	}
	trail := rows[1][len(rows[1])-1]
	if trail == "" || trail == "null" {
		t.Errorf("audit trail column = %q", trail)
	}
}

func TestFlattenStripsAudit(t *testing.T) {
	ex := New(rules.NewEngine(creditRuleSet()))
	ex.ExecuteBatch(context.Background(), scoreScenarios(550, 650))

	flat := ex.Flatten(false)
	if len(flat) != 2 {
		t.Fatalf("got %d records", len(flat))
	}
	if flat[0].AuditTrail != nil {
		t.Error("audit trail should be stripped")
	}
	if flat[1].ScenarioIndex != 1 || flat[1].Decision != "approve" {
		t.Errorf("record 1 = %+v", flat[1])
	}

	withAudit := ex.Flatten(true)
	if withAudit[0].AuditTrail == nil {
		t.Error("audit trail should be included")
	}
}

func TestFeatureMatrix(t *testing.T) {
	ex := New(rules.NewEngine(creditRuleSet()))
	ex.ExecuteBatch(context.Background(), []domain.Scenario{
		{"credit_score": 550.0, "state": "NY"},
		{"credit_score": 650.0, "state": "CA"},
		{"credit_score": 700.0, "state": "NY"},
	})

	matrix := ex.FeatureMatrix()
	if len(matrix.Columns) != 2 || matrix.Columns[0] != "credit_score" || matrix.Columns[1] != "state" {
		t.Fatalf("columns = %v", matrix.Columns)
	}
	if len(matrix.Rows) != 3 {
		t.Fatalf("got %d rows", len(matrix.Rows))
	}

	// Categorical codes are assigned in sorted value order: CA=0, NY=1.
	codes := matrix.Encodings["state"]
	if codes["CA"] != 0 || codes["NY"] != 1 {
		t.Errorf("encodings = %v", codes)
	}
	if matrix.Rows[0][0] != 550 || matrix.Rows[0][1] != 1 {
		t.Errorf("row 0 = %v", matrix.Rows[0])
	}
	if matrix.Rows[1][1] != 0 {
		t.Errorf("row 1 state code = %v, want 0", matrix.Rows[1][1])
	}
}

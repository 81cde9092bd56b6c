package risk

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestWriteJSON(t *testing.T) {
	s := NewScorer()
	s.ScoreInstability([]domain.InstabilityReport{{InstabilityScore: 0.6}})
	s.ScoreCoverageGaps(records("approve", "no_decision"))

	var buf bytes.Buffer
	if err := s.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var export Export
	if err := json.Unmarshal(buf.Bytes(), &export); err != nil {
		t.Fatalf("decoding export: %v", err)
	}
	if len(export.Composite.Breakdown) != 2 {
		t.Errorf("breakdown = %v", export.Composite.Breakdown)
	}
	if _, ok := export.Detail[domain.RiskInstability]; !ok {
		t.Error("missing instability detail")
	}
	if _, ok := export.Detail[domain.RiskConflict]; ok {
		t.Error("unscored dimension should not be exported")
	}
}

package domain

import "context"

// FeatureMatrix is the numeric view of a decision-record batch handed
// to an external statistical analysis component. Categorical columns
// are label-encoded; rows align with the record batch by index.
type FeatureMatrix struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
	// Encodings maps a categorical column to its label codes.
	Encodings map[string]map[string]int `json:"encodings,omitempty"`
}

// RowAnalysis is one row's result from an external anomaly/cluster
// component. Cluster -1 marks a noise point.
type RowAnalysis struct {
	IsAnomaly    bool    `json:"is_anomaly"`
	AnomalyScore float64 `json:"anomaly_score"`
	Cluster      int     `json:"cluster"`
}

// StatisticalAnalyzer is the contract for the external anomaly and
// clustering component. Kestrel derives the feature matrix and
// consumes the row-aligned results; the algorithms themselves
// (isolation forests, density clustering and the like) live in a
// mature statistics stack outside this module.
type StatisticalAnalyzer interface {
	Analyze(ctx context.Context, matrix FeatureMatrix) ([]RowAnalysis, error)
}

// Package executor runs rule sets over scenario batches and analyzes
// the resulting decision records for boundaries and conflicts.
package executor

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/rules"
)

var tracer = otel.Tracer("kestrel-executor")

// HistoryEntry pairs a scenario with its execution result.
type HistoryEntry struct {
	Scenario domain.Scenario
	Record   *domain.DecisionRecord
}

// Executor runs batches through a rule engine and retains execution
// history for downstream analysis. The history buffer is owned by the
// executor and only cleared by an explicit Reset.
type Executor struct {
	mu      sync.Mutex
	engine  *rules.Engine
	history []HistoryEntry

	// Workers bounds concurrent scenario execution in ExecuteBatch.
	// Zero or one means fully sequential.
	Workers int
}

// New creates an executor over the given engine.
func New(engine *rules.Engine) *Executor {
	return &Executor{engine: engine}
}

// Engine returns the underlying rule engine.
func (ex *Executor) Engine() *rules.Engine {
	return ex.engine
}

// ExecuteBatch runs the rule set against each scenario in order and
// returns the decision records. Every {scenario, record} pair is
// appended to the execution history.
//
// A scenario that fails with an EvaluationError is logged and skipped;
// the rest of the batch continues.
func (ex *Executor) ExecuteBatch(ctx context.Context, scenarios []domain.Scenario) ([]*domain.DecisionRecord, error) {
	ctx, span := tracer.Start(ctx, "executor.ExecuteBatch",
		trace.WithAttributes(attribute.Int("scenarios.count", len(scenarios))))
	defer span.End()

	if ex.engine.RuleSet() == nil {
		return nil, domain.ErrNoRuleSet
	}

	records := make([]*domain.DecisionRecord, len(scenarios))

	if ex.Workers > 1 {
		ex.executeParallel(ctx, scenarios, records)
	} else {
		for i, scenario := range scenarios {
			record, err := ex.engine.Execute(ctx, scenario)
			if err != nil {
				slog.Warn("scenario execution failed", "index", i, "error", err)
				continue
			}
			records[i] = record
		}
	}

	// Per-call accumulation merged in order keeps the history
	// deterministic under parallel execution.
	out := make([]*domain.DecisionRecord, 0, len(records))
	ex.mu.Lock()
	for i, record := range records {
		if record == nil {
			continue
		}
		ex.history = append(ex.history, HistoryEntry{Scenario: scenarios[i], Record: record})
		out = append(out, record)
	}
	ex.mu.Unlock()

	span.SetAttributes(attribute.Int("records.count", len(out)))
	return out, nil
}

// executeParallel fans scenarios out over a bounded worker pool.
// Evaluation is pure, so results only need index-stable collection.
func (ex *Executor) executeParallel(ctx context.Context, scenarios []domain.Scenario, records []*domain.DecisionRecord) {
	sem := make(chan struct{}, ex.Workers)
	var wg sync.WaitGroup

	for i, scenario := range scenarios {
		wg.Add(1)
		go func(idx int, s domain.Scenario) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			record, err := ex.engine.Execute(ctx, s)
			if err != nil {
				slog.Warn("scenario execution failed", "index", idx, "error", err)
				return
			}
			records[idx] = record
		}(i, scenario)
	}

	wg.Wait()
}

// History returns a copy of the execution history.
func (ex *Executor) History() []HistoryEntry {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	out := make([]HistoryEntry, len(ex.history))
	copy(out, ex.history)
	return out
}

// Records returns the decision records accumulated in history order.
func (ex *Executor) Records() []*domain.DecisionRecord {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	out := make([]*domain.DecisionRecord, len(ex.history))
	for i, entry := range ex.history {
		out[i] = entry.Record
	}
	return out
}

// Reset clears the execution history. Nothing clears it implicitly.
func (ex *Executor) Reset() {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.history = nil
}

// DecisionDistribution counts records per decision outcome.
func (ex *Executor) DecisionDistribution() map[string]int {
	dist := make(map[string]int)
	for _, entry := range ex.History() {
		dist[entry.Record.Decision]++
	}
	return dist
}

// RuleActivation summarizes how one rule behaved across the batch.
type RuleActivation struct {
	RuleID          string  `json:"rule_id"`
	ActivationCount int     `json:"activation_count"`
	AvgConfidence   float64 `json:"avg_confidence"`
	PrimaryDecision string  `json:"primary_decision"`
}

// RuleActivationStats aggregates per-rule activation counts, mean
// confidence, and most frequent decision, most-activated first.
// Records that fell through to the default decision are grouped under
// an empty rule id.
func (ex *Executor) RuleActivationStats() []RuleActivation {
	type agg struct {
		count     int
		confSum   float64
		decisions map[string]int
	}
	byRule := make(map[string]*agg)

	for _, entry := range ex.History() {
		a := byRule[entry.Record.RuleID]
		if a == nil {
			a = &agg{decisions: make(map[string]int)}
			byRule[entry.Record.RuleID] = a
		}
		a.count++
		a.confSum += entry.Record.Confidence
		a.decisions[entry.Record.Decision]++
	}

	stats := make([]RuleActivation, 0, len(byRule))
	for id, a := range byRule {
		primary, best := "", -1
		for decision, n := range a.decisions {
			if n > best || (n == best && decision < primary) {
				primary, best = decision, n
			}
		}
		stats = append(stats, RuleActivation{
			RuleID:          id,
			ActivationCount: a.count,
			AvgConfidence:   a.confSum / float64(a.count),
			PrimaryDecision: primary,
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].ActivationCount != stats[j].ActivationCount {
			return stats[i].ActivationCount > stats[j].ActivationCount
		}
		return stats[i].RuleID < stats[j].RuleID
	})
	return stats
}

// BatchSummary describes an executed batch.
type BatchSummary struct {
	TotalScenarios int            `json:"total_scenarios"`
	Decisions      map[string]int `json:"decisions"`
	RulesActivated int            `json:"rules_activated"`
	AvgConfidence  float64        `json:"avg_confidence"`
	Unmatched      int            `json:"scenarios_with_no_match"`
}

// Summarize returns aggregate statistics for the execution history.
// An empty history degrades to a zero summary, never an error.
func (ex *Executor) Summarize() BatchSummary {
	history := ex.History()
	summary := BatchSummary{Decisions: make(map[string]int)}

	ruleIDs := make(map[string]struct{})
	var confSum float64
	for _, entry := range history {
		summary.TotalScenarios++
		summary.Decisions[entry.Record.Decision]++
		confSum += entry.Record.Confidence
		if entry.Record.Matched() {
			ruleIDs[entry.Record.RuleID] = struct{}{}
		} else {
			summary.Unmatched++
		}
	}
	summary.RulesActivated = len(ruleIDs)
	if summary.TotalScenarios > 0 {
		summary.AvgConfidence = confSum / float64(summary.TotalScenarios)
	}
	return summary
}

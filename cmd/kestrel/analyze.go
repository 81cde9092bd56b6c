package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/kestrel/internal/detector"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/executor"
	"github.com/opensource-finance/kestrel/internal/explain"
	"github.com/opensource-finance/kestrel/internal/risk"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/scenario"
)

// analysisResult is the JSON shape of a full analyze run.
type analysisResult struct {
	Batch       executor.BatchSummary      `json:"batch"`
	Activations []executor.RuleActivation  `json:"rule_activations"`
	Boundaries  []domain.Boundary          `json:"boundaries"`
	Conflicts   []domain.Conflict          `json:"conflicts"`
	Instability []domain.InstabilityReport `json:"instability_reports"`
	Composite   domain.CompositeRisk       `json:"composite_risk"`
}

func newAnalyzeCmd() *cobra.Command {
	var (
		rulesFile     string
		batch         batchFlags
		similarity    float64
		probes        int
		perturbations int
		magnitude     float64
		jsonOut       string
		csvOut        string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run a scenario batch and score rule set fragility",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rs, err := rules.Load(rulesFile)
			if err != nil {
				return err
			}
			scenarios, space, err := batch.load()
			if err != nil {
				return err
			}
			slog.Info("analysis starting",
				"rules", len(rs.Rules),
				"scenarios", len(scenarios),
				"workers", cfg.Workers,
			)

			engine := rules.NewEngine(rs)
			ex := executor.New(engine)
			ex.Workers = cfg.Workers
			if _, err := ex.ExecuteBatch(ctx, scenarios); err != nil {
				return err
			}

			var boundaries []domain.Boundary
			for _, feature := range sortedFeatures(rs) {
				boundaries = append(boundaries, ex.FindDecisionBoundaries(feature, nil)...)
			}
			conflicts := ex.FindConflictingScenarios(similarity)

			bases := scenarios
			if probes > 0 && probes < len(bases) {
				bases = bases[:probes]
			}
			analyzer := detector.NewAnalyzer(engine, perturberFor(space))
			reports, err := analyzer.DetectInstability(ctx, bases, perturbations, magnitude)
			if err != nil {
				return err
			}

			records := ex.Records()
			scorer := risk.NewScorer()
			scorer.ScoreInstability(reports)
			scorer.ScoreConflictDensity(len(records), boundaries)
			scorer.ScoreCoverageGaps(records)
			scorer.ScoreDecisionConcentration(records)
			scorer.ScoreConfidenceVariance(records)
			composite := scorer.Composite()

			if csvOut != "" {
				if err := exportCSV(ex, csvOut); err != nil {
					return err
				}
				slog.Info("decision records exported", "path", csvOut)
			}

			if jsonOut != "" {
				return writeJSON(jsonOut, analysisResult{
					Batch:       ex.Summarize(),
					Activations: ex.RuleActivationStats(),
					Boundaries:  boundaries,
					Conflicts:   conflicts,
					Instability: reports,
					Composite:   composite,
				})
			}

			printAnalysis(cmd, ex, boundaries, conflicts, reports, scorer)
			return nil
		},
	}

	cmd.Flags().StringVar(&rulesFile, "rules", "", "rule set file (JSON or YAML)")
	cmd.MarkFlagRequired("rules")
	batch.register(cmd)
	cmd.Flags().Float64Var(&similarity, "similarity", 0.05, "relative tolerance for conflicting-scenario detection")
	cmd.Flags().IntVar(&probes, "probes", cfg.Probes, "scenarios to probe for instability (0 = all)")
	cmd.Flags().IntVar(&perturbations, "perturbations", cfg.Perturbations, "perturbations per probed scenario")
	cmd.Flags().Float64Var(&magnitude, "magnitude", cfg.Magnitude, "perturbation magnitude relative to feature range")
	cmd.Flags().StringVar(&jsonOut, "json", "", "write the full analysis as JSON to this path (- for stdout)")
	cmd.Flags().StringVar(&csvOut, "csv", "", "export decision records as CSV to this path")
	return cmd
}

func printAnalysis(cmd *cobra.Command, ex *executor.Executor, boundaries []domain.Boundary, conflicts []domain.Conflict, reports []domain.InstabilityReport, scorer *risk.Scorer) {
	out := cmd.OutOrStdout()
	summary := ex.Summarize()

	fmt.Fprintf(out, "Executed %d scenarios, %d rules activated, %d unmatched\n\n",
		summary.TotalScenarios, summary.RulesActivated, summary.Unmatched)

	if len(boundaries) > 0 {
		fmt.Fprintf(out, "Decision boundaries (%d):\n", len(boundaries))
		for _, b := range boundaries {
			fmt.Fprintf(out, "  - %s\n", explain.Boundary(b))
		}
		fmt.Fprintln(out)
	}
	if len(conflicts) > 0 {
		fmt.Fprintf(out, "Conflicting scenarios (%d):\n", len(conflicts))
		for _, c := range conflicts {
			fmt.Fprintf(out, "  - %s\n", explain.Conflict(c))
		}
		fmt.Fprintln(out)
	}
	if len(reports) > 0 {
		fmt.Fprintf(out, "Unstable scenarios (%d):\n", len(reports))
		for _, r := range reports {
			fmt.Fprintf(out, "  - %s\n", explain.Instability(r).Summary)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, scorer.Report())
}

// perturberFor returns a perturbation source: the declared feature
// space when one was loaded, otherwise a fallback that derives a
// +/-20% band around each base scenario.
func perturberFor(space *scenario.Space) detector.Perturber {
	if space != nil {
		return scenario.NewGenerator(space, cfg.Seed)
	}
	return adaptivePerturber{seed: cfg.Seed}
}

type adaptivePerturber struct {
	seed int64
}

func (p adaptivePerturber) Perturb(base domain.Scenario, n int, magnitude float64) []domain.Scenario {
	gen := scenario.NewGenerator(scenario.SpaceFromScenario(base), p.seed)
	return gen.Perturb(base, n, magnitude)
}

func sortedFeatures(rs *domain.RuleSet) []string {
	features := rs.Features()
	sort.Strings(features)
	return features
}

func exportCSV(ex *executor.Executor, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	return ex.WriteCSV(f, true)
}

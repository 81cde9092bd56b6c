package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/kestrel/internal/detector"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/executor"
	"github.com/opensource-finance/kestrel/internal/repair"
	"github.com/opensource-finance/kestrel/internal/risk"
	"github.com/opensource-finance/kestrel/internal/rules"
)

func newSuggestCmd() *cobra.Command {
	var (
		rulesFile     string
		batch         batchFlags
		probes        int
		perturbations int
		magnitude     float64
		simulate      bool
	)

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Derive candidate rule modifications from detected weaknesses",
		Long: `Suggest runs a batch analysis and proposes modifications for the
weaknesses it finds: buffer zones around unstable rules, default
decision routing for coverage gaps, threshold adjustments for
concentrated outcomes. With --simulate each suggestion is also
impact-tested against the same batch. Suggestions are emitted as
YAML compatible with the simulate command.`,
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

			engine := rules.NewEngine(rs)
			ex := executor.New(engine)
			ex.Workers = cfg.Workers
			if _, err := ex.ExecuteBatch(ctx, scenarios); err != nil {
				return err
			}

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
			coverage := scorer.ScoreCoverageGaps(records)
			concentration := scorer.ScoreDecisionConcentration(records)

			suggestions := repair.Suggest(reports, &coverage, &concentration, rs)
			slog.Info("suggestions derived",
				"count", len(suggestions),
				"unstable_scenarios", len(reports),
				"gap_rate", coverage.GapRate,
			)

			out := cmd.OutOrStdout()
			if len(suggestions) == 0 {
				fmt.Fprintln(out, "# no weaknesses crossed the suggestion thresholds")
				return nil
			}

			if simulate {
				for i, mod := range suggestions {
					impact, err := repair.SimulateImpact(ctx, mod, rs, scenarios)
					if err != nil {
						slog.Warn("suggestion could not be simulated", "index", i, "rule_id", mod.RuleID, "error", err)
						continue
					}
					fmt.Fprintf(out, "# [%s] %s\n", impact.Recommendation, impact.Summary)
					if err := printModification(out, mod); err != nil {
						return err
					}
				}
				return nil
			}

			encoded, err := yaml.Marshal(suggestions)
			if err != nil {
				return err
			}
			fmt.Fprint(out, string(encoded))
			return nil
		},
	}

	cmd.Flags().StringVar(&rulesFile, "rules", "", "rule set file (JSON or YAML)")
	cmd.MarkFlagRequired("rules")
	batch.register(cmd)
	cmd.Flags().IntVar(&probes, "probes", cfg.Probes, "scenarios to probe for instability (0 = all)")
	cmd.Flags().IntVar(&perturbations, "perturbations", cfg.Perturbations, "perturbations per probed scenario")
	cmd.Flags().Float64Var(&magnitude, "magnitude", cfg.Magnitude, "perturbation magnitude relative to feature range")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "impact-test each suggestion before printing it")
	return cmd
}

func printModification(out io.Writer, mod domain.Modification) error {
	encoded, err := yaml.Marshal([]domain.Modification{mod})
	if err != nil {
		return err
	}
	_, err = out.Write(encoded)
	return err
}

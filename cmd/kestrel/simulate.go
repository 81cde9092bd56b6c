package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repair"
	"github.com/opensource-finance/kestrel/internal/rules"
)

func newSimulateCmd() *cobra.Command {
	var (
		rulesFile string
		modsFile  string
		batch     batchFlags
		jsonOut   string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate rule modifications against a scenario batch",
		Long: `Simulate applies each modification from a YAML file to a sandboxed
clone of the rule set, runs the same scenario batch against both
versions, and reports decision shifts, risk delta and a
recommendation. The original rule set is never changed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rs, err := rules.Load(rulesFile)
			if err != nil {
				return err
			}
			mods, err := readModifications(modsFile)
			if err != nil {
				return err
			}
			scenarios, _, err := batch.load()
			if err != nil {
				return err
			}
			slog.Info("simulation starting",
				"modifications", len(mods),
				"scenarios", len(scenarios),
			)

			impacts := make([]*repair.Impact, 0, len(mods))
			for i, mod := range mods {
				impact, err := repair.SimulateImpact(ctx, mod, rs, scenarios)
				if err != nil {
					slog.Warn("modification could not be simulated", "index", i, "rule_id", mod.RuleID, "error", err)
					continue
				}
				impacts = append(impacts, impact)
			}

			if jsonOut != "" {
				return writeJSON(jsonOut, impacts)
			}
			out := cmd.OutOrStdout()
			for _, impact := range impacts {
				fmt.Fprintf(out, "[%s] %s %s: %s\n  %s (risk delta %+.3f)\n",
					impact.Recommendation,
					impact.Modification.Kind,
					impact.Modification.RuleID,
					impact.Modification.Description,
					impact.Summary,
					impact.RiskDelta,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rulesFile, "rules", "", "rule set file (JSON or YAML)")
	cmd.MarkFlagRequired("rules")
	cmd.Flags().StringVar(&modsFile, "modifications", "", "YAML file with a list of modifications")
	cmd.MarkFlagRequired("modifications")
	batch.register(cmd)
	cmd.Flags().StringVar(&jsonOut, "json", "", "write impacts as JSON to this path (- for stdout)")
	return cmd
}

func readModifications(path string) ([]domain.Modification, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading modifications %s: %w", path, err)
	}
	var mods []domain.Modification
	if err := yaml.Unmarshal(data, &mods); err != nil {
		return nil, fmt.Errorf("decoding modifications: %w", err)
	}
	if len(mods) == 0 {
		return nil, fmt.Errorf("no modifications in %s", path)
	}
	return mods, nil
}

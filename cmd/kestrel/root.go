package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/scenario"
)

// config carries the environment-driven settings shared by every
// subcommand. Values parsed from the environment become the flag
// defaults, so flags always win when both are set.
type config struct {
	Debug         bool    `env:"KESTREL_DEBUG" envDefault:"false"`
	Workers       int     `env:"KESTREL_WORKERS" envDefault:"1"`
	Seed          int64   `env:"KESTREL_SEED" envDefault:"42"`
	Count         int     `env:"KESTREL_SCENARIOS" envDefault:"1000"`
	Probes        int     `env:"KESTREL_PROBES" envDefault:"100"`
	Perturbations int     `env:"KESTREL_PERTURBATIONS" envDefault:"10"`
	Magnitude     float64 `env:"KESTREL_MAGNITUDE" envDefault:"0.05"`
}

var cfg config

// loadConfig fills cfg from the environment before any command or
// flag default is built.
func loadConfig() error {
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}
	return nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kestrel",
		Short: "Stress testing for deterministic decision rules",
		Long: `Kestrel executes a decision rule set against synthetic scenario
batches and reports where the rules are fragile: decision boundaries,
near-identical scenarios with contradictory outcomes, instability
under perturbation, and composite risk. Modifications can be
simulated in a sandbox before any rule changes ship.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logLevel := slog.LevelInfo
			if cfg.Debug {
				logLevel = slog.LevelDebug
			}
			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: logLevel,
			}))
			slog.SetDefault(logger)
			return nil
		},
	}

	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newSimulateCmd())
	root.AddCommand(newSuggestCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// batchFlags are the scenario-sourcing flags shared by analyze,
// simulate and suggest: either an explicit scenario file or a feature
// space to generate from.
type batchFlags struct {
	scenarioFile string
	spaceFile    string
	count        int
	strategy     string
}

func (f *batchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.scenarioFile, "scenarios", "", "JSON file with an array of scenarios")
	cmd.Flags().StringVar(&f.spaceFile, "space", "", "feature space YAML to generate scenarios from")
	cmd.Flags().IntVar(&f.count, "count", cfg.Count, "number of scenarios to generate")
	cmd.Flags().StringVar(&f.strategy, "strategy", "montecarlo", "generation strategy: montecarlo, normal, boundary, adversarial, random, grid, edge")
}

// load returns the scenario batch and, when one was used, the feature
// space it was generated from.
func (f *batchFlags) load() ([]domain.Scenario, *scenario.Space, error) {
	if f.scenarioFile != "" {
		scenarios, err := readScenarios(f.scenarioFile)
		return scenarios, nil, err
	}
	if f.spaceFile == "" {
		return nil, nil, fmt.Errorf("either --scenarios or --space is required")
	}

	space, err := scenario.LoadSpace(f.spaceFile)
	if err != nil {
		return nil, nil, err
	}
	gen := scenario.NewGenerator(space, cfg.Seed)

	var scenarios []domain.Scenario
	switch f.strategy {
	case "montecarlo":
		scenarios = gen.GenerateMonteCarlo(f.count)
	case "grid":
		// Resolution per axis, not total count.
		scenarios = gen.GenerateGrid(f.count)
	case "edge":
		scenarios = gen.GenerateEdgeCases(f.count)
	case "normal", "boundary", "adversarial", "random":
		scenarios = gen.Generate(f.count, scenario.Type(f.strategy))
	default:
		return nil, nil, fmt.Errorf("unknown strategy %q", f.strategy)
	}
	return scenarios, space, nil
}

func readScenarios(path string) ([]domain.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenarios %s: %w", path, err)
	}
	var scenarios []domain.Scenario
	if err := json.Unmarshal(data, &scenarios); err != nil {
		return nil, fmt.Errorf("decoding scenarios: %w", err)
	}
	return scenarios, nil
}

func writeJSON(path string, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if path == "" || path == "-" {
		_, err = fmt.Println(string(out))
		return err
	}
	return os.WriteFile(path, append(out, '\n'), 0o644)
}

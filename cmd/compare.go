package cmd

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/twin-sim/twin-sim/sim"
	"github.com/twin-sim/twin-sim/sim/publish"
	"github.com/twin-sim/twin-sim/sim/whatif"
)

var (
	compareSpec       specFlags
	comparePublishURL string        // gocloud pubsub topic URL receiving step snapshots of every run
	scenariosPath     string        // YAML list of scenarios
	queries           []string      // Free-text what-if questions
	stepBudget        int           // Caps simulated hours of every run
	runTimeout        time.Duration // Wall-clock bound of every run
)

// compareCmd runs a baseline and its what-if scenarios side by side
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare the baseline against what-if scenarios",
	Example: `  twin-sim compare --query "If rain increases 40%, how many more orders are late?"
  twin-sim compare --config twin.yaml --scenarios scenarios.yaml --step-budget 72`,
	Run: func(cmd *cobra.Command, args []string) {
		spec, err := resolveSpec(cmd, &compareSpec)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		scenarios, err := collectScenarios(scenariosPath, queries)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if len(scenarios) == 0 {
			logrus.Fatalf("No scenarios given; use --scenarios or --query")
		}

		ctx := cmd.Context()
		runner := whatif.Runner{StepBudget: stepBudget, Timeout: runTimeout}
		if comparePublishURL != "" {
			topic, err := publish.OpenTopic(ctx, comparePublishURL)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			defer shutdownTopic(topic)
			runner.Observers = func(runID uuid.UUID, label string) []sim.StepObserver {
				return []sim.StepObserver{publish.NewSnapshotPublisher(topic, runID, label)}
			}
		}

		report, err := runner.Compare(ctx, whatif.InputFromSpec(spec), scenarios...)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		report.Print(cmd.OutOrStdout())
	},
}

// collectScenarios merges the scenarios file with parsed queries, file first.
func collectScenarios(path string, queries []string) ([]whatif.Scenario, error) {
	var scenarios []whatif.Scenario
	if path != "" {
		loaded, err := whatif.LoadScenarios(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, loaded...)
	}
	for _, q := range queries {
		s, err := whatif.ParseQuery(q)
		if err != nil {
			return nil, err
		}
		logrus.Infof("Query %q parsed as %s x%.2f", q, s.Type, s.Multiplier)
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func init() {
	registerSpecFlags(compareCmd, &compareSpec)
	compareCmd.Flags().StringVar(&scenariosPath, "scenarios", "", "Path to a YAML list of scenarios")
	compareCmd.Flags().StringArrayVar(&queries, "query", nil, "What-if question, e.g. \"If rain increases 40%\" (repeatable)")
	compareCmd.Flags().IntVar(&stepBudget, "step-budget", 0, "Maximum simulated hours per run (0 = configured duration)")
	compareCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Wall-clock limit per run (0 = none)")
	compareCmd.Flags().StringVar(&comparePublishURL, "publish-url", "", "Pubsub topic URL receiving step snapshots of every run")

	rootCmd.AddCommand(compareCmd)
}

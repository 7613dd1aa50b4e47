package cmd

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gocloud.dev/pubsub"

	sim "github.com/twin-sim/twin-sim/sim"
	"github.com/twin-sim/twin-sim/sim/publish"
	"github.com/twin-sim/twin-sim/sim/trace"
)

// logEnvVar supplies the log level when --log is not given.
const logEnvVar = "TWINSIM_LOG"

// specFlags holds the network and seed flags of one command.
type specFlags struct {
	configPath string // TwinSpec YAML path (built-in network when empty)
	seed       int64  // Overrides the configured seed when set
	duration   int    // Overrides the configured duration (hours) when set
	traceLevel string // Overrides the configured trace level when set
}

var (
	logLevel string // Log verbosity level

	// CLI flags of the run command
	runSpec     specFlags
	publishURL  string // gocloud pubsub topic URL receiving step snapshots
	summaryOnly bool   // Skip the per-step table
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "twin-sim",
	Short: "Digital twin simulator for supply-chain networks",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(cmd)
	},
}

// runCmd executes one simulation of the configured network
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the digital twin simulation",
	Run: func(cmd *cobra.Command, args []string) {
		spec, err := resolveSpec(cmd, &runSpec)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		e, err := sim.NewEngine(spec.EngineConfig(), spec.Key())
		if err != nil {
			logrus.Fatalf("Invalid engine config: %v", err)
		}
		if err := e.Initialize(spec.Network); err != nil {
			logrus.Fatalf("Invalid network: %v", err)
		}

		ctx := cmd.Context()
		if publishURL != "" {
			topic, err := publish.OpenTopic(ctx, publishURL)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			defer shutdownTopic(topic)
			runID := uuid.New()
			e.AddObserver(publish.NewSnapshotPublisher(topic, runID, "run"))
			logrus.Infof("Publishing snapshots of run %s to %s", runID, publishURL)
		}

		startTime := time.Now()
		snaps, err := e.RunSimulation(ctx, spec.DurationHours, sim.NewEventSimulator(spec.EventConfig(), spec.Key()))
		if err != nil {
			logrus.Fatalf("Simulation failed after %d steps: %v", len(snaps), err)
		}

		out := cmd.OutOrStdout()
		if !summaryOnly {
			sim.PrintSnapshots(out, snaps)
		}
		e.State().Summary().Print(out)
		if tr := e.Trace(); tr != nil {
			trace.Summarize(tr).Print(out)
		}
		logrus.Infof("Simulation complete in %s.", time.Since(startTime).Round(time.Millisecond))
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogging applies --log, falling back to TWINSIM_LOG from the
// environment or a .env file in the working directory.
func setupLogging(cmd *cobra.Command) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.Warnf("Ignoring unreadable .env: %v", err)
	}
	level := logLevel
	if !cmd.Flags().Changed("log") {
		if env := os.Getenv(logEnvVar); env != "" {
			level = env
		}
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", level)
	}
	logrus.SetLevel(parsed)
}

// resolveSpec loads the TwinSpec and applies the flags the user set.
func resolveSpec(cmd *cobra.Command, f *specFlags) (*sim.TwinSpec, error) {
	spec, err := loadTwinSpec(f.configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("seed") {
		spec.Seed = f.seed
	}
	if flags.Changed("duration") {
		spec.DurationHours = f.duration
	}
	if flags.Changed("trace-level") {
		spec.Engine.TraceLevel = f.traceLevel
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

func shutdownTopic(topic *pubsub.Topic) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := topic.Shutdown(ctx); err != nil {
		logrus.Warnf("Topic shutdown: %v", err)
	}
}

// registerSpecFlags adds the flags shared by run and compare.
func registerSpecFlags(cmd *cobra.Command, f *specFlags) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "Path to a twin YAML file (built-in network when empty)")
	cmd.Flags().Int64Var(&f.seed, "seed", 42, "Seed for event generation (overrides --config)")
	cmd.Flags().IntVar(&f.duration, "duration", 168, "Simulated hours (overrides --config)")
	cmd.Flags().StringVar(&f.traceLevel, "trace-level", "none", "Decision trace level: none, decisions (overrides --config)")
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic); TWINSIM_LOG when unset")

	registerSpecFlags(runCmd, &runSpec)
	runCmd.Flags().StringVar(&publishURL, "publish-url", "", "Pubsub topic URL receiving step snapshots, e.g. mem://twin-steps")
	runCmd.Flags().BoolVar(&summaryOnly, "summary-only", false, "Print only the final summary")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}

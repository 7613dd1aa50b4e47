package whatif

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/twin-sim/twin-sim/sim"
	"github.com/twin-sim/twin-sim/sim/trace"
)

// RunResult bundles the outputs of one simulation run.
type RunResult struct {
	Label    string
	Summary  sim.StateSummary
	Steps    int
	Trace    *trace.TraceSummary // nil if tracing is disabled
	WallTime time.Duration
}

// ScenarioResult is one scenario's run and its diff against the baseline.
type ScenarioResult struct {
	Scenario        Scenario
	Result          RunResult
	Comparison      Comparison
	Recommendations []string
}

// Report is the outcome of Runner.Compare.
type Report struct {
	RunID     uuid.UUID
	Baseline  RunResult
	Scenarios []ScenarioResult
}

// Runner executes a baseline and its scenarios as independent parallel runs.
type Runner struct {
	// StepBudget caps the simulated hours of every run (0 = the input's duration).
	StepBudget int
	// Timeout bounds the wall-clock time of every run (0 = none).
	Timeout time.Duration
	// Observers, when set, returns extra step observers for the run with the
	// given label.
	Observers func(runID uuid.UUID, label string) []sim.StepObserver
}

// Run executes a single simulation built from in.
func (r Runner) Run(ctx context.Context, label string, in Input) (RunResult, error) {
	return r.run(ctx, uuid.Nil, label, in)
}

func (r Runner) run(ctx context.Context, runID uuid.UUID, label string, in Input) (RunResult, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	hours := in.DurationHours
	if r.StepBudget > 0 && r.StepBudget < hours {
		hours = r.StepBudget
	}

	start := time.Now()
	e, err := sim.NewEngine(in.Engine, in.Key)
	if err != nil {
		return RunResult{}, fmt.Errorf("%s: %w", label, err)
	}
	if err := e.Initialize(in.Network); err != nil {
		return RunResult{}, fmt.Errorf("%s: %w", label, err)
	}
	if r.Observers != nil {
		for _, o := range r.Observers(runID, label) {
			e.AddObserver(o)
		}
	}
	if err := in.Events.Validate(); err != nil {
		return RunResult{}, fmt.Errorf("%s: events: %w", label, err)
	}
	snaps, err := e.RunSimulation(ctx, hours, sim.NewEventSimulator(in.Events, in.Key))
	if err != nil {
		return RunResult{}, fmt.Errorf("%s: %w", label, err)
	}

	res := RunResult{
		Label:    label,
		Summary:  e.State().Summary(),
		Steps:    len(snaps),
		WallTime: time.Since(start),
	}
	if tr := e.Trace(); tr != nil {
		res.Trace = trace.Summarize(tr)
	}
	return res, nil
}

// Compare runs base and every scenario concurrently, each on a perturbed
// copy of base with the same seed, and diffs each scenario's final summary
// against the baseline. The first failing run cancels the others.
func (r Runner) Compare(ctx context.Context, base Input, scenarios ...Scenario) (*Report, error) {
	inputs := make([]Input, len(scenarios))
	for i, s := range scenarios {
		in, err := s.Apply(base)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", s.Label(), err)
		}
		inputs[i] = in
	}

	report := &Report{RunID: uuid.New(), Scenarios: make([]ScenarioResult, len(scenarios))}
	logrus.Infof("What-if run %s: baseline plus %d scenarios", report.RunID, len(scenarios))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := r.run(ctx, report.RunID, "baseline", base.Clone())
		report.Baseline = res
		return err
	})
	for i, s := range scenarios {
		g.Go(func() error {
			res, err := r.run(ctx, report.RunID, s.Label(), inputs[i])
			report.Scenarios[i] = ScenarioResult{Scenario: s, Result: res}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("what-if run %s: %w", report.RunID, err)
	}

	for i := range report.Scenarios {
		sr := &report.Scenarios[i]
		sr.Comparison = Compare(report.Baseline.Summary, sr.Result.Summary)
		sr.Recommendations = Recommendations(sr.Comparison)
	}
	return report, nil
}

// Print displays the report as one table per scenario.
func (rep *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "=== What-if Report %s ===\n", rep.RunID)
	fmt.Fprintf(w, "Baseline: %d steps, %d orders, on-time %.2f%%\n",
		rep.Baseline.Steps, rep.Baseline.Summary.TotalOrders, rep.Baseline.Summary.OnTimeRate*100)
	for _, sr := range rep.Scenarios {
		fmt.Fprintf(w, "\n--- %s ---\n", sr.Scenario.Label())
		fmt.Fprintf(w, "%-18s %14s %14s %14s %10s\n", "metric", "baseline", "scenario", "change", "change %")
		for _, name := range MetricNames {
			ch := sr.Comparison[name]
			fmt.Fprintf(w, "%-18s %14.2f %14.2f %14.2f %9.1f%%\n", name, ch.Baseline, ch.Scenario, ch.Change, ch.ChangePct)
		}
		for _, rec := range sr.Recommendations {
			fmt.Fprintf(w, "* %s\n", rec)
		}
	}
}

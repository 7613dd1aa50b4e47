package sim

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("github.com/twin-sim/twin-sim/sim")
var meter = otel.Meter("github.com/twin-sim/twin-sim/sim")

const (
	// seedAttribute associates each record with the run's SimulationKey, so
	// a baseline and its what-if counterparts can be told apart or grouped.
	seedAttribute = "twin.seed"
)

var (
	// stepsCounter counts simulated hours across every engine in the process.
	stepsCounter metric.Int64Counter
	// ordersCreated counts order events turned into orders.
	ordersCreated metric.Int64Counter
	// ordersStockouts counts fulfillment attempts that found no stock.
	ordersStockouts metric.Int64Counter
	// stepDuration measures the wall-clock time of one SimulateStep.
	stepDuration metric.Float64Histogram
)

func init() {
	var err error
	stepsCounter, err = meter.Int64Counter(
		"twin.steps",
		metric.WithDescription("The number of simulated hours stepped."),
	)
	if err != nil {
		panic("sim: failed to init 'twin.steps' instrument")
	}

	ordersCreated, err = meter.Int64Counter(
		"twin.orders.created",
		metric.WithDescription("The number of orders created from order events."),
	)
	if err != nil {
		panic("sim: failed to init 'twin.orders.created' instrument")
	}

	ordersStockouts, err = meter.Int64Counter(
		"twin.orders.stockouts",
		metric.WithDescription("The number of fulfillment attempts that found no operating warehouse with enough stock."),
	)
	if err != nil {
		panic("sim: failed to init 'twin.orders.stockouts' instrument")
	}

	stepDuration, err = meter.Float64Histogram(
		"twin.step.duration",
		metric.WithDescription("The wall-clock duration of a single simulated hour, including event dispatch and order updates."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic("sim: failed to init 'twin.step.duration' instrument")
	}
}

// stepMeasurement holds the per-step counts reported by measureStep.
type stepMeasurement struct {
	created   int
	stockouts int
	elapsed   time.Duration
}

// measureStep records one step's instruments, labeled with the run's seed.
func measureStep(ctx context.Context, key SimulationKey, m stepMeasurement) {
	attrs := metric.WithAttributeSet(attribute.NewSet(attribute.Int64(seedAttribute, int64(key))))
	stepsCounter.Add(ctx, 1, attrs)
	if m.created > 0 {
		ordersCreated.Add(ctx, int64(m.created), attrs)
	}
	if m.stockouts > 0 {
		ordersStockouts.Add(ctx, int64(m.stockouts), attrs)
	}
	// Floating-point division keeps sub-millisecond precision.
	stepDuration.Record(ctx, float64(m.elapsed)/float64(time.Millisecond), attrs)
}

package whatif

import (
	"fmt"

	"github.com/twin-sim/twin-sim/sim"
)

// Metric names compared between a baseline and a scenario, in report order.
const (
	MetricTotalOrders     = "total_orders"
	MetricDeliveredOrders = "delivered_orders"
	MetricLateOrders      = "late_orders"
	MetricOnTimeRate      = "on_time_rate"
	MetricTotalRevenue    = "total_revenue"
	MetricTotalCost       = "total_cost"
	MetricInventoryValue  = "inventory_value"
)

// MetricNames lists every compared metric in report order.
var MetricNames = []string{
	MetricTotalOrders,
	MetricDeliveredOrders,
	MetricLateOrders,
	MetricOnTimeRate,
	MetricTotalRevenue,
	MetricTotalCost,
	MetricInventoryValue,
}

// Change is the difference of one metric between two runs.
type Change struct {
	Baseline  float64 `json:"baseline"`
	Scenario  float64 `json:"scenario"`
	Change    float64 `json:"change"`
	ChangePct float64 `json:"change_pct"` // 0 when the baseline is 0
}

// Comparison maps a metric name to its Change.
type Comparison map[string]Change

// metricValues flattens the compared metrics of a final summary.
func metricValues(s sim.StateSummary) map[string]float64 {
	return map[string]float64{
		MetricTotalOrders:     float64(s.TotalOrders),
		MetricDeliveredOrders: float64(s.DeliveredOrders),
		MetricLateOrders:      float64(s.LateOrders),
		MetricOnTimeRate:      s.OnTimeRate,
		MetricTotalRevenue:    s.Metrics.TotalRevenue.InexactFloat64(),
		MetricTotalCost:       s.Metrics.TotalCost.InexactFloat64(),
		MetricInventoryValue:  s.Metrics.InventoryValue.InexactFloat64(),
	}
}

// Compare diffs two final summaries metric by metric.
func Compare(baseline, scenario sim.StateSummary) Comparison {
	b, s := metricValues(baseline), metricValues(scenario)
	c := make(Comparison, len(MetricNames))
	for _, name := range MetricNames {
		c[name] = newChange(b[name], s[name])
	}
	return c
}

func newChange(baseline, scenario float64) Change {
	ch := Change{Baseline: baseline, Scenario: scenario, Change: scenario - baseline}
	if baseline != 0 {
		ch.ChangePct = (scenario - baseline) / baseline * 100
	}
	return ch
}

const (
	onTimeThresholdPct    = 5.0
	costThresholdPct      = 10.0
	inventoryThresholdPct = 20.0
)

// Recommendations turns significant changes into advice: on-time rate
// beyond +/-5%, total cost beyond +/-10% and inventory value beyond +/-20%.
func Recommendations(c Comparison) []string {
	var recs []string
	if ch, ok := c[MetricOnTimeRate]; ok {
		switch {
		case ch.ChangePct > onTimeThresholdPct:
			recs = append(recs, fmt.Sprintf("On-time delivery rate improved by %.1f%%. Scenario shows positive impact on delivery performance.", ch.ChangePct))
		case ch.ChangePct < -onTimeThresholdPct:
			recs = append(recs, fmt.Sprintf("On-time delivery rate decreased by %.1f%%. Consider alternative strategies to maintain delivery performance.", -ch.ChangePct))
		}
	}
	if ch, ok := c[MetricTotalCost]; ok {
		switch {
		case ch.ChangePct > costThresholdPct:
			recs = append(recs, fmt.Sprintf("Total cost increased by %.1f%%. Evaluate cost-benefit trade-off.", ch.ChangePct))
		case ch.ChangePct < -costThresholdPct:
			recs = append(recs, fmt.Sprintf("Total cost decreased by %.1f%%. Scenario shows cost-saving potential.", -ch.ChangePct))
		}
	}
	if ch, ok := c[MetricInventoryValue]; ok {
		switch {
		case ch.ChangePct > inventoryThresholdPct:
			recs = append(recs, fmt.Sprintf("Inventory value increased by %.1f%%. Monitor for overstocking risks.", ch.ChangePct))
		case ch.ChangePct < -inventoryThresholdPct:
			recs = append(recs, fmt.Sprintf("Inventory value decreased by %.1f%%. Monitor for stockout risks.", -ch.ChangePct))
		}
	}
	return recs
}

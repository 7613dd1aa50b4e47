package trace

import (
	"fmt"
	"io"
	"maps"
	"slices"
)

// TraceSummary aggregates statistics from a DispatchTrace.
type TraceSummary struct {
	TotalDecisions     int
	FulfilledCount     int
	StockoutCount      int
	CancelledCount     int
	RetryCount         int
	NoRouteCount       int            // fulfilled without a matching route
	StockoutsByProduct map[string]int // product ID → count of stockouts
	WarehouseShare     map[string]int // warehouse ID → count of fulfilled orders
}

// Summarize computes aggregate statistics from a DispatchTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(dt *DispatchTrace) *TraceSummary {
	summary := &TraceSummary{
		StockoutsByProduct: make(map[string]int),
		WarehouseShare:     make(map[string]int),
	}
	if dt == nil {
		return summary
	}

	summary.TotalDecisions = len(dt.Dispatches)
	for _, d := range dt.Dispatches {
		if d.Retry {
			summary.RetryCount++
		}
		switch d.Outcome {
		case OutcomeFulfilled:
			summary.FulfilledCount++
			summary.WarehouseShare[d.WarehouseID]++
			if d.RouteID == "" {
				summary.NoRouteCount++
			}
		case OutcomeStockout:
			summary.StockoutCount++
			summary.StockoutsByProduct[d.ProductID]++
		case OutcomeCancelled:
			summary.CancelledCount++
		}
	}

	return summary
}

// Print displays the summary, listing stockouts and warehouse shares in key order.
func (s *TraceSummary) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Dispatch Trace ===")
	fmt.Fprintf(w, "Decisions            : %d (retries %d)\n", s.TotalDecisions, s.RetryCount)
	fmt.Fprintf(w, "Fulfilled / Stockout : %d / %d\n", s.FulfilledCount, s.StockoutCount)
	fmt.Fprintf(w, "Cancelled            : %d\n", s.CancelledCount)
	fmt.Fprintf(w, "Fulfilled w/o route  : %d\n", s.NoRouteCount)
	for _, id := range slices.Sorted(maps.Keys(s.WarehouseShare)) {
		fmt.Fprintf(w, "  warehouse %-10s: %d\n", id, s.WarehouseShare[id])
	}
	for _, id := range slices.Sorted(maps.Keys(s.StockoutsByProduct)) {
		fmt.Fprintf(w, "  stockout  %-10s: %d\n", id, s.StockoutsByProduct[id])
	}
}

// Tracks simulation-wide running counters such as orders, deliveries,
// lateness, revenue, cost and inventory value.

package sim

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

// Metrics aggregates running counters of a simulation. Every field is
// non-negative.
type Metrics struct {
	TotalOrders     int `json:"total_orders"`
	DeliveredOrders int `json:"delivered_orders"`
	LateOrders      int `json:"late_orders"`
	CancelledOrders int `json:"cancelled_orders"`
	// Stockouts counts fulfillment attempts that found no operating
	// warehouse with enough stock (retries included).
	Stockouts int `json:"stockouts"`
	// IgnoredEvents counts events that referenced an unknown id or carried
	// unusable fields.
	IgnoredEvents int `json:"ignored_events"`

	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	InventoryValue decimal.Decimal `json:"inventory_value"`
}

// OnTimeRate is (delivered - late) / max(delivered, 1).
func (m Metrics) OnTimeRate() float64 {
	return float64(m.DeliveredOrders-m.LateOrders) / float64(max(m.DeliveredOrders, 1))
}

// StateSummary is a read-only snapshot of the aggregate.
type StateSummary struct {
	Timestamp            string  `json:"timestamp"`
	WarehousesCount      int     `json:"warehouses_count"`
	TransportRoutesCount int     `json:"transport_routes_count"`
	ActiveOrders         int     `json:"active_orders"`
	PendingOrders        int     `json:"pending_orders"`
	InTransitOrders      int     `json:"in_transit_orders"`
	DelayedOrders        int     `json:"delayed_orders"`
	TotalOrders          int     `json:"total_orders"`
	DeliveredOrders      int     `json:"delivered_orders"`
	LateOrders           int     `json:"late_orders"`
	OnTimeRate           float64 `json:"on_time_rate"`
	Metrics              Metrics `json:"metrics"`
}

// StepSnapshot is appended to the run history after every step.
type StepSnapshot struct {
	Step            int          `json:"step"`
	Timestamp       string       `json:"timestamp"`
	Summary         StateSummary `json:"state_summary"`
	EventsProcessed int          `json:"events_processed"`
}

// Print displays the summary in a human-readable block.
func (s StateSummary) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Summary ===")
	fmt.Fprintf(w, "Timestamp            : %s\n", s.Timestamp)
	fmt.Fprintf(w, "Warehouses / Routes  : %d / %d\n", s.WarehousesCount, s.TransportRoutesCount)
	fmt.Fprintf(w, "Active Orders        : %d (pending %d, in transit %d, delayed %d)\n",
		s.ActiveOrders, s.PendingOrders, s.InTransitOrders, s.DelayedOrders)
	fmt.Fprintf(w, "Total Orders         : %d\n", s.TotalOrders)
	fmt.Fprintf(w, "Delivered / Late     : %d / %d\n", s.DeliveredOrders, s.LateOrders)
	fmt.Fprintf(w, "Cancelled Orders     : %d\n", s.Metrics.CancelledOrders)
	fmt.Fprintf(w, "Stockouts            : %d\n", s.Metrics.Stockouts)
	fmt.Fprintf(w, "On-time Rate         : %.2f%%\n", s.OnTimeRate*100)
	fmt.Fprintf(w, "Total Revenue        : %s\n", s.Metrics.TotalRevenue.StringFixed(2))
	fmt.Fprintf(w, "Total Cost           : %s\n", s.Metrics.TotalCost.StringFixed(2))
	fmt.Fprintf(w, "Inventory Value      : %s\n", s.Metrics.InventoryValue.StringFixed(2))
}

// PrintSnapshots writes one line per snapshot.
func PrintSnapshots(w io.Writer, snaps []StepSnapshot) {
	fmt.Fprintf(w, "%6s  %-20s %6s %8s %9s %8s %7s %12s\n", "step", "timestamp", "events", "orders", "delivered", "late", "active", "revenue")
	for _, s := range snaps {
		fmt.Fprintf(w, "%6d  %-20s %6d %8d %9d %8d %7d %12s\n",
			s.Step, s.Timestamp, s.EventsProcessed, s.Summary.TotalOrders, s.Summary.DeliveredOrders,
			s.Summary.LateOrders, s.Summary.ActiveOrders, s.Summary.Metrics.TotalRevenue.StringFixed(2))
	}
}

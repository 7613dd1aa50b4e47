// Package trace provides dispatch-decision recording for fulfillment analysis.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// Outcome classifies a fulfillment decision.
type Outcome string

const (
	// OutcomeFulfilled means stock was reserved and the order left a warehouse.
	OutcomeFulfilled Outcome = "fulfilled"
	// OutcomeStockout means no operating warehouse held enough stock.
	OutcomeStockout Outcome = "stockout"
	// OutcomeCancelled means a pending order timed out.
	OutcomeCancelled Outcome = "cancelled"
)

// DispatchRecord captures one fulfillment attempt for an order.
type DispatchRecord struct {
	OrderID     string
	ProductID   string
	Quantity    int
	Step        int
	Outcome     Outcome
	WarehouseID string // set when fulfilled
	RouteID     string // empty when fulfilled without a matching route
	Retry       bool   // true when the attempt retried a pending order
}

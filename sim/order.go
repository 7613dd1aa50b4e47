// Defines the Order struct that models one customer order in the simulation.
// Tracks creation, expected and actual delivery, source warehouse and route.

package sim

import (
	"fmt"
	"time"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusInTransit OrderStatus = "in_transit"
	StatusDelivered OrderStatus = "delivered"
	StatusDelayed   OrderStatus = "delayed"
	StatusCancelled OrderStatus = "cancelled"
)

// IsTerminal reports whether the status ends an order's lifecycle.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Order models a single order's lifecycle:
//
//	pending -> in_transit -> delivered
//	in_transit -> delayed -> delivered   (route degraded after dispatch)
//	pending -> cancelled                 (pending timeout)
type Order struct {
	ID          string
	CustomerID  string
	ProductID   string
	Quantity    int
	Destination string

	OrderDate            time.Time
	ExpectedDeliveryDate time.Time
	ActualDeliveryDate   *time.Time // nil until delivered
	// RevisedDeliveryDate is set when the order becomes delayed.
	RevisedDeliveryDate *time.Time
	DispatchedAt        *time.Time

	Status          OrderStatus
	SourceWarehouse string // empty until inventory is reserved
	TransportRoute  string // empty if no route matched
}

// IsLate reports whether the order missed its expected delivery date. A
// delivered order is late if it was delivered after the expected date; an
// undelivered order is late once ref has passed the expected date.
func (o *Order) IsLate(ref time.Time) bool {
	if o.ActualDeliveryDate != nil {
		return o.ActualDeliveryDate.After(o.ExpectedDeliveryDate)
	}
	return ref.After(o.ExpectedDeliveryDate)
}

func (o *Order) clone() *Order {
	cp := *o
	cp.ActualDeliveryDate = cloneTime(o.ActualDeliveryDate)
	cp.RevisedDeliveryDate = cloneTime(o.RevisedDeliveryDate)
	cp.DispatchedAt = cloneTime(o.DispatchedAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// This method returns a human-readable string representation of an Order.
func (o Order) String() string {
	return fmt.Sprintf("Order: (ID: %s, Product: %s, Quantity: %d, Status: %s)", o.ID, o.ProductID, o.Quantity, o.Status)
}

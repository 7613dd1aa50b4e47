package sim

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultStartTime is the clock origin used when EngineConfig.StartTime is zero.
// A fixed origin keeps snapshot sequences reproducible across runs.
var DefaultStartTime = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// State is the aggregate root of the digital twin. It exclusively owns every
// warehouse, route and order; accessors hand out copies.
//
// Thread-safety: NOT thread-safe. Owned by a single Engine.
type State struct {
	Timestamp time.Time
	Metrics   Metrics

	start time.Time

	warehouses   map[string]*Warehouse
	warehouseIDs []string // insertion order, drives first-match scans
	routes       map[string]*Route
	routeIDs     []string

	orders       map[string]*Order // active orders
	orderIDs     []string          // active orders in creation order
	history      []*Order          // append-only terminal orders
	historyIndex map[string]int    // order id -> position in history

	weather map[string]Weather

	surges  []demandSurge
	outages map[string]time.Time // warehouse id -> restore time
}

type demandSurge struct {
	multiplier float64
	until      time.Time
}

// NewState creates an empty aggregate whose clock starts at start.
func NewState(start time.Time) *State {
	s := &State{start: start}
	s.Reset()
	return s
}

// Reset clears every collection and counter and rewinds the clock to the
// initialization time.
func (s *State) Reset() {
	s.Timestamp = s.start
	s.Metrics = Metrics{}
	s.warehouses = make(map[string]*Warehouse)
	s.warehouseIDs = nil
	s.routes = make(map[string]*Route)
	s.routeIDs = nil
	s.orders = make(map[string]*Order)
	s.orderIDs = nil
	s.history = nil
	s.historyIndex = make(map[string]int)
	s.weather = make(map[string]Weather)
	s.surges = nil
	s.outages = make(map[string]time.Time)
}

// AddWarehouse inserts w. Ids are unique; a second insert with the same id
// is rejected with ErrDuplicateID.
func (s *State) AddWarehouse(w *Warehouse) error {
	if _, exists := s.warehouses[w.ID]; exists {
		return fmt.Errorf("warehouse %q: %w", w.ID, ErrDuplicateID)
	}
	s.warehouses[w.ID] = w
	s.warehouseIDs = append(s.warehouseIDs, w.ID)
	return nil
}

// AddRoute inserts r. Ids are unique; a second insert with the same id is
// rejected with ErrDuplicateID.
func (s *State) AddRoute(r *Route) error {
	if _, exists := s.routes[r.ID]; exists {
		return fmt.Errorf("route %q: %w", r.ID, ErrDuplicateID)
	}
	s.routes[r.ID] = r
	s.routeIDs = append(s.routeIDs, r.ID)
	return nil
}

// AddOrder inserts o into the active set and counts it.
func (s *State) AddOrder(o *Order) {
	s.orders[o.ID] = o
	s.orderIDs = append(s.orderIDs, o.ID)
	s.Metrics.TotalOrders++
}

// UpdateWeather stores the reading for location and fans it out to every
// route whose origin or destination is location.
func (s *State) UpdateWeather(location string, w Weather) {
	s.weather[location] = w
	for _, id := range s.routeIDs {
		if r := s.routes[id]; r.Touches(location) {
			r.SetWeather(w)
		}
	}
}

// UpdateOrderStatus moves order orderID to status. On delivered it records
// deliveredAt as the actual delivery date, counts the delivery and, if the
// order was late, the lateness. Terminal statuses archive the order. It
// reports false (and changes nothing) for an unknown order id.
func (s *State) UpdateOrderStatus(orderID string, status OrderStatus, deliveredAt time.Time) bool {
	o, ok := s.orders[orderID]
	if !ok {
		return false
	}
	o.Status = status

	switch status {
	case StatusDelivered:
		at := deliveredAt
		o.ActualDeliveryDate = &at
		s.Metrics.DeliveredOrders++
		if o.IsLate(deliveredAt) {
			s.Metrics.LateOrders++
		}
	case StatusCancelled:
		s.Metrics.CancelledOrders++
	}

	if status.IsTerminal() {
		delete(s.orders, orderID)
		s.orderIDs = slices.DeleteFunc(s.orderIDs, func(id string) bool { return id == orderID })
		s.historyIndex[orderID] = len(s.history)
		s.history = append(s.history, o)
	}
	return true
}

// Summary returns a read-only snapshot of the aggregate.
func (s *State) Summary() StateSummary {
	sum := StateSummary{
		Timestamp:            s.Timestamp.Format(time.RFC3339),
		WarehousesCount:      len(s.warehouses),
		TransportRoutesCount: len(s.routes),
		ActiveOrders:         len(s.orders),
		TotalOrders:          s.Metrics.TotalOrders,
		DeliveredOrders:      s.Metrics.DeliveredOrders,
		LateOrders:           s.Metrics.LateOrders,
		OnTimeRate:           s.Metrics.OnTimeRate(),
		Metrics:              s.Metrics,
	}
	for _, o := range s.orders {
		switch o.Status {
		case StatusPending:
			sum.PendingOrders++
		case StatusInTransit:
			sum.InTransitOrders++
		case StatusDelayed:
			sum.DelayedOrders++
		}
	}
	return sum
}

// Warehouse returns a copy of warehouse id.
func (s *State) Warehouse(id string) (Warehouse, bool) {
	w, ok := s.warehouses[id]
	if !ok {
		return Warehouse{}, false
	}
	return *w.clone(), true
}

// Route returns a copy of route id.
func (s *State) Route(id string) (Route, bool) {
	r, ok := s.routes[id]
	if !ok {
		return Route{}, false
	}
	return *r.clone(), true
}

// Order returns a copy of order id, looking in the active set first and then
// in the history.
func (s *State) Order(id string) (Order, bool) {
	if o, ok := s.orders[id]; ok {
		return *o.clone(), true
	}
	if i, ok := s.historyIndex[id]; ok {
		return *s.history[i].clone(), true
	}
	return Order{}, false
}

// HasOrder reports whether id names an active or archived order.
func (s *State) HasOrder(id string) bool {
	if _, ok := s.orders[id]; ok {
		return true
	}
	_, ok := s.historyIndex[id]
	return ok
}

// IsActive reports whether order id is in the active set.
func (s *State) IsActive(id string) bool {
	_, ok := s.orders[id]
	return ok
}

// WarehouseIDs returns warehouse ids in insertion order.
func (s *State) WarehouseIDs() []string { return slices.Clone(s.warehouseIDs) }

// RouteIDs returns route ids in insertion order.
func (s *State) RouteIDs() []string { return slices.Clone(s.routeIDs) }

// ActiveOrderIDs returns active order ids in creation order.
func (s *State) ActiveOrderIDs() []string { return slices.Clone(s.orderIDs) }

// History returns copies of the archived orders in archival order.
func (s *State) History() []Order {
	out := make([]Order, len(s.history))
	for i, o := range s.history {
		out[i] = *o.clone()
	}
	return out
}

// WeatherLocations returns the locations with a stored reading, sorted.
func (s *State) WeatherLocations() []string {
	return slices.Sorted(maps.Keys(s.weather))
}

// WeatherAt returns the reading stored for location.
func (s *State) WeatherAt(location string) (Weather, bool) {
	w, ok := s.weather[location]
	return w, ok
}

// DemandMultiplier is the product of every demand surge active at the
// current clock; 1 when none is active.
func (s *State) DemandMultiplier() float64 {
	m := 1.0
	for _, sg := range s.surges {
		if s.Timestamp.Before(sg.until) {
			m *= sg.multiplier
		}
	}
	return m
}

func (s *State) addSurge(multiplier float64, d time.Duration) {
	s.surges = append(s.surges, demandSurge{multiplier: multiplier, until: s.Timestamp.Add(d)})
}

// expireSurges drops surges that ended at or before the current clock.
func (s *State) expireSurges() {
	s.surges = slices.DeleteFunc(s.surges, func(sg demandSurge) bool {
		return !s.Timestamp.Before(sg.until)
	})
}

// inventoryValue sums quantity * unit value across every warehouse.
func (s *State) inventoryValue(unitValue func(productID string) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, id := range s.warehouseIDs {
		w := s.warehouses[id]
		for _, pid := range slices.Sorted(maps.Keys(w.inventory)) {
			total = total.Add(unitValue(pid).Mul(decimal.NewFromInt(int64(w.inventory[pid]))))
		}
	}
	return total
}

package sim

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	simtrace "github.com/twin-sim/twin-sim/sim/trace"
)

// Phase is the lifecycle state of an Engine.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseInitialized
	PhaseRunning
	PhaseFinished
)

// This method returns a human-readable string representation of a Phase.
func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseInitialized:
		return "initialized"
	case PhaseRunning:
		return "running"
	case PhaseFinished:
		return "finished"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// StepObserver is notified with every snapshot an Engine appends to its
// history. A non-nil error aborts the step loop of RunSimulation.
type StepObserver interface {
	ObserveStep(ctx context.Context, snap StepSnapshot) error
}

// StepObserverFunc adapts a function to StepObserver.
type StepObserverFunc func(ctx context.Context, snap StepSnapshot) error

// ObserveStep calls f.
func (f StepObserverFunc) ObserveStep(ctx context.Context, snap StepSnapshot) error {
	return f(ctx, snap)
}

// Engine is the control loop of the digital twin. It owns one State
// exclusively, advances its clock one hour per step, dispatches events to
// state mutators and records a snapshot per step.
//
// Lifecycle: uninitialized -> initialized -> running -> finished. Reset
// returns to uninitialized.
//
// Thread-safety: NOT thread-safe. Parallel what-if runs use one Engine each.
type Engine struct {
	cfg       EngineConfig
	key       SimulationKey
	phase     Phase
	state     *State
	history   []StepSnapshot
	step      int
	orderSeq  int
	trace     *simtrace.DispatchTrace
	observers []StepObserver

	// per-step counters reported to telemetry
	created   int
	stockouts int
}

// NewEngine creates an uninitialized engine. The key seeds the default
// EventSimulator used when RunSimulation is given no generator.
func NewEngine(cfg EngineConfig, key SimulationKey) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	e := &Engine{cfg: cfg, key: key}
	e.Reset()
	return e, nil
}

// AddObserver registers o for every subsequent step.
func (e *Engine) AddObserver(o StepObserver) {
	e.observers = append(e.observers, o)
}

// Phase returns the current lifecycle phase.
func (e *Engine) Phase() Phase { return e.phase }

// Config returns the effective configuration, defaults applied.
func (e *Engine) Config() EngineConfig { return e.cfg }

// Key returns the engine's SimulationKey.
func (e *Engine) Key() SimulationKey { return e.key }

// State returns the aggregate owned by the engine. Callers read it through
// its accessors, which return copies.
func (e *Engine) State() *State { return e.state }

// History returns every snapshot recorded since the last Reset.
func (e *Engine) History() []StepSnapshot { return slices.Clone(e.history) }

// Trace returns the dispatch trace, or nil when tracing is disabled.
func (e *Engine) Trace() *simtrace.DispatchTrace { return e.trace }

// Reset clears the state, the history and the trace, and returns the engine
// to the uninitialized phase.
func (e *Engine) Reset() {
	e.state = NewState(e.cfg.StartTime)
	e.history = nil
	e.step = 0
	e.orderSeq = 0
	e.trace = nil
	if e.cfg.Trace.Enabled() {
		e.trace = simtrace.NewDispatchTrace(e.cfg.Trace)
	}
	e.phase = PhaseUninitialized
}

// Initialize builds the state from net. The network is validated before any
// mutation, so on error the engine stays uninitialized and untouched.
func (e *Engine) Initialize(net Network) error {
	if e.phase != PhaseUninitialized {
		return fmt.Errorf("initialize in phase %s: %w", e.phase, ErrAlreadyInitialized)
	}
	if err := net.Validate(); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	state := NewState(e.cfg.StartTime)
	for _, wc := range net.Warehouses {
		w := NewWarehouse(wc.ID, wc.Location, wc.effectiveCapacity())
		w.Operating = wc.operating()
		for pid, q := range wc.Inventory {
			w.AddInventory(pid, q)
		}
		if err := state.AddWarehouse(w); err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
	}
	for _, rc := range net.Routes {
		r := NewRoute(rc.ID, rc.Origin, rc.Destination, rc.DistanceKm, rc.Weather)
		r.SetCongestion(rc.Congestion)
		if err := state.AddRoute(r); err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
	}
	for _, loc := range slices.Sorted(maps.Keys(net.InitialWeather)) {
		state.UpdateWeather(loc, net.InitialWeather[loc])
	}
	state.Metrics.InventoryValue = state.inventoryValue(e.cfg.unitValue)

	e.state = state
	e.phase = PhaseInitialized
	logrus.Infof("Initialized digital twin with %d warehouses, %d routes, %d weather locations",
		len(net.Warehouses), len(net.Routes), len(net.InitialWeather))
	return nil
}

// SimulateStep advances the clock by one hour, dispatches events, moves
// in-transit orders forward, recomputes the inventory value and appends a
// snapshot to the history. Observers are notified before it returns.
func (e *Engine) SimulateStep(ctx context.Context, events []Event) (StepSnapshot, error) {
	switch e.phase {
	case PhaseUninitialized:
		return StepSnapshot{}, ErrNotInitialized
	case PhaseFinished:
		return StepSnapshot{}, ErrSimulationFinished
	}
	e.phase = PhaseRunning

	start := time.Now()
	snap := e.advance(events)
	measureStep(ctx, e.key, stepMeasurement{created: e.created, stockouts: e.stockouts, elapsed: time.Since(start)})

	for _, o := range e.observers {
		if err := o.ObserveStep(ctx, snap); err != nil {
			return snap, fmt.Errorf("step %d observer: %w", snap.Step, err)
		}
	}
	return snap, nil
}

// RunSimulation steps the engine hours times, sourcing each hour's events
// from gen (a fresh EventSimulator with DefaultEventConfig when nil). It
// returns the snapshots of this run and leaves the engine finished.
//
// Cancelling ctx abandons the run between steps; the snapshots recorded so
// far are returned with the context's error and the engine stays running.
func (e *Engine) RunSimulation(ctx context.Context, hours int, gen EventGenerator) ([]StepSnapshot, error) {
	ctx, span := tracer.Start(ctx, "Engine.RunSimulation", trace.WithAttributes(
		attribute.Int("twin.duration_hours", hours),
		attribute.Int64(seedAttribute, int64(e.key)),
	))
	defer span.End()

	fail := func(err error) error {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if hours <= 0 {
		return nil, fail(fmt.Errorf("duration_hours must be positive, got %d: %w", hours, ErrInvalidConfig))
	}
	switch e.phase {
	case PhaseUninitialized:
		return nil, fail(ErrNotInitialized)
	case PhaseFinished:
		return nil, fail(ErrSimulationFinished)
	}
	if gen == nil {
		gen = NewEventSimulator(DefaultEventConfig(), e.key)
	}

	logrus.Infof("Starting simulation: %d hours from %s", hours, e.state.Timestamp.Format(time.RFC3339))
	results := make([]StepSnapshot, 0, hours)
	for hour := 0; hour < hours; hour++ {
		if err := ctx.Err(); err != nil {
			logrus.Warnf("Simulation abandoned after %d of %d hours: %v", hour, hours, err)
			return results, fail(err)
		}
		snap, err := e.SimulateStep(ctx, gen.GenerateEvents(e.state, hour))
		if err != nil {
			return results, fail(err)
		}
		results = append(results, snap)
	}
	e.phase = PhaseFinished

	sum := e.state.Summary()
	logrus.Infof("Simulation ended at %s: %d orders, %d delivered, %d late", sum.Timestamp, sum.TotalOrders, sum.DeliveredOrders, sum.LateOrders)
	return results, nil
}

// advance performs one step on the owned state.
func (e *Engine) advance(events []Event) StepSnapshot {
	s := e.state
	e.step++
	e.created, e.stockouts = 0, 0
	s.Timestamp = s.Timestamp.Add(time.Hour)

	if e.cfg.RestoreOutages {
		e.restoreWarehouses()
	}
	if e.cfg.RetryPending || e.cfg.PendingTimeoutHours > 0 {
		e.processPending()
	}

	for _, ev := range events {
		e.dispatch(ev)
	}

	e.updateOrders()
	s.expireSurges()
	s.Metrics.InventoryValue = s.inventoryValue(e.cfg.unitValue)

	sum := s.Summary()
	snap := StepSnapshot{
		Step:            e.step,
		Timestamp:       sum.Timestamp,
		Summary:         sum,
		EventsProcessed: len(events),
	}
	e.history = append(e.history, snap)
	logrus.Infof("[step %05d] %s: %d events, %d active orders", e.step, sum.Timestamp, len(events), sum.ActiveOrders)
	return snap
}

func (e *Engine) dispatch(ev Event) {
	switch ev := ev.(type) {
	case OrderEvent:
		e.handleOrder(ev)
	case WeatherChangeEvent:
		e.state.UpdateWeather(ev.Location, ev.Weather)
	case WarehouseOutageEvent:
		e.handleOutage(ev)
	case SupplyDelayEvent:
		e.handleSupplyDelay(ev)
	case DemandSurgeEvent:
		e.handleDemandSurge(ev)
	case RestockEvent:
		e.handleRestock(ev)
	default:
		e.ignore("unsupported event %T", ev)
	}
}

// ignore surfaces an unusable event as a warning and counts it.
func (e *Engine) ignore(format string, args ...any) {
	e.state.Metrics.IgnoredEvents++
	logrus.Warnf("[step %05d] ignoring event: "+format, append([]any{e.step}, args...)...)
}

func (e *Engine) handleOrder(ev OrderEvent) {
	s := e.state
	if ev.ProductID == "" || ev.Quantity <= 0 {
		e.ignore("order for product %q with quantity %d", ev.ProductID, ev.Quantity)
		return
	}
	id := ev.OrderID
	if id == "" {
		id = e.nextOrderID()
	} else if s.HasOrder(id) {
		e.ignore("order %q: %v", id, ErrDuplicateID)
		return
	}
	days := ev.ExpectedDays
	if days <= 0 {
		days = DefaultExpectedDays
	}
	dest := ev.Destination
	if dest == "" {
		dest = CustomerLocation
	}

	o := &Order{
		ID:                   id,
		CustomerID:           ev.CustomerID,
		ProductID:            ev.ProductID,
		Quantity:             ev.Quantity,
		Destination:          dest,
		OrderDate:            s.Timestamp,
		ExpectedDeliveryDate: s.Timestamp.Add(time.Duration(days) * 24 * time.Hour),
		Status:               StatusPending,
	}
	e.fulfill(o, false)
	s.AddOrder(o)
	e.created++
}

func (e *Engine) nextOrderID() string {
	for {
		e.orderSeq++
		id := fmt.Sprintf("order_%06d", e.orderSeq)
		if !e.state.HasOrder(id) {
			return id
		}
	}
}

// fulfill reserves stock from the first operating warehouse holding enough
// of the product and puts the order in transit. On a stockout the order is
// left pending and the shortfall is counted.
func (e *Engine) fulfill(o *Order, retry bool) bool {
	s := e.state
	w := e.findSourceWarehouse(o.ProductID, o.Quantity)
	if w == nil || !w.RemoveInventory(o.ProductID, o.Quantity) {
		s.Metrics.Stockouts++
		e.stockouts++
		e.trace.RecordDispatch(simtrace.DispatchRecord{
			OrderID: o.ID, ProductID: o.ProductID, Quantity: o.Quantity,
			Step: e.step, Outcome: simtrace.OutcomeStockout, Retry: retry,
		})
		logrus.Debugf("[step %05d] stockout: order %s needs %d of %s", e.step, o.ID, o.Quantity, o.ProductID)
		return false
	}

	now := s.Timestamp
	o.Status = StatusInTransit
	o.SourceWarehouse = w.ID
	o.DispatchedAt = &now
	if r := e.findRoute(w.ID, o.Destination); r != nil {
		o.TransportRoute = r.ID
		o.ExpectedDeliveryDate = now.Add(hoursToDuration(r.EstimatedDurationHours()))
		cost := decimal.NewFromFloat(r.DistanceKm).Mul(decimal.NewFromFloat(e.cfg.CostPerKm))
		s.Metrics.TotalCost = s.Metrics.TotalCost.Add(cost)
	}
	e.trace.RecordDispatch(simtrace.DispatchRecord{
		OrderID: o.ID, ProductID: o.ProductID, Quantity: o.Quantity,
		Step: e.step, Outcome: simtrace.OutcomeFulfilled,
		WarehouseID: w.ID, RouteID: o.TransportRoute, Retry: retry,
	})
	logrus.Debugf("[step %05d] dispatched order %s from %s via %q", e.step, o.ID, w.ID, o.TransportRoute)
	return true
}

// findSourceWarehouse scans warehouses in insertion order.
func (e *Engine) findSourceWarehouse(productID string, quantity int) *Warehouse {
	for _, id := range e.state.warehouseIDs {
		w := e.state.warehouses[id]
		if w.Operating && w.InventoryLevel(productID) >= quantity {
			return w
		}
	}
	return nil
}

// findRoute returns the first route, in insertion order, from origin to destination.
func (e *Engine) findRoute(origin, destination string) *Route {
	for _, id := range e.state.routeIDs {
		r := e.state.routes[id]
		if r.Origin == origin && r.Destination == destination {
			return r
		}
	}
	return nil
}

func (e *Engine) handleOutage(ev WarehouseOutageEvent) {
	s := e.state
	w, ok := s.warehouses[ev.WarehouseID]
	if !ok {
		e.ignore("outage of unknown warehouse %q", ev.WarehouseID)
		return
	}
	w.Operating = false
	delete(s.outages, w.ID)
	if e.cfg.RestoreOutages && ev.DurationHours > 0 {
		s.outages[w.ID] = s.Timestamp.Add(time.Duration(ev.DurationHours) * time.Hour)
	}
	logrus.Infof("[step %05d] warehouse %s out of operation", e.step, w.ID)
}

func (e *Engine) restoreWarehouses() {
	s := e.state
	for _, id := range slices.Sorted(maps.Keys(s.outages)) {
		if s.Timestamp.Before(s.outages[id]) {
			continue
		}
		s.warehouses[id].Operating = true
		delete(s.outages, id)
		logrus.Infof("[step %05d] warehouse %s back in operation", e.step, id)
	}
}

func (e *Engine) handleSupplyDelay(ev SupplyDelayEvent) {
	r, ok := e.state.routes[ev.RouteID]
	if !ok {
		e.ignore("supply delay on unknown route %q", ev.RouteID)
		return
	}
	r.SetCongestion(r.Congestion() + SupplyDelayCongestionStep)
	logrus.Debugf("[step %05d] route %s congestion now %.2f", e.step, r.ID, r.Congestion())
}

func (e *Engine) handleDemandSurge(ev DemandSurgeEvent) {
	if ev.Multiplier <= 0 || ev.DurationHours <= 0 {
		e.ignore("demand surge x%.2f for %d hours", ev.Multiplier, ev.DurationHours)
		return
	}
	e.state.addSurge(ev.Multiplier, time.Duration(ev.DurationHours)*time.Hour)
	logrus.Infof("[step %05d] demand surge x%.2f for %d hours", e.step, ev.Multiplier, ev.DurationHours)
}

func (e *Engine) handleRestock(ev RestockEvent) {
	w, ok := e.state.warehouses[ev.WarehouseID]
	if !ok {
		e.ignore("restock of unknown warehouse %q", ev.WarehouseID)
		return
	}
	if ev.ProductID == "" || ev.Quantity <= 0 {
		e.ignore("restock of %q with quantity %d", ev.ProductID, ev.Quantity)
		return
	}
	w.AddInventory(ev.ProductID, ev.Quantity)
}

// processPending cancels pending orders past the timeout and, when enabled,
// retries the rest in creation order.
func (e *Engine) processPending() {
	s := e.state
	timeout := time.Duration(e.cfg.PendingTimeoutHours) * time.Hour
	for _, id := range s.ActiveOrderIDs() {
		o := s.orders[id]
		if o.Status != StatusPending {
			continue
		}
		if timeout > 0 && s.Timestamp.Sub(o.OrderDate) >= timeout {
			s.UpdateOrderStatus(id, StatusCancelled, time.Time{})
			e.trace.RecordDispatch(simtrace.DispatchRecord{
				OrderID: o.ID, ProductID: o.ProductID, Quantity: o.Quantity,
				Step: e.step, Outcome: simtrace.OutcomeCancelled,
			})
			logrus.Debugf("[step %05d] cancelled pending order %s", e.step, id)
			continue
		}
		if e.cfg.RetryPending {
			e.fulfill(o, true)
		}
	}
}

// updateOrders delivers in-transit orders whose expected date has arrived.
// The arrival is re-derived from the route's current duration; when the
// route degraded after dispatch the order becomes delayed until the revised
// date instead.
func (e *Engine) updateOrders() {
	s := e.state
	now := s.Timestamp
	for _, id := range s.ActiveOrderIDs() {
		o := s.orders[id]
		switch o.Status {
		case StatusInTransit:
			if now.Before(o.ExpectedDeliveryDate) {
				continue
			}
			arrival := o.ExpectedDeliveryDate
			if r, ok := s.routes[o.TransportRoute]; ok && o.DispatchedAt != nil {
				arrival = o.DispatchedAt.Add(hoursToDuration(r.EstimatedDurationHours()))
			}
			if arrival.After(now) {
				o.RevisedDeliveryDate = &arrival
				s.UpdateOrderStatus(id, StatusDelayed, time.Time{})
				logrus.Debugf("[step %05d] order %s delayed until %s", e.step, id, arrival.Format(time.RFC3339))
				continue
			}
			e.deliver(o)
		case StatusDelayed:
			if o.RevisedDeliveryDate == nil || !now.Before(*o.RevisedDeliveryDate) {
				e.deliver(o)
			}
		}
	}
}

func (e *Engine) deliver(o *Order) {
	s := e.state
	revenue := e.cfg.unitValue(o.ProductID).Mul(decimal.NewFromInt(int64(o.Quantity)))
	s.Metrics.TotalRevenue = s.Metrics.TotalRevenue.Add(revenue)
	s.UpdateOrderStatus(o.ID, StatusDelivered, s.Timestamp)
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

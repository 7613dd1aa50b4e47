package sim

// EventKind names an event variant.
type EventKind string

const (
	KindOrder           EventKind = "order"
	KindWeatherChange   EventKind = "weather_change"
	KindWarehouseOutage EventKind = "warehouse_outage"
	KindSupplyDelay     EventKind = "supply_delay"
	KindDemandSurge     EventKind = "demand_surge"
	KindRestock         EventKind = "restock"
)

// Event is the closed set of inputs dispatched by Engine.SimulateStep. The
// unexported marker method seals the set to the variants in this file.
type Event interface {
	Kind() EventKind
	isEvent()
}

// OrderEvent creates a customer order. OrderID may be empty; the engine
// then assigns one. Destination defaults to CustomerLocation.
type OrderEvent struct {
	OrderID      string
	CustomerID   string
	ProductID    string
	Quantity     int
	ExpectedDays int // optimistic lead time used until a route is assigned
	Destination  string
}

// WeatherChangeEvent stores a new reading for Location.
type WeatherChangeEvent struct {
	Location string
	Weather  Weather
}

// WarehouseOutageEvent takes a warehouse out of operation. DurationHours is
// honored only when EngineConfig.RestoreOutages is set.
type WarehouseOutageEvent struct {
	WarehouseID   string
	DurationHours int
}

// SupplyDelayEvent raises a route's congestion by SupplyDelayCongestionStep.
// DelayHours is informational.
type SupplyDelayEvent struct {
	RouteID    string
	DelayHours int
}

// DemandSurgeEvent scales the order arrival rate by Multiplier for
// DurationHours simulated hours.
type DemandSurgeEvent struct {
	Multiplier    float64
	DurationHours int
}

// RestockEvent adds inventory to a warehouse, clamped to its capacity.
type RestockEvent struct {
	WarehouseID string
	ProductID   string
	Quantity    int
}

func (OrderEvent) Kind() EventKind           { return KindOrder }
func (WeatherChangeEvent) Kind() EventKind   { return KindWeatherChange }
func (WarehouseOutageEvent) Kind() EventKind { return KindWarehouseOutage }
func (SupplyDelayEvent) Kind() EventKind     { return KindSupplyDelay }
func (DemandSurgeEvent) Kind() EventKind     { return KindDemandSurge }
func (RestockEvent) Kind() EventKind         { return KindRestock }

func (OrderEvent) isEvent()           {}
func (WeatherChangeEvent) isEvent()   {}
func (WarehouseOutageEvent) isEvent() {}
func (SupplyDelayEvent) isEvent()     {}
func (DemandSurgeEvent) isEvent()     {}
func (RestockEvent) isEvent()         {}

// EventGenerator produces the events of one simulated hour.
type EventGenerator interface {
	GenerateEvents(state *State, hour int) []Event
}

// EventGeneratorFunc adapts a function to EventGenerator.
type EventGeneratorFunc func(state *State, hour int) []Event

// GenerateEvents calls f.
func (f EventGeneratorFunc) GenerateEvents(state *State, hour int) []Event {
	return f(state, hour)
}

package sim

import (
	"fmt"
	"maps"
	"slices"

	"github.com/twin-sim/twin-sim/sim/workload"
)

// EventSimulator generates synthetic orders, weather drifts, disruptions and
// (optionally) restocks for each simulated hour. Each concern draws from its
// own PartitionedRNG stream, so two simulators built from the same key and
// config emit identical event sequences against identical states.
type EventSimulator struct {
	cfg      EventConfig
	rng      *PartitionedRNG
	arrivals *workload.PoissonSampler
	weather  workload.WeatherSampler
}

// NewEventSimulator creates an EventSimulator seeded from key. The config is
// not validated here; callers use EventConfig.Validate.
func NewEventSimulator(cfg EventConfig, key SimulationKey) *EventSimulator {
	return &EventSimulator{
		cfg:      cfg,
		rng:      NewPartitionedRNG(key),
		arrivals: workload.NewPoissonSampler(cfg.OrderRatePerHour),
		weather:  workload.DefaultWeatherSampler(),
	}
}

// Config returns the generation parameters.
func (es *EventSimulator) Config() EventConfig {
	return es.cfg
}

// GenerateEvents draws the events of one simulated hour from the current state.
//
// Orders come first, then at most one weather change, one disruption and one
// restock. The order arrival rate is scaled by the state's active demand
// surges.
func (es *EventSimulator) GenerateEvents(state *State, hour int) []Event {
	var events []Event

	orderRNG := es.rng.ForSubsystem(SubsystemOrders)
	n := es.arrivals.SampleScaled(orderRNG, state.DemandMultiplier())
	for i := 0; i < n; i++ {
		events = append(events, OrderEvent{
			CustomerID:   fmt.Sprintf("customer_%d", workload.UniformInt(orderRNG, 1, es.cfg.NumCustomers)),
			ProductID:    fmt.Sprintf("product_%d", workload.UniformInt(orderRNG, 1, es.cfg.NumProducts)),
			Quantity:     workload.UniformInt(orderRNG, 1, 10),
			ExpectedDays: workload.UniformInt(orderRNG, 2, 5),
			Destination:  CustomerLocation,
		})
	}

	weatherRNG := es.rng.ForSubsystem(SubsystemWeather)
	if workload.Trial(weatherRNG, es.cfg.WeatherChangeProbability) {
		if ev, ok := es.weatherChange(state); ok {
			events = append(events, ev)
		}
	}

	disruptionRNG := es.rng.ForSubsystem(SubsystemDisruption)
	if workload.Trial(disruptionRNG, es.cfg.DisruptionProbability) {
		if ev, ok := es.disruption(state); ok {
			events = append(events, ev)
		}
	}

	if es.cfg.RestockProbability > 0 {
		restockRNG := es.rng.ForSubsystem(SubsystemRestock)
		if workload.Trial(restockRNG, es.cfg.RestockProbability) {
			if ev, ok := es.restock(state); ok {
				events = append(events, ev)
			}
		}
	}

	return events
}

// weatherChange picks a location among the sorted weather locations, falling
// back to warehouse ids when no reading exists yet.
func (es *EventSimulator) weatherChange(state *State) (Event, bool) {
	rng := es.rng.ForSubsystem(SubsystemWeather)
	locations := state.WeatherLocations()
	if len(locations) == 0 {
		locations = state.WarehouseIDs()
	}
	loc, ok := workload.Pick(rng, locations)
	if !ok {
		return nil, false
	}
	d := es.weather.Sample(rng)
	return WeatherChangeEvent{
		Location: loc,
		Weather:  Weather{Temperature: d.Temperature, Precipitation: d.Precipitation, WindSpeed: d.WindSpeed},
	}, true
}

func (es *EventSimulator) disruption(state *State) (Event, bool) {
	rng := es.rng.ForSubsystem(SubsystemDisruption)
	if rng.IntN(2) == 0 {
		id, ok := workload.Pick(rng, state.WarehouseIDs())
		if !ok {
			return nil, false
		}
		return WarehouseOutageEvent{WarehouseID: id, DurationHours: workload.UniformInt(rng, 1, 24)}, true
	}
	id, ok := workload.Pick(rng, state.RouteIDs())
	if !ok {
		return nil, false
	}
	return SupplyDelayEvent{RouteID: id, DelayHours: workload.UniformInt(rng, 2, 12)}, true
}

// restock tops up a random product already stocked at a random warehouse.
func (es *EventSimulator) restock(state *State) (Event, bool) {
	rng := es.rng.ForSubsystem(SubsystemRestock)
	id, ok := workload.Pick(rng, state.WarehouseIDs())
	if !ok {
		return nil, false
	}
	w := state.warehouses[id]
	pid, ok := workload.Pick(rng, slices.Sorted(maps.Keys(w.inventory)))
	if !ok {
		return nil, false
	}
	return RestockEvent{WarehouseID: id, ProductID: pid, Quantity: es.cfg.RestockQuantity}, true
}

// Package whatif compares a baseline digital twin run against perturbed
// variants of the same initial configuration. Every run is an independent
// Engine with its own State, EventSimulator and RNG, so the baseline and its
// scenarios execute in parallel without sharing data.
package whatif

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/twin-sim/twin-sim/sim"
)

// ScenarioType names a kind of perturbation.
type ScenarioType string

const (
	// WeatherChange scales precipitation and wind speed everywhere.
	WeatherChange ScenarioType = "weather_change"
	// InventoryChange scales the initial stock of one or every warehouse.
	InventoryChange ScenarioType = "inventory_change"
	// DemandChange scales the order arrival rate.
	DemandChange ScenarioType = "demand_change"
)

// ErrInvalidScenario is returned for scenarios that cannot be applied.
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario is one what-if perturbation of a baseline Input.
type Scenario struct {
	Name        string       `yaml:"name,omitempty"`
	Type        ScenarioType `yaml:"type"`
	Multiplier  float64      `yaml:"multiplier"`
	WarehouseID string       `yaml:"warehouse_id,omitempty"` // inventory_change only; empty = every warehouse
}

// Label returns Name, or a description derived from the type and multiplier.
func (s Scenario) Label() string {
	if s.Name != "" {
		return s.Name
	}
	if s.WarehouseID != "" {
		return fmt.Sprintf("%s x%.2f @ %s", s.Type, s.Multiplier, s.WarehouseID)
	}
	return fmt.Sprintf("%s x%.2f", s.Type, s.Multiplier)
}

// Validate checks the type and multiplier.
func (s Scenario) Validate() error {
	switch s.Type {
	case WeatherChange, InventoryChange, DemandChange:
	default:
		return fmt.Errorf("unknown scenario type %q; valid: weather_change, inventory_change, demand_change: %w", s.Type, ErrInvalidScenario)
	}
	if s.Multiplier < 0 {
		return fmt.Errorf("%s: multiplier must be non-negative, got %f: %w", s.Type, s.Multiplier, ErrInvalidScenario)
	}
	if s.WarehouseID != "" && s.Type != InventoryChange {
		return fmt.Errorf("%s: warehouse_id applies to inventory_change only: %w", s.Type, ErrInvalidScenario)
	}
	return nil
}

// Input is everything needed to build and run one engine.
type Input struct {
	Key           sim.SimulationKey
	DurationHours int
	Engine        sim.EngineConfig
	Events        sim.EventConfig
	Network       sim.Network
}

// InputFromSpec projects a TwinSpec onto an Input.
func InputFromSpec(spec *sim.TwinSpec) Input {
	return Input{
		Key:           spec.Key(),
		DurationHours: spec.DurationHours,
		Engine:        spec.EngineConfig(),
		Events:        spec.EventConfig(),
		Network:       spec.Network,
	}
}

// Clone returns a deep copy of in.
func (in Input) Clone() Input {
	in.Network = in.Network.Clone()
	in.Engine.ProductValues = maps.Clone(in.Engine.ProductValues)
	return in
}

// Apply returns a perturbed deep copy of in. The receiver is never mutated.
func (s Scenario) Apply(in Input) (Input, error) {
	if err := s.Validate(); err != nil {
		return Input{}, err
	}
	out := in.Clone()
	switch s.Type {
	case WeatherChange:
		scale := func(w sim.Weather) sim.Weather {
			w.Precipitation *= s.Multiplier
			w.WindSpeed *= s.Multiplier
			return w
		}
		for loc, w := range out.Network.InitialWeather {
			out.Network.InitialWeather[loc] = scale(w)
		}
		for i := range out.Network.Routes {
			out.Network.Routes[i].Weather = scale(out.Network.Routes[i].Weather)
		}
	case InventoryChange:
		found := s.WarehouseID == ""
		for i := range out.Network.Warehouses {
			w := &out.Network.Warehouses[i]
			if s.WarehouseID != "" && w.ID != s.WarehouseID {
				continue
			}
			found = true
			capacity := w.Capacity
			if capacity == 0 {
				capacity = sim.DefaultWarehouseCapacity
			}
			for pid, q := range w.Inventory {
				w.Inventory[pid] = min(int(float64(q)*s.Multiplier), capacity)
			}
		}
		if !found {
			return Input{}, fmt.Errorf("inventory_change: warehouse %q: %w", s.WarehouseID, sim.ErrUnknownLocation)
		}
	case DemandChange:
		out.Events.OrderRatePerHour *= s.Multiplier
	}
	return out, nil
}

type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadScenarios reads a YAML list of scenarios with strict field checking.
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenarios: %w", err)
	}
	var f scenarioFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing scenarios: %w", err)
	}
	for i, s := range f.Scenarios {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("scenario[%d]: %w", i, err)
		}
	}
	return f.Scenarios, nil
}

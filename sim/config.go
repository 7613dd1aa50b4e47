package sim

import (
	"fmt"
	"maps"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/twin-sim/twin-sim/sim/trace"
)

const (
	// DefaultProductValue is the unit value of a product absent from ProductValues.
	DefaultProductValue = 10.0
	// DefaultCostPerKm is the transport cost charged per route kilometer on dispatch.
	DefaultCostPerKm = 1.0
	// DefaultWarehouseCapacity applies when a warehouse record omits capacity.
	DefaultWarehouseCapacity = 10000
	// DefaultExpectedDays is the optimistic lead time of an order event without one.
	DefaultExpectedDays = 3
	// SupplyDelayCongestionStep is the congestion added by one supply delay.
	SupplyDelayCongestionStep = 0.3
)

// EngineConfig groups engine-level parameters and fulfillment policies.
type EngineConfig struct {
	StartTime           time.Time          // clock origin (DefaultStartTime when zero)
	ProductValues       map[string]float64 // unit value per product
	DefaultProductValue float64            // unit value when a product is absent (DefaultProductValue when zero)
	CostPerKm           float64            // transport cost per km (DefaultCostPerKm when zero, negative disables)

	RetryPending        bool // retry pending orders at the start of each step
	PendingTimeoutHours int  // cancel pending orders at least this old (0 = never)
	RestoreOutages      bool // restore warehouses after an outage's DurationHours

	Trace trace.TraceConfig
}

// DefaultEngineConfig returns the reference engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		StartTime:           DefaultStartTime,
		DefaultProductValue: DefaultProductValue,
		CostPerKm:           DefaultCostPerKm,
	}
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.StartTime.IsZero() {
		c.StartTime = DefaultStartTime
	}
	if c.DefaultProductValue == 0 {
		c.DefaultProductValue = DefaultProductValue
	}
	if c.CostPerKm == 0 {
		c.CostPerKm = DefaultCostPerKm
	}
	if c.CostPerKm < 0 {
		c.CostPerKm = 0
	}
	return c
}

// Validate checks the engine configuration.
func (c EngineConfig) Validate() error {
	for id, v := range c.ProductValues {
		if err := validateFiniteNonNegative("product_values."+id, v); err != nil {
			return err
		}
	}
	if err := validateFiniteNonNegative("default_product_value", c.DefaultProductValue); err != nil {
		return err
	}
	if math.IsNaN(c.CostPerKm) || math.IsInf(c.CostPerKm, 0) {
		return fmt.Errorf("cost_per_km must be a finite number, got %f: %w", c.CostPerKm, ErrInvalidConfig)
	}
	if c.PendingTimeoutHours < 0 {
		return fmt.Errorf("pending_timeout_hours must be non-negative, got %d: %w", c.PendingTimeoutHours, ErrInvalidConfig)
	}
	if !trace.IsValidTraceLevel(string(c.Trace.Level)) {
		return fmt.Errorf("unknown trace level %q; valid: none, decisions: %w", c.Trace.Level, ErrInvalidConfig)
	}
	return nil
}

// unitValue returns the configured value of productID.
func (c EngineConfig) unitValue(productID string) decimal.Decimal {
	if v, ok := c.ProductValues[productID]; ok {
		return decimal.NewFromFloat(v)
	}
	return decimal.NewFromFloat(c.DefaultProductValue)
}

// EventConfig parameterizes the EventSimulator.
type EventConfig struct {
	OrderRatePerHour         float64 `yaml:"order_rate_per_hour"`        // Poisson mean
	WeatherChangeProbability float64 `yaml:"weather_change_probability"` // Bernoulli per hour
	DisruptionProbability    float64 `yaml:"disruption_probability"`     // Bernoulli per hour
	RestockProbability       float64 `yaml:"restock_probability"`        // Bernoulli per hour (0 = off)
	RestockQuantity          int     `yaml:"restock_quantity"`
	NumCustomers             int     `yaml:"num_customers"`
	NumProducts              int     `yaml:"num_products"`
}

// DefaultEventConfig returns the reference event generation parameters.
func DefaultEventConfig() EventConfig {
	return EventConfig{
		OrderRatePerHour:         10,
		WeatherChangeProbability: 0.10,
		DisruptionProbability:    0.05,
		RestockProbability:       0,
		RestockQuantity:          50,
		NumCustomers:             1000,
		NumProducts:              50,
	}
}

// Validate checks that rates are finite and non-negative and probabilities lie in [0, 1].
func (c EventConfig) Validate() error {
	if err := validateFiniteNonNegative("order_rate_per_hour", c.OrderRatePerHour); err != nil {
		return err
	}
	for name, p := range map[string]float64{
		"weather_change_probability": c.WeatherChangeProbability,
		"disruption_probability":     c.DisruptionProbability,
		"restock_probability":        c.RestockProbability,
	} {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return fmt.Errorf("%s must be in [0, 1], got %f: %w", name, p, ErrInvalidConfig)
		}
	}
	if c.RestockQuantity < 0 {
		return fmt.Errorf("restock_quantity must be non-negative, got %d: %w", c.RestockQuantity, ErrInvalidConfig)
	}
	if c.NumCustomers <= 0 || c.NumProducts <= 0 {
		return fmt.Errorf("num_customers and num_products must be positive, got %d and %d: %w", c.NumCustomers, c.NumProducts, ErrInvalidConfig)
	}
	return nil
}

// WarehouseConfig is the initialization record of one warehouse.
type WarehouseConfig struct {
	ID        string         `yaml:"id"`
	Location  Location       `yaml:"location"`
	Inventory map[string]int `yaml:"inventory,omitempty"`
	Capacity  int            `yaml:"capacity"`
	Operating *bool          `yaml:"operating,omitempty"` // nil = operating
}

// RouteConfig is the initialization record of one route.
type RouteConfig struct {
	ID          string  `yaml:"id"`
	Origin      string  `yaml:"origin"`
	Destination string  `yaml:"destination"`
	DistanceKm  float64 `yaml:"distance_km"`
	Weather     Weather `yaml:"weather"`
	Congestion  float64 `yaml:"congestion,omitempty"`
}

// Network is the initialization payload of an engine.
type Network struct {
	Warehouses     []WarehouseConfig  `yaml:"warehouses"`
	Routes         []RouteConfig      `yaml:"routes"`
	InitialWeather map[string]Weather `yaml:"initial_weather,omitempty"`
}

// Clone returns a deep copy of n.
func (n Network) Clone() Network {
	cp := Network{
		Warehouses: make([]WarehouseConfig, len(n.Warehouses)),
		Routes:     append([]RouteConfig(nil), n.Routes...),
	}
	for i, w := range n.Warehouses {
		w.Inventory = maps.Clone(w.Inventory)
		if w.Operating != nil {
			op := *w.Operating
			w.Operating = &op
		}
		cp.Warehouses[i] = w
	}
	cp.InitialWeather = maps.Clone(n.InitialWeather)
	return cp
}

// Validate checks ids, bounds and route endpoints. It is the fail-fast gate
// run by Engine.Initialize before any state mutation.
func (n Network) Validate() error {
	known := map[string]bool{CustomerLocation: true}
	for i, w := range n.Warehouses {
		prefix := fmt.Sprintf("warehouse[%d]", i)
		if w.ID == "" {
			return fmt.Errorf("%s: id is required: %w", prefix, ErrInvalidConfig)
		}
		if known[w.ID] {
			return fmt.Errorf("%s: warehouse %q: %w", prefix, w.ID, ErrDuplicateID)
		}
		known[w.ID] = true
		capacity := w.effectiveCapacity()
		if capacity <= 0 {
			return fmt.Errorf("%s: capacity must be positive, got %d: %w", prefix, capacity, ErrInvalidConfig)
		}
		for pid, q := range w.Inventory {
			if q < 0 || q > capacity {
				return fmt.Errorf("%s: inventory %q must be in [0, %d], got %d: %w", prefix, pid, capacity, q, ErrInvalidConfig)
			}
		}
	}

	routeIDs := make(map[string]bool, len(n.Routes))
	for i, r := range n.Routes {
		prefix := fmt.Sprintf("route[%d]", i)
		if r.ID == "" {
			return fmt.Errorf("%s: id is required: %w", prefix, ErrInvalidConfig)
		}
		if routeIDs[r.ID] {
			return fmt.Errorf("%s: route %q: %w", prefix, r.ID, ErrDuplicateID)
		}
		routeIDs[r.ID] = true
		if !known[r.Origin] {
			return fmt.Errorf("%s: origin %q: %w", prefix, r.Origin, ErrUnknownLocation)
		}
		if !known[r.Destination] {
			return fmt.Errorf("%s: destination %q: %w", prefix, r.Destination, ErrUnknownLocation)
		}
		if err := validateFiniteNonNegative(prefix+".distance_km", r.DistanceKm); err != nil {
			return err
		}
		if math.IsNaN(r.Congestion) || r.Congestion < 0 || r.Congestion > 1 {
			return fmt.Errorf("%s: congestion must be in [0, 1], got %f: %w", prefix, r.Congestion, ErrInvalidConfig)
		}
	}
	return nil
}

func (w WarehouseConfig) effectiveCapacity() int {
	if w.Capacity == 0 {
		return DefaultWarehouseCapacity
	}
	return w.Capacity
}

func (w WarehouseConfig) operating() bool {
	return w.Operating == nil || *w.Operating
}

func validateFiniteNonNegative(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f: %w", name, val, ErrInvalidConfig)
	}
	if val < 0 {
		return fmt.Errorf("%s must be non-negative, got %f: %w", name, val, ErrInvalidConfig)
	}
	return nil
}

package sim

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/twin-sim/twin-sim/sim/trace"
)

// TwinSpec is the YAML description of one simulation: the network, the
// engine policies and the event generation parameters.
type TwinSpec struct {
	Seed          int64       `yaml:"seed"`
	DurationHours int         `yaml:"duration_hours"`
	StartTime     time.Time   `yaml:"start_time,omitempty"`
	Engine        EngineSpec  `yaml:"engine"`
	Events        EventConfig `yaml:"events"`
	Network       Network     `yaml:"network"`
}

// EngineSpec is the YAML form of EngineConfig.
type EngineSpec struct {
	ProductValues       map[string]float64 `yaml:"product_values,omitempty"`
	DefaultProductValue float64            `yaml:"default_product_value,omitempty"`
	CostPerKm           float64            `yaml:"cost_per_km,omitempty"`
	RetryPending        bool               `yaml:"retry_pending"`
	PendingTimeoutHours int                `yaml:"pending_timeout_hours"`
	RestoreOutages      bool               `yaml:"restore_outages"`
	TraceLevel          string             `yaml:"trace_level,omitempty"`
}

// LoadTwinSpec reads a TwinSpec from a YAML file with strict field checking.
// Event parameters absent from the file keep their DefaultEventConfig values.
func LoadTwinSpec(path string) (*TwinSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading twin spec: %w", err)
	}
	return ParseTwinSpec(data)
}

// ParseTwinSpec decodes a TwinSpec from YAML bytes.
func ParseTwinSpec(data []byte) (*TwinSpec, error) {
	spec := TwinSpec{Events: DefaultEventConfig()}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing twin spec: %w", err)
	}
	return &spec, nil
}

// Validate checks every section of the spec.
func (s *TwinSpec) Validate() error {
	if s.DurationHours <= 0 {
		return fmt.Errorf("duration_hours must be positive, got %d: %w", s.DurationHours, ErrInvalidConfig)
	}
	if err := s.EngineConfig().Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := s.Events.Validate(); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	if err := s.Network.Validate(); err != nil {
		return fmt.Errorf("network: %w", err)
	}
	return nil
}

// EngineConfig projects the spec onto the engine's configuration.
func (s *TwinSpec) EngineConfig() EngineConfig {
	return EngineConfig{
		StartTime:           s.StartTime.UTC(),
		ProductValues:       s.Engine.ProductValues,
		DefaultProductValue: s.Engine.DefaultProductValue,
		CostPerKm:           s.Engine.CostPerKm,
		RetryPending:        s.Engine.RetryPending,
		PendingTimeoutHours: s.Engine.PendingTimeoutHours,
		RestoreOutages:      s.Engine.RestoreOutages,
		Trace:               trace.TraceConfig{Level: trace.TraceLevel(s.Engine.TraceLevel)},
	}
}

// EventConfig returns the event generation parameters.
func (s *TwinSpec) EventConfig() EventConfig { return s.Events }

// Key returns the SimulationKey derived from the spec's seed.
func (s *TwinSpec) Key() SimulationKey { return NewSimulationKey(s.Seed) }

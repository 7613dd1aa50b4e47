package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"

	sim "github.com/twin-sim/twin-sim/sim"
)

// defaultTwinYAML is the network simulated when no --config is given: two
// warehouses that each ship to customers, linked by a long-haul route.
const defaultTwinYAML = `
seed: 42
duration_hours: 168
start_time: 2025-01-01T00:00:00Z
engine:
  default_product_value: 10
  cost_per_km: 1
  retry_pending: true
  pending_timeout_hours: 72
  restore_outages: true
events:
  order_rate_per_hour: 10
  weather_change_probability: 0.1
  disruption_probability: 0.05
  restock_probability: 0.2
  restock_quantity: 50
  num_customers: 1000
  num_products: 10
network:
  warehouses:
    - id: warehouse_hn
      location: {lat: 21.03, lon: 105.85}
      capacity: 5000
      inventory: {product_1: 400, product_2: 400, product_3: 300, product_4: 300, product_5: 200}
    - id: warehouse_hcm
      location: {lat: 10.82, lon: 106.63}
      capacity: 5000
      inventory: {product_1: 300, product_6: 400, product_7: 300, product_8: 300, product_9: 200, product_10: 200}
  routes:
    - {id: route_hn_customer, origin: warehouse_hn, destination: customer_location, distance_km: 150}
    - {id: route_hcm_customer, origin: warehouse_hcm, destination: customer_location, distance_km: 200}
    - {id: route_hn_hcm, origin: warehouse_hn, destination: warehouse_hcm, distance_km: 1700}
  initial_weather:
    warehouse_hn: {temperature: 24, precipitation: 3, wind_speed: 8}
    warehouse_hcm: {temperature: 30, precipitation: 6, wind_speed: 10}
`

// loadTwinSpec reads the TwinSpec at path, or the built-in default network
// when path is empty.
func loadTwinSpec(path string) (*sim.TwinSpec, error) {
	if path == "" {
		logrus.Info("No --config given, using the built-in two-warehouse network")
		spec, err := sim.ParseTwinSpec([]byte(defaultTwinYAML))
		if err != nil {
			return nil, fmt.Errorf("built-in network: %w", err)
		}
		return spec, nil
	}
	return sim.LoadTwinSpec(path)
}

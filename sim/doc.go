// Package sim provides the core discrete-event engine of the supply-chain digital twin.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - warehouse.go, route.go, order.go: the three entities and their invariants
//   - state.go: the aggregate root (State) that exclusively owns every entity
//   - event.go: the closed set of events that drive the simulation
//   - engine.go: the control loop (initialize, step, dispatch, run)
//
// # Architecture
//
// One Engine owns one State. All mutation happens on the goroutine calling
// SimulateStep; the engine is not safe for concurrent use. Parallel what-if
// comparisons build one Engine per run (see sim/whatif/).
//
// Sub-packages:
//   - sim/workload/: stochastic samplers backing the EventSimulator
//   - sim/trace/: dispatch decision recording
//   - sim/whatif/: baseline-versus-scenario comparisons
//   - sim/publish/: per-step snapshot publishing onto a pubsub topic
//
// # Clock
//
// The clock advances by exactly one simulated hour per step. Route durations
// are fractional hours; an order is checked for delivery at whole-hour steps.
package sim

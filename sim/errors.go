package sim

import "errors"

var (
	// ErrNotInitialized is returned when stepping an engine before Initialize.
	ErrNotInitialized = errors.New("engine not initialized")
	// ErrAlreadyInitialized is returned by a second Initialize without Reset.
	ErrAlreadyInitialized = errors.New("engine already initialized")
	// ErrSimulationFinished is returned when stepping an engine whose run has finished.
	ErrSimulationFinished = errors.New("simulation finished")
	// ErrDuplicateID is returned when a warehouse or route id is inserted twice.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrUnknownLocation is returned when a route endpoint is neither a
	// configured warehouse nor CustomerLocation.
	ErrUnknownLocation = errors.New("unknown location")
	// ErrInvalidConfig wraps every other configuration violation.
	ErrInvalidConfig = errors.New("invalid configuration")
)

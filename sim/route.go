package sim

import "fmt"

// CustomerLocation is the sentinel endpoint standing for "the customer".
const CustomerLocation = "customer_location"

const (
	averageSpeedKmh       = 60.0
	heavyPrecipitationMm  = 10.0
	strongWindSpeed       = 20.0
	precipitationPenalty  = 0.3
	windPenalty           = 0.2
	congestionPenaltyRate = 0.5
)

// Weather is a reading for one location.
type Weather struct {
	Temperature   float64 `json:"temperature" yaml:"temperature"`
	Precipitation float64 `json:"precipitation" yaml:"precipitation"` // mm
	WindSpeed     float64 `json:"wind_speed" yaml:"wind_speed"`
}

// Route is a directed transport link between two locations.
//
// EstimatedDurationHours is derived from distance, weather and congestion.
// Mutate those inputs only through SetWeather and SetCongestion, which
// recompute it synchronously.
type Route struct {
	ID          string
	Origin      string
	Destination string
	DistanceKm  float64

	weather                Weather
	congestion             float64 // in [0, 1]
	estimatedDurationHours float64

	// ActualDurationHours is recorded post-hoc; nil until known.
	ActualDurationHours *float64
}

// NewRoute creates a route and computes its initial duration.
func NewRoute(id, origin, destination string, distanceKm float64, w Weather) *Route {
	r := &Route{
		ID:          id,
		Origin:      origin,
		Destination: destination,
		DistanceKm:  distanceKm,
		weather:     w,
	}
	r.CalculateDuration()
	return r
}

// CalculateDuration recomputes and stores the estimated duration in hours:
//
//	distance/60 * (1 + 0.3[precip > 10] + 0.2[wind > 20]) * (1 + 0.5*congestion)
func (r *Route) CalculateDuration() float64 {
	base := r.DistanceKm / averageSpeedKmh

	weatherFactor := 1.0
	if r.weather.Precipitation > heavyPrecipitationMm {
		weatherFactor += precipitationPenalty
	}
	if r.weather.WindSpeed > strongWindSpeed {
		weatherFactor += windPenalty
	}

	congestionFactor := 1.0 + r.congestion*congestionPenaltyRate

	r.estimatedDurationHours = base * weatherFactor * congestionFactor
	return r.estimatedDurationHours
}

// EstimatedDurationHours returns the duration computed on the last mutation.
func (r *Route) EstimatedDurationHours() float64 {
	return r.estimatedDurationHours
}

// Weather returns the weather currently applied to the route.
func (r *Route) Weather() Weather {
	return r.weather
}

// Congestion returns the congestion level in [0, 1].
func (r *Route) Congestion() float64 {
	return r.congestion
}

// SetWeather overwrites the route's weather and recomputes its duration.
func (r *Route) SetWeather(w Weather) {
	r.weather = w
	r.CalculateDuration()
}

// SetCongestion clamps level into [0, 1], stores it and recomputes the duration.
func (r *Route) SetCongestion(level float64) {
	r.congestion = min(max(level, 0), 1)
	r.CalculateDuration()
}

// Touches reports whether location is either endpoint of the route.
func (r *Route) Touches(location string) bool {
	return r.Origin == location || r.Destination == location
}

func (r *Route) clone() *Route {
	cp := *r
	if r.ActualDurationHours != nil {
		v := *r.ActualDurationHours
		cp.ActualDurationHours = &v
	}
	return &cp
}

// This method returns a human-readable string representation of a Route.
func (r Route) String() string {
	return fmt.Sprintf("Route: (ID: %s, %s -> %s, %.1fkm, %.2fh)", r.ID, r.Origin, r.Destination, r.DistanceKm, r.estimatedDurationHours)
}

package workload

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// WeatherDraw is one synthetic weather reading.
type WeatherDraw struct {
	Temperature   float64
	Precipitation float64
	WindSpeed     float64
}

// WeatherSampler draws readings with a Gaussian temperature and exponential
// precipitation and wind speed.
type WeatherSampler struct {
	TempMean, TempStdDev float64
	PrecipitationMean    float64
	WindSpeedMean        float64
}

// DefaultWeatherSampler returns N(20, 10) temperature, Exp(mean 5) mm
// precipitation and Exp(mean 10) wind speed.
func DefaultWeatherSampler() WeatherSampler {
	return WeatherSampler{TempMean: 20, TempStdDev: 10, PrecipitationMean: 5, WindSpeedMean: 10}
}

// Sample draws one reading. Precipitation and wind are never negative.
func (s WeatherSampler) Sample(rng *rand.Rand) WeatherDraw {
	temp := distuv.Normal{Mu: s.TempMean, Sigma: s.TempStdDev, Src: rng}.Rand()
	return WeatherDraw{
		Temperature:   temp,
		Precipitation: sampleExponential(rng, s.PrecipitationMean),
		WindSpeed:     sampleExponential(rng, s.WindSpeedMean),
	}
}

func sampleExponential(rng *rand.Rand, mean float64) float64 {
	if mean <= 0 {
		return 0
	}
	return math.Max(0, distuv.Exponential{Rate: 1 / mean, Src: rng}.Rand())
}

// UniformInt returns an integer uniformly drawn from [lo, hi]. It returns lo
// when hi <= lo.
func UniformInt(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.IntN(hi-lo+1)
}

// Pick returns a uniformly chosen element of items and false when items is empty.
func Pick[T any](rng *rand.Rand, items []T) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	return items[rng.IntN(len(items))], true
}

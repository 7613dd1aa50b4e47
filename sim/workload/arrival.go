// Package workload provides the stochastic samplers behind the digital twin's
// event generation: Poisson arrival counts, Bernoulli trials, weather draws
// and uniform picks. Every sampler draws from a caller-supplied source so a
// seeded run can be replayed exactly.
package workload

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// ArrivalSampler generates the number of arrivals in one simulated hour.
type ArrivalSampler interface {
	// SampleCount returns a non-negative arrival count.
	SampleCount(rng *rand.Rand) int
}

// PoissonSampler draws hourly counts from Poisson(rate). The rate is scaled
// by Multiplier per call, which lets a demand surge raise arrivals without
// rebuilding the sampler.
type PoissonSampler struct {
	ratePerHour float64
}

// NewPoissonSampler creates a sampler with the given mean arrivals per hour.
func NewPoissonSampler(ratePerHour float64) *PoissonSampler {
	return &PoissonSampler{ratePerHour: ratePerHour}
}

// SampleCount draws one count at the base rate.
func (s *PoissonSampler) SampleCount(rng *rand.Rand) int {
	return s.SampleScaled(rng, 1)
}

// SampleScaled draws one count from Poisson(rate * multiplier). A zero or
// negative effective rate yields 0 without consuming randomness.
func (s *PoissonSampler) SampleScaled(rng *rand.Rand, multiplier float64) int {
	lambda := s.ratePerHour * multiplier
	if lambda <= 0 {
		return 0
	}
	return int(distuv.Poisson{Lambda: lambda, Src: rng}.Rand())
}

// Rate returns the base mean arrivals per hour.
func (s *PoissonSampler) Rate() float64 {
	return s.ratePerHour
}

// Trial runs one Bernoulli trial with success probability p. Probabilities
// at or below 0 never succeed and do not consume randomness.
func Trial(rng *rand.Rand, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return distuv.Bernoulli{P: p, Src: rng}.Rand() == 1
}

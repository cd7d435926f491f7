package domain

import "math"

// Gutenberg-Richter energy relation constants: log10(E) = a*M + b.
const (
	energySlope     = 1.5
	energyIntercept = 4.8
)

// Energy returns the radiated seismic energy in joules for magnitude m.
func Energy(m float64) float64 {
	return math.Pow(10, energySlope*m+energyIntercept)
}

// EquivalentMagnitude returns the magnitude of a single event releasing
// energy joules. Returns NaN for non-positive energy.
func EquivalentMagnitude(energy float64) float64 {
	if energy <= 0 {
		return math.NaN()
	}
	return (math.Log10(energy) - energyIntercept) / energySlope
}

// Enrich returns a copy of quakes with Energy and ProcessedAt set.
func Enrich(quakes []Quake) []Quake {
	now := clock.Now().UTC()
	out := make([]Quake, len(quakes))
	for i, q := range quakes {
		q.Energy = Energy(q.Magnitude)
		q.ProcessedAt = now
		out[i] = q
	}
	return out
}

// TotalEnergy sums the Energy field of quakes.
func TotalEnergy(quakes []Quake) float64 {
	var sum float64
	for _, q := range quakes {
		sum += q.Energy
	}
	return sum
}

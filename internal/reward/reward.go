// Package reward computes bounded scalar reward components for a row.
package reward

import "math"

const (
	// Ceiling is the latency, in milliseconds, at which efficiency reaches zero.
	Ceiling = 20000
	// SuccessWeight is the weight of the success score in the composite.
	SuccessWeight = 0.8
	// EfficiencyWeight is the weight of the efficiency score in the composite.
	EfficiencyWeight = 0.2
	// Precision is the number of decimal digits kept in every component.
	Precision = 6
)

// Components holds the reward breakdown for one row.
type Components struct {
	Success    float64
	Efficiency float64
	Composite  float64
}

// Score returns the reward components for an outcome and its latency.
// Negative durations are treated as zero.
func Score(success bool, durationMs int64) Components {
	s := 0.0
	if success {
		s = 1.0
	}
	d := min(max(durationMs, 0), Ceiling)
	eff := max(0.0, 1.0-float64(d)/Ceiling)
	composite := SuccessWeight*s + EfficiencyWeight*eff
	return Components{
		Success:    Round(s),
		Efficiency: Round(eff),
		Composite:  Round(composite),
	}
}

// Round rounds f to Precision decimal digits, halves to even.
func Round(f float64) float64 {
	p := math.Pow(10, Precision)
	return math.RoundToEven(f*p) / p
}

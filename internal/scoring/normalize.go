package scoring

import "math"

// epsilon keeps min == max from dividing by zero.
const epsilon = 1e-9

// Normalize clamps (value-min)/(max-min+epsilon) into [0,1]. A missing (NaN)
// value normalizes to 0; that fallback belongs to the scalar form only.
func Normalize(value, min, max float64) float64 {
	if math.IsNaN(value) {
		return 0
	}
	r := (value - min) / (max - min + epsilon)
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// NormalizeColumn is the vectorized form of Normalize. Missing values stay
// missing: downstream formulas decide whether and how to fill them.
func NormalizeColumn(values []float64, min, max float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		out[i] = Normalize(v, min, max)
	}
	return out
}

// fillNaN substitutes def for a missing value.
func fillNaN(v, def float64) float64 {
	if math.IsNaN(v) {
		return def
	}
	return v
}

// round2 rounds to two decimals, leaving NaN untouched.
func round2(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Round(v*100) / 100
}

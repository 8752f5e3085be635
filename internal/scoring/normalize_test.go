package scoring_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reviq/backend/internal/scoring"
)

func TestNormalize_Bounds(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		min, max float64
		want     float64
	}{
		{"at min", 0, 0, 90, 0},
		{"at max", 90, 0, 90, 1},
		{"midpoint", 45, 0, 90, 0.5},
		{"below min clamps", -10, 0, 90, 0},
		{"above max clamps", 120, 0, 90, 1},
		{"degenerate range", 5, 5, 5, 0},
		{"missing value falls back to zero", math.NaN(), 0, 90, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoring.Normalize(tt.value, tt.min, tt.max)
			require.InDelta(t, tt.want, got, 1e-6)
			require.GreaterOrEqual(t, got, 0.0)
			require.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestNormalize_Monotonic(t *testing.T) {
	prev := -1.0
	for v := 0.0; v <= 90; v += 3 {
		got := scoring.Normalize(v, 0, 90)
		require.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

func TestNormalizeColumn_PropagatesMissing(t *testing.T) {
	// The column form must agree element-wise with the scalar form, except
	// that missing values stay missing instead of falling back to 0.
	values := []float64{0, 45, 90, math.NaN(), 200}
	got := scoring.NormalizeColumn(values, 0, 90)

	require.Len(t, got, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			require.True(t, math.IsNaN(got[i]))
			continue
		}
		require.InDelta(t, scoring.Normalize(v, 0, 90), got[i], 1e-9)
	}
}

package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  *time.Time
	}{
		{"rfc3339", "2024-05-22T10:30:00Z", tptr(time.Date(2024, 5, 22, 10, 30, 0, 0, time.UTC))},
		{"space separated", "2024-05-22 10:30:00", tptr(time.Date(2024, 5, 22, 10, 30, 0, 0, time.UTC))},
		{"no timezone", "2024-05-22T10:30:00", tptr(time.Date(2024, 5, 22, 10, 30, 0, 0, time.UTC))},
		{"date only", "2024-05-22", tptr(time.Date(2024, 5, 22, 0, 0, 0, 0, time.UTC))},
		{"padded", "  2024-05-22  ", tptr(time.Date(2024, 5, 22, 0, 0, 0, 0, time.UTC))},
		{"empty", "", nil},
		{"garbage", "soon", nil},
		{"wrong order", "22/05/2024", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTimestamp(tt.value)
			if tt.want == nil {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.True(t, got.Equal(*tt.want))
		})
	}
}

func TestParseIncomeGrade(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  *int
	}{
		{"integer", "2", iptr(2)},
		{"float coerces", "2.0", iptr(2)},
		{"padded", " 3 ", iptr(3)},
		{"empty", "", nil},
		{"non-numeric", "high", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseIncomeGrade(tt.value)
			if tt.want == nil {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.Equal(t, *tt.want, *got)
		})
	}
}

func tptr(v time.Time) *time.Time { return &v }
func iptr(v int) *int             { return &v }

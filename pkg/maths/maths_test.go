package maths_test

import (
	"math"
	"testing"

	"streamsnip/pkg/maths"
)

func TestRoundFloat64ToInt(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{1.4, 1},
		{1.5, 2},
		{-2.5, -3},
		{math.NaN(), 0},
		{math.Inf(1), 0},
	}

	for _, tc := range tests {
		if got := maths.RoundFloat64ToInt(tc.in); got != tc.want {
			t.Errorf("RoundFloat64ToInt(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestInt64(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
	}{
		{"float", 1048576.0, 1048576},
		{"fractional float", 10.6, 11},
		{"int", 7, 7},
		{"nil", nil, 0},
		{"string", "12", 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := maths.Int64(tc.in); got != tc.want {
				t.Errorf("Int64(%v) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

// Package maths provides numeric conversions for loosely typed engine output.
package maths

import (
	"math"
)

// RoundFloat64ToInt rounds v to the nearest int. NaN and infinities yield 0.
func RoundFloat64ToInt(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}

	return int(math.Round(v))
}

// Int64 converts a JSON number of unknown shape (int, float or nil) to int64.
func Int64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(RoundFloat64ToInt(n))
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

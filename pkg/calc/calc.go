// Package calc provides helpers for progress arithmetic and human readable sizes.
package calc

import (
	"fmt"
	"math"
	"time"
)

const unit = 1024

// Percent returns done/total as a percentage in [0, 100].
// An unknown total yields 0.
func Percent(done, total int64) float64 {
	if total <= 0 || done <= 0 {
		return 0
	}

	return math.Min(float64(done)/float64(total)*100, 100)
}

// ETA estimates the remaining time from the rate observed since started.
func ETA(done, total int64, started time.Time) time.Duration {
	if total <= 0 || done <= 0 {
		return 0
	}

	elapsed := time.Since(started)

	return time.Duration(float64(elapsed) * (float64(total)/float64(done) - 1))
}

// Bytes formats n as a binary size: 512B, 1.5KiB, 3.2MiB.
func Bytes(n int64) string {
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}

	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Rate formats a bytes per second value.
func Rate(bytesPerSec float64) string {
	if bytesPerSec <= 0 || math.IsNaN(bytesPerSec) || math.IsInf(bytesPerSec, 0) {
		return "-"
	}

	return Bytes(int64(bytesPerSec)) + "/s"
}

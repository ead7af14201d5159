package prompt

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"streamsnip/internal/errs"
)

// ParsePadding parses a non-negative number of seconds.
func ParsePadding(s string) (float64, error) {
	pad, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || pad < 0 || math.IsNaN(pad) || math.IsInf(pad, 0) {
		return 0, fmt.Errorf("%w: %q", errs.ErrInvalidPadding, s)
	}

	return pad, nil
}

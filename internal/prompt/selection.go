package prompt

import (
	"slices"
	"strconv"
	"strings"
)

// All selects every clip.
const All = "*"

// Selection is a parsed clip selection. Numbers are 1-based.
type Selection struct {
	Numbers    []int
	Invalid    []string
	OutOfRange []int
}

// ParseSelection parses "1,3-5" or "*" against a list of n clips.
// Numbers are sorted and deduplicated; unparsable parts, reversed ranges and numbers outside 1..n
// are reported separately.
func ParseSelection(input string, n int) Selection {
	input = strings.TrimSpace(input)

	if input == All {
		sel := Selection{Numbers: make([]int, n)}
		for i := range n {
			sel.Numbers[i] = i + 1
		}

		return sel
	}

	var (
		sel  Selection
		nums []int
	)

	for part := range strings.SplitSeq(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		from, to, err := parseRange(part)
		if err != nil || from > to {
			sel.Invalid = append(sel.Invalid, part)

			continue
		}

		for i := max(from, 1); i <= min(to, n); i++ {
			nums = append(nums, i)
		}

		// out-of-range endpoints are kept for the warning; ranges are never expanded beyond n
		if from < 1 || from > n {
			nums = append(nums, from)
		}

		if to != from && (to < 1 || to > n) {
			nums = append(nums, to)
		}
	}

	slices.Sort(nums)

	for _, num := range slices.Compact(nums) {
		if num < 1 || num > n {
			sel.OutOfRange = append(sel.OutOfRange, num)

			continue
		}

		sel.Numbers = append(sel.Numbers, num)
	}

	return sel
}

// parseRange parses "3" or "3-5".
func parseRange(part string) (int, int, error) {
	a, b, isRange := strings.Cut(part, "-")

	from, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, 0, err
	}

	if !isRange {
		return from, from, nil
	}

	to, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return 0, 0, err
	}

	return from, to, nil
}

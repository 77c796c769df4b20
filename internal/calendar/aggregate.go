package calendar

import "github.com/brk3/habitcal/pkg/habit"

// CountByDate pools entries of all habits and counts them per date. Dates
// without entries are absent from the result.
func CountByDate(entries []habit.Entry) map[string]int {
	counts := make(map[string]int)
	for _, e := range entries {
		counts[e.Date]++
	}
	return counts
}

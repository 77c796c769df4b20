package server

import (
	"math"
	"slices"

	"github.com/brk3/habitcal/pkg/habit"
)

const daySec int64 = 24 * 60 * 60

// done reports whether an entry counts towards streaks. A yes/no entry must
// be a yes; any scale or numeric entry counts.
func done(h habit.Habit, value string) bool {
	if h.ResponseType == habit.YesNoType {
		return (habit.YesNo{}).Score(value) == 1
	}
	return true
}

func dayNumber(date string) (int64, bool) {
	d, err := habit.ParseDate(date)
	if err != nil {
		return 0, false
	}
	return d.Unix() / daySec, true
}

// computeStreaks returns the current and longest run of consecutive done
// days. The current streak survives until the end of the day after its last
// entry.
func computeStreaks(h habit.Habit, entries []habit.Entry, today string) (current, longest int) {
	uniq := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		if !done(h, e.Value) {
			continue
		}
		if day, ok := dayNumber(e.Date); ok {
			uniq[day] = struct{}{}
		}
	}
	if len(uniq) == 0 {
		return 0, 0
	}

	// convert to slice, sort and reverse
	days := make([]int64, 0, len(uniq))
	for d := range uniq {
		days = append(days, d)
	}
	slices.Sort(days)
	slices.Reverse(days)

	todayNum, _ := dayNumber(today)

	streakOngoing := days[0] == todayNum || days[0] == todayNum-1
	longest = 1
	run := 1
	if streakOngoing {
		current = 1
	}

	for i := 0; i < len(days)-1; i++ {
		if days[i]-days[i+1] == 1 {
			run++
			longest = max(longest, run)
			if streakOngoing {
				current++
			}
		} else {
			run = 1
			streakOngoing = false
		}
	}

	return current, longest
}

func summarize(h habit.Habit, entries []habit.Entry, today string) habit.HabitSummary {
	sum := habit.HabitSummary{Name: h.Name, Entries: len(entries)}
	sum.CurrentStreak, sum.LongestStreak = computeStreaks(h, entries, today)

	months := map[string]map[string]struct{}{}
	doneDays := map[string]struct{}{}
	for _, e := range entries {
		if sum.FirstLogged == "" || e.Date < sum.FirstLogged {
			sum.FirstLogged = e.Date
		}
		if ts := e.CreatedAt.Unix(); ts > sum.LastWrite {
			sum.LastWrite = ts
		}
		if !done(h, e.Value) || len(e.Date) < 7 {
			continue
		}
		doneDays[e.Date] = struct{}{}
		month := e.Date[:7]
		if months[month] == nil {
			months[month] = map[string]struct{}{}
		}
		months[month][e.Date] = struct{}{}
	}
	sum.TotalDaysDone = len(doneDays)
	for month, days := range months {
		sum.BestMonth = max(sum.BestMonth, len(days))
		if len(today) >= 7 && month == today[:7] {
			sum.ThisMonth = len(days)
		}
	}

	points := series(h, entries)
	if len(points) > 0 {
		total := 0.0
		sum.Highest = math.Inf(-1)
		sum.Lowest = math.Inf(1)
		for _, p := range points {
			total += p.Value
			sum.Highest = math.Max(sum.Highest, p.Value)
			sum.Lowest = math.Min(sum.Lowest, p.Value)
		}
		sum.Average = math.Round(total/float64(len(points))*100) / 100
	}
	return sum
}

// series is the chronological chart data of a habit: one point per entry,
// labelled M/D and scored by the habit's response type.
func series(h habit.Habit, entries []habit.Entry) []habit.Point {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b habit.Entry) int {
		if a.Date != b.Date {
			if a.Date < b.Date {
				return -1
			}
			return 1
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	r, err := h.ResponseType.Response()
	if err != nil {
		r = habit.Numeric{}
	}
	points := make([]habit.Point, 0, len(sorted))
	for _, e := range sorted {
		label := e.Date
		if d, err := habit.ParseDate(e.Date); err == nil {
			label = d.Format("1/2")
		}
		points = append(points, habit.Point{Label: label, Date: e.Date, Value: r.Score(e.Value)})
	}
	return points
}

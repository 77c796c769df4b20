package calendar

import (
	"github.com/brk3/habitcal/pkg/habit"
)

// Window is the number of days, starting today, covered by a projection.
const Window = 30

// Projection is the expected reminder load for one date.
type Projection struct {
	Count  int      `json:"count"`
	Habits []string `json:"habits"`
}

// Project forecasts reminders for the days dates starting at today. It only
// looks at the habits' recurrence rules, never at scheduled notifications.
// Daily habits contribute one reminder per time slot, weekly and monthly
// habits contribute one.
func Project(habits []habit.Habit, today string, days int) (map[string]Projection, error) {
	start, err := habit.ParseDate(today)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Projection)
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		date := habit.DateOf(d)

		var p Projection
		for _, h := range habits {
			if !habit.Occurs(h, d) {
				continue
			}
			if h.NotificationFrequency == habit.Daily {
				p.Count += h.RemindersPerDay()
			} else {
				p.Count++
			}
			p.Habits = appendUnique(p.Habits, h.Name)
		}
		if p.Count > 0 {
			out[date] = p
		}
	}
	return out, nil
}

func appendUnique(names []string, name string) []string {
	for _, n := range names {
		if n == name {
			return names
		}
	}
	return append(names, name)
}

package habit

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

type DayKind string

const (
	Past   DayKind = "past"
	Today  DayKind = "today"
	Future DayKind = "future"
)

// ParseDate parses a YYYY-MM-DD calendar date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Msg: fmt.Sprintf("%q is not YYYY-MM-DD", s)}
	}
	return d, nil
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}

// Classify places date relative to today. Both are YYYY-MM-DD strings so the
// comparison is lexical and independent of time zones.
func Classify(date, today string) DayKind {
	switch {
	case date < today:
		return Past
	case date == today:
		return Today
	default:
		return Future
	}
}

// ISOWeekday numbers the days of the week from Monday=1 to Sunday=7.
func ISOWeekday(d time.Time) int {
	if d.Weekday() == time.Sunday {
		return 7
	}
	return int(d.Weekday())
}

// Occurs reports whether h expects reminders on d: daily habits every day,
// weekly habits on Mondays and monthly habits on the 1st.
func Occurs(h Habit, d time.Time) bool {
	switch h.NotificationFrequency {
	case Daily:
		return true
	case Weekly:
		return d.Weekday() == time.Monday
	case Monthly:
		return d.Day() == 1
	}
	return false
}

// NotFuture rejects dates after today; entries can only be recorded for
// today or earlier.
func NotFuture(date, today string) error {
	if Classify(date, today) == Future {
		return &ValidationError{Field: "date", Msg: fmt.Sprintf("%s is in the future", date)}
	}
	return nil
}

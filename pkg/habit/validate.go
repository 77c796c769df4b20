package habit

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	MaxNameLength  = 50
	MaxTimesPerDay = 24
	DefaultTime    = "12:00"
)

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("bad %s: %s", e.Field, e.Msg)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Normalize validates h and returns the canonical form stored and projected.
// Times are padded with DefaultTime up to TimesPerDay and truncated to it;
// weekly and monthly habits carry exactly one time.
func Normalize(h Habit) (Habit, error) {
	h.Name = strings.TrimSpace(h.Name)
	if h.Name == "" || len([]rune(h.Name)) > MaxNameLength {
		return Habit{}, &ValidationError{Field: "name", Msg: fmt.Sprintf("must be 1-%d characters", MaxNameLength)}
	}
	if _, err := h.ResponseType.Response(); err != nil {
		return Habit{}, err
	}

	switch h.NotificationFrequency {
	case Daily:
	case Weekly, Monthly:
		h.TimesPerDay = 1
	default:
		return Habit{}, &ValidationError{Field: "notification_frequency", Msg: fmt.Sprintf("unknown frequency %q", string(h.NotificationFrequency))}
	}

	if h.TimesPerDay == 0 {
		h.TimesPerDay = 1
	}
	if h.TimesPerDay < 0 || h.TimesPerDay > MaxTimesPerDay {
		return Habit{}, &ValidationError{Field: "times_per_day", Msg: fmt.Sprintf("must be 1-%d", MaxTimesPerDay)}
	}

	times := make([]string, h.TimesPerDay)
	for i := range times {
		t := DefaultTime
		if i < len(h.NotificationTimes) && strings.TrimSpace(h.NotificationTimes[i]) != "" {
			t = strings.TrimSpace(h.NotificationTimes[i])
		}
		if _, _, err := ParseClock(t); err != nil {
			return Habit{}, err
		}
		times[i] = t
	}
	h.NotificationTimes = times
	return h, nil
}

// ParseClock parses an HH:MM reminder time.
func ParseClock(s string) (hour, minute int, err error) {
	t, perr := time.Parse("15:04", s)
	if perr != nil {
		return 0, 0, &ValidationError{Field: "notification_times", Msg: fmt.Sprintf("%q is not HH:MM", s)}
	}
	return t.Hour(), t.Minute(), nil
}

// TimeAt returns the i'th reminder time of h, or DefaultTime when missing.
func (h Habit) TimeAt(i int) string {
	if i < len(h.NotificationTimes) && h.NotificationTimes[i] != "" {
		return h.NotificationTimes[i]
	}
	return DefaultTime
}

// RemindersPerDay is the number of reminders a daily habit fires; unset
// counts as one.
func (h Habit) RemindersPerDay() int {
	if h.TimesPerDay <= 0 {
		return 1
	}
	return h.TimesPerDay
}

// ValidateEntry checks the entry against its parent habit and returns it with
// the value canonicalized.
func ValidateEntry(h Habit, e Entry) (Entry, error) {
	if _, err := ParseDate(e.Date); err != nil {
		return Entry{}, err
	}
	r, err := h.ResponseType.Response()
	if err != nil {
		return Entry{}, err
	}
	v, err := r.Validate(e.Value)
	if err != nil {
		return Entry{}, err
	}
	e.HabitID = h.ID
	e.Value = v
	return e, nil
}

package reminder

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/brk3/habitcal/internal/logger"
	"github.com/brk3/habitcal/internal/storage"
	"github.com/brk3/habitcal/pkg/habit"
	"github.com/google/uuid"
)

// Plan builds the notifications a habit should have scheduled. Daily habits
// get one repeating notification per reminder time, weekly habits fire on
// Mondays and monthly habits on the 1st.
func Plan(h habit.Habit) []habit.Notification {
	switch h.NotificationFrequency {
	case habit.Daily:
		out := make([]habit.Notification, 0, h.RemindersPerDay())
		for i := 0; i < h.RemindersPerDay(); i++ {
			hour, minute := clock(h.TimeAt(i))
			out = append(out, habit.Notification{
				ID:        notificationID(h.ID, i),
				HabitID:   h.ID,
				HabitName: h.Name,
				Title:     "Habit Reminder: " + h.Name,
				Body:      "Time to track your habit: " + h.Name,
				Trigger:   habit.Trigger{Hour: hour, Minute: minute, Repeats: true},
			})
		}
		return out
	case habit.Weekly:
		hour, minute := clock(h.TimeAt(0))
		return []habit.Notification{{
			ID:        notificationID(h.ID, 0),
			HabitID:   h.ID,
			HabitName: h.Name,
			Title:     "Weekly Habit Reminder: " + h.Name,
			Body:      "Time to track your weekly habit: " + h.Name,
			Trigger:   habit.Trigger{Weekday: 1, Hour: hour, Minute: minute, Repeats: true},
		}}
	case habit.Monthly:
		hour, minute := clock(h.TimeAt(0))
		return []habit.Notification{{
			ID:        notificationID(h.ID, 0),
			HabitID:   h.ID,
			HabitName: h.Name,
			Title:     "Monthly Habit Reminder: " + h.Name,
			Body:      "Time to track your monthly habit: " + h.Name,
			Trigger:   habit.Trigger{Day: 1, Hour: hour, Minute: minute, Repeats: true},
		}}
	}
	return nil
}

// clock falls back to the default reminder time for unparsable input.
func clock(s string) (int, int) {
	hour, minute, err := habit.ParseClock(s)
	if err != nil {
		hour, minute, _ = habit.ParseClock(habit.DefaultTime)
	}
	return hour, minute
}

// notificationID is stable per habit and slot so rescheduling replaces
// rather than duplicates.
func notificationID(habitID string, slot int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "%s/%d", habitID, slot)).String()
}

// Fires reports whether a notification with trigger tr goes off on d.
func Fires(tr habit.Trigger, d time.Time) bool {
	switch {
	case tr.Day > 0:
		return d.Day() == tr.Day
	case tr.Weekday > 0:
		return habit.ISOWeekday(d) == tr.Weekday
	default:
		return tr.Repeats
	}
}

// Scheduler keeps the scheduled notifications of each user in the
// notification store.
type Scheduler struct {
	store storage.NotificationStore
}

func NewScheduler(store storage.NotificationStore) *Scheduler {
	return &Scheduler{store: store}
}

// ScheduleHabit replaces every notification of h with a fresh plan.
func (s *Scheduler) ScheduleHabit(ctx context.Context, sess habit.Session, h habit.Habit) error {
	if err := s.CancelHabit(ctx, sess, h.ID); err != nil {
		return err
	}
	for _, n := range Plan(h) {
		if err := s.store.PutNotification(ctx, sess, n); err != nil {
			return fmt.Errorf("schedule notification for habit %s: %w", h.ID, err)
		}
	}
	logger.DebugContext(ctx, "scheduled reminders", "habit", h.ID, "frequency", h.NotificationFrequency)
	return nil
}

func (s *Scheduler) CancelHabit(ctx context.Context, sess habit.Session, habitID string) error {
	list, err := s.store.ListNotifications(ctx, sess)
	if err != nil {
		return fmt.Errorf("list notifications: %w", err)
	}
	for _, n := range list {
		if n.HabitID != habitID {
			continue
		}
		if err := s.store.DeleteNotification(ctx, sess, n.ID); err != nil {
			return fmt.Errorf("cancel notification %s: %w", n.ID, err)
		}
	}
	return nil
}

// List returns every scheduled notification ordered by firing time.
func (s *Scheduler) List(ctx context.Context, sess habit.Session) ([]habit.Notification, error) {
	list, err := s.store.ListNotifications(ctx, sess)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].Trigger, list[j].Trigger
		if a.Hour != b.Hour {
			return a.Hour < b.Hour
		}
		if a.Minute != b.Minute {
			return a.Minute < b.Minute
		}
		return list[i].HabitName < list[j].HabitName
	})
	return list, nil
}

// ForDate returns the scheduled notifications that fire on date.
func (s *Scheduler) ForDate(ctx context.Context, sess habit.Session, date string) ([]habit.Notification, error) {
	d, err := habit.ParseDate(date)
	if err != nil {
		return nil, err
	}
	list, err := s.List(ctx, sess)
	if err != nil {
		return nil, err
	}
	out := []habit.Notification{}
	for _, n := range list {
		if Fires(n.Trigger, d) {
			out = append(out, n)
		}
	}
	return out, nil
}

package calendar

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/brk3/habitcal/internal/logger"
	"github.com/brk3/habitcal/pkg/habit"
	"golang.org/x/sync/errgroup"
)

// Source is the read side of the data access layer the calendar needs.
type Source interface {
	ListHabits(ctx context.Context, sess habit.Session) ([]habit.Habit, error)
	ListEntries(ctx context.Context, sess habit.Session) ([]habit.Entry, error)
	ListEntriesByDate(ctx context.Context, sess habit.Session, date string) ([]habit.EntryWithHabit, error)
}

// Reminders exposes the notifications actually scheduled for a date.
type Reminders interface {
	ForDate(ctx context.Context, sess habit.Session, date string) ([]habit.Notification, error)
}

type Service struct {
	src       Source
	reminders Reminders
	window    int
}

func NewService(src Source, reminders Reminders) *Service {
	return &Service{src: src, reminders: reminders, window: Window}
}

// Calendar holds the merged markings. Errors lists every failed fetch; the
// markings are then built from whatever data did arrive, so an error and an
// empty calendar can be told apart.
type Calendar struct {
	Today    string             `json:"today"`
	Markings map[string]Marking `json:"markings"`
	Errors   []string           `json:"errors,omitempty"`
}

// Load fetches habits and entries for sess concurrently and merges them into
// calendar markings relative to today.
func (s *Service) Load(ctx context.Context, sess habit.Session, today string) (Calendar, error) {
	if _, err := habit.ParseDate(today); err != nil {
		return Calendar{}, err
	}

	var (
		habits            []habit.Habit
		entries           []habit.Entry
		habitErr, entrErr error
	)

	// Each fetch degrades independently, so neither cancels the other.
	var g errgroup.Group
	g.Go(func() error {
		habits, habitErr = s.src.ListHabits(ctx, sess)
		return nil
	})
	g.Go(func() error {
		entries, entrErr = s.src.ListEntries(ctx, sess)
		return nil
	})
	_ = g.Wait()

	cal := Calendar{Today: today}

	counts := map[string]int{}
	if entrErr != nil {
		logger.ErrorContext(ctx, "failed to fetch entries for calendar", "user", sess.UserID, "error", entrErr)
		cal.Errors = append(cal.Errors, fmt.Sprintf("entries: %v", entrErr))
	} else {
		counts = CountByDate(entries)
	}

	projections := map[string]Projection{}
	if habitErr != nil {
		logger.ErrorContext(ctx, "failed to fetch habits for calendar", "user", sess.UserID, "error", habitErr)
		cal.Errors = append(cal.Errors, fmt.Sprintf("habits: %v", habitErr))
	} else {
		p, err := Project(habits, today, s.window)
		if err != nil {
			return Calendar{}, err
		}
		projections = p
	}

	cal.Markings = Merge(counts, projections, today)
	return cal, nil
}

type DayEntry struct {
	ID        string             `json:"id"`
	HabitID   string             `json:"habit_id"`
	HabitName string             `json:"habit_name"`
	Response  habit.ResponseType `json:"response_type"`
	Value     string             `json:"value"`
	Display   string             `json:"display"`
	CreatedAt time.Time          `json:"created_at"`
}

// Slot is one projected reminder on a date.
type Slot struct {
	HabitID   string `json:"habit_id"`
	HabitName string `json:"habit_name"`
	Time      string `json:"time"`
}

// Day is the detail view of a single date.
type Day struct {
	Date          string               `json:"date"`
	Kind          habit.DayKind        `json:"kind"`
	Entries       []DayEntry           `json:"entries"`
	Slots         []Slot               `json:"slots"`
	Notifications []habit.Notification `json:"notifications"`
	Errors        []string             `json:"errors,omitempty"`
}

// Day builds the detail of date. Past dates show recorded entries, future
// dates show projected reminder slots, and today shows both plus the
// notifications currently scheduled.
func (s *Service) Day(ctx context.Context, sess habit.Session, date, today string) (Day, error) {
	d, err := habit.ParseDate(date)
	if err != nil {
		return Day{}, err
	}
	if _, err := habit.ParseDate(today); err != nil {
		return Day{}, err
	}

	day := Day{
		Date:          date,
		Kind:          habit.Classify(date, today),
		Entries:       []DayEntry{},
		Slots:         []Slot{},
		Notifications: []habit.Notification{},
	}

	if day.Kind != habit.Future {
		entries, err := s.src.ListEntriesByDate(ctx, sess, date)
		if err != nil {
			logger.ErrorContext(ctx, "failed to fetch entries for date", "date", date, "error", err)
			day.Errors = append(day.Errors, fmt.Sprintf("entries: %v", err))
		}
		for _, e := range entries {
			day.Entries = append(day.Entries, DayEntry{
				ID:        e.ID,
				HabitID:   e.HabitID,
				HabitName: e.Habit.Name,
				Response:  e.Habit.ResponseType,
				Value:     e.Value,
				Display:   habit.DisplayValue(e.Habit, e.Value),
				CreatedAt: e.Entry.CreatedAt,
			})
		}
	}

	if day.Kind != habit.Past {
		habits, err := s.src.ListHabits(ctx, sess)
		if err != nil {
			logger.ErrorContext(ctx, "failed to fetch habits for date", "date", date, "error", err)
			day.Errors = append(day.Errors, fmt.Sprintf("habits: %v", err))
		}
		day.Slots = Slots(habits, d)
	}

	if day.Kind == habit.Today && s.reminders != nil {
		ns, err := s.reminders.ForDate(ctx, sess, date)
		if err != nil {
			logger.ErrorContext(ctx, "failed to list scheduled notifications", "date", date, "error", err)
			day.Errors = append(day.Errors, fmt.Sprintf("notifications: %v", err))
		} else {
			day.Notifications = ns
		}
	}

	return day, nil
}

// Slots lists the reminder times of every habit occurring on d, ordered by
// time then habit name. Missing times fall back to 12:00.
func Slots(habits []habit.Habit, d time.Time) []Slot {
	slots := []Slot{}
	for _, h := range habits {
		if !habit.Occurs(h, d) {
			continue
		}
		n := 1
		if h.NotificationFrequency == habit.Daily {
			n = h.RemindersPerDay()
		}
		for i := 0; i < n; i++ {
			slots = append(slots, Slot{HabitID: h.ID, HabitName: h.Name, Time: h.TimeAt(i)})
		}
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Time != slots[j].Time {
			return slots[i].Time < slots[j].Time
		}
		return slots[i].HabitName < slots[j].HabitName
	})
	return slots
}

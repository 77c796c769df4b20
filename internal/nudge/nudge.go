package nudge

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/brk3/habitcal/internal/logger"
)

// Pending is a habit with reminders today and nothing logged yet.
type Pending struct {
	Habit string
	Times []string
}

// Digest is one reminder email.
type Digest struct {
	Date     string
	Hours    int
	Expiring []string
	Pending  []Pending
}

func (d Digest) Empty() bool {
	return len(d.Expiring) == 0 && len(d.Pending) == 0
}

// GetHabitsExpiringIn returns the habits whose current streak ends within
// window. A streak lapses a day after its last write.
func GetHabitsExpiringIn(ctx context.Context, q Querier, window time.Duration) ([]string, error) {
	habits, err := q.ListHabits(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing habits: %w", err)
	}

	now := time.Now().UTC()
	var out []string
	for _, h := range habits {
		sum, err := q.GetHabitSummary(ctx, h.ID)
		if err != nil {
			return nil, fmt.Errorf("summary of %s: %w", h.Name, err)
		}
		if sum.HabitSummary.CurrentStreak == 0 {
			continue
		}
		left := time.Unix(sum.HabitSummary.LastWrite, 0).Add(24 * time.Hour).Sub(now)
		if left > 0 && left <= window {
			out = append(out, h.Name)
		}
	}
	return out, nil
}

// PendingOn lists the habits with reminder slots on date that have no entry
// recorded for it.
func PendingOn(ctx context.Context, q Querier, date string) ([]Pending, error) {
	day, err := q.Day(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", date, err)
	}
	if len(day.Errors) > 0 {
		return nil, fmt.Errorf("loading %s: %v", date, day.Errors)
	}

	logged := map[string]bool{}
	for _, e := range day.Entries {
		logged[e.HabitID] = true
	}

	var out []Pending
	idx := map[string]int{}
	for _, s := range day.Slots {
		if logged[s.HabitID] {
			continue
		}
		i, ok := idx[s.HabitID]
		if !ok {
			i = len(out)
			idx[s.HabitID] = i
			out = append(out, Pending{Habit: s.HabitName})
		}
		out[i].Times = append(out[i].Times, s.Time)
	}
	for i := range out {
		out[i].Times = slices.Compact(out[i].Times)
	}
	return out, nil
}

// Nudge builds the digest for today and sends it when there is anything to
// say.
func Nudge(ctx context.Context, q Querier, n Notifier, threshold time.Duration, today string) (Digest, error) {
	d := Digest{Date: today, Hours: int(threshold.Hours())}

	expiring, err := GetHabitsExpiringIn(ctx, q, threshold)
	if err != nil {
		return d, err
	}
	d.Expiring = expiring

	pending, err := PendingOn(ctx, q, today)
	if err != nil {
		return d, err
	}
	d.Pending = pending

	if d.Empty() {
		logger.Info("Nothing to nudge about", "date", today)
		return d, nil
	}
	if err := n.SendNudge(ctx, d); err != nil {
		return d, fmt.Errorf("sending nudge: %w", err)
	}
	logger.Info("Nudge sent", "date", today, "expiring", len(d.Expiring), "pending", len(d.Pending))
	return d, nil
}

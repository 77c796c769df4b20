package nudge

import (
	"context"

	"github.com/brk3/habitcal/internal/server"
	"github.com/brk3/habitcal/pkg/habit"
)

// Querier is the part of the API client a nudge reads from.
type Querier interface {
	ListHabits(ctx context.Context) ([]habit.Habit, error)
	GetHabitSummary(ctx context.Context, habitID string) (*server.HabitSummaryResponse, error)
	Day(ctx context.Context, date string) (*server.DayResponse, error)
}

// Notifier delivers a digest to the user.
type Notifier interface {
	SendNudge(ctx context.Context, d Digest) error
}

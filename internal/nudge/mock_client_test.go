package nudge

import (
	"context"

	"github.com/brk3/habitcal/internal/server"
	"github.com/brk3/habitcal/pkg/habit"
)

type mockClient struct {
	habits  []habit.Habit
	summary map[string]*habit.HabitSummary
	day     *server.DayResponse
	err     error
}

func (f *mockClient) ListHabits(ctx context.Context) ([]habit.Habit, error) {
	return f.habits, f.err
}

func (f *mockClient) GetHabitSummary(ctx context.Context, habitID string) (*server.HabitSummaryResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &server.HabitSummaryResponse{HabitID: habitID, HabitSummary: *f.summary[habitID]}, nil
}

func (f *mockClient) Day(ctx context.Context, date string) (*server.DayResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.day == nil {
		return &server.DayResponse{Date: date}, nil
	}
	return f.day, nil
}

package storage

import (
	"cmp"
	"slices"

	"github.com/brk3/habitcal/pkg/habit"
)

// SortHabits orders habits by creation time, oldest first.
func SortHabits(hs []habit.Habit) {
	slices.SortStableFunc(hs, func(a, b habit.Habit) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func SortByCreated(es []habit.EntryWithHabit) {
	slices.SortStableFunc(es, func(a, b habit.EntryWithHabit) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

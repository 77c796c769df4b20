package server

import (
	"github.com/brk3/habitcal/internal/calendar"
	"github.com/brk3/habitcal/pkg/habit"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type HabitListResponse struct {
	Habits []habit.Habit `json:"habits"`
}

// EntryView is an entry with its value rendered for display.
type EntryView struct {
	habit.Entry
	Display string `json:"display"`
}

type HabitEntriesResponse struct {
	HabitID string      `json:"habit_id"`
	Entries []EntryView `json:"entries"`
}

// DateEntryView is an entry joined to its habit, as listed for one date.
type DateEntryView struct {
	habit.EntryWithHabit
	Display string `json:"display"`
}

type DateEntriesResponse struct {
	Date    string          `json:"date"`
	Entries []DateEntryView `json:"entries"`
}

type HabitSummaryResponse struct {
	HabitID      string             `json:"habit_id"`
	HabitSummary habit.HabitSummary `json:"habit_summary"`
	Series       []habit.Point      `json:"series"`
}

type CalendarResponse = calendar.Calendar

type DayResponse = calendar.Day

type NotificationListResponse struct {
	Notifications []habit.Notification `json:"notifications"`
}

type EntryRequest struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

type APIKeyInfo struct {
	Prefix string `json:"prefix"`
}

type APIKeyListResponse struct {
	Keys []APIKeyInfo `json:"keys"`
}

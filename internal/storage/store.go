package storage

import (
	"context"
	"errors"

	"github.com/brk3/habitcal/pkg/habit"
	"golang.org/x/oauth2"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrNoSession = errors.New("no authenticated user")
)

// Store is the data access layer. Every habit, entry and notification call is
// scoped by the session passed in; an anonymous session reads as empty.
type Store interface {
	HabitStore
	EntryStore
	NotificationStore
	CredentialStore
	Close() error
}

type HabitStore interface {
	CreateHabit(ctx context.Context, sess habit.Session, h habit.Habit) (habit.Habit, error)
	UpdateHabit(ctx context.Context, sess habit.Session, h habit.Habit) (habit.Habit, error)
	// DeleteHabit removes the habit and all of its entries.
	DeleteHabit(ctx context.Context, sess habit.Session, habitID string) error
	GetHabit(ctx context.Context, sess habit.Session, habitID string) (habit.Habit, error)
	ListHabits(ctx context.Context, sess habit.Session) ([]habit.Habit, error)
}

type EntryStore interface {
	AddEntry(ctx context.Context, sess habit.Session, e habit.Entry) (habit.Entry, error)
	// ListEntries returns every entry of every habit owned by the session.
	ListEntries(ctx context.Context, sess habit.Session) ([]habit.Entry, error)
	// ListEntriesByHabit returns a habit's entries in ascending date order.
	ListEntriesByHabit(ctx context.Context, sess habit.Session, habitID string) ([]habit.Entry, error)
	ListEntriesByDate(ctx context.Context, sess habit.Session, date string) ([]habit.EntryWithHabit, error)
}

type NotificationStore interface {
	ListNotifications(ctx context.Context, sess habit.Session) ([]habit.Notification, error)
	PutNotification(ctx context.Context, sess habit.Session, n habit.Notification) error
	DeleteNotification(ctx context.Context, sess habit.Session, id string) error
}

type CredentialStore interface {
	PutAPIKey(keyHash, userID string) error
	GetAPIKey(keyHash string) (userID string, found bool, err error)
	ListAPIKeyHashes(userID string) ([]string, error)
	DeleteAPIKey(keyHash string) error

	PutRefreshToken(userID string, tok *oauth2.Token) error
	GetRefreshToken(userID string) (*oauth2.Token, bool, error)
	DeleteRefreshToken(userID string) error
}

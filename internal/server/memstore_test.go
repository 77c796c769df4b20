package server

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/brk3/habitcal/internal/storage"
	"github.com/brk3/habitcal/pkg/habit"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

type memStore struct {
	mu            sync.RWMutex
	habits        map[string]habit.Habit // by habit id
	entries       []habit.Entry
	notifications map[string]map[string]habit.Notification // user -> id
	apiKeys       map[string]string                        // hash -> user
	tokens        map[string]*oauth2.Token

	// failEntries makes every entry read fail.
	failEntries bool
}

var errMemFailure = errors.New("memstore: injected failure")

func newMemStore() *memStore {
	return &memStore{
		habits:        map[string]habit.Habit{},
		notifications: map[string]map[string]habit.Notification{},
		apiKeys:       map[string]string{},
		tokens:        map[string]*oauth2.Token{},
	}
}

func (m *memStore) owned(sess habit.Session, habitID string) (habit.Habit, bool) {
	h, ok := m.habits[habitID]
	if !ok || sess.Anonymous() || h.UserID != sess.UserID {
		return habit.Habit{}, false
	}
	return h, true
}

func (m *memStore) CreateHabit(_ context.Context, sess habit.Session, h habit.Habit) (habit.Habit, error) {
	if sess.Anonymous() {
		return habit.Habit{}, storage.ErrNoSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	h.ID = uuid.NewString()
	h.UserID = sess.UserID
	h.CreatedAt = time.Now().UTC()
	m.habits[h.ID] = h
	return h, nil
}

func (m *memStore) UpdateHabit(_ context.Context, sess habit.Session, h habit.Habit) (habit.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.owned(sess, h.ID)
	if !ok {
		return habit.Habit{}, storage.ErrNotFound
	}
	h.UserID = existing.UserID
	h.CreatedAt = existing.CreatedAt
	m.habits[h.ID] = h
	return h, nil
}

func (m *memStore) DeleteHabit(_ context.Context, sess habit.Session, habitID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.owned(sess, habitID); !ok {
		return storage.ErrNotFound
	}
	delete(m.habits, habitID)
	m.entries = slices.DeleteFunc(m.entries, func(e habit.Entry) bool { return e.HabitID == habitID })
	return nil
}

func (m *memStore) GetHabit(_ context.Context, sess habit.Session, habitID string) (habit.Habit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.owned(sess, habitID)
	if !ok {
		return habit.Habit{}, storage.ErrNotFound
	}
	return h, nil
}

func (m *memStore) ListHabits(_ context.Context, sess habit.Session) ([]habit.Habit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []habit.Habit{}
	for _, h := range m.habits {
		if !sess.Anonymous() && h.UserID == sess.UserID {
			out = append(out, h)
		}
	}
	storage.SortHabits(out)
	return out, nil
}

func (m *memStore) AddEntry(_ context.Context, sess habit.Session, e habit.Entry) (habit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.owned(sess, e.HabitID); !ok {
		return habit.Entry{}, storage.ErrNotFound
	}
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *memStore) ListEntries(_ context.Context, sess habit.Session) ([]habit.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failEntries {
		return nil, errMemFailure
	}
	out := []habit.Entry{}
	for _, e := range m.entries {
		if _, ok := m.owned(sess, e.HabitID); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) ListEntriesByHabit(_ context.Context, sess habit.Session, habitID string) ([]habit.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failEntries {
		return nil, errMemFailure
	}
	out := []habit.Entry{}
	if _, ok := m.owned(sess, habitID); !ok {
		return out, nil
	}
	for _, e := range m.entries {
		if e.HabitID == habitID {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b habit.Entry) int {
		if a.Date < b.Date {
			return -1
		}
		if a.Date > b.Date {
			return 1
		}
		return 0
	})
	return out, nil
}

func (m *memStore) ListEntriesByDate(_ context.Context, sess habit.Session, date string) ([]habit.EntryWithHabit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failEntries {
		return nil, errMemFailure
	}
	out := []habit.EntryWithHabit{}
	for _, e := range m.entries {
		h, ok := m.owned(sess, e.HabitID)
		if ok && e.Date == date {
			out = append(out, habit.EntryWithHabit{Entry: e, Habit: h})
		}
	}
	return out, nil
}

func (m *memStore) ListNotifications(_ context.Context, sess habit.Session) ([]habit.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []habit.Notification{}
	if sess.Anonymous() {
		return out, nil
	}
	for _, n := range m.notifications[sess.UserID] {
		out = append(out, n)
	}
	return out, nil
}

func (m *memStore) PutNotification(_ context.Context, sess habit.Session, n habit.Notification) error {
	if sess.Anonymous() {
		return storage.ErrNoSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.notifications[sess.UserID] == nil {
		m.notifications[sess.UserID] = map[string]habit.Notification{}
	}
	m.notifications[sess.UserID][n.ID] = n
	return nil
}

func (m *memStore) DeleteNotification(_ context.Context, sess habit.Session, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.notifications[sess.UserID], id)
	return nil
}

func (m *memStore) PutAPIKey(keyHash, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiKeys[keyHash] = userID
	return nil
}

func (m *memStore) GetAPIKey(keyHash string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	userID, ok := m.apiKeys[keyHash]
	return userID, ok, nil
}

func (m *memStore) ListAPIKeyHashes(userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []string{}
	for hash, owner := range m.apiKeys {
		if owner == userID {
			out = append(out, hash)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (m *memStore) DeleteAPIKey(keyHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.apiKeys, keyHash)
	return nil
}

func (m *memStore) PutRefreshToken(userID string, tok *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[userID] = tok
	return nil
}

func (m *memStore) GetRefreshToken(userID string) (*oauth2.Token, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tok, ok := m.tokens[userID]
	return tok, ok, nil
}

func (m *memStore) DeleteRefreshToken(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, userID)
	return nil
}

func (m *memStore) Close() error {
	return nil
}

var _ storage.Store = (*memStore)(nil)

package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/brk3/habitcal/internal/logger"
	"github.com/brk3/habitcal/internal/storage"
	"github.com/brk3/habitcal/pkg/habit"
	"github.com/google/uuid"
	pq "github.com/lib/pq"
	"golang.org/x/oauth2"
)

//go:embed schema.sql
var schema string

var ErrInvalidConnectionString = errors.New("invalid PostgreSQL connection string")

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open connects to Postgres and applies the schema. The schema is idempotent
// so Open is safe to call against an existing database.
func Open(ctx context.Context, connStr string) (*Store, error) {
	if _, err := pq.NewConnector(connStr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConnectionString, err)
	}
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	logger.Debug("postgres store ready")
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const habitColumns = `id, user_id, name, response_type, notification_frequency, times_per_day, notification_times, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanHabit(row scanner) (habit.Habit, error) {
	var h habit.Habit
	var times []string
	err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.ResponseType, &h.NotificationFrequency,
		&h.TimesPerDay, pq.Array(&times), &h.CreatedAt)
	if err != nil {
		return habit.Habit{}, err
	}
	h.NotificationTimes = times
	h.CreatedAt = h.CreatedAt.UTC()
	return h, nil
}

func (s *Store) CreateHabit(ctx context.Context, sess habit.Session, h habit.Habit) (habit.Habit, error) {
	if sess.Anonymous() {
		return habit.Habit{}, storage.ErrNoSession
	}
	h.ID = uuid.NewString()
	h.UserID = sess.UserID
	h.CreatedAt = s.now().UTC()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO habits (id, user_id, name, response_type, notification_frequency, times_per_day, notification_times, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		h.ID, h.UserID, h.Name, string(h.ResponseType), string(h.NotificationFrequency),
		h.TimesPerDay, pq.Array(h.NotificationTimes), h.CreatedAt)
	if err != nil {
		return habit.Habit{}, fmt.Errorf("insert habit: %w", err)
	}
	return h, nil
}

func (s *Store) UpdateHabit(ctx context.Context, sess habit.Session, h habit.Habit) (habit.Habit, error) {
	if sess.Anonymous() {
		return habit.Habit{}, storage.ErrNoSession
	}
	row := s.db.QueryRowContext(ctx, `
UPDATE habits SET name = $3, response_type = $4, notification_frequency = $5,
       times_per_day = $6, notification_times = $7
WHERE id = $1 AND user_id = $2
RETURNING `+habitColumns,
		h.ID, sess.UserID, h.Name, string(h.ResponseType), string(h.NotificationFrequency),
		h.TimesPerDay, pq.Array(h.NotificationTimes))
	updated, err := scanHabit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return habit.Habit{}, storage.ErrNotFound
	}
	if err != nil {
		return habit.Habit{}, fmt.Errorf("update habit: %w", err)
	}
	return updated, nil
}

// DeleteHabit relies on the habit_entries foreign key to cascade.
func (s *Store) DeleteHabit(ctx context.Context, sess habit.Session, habitID string) error {
	if sess.Anonymous() {
		return storage.ErrNoSession
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM habits WHERE id = $1 AND user_id = $2`, habitID, sess.UserID)
	if err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) GetHabit(ctx context.Context, sess habit.Session, habitID string) (habit.Habit, error) {
	if sess.Anonymous() {
		return habit.Habit{}, storage.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE id = $1 AND user_id = $2`, habitID, sess.UserID)
	h, err := scanHabit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return habit.Habit{}, storage.ErrNotFound
	}
	if err != nil {
		return habit.Habit{}, fmt.Errorf("get habit: %w", err)
	}
	return h, nil
}

func (s *Store) ListHabits(ctx context.Context, sess habit.Session) ([]habit.Habit, error) {
	out := []habit.Habit{}
	if sess.Anonymous() {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE user_id = $1 ORDER BY created_at, id`, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) AddEntry(ctx context.Context, sess habit.Session, e habit.Entry) (habit.Entry, error) {
	if sess.Anonymous() {
		return habit.Entry{}, storage.ErrNoSession
	}
	e.ID = uuid.NewString()
	e.CreatedAt = s.now().UTC()

	// The habit ownership check and the insert share one statement so an entry
	// can never be attached to another user's habit.
	res, err := s.db.ExecContext(ctx, `
INSERT INTO habit_entries (id, habit_id, date, value, created_at)
SELECT $1::text, h.id, $3::date, $4::text, $5::timestamptz FROM habits h WHERE h.id = $2 AND h.user_id = $6`,
		e.ID, e.HabitID, e.Date, e.Value, e.CreatedAt, sess.UserID)
	if err != nil {
		return habit.Entry{}, fmt.Errorf("insert entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return habit.Entry{}, err
	}
	if n == 0 {
		return habit.Entry{}, storage.ErrNotFound
	}
	return e, nil
}

const entrySelect = `
SELECT e.id, e.habit_id, to_char(e.date, 'YYYY-MM-DD'), e.value, e.created_at
FROM habit_entries e INNER JOIN habits h ON h.id = e.habit_id
WHERE h.user_id = $1`

func (s *Store) ListEntries(ctx context.Context, sess habit.Session) ([]habit.Entry, error) {
	if sess.Anonymous() {
		return []habit.Entry{}, nil
	}
	return s.queryEntries(ctx, entrySelect+` ORDER BY e.date, e.created_at`, sess.UserID)
}

func (s *Store) ListEntriesByHabit(ctx context.Context, sess habit.Session, habitID string) ([]habit.Entry, error) {
	if sess.Anonymous() {
		return []habit.Entry{}, nil
	}
	return s.queryEntries(ctx, entrySelect+` AND e.habit_id = $2 ORDER BY e.date, e.created_at`, sess.UserID, habitID)
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]habit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	out := []habit.Entry{}
	for rows.Next() {
		var e habit.Entry
		if err := rows.Scan(&e.ID, &e.HabitID, &e.Date, &e.Value, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ListEntriesByDate(ctx context.Context, sess habit.Session, date string) ([]habit.EntryWithHabit, error) {
	out := []habit.EntryWithHabit{}
	if sess.Anonymous() {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT e.id, e.habit_id, to_char(e.date, 'YYYY-MM-DD'), e.value, e.created_at,
       h.id, h.user_id, h.name, h.response_type, h.notification_frequency, h.times_per_day,
       h.notification_times, h.created_at
FROM habit_entries e INNER JOIN habits h ON h.id = e.habit_id
WHERE h.user_id = $1 AND e.date = $2::date
ORDER BY e.created_at`, sess.UserID, date)
	if err != nil {
		return nil, fmt.Errorf("list entries by date: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ew habit.EntryWithHabit
		var times []string
		err := rows.Scan(&ew.ID, &ew.HabitID, &ew.Date, &ew.Value, &ew.Entry.CreatedAt,
			&ew.Habit.ID, &ew.Habit.UserID, &ew.Habit.Name, &ew.Habit.ResponseType,
			&ew.Habit.NotificationFrequency, &ew.Habit.TimesPerDay, pq.Array(&times), &ew.Habit.CreatedAt)
		if err != nil {
			return nil, err
		}
		ew.Habit.NotificationTimes = times
		ew.Entry.CreatedAt = ew.Entry.CreatedAt.UTC()
		ew.Habit.CreatedAt = ew.Habit.CreatedAt.UTC()
		out = append(out, ew)
	}
	return out, rows.Err()
}

func (s *Store) ListNotifications(ctx context.Context, sess habit.Session) ([]habit.Notification, error) {
	out := []habit.Notification{}
	if sess.Anonymous() {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, habit_id, habit_name, title, body, hour, minute, weekday, day, repeats
FROM notifications WHERE user_id = $1 ORDER BY habit_id, hour, minute, id`, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n habit.Notification
		err := rows.Scan(&n.ID, &n.HabitID, &n.HabitName, &n.Title, &n.Body,
			&n.Trigger.Hour, &n.Trigger.Minute, &n.Trigger.Weekday, &n.Trigger.Day, &n.Trigger.Repeats)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) PutNotification(ctx context.Context, sess habit.Session, n habit.Notification) error {
	if sess.Anonymous() {
		return storage.ErrNoSession
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO notifications (id, user_id, habit_id, habit_name, title, body, hour, minute, weekday, day, repeats)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET habit_id = EXCLUDED.habit_id, habit_name = EXCLUDED.habit_name,
    title = EXCLUDED.title, body = EXCLUDED.body, hour = EXCLUDED.hour, minute = EXCLUDED.minute,
    weekday = EXCLUDED.weekday, day = EXCLUDED.day, repeats = EXCLUDED.repeats`,
		n.ID, sess.UserID, n.HabitID, n.HabitName, n.Title, n.Body,
		n.Trigger.Hour, n.Trigger.Minute, n.Trigger.Weekday, n.Trigger.Day, n.Trigger.Repeats)
	if err != nil {
		return fmt.Errorf("put notification: %w", err)
	}
	return nil
}

func (s *Store) DeleteNotification(ctx context.Context, sess habit.Session, id string) error {
	if sess.Anonymous() {
		return storage.ErrNoSession
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, sess.UserID)
	return err
}

func (s *Store) PutAPIKey(keyHash, userID string) error {
	_, err := s.db.Exec(`INSERT INTO api_keys (key_hash, user_id) VALUES ($1, $2)
ON CONFLICT (key_hash) DO UPDATE SET user_id = EXCLUDED.user_id`, keyHash, userID)
	return err
}

func (s *Store) GetAPIKey(keyHash string) (string, bool, error) {
	var userID string
	err := s.db.QueryRow(`SELECT user_id FROM api_keys WHERE key_hash = $1`, keyHash).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return userID, true, nil
}

func (s *Store) ListAPIKeyHashes(userID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT key_hash FROM api_keys WHERE user_id = $1 ORDER BY key_hash`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

func (s *Store) DeleteAPIKey(keyHash string) error {
	_, err := s.db.Exec(`DELETE FROM api_keys WHERE key_hash = $1`, keyHash)
	return err
}

func (s *Store) PutRefreshToken(userID string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO oauth_tokens (user_id, token) VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET token = EXCLUDED.token`, userID, data)
	return err
}

func (s *Store) GetRefreshToken(userID string) (*oauth2.Token, bool, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT token FROM oauth_tokens WHERE user_id = $1`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, false, err
	}
	return &tok, true, nil
}

func (s *Store) DeleteRefreshToken(userID string) error {
	_, err := s.db.Exec(`DELETE FROM oauth_tokens WHERE user_id = $1`, userID)
	return err
}

var _ storage.Store = (*Store)(nil)

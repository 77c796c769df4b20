package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brk3/habitcal/internal/storage"
	"github.com/brk3/habitcal/pkg/habit"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	rootBucket          = "users"
	habitsBucket        = "habits"
	entriesBucket       = "entries"
	notificationsBucket = "notifications"
	apiKeysBucket       = "api_keys"
	tokensBucket        = "oauth_tokens"
)

type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, now: time.Now}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{rootBucket, apiKeysBucket, tokensBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// userBucket returns the named per-user bucket, creating it in writable
// transactions. In read-only transactions a missing bucket yields nil.
func userBucket(tx *bbolt.Tx, userID, name string) (*bbolt.Bucket, error) {
	users := tx.Bucket([]byte(rootBucket))
	if !tx.Writable() {
		u := users.Bucket([]byte(userID))
		if u == nil {
			return nil, nil
		}
		return u.Bucket([]byte(name)), nil
	}
	u, err := users.CreateBucketIfNotExists([]byte(userID))
	if err != nil {
		return nil, err
	}
	return u.CreateBucketIfNotExists([]byte(name))
}

func entryPrefix(habitID string) []byte {
	return []byte(habitID + "/")
}

func entryKey(e habit.Entry) []byte {
	return fmt.Appendf(nil, "%s/%s/%020d/%s", e.HabitID, e.Date, e.CreatedAt.UnixNano(), e.ID)
}

func (s *Store) CreateHabit(ctx context.Context, sess habit.Session, h habit.Habit) (habit.Habit, error) {
	if err := ctx.Err(); err != nil {
		return habit.Habit{}, err
	}
	if sess.Anonymous() {
		return habit.Habit{}, storage.ErrNoSession
	}
	h.ID = uuid.NewString()
	h.UserID = sess.UserID
	h.CreatedAt = s.now().UTC()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := userBucket(tx, sess.UserID, habitsBucket)
		if err != nil {
			return err
		}
		val, err := json.Marshal(h)
		if err != nil {
			return err
		}
		return b.Put([]byte(h.ID), val)
	})
	if err != nil {
		return habit.Habit{}, err
	}
	return h, nil
}

func (s *Store) UpdateHabit(ctx context.Context, sess habit.Session, h habit.Habit) (habit.Habit, error) {
	if err := ctx.Err(); err != nil {
		return habit.Habit{}, err
	}
	if sess.Anonymous() {
		return habit.Habit{}, storage.ErrNoSession
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := userBucket(tx, sess.UserID, habitsBucket)
		if err != nil {
			return err
		}
		cur := b.Get([]byte(h.ID))
		if cur == nil {
			return storage.ErrNotFound
		}
		var existing habit.Habit
		if err := json.Unmarshal(cur, &existing); err != nil {
			return err
		}
		h.UserID = existing.UserID
		h.CreatedAt = existing.CreatedAt
		val, err := json.Marshal(h)
		if err != nil {
			return err
		}
		return b.Put([]byte(h.ID), val)
	})
	if err != nil {
		return habit.Habit{}, err
	}
	return h, nil
}

func (s *Store) DeleteHabit(ctx context.Context, sess habit.Session, habitID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sess.Anonymous() {
		return storage.ErrNoSession
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		hb, err := userBucket(tx, sess.UserID, habitsBucket)
		if err != nil {
			return err
		}
		if hb.Get([]byte(habitID)) == nil {
			return storage.ErrNotFound
		}
		if err := hb.Delete([]byte(habitID)); err != nil {
			return err
		}

		eb, err := userBucket(tx, sess.UserID, entriesBucket)
		if err != nil {
			return err
		}
		c := eb.Cursor()
		prefix := entryPrefix(habitID)
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Seek(prefix) {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetHabit(ctx context.Context, sess habit.Session, habitID string) (habit.Habit, error) {
	if err := ctx.Err(); err != nil {
		return habit.Habit{}, err
	}
	if sess.Anonymous() {
		return habit.Habit{}, storage.ErrNotFound
	}
	var h habit.Habit
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := userBucket(tx, sess.UserID, habitsBucket)
		if err != nil {
			return err
		}
		if b == nil {
			return storage.ErrNotFound
		}
		v := b.Get([]byte(habitID))
		if v == nil {
			return storage.ErrNotFound
		}
		return json.Unmarshal(v, &h)
	})
	return h, err
}

func (s *Store) ListHabits(ctx context.Context, sess habit.Session) ([]habit.Habit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []habit.Habit{}
	if sess.Anonymous() {
		return out, nil
	}
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := userBucket(tx, sess.UserID, habitsBucket)
		if err != nil || b == nil {
			return err
		}
		return b.ForEach(func(_, v []byte) error {
			var h habit.Habit
			if err := json.Unmarshal(v, &h); err != nil {
				return err
			}
			out = append(out, h)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	storage.SortHabits(out)
	return out, nil
}

func (s *Store) AddEntry(ctx context.Context, sess habit.Session, e habit.Entry) (habit.Entry, error) {
	if err := ctx.Err(); err != nil {
		return habit.Entry{}, err
	}
	if sess.Anonymous() {
		return habit.Entry{}, storage.ErrNoSession
	}
	e.ID = uuid.NewString()
	e.CreatedAt = s.now().UTC()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		hb, err := userBucket(tx, sess.UserID, habitsBucket)
		if err != nil {
			return err
		}
		if hb.Get([]byte(e.HabitID)) == nil {
			return storage.ErrNotFound
		}
		eb, err := userBucket(tx, sess.UserID, entriesBucket)
		if err != nil {
			return err
		}
		val, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return eb.Put(entryKey(e), val)
	})
	if err != nil {
		return habit.Entry{}, err
	}
	return e, nil
}

func (s *Store) ListEntries(ctx context.Context, sess habit.Session) ([]habit.Entry, error) {
	return s.scanEntries(ctx, sess, nil)
}

func (s *Store) ListEntriesByHabit(ctx context.Context, sess habit.Session, habitID string) ([]habit.Entry, error) {
	return s.scanEntries(ctx, sess, entryPrefix(habitID))
}

func (s *Store) scanEntries(ctx context.Context, sess habit.Session, prefix []byte) ([]habit.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []habit.Entry{}
	if sess.Anonymous() {
		return out, nil
	}
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := userBucket(tx, sess.UserID, entriesBucket)
		if err != nil || b == nil {
			return err
		}
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var e habit.Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListEntriesByDate(ctx context.Context, sess habit.Session, date string) ([]habit.EntryWithHabit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []habit.EntryWithHabit{}
	if sess.Anonymous() {
		return out, nil
	}
	err := s.db.View(func(tx *bbolt.Tx) error {
		hb, err := userBucket(tx, sess.UserID, habitsBucket)
		if err != nil || hb == nil {
			return err
		}
		eb, err := userBucket(tx, sess.UserID, entriesBucket)
		if err != nil || eb == nil {
			return err
		}
		return hb.ForEach(func(id, hv []byte) error {
			var h habit.Habit
			if err := json.Unmarshal(hv, &h); err != nil {
				return err
			}
			c := eb.Cursor()
			prefix := []byte(string(id) + "/" + date + "/")
			for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
				var e habit.Entry
				if err := json.Unmarshal(v, &e); err != nil {
					return err
				}
				out = append(out, habit.EntryWithHabit{Entry: e, Habit: h})
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	storage.SortByCreated(out)
	return out, nil
}

func (s *Store) ListNotifications(ctx context.Context, sess habit.Session) ([]habit.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []habit.Notification{}
	if sess.Anonymous() {
		return out, nil
	}
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := userBucket(tx, sess.UserID, notificationsBucket)
		if err != nil || b == nil {
			return err
		}
		return b.ForEach(func(_, v []byte) error {
			var n habit.Notification
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			out = append(out, n)
			return nil
		})
	})
	return out, err
}

func (s *Store) PutNotification(ctx context.Context, sess habit.Session, n habit.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sess.Anonymous() {
		return storage.ErrNoSession
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := userBucket(tx, sess.UserID, notificationsBucket)
		if err != nil {
			return err
		}
		val, err := json.Marshal(n)
		if err != nil {
			return err
		}
		return b.Put([]byte(n.ID), val)
	})
}

func (s *Store) DeleteNotification(ctx context.Context, sess habit.Session, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sess.Anonymous() {
		return storage.ErrNoSession
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := userBucket(tx, sess.UserID, notificationsBucket)
		if err != nil {
			return err
		}
		return b.Delete([]byte(id))
	})
}

var _ storage.Store = (*Store)(nil)

package habit

import "time"

type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

type Habit struct {
	ID                    string       `json:"id"`
	UserID                string       `json:"user_id"`
	Name                  string       `json:"name"`
	ResponseType          ResponseType `json:"response_type"`
	NotificationFrequency Frequency    `json:"notification_frequency"`
	TimesPerDay           int          `json:"times_per_day"`
	NotificationTimes     []string     `json:"notification_times"`
	CreatedAt             time.Time    `json:"created_at"`
}

// Entry is one recorded observation of a habit. Value holds the canonical
// string form produced by the habit's Response.
type Entry struct {
	ID        string    `json:"id"`
	HabitID   string    `json:"habit_id"`
	Date      string    `json:"date"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// EntryWithHabit is an entry joined to its parent habit.
type EntryWithHabit struct {
	Entry
	Habit Habit `json:"habits"`
}

// Trigger describes when a notification fires. Weekday counts from Monday=1
// to Sunday=7; zero Weekday and Day mean every day.
type Trigger struct {
	Hour    int  `json:"hour"`
	Minute  int  `json:"minute"`
	Weekday int  `json:"weekday,omitempty"`
	Day     int  `json:"day,omitempty"`
	Repeats bool `json:"repeats"`
}

// Notification is a reminder held by the scheduler.
type Notification struct {
	ID        string  `json:"id"`
	HabitID   string  `json:"habit_id"`
	HabitName string  `json:"habit_name"`
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	Trigger   Trigger `json:"trigger"`
}

type HabitSummary struct {
	Name          string  `json:"name"`
	CurrentStreak int     `json:"current_streak"`
	LongestStreak int     `json:"longest_streak"`
	FirstLogged   string  `json:"first_logged"`
	TotalDaysDone int     `json:"total_days_done"`
	BestMonth     int     `json:"best_month"`
	ThisMonth     int     `json:"this_month"`
	Entries       int     `json:"entries"`
	Average       float64 `json:"average"`
	Highest       float64 `json:"highest"`
	Lowest        float64 `json:"lowest"`
	LastWrite     int64   `json:"last_write"`
}

type Point struct {
	Label string  `json:"label"`
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Session identifies the caller of every data access operation. A zero
// Session is anonymous and sees no data.
type Session struct {
	UserID string
}

func (s Session) Anonymous() bool {
	return s.UserID == ""
}

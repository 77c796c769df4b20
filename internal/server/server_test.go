package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brk3/habitcal/internal/calendar"
	"github.com/brk3/habitcal/internal/config"
	"github.com/brk3/habitcal/internal/storage"
	"github.com/brk3/habitcal/pkg/habit"
)

// testNow is a Monday.
var testNow = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

func TestListHabits_Empty(t *testing.T) {
	h := newTestServer(t, newMemStore())
	rr := mockRequest(h, http.MethodGet, "/habits/", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d want 200", rr.Code)
	}
	var resp HabitListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(resp.Habits) != 0 {
		t.Fatalf("len=%d want 0", len(resp.Habits))
	}
}

func TestCreateHabit_Normalizes(t *testing.T) {
	st := newMemStore()
	h := newTestServer(t, st)

	rr := mockRequest(h, http.MethodPost, "/habits/", habit.Habit{
		Name:                  "  Meditate ",
		ResponseType:          habit.YesNoType,
		NotificationFrequency: habit.Daily,
		TimesPerDay:           2,
		NotificationTimes:     []string{"07:30"},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("got %d want 201, body: %s", rr.Code, rr.Body.String())
	}
	var created habit.Habit
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created habit has no id")
	}
	if created.Name != "Meditate" {
		t.Fatalf("name=%q want Meditate", created.Name)
	}
	if created.UserID != localUserID {
		t.Fatalf("user_id=%q want %q", created.UserID, localUserID)
	}
	if len(created.NotificationTimes) != 2 || created.NotificationTimes[1] != habit.DefaultTime {
		t.Fatalf("notification_times=%v want [07:30 12:00]", created.NotificationTimes)
	}

	rr = mockRequest(h, http.MethodGet, "/habits/"+created.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: got %d want 200", rr.Code)
	}
}

func TestCreateHabit_TimesPerDayZeroBecomesOne(t *testing.T) {
	h := newTestServer(t, newMemStore())
	created := createHabit(t, h, habit.Habit{
		Name:                  "Read",
		ResponseType:          habit.NumericType,
		NotificationFrequency: habit.Daily,
	})
	if created.TimesPerDay != 1 {
		t.Fatalf("times_per_day=%d want 1", created.TimesPerDay)
	}
}

func TestCreateHabit_Invalid(t *testing.T) {
	cases := []struct {
		name string
		body any
	}{
		{"bad json", "not an object"},
		{"empty name", habit.Habit{ResponseType: habit.YesNoType, NotificationFrequency: habit.Daily}},
		{"unknown response type", habit.Habit{Name: "x", ResponseType: "colour", NotificationFrequency: habit.Daily}},
		{"unknown frequency", habit.Habit{Name: "x", ResponseType: habit.YesNoType, NotificationFrequency: "hourly"}},
		{"too many times", habit.Habit{Name: "x", ResponseType: habit.YesNoType, NotificationFrequency: habit.Daily, TimesPerDay: 25}},
		{"bad time", habit.Habit{Name: "x", ResponseType: habit.YesNoType, NotificationFrequency: habit.Daily, NotificationTimes: []string{"25:00"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := newMemStore()
			h := newTestServer(t, st)
			rr := mockRequest(h, http.MethodPost, "/habits/", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("got %d want 400, body: %s", rr.Code, rr.Body.String())
			}
			if len(st.habits) != 0 {
				t.Fatalf("invalid habit reached the store: %v", st.habits)
			}
		})
	}
}

func TestCreateHabit_SchedulesReminders(t *testing.T) {
	h := newTestServer(t, newMemStore())
	createHabit(t, h, habit.Habit{
		Name:                  "Water",
		ResponseType:          habit.NumericType,
		NotificationFrequency: habit.Daily,
		TimesPerDay:           3,
		NotificationTimes:     []string{"18:00", "08:00", "12:30"},
	})

	rr := mockRequest(h, http.MethodGet, "/notifications", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d want 200", rr.Code)
	}
	var resp NotificationListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(resp.Notifications) != 3 {
		t.Fatalf("got %d notifications want 3", len(resp.Notifications))
	}
	if first := resp.Notifications[0].Trigger; first.Hour != 8 || first.Minute != 0 {
		t.Fatalf("first notification fires at %02d:%02d want 08:00", first.Hour, first.Minute)
	}
}

func TestUpdateHabit(t *testing.T) {
	st := newMemStore()
	h := newTestServer(t, st)
	created := createHabit(t, h, habit.Habit{
		Name:                  "Run",
		ResponseType:          habit.YesNoType,
		NotificationFrequency: habit.Daily,
		TimesPerDay:           2,
	})

	created.NotificationFrequency = habit.Weekly
	rr := mockRequest(h, http.MethodPut, "/habits/"+created.ID, created)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d want 200, body: %s", rr.Code, rr.Body.String())
	}
	var updated habit.Habit
	if err := json.Unmarshal(rr.Body.Bytes(), &updated); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if updated.TimesPerDay != 1 || len(updated.NotificationTimes) != 1 {
		t.Fatalf("weekly habit kept %d times %v", updated.TimesPerDay, updated.NotificationTimes)
	}
	if n := len(st.notifications[localUserID]); n != 1 {
		t.Fatalf("got %d notifications after reschedule want 1", n)
	}
}

func TestUpdateHabit_NotFound(t *testing.T) {
	h := newTestServer(t, newMemStore())
	rr := mockRequest(h, http.MethodPut, "/habits/missing", habit.Habit{
		Name:                  "Run",
		ResponseType:          habit.YesNoType,
		NotificationFrequency: habit.Daily,
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d want 404", rr.Code)
	}
}

func TestDeleteHabit_RemovesEntriesAndReminders(t *testing.T) {
	st := newMemStore()
	h := newTestServer(t, st)
	created := createHabit(t, h, yesNoHabit("Floss"))
	addEntry(t, h, created.ID, EntryRequest{Date: "2025-03-09", Value: "yes"})

	rr := mockRequest(h, http.MethodDelete, "/habits/"+created.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("got %d want 204", rr.Code)
	}
	if len(st.entries) != 0 {
		t.Fatalf("got %d entries after delete want 0", len(st.entries))
	}
	if n := len(st.notifications[localUserID]); n != 0 {
		t.Fatalf("got %d notifications after delete want 0", n)
	}

	rr = mockRequest(h, http.MethodDelete, "/habits/"+created.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: got %d want 404", rr.Code)
	}
}

func TestAddEntry(t *testing.T) {
	h := newTestServer(t, newMemStore())
	yn := createHabit(t, h, yesNoHabit("Stretch"))
	scale := createHabit(t, h, habit.Habit{Name: "Mood", ResponseType: habit.ScaleType, NotificationFrequency: habit.Daily})

	t.Run("defaults to today", func(t *testing.T) {
		e := addEntry(t, h, yn.ID, EntryRequest{Value: "Yes"})
		if e.Date != "2025-03-10" {
			t.Fatalf("date=%q want 2025-03-10", e.Date)
		}
		if e.Value != "true" || e.Display != "Completed ✓" {
			t.Fatalf("value=%q display=%q want true/Completed ✓", e.Value, e.Display)
		}
	})

	bad := []struct {
		name    string
		habitID string
		req     EntryRequest
		want    int
	}{
		{"future date", yn.ID, EntryRequest{Date: "2025-03-11", Value: "yes"}, http.StatusBadRequest},
		{"malformed date", yn.ID, EntryRequest{Date: "10/03/2025", Value: "yes"}, http.StatusBadRequest},
		{"bad yes/no", yn.ID, EntryRequest{Value: "maybe"}, http.StatusBadRequest},
		{"scale out of range", scale.ID, EntryRequest{Value: "11"}, http.StatusBadRequest},
		{"unknown habit", "missing", EntryRequest{Value: "yes"}, http.StatusNotFound},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			rr := mockRequest(h, http.MethodPost, "/habits/"+tc.habitID+"/entries", tc.req)
			if rr.Code != tc.want {
				t.Fatalf("got %d want %d, body: %s", rr.Code, tc.want, rr.Body.String())
			}
		})
	}

	rr := mockRequest(h, http.MethodGet, "/habits/"+yn.ID+"/entries", nil)
	var resp HabitEntriesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(resp.Entries) != 1 {
		t.Fatalf("got %d entries want 1", len(resp.Entries))
	}
}

func TestListEntriesByDate(t *testing.T) {
	h := newTestServer(t, newMemStore())
	a := createHabit(t, h, yesNoHabit("A"))
	b := createHabit(t, h, yesNoHabit("B"))
	addEntry(t, h, a.ID, EntryRequest{Date: "2025-03-08", Value: "yes"})
	addEntry(t, h, b.ID, EntryRequest{Date: "2025-03-08", Value: "no"})
	addEntry(t, h, b.ID, EntryRequest{Date: "2025-03-09", Value: "no"})

	rr := mockRequest(h, http.MethodGet, "/entries?date=2025-03-08", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d want 200", rr.Code)
	}
	var resp DateEntriesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(resp.Entries) != 2 {
		t.Fatalf("got %d entries want 2", len(resp.Entries))
	}
	for _, e := range resp.Entries {
		if e.Habit.Name == "" {
			t.Fatalf("entry %s missing joined habit", e.ID)
		}
	}

	rr = mockRequest(h, http.MethodGet, "/entries?date=yesterday", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad date: got %d want 400", rr.Code)
	}
}

func TestCalendar(t *testing.T) {
	h := newTestServer(t, newMemStore())
	daily := createHabit(t, h, habit.Habit{
		Name:                  "Walk",
		ResponseType:          habit.YesNoType,
		NotificationFrequency: habit.Daily,
		TimesPerDay:           2,
	})
	addEntry(t, h, daily.ID, EntryRequest{Date: "2025-03-09", Value: "yes"})
	addEntry(t, h, daily.ID, EntryRequest{Date: "2025-03-10", Value: "yes"})

	cal := getCalendar(t, h, "/calendar?selected=2025-03-09")
	if cal.Today != "2025-03-10" {
		t.Fatalf("today=%q want 2025-03-10", cal.Today)
	}
	if len(cal.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", cal.Errors)
	}

	past := cal.Markings["2025-03-09"]
	if past.Text != "1" || past.TextColor != calendar.ColorPast || !past.Selected {
		t.Fatalf("past marking=%+v", past)
	}
	today := cal.Markings["2025-03-10"]
	if today.Text != "1 • 2" || today.TextColor != calendar.ColorMixed {
		t.Fatalf("today marking=%+v want mixed 1 • 2", today)
	}
	tomorrow := cal.Markings["2025-03-11"]
	if tomorrow.Text != "2" || tomorrow.TextColor != calendar.ColorFuture || len(tomorrow.Dots) != 1 {
		t.Fatalf("tomorrow marking=%+v", tomorrow)
	}
	if _, ok := cal.Markings["2025-04-09"]; ok {
		t.Fatal("projection extends past the 30 day window")
	}
}

func TestCalendar_DegradesWhenEntriesFail(t *testing.T) {
	st := newMemStore()
	h := newTestServer(t, st)
	createHabit(t, h, yesNoHabit("Walk"))
	st.failEntries = true

	cal := getCalendar(t, h, "/calendar")
	if len(cal.Errors) != 1 {
		t.Fatalf("got errors %v want one entries error", cal.Errors)
	}
	if m := cal.Markings["2025-03-11"]; m.Text != "1" {
		t.Fatalf("projections missing after entry failure: %+v", m)
	}
}

func TestCalendar_BadSelected(t *testing.T) {
	h := newTestServer(t, newMemStore())
	rr := mockRequest(h, http.MethodGet, "/calendar?selected=march", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d want 400", rr.Code)
	}
}

func TestDay(t *testing.T) {
	h := newTestServer(t, newMemStore())
	walk := createHabit(t, h, yesNoHabit("Walk"))
	addEntry(t, h, walk.ID, EntryRequest{Date: "2025-03-09", Value: "no"})

	past := getDay(t, h, "2025-03-09")
	if past.Kind != habit.Past || len(past.Entries) != 1 || len(past.Slots) != 0 {
		t.Fatalf("past day=%+v", past)
	}
	if past.Entries[0].Display != "Not completed ✗" {
		t.Fatalf("display=%q want Not completed ✗", past.Entries[0].Display)
	}

	today := getDay(t, h, "2025-03-10")
	if today.Kind != habit.Today || len(today.Slots) != 1 || len(today.Notifications) != 1 {
		t.Fatalf("today=%+v", today)
	}

	future := getDay(t, h, "2025-03-12")
	if future.Kind != habit.Future || len(future.Entries) != 0 || len(future.Slots) != 1 {
		t.Fatalf("future day=%+v", future)
	}

	rr := mockRequest(h, http.MethodGet, "/calendar/2025-13-01", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad date: got %d want 400", rr.Code)
	}
}

func TestHabitSummary(t *testing.T) {
	h := newTestServer(t, newMemStore())
	walk := createHabit(t, h, yesNoHabit("Walk"))
	for _, d := range []string{"2025-03-07", "2025-03-08", "2025-03-09"} {
		addEntry(t, h, walk.ID, EntryRequest{Date: d, Value: "yes"})
	}
	addEntry(t, h, walk.ID, EntryRequest{Date: "2025-03-10", Value: "no"})

	rr := mockRequest(h, http.MethodGet, "/habits/"+walk.ID+"/summary", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d want 200", rr.Code)
	}
	var resp HabitSummaryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	sum := resp.HabitSummary
	if sum.CurrentStreak != 3 || sum.LongestStreak != 3 {
		t.Fatalf("streaks=%d/%d want 3/3", sum.CurrentStreak, sum.LongestStreak)
	}
	if sum.Entries != 4 || sum.TotalDaysDone != 3 || sum.ThisMonth != 3 {
		t.Fatalf("summary=%+v", sum)
	}
	if sum.FirstLogged != "2025-03-07" {
		t.Fatalf("first_logged=%q", sum.FirstLogged)
	}
	if len(resp.Series) != 4 || resp.Series[0].Label != "3/7" {
		t.Fatalf("series=%+v", resp.Series)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := config.Default()
	cfg.TimeZone = "UTC"
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	s, err := New(&cfg, newMemStore())
	if err != nil {
		t.Fatalf("error creating server: %v", err)
	}
	h := s.Router()

	if rr := mockRequest(h, http.MethodGet, "/version", nil); rr.Code != http.StatusOK {
		t.Fatalf("first request: got %d want 200", rr.Code)
	}
	rr := mockRequest(h, http.MethodGet, "/version", nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
}

func yesNoHabit(name string) habit.Habit {
	return habit.Habit{Name: name, ResponseType: habit.YesNoType, NotificationFrequency: habit.Daily}
}

func createHabit(t *testing.T, h http.Handler, in habit.Habit) habit.Habit {
	t.Helper()
	rr := mockRequest(h, http.MethodPost, "/habits/", in)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create habit: got %d want 201, body: %s", rr.Code, rr.Body.String())
	}
	var out habit.Habit
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	return out
}

func addEntry(t *testing.T, h http.Handler, habitID string, req EntryRequest) EntryView {
	t.Helper()
	rr := mockRequest(h, http.MethodPost, "/habits/"+habitID+"/entries", req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add entry: got %d want 201, body: %s", rr.Code, rr.Body.String())
	}
	var out EntryView
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	return out
}

func getCalendar(t *testing.T, h http.Handler, path string) CalendarResponse {
	t.Helper()
	rr := mockRequest(h, http.MethodGet, path, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("calendar: got %d want 200, body: %s", rr.Code, rr.Body.String())
	}
	var out CalendarResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	return out
}

func getDay(t *testing.T, h http.Handler, date string) DayResponse {
	t.Helper()
	rr := mockRequest(h, http.MethodGet, "/calendar/"+date, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("day: got %d want 200, body: %s", rr.Code, rr.Body.String())
	}
	var out DayResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	return out
}

func newTestServer(t *testing.T, st storage.Store) http.Handler {
	t.Helper()
	cfg := config.Default()
	cfg.TimeZone = "UTC"
	s, err := New(&cfg, st)
	if err != nil {
		t.Fatalf("error creating server: %v", err)
	}
	s.now = func() time.Time { return testNow }
	return s.Router()
}

func mockRequest(h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/brk3/habitcal/internal/apiclient"
	"github.com/brk3/habitcal/internal/config"
	"github.com/brk3/habitcal/internal/server"
	"github.com/brk3/habitcal/internal/storage/bolt"
	"github.com/brk3/habitcal/pkg/habit"
)

func newTestAPI(t *testing.T) string {
	t.Helper()
	store, err := bolt.Open(filepath.Join(t.TempDir(), "habits.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	srv, err := server.New(&cfg, store)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	t.Setenv("HABITS_API_BASE", ts.URL)
	t.Setenv("HABITS_LOG_LEVEL", "error")
	return ts.URL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

func createdID(t *testing.T, out string) string {
	t.Helper()
	_, rest, ok := strings.Cut(out, "(")
	id, _, ok2 := strings.Cut(rest, ")")
	if !ok || !ok2 || id == "" {
		t.Fatalf("no habit id in %q", out)
	}
	return id
}

func TestHabitLifecycle(t *testing.T) {
	newTestAPI(t)
	today := habit.DateOf(time.Now())

	id := createdID(t, mustRun(t, "habit", "add", "Water", "--type", "numeric", "--times", "2", "--at", "18:00,08:00"))

	if out := mustRun(t, "habit", "list"); !strings.Contains(out, "Water") || !strings.Contains(out, "Numeric Input") || !strings.Contains(out, "18:00,08:00") {
		t.Fatalf("habit list output:\n%s", out)
	}

	if out := mustRun(t, "track", id, "3"); out != "Tracked Value: 3 on "+today+"\n" {
		t.Fatalf("track output: %q", out)
	}

	if out := mustRun(t, "stats", id, "--series"); !strings.Contains(out, "Entries") || !strings.Contains(out, "Highest") {
		t.Fatalf("stats output:\n%s", out)
	}

	out := mustRun(t, "calendar")
	if !strings.Contains(out, today) || !strings.Contains(out, "1 • 2") {
		t.Fatalf("calendar output:\n%s", out)
	}

	out = mustRun(t, "day")
	for _, want := range []string{today + " (today)", "Water: Value: 3", "08:00  Water", "18:00  Water"} {
		if !strings.Contains(out, want) {
			t.Fatalf("day output missing %q:\n%s", want, out)
		}
	}

	if out := mustRun(t, "notifications"); !strings.Contains(out, "08:00") || !strings.Contains(out, "daily") {
		t.Fatalf("notifications output:\n%s", out)
	}

	out = mustRun(t, "habit", "edit", id, "--name", "Hydrate", "--frequency", "weekly")
	if out != "Updated Hydrate: numeric weekly at 18:00\n" {
		t.Fatalf("edit output: %q", out)
	}
	if out := mustRun(t, "notifications"); !strings.Contains(out, "weekly on day 1") {
		t.Fatalf("notifications after edit:\n%s", out)
	}

	if out := mustRun(t, "habit", "delete", id); !strings.Contains(out, "Deleted") {
		t.Fatalf("delete output: %q", out)
	}
	if out := mustRun(t, "habit", "list"); !strings.Contains(out, "No habits yet") {
		t.Fatalf("list after delete:\n%s", out)
	}
}

func TestHabitAdd_InvalidInputNeverReachesServer(t *testing.T) {
	// nothing listens here; a request would fail with a connection error
	t.Setenv("HABITS_API_BASE", "http://127.0.0.1:1")
	t.Setenv("HABITS_LOG_LEVEL", "error")

	cases := [][]string{
		{"habit", "add", " "},
		{"habit", "add", strings.Repeat("x", 51)},
		{"habit", "add", "Walk", "--type", "colour"},
		{"habit", "add", "Walk", "--at", "25:00"},
		{"habit", "add", "Walk", "--times", "30"},
	}
	for _, args := range cases {
		_, err := run(t, args...)
		if err == nil || !habit.IsValidation(err) {
			t.Fatalf("%v: got %v want validation error", args, err)
		}
	}
}

func TestTrack_Errors(t *testing.T) {
	newTestAPI(t)
	id := createdID(t, mustRun(t, "habit", "add", "Mood", "--type", "scale"))

	if _, err := run(t, "track", id, "5", "--date", "yesterday"); err == nil {
		t.Fatal("expected error for malformed date")
	}
	if _, err := run(t, "track", id, "11"); err == nil {
		t.Fatal("expected error for out of range scale value")
	}
	tomorrow := habit.DateOf(time.Now().AddDate(0, 0, 2))
	if _, err := run(t, "track", id, "5", "--date", tomorrow); err == nil {
		t.Fatal("expected error for future date")
	}
}

func TestNudge_DryRun(t *testing.T) {
	newTestAPI(t)
	mustRun(t, "habit", "add", "Read", "--at", "21:00")

	out := mustRun(t, "nudge", "--dry-run")
	if !strings.Contains(out, "Still to track") || !strings.Contains(out, "Read (21:00)") {
		t.Fatalf("nudge output:\n%s", out)
	}
}

func TestNudge_RequiresResendSettings(t *testing.T) {
	newTestAPI(t)
	t.Setenv("HABITS_RESEND_API_KEY", "")
	if _, err := run(t, "nudge"); err == nil {
		t.Fatal("expected error without resend settings")
	}
}

func TestBrowseDays_ReportsBadDates(t *testing.T) {
	url := newTestAPI(t)
	today := habit.DateOf(time.Now())

	in := strings.NewReader("not-a-date\n\n" + today + "\n")
	var out bytes.Buffer
	if err := browseDays(context.Background(), apiclient.New(url, ""), in, &out); err != nil {
		t.Fatalf("browseDays: %v", err)
	}
	if !strings.Contains(out.String(), `"not-a-date" is not YYYY-MM-DD`) {
		t.Fatalf("missing parse error:\n%s", out.String())
	}
	if !strings.Contains(out.String(), today+" (today)") {
		t.Fatalf("latest date not shown:\n%s", out.String())
	}
}

// slowDays answers /calendar/{date} after delay unless the request is
// cancelled first.
func slowDays(t *testing.T, delay time.Duration) string {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		date := strings.TrimPrefix(r.URL.Path, "/calendar/")
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"date":%q,"kind":"past","entries":[],"slots":[],"notifications":[]}`, date)
	}))
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestBrowseDays_OnlyLastDateShown(t *testing.T) {
	url := slowDays(t, 20*time.Millisecond)

	var dates []string
	for d := 1; d <= 20; d++ {
		dates = append(dates, fmt.Sprintf("2025-01-%02d", d))
	}
	last := dates[len(dates)-1]

	for run := 0; run < 10; run++ {
		var out bytes.Buffer
		in := strings.NewReader(strings.Join(dates, "\n") + "\n")
		if err := browseDays(context.Background(), apiclient.New(url, ""), in, &out); err != nil {
			t.Fatalf("browseDays: %v", err)
		}
		if got, want := out.String(), last+" (past)\n  no entries\n"; got != want {
			t.Fatalf("run %d: got %q want %q", run, got, want)
		}
		for _, d := range dates[:len(dates)-1] {
			if strings.Contains(out.String(), d) {
				t.Fatalf("run %d: superseded date %s printed:\n%s", run, d, out.String())
			}
		}
	}
}

func TestVersion(t *testing.T) {
	newTestAPI(t)
	out := mustRun(t, "version")
	if !strings.Contains(out, "Client Version: dev") || !strings.Contains(out, "Server Version: dev") {
		t.Fatalf("version output:\n%s", out)
	}
}

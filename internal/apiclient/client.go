package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/brk3/habitcal/internal/server"
	"github.com/brk3/habitcal/pkg/habit"
	"github.com/brk3/habitcal/pkg/versioninfo"
)

type Client struct {
	BaseURL string
	// Token is sent as a Bearer credential: an API key or a
	// provider-prefixed ID token.
	Token string
	HTTP  *http.Client
}

func New(base, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(base, "/"),
		Token:   token,
		HTTP:    http.DefaultClient,
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %d %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.Status, http.StatusText(e.Status))
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiErr := &APIError{Op: op, Status: res.StatusCode}
		var er server.ErrorResponse
		if json.NewDecoder(res.Body).Decode(&er) == nil {
			apiErr.Message = er.Error
		}
		return apiErr
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}
	return nil
}

func (c *Client) Version(ctx context.Context) (*versioninfo.VersionInfo, error) {
	var out versioninfo.VersionInfo
	if err := c.do(ctx, "version", http.MethodGet, "/version", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListHabits(ctx context.Context) ([]habit.Habit, error) {
	var response server.HabitListResponse
	if err := c.do(ctx, "list habits", http.MethodGet, "/habits/", nil, &response); err != nil {
		return nil, err
	}
	return response.Habits, nil
}

func (c *Client) GetHabit(ctx context.Context, id string) (*habit.Habit, error) {
	var out habit.Habit
	if err := c.do(ctx, "get habit", http.MethodGet, "/habits/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateHabit(ctx context.Context, h habit.Habit) (*habit.Habit, error) {
	var out habit.Habit
	if err := c.do(ctx, "create habit", http.MethodPost, "/habits/", h, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateHabit(ctx context.Context, h habit.Habit) (*habit.Habit, error) {
	var out habit.Habit
	if err := c.do(ctx, "update habit", http.MethodPut, "/habits/"+url.PathEscape(h.ID), h, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteHabit(ctx context.Context, id string) error {
	return c.do(ctx, "delete habit", http.MethodDelete, "/habits/"+url.PathEscape(id), nil, nil)
}

// AddEntry records value for the habit. An empty date means today on the
// server's clock.
func (c *Client) AddEntry(ctx context.Context, habitID, date, value string) (*server.EntryView, error) {
	var out server.EntryView
	req := server.EntryRequest{Date: date, Value: value}
	if err := c.do(ctx, "add entry", http.MethodPost, "/habits/"+url.PathEscape(habitID)+"/entries", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListEntries(ctx context.Context, habitID string) ([]server.EntryView, error) {
	var out server.HabitEntriesResponse
	if err := c.do(ctx, "list entries", http.MethodGet, "/habits/"+url.PathEscape(habitID)+"/entries", nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

func (c *Client) EntriesOn(ctx context.Context, date string) ([]server.DateEntryView, error) {
	var out server.DateEntriesResponse
	if err := c.do(ctx, "entries by date", http.MethodGet, "/entries?date="+url.QueryEscape(date), nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

func (c *Client) GetHabitSummary(ctx context.Context, habitID string) (*server.HabitSummaryResponse, error) {
	var out server.HabitSummaryResponse
	if err := c.do(ctx, "summary "+habitID, http.MethodGet, "/habits/"+url.PathEscape(habitID)+"/summary", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Calendar(ctx context.Context, selected string) (*server.CalendarResponse, error) {
	path := "/calendar"
	if selected != "" {
		path += "?selected=" + url.QueryEscape(selected)
	}
	var out server.CalendarResponse
	if err := c.do(ctx, "calendar", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Day(ctx context.Context, date string) (*server.DayResponse, error) {
	var out server.DayResponse
	if err := c.do(ctx, "day "+date, http.MethodGet, "/calendar/"+url.PathEscape(date), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Notifications lists scheduled reminders, restricted to those firing on
// date when it is set.
func (c *Client) Notifications(ctx context.Context, date string) ([]habit.Notification, error) {
	path := "/notifications"
	if date != "" {
		path += "?date=" + url.QueryEscape(date)
	}
	var out server.NotificationListResponse
	if err := c.do(ctx, "notifications", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

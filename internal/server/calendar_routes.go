package server

import (
	"net/http"

	"github.com/brk3/habitcal/internal/calendar"
	"github.com/brk3/habitcal/internal/logger"
	"github.com/brk3/habitcal/pkg/habit"
	"github.com/go-chi/chi/v5"
)

func (s *Server) getCalendar(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	selected := r.URL.Query().Get("selected")
	if selected != "" {
		if _, err := habit.ParseDate(selected); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	cal, err := s.calendar.Load(r.Context(), sess, s.today())
	if err != nil {
		logger.Error("Failed to load calendar", "user_id", sess.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "error loading calendar")
		return
	}
	calendarLoads.Inc()
	if len(cal.Errors) > 0 {
		calendarErrors.Add(float64(len(cal.Errors)))
	}
	cal.Markings = calendar.Select(cal.Markings, selected)

	if err := writeJSON(w, http.StatusOK, CalendarResponse(cal)); err != nil {
		logger.Error("Failed to serialize calendar response", "user_id", sess.UserID, "error", err)
	}
}

func (s *Server) getDay(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	date := chi.URLParam(r, "date")

	day, err := s.calendar.Day(r.Context(), sess, date, s.today())
	if err != nil {
		if habit.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("Failed to load date detail", "user_id", sess.UserID, "date", date, "error", err)
		writeError(w, http.StatusInternalServerError, "error loading date")
		return
	}
	if len(day.Errors) > 0 {
		calendarErrors.Add(float64(len(day.Errors)))
	}

	if err := writeJSON(w, http.StatusOK, DayResponse(day)); err != nil {
		logger.Error("Failed to serialize date detail response", "user_id", sess.UserID, "error", err)
	}
}

func (s *Server) listEntriesByDate(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	date := r.URL.Query().Get("date")
	if date == "" {
		date = s.today()
	}
	if _, err := habit.ParseDate(date); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := s.store.ListEntriesByDate(r.Context(), sess, date)
	if err != nil {
		logger.Error("Failed to list entries by date", "user_id", sess.UserID, "date", date, "error", err)
		writeStoreError(w, err)
		return
	}

	resp := DateEntriesResponse{Date: date, Entries: make([]DateEntryView, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, DateEntryView{EntryWithHabit: e, Display: habit.DisplayValue(e.Habit, e.Value)})
	}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		logger.Error("Failed to serialize entries response", "user_id", sess.UserID, "error", err)
	}
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)

	var (
		list []habit.Notification
		err  error
	)
	if date := r.URL.Query().Get("date"); date != "" {
		list, err = s.reminders.ForDate(r.Context(), sess, date)
	} else {
		list, err = s.reminders.List(r.Context(), sess)
	}
	if err != nil {
		logger.Error("Failed to list notifications", "user_id", sess.UserID, "error", err)
		writeStoreError(w, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, NotificationListResponse{Notifications: list}); err != nil {
		logger.Error("Failed to serialize notifications response", "user_id", sess.UserID, "error", err)
	}
}

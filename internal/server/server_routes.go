package server

import (
	"encoding/json"
	"net/http"

	"github.com/brk3/habitcal/internal/logger"
	"github.com/brk3/habitcal/pkg/habit"
	"github.com/brk3/habitcal/pkg/versioninfo"
	"github.com/go-chi/chi/v5"
)

func (s *Server) getVersionInfo(w http.ResponseWriter, _ *http.Request) {
	info := versioninfo.VersionInfo{
		Version:   versioninfo.Version,
		BuildDate: versioninfo.BuildDate,
	}
	if err := writeJSON(w, http.StatusOK, info); err != nil {
		logger.Error("Failed to serialize version info response", "error", err)
		http.Error(w, `{"error":"failed to serialize version info"}`, http.StatusInternalServerError)
		return
	}
}

func (s *Server) listHabits(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	logger.Debug("Listing habits", "user_id", sess.UserID)

	habits, err := s.store.ListHabits(r.Context(), sess)
	if err != nil {
		logger.Error("Failed to list habits", "user_id", sess.UserID, "error", err)
		writeStoreError(w, err)
		return
	}
	logger.Debug("Listed habits successfully", "user_id", sess.UserID, "count", len(habits))
	if err := writeJSON(w, http.StatusOK, HabitListResponse{Habits: habits}); err != nil {
		logger.Error("Failed to serialize habit list response", "user_id", sess.UserID, "error", err)
	}
}

func (s *Server) createHabit(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	var h habit.Habit
	if err := json.NewDecoder(r.Body).Decode(&h); err != nil {
		logger.Warn("Invalid JSON in create habit request", "error", err)
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	h, err := habit.Normalize(h)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logger.Info("Creating habit", "user_id", sess.UserID, "habit_name", h.Name)
	created, err := s.store.CreateHabit(r.Context(), sess, h)
	if err != nil {
		logger.Error("Failed to store habit", "user_id", sess.UserID, "habit_name", h.Name, "error", err)
		writeStoreError(w, err)
		return
	}
	s.scheduleReminders(r, sess, created)
	s.refreshHabitMetrics(r, sess)

	if err := writeJSON(w, http.StatusCreated, created); err != nil {
		logger.Error("Failed to serialize create habit response", "user_id", sess.UserID, "error", err)
	}
}

func (s *Server) getHabit(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	habitID := chi.URLParam(r, "habit_id")

	h, err := s.store.GetHabit(r.Context(), sess, habitID)
	if err != nil {
		logger.Debug("Failed to get habit", "user_id", sess.UserID, "habit_id", habitID, "error", err)
		writeStoreError(w, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, h); err != nil {
		logger.Error("Failed to serialize get habit response", "user_id", sess.UserID, "habit_id", habitID, "error", err)
	}
}

func (s *Server) updateHabit(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	habitID := chi.URLParam(r, "habit_id")

	var h habit.Habit
	if err := json.NewDecoder(r.Body).Decode(&h); err != nil {
		logger.Warn("Invalid JSON in update habit request", "error", err)
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	h.ID = habitID
	h, err := habit.Normalize(h)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.store.UpdateHabit(r.Context(), sess, h)
	if err != nil {
		logger.Error("Failed to update habit", "user_id", sess.UserID, "habit_id", habitID, "error", err)
		writeStoreError(w, err)
		return
	}
	logger.Info("Habit updated", "user_id", sess.UserID, "habit_id", habitID)
	s.scheduleReminders(r, sess, updated)

	if err := writeJSON(w, http.StatusOK, updated); err != nil {
		logger.Error("Failed to serialize update habit response", "user_id", sess.UserID, "error", err)
	}
}

func (s *Server) deleteHabit(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	habitID := chi.URLParam(r, "habit_id")
	logger.Info("Deleting habit", "user_id", sess.UserID, "habit_id", habitID)

	if err := s.store.DeleteHabit(r.Context(), sess, habitID); err != nil {
		logger.Error("Failed to delete habit", "user_id", sess.UserID, "habit_id", habitID, "error", err)
		writeStoreError(w, err)
		return
	}
	if err := s.reminders.CancelHabit(r.Context(), sess, habitID); err != nil {
		logger.Warn("Failed to cancel reminders for deleted habit", "user_id", sess.UserID, "habit_id", habitID, "error", err)
	}
	logger.Info("Habit deleted successfully", "user_id", sess.UserID, "habit_id", habitID)
	s.refreshHabitMetrics(r, sess)

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listHabitEntries(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	habitID := chi.URLParam(r, "habit_id")

	h, err := s.store.GetHabit(r.Context(), sess, habitID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	entries, err := s.store.ListEntriesByHabit(r.Context(), sess, habitID)
	if err != nil {
		logger.Error("Failed to list habit entries", "user_id", sess.UserID, "habit_id", habitID, "error", err)
		writeStoreError(w, err)
		return
	}

	resp := HabitEntriesResponse{HabitID: habitID, Entries: make([]EntryView, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, EntryView{Entry: e, Display: habit.DisplayValue(h, e.Value)})
	}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		logger.Error("Failed to serialize habit entries response", "user_id", sess.UserID, "error", err)
	}
}

func (s *Server) addEntry(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	habitID := chi.URLParam(r, "habit_id")

	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("Invalid JSON in add entry request", "error", err)
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	today := s.today()
	if req.Date == "" {
		req.Date = today
	}
	if _, err := habit.ParseDate(req.Date); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := habit.NotFuture(req.Date, today); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h, err := s.store.GetHabit(r.Context(), sess, habitID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	e, err := habit.ValidateEntry(h, habit.Entry{Date: req.Date, Value: req.Value})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := s.store.AddEntry(r.Context(), sess, e)
	if err != nil {
		logger.Error("Failed to store entry", "user_id", sess.UserID, "habit_id", habitID, "error", err)
		writeStoreError(w, err)
		return
	}
	entriesRecorded.WithLabelValues(string(h.ResponseType)).Inc()
	logger.Info("Entry recorded", "user_id", sess.UserID, "habit_id", habitID, "date", saved.Date)

	if err := writeJSON(w, http.StatusCreated, EntryView{Entry: saved, Display: habit.DisplayValue(h, saved.Value)}); err != nil {
		logger.Error("Failed to serialize add entry response", "user_id", sess.UserID, "error", err)
	}
}

func (s *Server) getHabitSummary(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	habitID := chi.URLParam(r, "habit_id")
	logger.Debug("Getting habit summary", "habit_id", habitID, "user_id", sess.UserID)

	h, err := s.store.GetHabit(r.Context(), sess, habitID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	entries, err := s.store.ListEntriesByHabit(r.Context(), sess, habitID)
	if err != nil {
		logger.Error("Failed to list entries for summary", "user_id", sess.UserID, "habit_id", habitID, "error", err)
		http.Error(w, `{"error":"error computing summary"}`, http.StatusInternalServerError)
		return
	}

	resp := HabitSummaryResponse{
		HabitID:      habitID,
		HabitSummary: summarize(h, entries, s.today()),
		Series:       series(h, entries),
	}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		logger.Error("Failed to serialize habit summary response", "user_id", sess.UserID, "habit_id", habitID, "error", err)
	}
}

// scheduleReminders replaces the habit's reminders. Failures are logged and
// never fail the request that already stored the habit.
func (s *Server) scheduleReminders(r *http.Request, sess habit.Session, h habit.Habit) {
	if err := s.reminders.ScheduleHabit(r.Context(), sess, h); err != nil {
		logger.Warn("Failed to schedule reminders", "user_id", sess.UserID, "habit_id", h.ID, "error", err)
	}
}

func (s *Server) refreshHabitMetrics(r *http.Request, sess habit.Session) {
	habits, err := s.store.ListHabits(r.Context(), sess)
	if err != nil {
		logger.Warn("Failed to update active habits metric", "user_id", sess.UserID, "error", err)
		return
	}
	UpdateActiveHabitsForUser(sess.UserID, len(habits))
}

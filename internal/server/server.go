package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/brk3/habitcal/internal/calendar"
	"github.com/brk3/habitcal/internal/config"
	"github.com/brk3/habitcal/internal/logger"
	"github.com/brk3/habitcal/internal/reminder"
	"github.com/brk3/habitcal/internal/storage"
	"github.com/brk3/habitcal/pkg/habit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	cfg           *config.Config
	store         storage.Store
	calendar      *calendar.Service
	reminders     *reminder.Scheduler
	authProviders map[string]*AuthProvider
	sessionCookie *securecookie.SecureCookie
	limiter       *clientLimiter
	loc           *time.Location
	now           func() time.Time
}

func New(cfg *config.Config, store storage.Store) (*Server, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	reminders := reminder.NewScheduler(store)
	s := &Server{
		cfg:       cfg,
		store:     store,
		calendar:  calendar.NewService(store, reminders),
		reminders: reminders,
		loc:       loc,
		now:       time.Now,
	}
	if cfg.RateLimit > 0 {
		s.limiter = newClientLimiter(cfg.RateLimit, cfg.RateBurst)
	}

	if cfg.AuthEnabled {
		providers, cookie, err := ConfigureOIDCProviders(cfg)
		if err != nil {
			return nil, err
		}
		s.authProviders = providers
		s.sessionCookie = cookie
	}
	return s, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(metricsMiddleware)
	if s.limiter != nil {
		r.Use(s.rateLimitMiddleware)
	}

	r.Get("/version", s.getVersionInfo)
	r.Handle("/metrics", promhttp.Handler())

	if s.cfg.AuthEnabled {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/", s.simpleLogin)
			r.Get("/login", s.simpleLogin)
			r.Get("/login/{id}", s.login)
			r.Get("/callback/{id}", s.callback)
			r.Post("/logout", s.logout)
			r.Get("/token", s.getAPIToken)
			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware)
				r.Get("/api_keys", s.listAPIKeys)
				r.Post("/api_keys", s.generateAPIKey)
				r.Delete("/api_keys/{prefix}", s.deleteAPIKey)
			})
		})
	}

	r.Group(func(r chi.Router) {
		if s.cfg.AuthEnabled {
			r.Use(s.authMiddleware)
			r.Use(s.userAwareMetricsMiddleware)
		}

		r.Route("/habits", func(r chi.Router) {
			r.Post("/", s.createHabit)
			r.Get("/", s.listHabits)
			r.Get("/{habit_id}", s.getHabit)
			r.Put("/{habit_id}", s.updateHabit)
			r.Delete("/{habit_id}", s.deleteHabit)
			r.Get("/{habit_id}/entries", s.listHabitEntries)
			r.Post("/{habit_id}/entries", s.addEntry)
			r.Get("/{habit_id}/summary", s.getHabitSummary)
		})
		r.Get("/entries", s.listEntriesByDate)
		r.Get("/calendar", s.getCalendar)
		r.Get("/calendar/{date}", s.getDay)
		r.Get("/notifications", s.listNotifications)
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	if err := writeJSON(w, code, ErrorResponse{Error: msg}); err != nil {
		logger.Error("Failed to write error response", "error", err)
	}
}

// writeStoreError maps storage and validation failures onto status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case habit.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "habit not found")
	case errors.Is(err, storage.ErrNoSession):
		writeError(w, http.StatusUnauthorized, "user id is required")
	default:
		writeError(w, http.StatusInternalServerError, "storage error")
	}
}

// session resolves the caller of r. With auth disabled every request acts
// as the single local user.
func (s *Server) session(r *http.Request) habit.Session {
	return habit.Session{UserID: userIDFromContext(s.cfg.AuthEnabled, r)}
}

// today is the current calendar date in the configured time zone.
func (s *Server) today() string {
	return habit.DateOf(s.now().In(s.loc))
}

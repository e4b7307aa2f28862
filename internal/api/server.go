package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/tazhate/studentreminder/internal/domain"
)

// Scheduler is the notification side of the API.
type Scheduler interface {
	Schedule(ctx context.Context, r domain.Reminder) domain.ScheduleResult
	Reschedule(ctx context.Context, r domain.Reminder) domain.ScheduleResult
	Cancel(ctx context.Context, reminderID string)
	Lookup(reminderID string) (string, bool)
	All() map[string]string
}

// ReminderList is the live list the due-soon poller reads.
type ReminderList interface {
	Replace(reminders []domain.Reminder)
	Upsert(r domain.Reminder)
	Remove(id string) bool
}

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type ScheduleResponse struct {
	ReminderID string `json:"reminder_id"`
	Outcome    string `json:"outcome"`
	TriggerID  string `json:"trigger_id,omitempty"`
	FireAt     string `json:"fire_at,omitempty"`
	Error      string `json:"error,omitempty"`
}

type NotificationResponse struct {
	ReminderID string `json:"reminder_id"`
	TriggerID  string `json:"trigger_id"`
}

type Server struct {
	scheduler Scheduler
	reminders ReminderList
	token     string
	now       func() time.Time
	server    *http.Server
}

func New(scheduler Scheduler, reminders ReminderList, token string) *Server {
	return &Server{
		scheduler: scheduler,
		reminders: reminders,
		token:     token,
		now:       time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /api/notifications", s.auth(s.apiSchedule))
	mux.HandleFunc("GET /api/notifications", s.auth(s.apiNotifications))
	mux.HandleFunc("GET /api/notifications/{id}", s.auth(s.apiNotification))
	mux.HandleFunc("PUT /api/notifications/{id}", s.auth(s.apiReschedule))
	mux.HandleFunc("DELETE /api/notifications/{id}", s.auth(s.apiCancel))

	mux.HandleFunc("PUT /api/reminders", s.auth(s.apiReplaceReminders))
	mux.HandleFunc("DELETE /api/reminders/{id}", s.auth(s.apiDeleteReminder))

	return mux
}

func (s *Server) Start(ctx context.Context, addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("Starting API server on %s", addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// auth checks the bearer token. Without a configured token the API is open.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="StudentReminder API"`)
				jsonError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func jsonError(w http.ResponseWriter, err string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: err})
}

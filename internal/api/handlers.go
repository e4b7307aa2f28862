package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tazhate/studentreminder/internal/domain"
)

// POST /api/notifications - schedule the notification for a new reminder
func (s *Server) apiSchedule(w http.ResponseWriter, r *http.Request) {
	var rem domain.Reminder
	if err := json.NewDecoder(r.Body).Decode(&rem); err != nil {
		jsonError(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	rem.EnsureID(s.now())

	result := s.scheduler.Schedule(r.Context(), rem)
	s.track(rem, result)
	writeResult(w, rem.ID, result)
}

// PUT /api/notifications/{id} - reschedule after an edit
func (s *Server) apiReschedule(w http.ResponseWriter, r *http.Request) {
	var rem domain.Reminder
	if err := json.NewDecoder(r.Body).Decode(&rem); err != nil {
		jsonError(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	rem.ID = r.PathValue("id")

	result := s.scheduler.Reschedule(r.Context(), rem)
	s.track(rem, result)
	writeResult(w, rem.ID, result)
}

// DELETE /api/notifications/{id} - cancel; unknown ids are fine
func (s *Server) apiCancel(w http.ResponseWriter, r *http.Request) {
	s.scheduler.Cancel(r.Context(), r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/notifications/{id}
func (s *Server) apiNotification(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	triggerID, ok := s.scheduler.Lookup(id)
	if !ok {
		jsonError(w, "no notification scheduled", http.StatusNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, NotificationResponse{ReminderID: id, TriggerID: triggerID})
}

// GET /api/notifications
func (s *Server) apiNotifications(w http.ResponseWriter, r *http.Request) {
	all := s.scheduler.All()
	result := make([]NotificationResponse, 0, len(all))
	for reminderID, triggerID := range all {
		result = append(result, NotificationResponse{ReminderID: reminderID, TriggerID: triggerID})
	}
	jsonResponse(w, http.StatusOK, result)
}

// PUT /api/reminders - replace the live list the due-soon poller watches
func (s *Server) apiReplaceReminders(w http.ResponseWriter, r *http.Request) {
	var list []domain.Reminder
	if err := json.NewDecoder(r.Body).Decode(&list); err != nil {
		jsonError(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	now := s.now()
	for i := range list {
		list[i].EnsureID(now.Add(time.Duration(i) * time.Millisecond))
	}

	s.reminders.Replace(list)
	jsonResponse(w, http.StatusOK, map[string]int{"count": len(list)})
}

// DELETE /api/reminders/{id} - reminder deleted: drop it and its notification
func (s *Server) apiDeleteReminder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.reminders.Remove(id)
	s.scheduler.Cancel(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

// track keeps the live list in step with reminders the app saved.
func (s *Server) track(rem domain.Reminder, result domain.ScheduleResult) {
	if result.Outcome == domain.OutcomeInvalid {
		return
	}
	s.reminders.Upsert(rem)
}

func writeResult(w http.ResponseWriter, reminderID string, result domain.ScheduleResult) {
	resp := ScheduleResponse{
		ReminderID: reminderID,
		Outcome:    string(result.Outcome),
		TriggerID:  result.TriggerID,
	}
	if !result.FireAt.IsZero() {
		resp.FireAt = result.FireAt.Format(time.RFC3339)
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}

	switch result.Outcome {
	case domain.OutcomeInvalid:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(APIResponse{Success: false, Data: resp, Error: resp.Error})
	case domain.OutcomeUnscheduled:
		jsonResponse(w, http.StatusAccepted, resp)
	default:
		jsonResponse(w, http.StatusOK, resp)
	}
}

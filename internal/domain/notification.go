package domain

import "time"

// Payload keys carried with every scheduled notification.
const (
	DataReminderID   = "reminderId"
	DataReminderType = "type"
)

type NotificationContent struct {
	Title string
	Body  string
	Data  map[string]string
}

// ScheduledTrigger is a pending one-shot notification as the notifier keeps it.
type ScheduledTrigger struct {
	ID      string
	FireAt  time.Time
	Content NotificationContent
}

type Outcome string

const (
	OutcomeScheduled   Outcome = "scheduled"
	OutcomeSkippedPast Outcome = "skipped_past"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeUnscheduled Outcome = "unscheduled" // saved, but the notifier declined or failed
)

type ScheduleResult struct {
	Outcome   Outcome
	TriggerID string
	FireAt    time.Time
	Err       error
}

func (r ScheduleResult) Scheduled() bool {
	return r.Outcome == OutcomeScheduled && r.TriggerID != ""
}

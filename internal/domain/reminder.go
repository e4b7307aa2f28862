package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeFormat tells the parser how DueTime is written.
type TimeFormat string

const (
	TimeFormatUnknown TimeFormat = ""    // sniffed from the string
	TimeFormat12h     TimeFormat = "12h" // "09:30 AM"
	TimeFormat24h     TimeFormat = "24h" // "21:30"
)

const ReminderPresentation = "PRESENTATION"

type Reminder struct {
	ID               string     `json:"id"`
	ReminderType     string     `json:"reminder_type"`
	PresentationType string     `json:"presentation_type,omitempty"`
	DueDate          string     `json:"due_date"` // YYYY-MM-DD
	DueTime          string     `json:"due_time"` // "hh:mm AM" or "HH:mm"
	TimeFormat       TimeFormat `json:"time_format,omitempty"`
}

// UnmarshalJSON accepts numeric ids, which is what the backend sends.
func (r *Reminder) UnmarshalJSON(data []byte) error {
	type alias Reminder
	aux := struct {
		ID json.RawMessage `json:"id"`
		*alias
	}{alias: (*alias)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.ID = ""
	raw := strings.TrimSpace(string(aux.ID))
	if raw == "" || raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(aux.ID, &s); err != nil {
			return fmt.Errorf("decode reminder id: %w", err)
		}
		r.ID = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(aux.ID, &n); err != nil {
		return fmt.Errorf("decode reminder id: %w", err)
	}
	r.ID = n.String()
	return nil
}

// EnsureID assigns a timestamp-based id when the backend did not provide one.
func (r *Reminder) EnsureID(now time.Time) {
	if strings.TrimSpace(r.ID) == "" {
		r.ID = strconv.FormatInt(now.UnixMilli(), 10)
	}
}

// Normalize upper-cases the type and drops a presentation sub-type that does
// not belong to a presentation.
func (r *Reminder) Normalize() {
	r.ID = strings.TrimSpace(r.ID)
	r.ReminderType = strings.ToUpper(strings.TrimSpace(r.ReminderType))
	r.PresentationType = strings.TrimSpace(r.PresentationType)
	r.DueDate = strings.TrimSpace(r.DueDate)
	r.DueTime = strings.TrimSpace(r.DueTime)
	if !r.IsPresentation() {
		r.PresentationType = ""
	}
}

func (r *Reminder) IsPresentation() bool {
	return strings.EqualFold(r.ReminderType, ReminderPresentation)
}

// Label is the type with the presentation sub-type appended, e.g. "PRESENTATION - group".
func (r *Reminder) Label() string {
	if r.PresentationType == "" {
		return r.ReminderType
	}
	return r.ReminderType + " - " + r.PresentationType
}

package notifier

import (
	"context"
	"errors"
	"time"

	"github.com/tazhate/studentreminder/internal/domain"
)

var (
	ErrPermissionDenied = errors.New("notification permission not granted")
	ErrPastTrigger      = errors.New("trigger time is not in the future")
)

type Importance int

const (
	ImportanceDefault Importance = iota
	ImportanceHigh
	ImportanceMax
)

// Channel describes how delivered reminders are presented.
type Channel struct {
	ID               string
	Name             string
	Importance       Importance
	VibrationPattern []time.Duration
	LightColor       string
}

// DefaultChannel is the channel every reminder notification is delivered on.
var DefaultChannel = Channel{
	ID:               "reminder-channel",
	Name:             "Reminders",
	Importance:       ImportanceMax,
	VibrationPattern: []time.Duration{0, 250 * time.Millisecond, 250 * time.Millisecond, 250 * time.Millisecond},
	LightColor:       "#2196F3",
}

// Notifier is the capability that delivers a notification at a future instant.
type Notifier interface {
	EnsurePermission(ctx context.Context) (bool, error)
	ConfigureChannel(ch Channel) error
	ScheduleAt(ctx context.Context, at time.Time, content domain.NotificationContent) (string, error)
	Cancel(ctx context.Context, triggerID string) error
}

// MessageSender delivers the text of a fired notification.
type MessageSender interface {
	SendMessage(chatID int64, text string) error
}

// TriggerStore persists pending triggers across restarts.
type TriggerStore interface {
	SaveTrigger(t domain.ScheduledTrigger) error
	DeleteTrigger(id string) error
	ListTriggers() ([]domain.ScheduledTrigger, error)
}

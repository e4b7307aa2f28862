package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tazhate/studentreminder/internal/datetime"
	"github.com/tazhate/studentreminder/internal/domain"
	"github.com/tazhate/studentreminder/internal/notifier"
	"github.com/tazhate/studentreminder/internal/storage"
)

var ErrMissingReminderID = errors.New("reminder id is required")

// CalendarMirror copies scheduled notifications to an external calendar.
type CalendarMirror interface {
	PutAlarm(ctx context.Context, triggerID string, at time.Time, content domain.NotificationContent) error
	RemoveAlarm(ctx context.Context, triggerID string) error
}

// NotificationService schedules and cancels the local notification that
// belongs to each reminder and keeps the reminder -> trigger mapping.
type NotificationService struct {
	notifier notifier.Notifier
	ids      *storage.NotificationIDs
	flags    *storage.NotifiedFlags
	calendar CalendarMirror
	clock    *datetime.Validator

	channelOnce sync.Once
	channelErr  error

	locks keyedMutex
}

func NewNotificationService(n notifier.Notifier, ids *storage.NotificationIDs, flags *storage.NotifiedFlags) *NotificationService {
	return &NotificationService{
		notifier: n,
		ids:      ids,
		flags:    flags,
		clock:    datetime.NewValidator(),
	}
}

func (s *NotificationService) SetCalendar(c CalendarMirror) {
	s.calendar = c
}

// Schedule requests a notification at the reminder's due instant. An existing
// notification for the same reminder is cancelled first.
func (s *NotificationService) Schedule(ctx context.Context, r domain.Reminder) domain.ScheduleResult {
	r.Normalize()
	if r.ID == "" {
		return domain.ScheduleResult{Outcome: domain.OutcomeInvalid, Err: ErrMissingReminderID}
	}

	unlock := s.locks.Lock(r.ID)
	defer unlock()

	return s.schedule(ctx, r)
}

// Cancel removes the reminder's notification. Reminders without one are ignored.
func (s *NotificationService) Cancel(ctx context.Context, reminderID string) {
	unlock := s.locks.Lock(reminderID)
	defer unlock()

	s.cancel(ctx, reminderID)
}

// Reschedule replaces the reminder's notification after an edit. When the new
// due instant is still ahead the due-soon SMS flag is cleared so the edited
// reminder is announced again.
func (s *NotificationService) Reschedule(ctx context.Context, r domain.Reminder) domain.ScheduleResult {
	r.Normalize()
	if r.ID == "" {
		return domain.ScheduleResult{Outcome: domain.OutcomeInvalid, Err: ErrMissingReminderID}
	}

	unlock := s.locks.Lock(r.ID)
	defer unlock()

	s.cancel(ctx, r.ID)
	result := s.schedule(ctx, r)

	if s.flags != nil && result.Outcome != domain.OutcomeInvalid && result.Outcome != domain.OutcomeSkippedPast {
		if err := s.flags.Clear(r.ID); err != nil {
			log.Printf("Error clearing notified flag for reminder %s: %v", r.ID, err)
		}
	}
	return result
}

func (s *NotificationService) Lookup(reminderID string) (string, bool) {
	return s.ids.Get(reminderID)
}

func (s *NotificationService) All() map[string]string {
	return s.ids.All()
}

func (s *NotificationService) schedule(ctx context.Context, r domain.Reminder) domain.ScheduleResult {
	fireAt, err := datetime.ParseReminder(r)
	if err != nil {
		log.Printf("[reminders] Invalid due date/time for reminder %s (%q %q): %v", r.ID, r.DueDate, r.DueTime, err)
		return domain.ScheduleResult{Outcome: domain.OutcomeInvalid, Err: err}
	}

	if err := s.clock.Check(fireAt); err != nil {
		log.Printf("[reminders] Reminder %s is due %s, not scheduling", r.ID, fireAt.Format("2006-01-02 15:04"))
		return domain.ScheduleResult{Outcome: domain.OutcomeSkippedPast, FireAt: fireAt, Err: err}
	}

	if err := s.ensureCapability(ctx); err != nil {
		log.Printf("Error preparing notifications for reminder %s: %v", r.ID, err)
		return domain.ScheduleResult{Outcome: domain.OutcomeUnscheduled, FireAt: fireAt, Err: err}
	}

	if _, ok := s.ids.Get(r.ID); ok {
		s.cancel(ctx, r.ID)
	}

	content := buildContent(r)
	triggerID, err := s.notifier.ScheduleAt(ctx, fireAt, content)
	if err != nil {
		log.Printf("Error scheduling notification for reminder %s: %v", r.ID, err)
		return domain.ScheduleResult{Outcome: domain.OutcomeUnscheduled, FireAt: fireAt, Err: fmt.Errorf("schedule notification: %w", err)}
	}

	result := domain.ScheduleResult{Outcome: domain.OutcomeScheduled, TriggerID: triggerID, FireAt: fireAt}
	if err := s.ids.Set(r.ID, triggerID); err != nil {
		log.Printf("Error saving notification id for reminder %s: %v", r.ID, err)
		result.Err = fmt.Errorf("save notification id: %w", err)
	}

	if s.calendar != nil {
		if err := s.calendar.PutAlarm(ctx, triggerID, fireAt, content); err != nil {
			log.Printf("Error mirroring reminder %s to calendar: %v", r.ID, err)
		}
	}

	log.Printf("[reminders] Scheduled %s for reminder %s at %s", triggerID, r.ID, fireAt.Format("2006-01-02 15:04"))
	return result
}

func (s *NotificationService) cancel(ctx context.Context, reminderID string) {
	triggerID, ok := s.ids.Get(reminderID)
	if !ok {
		return
	}

	if err := s.notifier.Cancel(ctx, triggerID); err != nil {
		log.Printf("Error cancelling notification %s for reminder %s: %v", triggerID, reminderID, err)
	}
	if err := s.ids.Delete(reminderID); err != nil {
		log.Printf("Error deleting notification id for reminder %s: %v", reminderID, err)
	}

	if s.calendar != nil {
		if err := s.calendar.RemoveAlarm(ctx, triggerID); err != nil {
			log.Printf("Error removing calendar alarm %s: %v", triggerID, err)
		}
	}
	log.Printf("[reminders] Cancelled %s for reminder %s", triggerID, reminderID)
}

// ensureCapability configures the delivery channel once per process and
// checks permission on every call, since it can be revoked at any time.
func (s *NotificationService) ensureCapability(ctx context.Context) error {
	s.channelOnce.Do(func() {
		s.channelErr = s.notifier.ConfigureChannel(notifier.DefaultChannel)
	})
	if s.channelErr != nil {
		return fmt.Errorf("configure channel: %w", s.channelErr)
	}

	granted, err := s.notifier.EnsurePermission(ctx)
	if err != nil {
		return fmt.Errorf("request permission: %w", err)
	}
	if !granted {
		return notifier.ErrPermissionDenied
	}
	return nil
}

func buildContent(r domain.Reminder) domain.NotificationContent {
	return domain.NotificationContent{
		Title: r.ReminderType + " Reminder",
		Body:  r.Label(),
		Data: map[string]string{
			domain.DataReminderID:   r.ID,
			domain.DataReminderType: r.ReminderType,
		},
	}
}

// keyedMutex serializes work per key. Entries are dropped once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tazhate/studentreminder/internal/datetime"
	"github.com/tazhate/studentreminder/internal/domain"
	"github.com/tazhate/studentreminder/internal/notifier"
	"github.com/tazhate/studentreminder/internal/storage"
)

type scheduledCall struct {
	at      time.Time
	content domain.NotificationContent
}

type fakeNotifier struct {
	mu         sync.Mutex
	granted    bool
	scheduleFn func() error
	cancelErr  error
	channels   int
	next       int
	live       map[string]scheduledCall
	cancelled  []string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{granted: true, live: make(map[string]scheduledCall)}
}

func (f *fakeNotifier) EnsurePermission(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.granted, nil
}

func (f *fakeNotifier) ConfigureChannel(notifier.Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels++
	return nil
}

func (f *fakeNotifier) ScheduleAt(_ context.Context, at time.Time, content domain.NotificationContent) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scheduleFn != nil {
		if err := f.scheduleFn(); err != nil {
			return "", err
		}
	}
	f.next++
	id := fmt.Sprintf("trigger-%d", f.next)
	f.live[id] = scheduledCall{at: at, content: content}
	return id, nil
}

func (f *fakeNotifier) Cancel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	if f.cancelErr != nil {
		return f.cancelErr
	}
	delete(f.live, id)
	return nil
}

func (f *fakeNotifier) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

type fakeCalendar struct {
	mu      sync.Mutex
	alarms  map[string]time.Time
	removed []string
}

func (c *fakeCalendar) PutAlarm(_ context.Context, id string, at time.Time, _ domain.NotificationContent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.alarms == nil {
		c.alarms = make(map[string]time.Time)
	}
	c.alarms[id] = at
	return nil
}

func (c *fakeCalendar) RemoveAlarm(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.alarms, id)
	c.removed = append(c.removed, id)
	return nil
}

var testNow = time.Date(2026, 1, 13, 10, 0, 0, 0, time.Local)

func newTestService(t *testing.T) (*NotificationService, *fakeNotifier, *storage.Storage) {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	n := newFakeNotifier()
	svc := NewNotificationService(n, storage.NewNotificationIDs(store), storage.NewNotifiedFlags(store))
	svc.clock.Now = func() time.Time { return testNow }
	return svc, n, store
}

func TestScheduleFutureReminder(t *testing.T) {
	svc, n, _ := newTestService(t)

	result := svc.Schedule(context.Background(), domain.Reminder{
		ID: "7", ReminderType: "EXAMS", DueDate: "2099-01-01", DueTime: "09:00 AM",
	})
	if !result.Scheduled() {
		t.Fatalf("expected scheduled, got %+v", result)
	}

	want := time.Date(2099, 1, 1, 9, 0, 0, 0, time.Local)
	call, ok := n.live[result.TriggerID]
	if !ok {
		t.Fatalf("trigger %s not handed to notifier", result.TriggerID)
	}
	if !call.at.Equal(want) {
		t.Fatalf("fire at = %v, want %v", call.at, want)
	}
	if call.content.Title != "EXAMS Reminder" || call.content.Body != "EXAMS" {
		t.Fatalf("unexpected content %+v", call.content)
	}
	if call.content.Data[domain.DataReminderID] != "7" || call.content.Data[domain.DataReminderType] != "EXAMS" {
		t.Fatalf("unexpected payload %v", call.content.Data)
	}

	if got, ok := svc.Lookup("7"); !ok || got != result.TriggerID {
		t.Fatalf("Lookup(7) = %q, %v", got, ok)
	}
}

func TestSchedulePresentationBody(t *testing.T) {
	svc, n, _ := newTestService(t)

	result := svc.Schedule(context.Background(), domain.Reminder{
		ID: "3", ReminderType: "presentation", PresentationType: "group", DueDate: "2099-03-04", DueTime: "14:15",
	})
	if !result.Scheduled() {
		t.Fatalf("expected scheduled, got %+v", result)
	}
	call := n.live[result.TriggerID]
	if call.content.Title != "PRESENTATION Reminder" || call.content.Body != "PRESENTATION - group" {
		t.Fatalf("unexpected content %+v", call.content)
	}
}

func TestScheduleOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		reminder domain.Reminder
		granted  bool
		failWith error
		want     domain.Outcome
		wantErr  error
	}{
		{
			name:     "due yesterday",
			reminder: domain.Reminder{ID: "1", ReminderType: "CAT", DueDate: "2026-01-12", DueTime: "09:00 AM"},
			granted:  true,
			want:     domain.OutcomeSkippedPast,
			wantErr:  datetime.ErrPastDateTime,
		},
		{
			name:     "due exactly now",
			reminder: domain.Reminder{ID: "1", ReminderType: "CAT", DueDate: "2026-01-13", DueTime: "10:00"},
			granted:  true,
			want:     domain.OutcomeSkippedPast,
			wantErr:  datetime.ErrPastDateTime,
		},
		{
			name:     "malformed time",
			reminder: domain.Reminder{ID: "1", ReminderType: "CAT", DueDate: "2099-01-01", DueTime: "nine"},
			granted:  true,
			want:     domain.OutcomeInvalid,
			wantErr:  datetime.ErrMalformedDateTime,
		},
		{
			name:     "malformed date",
			reminder: domain.Reminder{ID: "1", ReminderType: "CAT", DueDate: "01/01/2099", DueTime: "09:00 AM"},
			granted:  true,
			want:     domain.OutcomeInvalid,
			wantErr:  datetime.ErrMalformedDateTime,
		},
		{
			name:     "missing id",
			reminder: domain.Reminder{ReminderType: "CAT", DueDate: "2099-01-01", DueTime: "09:00 AM"},
			granted:  true,
			want:     domain.OutcomeInvalid,
			wantErr:  ErrMissingReminderID,
		},
		{
			name:     "permission denied",
			reminder: domain.Reminder{ID: "1", ReminderType: "CAT", DueDate: "2099-01-01", DueTime: "09:00 AM"},
			granted:  false,
			want:     domain.OutcomeUnscheduled,
			wantErr:  notifier.ErrPermissionDenied,
		},
		{
			name:     "notifier failure",
			reminder: domain.Reminder{ID: "1", ReminderType: "CAT", DueDate: "2099-01-01", DueTime: "09:00 AM"},
			granted:  true,
			failWith: errors.New("scheduler unavailable"),
			want:     domain.OutcomeUnscheduled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, n, _ := newTestService(t)
			n.granted = tt.granted
			if tt.failWith != nil {
				n.scheduleFn = func() error { return tt.failWith }
			}

			result := svc.Schedule(context.Background(), tt.reminder)
			if result.Outcome != tt.want {
				t.Fatalf("outcome = %s, want %s (err %v)", result.Outcome, tt.want, result.Err)
			}
			if tt.wantErr != nil && !errors.Is(result.Err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", result.Err, tt.wantErr)
			}
			if tt.failWith != nil && !errors.Is(result.Err, tt.failWith) {
				t.Fatalf("err = %v, want wrapped %v", result.Err, tt.failWith)
			}
			if n.liveCount() != 0 {
				t.Fatalf("expected no trigger, have %d", n.liveCount())
			}
			if _, ok := svc.Lookup("1"); ok {
				t.Fatal("expected no mapping")
			}
		})
	}
}

func TestScheduleSupersedesExistingTrigger(t *testing.T) {
	svc, n, _ := newTestService(t)
	ctx := context.Background()
	r := domain.Reminder{ID: "7", ReminderType: "EXAMS", DueDate: "2099-01-01", DueTime: "09:00 AM"}

	first := svc.Schedule(ctx, r)
	second := svc.Schedule(ctx, r)
	if !first.Scheduled() || !second.Scheduled() {
		t.Fatalf("expected both scheduled: %+v %+v", first, second)
	}
	if n.liveCount() != 1 {
		t.Fatalf("expected exactly one live trigger, have %d", n.liveCount())
	}
	if _, ok := n.live[second.TriggerID]; !ok {
		t.Fatal("latest trigger is not the live one")
	}
	if got, _ := svc.Lookup("7"); got != second.TriggerID {
		t.Fatalf("mapping = %q, want %q", got, second.TriggerID)
	}
}

func TestConcurrentSchedulesKeepOneTrigger(t *testing.T) {
	svc, n, _ := newTestService(t)
	r := domain.Reminder{ID: "7", ReminderType: "EXAMS", DueDate: "2099-01-01", DueTime: "09:00 AM"}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Schedule(context.Background(), r)
		}()
	}
	wg.Wait()

	if n.liveCount() != 1 {
		t.Fatalf("expected one live trigger, have %d", n.liveCount())
	}
	got, ok := svc.Lookup("7")
	if !ok {
		t.Fatal("expected mapping")
	}
	if _, live := n.live[got]; !live {
		t.Fatalf("mapping points at dead trigger %s", got)
	}
}

func TestChannelConfiguredOnce(t *testing.T) {
	svc, n, _ := newTestService(t)
	for i := 0; i < 3; i++ {
		svc.Schedule(context.Background(), domain.Reminder{
			ID: fmt.Sprint(i), ReminderType: "CAT", DueDate: "2099-01-01", DueTime: "09:00 AM",
		})
	}
	if n.channels != 1 {
		t.Fatalf("channel configured %d times", n.channels)
	}
}

func TestCancel(t *testing.T) {
	t.Run("without mapping", func(t *testing.T) {
		svc, n, _ := newTestService(t)
		svc.Cancel(context.Background(), "42")
		if len(n.cancelled) != 0 {
			t.Fatalf("unexpected cancel calls %v", n.cancelled)
		}
	})

	t.Run("removes trigger and mapping", func(t *testing.T) {
		svc, n, _ := newTestService(t)
		result := svc.Schedule(context.Background(), domain.Reminder{ID: "7", ReminderType: "EXAMS", DueDate: "2099-01-01", DueTime: "09:00 AM"})
		svc.Cancel(context.Background(), "7")

		if n.liveCount() != 0 {
			t.Fatal("trigger still live")
		}
		if len(n.cancelled) != 1 || n.cancelled[0] != result.TriggerID {
			t.Fatalf("cancelled %v, want %s", n.cancelled, result.TriggerID)
		}
		if _, ok := svc.Lookup("7"); ok {
			t.Fatal("mapping still present")
		}
	})

	t.Run("notifier failure still deletes mapping", func(t *testing.T) {
		svc, n, _ := newTestService(t)
		svc.Schedule(context.Background(), domain.Reminder{ID: "7", ReminderType: "EXAMS", DueDate: "2099-01-01", DueTime: "09:00 AM"})
		n.cancelErr = errors.New("cancel failed")

		svc.Cancel(context.Background(), "7")
		if _, ok := svc.Lookup("7"); ok {
			t.Fatal("mapping must be deleted even when cancel fails")
		}
	})
}

func TestRescheduleClearsNotifiedFlag(t *testing.T) {
	svc, n, store := newTestService(t)
	flags := storage.NewNotifiedFlags(store)
	ctx := context.Background()

	r := domain.Reminder{ID: "7", ReminderType: "EXAMS", DueDate: "2099-01-01", DueTime: "09:00 AM"}
	first := svc.Schedule(ctx, r)
	if err := flags.Set("7"); err != nil {
		t.Fatalf("set flag: %v", err)
	}

	r.DueTime = "11:00 AM"
	second := svc.Reschedule(ctx, r)
	if !second.Scheduled() {
		t.Fatalf("expected scheduled, got %+v", second)
	}
	if second.TriggerID == first.TriggerID || n.liveCount() != 1 {
		t.Fatalf("expected old trigger replaced, live %d", n.liveCount())
	}
	if flags.IsSet("7") {
		t.Fatal("notified flag should be cleared after reschedule")
	}
}

func TestRescheduleIntoPastCancels(t *testing.T) {
	svc, n, _ := newTestService(t)
	ctx := context.Background()

	r := domain.Reminder{ID: "7", ReminderType: "EXAMS", DueDate: "2099-01-01", DueTime: "09:00 AM"}
	svc.Schedule(ctx, r)

	r.DueDate = "2020-01-01"
	result := svc.Reschedule(ctx, r)
	if result.Outcome != domain.OutcomeSkippedPast {
		t.Fatalf("outcome = %s", result.Outcome)
	}
	if n.liveCount() != 0 {
		t.Fatal("old trigger should be cancelled")
	}
	if _, ok := svc.Lookup("7"); ok {
		t.Fatal("mapping should be removed")
	}
}

func TestCalendarMirror(t *testing.T) {
	svc, _, _ := newTestService(t)
	cal := &fakeCalendar{}
	svc.SetCalendar(cal)

	result := svc.Schedule(context.Background(), domain.Reminder{ID: "7", ReminderType: "EXAMS", DueDate: "2099-01-01", DueTime: "09:00 AM"})
	if _, ok := cal.alarms[result.TriggerID]; !ok {
		t.Fatal("alarm not mirrored")
	}

	svc.Cancel(context.Background(), "7")
	if len(cal.alarms) != 0 || len(cal.removed) != 1 {
		t.Fatalf("alarm not removed: %v %v", cal.alarms, cal.removed)
	}
}

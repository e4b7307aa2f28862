package notifier

import (
	"context"
	"fmt"
	"html"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/tazhate/studentreminder/internal/domain"
)

// Triggers missed while the process was down are still delivered if they are
// at most this old; older ones are dropped.
const missedGrace = time.Hour

// onceSchedule fires a single time at the given instant.
type onceSchedule struct {
	at time.Time
}

func (s onceSchedule) Next(t time.Time) time.Time {
	if t.Before(s.at) {
		return s.at
	}
	return time.Time{}
}

// Local schedules one-shot notifications on an in-process cron and delivers
// them through a MessageSender. Pending triggers are kept in a TriggerStore
// and restored by Start.
type Local struct {
	cron   *cron.Cron
	store  TriggerStore
	sender MessageSender
	chatID int64
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]cron.EntryID
	channel *Channel
}

func NewLocal(store TriggerStore, location *time.Location) *Local {
	if location == nil {
		location = time.Local
	}
	return &Local{
		cron:    cron.New(cron.WithLocation(location)),
		store:   store,
		now:     time.Now,
		entries: make(map[string]cron.EntryID),
	}
}

func (n *Local) SetSender(sender MessageSender, chatID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sender = sender
	n.chatID = chatID
}

// Start restores pending triggers, starts the cron and blocks until ctx is done.
func (n *Local) Start(ctx context.Context) error {
	if err := n.restore(); err != nil {
		return fmt.Errorf("restore triggers: %w", err)
	}

	n.cron.Start()
	log.Printf("[notifier] Started (%d pending)", n.pendingCount())

	<-ctx.Done()
	return nil
}

func (n *Local) Stop() {
	ctx := n.cron.Stop()
	<-ctx.Done()
	log.Println("[notifier] Stopped")
}

func (n *Local) EnsurePermission(_ context.Context) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sender != nil && n.chatID != 0, nil
}

func (n *Local) ConfigureChannel(ch Channel) error {
	if ch.ID == "" {
		return fmt.Errorf("channel id is required")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.channel != nil && n.channel.ID == ch.ID {
		return nil
	}
	n.channel = &ch
	log.Printf("[notifier] Delivery channel %q (%s) configured", ch.ID, ch.Name)
	return nil
}

func (n *Local) ScheduleAt(ctx context.Context, at time.Time, content domain.NotificationContent) (string, error) {
	granted, err := n.EnsurePermission(ctx)
	if err != nil {
		return "", err
	}
	if !granted {
		return "", ErrPermissionDenied
	}
	if !at.After(n.now()) {
		return "", ErrPastTrigger
	}

	trigger := domain.ScheduledTrigger{
		ID:      uuid.NewString(),
		FireAt:  at,
		Content: content,
	}
	if err := n.store.SaveTrigger(trigger); err != nil {
		return "", fmt.Errorf("save trigger: %w", err)
	}

	n.add(trigger)
	return trigger.ID, nil
}

// Cancel removes a pending trigger. Unknown or already fired ids are ignored.
func (n *Local) Cancel(_ context.Context, triggerID string) error {
	n.mu.Lock()
	entryID, ok := n.entries[triggerID]
	delete(n.entries, triggerID)
	n.mu.Unlock()

	if ok {
		n.cron.Remove(entryID)
	}
	if err := n.store.DeleteTrigger(triggerID); err != nil {
		return fmt.Errorf("delete trigger: %w", err)
	}
	return nil
}

// Pending returns the triggers that have not fired yet.
func (n *Local) Pending() ([]domain.ScheduledTrigger, error) {
	return n.store.ListTriggers()
}

func (n *Local) add(t domain.ScheduledTrigger) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.entries[t.ID]; ok {
		return
	}

	entryID := n.cron.Schedule(onceSchedule{at: t.FireAt}, cron.FuncJob(func() {
		n.fire(t)
	}))
	n.entries[t.ID] = entryID
}

func (n *Local) fire(t domain.ScheduledTrigger) {
	n.mu.Lock()
	entryID, ok := n.entries[t.ID]
	delete(n.entries, t.ID)
	n.mu.Unlock()

	if !ok {
		return // cancelled while firing
	}
	n.cron.Remove(entryID)

	n.deliver(t)
}

func (n *Local) deliver(t domain.ScheduledTrigger) {
	n.mu.Lock()
	sender, chatID := n.sender, n.chatID
	n.mu.Unlock()

	if sender == nil {
		log.Printf("[notifier] Dropping trigger %s: no sender", t.ID)
	} else if err := sender.SendMessage(chatID, FormatMessage(t.Content)); err != nil {
		log.Printf("Error delivering trigger %s: %v", t.ID, err)
	} else {
		log.Printf("[notifier] Delivered %q (trigger %s)", t.Content.Title, t.ID)
	}

	if err := n.store.DeleteTrigger(t.ID); err != nil {
		log.Printf("Error deleting fired trigger %s: %v", t.ID, err)
	}
}

func (n *Local) restore() error {
	triggers, err := n.store.ListTriggers()
	if err != nil {
		return err
	}

	now := n.now()
	for _, t := range triggers {
		switch {
		case t.FireAt.After(now):
			n.add(t)
		case now.Sub(t.FireAt) <= missedGrace:
			log.Printf("[notifier] Delivering trigger %s missed at %s", t.ID, t.FireAt.Format("2006-01-02 15:04"))
			n.deliver(t)
		default:
			log.Printf("[notifier] Dropping stale trigger %s (was due %s)", t.ID, t.FireAt.Format("2006-01-02 15:04"))
			if err := n.store.DeleteTrigger(t.ID); err != nil {
				log.Printf("Error deleting stale trigger %s: %v", t.ID, err)
			}
		}
	}
	return nil
}

func (n *Local) pendingCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.entries)
}

// FormatMessage renders notification content as Telegram HTML.
func FormatMessage(c domain.NotificationContent) string {
	text := fmt.Sprintf("🔔 <b>%s</b>", html.EscapeString(c.Title))
	if c.Body != "" {
		text += "\n\n" + html.EscapeString(c.Body)
	}
	return text
}

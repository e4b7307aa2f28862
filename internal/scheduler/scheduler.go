package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tazhate/studentreminder/internal/datetime"
	"github.com/tazhate/studentreminder/internal/domain"
)

const (
	DefaultInterval   = 60 * time.Second
	MinInterval       = 10 * time.Second
	DefaultLeadWindow = 30 * time.Minute
	dispatchTimeout   = 10 * time.Second
)

type ReminderSource interface {
	Reminders() []domain.Reminder
}

type SessionProvider interface {
	Session() (domain.Session, bool)
}

// Dispatcher sends the due-soon SMS.
type Dispatcher interface {
	Send(ctx context.Context, token, phone, message string) error
}

type Flags interface {
	IsSet(reminderID string) bool
	Set(reminderID string) error
}

// Poller sends one SMS per reminder once it is inside the lead window.
type Poller struct {
	cron       *cron.Cron
	reminders  ReminderSource
	sessions   SessionProvider
	dispatcher Dispatcher
	flags      Flags
	interval   time.Duration
	leadWindow time.Duration
	now        func() time.Time

	mu       sync.Mutex
	inFlight map[string]bool
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// ClampInterval applies the default to zero and the floor to anything shorter.
func ClampInterval(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultInterval
	case d < MinInterval:
		return MinInterval
	}
	return d
}

func NewPoller(reminders ReminderSource, sessions SessionProvider, dispatcher Dispatcher, flags Flags, interval, leadWindow time.Duration) *Poller {
	if leadWindow <= 0 {
		leadWindow = DefaultLeadWindow
	}
	return &Poller{
		cron:       cron.New(),
		reminders:  reminders,
		sessions:   sessions,
		dispatcher: dispatcher,
		flags:      flags,
		interval:   ClampInterval(interval),
		leadWindow: leadWindow,
		now:        time.Now,
		inFlight:   make(map[string]bool),
	}
}

func (p *Poller) Start(ctx context.Context) error {
	p.cron.Schedule(cron.Every(p.interval), cron.FuncJob(func() {
		p.tick(ctx)
	}))
	p.cron.Start()
	log.Printf("[poller] Started (every %s, lead window %s)", p.interval, p.leadWindow)

	<-ctx.Done()
	return nil
}

// Stop halts the interval and waits for dispatches in flight. Safe to call
// more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		ctx := p.cron.Stop()
		<-ctx.Done()
		p.wg.Wait()
		log.Println("[poller] Stopped")
	})
}

func (p *Poller) tick(ctx context.Context) {
	sess, ok := p.sessions.Session()
	if !ok || sess.Phone == "" {
		return
	}
	reminders := p.reminders.Reminders()
	if len(reminders) == 0 {
		return
	}

	now := p.now()
	for _, r := range reminders {
		if r.ID == "" {
			continue
		}
		due, err := datetime.ParseReminder(r)
		if err != nil {
			log.Printf("[poller] Skipping reminder %s: %v", r.ID, err)
			continue
		}

		left := due.Sub(now)
		if left <= 0 || left > p.leadWindow {
			continue
		}
		// Claim first so a dispatch in flight is seen before its flag is set.
		if !p.claim(r.ID) {
			continue
		}
		if p.flags.IsSet(r.ID) {
			p.release(r.ID)
			continue
		}

		p.wg.Add(1)
		go p.dispatch(ctx, sess, r)
	}
}

func (p *Poller) claim(reminderID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight[reminderID] {
		return false
	}
	p.inFlight[reminderID] = true
	return true
}

func (p *Poller) release(reminderID string) {
	p.mu.Lock()
	delete(p.inFlight, reminderID)
	p.mu.Unlock()
}

func (p *Poller) dispatch(ctx context.Context, sess domain.Session, r domain.Reminder) {
	defer p.wg.Done()
	defer p.release(r.ID)

	ctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	if err := p.dispatcher.Send(ctx, sess.Token, sess.Phone, Message(r)); err != nil {
		log.Printf("Error sending SMS for reminder %s: %v", r.ID, err)
		return
	}
	if err := p.flags.Set(r.ID); err != nil {
		log.Printf("Error saving notified flag for reminder %s: %v", r.ID, err)
	}
	log.Printf("[poller] SMS sent for reminder %s", r.ID)
}

// Message is the SMS text for a due-soon reminder.
func Message(r domain.Reminder) string {
	kind := r.ReminderType
	if r.PresentationType != "" {
		kind += fmt.Sprintf(" (%s)", r.PresentationType)
	}
	return fmt.Sprintf("Reminder: your %s is due at %s on %s.", kind, r.DueTime, r.DueDate)
}

package source

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tazhate/studentreminder/internal/domain"
)

const DefaultRefreshInterval = 5 * time.Minute

type Fetcher interface {
	GetReminders(ctx context.Context, token string) ([]domain.Reminder, error)
}

type SessionProvider interface {
	Session() (domain.Session, bool)
}

// Refresher keeps a Live list in sync with the backend.
type Refresher struct {
	cron     *cron.Cron
	live     *Live
	fetcher  Fetcher
	sessions SessionProvider
	interval time.Duration
}

func NewRefresher(live *Live, fetcher Fetcher, sessions SessionProvider, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{
		cron:     cron.New(),
		live:     live,
		fetcher:  fetcher,
		sessions: sessions,
		interval: interval,
	}
}

// Start fetches once, then on every interval until ctx is done.
func (r *Refresher) Start(ctx context.Context) error {
	if err := r.Refresh(ctx); err != nil {
		log.Printf("Error refreshing reminders: %v", err)
	}

	r.cron.Schedule(cron.Every(r.interval), cron.FuncJob(func() {
		if err := r.Refresh(ctx); err != nil {
			log.Printf("Error refreshing reminders: %v", err)
		}
	}))
	r.cron.Start()
	log.Printf("[refresher] Started (every %s)", r.interval)

	<-ctx.Done()
	return nil
}

func (r *Refresher) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	log.Println("[refresher] Stopped")
}

// Refresh replaces the live list with the backend's. Without a session the
// list is left alone.
func (r *Refresher) Refresh(ctx context.Context) error {
	sess, ok := r.sessions.Session()
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	reminders, err := r.fetcher.GetReminders(ctx, sess.Token)
	if err != nil {
		return fmt.Errorf("get reminders: %w", err)
	}
	r.live.Replace(reminders)
	return nil
}

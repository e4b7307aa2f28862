package source

import (
	"sync"

	"github.com/tazhate/studentreminder/internal/domain"
)

// Live holds the reminder list the dashboard currently shows.
type Live struct {
	mu        sync.RWMutex
	reminders []domain.Reminder
}

func NewLive() *Live {
	return &Live{}
}

// Reminders returns a copy of the current list.
func (l *Live) Reminders() []domain.Reminder {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Reminder, len(l.reminders))
	copy(out, l.reminders)
	return out
}

func (l *Live) Replace(reminders []domain.Reminder) {
	list := make([]domain.Reminder, 0, len(reminders))
	for _, r := range reminders {
		r.Normalize()
		list = append(list, r)
	}

	l.mu.Lock()
	l.reminders = list
	l.mu.Unlock()
}

// Upsert replaces the reminder with the same id or appends r.
func (l *Live) Upsert(r domain.Reminder) {
	r.Normalize()

	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.reminders {
		if l.reminders[i].ID == r.ID {
			l.reminders[i] = r
			return
		}
	}
	l.reminders = append(l.reminders, r)
}

// Remove drops the reminder and reports whether it was present.
func (l *Live) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.reminders {
		if l.reminders[i].ID == id {
			l.reminders = append(l.reminders[:i], l.reminders[i+1:]...)
			return true
		}
	}
	return false
}

func (l *Live) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.reminders)
}

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tazhate/studentreminder/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
	mu sync.Mutex // serializes writers; sqlite allows one at a time anyway
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		// Pending one-shot notifications, so they survive a restart
		`CREATE TABLE IF NOT EXISTS scheduled_triggers (
			id TEXT PRIMARY KEY,
			fire_at DATETIME NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			data TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scheduled_triggers_fire_at ON scheduled_triggers(fire_at)`,
		`ALTER TABLE scheduled_triggers ADD COLUMN reminder_id TEXT NOT NULL DEFAULT ''`,
		`CREATE INDEX IF NOT EXISTS idx_scheduled_triggers_reminder ON scheduled_triggers(reminder_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Ignore "duplicate column" errors for ALTER TABLE
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

// === Key-value ===

// Read returns the value stored under key; ok is false when the key is absent.
func (s *Storage) Read(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Write upserts a single key. The statement is atomic per key.
func (s *Storage) Write(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	return err
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Storage) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}

// ListPrefix returns all keys starting with prefix, with the prefix stripped.
func (s *Storage) ListPrefix(prefix string) (map[string]string, error) {
	rows, err := s.db.Query(
		`SELECT key, value FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key`,
		len(prefix), prefix,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[strings.TrimPrefix(k, prefix)] = v
	}
	return out, rows.Err()
}

// === Scheduled triggers ===

func (s *Storage) SaveTrigger(t domain.ScheduledTrigger) error {
	data, err := encodeData(t.Content.Data)
	if err != nil {
		return fmt.Errorf("encode trigger data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		`INSERT INTO scheduled_triggers (id, fire_at, title, body, data, reminder_id)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET fire_at = excluded.fire_at, title = excluded.title,
		   body = excluded.body, data = excluded.data, reminder_id = excluded.reminder_id`,
		t.ID, t.FireAt.UTC(), t.Content.Title, t.Content.Body, data, t.Content.Data[domain.DataReminderID],
	)
	return err
}

func (s *Storage) DeleteTrigger(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM scheduled_triggers WHERE id = ?`, id)
	return err
}

// ListTriggers returns all pending triggers ordered by fire time.
func (s *Storage) ListTriggers() ([]domain.ScheduledTrigger, error) {
	rows, err := s.db.Query(
		`SELECT id, fire_at, title, body, data FROM scheduled_triggers ORDER BY fire_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var triggers []domain.ScheduledTrigger
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, err
		}
		triggers = append(triggers, *t)
	}
	return triggers, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrigger(row scanner) (*domain.ScheduledTrigger, error) {
	t := &domain.ScheduledTrigger{}
	var data string
	if err := row.Scan(&t.ID, &t.FireAt, &t.Content.Title, &t.Content.Body, &data); err != nil {
		return nil, err
	}
	t.FireAt = t.FireAt.In(time.Local)
	t.Content.Data = decodeData(data)
	return t, nil
}

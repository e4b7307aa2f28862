package storage

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
)

const (
	// LegacyNotificationIDsKey held the whole reminder->notification map as one JSON blob.
	LegacyNotificationIDsKey = "notificationIds"
	notificationIDPrefix     = "notificationIds:"
)

// KV is the key-value contract the id and flag stores are built on.
type KV interface {
	Read(key string) (string, bool, error)
	Write(key, value string) error
	Remove(key string) error
	ListPrefix(prefix string) (map[string]string, error)
}

// NotificationIDs maps reminder ids to scheduled notification ids. Every
// reminder has its own key, so concurrent updates to different reminders
// cannot overwrite each other.
type NotificationIDs struct {
	kv    KV
	mu    sync.RWMutex
	cache map[string]string
}

func NewNotificationIDs(kv KV) *NotificationIDs {
	return &NotificationIDs{
		kv:    kv,
		cache: make(map[string]string),
	}
}

func (n *NotificationIDs) Set(reminderID, triggerID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.kv.Write(notificationIDPrefix+reminderID, triggerID); err != nil {
		return err
	}
	n.cache[reminderID] = triggerID
	return nil
}

// Get returns the trigger id for reminderID. Read failures are logged and
// treated as absent.
func (n *NotificationIDs) Get(reminderID string) (string, bool) {
	n.mu.RLock()
	id, ok := n.cache[reminderID]
	n.mu.RUnlock()
	if ok {
		return id, true
	}

	// The read and the fill happen under one lock so a concurrent Delete
	// cannot be undone by a stale fill.
	n.mu.Lock()
	defer n.mu.Unlock()
	if id, ok := n.cache[reminderID]; ok {
		return id, true
	}

	value, ok, err := n.kv.Read(notificationIDPrefix + reminderID)
	if err != nil {
		log.Printf("Error reading notification id for reminder %s: %v", reminderID, err)
		return "", false
	}
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}

	n.cache[reminderID] = value
	return value, true
}

// Delete removes the mapping. Deleting an absent mapping is a no-op.
func (n *NotificationIDs) Delete(reminderID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.cache, reminderID)
	return n.kv.Remove(notificationIDPrefix + reminderID)
}

// All returns a snapshot of every stored mapping.
func (n *NotificationIDs) All() map[string]string {
	all, err := n.kv.ListPrefix(notificationIDPrefix)
	if err != nil {
		log.Printf("Error listing notification ids: %v", err)
		return map[string]string{}
	}
	return all
}

// ImportLegacy moves entries from the old single-blob key into per-reminder
// keys and drops the blob. A malformed blob is discarded.
func (n *NotificationIDs) ImportLegacy() (int, error) {
	blob, ok, err := n.kv.Read(LegacyNotificationIDsKey)
	if err != nil || !ok {
		return 0, err
	}

	var legacy map[string]string
	if err := json.Unmarshal([]byte(blob), &legacy); err != nil {
		log.Printf("Discarding malformed %s blob: %v", LegacyNotificationIDsKey, err)
		legacy = nil
	}

	imported := 0
	for reminderID, triggerID := range legacy {
		if _, exists := n.Get(reminderID); exists || triggerID == "" {
			continue
		}
		if err := n.Set(reminderID, triggerID); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, n.kv.Remove(LegacyNotificationIDsKey)
}

func encodeData(data map[string]string) (string, error) {
	if len(data) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeData(s string) map[string]string {
	data := map[string]string{}
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		return map[string]string{}
	}
	return data
}

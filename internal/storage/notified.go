package storage

import "log"

const notifiedPrefix = "notified_"

// NotifiedFlags remembers which reminders already got their SMS.
type NotifiedFlags struct {
	kv KV
}

func NewNotifiedFlags(kv KV) *NotifiedFlags {
	return &NotifiedFlags{kv: kv}
}

// IsSet reports whether the flag is recorded. A storage error reads as unset,
// which at worst repeats an SMS.
func (f *NotifiedFlags) IsSet(reminderID string) bool {
	value, ok, err := f.kv.Read(notifiedPrefix + reminderID)
	if err != nil {
		log.Printf("Error reading notified flag for reminder %s: %v", reminderID, err)
		return false
	}
	return ok && value == "true"
}

func (f *NotifiedFlags) Set(reminderID string) error {
	return f.kv.Write(notifiedPrefix+reminderID, "true")
}

func (f *NotifiedFlags) Clear(reminderID string) error {
	return f.kv.Remove(notifiedPrefix + reminderID)
}

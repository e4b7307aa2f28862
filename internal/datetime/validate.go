package datetime

import "time"

// IsFuture reports whether instant is strictly after now.
func IsFuture(instant, now time.Time) bool {
	return instant.After(now)
}

// Validator rejects trigger instants that are not in the future. Now is read
// on every call.
type Validator struct {
	Now func() time.Time
}

func NewValidator() *Validator {
	return &Validator{Now: time.Now}
}

func (v *Validator) IsFuture(instant time.Time) bool {
	return IsFuture(instant, v.Now())
}

// Check returns ErrPastDateTime for instants at or before now.
func (v *Validator) Check(instant time.Time) error {
	if !v.IsFuture(instant) {
		return ErrPastDateTime
	}
	return nil
}

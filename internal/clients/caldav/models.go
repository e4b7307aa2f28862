package caldav

import "time"

// Calendar represents a calendar collection on the server
type Calendar struct {
	Path        string
	DisplayName string
}

// Alarm is a reminder notification mirrored as an event with a VALARM
type Alarm struct {
	UID         string
	Summary     string
	Description string
	At          time.Time
}

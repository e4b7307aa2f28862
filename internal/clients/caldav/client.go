package caldav

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"

	"github.com/tazhate/studentreminder/internal/domain"
)

const (
	// Apple iCloud CalDAV endpoint
	DefaultiCloudURL = "https://caldav.icloud.com"

	uidSuffix     = "@studentreminder"
	eventDuration = 15 * time.Minute
)

// Client mirrors scheduled reminder notifications to a CalDAV calendar so
// they also ring on the user's other devices.
type Client struct {
	baseURL      string
	username     string
	password     string
	calendarPath string

	mu     sync.Mutex
	client *caldav.Client
}

// NewClient creates a new CalDAV client
func NewClient(baseURL, username, password string) *Client {
	if baseURL == "" {
		baseURL = DefaultiCloudURL
	}
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
	}
}

// IsConfigured returns true if the client has credentials
func (c *Client) IsConfigured() bool {
	return c.username != "" && c.password != ""
}

func (c *Client) SetCalendarPath(path string) {
	c.calendarPath = path
}

func (c *Client) CalendarPath() string {
	return c.calendarPath
}

// connect establishes connection to CalDAV server
func (c *Client) connect() (*caldav.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{
			username: c.username,
			password: c.password,
		},
		Timeout: 30 * time.Second,
	}

	client, err := caldav.NewClient(httpClient, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}

	c.client = client
	return client, nil
}

// basicAuthTransport adds Basic Auth to HTTP requests
type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

// DiscoverCalendars returns all calendars for the user
func (c *Client) DiscoverCalendars(ctx context.Context) ([]Calendar, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find home set: %w", err)
	}

	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	var result []Calendar
	for _, cal := range cals {
		result = append(result, Calendar{
			Path:        cal.Path,
			DisplayName: cal.Name,
		})
	}
	return result, nil
}

// PutAlarm writes (or replaces) the calendar entry for a scheduled trigger.
func (c *Client) PutAlarm(ctx context.Context, triggerID string, at time.Time, content domain.NotificationContent) error {
	path, err := c.objectPath(triggerID)
	if err != nil {
		return err
	}
	client, err := c.connect()
	if err != nil {
		return err
	}

	cal := alarmToICS(Alarm{
		UID:         triggerID + uidSuffix,
		Summary:     content.Title,
		Description: content.Body,
		At:          at,
	}, time.Now())

	if _, err := client.PutCalendarObject(ctx, path, cal); err != nil {
		return fmt.Errorf("put alarm: %w", err)
	}
	return nil
}

// RemoveAlarm deletes the calendar entry for a trigger.
func (c *Client) RemoveAlarm(ctx context.Context, triggerID string) error {
	path, err := c.objectPath(triggerID)
	if err != nil {
		return err
	}
	client, err := c.connect()
	if err != nil {
		return err
	}

	if err := client.RemoveAll(ctx, path); err != nil {
		return fmt.Errorf("delete alarm: %w", err)
	}
	return nil
}

func (c *Client) objectPath(triggerID string) (string, error) {
	if c.calendarPath == "" {
		return "", fmt.Errorf("calendar path not specified")
	}
	path := c.calendarPath
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path + triggerID + ".ics", nil
}

// alarmToICS builds a short event at the trigger instant with a display
// alarm firing at its start.
func alarmToICS(a Alarm, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//StudentReminder//CalDAV//EN")

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, a.UID)
	vevent.Props.SetText(ical.PropSummary, a.Summary)
	if a.Description != "" {
		vevent.Props.SetText(ical.PropDescription, a.Description)
	}
	vevent.Props.SetDateTime(ical.PropDateTimeStart, a.At.UTC())
	vevent.Props.SetDateTime(ical.PropDateTimeEnd, a.At.Add(eventDuration).UTC())
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())

	alarm := ical.NewComponent(ical.CompAlarm)
	alarm.Props.SetText(ical.PropAction, "DISPLAY")
	alarm.Props.SetText(ical.PropDescription, a.Summary)
	trigger := ical.NewProp(ical.PropTrigger)
	trigger.Value = "PT0S"
	alarm.Props.Set(trigger)
	vevent.Children = append(vevent.Children, alarm)

	cal.Children = append(cal.Children, vevent.Component)
	return cal
}
